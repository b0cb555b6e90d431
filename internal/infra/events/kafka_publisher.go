package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/usecase"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const producerName = "storefront-api"

// イベントの外側
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID    int64  `json:"order_id"`
	UserID     int64  `json:"user_id"`
	Status     string `json:"status"`
	TotalPrice string `json:"total_price"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文イベントをKafkaへ。キーは注文IDなので同じ注文のイベントは同じパーティションに入る
type KafkaPublisher struct {
	w   messageWriter
	log *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka delivery failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{w: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev usecase.OrderEvent) error {
	msg, err := buildMessage(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.log.Debug("order event queued", zap.String("type", ev.Type), zap.Int64("order_id", ev.OrderID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func buildMessage(ev usecase.OrderEvent) (kafka.Message, error) {
	payload, err := json.Marshal(OrderPayload{
		OrderID:    ev.OrderID,
		UserID:     ev.UserID,
		Status:     string(ev.Status),
		TotalPrice: ev.TotalPrice.StringFixed(2),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal payload: %w", err)
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	orderID := strconv.FormatInt(ev.OrderID, 10)

	value, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    occurred,
		Producer:      producerName,
		CorrelationID: orderID,
		Payload:       payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  occurred,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}
