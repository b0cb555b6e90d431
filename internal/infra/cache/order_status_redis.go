package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const (
	keyOrderStatus = "order_status:%d"
	ttlStatus      = 5 * time.Minute
)

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// 注文ステータスのキャッシュ（GET /orders/:id/status 用）
type OrderStatusRedis struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewOrderStatusRedis(rdb redis.Cmdable) *OrderStatusRedis {
	return &OrderStatusRedis{rdb: rdb, ttl: ttlStatus}
}

// 保存形式。user_idも持つ（所有者チェック用）
type entry struct {
	OrderID       int64               `json:"order_id"`
	UserID        int64               `json:"user_id"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
}

func orderStatusKey(orderID int64) string {
	return fmt.Sprintf(keyOrderStatus, orderID)
}

func (c *OrderStatusRedis) Get(ctx context.Context, orderID int64) (usecase.OrderStatusSnapshot, bool, error) {
	b, err := c.rdb.Get(ctx, orderStatusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.OrderStatusSnapshot{}, false, nil
	}
	if err != nil {
		return usecase.OrderStatusSnapshot{}, false, fmt.Errorf("redis get: %w", err)
	}
	s, err := decodeEntry(b)
	if err != nil {
		return usecase.OrderStatusSnapshot{}, false, err
	}
	return s, true, nil
}

func (c *OrderStatusRedis) Set(ctx context.Context, s usecase.OrderStatusSnapshot) error {
	b, err := encodeEntry(s)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, orderStatusKey(s.OrderID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *OrderStatusRedis) Delete(ctx context.Context, orderID int64) error {
	if err := c.rdb.Del(ctx, orderStatusKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func encodeEntry(s usecase.OrderStatusSnapshot) ([]byte, error) {
	return json.Marshal(entry{
		OrderID:       s.OrderID,
		UserID:        s.UserID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
	})
}

func decodeEntry(b []byte) (usecase.OrderStatusSnapshot, error) {
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return usecase.OrderStatusSnapshot{}, fmt.Errorf("decode order status: %w", err)
	}
	return usecase.OrderStatusSnapshot{
		OrderID:       e.OrderID,
		UserID:        e.UserID,
		Status:        e.Status,
		PaymentStatus: e.PaymentStatus,
	}, nil
}
