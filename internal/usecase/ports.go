package usecase

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 決済プロバイダへの依頼内容
type PaymentRequest struct {
	OrderID  int64
	Amount   decimal.Decimal
	Currency string
	Phone    string
	Note     string
}

// プロバイダが受け付けた結果
type PaymentInitiation struct {
	TransactionID  string
	ProviderStatus string
}

// 外部の決済プロバイダ（infra/momoが実装）
type PaymentGateway interface {
	RequestToPay(ctx context.Context, req PaymentRequest) (PaymentInitiation, error)
}

// ゲートウェイ側で「つながらない/タイムアウト」を表すときはこれをwrapする
var ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

// 注文イベント
type OrderEvent struct {
	Type       string            `json:"type"`
	OrderID    int64             `json:"order_id"`
	UserID     int64             `json:"user_id"`
	Status     model.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// 注文ステータスのキャッシュ（無くても動く）
type OrderStatusSnapshot struct {
	OrderID       int64               `json:"order_id"`
	UserID        int64               `json:"-"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
}

type OrderStatusCache interface {
	Get(ctx context.Context, orderID int64) (OrderStatusSnapshot, bool, error)
	Set(ctx context.Context, s OrderStatusSnapshot) error
	Delete(ctx context.Context, orderID int64) error
}

// 未設定用
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, OrderEvent) error { return nil }

type nopStatusCache struct{}

func (nopStatusCache) Get(context.Context, int64) (OrderStatusSnapshot, bool, error) {
	return OrderStatusSnapshot{}, false, nil
}
func (nopStatusCache) Set(context.Context, OrderStatusSnapshot) error { return nil }
func (nopStatusCache) Delete(context.Context, int64) error             { return nil }

func NopPublisher() EventPublisher     { return nopPublisher{} }
func NopStatusCache() OrderStatusCache { return nopStatusCache{} }
