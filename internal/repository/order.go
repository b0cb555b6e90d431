package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	// compare-and-set。falseなら別の更新が先に入っている
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error)
}

// 明細は注文作成と同じTxでまとめて入れる
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error)
	// コールバック照合用。transactionIDがあればそれのみ。無ければorderIDのpending決済
	FindForCallback(ctx context.Context, transactionID string, orderID int64) ([]model.Payment, error)
	UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, providerStatus string) error
}
