package repository

import (
	"context"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

// txに束ねたrepo群。WithinTxのfnの中でだけ有効
type gormTxRepos struct {
	tx *gorm.DB
}

func (r gormTxRepos) Products() repo.ProductRepository     { return NewProductGormRepository(r.tx) }
func (r gormTxRepos) Inventory() repo.InventoryRepository  { return NewInventoryGormRepository(r.tx) }
func (r gormTxRepos) Orders() repo.OrderRepository         { return NewOrderGormRepository(r.tx) }
func (r gormTxRepos) OrderItems() repo.OrderItemRepository { return NewOrderItemGormRepository(r.tx) }
func (r gormTxRepos) Payments() repo.PaymentRepository     { return NewPaymentGormRepository(r.tx) }
func (r gormTxRepos) AuditLogs() repo.AuditLogRepository   { return NewAuditLogGormRepository(r.tx) }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// gormのTransactionに任せる。fnのpanicもrollbackされてから再panicになる
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTxRepos{tx: tx})
	})
}

var _ repo.TransactionManager = (*TxManagerGorm)(nil)
