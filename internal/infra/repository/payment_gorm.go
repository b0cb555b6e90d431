package repository

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	var ps []model.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&ps).Error; err != nil {
		return []model.Payment{}, err
	}
	return ps, nil
}

// transaction_idがあればそれだけで引く。無い時はorder_idのpendingだけ
func (r *PaymentGormRepository) FindForCallback(ctx context.Context, transactionID string, orderID int64) ([]model.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" && orderID <= 0 {
		return []model.Payment{}, nil
	}

	q := r.db.WithContext(ctx).Model(&model.Payment{})
	if transactionID != "" {
		q = q.Where("transaction_id = ?", transactionID)
	} else {
		q = q.Where("order_id = ? AND status = ?", orderID, model.PaymentStatusPending)
	}

	var ps []model.Payment
	if err := q.Order("id asc").Find(&ps).Error; err != nil {
		return []model.Payment{}, err
	}
	return ps, nil
}

func (r *PaymentGormRepository) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus, providerStatus string) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":          status,
			"provider_status": providerStatus,
		})
	return affected(res, repo.ErrNotFound)
}
