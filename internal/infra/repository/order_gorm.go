package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

// 明細のINSERTはこの件数ずつ
const orderItemBatchSize = 100

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) orders(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Order{})
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error; err != nil {
		return model.Order{}, mapNotFound(err, repo.ErrNotFound)
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	return r.list(r.orders(ctx).Where("user_id = ?", userID), page, limit)
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	q := r.orders(ctx).Scopes(createdBetween(f.From, f.To))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	return r.list(q, f.Page, f.Limit)
}

// 件数と1ページ分を返す。並びは新しい注文から
func (r *OrderGormRepository) list(q *gorm.DB, page, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := make([]model.Order, 0, limit)
	if err := q.Scopes(paginate(page, limit)).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	return affected(r.orders(ctx).Where("id = ?", orderID).Update("status", status), repo.ErrNotFound)
}

func (r *OrderGormRepository) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	res := r.orders(ctx).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// =====================
// 明細
// =====================

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	//IDとOrderIDは呼び出し元のスライスに書き戻る
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.db.WithContext(ctx).CreateInBatches(items, orderItemBatchSize).Error
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	return items, err
}
