package repository

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

// 公開一覧で使えるソート。空やキーにないものはnew扱い
var productSorts = map[string][]string{
	"price_asc":  {"price asc", "id asc"},
	"price_desc": {"price desc", "id desc"},
	"new":        {"created_at desc", "id desc"},
}

type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true)

	if kw := strings.TrimSpace(q.Q); kw != "" {
		base = base.Where("name ILIKE ?", "%"+kw+"%")
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		base = base.Where("category = ?", c)
	}
	if q.MinPrice != nil {
		base = base.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		base = base.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := productSorts[q.Sort]
	if !ok {
		order = productSorts["new"]
	}
	list := base.Scopes(paginate(q.Page, q.Limit))
	for _, o := range order {
		list = list.Order(o)
	}

	products := make([]model.Product, 0, q.Limit)
	if err := list.Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return model.Product{}, mapNotFound(err, repo.ErrNotFound)
	}
	return p, nil
}

func (r *ProductGormRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	products := []model.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&products).Error
	return products, err
}

func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", p.ID).
		Select("name", "description", "category", "price", "is_active", "updated_at").
		Updates(model.Product{
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			IsActive:    p.IsActive,
		})
	return affected(res, repo.ErrNotFound)
}

func (r *ProductGormRepository) SoftDelete(ctx context.Context, id int64) error {
	return affected(r.db.WithContext(ctx).Delete(&model.Product{}, id), repo.ErrNotFound)
}

// =====================
// 在庫
// =====================

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) stock(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Product{})
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.stock(ctx).Where("id = ?", productID).Update("stock", newStock)
	return affected(res, repo.ErrNotFound)
}

// 条件付きUPDATE1文。同じ行への更新は行ロックで直列化されるので在庫は負にならない
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.stock(ctx).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.stock(ctx).Unscoped().
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))
	return affected(res, repo.ErrNotFound)
}
