package repository

import (
	"context"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 公開カタログの検索条件。Page/Limitはusecaseで検証済みの前提
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductRepository interface {
	// is_active かつ未削除のものだけ。totalはページング前の件数
	ListPublic(ctx context.Context, q ProductListQuery) (items []model.Product, total int64, err error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// チェックアウトの価格決定用。無いIDは黙って落とす
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	// stockは触らない（InventoryRepository経由）
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}

// 在庫の増減。すべて1文のUPDATEで完結させる
type InventoryRepository interface {
	SetStock(ctx context.Context, productID int64, newStock int64) error
	// stock >= qty のときだけ減らす。falseは在庫不足（または商品なし）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)
	// キャンセル時の戻し。論理削除済みの商品も対象
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
