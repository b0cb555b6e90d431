package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品。priceはサーバー側が正（クライアントの価格は信用しない）
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"type:varchar(100);not null;default:'';index" json:"category"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	//在庫は0未満にならない（DB側でもCHECK）
	Stock     int64          `gorm:"not null;check:chk_products_stock_nonnegative,stock >= 0" json:"stock"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
