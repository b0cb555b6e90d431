package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文ヘッダ。total_priceは作成後に変わらない
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;index" json:"user_id"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	//オンライン決済のときだけ入る
	CustomerPhone *string   `gorm:"type:varchar(30)" json:"customer_phone,omitempty"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
