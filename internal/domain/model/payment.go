package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 決済レコード。決済開始に成功したときだけ作られ、webhookでだけ更新される
type Payment struct {
	ID       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID  int64           `gorm:"not null;index" json:"order_id"`
	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null" json:"currency"`
	Method   PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Status   PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	//プロバイダが返した生のステータスコード
	ProviderStatus string    `gorm:"type:varchar(40);not null;default:''" json:"provider_status"`
	TransactionID  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id"`
	PayerPhone     string    `gorm:"type:varchar(30);not null" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
