package repository

import "context"

// 1つのDBトランザクションに束ねたrepo群。fnの外へ持ち出さないこと
type TxRepos interface {
	Products() ProductRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Payments() PaymentRepository
	AuditLogs() AuditLogRepository
}

// fnがerrorならrollback、nilならcommit。返すerrorはfnのものをそのまま
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
