package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// nilのフィールドは条件に使わない
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// 監査ログは追記のみ。更新/削除は持たない
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	// 新しい順。totalはLimit/Offset適用前の件数
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}
