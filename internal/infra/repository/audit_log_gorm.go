package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type AuditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) *AuditLogGormRepository {
	return &AuditLogGormRepository{db: db}
}

func (r *AuditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.db.WithContext(ctx).Create(&log).Error
}

func (r *AuditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{}).
		Scopes(createdBetween(f.CreatedFrom, f.CreatedTo))

	eq := map[string]interface{}{}
	if f.ActorUserID != nil {
		eq["actor_user_id"] = *f.ActorUserID
	}
	if f.Action != nil {
		eq["action"] = *f.Action
	}
	if f.ResourceType != nil {
		eq["resource_type"] = *f.ResourceType
	}
	if f.ResourceID != nil {
		eq["resource_id"] = *f.ResourceID
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := []model.AuditLog{}
	if err := q.Order("id desc").Offset(f.Offset).Limit(f.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
