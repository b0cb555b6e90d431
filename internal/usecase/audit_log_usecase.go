package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 管理者向けの監査ログ参照
type AuditLogUsecase struct {
	logs repo.AuditLogRepository
}

func NewAuditLogUsecase(logs repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{logs: logs}
}

type AuditLogListInput struct {
	Page         int
	Limit        int
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	From         string
	To           string
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *AuditLogUsecase) List(ctx context.Context, in AuditLogListInput) (AuditLogListOutput, error) {
	if in.Page < 1 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 200 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      (in.Page - 1) * in.Limit,
	}

	if in.Action != "" {
		a := model.AuditAction(in.Action)
		switch a {
		case model.AuditActionCreateProduct, model.AuditActionUpdateProduct, model.AuditActionDeleteProduct,
			model.AuditActionUpdateStock, model.AuditActionUpdateOrderStatus:
		default:
			return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid action")
		}
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		if rt != model.AuditResourceProduct && rt != model.AuditResourceOrder {
			return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
		f.ResourceType = &rt
	}
	if in.From != "" {
		tm, ok := ParseDateTimeRFC3339(in.From)
		if !ok {
			return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid from")
		}
		f.CreatedFrom = tm
	}
	if in.To != "" {
		tm, ok := ParseDateTimeRFC3339(in.To)
		if !ok {
			return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid to")
		}
		f.CreatedTo = tm
	}

	items, total, err := u.logs.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, errDB()
	}
	if items == nil {
		items = []model.AuditLog{}
	}
	return AuditLogListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}
