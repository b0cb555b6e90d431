package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
	cache  OrderStatusCache
	log    *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events EventPublisher, cache OrderStatusCache, log *zap.Logger) *AdminOrderUsecase {
	if events == nil {
		events = NopPublisher()
	}
	if cache == nil {
		cache = NopStatusCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, events: events, cache: cache, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" {
		st, ok := model.ParseOrderStatus(f.Status)
		if !ok {
			return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = string(st)
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}

		out.Total = total
		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			out.Items = append(out.Items, toOrderOutput(o, items, nil))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// ステータス更新（CANCELLEDなら同じTxで在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var updated model.Order
	changed := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			return nil
		}
		if !model.CanTransition(o.Status, newStatus) {
			return NewHTTPError(http.StatusConflict, "cannot change "+strings.ToLower(string(o.Status))+" order to "+string(newStatus))
		}
		//オンライン決済のPAIDはwebhookだけが付ける
		if newStatus == model.OrderStatusPaid && o.PaymentMethod.RequiresOnlinePayment() {
			return NewHTTPError(http.StatusConflict, "online-wallet orders are marked paid by the payment provider")
		}

		// newStatusがCANCELLEDのときだけ在庫戻し
		if newStatus == model.OrderStatusCancelled {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return errDB()
			}

			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return errDB()
				}
			}
		}

		// ステータス更新（読んだ後に変わっていたら409）
		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, o.Status, newStatus)
		if err != nil {
			return errDB()
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order status changed concurrently")
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON := `{"status":"` + string(o.Status) + `"}`
		afterJSON := `{"status":"` + string(newStatus) + `"}`
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    time.Now(),
		}); err != nil {
			return errDB()
		}

		o.Status = newStatus
		updated = o
		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	u.log.Info("order status updated by admin",
		zap.Int64("order_id", orderID),
		zap.Int64("admin_user_id", actorAdminUserID),
		zap.String("status", string(newStatus)),
	)
	if err := u.cache.Delete(ctx, orderID); err != nil {
		u.log.Warn("order status cache delete failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if newStatus == model.OrderStatusCancelled {
		publishOrderEvent(ctx, u.events, u.log, EventOrderCancelled, updated)
	}
	return nil
}

// 期間パラメータ（RFC3339）。空ならnil
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
