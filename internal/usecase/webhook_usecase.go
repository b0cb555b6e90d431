package usecase

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 決済プロバイダからのコールバック
type PaymentCallbackInput struct {
	ReferenceID            string // 決済開始時のX-Reference-Id（= transaction_id）
	ExternalID             string // 注文ID
	FinancialTransactionID string
	Status                 string
	Reason                 string
}

type PaymentCallbackResult struct {
	Matched    int     `json:"matched"`
	Updated    int     `json:"updated"`
	PaidOrders []int64 `json:"paid_orders,omitempty"`
}

type PaymentWebhookUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
	cache  OrderStatusCache
	log    *zap.Logger
}

func NewPaymentWebhookUsecase(tx repo.TransactionManager, events EventPublisher, cache OrderStatusCache, log *zap.Logger) *PaymentWebhookUsecase {
	if events == nil {
		events = NopPublisher()
	}
	if cache == nil {
		cache = NopStatusCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentWebhookUsecase{tx: tx, events: events, cache: cache, log: log}
}

// 同じpayloadが何度来ても結果は同じ。
// 確定済み（success/failure）の決済は別の値で上書きしない
func (u *PaymentWebhookUsecase) HandleCallback(ctx context.Context, in PaymentCallbackInput) (PaymentCallbackResult, error) {
	raw := strings.ToUpper(strings.TrimSpace(in.Status))
	if raw == "" {
		return PaymentCallbackResult{}, NewHTTPError(http.StatusBadRequest, "status required")
	}
	ref := strings.TrimSpace(in.ReferenceID)
	ext := strings.TrimSpace(in.ExternalID)
	if ref == "" && ext == "" {
		return PaymentCallbackResult{}, NewHTTPError(http.StatusBadRequest, "referenceId or externalId required")
	}
	var orderID int64
	if ext != "" {
		id, err := strconv.ParseInt(ext, 10, 64)
		if err != nil || id <= 0 {
			return PaymentCallbackResult{}, NewHTTPError(http.StatusBadRequest, "invalid externalId")
		}
		orderID = id
	}

	mapped, known := model.PaymentStatusFromProvider(raw)
	if !known {
		u.log.Warn("unknown provider status, treated as pending", zap.String("status", raw))
	}

	var res PaymentCallbackResult
	var paid []model.Order
	touched := map[int64]bool{}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		payments, err := r.Payments().FindForCallback(ctx, ref, orderID)
		if err != nil {
			return errDB()
		}
		res.Matched = len(payments)

		successOrders := make([]int64, 0, len(payments))
		for _, p := range payments {
			if p.Status == mapped {
				if mapped == model.PaymentStatusSuccess {
					successOrders = append(successOrders, p.OrderID)
				}
				continue
			}
			if !model.CanTransitionPayment(p.Status, mapped) {
				u.log.Warn("payment status change refused",
					zap.Int64("payment_id", p.ID),
					zap.String("from", string(p.Status)),
					zap.String("to", string(mapped)),
				)
				continue
			}
			if err := r.Payments().UpdateStatus(ctx, p.ID, mapped, raw); err != nil {
				return errDB()
			}
			res.Updated++
			touched[p.OrderID] = true
			if mapped == model.PaymentStatusSuccess {
				successOrders = append(successOrders, p.OrderID)
			}
		}

		//成功ならPENDING→PAID。すでにPAID以降なら何もしない
		seen := map[int64]bool{}
		for _, id := range successOrders {
			if seen[id] {
				continue
			}
			seen[id] = true

			ok, err := r.Orders().UpdateStatusIf(ctx, id, model.OrderStatusPending, model.OrderStatusPaid)
			if err != nil {
				return errDB()
			}
			o, err := r.Orders().FindByID(ctx, id)
			if err != nil {
				return errDB()
			}
			if !ok {
				// 再送でPAID済みなら黙って通す。それ以外は決済と注文が食い違っている
				if o.Status != model.OrderStatusPaid {
					u.log.Warn("payment succeeded for order not pending",
						zap.Int64("order_id", id),
						zap.String("status", string(o.Status)),
					)
				}
				continue
			}
			paid = append(paid, o)
			touched[id] = true
		}
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return PaymentCallbackResult{}, err
		}
		return PaymentCallbackResult{}, errDB()
	}

	if res.Matched == 0 {
		u.log.Info("payment callback matched nothing",
			zap.String("reference_id", ref),
			zap.String("external_id", ext),
			zap.String("status", raw),
		)
		return res, nil
	}

	//キャッシュは消して次の読み込みで作り直す。PAIDになった注文は新しい値を入れる
	for id := range touched {
		if err := u.cache.Delete(ctx, id); err != nil {
			u.log.Warn("order status cache delete failed", zap.Int64("order_id", id), zap.Error(err))
		}
	}
	for _, o := range paid {
		res.PaidOrders = append(res.PaidOrders, o.ID)
		if err := u.cache.Set(ctx, OrderStatusSnapshot{
			OrderID:       o.ID,
			UserID:        o.UserID,
			Status:        o.Status,
			PaymentStatus: model.PaymentStatusSuccess,
		}); err != nil {
			u.log.Warn("order status cache set failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
		publishOrderEvent(ctx, u.events, u.log, EventOrderPaid, o)
	}

	u.log.Info("payment callback processed",
		zap.String("reference_id", ref),
		zap.String("external_id", ext),
		zap.String("status", raw),
		zap.String("reason", in.Reason),
		zap.Int("matched", res.Matched),
		zap.Int("updated", res.Updated),
		zap.Int("orders_paid", len(paid)),
	)
	return res, nil
}
