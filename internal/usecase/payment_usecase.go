package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 決済開始の結果（レスポンスのpayment）
type PaymentOutput struct {
	ID             int64               `json:"id"`
	TransactionID  string              `json:"transaction_id"`
	Status         model.PaymentStatus `json:"status"`
	ProviderStatus string              `json:"provider_status"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       string              `json:"currency"`
	Method         model.PaymentMethod `json:"method"`
	CreatedAt      time.Time           `json:"created_at"`
}

// 決済開始の失敗（レスポンスのpayment_error）。注文自体は成功している
type PaymentErrorOutput struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type PaymentInitiator struct {
	payments repo.PaymentRepository
	gateway  PaymentGateway
	currency string
	timeout  time.Duration
	log      *zap.Logger
}

func NewPaymentInitiator(payments repo.PaymentRepository, gateway PaymentGateway, currency string, timeout time.Duration, log *zap.Logger) *PaymentInitiator {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentInitiator{
		payments: payments,
		gateway:  gateway,
		currency: currency,
		timeout:  timeout,
		log:      log,
	}
}

// コミット済みの注文に対して決済を開始する。
// プロバイダの失敗はerrorにせずPaymentErrorOutputで返す（注文は残す）。
// errorを返すのは電話番号が無い/不正のときだけ
func (p *PaymentInitiator) Initiate(ctx context.Context, order model.Order, phone string) (*PaymentOutput, *PaymentErrorOutput, error) {
	normalized, ok := model.NormalizePhone(phone)
	if !ok {
		return nil, nil, NewHTTPError(http.StatusBadRequest, "valid phone required for online-wallet payment")
	}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	init, err := p.gateway.RequestToPay(callCtx, PaymentRequest{
		OrderID:  order.ID,
		Amount:   order.TotalPrice,
		Currency: p.currency,
		Phone:    model.MSISDN(normalized),
		Note:     fmt.Sprintf("order %d", order.ID),
	})
	if err != nil {
		perr := classifyGatewayError(err)
		p.log.Warn("payment initiation failed",
			zap.Int64("order_id", order.ID),
			zap.String("kind", string(perr.Kind)),
			zap.Error(err),
		)
		return nil, perr, nil
	}

	providerStatus := strings.ToUpper(strings.TrimSpace(init.ProviderStatus))
	if providerStatus == "" {
		providerStatus = "PENDING"
	}

	//プロバイダが受け付けたときだけ保存
	saved, err := p.payments.Create(ctx, model.Payment{
		OrderID:        order.ID,
		Amount:         order.TotalPrice,
		Currency:       p.currency,
		Method:         order.PaymentMethod,
		Status:         model.PaymentStatusPending,
		ProviderStatus: providerStatus,
		TransactionID:  init.TransactionID,
		PayerPhone:     normalized,
	})
	if err != nil {
		//依頼は通っているので、webhookはorder_idで拾える
		p.log.Error("payment record insert failed",
			zap.Int64("order_id", order.ID),
			zap.String("transaction_id", init.TransactionID),
			zap.Error(err),
		)
		return nil, &PaymentErrorOutput{
			Kind:    KindInternal,
			Message: "payment requested but could not be recorded",
		}, nil
	}

	p.log.Info("payment initiated",
		zap.Int64("order_id", order.ID),
		zap.String("transaction_id", saved.TransactionID),
	)
	out := toPaymentOutput(saved)
	return &out, nil, nil
}

func classifyGatewayError(err error) *PaymentErrorOutput {
	if errors.Is(err, ErrPaymentGatewayUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return &PaymentErrorOutput{
			Kind:    KindPaymentProviderUnavailable,
			Message: "payment provider unavailable, retry later",
		}
	}
	return &PaymentErrorOutput{
		Kind:    KindPaymentProviderError,
		Message: "payment provider rejected the request",
	}
}

func toPaymentOutput(p model.Payment) PaymentOutput {
	return PaymentOutput{
		ID:             p.ID,
		TransactionID:  p.TransactionID,
		Status:         p.Status,
		ProviderStatus: p.ProviderStatus,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		CreatedAt:      p.CreatedAt,
	}
}
