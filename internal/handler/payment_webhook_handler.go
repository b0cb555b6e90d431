package handler

import (
	"encoding/json"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentWebhookHandler struct {
	uc      *usecase.PaymentWebhookUsecase
	secret  string
	limiter *middleware.RateLimiter
}

func NewPaymentWebhookHandler(uc *usecase.PaymentWebhookUsecase, secret string, limiter *middleware.RateLimiter) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{uc: uc, secret: secret, limiter: limiter}
}

// プロバイダのコールバック本文
type PaymentCallbackRequest struct {
	ReferenceID            string     `json:"referenceId"`
	ExternalID             externalID `json:"externalId"`
	FinancialTransactionID string     `json:"financialTransactionId"`
	Status                 string     `json:"status"`
	Reason                 string     `json:"reason"`
}

func (h *PaymentWebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/webhook", h.callback,
		rateLimitOrNoop(h.limiter),
		middleware.WebhookSignature(h.secret),
	)
}

func (h *PaymentWebhookHandler) callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	res, err := h.uc.HandleCallback(c.Request().Context(), usecase.PaymentCallbackInput{
		ReferenceID:            req.ReferenceID,
		ExternalID:             string(req.ExternalID),
		FinancialTransactionID: req.FinancialTransactionID,
		Status:                 req.Status,
		Reason:                 req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}

	msg := "processed"
	if res.Matched == 0 {
		msg = "no matching payment"
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: msg})
}

// externalIdは文字列でも数値でも来る
type externalID string

func (x *externalID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*x = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*x = externalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*x = externalID(n.String())
	return nil
}
