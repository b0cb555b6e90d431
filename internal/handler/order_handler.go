package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	uc      *usecase.OrderUsecase
	limiter *middleware.RateLimiter
}

func NewOrderHandler(uc *usecase.OrderUsecase, limiter *middleware.RateLimiter) *OrderHandler {
	return &OrderHandler{uc: uc, limiter: limiter}
}

type CheckoutItemRequest struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int64 `json:"quantity" validate:"gte=1,lte=1000"`
	//受け取るが使わない（価格はサーバーの値）
	Price *decimal.Decimal `json:"price,omitempty"`
}

type CheckoutRequest struct {
	PaymentMethod string                `json:"payment_method" validate:"required,oneof=online-wallet in-person chat-assisted"`
	Items         []CheckoutItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Phone         *string               `json:"phone,omitempty" validate:"omitempty,phone"`
}

type RetryPaymentRequest struct {
	Phone *string `json:"phone,omitempty" validate:"omitempty,phone"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.create, rateLimitOrNoop(h.limiter))
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.GET("/:id/status", h.status)
	g.POST("/:id/payment", h.retryPayment, rateLimitOrNoop(h.limiter))
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req CheckoutRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	lines := make([]usecase.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, usecase.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.uc.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		PaymentMethod: req.PaymentMethod,
		Items:         lines,
		Phone:         req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}

	//決済に失敗しても注文はできているので201
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) retryPayment(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req RetryPaymentRequest
	if c.Request().ContentLength != 0 {
		if handled, err := bindAndValidate(c, &req); handled {
			return err
		}
	}

	out, err := h.uc.RetryPayment(c.Request().Context(), userID, id, usecase.RetryPaymentInput{Phone: req.Phone})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	page, limit := 1, 20
	if err := echo.QueryParamsBinder(c).Int("page", &page).Int("limit", &limit).BindError(); err != nil {
		return queryError(c, err)
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) status(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetOrderStatus(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
