package handler

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	f := repository.AdminOrderListFilter{Page: 1, Limit: 50}
	var userID int64
	var from, to string
	err := echo.QueryParamsBinder(c).
		Int("page", &f.Page).
		Int("limit", &f.Limit).
		String("status", &f.Status).
		Int64("user_id", &userID).
		String("from", &from).
		String("to", &to).
		BindError()
	if err != nil {
		return queryError(c, err)
	}
	f.UserID = ifPresent(c, "user_id", userID)

	//from/toはRFC3339のみ
	for _, r := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{{"from", from, &f.From}, {"to", to, &f.To}} {
		if r.raw == "" {
			continue
		}
		tm, ok := usecase.ParseDateTimeRFC3339(r.raw)
		if !ok {
			return badRequest(c, "invalid "+r.name)
		}
		*r.dst = tm
	}

	out, err := h.uc.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	// 操作した管理者ID（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderStatusUpdateRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	if err := h.uc.UpdateStatus(
		c.Request().Context(),
		adminID,
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: req.Status},
	); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}
