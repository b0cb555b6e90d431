package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminAuditLogHandler struct {
	uc *usecase.AuditLogUsecase
}

func NewAdminAuditLogHandler(uc *usecase.AuditLogUsecase) *AdminAuditLogHandler {
	return &AdminAuditLogHandler{uc: uc}
}

func (h *AdminAuditLogHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/audit-logs", h.list)
}

func (h *AdminAuditLogHandler) list(c echo.Context) error {
	in := usecase.AuditLogListInput{
		Page:         1,
		Limit:        50,
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		From:         c.QueryParam("from"),
		To:           c.QueryParam("to"),
	}

	var actorID, resourceID int64
	err := echo.QueryParamsBinder(c).
		Int("page", &in.Page).
		Int("limit", &in.Limit).
		Int64("actor_user_id", &actorID).
		Int64("resource_id", &resourceID).
		BindError()
	if err != nil {
		return queryError(c, err)
	}
	in.ActorUserID = ifPresent(c, "actor_user_id", actorID)
	in.ResourceID = ifPresent(c, "resource_id", resourceID)

	out, err := h.uc.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
