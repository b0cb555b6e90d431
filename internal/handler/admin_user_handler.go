package handler

import (
	"errors"
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	cfg      config.Config
	userRepo repository.UserRepository
	uc       *auth.ForceLogoutUsecase
}

func NewAdminUserHandler(cfg config.Config, userRepo repository.UserRepository, uc *auth.ForceLogoutUsecase) *AdminUserHandler {
	return &AdminUserHandler{cfg: cfg, userRepo: userRepo, uc: uc}
}

func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo) {
	// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(h.cfg),
		middleware.TokenVersionGuard(h.userRepo),
		middleware.AdminRoleGuard(),
	)

	admin.POST("/users/:id/force-logout", h.ForceLogout)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	userID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	res, err := h.uc.Execute(c.Request().Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUserID):
			return badRequest(c, "invalid user_id")
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found", Kind: usecase.KindNotFound})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}
