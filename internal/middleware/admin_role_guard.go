package middleware

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AdminRoleGuard はAuthJWTの後ろに置く。ADMIN以外は403。
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserRoleKey).(string)
			switch model.Role(role) {
			case "":
				return unauthenticated(c)
			case model.RoleAdmin:
				return next(c)
			default:
				return deny(c, http.StatusForbidden, usecase.KindForbidden, "admin only")
			}
		}
	}
}
