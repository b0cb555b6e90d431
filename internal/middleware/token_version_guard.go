package middleware

import (
	"errors"
	"net/http"

	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// TokenVersionGuard はJWTのtvとDBのtoken_versionを突き合わせる。
// force-logout後の古いトークンはここで401になる。
func TokenVersionGuard(users repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, okID := c.Get(CtxUserIDKey).(int64)
			tv, okTV := c.Get(CtxTokenVersionKey).(int)
			if !okID || !okTV || userID <= 0 || tv < 0 {
				return unauthenticated(c)
			}

			user, err := users.FindByID(c.Request().Context(), userID)
			switch {
			case errors.Is(err, repository.ErrUserNotFound) || (err == nil && user == nil):
				return unauthenticated(c)
			case err != nil:
				c.Logger().Errorf("token version lookup user_id=%d: %v", userID, err)
				return deny(c, http.StatusInternalServerError, usecase.KindInternal, "internal error")
			}

			if !user.IsActive {
				return deny(c, http.StatusForbidden, usecase.KindForbidden, "user inactive")
			}
			if user.TokenVersion != tv {
				return unauthenticated(c)
			}
			return next(c)
		}
	}
}
