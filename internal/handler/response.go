package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string            `json:"error"`
	Kind  usecase.ErrorKind `json:"kind,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Kind: he.Kind})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: usecase.KindInternal})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: usecase.KindValidation})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Kind: usecase.KindUnauthenticated})
}

// :id は正の整数のみ
func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// QueryParamsBinderの失敗を "invalid <param>" の400にする
func queryError(c echo.Context, err error) error {
	var be *echo.BindingError
	if errors.As(err, &be) {
		return badRequest(c, "invalid "+be.Field)
	}
	return badRequest(c, "invalid query")
}

// クエリに値があったときだけvを返す
func ifPresent[T any](c echo.Context, name string, v T) *T {
	if c.QueryParam(name) == "" {
		return nil
	}
	return &v
}

// Bind + Validate。失敗したらそのまま400を書く（呼び出し側はhandledがtrueならreturn）
func bindAndValidate(c echo.Context, req interface{}) (handled bool, err error) {
	if err := c.Bind(req); err != nil {
		return true, badRequest(c, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			return true, badRequest(c, ve.Error())
		}
		return true, badRequest(c, "invalid body")
	}
	return false, nil
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

// nilなら何もしないミドルウェア
func rateLimitOrNoop(rl *middleware.RateLimiter) echo.MiddlewareFunc {
	if rl == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimit(rl)
}
