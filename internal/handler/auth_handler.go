package handler

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/usecase"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	registerUC *auth.RegisterUserUsecase // 会員登録usecase
	loginUC    *auth.LoginUsecase        // ログインusecase
	limiter    *middleware.RateLimiter
}

// DIコンストラクタ
func NewAuthHandler(registerUC *auth.RegisterUserUsecase, loginUC *auth.LoginUsecase, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{registerUC: registerUC, loginUC: loginUC, limiter: limiter}
}

// /auth/register のリクエストボディ
type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// /auth/login のリクエストボディ
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth", rateLimitOrNoop(h.limiter))
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
}

// POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmailFormat):
			return badRequest(c, "invalid email format")
		case errors.Is(err, auth.ErrPasswordTooShort):
			return badRequest(c, "password too short")
		case errors.Is(err, auth.ErrWeakPassword):
			return badRequest(c, "weak password")
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "email already exists", Kind: usecase.KindConflict})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	out, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials", Kind: usecase.KindUnauthenticated})
		case errors.Is(err, auth.ErrUserInactive):
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "user is inactive", Kind: usecase.KindForbidden})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
