package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

var errNoBearer = errors.New("bearer token required")

// accessClaims はアクセストークンのclaims。subはユーザーIDの10進文字列。
type accessClaims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

// AuthJWT はBearerトークンを検証し、user_id/role/tvをcontextへ載せる。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(cfg.JWTSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request())
			if err != nil {
				return unauthenticated(c)
			}

			var claims accessClaims
			token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				return unauthenticated(c)
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 || claims.Role == "" || claims.TokenVersion < 0 {
				return unauthenticated(c)
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenVersionKey, claims.TokenVersion)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNoBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNoBearer
	}
	return token, nil
}

// errorBody はhandler側のErrorResponseと同じ形。
type errorBody struct {
	Error string            `json:"error"`
	Kind  usecase.ErrorKind `json:"kind,omitempty"`
}

func deny(c echo.Context, status int, kind usecase.ErrorKind, msg string) error {
	return c.JSON(status, errorBody{Error: msg, Kind: kind})
}

func unauthenticated(c echo.Context) error {
	return deny(c, http.StatusUnauthorized, usecase.KindUnauthenticated, "unauthorized")
}
