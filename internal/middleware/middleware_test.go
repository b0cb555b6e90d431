package middleware

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/time/rate"
)

type userRepoMock struct {
	mock.Mock
}

func (m *userRepoMock) Create(ctx context.Context, user *model.User) error {
	panic("not used in middleware tests")
}
func (m *userRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}
func (m *userRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	panic("not used in middleware tests")
}
func (m *userRepoMock) Update(ctx context.Context, user *model.User) error {
	panic("not used in middleware tests")
}
func (m *userRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) (int, error) {
	panic("not used in middleware tests")
}

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "7",
		"role": "USER",
		"tv":   2,
		"exp":  time.Now().Add(time.Minute).Unix(),
	}
}

func run(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthJWT(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		assert.Equal(t, int64(7), c.Get(CtxUserIDKey))
		assert.Equal(t, "USER", c.Get(CtxUserRoleKey))
		assert.Equal(t, 2, c.Get(CtxTokenVersionKey))
		return c.NoContent(http.StatusNoContent)
	}, AuthJWT(cfg))

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	numericSub := validClaims()
	numericSub["sub"] = 7
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + signToken(t, validClaims(), testSecret), http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, validClaims(), "other"), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, expired, testSecret), http.StatusUnauthorized},
		{"numeric sub rejected", "Bearer " + signToken(t, numericSub, testSecret), http.StatusUnauthorized},
		{"unsigned", "Bearer " + noneToken, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, run(e, req).Code)
		})
	}
}

func TestAuthJWT_ErrorBodyCarriesKind(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, AuthJWT(config.Config{JWTSecret: testSecret}))

	rec := run(e, httptest.NewRequest(http.MethodGet, "/me", nil))

	var body map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, "Unauthenticated", body["kind"])
}

func withIdentity(userID int64, role string, tv int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxTokenVersionKey, tv)
			return next(c)
		}
	}
}

func TestTokenVersionGuard(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		err  error
		want int
	}{
		{"match", &model.User{ID: 7, TokenVersion: 2, IsActive: true}, nil, http.StatusOK},
		{"revoked", &model.User{ID: 7, TokenVersion: 3, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 7, TokenVersion: 2, IsActive: false}, nil, http.StatusForbidden},
		{"missing user", nil, repository.ErrUserNotFound, http.StatusUnauthorized},
		{"lookup failure", nil, errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(userRepoMock)
			users.On("FindByID", mock.Anything, int64(7)).Return(tt.user, tt.err)

			e := echo.New()
			e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
				withIdentity(7, "USER", 2), TokenVersionGuard(users))

			assert.Equal(t, tt.want, run(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
			users.AssertExpectations(t)
		})
	}
}

func TestAdminRoleGuard(t *testing.T) {
	for role, want := range map[string]int{"ADMIN": http.StatusOK, "USER": http.StatusForbidden} {
		e := echo.New()
		e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			withIdentity(1, role, 0), AdminRoleGuard())
		assert.Equal(t, want, run(e, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code, role)
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	e := echo.New()
	e.POST("/orders", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, RateLimit(rl))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.RemoteAddr = ip + ":1234"
		return run(e, req).Code
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1"))
	assert.Equal(t, http.StatusCreated, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	//別IPは別バケット
	assert.Equal(t, http.StatusCreated, send("10.0.0.2"))
}

func TestWebhookSignature(t *testing.T) {
	const secret = "hook-secret"
	body := `{"referenceId":"abc","status":"SUCCESSFUL"}`
	good := hex.EncodeToString(SignWebhook(secret, []byte(body)))

	newEcho := func(secret string) *echo.Echo {
		e := echo.New()
		e.POST("/payments/webhook", func(c echo.Context) error {
			var m map[string]string
			if err := c.Bind(&m); err != nil {
				return err
			}
			return c.String(http.StatusOK, m["referenceId"])
		}, WebhookSignature(secret))
		return e
	}

	post := func(e *echo.Echo, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if sig != "" {
			req.Header.Set(HeaderWebhookSignature, sig)
		}
		return run(e, req)
	}

	t.Run("valid signature keeps body readable", func(t *testing.T) {
		rec := post(newEcho(secret), good)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc", rec.Body.String())
	})
	t.Run("sha256 prefix", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, post(newEcho(secret), "sha256="+good).Code)
	})
	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, post(newEcho(secret), "").Code)
	})
	t.Run("tampered", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, post(newEcho(secret), hex.EncodeToString(SignWebhook("other", []byte(body)))).Code)
	})
	t.Run("no secret configured", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, post(newEcho(""), "").Code)
	})
}
