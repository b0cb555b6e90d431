package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const HeaderWebhookSignature = "X-Webhook-Signature"

// webhookの本文上限
const maxWebhookBody = 64 << 10

// 本文のHMAC-SHA256（hex）を検証する。secretが空なら検証しない（devのみ。prodはconfigで必須）
func WebhookSignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}

			body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
			if err != nil {
				return deny(c, http.StatusBadRequest, usecase.KindValidation, "invalid body")
			}
			if len(body) > maxWebhookBody {
				return deny(c, http.StatusRequestEntityTooLarge, usecase.KindValidation, "body too large")
			}

			sig := strings.TrimSpace(c.Request().Header.Get(HeaderWebhookSignature))
			sig = strings.TrimPrefix(sig, "sha256=")
			got, err := hex.DecodeString(sig)
			if err != nil || len(got) == 0 || !hmac.Equal(got, SignWebhook(secret, body)) {
				return deny(c, http.StatusUnauthorized, usecase.KindUnauthenticated, "invalid signature")
			}

			//handlerでもう一度読めるように戻す
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}

func SignWebhook(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
