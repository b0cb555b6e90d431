package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath        = "/collection/token/"
	requestToPayPath = "/collection/v1_0/requesttopay"
)

// つながらない/タイムアウト/5xx。usecase側ではErrPaymentGatewayUnavailableとして扱える
var ErrProviderUnavailable = fmt.Errorf("momo: %w", usecase.ErrPaymentGatewayUnavailable)

// プロバイダが4xxで断った
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("momo: provider returned %d: %s", e.StatusCode, e.Body)
}

// モバイルマネーのcollection API クライアント。
// トークンはclient credentialsで取得し、期限までは使い回す（oauth2のTokenSource）
type Client struct {
	baseURL     string
	targetEnv   string
	callbackURL string
	http        *http.Client
	log         *zap.Logger
}

func NewClient(cfg config.MoMoConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	//全リクエストにサブスクリプションキーを付ける（トークン取得も含む）
	base := &http.Client{
		Timeout:   timeout,
		Transport: &subscriptionKeyTransport{key: cfg.SubscriptionKey, next: http.DefaultTransport},
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := cc.Client(tokenCtx)
	authed.Timeout = timeout

	return &Client{
		baseURL:     cfg.BaseURL,
		targetEnv:   cfg.TargetEnv,
		callbackURL: cfg.CallbackURL,
		http:        authed,
		log:         log,
	}
}

type subscriptionKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *subscriptionKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.key != "" {
		r.Header.Set("Ocp-Apim-Subscription-Key", t.key)
	}
	return t.next.RoundTrip(r)
}

type payer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type requestToPayBody struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        payer  `json:"payer"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

// 支払い依頼。受け付けられたらX-Reference-Idを取引IDとして返す
func (c *Client) RequestToPay(ctx context.Context, req usecase.PaymentRequest) (usecase.PaymentInitiation, error) {
	refID := uuid.NewString()

	body, err := json.Marshal(requestToPayBody{
		Amount:       req.Amount.String(),
		Currency:     req.Currency,
		ExternalID:   strconv.FormatInt(req.OrderID, 10),
		Payer:        payer{PartyIDType: "MSISDN", PartyID: req.Phone},
		PayerMessage: req.Note,
		PayeeNote:    req.Note,
	})
	if err != nil {
		return usecase.PaymentInitiation{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+requestToPayPath, bytes.NewReader(body))
	if err != nil {
		return usecase.PaymentInitiation{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Reference-Id", refID)
	httpReq.Header.Set("X-Target-Environment", c.targetEnv)
	if c.callbackURL != "" {
		httpReq.Header.Set("X-Callback-Url", c.callbackURL)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return usecase.PaymentInitiation{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		c.log.Debug("momo request-to-pay accepted",
			zap.Int64("order_id", req.OrderID),
			zap.String("reference_id", refID),
		)
		return usecase.PaymentInitiation{TransactionID: refID, ProviderStatus: "PENDING"}, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= 500 {
		return usecase.PaymentInitiation{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return usecase.PaymentInitiation{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
}

// トークン取得の失敗はoauth2.RetrieveErrorとして返ってくる
func classifyTransportError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode < 500 {
			return &ProviderError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
		}
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
