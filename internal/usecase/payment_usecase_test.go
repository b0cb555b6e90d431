package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ctxが切れるまで返ってこないプロバイダ
type hangingGateway struct{}

func (hangingGateway) RequestToPay(ctx context.Context, req usecase.PaymentRequest) (usecase.PaymentInitiation, error) {
	<-ctx.Done()
	return usecase.PaymentInitiation{}, ctx.Err()
}

func walletOrder() model.Order {
	return model.Order{
		ID:            5,
		UserID:        1,
		Status:        model.OrderStatusPending,
		PaymentMethod: model.PaymentMethodOnlineWallet,
		TotalPrice:    decimal.RequireFromString("12.00"),
	}
}

func TestPaymentInitiator_TimeoutIsUnavailable(t *testing.T) {
	s := newMemStore()
	p := usecase.NewPaymentInitiator(s.PaymentRepo(), hangingGateway{}, "XAF", 20*time.Millisecond, nil)

	out, perr, err := p.Initiate(context.Background(), walletOrder(), "670000000")
	require.NoError(t, err)
	assert.Nil(t, out)
	require.NotNil(t, perr)
	assert.Equal(t, usecase.KindPaymentProviderUnavailable, perr.Kind)
	assert.Empty(t, s.paymentsOf(5))
}

func TestPaymentInitiator_InvalidPhone(t *testing.T) {
	g := &fakeGateway{}
	p := usecase.NewPaymentInitiator(newMemStore().PaymentRepo(), g, "XAF", time.Second, nil)

	_, _, err := p.Initiate(context.Background(), walletOrder(), "call me")
	requireHTTPError(t, err, http.StatusBadRequest, usecase.KindValidation)
	assert.Equal(t, 0, g.callCount())
}

func TestPaymentInitiator_RecordsPendingPayment(t *testing.T) {
	s := newMemStore()
	g := &fakeGateway{}
	p := usecase.NewPaymentInitiator(s.PaymentRepo(), g, "XAF", time.Second, nil)

	out, perr, err := p.Initiate(context.Background(), walletOrder(), "(670) 00.00.00")
	require.NoError(t, err)
	assert.Nil(t, perr)
	require.NotNil(t, out)
	assert.Equal(t, "PENDING", out.ProviderStatus)
	assert.Equal(t, "order 5", g.calls[0].Note)
	assert.Equal(t, "XAF", g.calls[0].Currency)

	ps := s.paymentsOf(5)
	require.Len(t, ps, 1)
	assert.Equal(t, model.PaymentStatusPending, ps[0].Status)
	assert.Equal(t, model.PaymentMethodOnlineWallet, ps[0].Method)
}
