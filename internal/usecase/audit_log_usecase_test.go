package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogUsecase_List(t *testing.T) {
	s := newMemStore()
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, memAudit{s}.Create(context.Background(), model.AuditLog{
			ActorUserID:  1,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   id,
		}))
	}
	require.NoError(t, memAudit{s}.Create(context.Background(), model.AuditLog{
		ActorUserID:  1,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   9,
	}))
	uc := usecase.NewAuditLogUsecase(memAudit{s})

	out, err := uc.List(context.Background(), usecase.AuditLogListInput{Page: 1, Limit: 2, Action: "UPDATE_STOCK"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)
	require.Len(t, out.Items, 2)
	//新しい順
	assert.Equal(t, int64(3), out.Items[0].ResourceID)

	out, err = uc.List(context.Background(), usecase.AuditLogListInput{Page: 2, Limit: 2, Action: "UPDATE_STOCK"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(1), out.Items[0].ResourceID)

	bad := []usecase.AuditLogListInput{
		{Page: 0, Limit: 10},
		{Page: 1, Limit: 500},
		{Page: 1, Limit: 10, Action: "DROP_TABLE"},
		{Page: 1, Limit: 10, ResourceType: "user"},
		{Page: 1, Limit: 10, From: "yesterday"},
	}
	for _, in := range bad {
		_, err := uc.List(context.Background(), in)
		requireHTTPError(t, err, http.StatusBadRequest, usecase.KindValidation)
	}
}
