package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductUsecase(s *memStore) *usecase.ProductUsecase {
	return usecase.NewProductUsecase(memProducts{s}, s)
}

func TestProductUsecase_ListPublic_Validation(t *testing.T) {
	uc := newProductUsecase(newMemStore())
	ctx := context.Background()
	neg := decimal.NewFromInt(-1)
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)

	tests := []struct {
		name string
		in   usecase.ListProductsInput
	}{
		{"page", usecase.ListProductsInput{Page: 0, Limit: 20}},
		{"limit", usecase.ListProductsInput{Page: 1, Limit: 101}},
		{"negative min", usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: &neg}},
		{"min greater than max", usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: &lo, MaxPrice: &hi}},
		{"sort", usecase.ListProductsInput{Page: 1, Limit: 20, Sort: "random"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.ListPublicProducts(ctx, tt.in)
			requireHTTPError(t, err, http.StatusBadRequest, usecase.KindValidation)
		})
	}
}

func TestProductUsecase_AdminLifecycle(t *testing.T) {
	s := newMemStore()
	uc := newProductUsecase(s)
	ctx := context.Background()

	id, err := uc.AdminCreateProduct(ctx, 1, usecase.AdminCreateProductInput{
		Name:     " Coffee ",
		Category: "drinks",
		Price:    decimal.RequireFromString("4.50"),
		Stock:    10,
		IsActive: true,
	})
	require.NoError(t, err)

	p, err := uc.GetProductDetail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", p.Name)

	// 商品更新では在庫は変わらない
	err = uc.AdminUpdateProduct(ctx, 1, id, usecase.AdminCreateProductInput{
		Name:     "Coffee",
		Price:    decimal.RequireFromString("5.00"),
		Stock:    999,
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.stock(id))

	require.NoError(t, uc.AdminUpdateInventory(ctx, 1, id, 3, "recount"))
	assert.Equal(t, int64(3), s.stock(id))

	err = uc.AdminUpdateInventory(ctx, 1, id, 3, " ")
	requireHTTPError(t, err, http.StatusBadRequest, usecase.KindValidation)

	require.NoError(t, uc.AdminDeleteProduct(ctx, 1, id))
	_, err = uc.GetProductDetail(ctx, id)
	requireHTTPError(t, err, http.StatusNotFound, usecase.KindNotFound)

	assert.Equal(t, 4, s.auditCount())
}

func TestProductUsecase_PriceValidation(t *testing.T) {
	uc := newProductUsecase(newMemStore())
	ctx := context.Background()

	for _, price := range []string{"-1", "1.234", "10000000000"} {
		_, err := uc.AdminCreateProduct(ctx, 1, usecase.AdminCreateProductInput{
			Name:  "X",
			Price: decimal.RequireFromString(price),
		})
		requireHTTPError(t, err, http.StatusBadRequest, usecase.KindValidation)
	}

	_, err := uc.AdminCreateProduct(ctx, 0, usecase.AdminCreateProductInput{Name: "X", Price: decimal.NewFromInt(1)})
	requireHTTPError(t, err, http.StatusUnauthorized, usecase.KindUnauthenticated)
}

func TestProductUsecase_HiddenProductIsNotFound(t *testing.T) {
	s := newMemStore()
	uc := newProductUsecase(s)
	id, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminCreateProductInput{
		Name:  "Draft",
		Price: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	_, err = uc.GetProductDetail(context.Background(), id)
	requireHTTPError(t, err, http.StatusNotFound, usecase.KindNotFound)
}
