package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 公開カタログ。認証なし
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
}

// GET /products?page&limit&q&category&min_price&max_price&sort
func (h *ProductHandler) list(c echo.Context) error {
	in := usecase.ListProductsInput{Page: 1, Limit: 20}
	var minPrice, maxPrice decimal.Decimal
	err := echo.QueryParamsBinder(c).
		Int("page", &in.Page).
		Int("limit", &in.Limit).
		String("q", &in.Q).
		String("category", &in.Category).
		String("sort", &in.Sort).
		TextUnmarshaler("min_price", &minPrice).
		TextUnmarshaler("max_price", &maxPrice).
		BindError()
	if err != nil {
		return queryError(c, err)
	}
	in.MinPrice = ifPresent(c, "min_price", minPrice)
	in.MaxPrice = ifPresent(c, "max_price", maxPrice)

	out, err := h.uc.ListPublicProducts(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
