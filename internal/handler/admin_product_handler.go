package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductCreateRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"max=100"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock" validate:"gte=0"`
	IsActive    bool            `json:"is_active"`
}

// 在庫更新の入力
type InventoryUpdateRequest struct {
	Stock  int64  `json:"stock" validate:"gte=0"`
	Reason string `json:"reason" validate:"max=200"`
}

type ProductCreatedResponse struct {
	ID int64 `json:"id"`
}

// /admin/products をまとめる
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.PUT("/products/:id/stock", h.updateInventory)
}

func (req ProductCreateRequest) toInput() usecase.AdminCreateProductInput {
	return usecase.AdminCreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductCreateRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	id, err := h.uc.AdminCreateProduct(c.Request().Context(), adminID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, ProductCreatedResponse{ID: id})
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductCreateRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	if err := h.uc.AdminUpdateProduct(c.Request().Context(), adminID, id, req.toInput()); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *AdminProductHandler) updateInventory(c echo.Context) error {
	productID, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req InventoryUpdateRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	if err := h.uc.AdminUpdateInventory(c.Request().Context(), adminID, productID, req.Stock, req.Reason); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "stock updated"})
}
