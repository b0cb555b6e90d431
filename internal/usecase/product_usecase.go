package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, tx repo.TransactionManager) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		tx:          tx,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, errDB()
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, errDB()
	}

	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

// numeric(12,2)の上限
var maxPrice = decimal.New(1, 10)

type AdminCreateProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int64
	IsActive    bool
}

func validateProductInput(in AdminCreateProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if in.Price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	//numeric(12,2)に収まらない値は弾く
	if !in.Price.Equal(in.Price.Round(2)) {
		return NewHTTPError(http.StatusBadRequest, "price must have at most 2 decimals")
	}
	if in.Price.GreaterThanOrEqual(maxPrice) {
		return NewHTTPError(http.StatusBadRequest, "price too large")
	}
	if in.Stock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	return nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (int64, error) {
	if adminUserID <= 0 {
		return 0, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateProductInput(in); err != nil {
		return 0, err
	}

	var id int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := time.Now()
		p, err := r.Products().Create(ctx, model.Product{
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			Category:    strings.TrimSpace(in.Category),
			Price:       in.Price,
			Stock:       in.Stock,
			IsActive:    in.IsActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return errDB()
		}
		id = p.ID

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			AfterJSON:    productJSON(p),
			CreatedAt:    now,
		})
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return 0, err
		}
		return 0, errDB()
	}
	return id, nil
}

func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminCreateProductInput) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := validateProductInput(in); err != nil {
		return err
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		//在庫はPUT /admin/products/:id/stockで変える
		after := before
		after.Name = strings.TrimSpace(in.Name)
		after.Description = in.Description
		after.Category = strings.TrimSpace(in.Category)
		after.Price = in.Price
		after.IsActive = in.IsActive
		after.UpdatedAt = time.Now()

		if err := r.Products().Update(ctx, after); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return errDB()
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   productJSON(before),
			AfterJSON:    productJSON(after),
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return err
		}
		return errDB()
	}
	return nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.Products().SoftDelete(ctx, productID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionDeleteProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return err
		}
		return errDB()
	}
	return nil
}

// 在庫を「現在値」に更新。変更前後は監査ログに残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return errDB()
		}

		before, _ := json.Marshal(map[string]int64{"stock": p.Stock})
		after, _ := json.Marshal(map[string]any{"stock": newStock, "delta": newStock - p.Stock, "reason": strings.TrimSpace(reason)})

		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return err
		}
		return errDB()
	}
	return nil
}

func productJSON(p model.Product) string {
	b, err := json.Marshal(map[string]any{
		"name":      p.Name,
		"category":  p.Category,
		"price":     p.Price.StringFixed(2),
		"stock":     p.Stock,
		"is_active": p.IsActive,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}
