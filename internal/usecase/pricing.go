package usecase

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文したい1行（数量だけ。価格はクライアントから受け取らない）
type CartLine struct {
	ProductID int64
	Quantity  int64
}

// 検証済みの1行。価格はDBの値
type VerifiedLine struct {
	Product   model.Product
	Quantity  int64
	UnitPrice decimal.Decimal
}

func (l VerifiedLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type VerifiedCart struct {
	Lines []VerifiedLine
	Total decimal.Decimal
}

// 同じ商品IDの行をまとめる（最初に出てきた順を保つ）
func MergeCartLines(lines []CartLine) []CartLine {
	idx := make(map[int64]int, len(lines))
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// 価格と在庫の検証。読むだけで書き込みはしない
func VerifyCart(ctx context.Context, products repo.ProductRepository, lines []CartLine) (VerifiedCart, error) {
	if len(lines) == 0 {
		return VerifiedCart{}, NewHTTPError(http.StatusBadRequest, "items required")
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			return VerifiedCart{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if l.Quantity < 1 {
			return VerifiedCart{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
		}
		ids = append(ids, l.ProductID)
	}

	//1回のSELECTでまとめて取得
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return VerifiedCart{}, errDB()
	}
	byID := make(map[int64]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	out := VerifiedCart{
		Lines: make([]VerifiedLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		//非公開の商品も「無い」扱い
		if !ok || !p.IsActive {
			return VerifiedCart{}, NewKindError(http.StatusNotFound, KindNotFound, fmt.Sprintf("product %d not found", l.ProductID))
		}
		if l.Quantity > p.Stock {
			return VerifiedCart{}, NewKindError(http.StatusBadRequest, KindInsufficientStock, fmt.Sprintf("insufficient stock for product %d", l.ProductID))
		}

		vl := VerifiedLine{Product: p, Quantity: l.Quantity, UnitPrice: p.Price}
		out.Lines = append(out.Lines, vl)
		out.Total = out.Total.Add(vl.LineTotal())
	}
	return out, nil
}
