package negotiation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog's view of a product relevant to negotiations
type Product struct {
	ID             uuid.UUID       `json:"id"`
	ManufacturerID uuid.UUID       `json:"manufacturer_id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Active         bool            `json:"active"`
}

// ProductCatalog supplies product validity and base price. Unknown products
// yield shared.ErrNotFound.
type ProductCatalog interface {
	Product(ctx context.Context, productID uuid.UUID) (*Product, error)
}
