// internal/domain/product.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Product is a sellable item owned by the catalog. Stock quantity is
// mutated only by the settlement ledger or explicit stock adjustments.
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Category      string          `db:"category" json:"category"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`         // NUMERIC(20, 4) in DB
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unit_cost"`           // NUMERIC(20, 4) in DB
	StockQuantity int64           `db:"stock_quantity" json:"stock_quantity"` // Units on hand
	LowStockAt    int64           `db:"low_stock_at" json:"low_stock_at"`     // Threshold for low-stock flag
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewProduct creates a new Product instance.
func NewProduct(name, category string, unitPrice, unitCost decimal.Decimal, stock, lowStockAt int64) *Product {
	now := time.Now().UTC()
	return &Product{
		Name:          name,
		Category:      category,
		UnitPrice:     unitPrice,
		UnitCost:      unitCost,
		StockQuantity: stock,
		LowStockAt:    lowStockAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// LowStock reports whether the product is at or below its low-stock threshold.
func (p *Product) LowStock() bool {
	return p.StockQuantity <= p.LowStockAt
}
