// internal/service/stock_gate.go
package service

import (
	"context"
	"fmt"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"
)

// Availability is the soft stock answer surfaced at cart-edit time.
type Availability struct {
	OK             bool  `json:"ok"`
	AvailableStock int64 `json:"available_stock"`
	LowStock       bool  `json:"low_stock"`
}

// StockGate is the sole source of truth for "can this quantity be sold".
// CheckAvailability is advisory and may be stale; ReserveAndDecrement is
// the authoritative check, executed inside the settlement transaction.
type StockGate interface {
	CheckAvailability(ctx context.Context, productID, quantity int64) (*Availability, error)
	ReserveAndDecrement(ctx context.Context, q repository.DBExecutor, lines []domain.CartLine) error
}

type stockGate struct {
	dbExecutor  repository.DBExecutor
	productRepo repository.ProductRepository
}

// NewStockGate creates a StockGate over the product repository.
func NewStockGate(dbExecutor repository.DBExecutor, productRepo repository.ProductRepository) StockGate {
	return &stockGate{dbExecutor: dbExecutor, productRepo: productRepo}
}

// CheckAvailability reads current stock outside any transaction.
func (g *stockGate) CheckAvailability(ctx context.Context, productID, quantity int64) (*Availability, error) {
	if quantity < 1 {
		return nil, util.ErrInvalidInput
	}
	product, err := g.productRepo.GetProductByID(ctx, g.dbExecutor, productID)
	if err != nil {
		return nil, fmt.Errorf("check availability: failed to get product %d: %w", productID, err)
	}
	return &Availability{
		OK:             product.StockQuantity >= quantity,
		AvailableStock: product.StockQuantity,
		LowStock:       product.LowStock(),
	}, nil
}

// ReserveAndDecrement decrements every line or none. Any line that cannot
// be satisfied aborts the whole commit; the caller's transaction rollback
// undoes decrements already applied.
func (g *stockGate) ReserveAndDecrement(ctx context.Context, q repository.DBExecutor, lines []domain.CartLine) error {
	for _, line := range lines {
		if line.Quantity < 1 {
			return fmt.Errorf("reserve stock: product %d: %w", line.ProductID, util.ErrInvalidInput)
		}
		if err := g.productRepo.DecrementStock(ctx, q, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("reserve stock: product %d: %w", line.ProductID, err)
		}
	}
	return nil
}
