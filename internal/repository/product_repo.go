// internal/repository/product_repo.go
package repository

import (
	"context"

	"tapcash-pos/internal/domain"
)

// ProductRepository defines the interface for catalog data operations.
type ProductRepository interface {
	// CreateProduct adds a new product to the catalog.
	CreateProduct(ctx context.Context, q DBExecutor, product *domain.Product) error
	// GetProductByID retrieves a product, including its current stock.
	GetProductByID(ctx context.Context, q DBExecutor, id int64) (*domain.Product, error)
	// DecrementStock conditionally decrements a product's stock. It
	// returns ErrInsufficientStock when the remaining stock cannot
	// satisfy the quantity, leaving the row untouched.
	DecrementStock(ctx context.Context, q DBExecutor, productID, quantity int64) error
}
