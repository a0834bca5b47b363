// internal/repository/postgres/product_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"

	"github.com/jmoiron/sqlx"
)

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) repository.ProductRepository {
	return &ProductRepository{}
}

// CreateProduct inserts a new product using the provided DBExecutor.
func (r *ProductRepository) CreateProduct(ctx context.Context, q repository.DBExecutor, product *domain.Product) error {
	query := `INSERT INTO products (name, category, unit_price, unit_cost, stock_quantity, low_stock_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		product.Name, product.Category, product.UnitPrice, product.UnitCost,
		product.StockQuantity, product.LowStockAt, product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by its ID using the provided DBExecutor.
func (r *ProductRepository) GetProductByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT id, name, category, unit_price, unit_cost, stock_quantity, low_stock_at, created_at, updated_at
              FROM products WHERE id = $1`
	err := q.GetContext(ctx, &product, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// DecrementStock decrements stock only when enough remains. The guard in
// the WHERE clause is what makes the hard stock check atomic with the
// decrement under concurrent commits.
func (r *ProductRepository) DecrementStock(ctx context.Context, q repository.DBExecutor, productID, quantity int64) error {
	query := `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = $2
              WHERE id = $3 AND stock_quantity >= $1`
	result, err := q.ExecContext(ctx, query, quantity, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for product %d: %w", productID, err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetProductByID(ctx, q, productID); err != nil {
			return err
		}
		return util.ErrInsufficientStock
	}
	return nil
}
