// internal/repository/sale_repo.go
package repository

import (
	"context"

	"tapcash-pos/internal/domain"
)

// SaleRepository defines the interface for sale and reward persistence.
type SaleRepository interface {
	// CreateSale inserts a sale and its lines. The idempotency token is
	// unique; a duplicate insert returns ErrDuplicateEntry.
	CreateSale(ctx context.Context, q DBExecutor, sale *domain.Sale) error
	// GetSaleByToken retrieves a sale by its idempotency token.
	GetSaleByToken(ctx context.Context, q DBExecutor, token string) (*domain.Sale, error)
	// GetSaleByReference retrieves a sale by its unique reference.
	GetSaleByReference(ctx context.Context, q DBExecutor, reference string) (*domain.Sale, error)
	// CreateRewardAccrual records gas units accrued by a sale.
	CreateRewardAccrual(ctx context.Context, q DBExecutor, accrual *domain.RewardAccrual) error
}
