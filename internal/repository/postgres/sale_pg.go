// internal/repository/postgres/sale_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SaleRepository implements repository.SaleRepository for PostgreSQL.
type SaleRepository struct{}

// NewSaleRepository creates a new SaleRepository.
func NewSaleRepository(db *sqlx.DB) repository.SaleRepository {
	return &SaleRepository{}
}

const pqUniqueViolation = "23505"

// CreateSale inserts a sale and its lines using the provided DBExecutor.
// The unique index on idempotency_token maps to ErrDuplicateEntry so the
// settlement ledger can resolve a commit race.
func (r *SaleRepository) CreateSale(ctx context.Context, q repository.DBExecutor, sale *domain.Sale) error {
	query := `INSERT INTO sales
              (reference, payer_id, channel, subtotal, tax, discount, total, reward_units, meter_id, idempotency_token, cart_fingerprint, sold_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		sale.Reference, sale.PayerID, sale.Channel, sale.Subtotal, sale.Tax, sale.Discount,
		sale.Total, sale.RewardUnits, sale.MeterID, sale.IdempotencyToken, sale.CartFingerprint,
		sale.SoldAt, sale.CreatedAt,
	).Scan(&sale.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}

	lineQuery := `INSERT INTO sale_lines (sale_id, position, product_id, name, quantity, unit_price, line_total)
                  VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.SaleID = sale.ID
		if err := q.QueryRowContext(ctx, lineQuery,
			line.SaleID, line.Position, line.ProductID, line.Name, line.Quantity,
			line.UnitPrice, line.LineTotal,
		).Scan(&line.ID); err != nil {
			return fmt.Errorf("failed to create sale line for sale %s: %w", sale.Reference, err)
		}
	}
	return nil
}

// GetSaleByToken retrieves a sale by idempotency token using the provided DBExecutor.
func (r *SaleRepository) GetSaleByToken(ctx context.Context, q repository.DBExecutor, token string) (*domain.Sale, error) {
	return r.getSale(ctx, q, `idempotency_token`, token)
}

// GetSaleByReference retrieves a sale by reference using the provided DBExecutor.
func (r *SaleRepository) GetSaleByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Sale, error) {
	return r.getSale(ctx, q, `reference`, reference)
}

func (r *SaleRepository) getSale(ctx context.Context, q repository.DBExecutor, column, value string) (*domain.Sale, error) {
	var sale domain.Sale
	query := fmt.Sprintf(`SELECT id, reference, payer_id, channel, subtotal, tax, discount, total, reward_units, meter_id, idempotency_token, cart_fingerprint, sold_at, created_at
              FROM sales WHERE %s = $1`, column)
	err := q.GetContext(ctx, &sale, query, value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sale by %s %s: %w", column, value, err)
	}

	lineQuery := `SELECT id, sale_id, position, product_id, name, quantity, unit_price, line_total
                  FROM sale_lines WHERE sale_id = $1 ORDER BY position`
	if err := q.SelectContext(ctx, &sale.Lines, lineQuery, sale.ID); err != nil {
		return nil, fmt.Errorf("failed to get sale lines for sale %s: %w", sale.Reference, err)
	}
	return &sale, nil
}

// CreateRewardAccrual records gas units accrued by a sale.
func (r *SaleRepository) CreateRewardAccrual(ctx context.Context, q repository.DBExecutor, accrual *domain.RewardAccrual) error {
	query := `INSERT INTO reward_accruals (sale_reference, meter_id, units, created_at)
              VALUES ($1, $2, $3, $4) RETURNING id`
	err := q.QueryRowContext(ctx, query, accrual.SaleReference, accrual.MeterID, accrual.Units, accrual.CreatedAt).Scan(&accrual.ID)
	if err != nil {
		return fmt.Errorf("failed to create reward accrual for sale %s: %w", accrual.SaleReference, err)
	}
	return nil
}
