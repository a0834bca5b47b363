// internal/repository/postgres/wallet_pg.go
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
	"github.com/shopspring/decimal"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) repository.WalletRepository {
	return &WalletRepository{}
}

// CreateWallet inserts a new wallet using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (payer_id, channel, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query, wallet.PayerID, wallet.Channel, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWallet retrieves a payer's wallet on a channel using the provided DBExecutor.
func (r *WalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, payer_id, channel, balance, created_at, updated_at FROM wallets WHERE payer_id = $1 AND channel = $2`
	err := q.GetContext(ctx, &wallet, query, payerID, channel)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for payer %d channel %s: %w", payerID, channel, err)
	}
	return &wallet, nil
}

// DebitWallet debits only when the balance covers the amount. Two
// concurrent debits can never both succeed past the balance.
func (r *WalletRepository) DebitWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = $2
              WHERE payer_id = $3 AND channel = $4 AND balance >= $1`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), payerID, channel)
	if err != nil {
		return fmt.Errorf("failed to debit wallet for payer %d channel %s: %w", payerID, channel, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payer %d channel %s: %w", payerID, channel, err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetWallet(ctx, q, payerID, channel); err != nil {
			return err
		}
		return util.ErrInsufficientFunds
	}
	return nil
}

// CreditWallet adds amount to a wallet using the provided DBExecutor.
func (r *WalletRepository) CreditWallet(ctx context.Context, q repository.DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2 WHERE payer_id = $3 AND channel = $4`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), payerID, channel)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for payer %d channel %s: %w", payerID, channel, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payer %d channel %s: %w", payerID, channel, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}
