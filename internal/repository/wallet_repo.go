// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"tapcash-pos/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the interface for wallet balance operations.
type WalletRepository interface {
	// CreateWallet adds a new wallet for a payer and channel.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWallet retrieves a payer's wallet on the given channel.
	GetWallet(ctx context.Context, q DBExecutor, payerID int64, channel domain.FundingChannel) (*domain.Wallet, error)
	// DebitWallet conditionally debits amount from a wallet. It returns
	// ErrInsufficientFunds when the balance cannot cover the amount,
	// leaving the row untouched.
	DebitWallet(ctx context.Context, q DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error
	// CreditWallet adds amount to a wallet.
	CreditWallet(ctx context.Context, q DBExecutor, payerID int64, channel domain.FundingChannel, amount decimal.Decimal) error
}
