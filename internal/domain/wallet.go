// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Wallet is a payer's balance on one funding channel (dashboard or
// credit). Balances never go negative; the settlement ledger's debit is
// guarded against the current balance.
type Wallet struct {
	ID        int64           `db:"id" json:"id"` // Primary key, BIGSERIAL in DB
	PayerID   int64           `db:"payer_id" json:"payer_id"`
	Channel   FundingChannel  `db:"channel" json:"channel"`
	Balance   decimal.Decimal `db:"balance" json:"balance"` // NUMERIC(20, 4) in DB
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a zero-balance wallet for a payer and channel.
func NewWallet(payerID int64, channel FundingChannel) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		PayerID:   payerID,
		Channel:   channel,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
