// internal/repository/postgres/intent_pg.go
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

// IntentRepository implements repository.IntentRepository for PostgreSQL.
type IntentRepository struct{}

// NewIntentRepository creates a new IntentRepository.
func NewIntentRepository(db *sqlx.DB) repository.IntentRepository {
	return &IntentRepository{}
}

// CreateIntent inserts a payment intent using the provided DBExecutor.
func (r *IntentRepository) CreateIntent(ctx context.Context, q repository.DBExecutor, intent *domain.PaymentIntent) error {
	query := `INSERT INTO payment_intents
              (id, payer_id, channel, amount, meter_id, idempotency_token, cart_fingerprint, status, challenge_state, deny_reason, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := q.ExecContext(ctx, query,
		intent.ID, intent.PayerID, intent.Channel, intent.Amount, intent.MeterID,
		intent.IdempotencyToken, intent.CartFingerprint, intent.Status, intent.ChallengeState,
		intent.DenyReason, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

// GetIntentByID retrieves a payment intent using the provided DBExecutor.
func (r *IntentRepository) GetIntentByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	query := `SELECT id, payer_id, channel, amount, meter_id, idempotency_token, cart_fingerprint, status, challenge_state, deny_reason, created_at, updated_at
              FROM payment_intents WHERE id = $1`
	err := q.GetContext(ctx, &intent, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}
	return &intent, nil
}

// UpdateIntentState moves an intent through its state machine using the
// provided DBExecutor.
func (r *IntentRepository) UpdateIntentState(ctx context.Context, q repository.DBExecutor, id string, status domain.IntentStatus, state domain.ChallengeState, denyReason *string) error {
	query := `UPDATE payment_intents SET status = $1, challenge_state = $2, deny_reason = $3, updated_at = $4 WHERE id = $5`
	result, err := q.ExecContext(ctx, query, status, state, denyReason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment intent %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payment intent %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}
