// internal/repository/postgres/challenge_pg.go
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

// ChallengeRepository implements repository.ChallengeRepository for PostgreSQL.
type ChallengeRepository struct{}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(db *sqlx.DB) repository.ChallengeRepository {
	return &ChallengeRepository{}
}

// CreateChallenge inserts a pending challenge using the provided DBExecutor.
func (r *ChallengeRepository) CreateChallenge(ctx context.Context, q repository.DBExecutor, challenge *domain.Challenge) error {
	query := `INSERT INTO challenges
              (id, intent_id, method, secret, phone, provider_ref, status, attempts, created_at, expires_at, consumed_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ExecContext(ctx, query,
		challenge.ID, challenge.IntentID, challenge.Method, challenge.Secret, challenge.Phone,
		challenge.ProviderRef, challenge.Status, challenge.Attempts, challenge.CreatedAt,
		challenge.ExpiresAt, challenge.ConsumedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// GetChallengeByID retrieves a challenge using the provided DBExecutor.
func (r *ChallengeRepository) GetChallengeByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Challenge, error) {
	var challenge domain.Challenge
	query := `SELECT id, intent_id, method, secret, phone, provider_ref, status, attempts, created_at, expires_at, consumed_at
              FROM challenges WHERE id = $1`
	err := q.GetContext(ctx, &challenge, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge %s: %w", id, err)
	}
	return &challenge, nil
}

// GetChallengeByProviderRef retrieves a push challenge by provider token.
func (r *ChallengeRepository) GetChallengeByProviderRef(ctx context.Context, q repository.DBExecutor, providerRef string) (*domain.Challenge, error) {
	var challenge domain.Challenge
	query := `SELECT id, intent_id, method, secret, phone, provider_ref, status, attempts, created_at, expires_at, consumed_at
              FROM challenges WHERE provider_ref = $1`
	err := q.GetContext(ctx, &challenge, query, providerRef)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge by provider ref %s: %w", providerRef, err)
	}
	return &challenge, nil
}

// MarkConsumed consumes a pending challenge. The status guard makes the
// one-shot rule hold under concurrent redemption attempts.
func (r *ChallengeRepository) MarkConsumed(ctx context.Context, q repository.DBExecutor, id string, at time.Time) error {
	query := `UPDATE challenges SET status = $1, consumed_at = $2 WHERE id = $3 AND status = $4`
	result, err := q.ExecContext(ctx, query, domain.ChallengeStatusConsumed, at, id, domain.ChallengeStatusPending)
	if err != nil {
		return fmt.Errorf("failed to consume challenge %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for challenge %s: %w", id, err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetChallengeByID(ctx, q, id); err != nil {
			return err
		}
		return util.ErrAlreadyConsumed
	}
	return nil
}

// UpdateChallengeStatus sets a challenge's status using the provided DBExecutor.
func (r *ChallengeRepository) UpdateChallengeStatus(ctx context.Context, q repository.DBExecutor, id string, status domain.ChallengeStatus) error {
	query := `UPDATE challenges SET status = $1 WHERE id = $2`
	result, err := q.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update challenge %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for challenge %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// IncrementAttempts bumps the failed-redemption counter and returns the
// new count.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, q repository.DBExecutor, id string) (int, error) {
	var attempts int
	query := `UPDATE challenges SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`
	err := q.QueryRowContext(ctx, query, id).Scan(&attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, util.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts for challenge %s: %w", id, err)
	}
	return attempts, nil
}
