// internal/repository/challenge_repo.go
package repository

import (
	"context"
	"time"

	"tapcash-pos/internal/domain"
)

// ChallengeRepository defines the interface for verification challenge
// persistence.
type ChallengeRepository interface {
	// CreateChallenge persists a pending challenge.
	CreateChallenge(ctx context.Context, q DBExecutor, challenge *domain.Challenge) error
	// GetChallengeByID retrieves a challenge.
	GetChallengeByID(ctx context.Context, q DBExecutor, id string) (*domain.Challenge, error)
	// GetChallengeByProviderRef retrieves a push challenge by the token
	// the mobile-money provider echoes back in its callback.
	GetChallengeByProviderRef(ctx context.Context, q DBExecutor, providerRef string) (*domain.Challenge, error)
	// MarkConsumed consumes a pending challenge exactly once. It returns
	// ErrAlreadyConsumed when the challenge is no longer pending.
	MarkConsumed(ctx context.Context, q DBExecutor, id string, at time.Time) error
	// UpdateChallengeStatus sets a challenge's status (supersede, push
	// accept/reject).
	UpdateChallengeStatus(ctx context.Context, q DBExecutor, id string, status domain.ChallengeStatus) error
	// IncrementAttempts bumps the failed-redemption counter and returns
	// the new count.
	IncrementAttempts(ctx context.Context, q DBExecutor, id string) (int, error)
}
