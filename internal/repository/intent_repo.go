// internal/repository/intent_repo.go
package repository

import (
	"context"

	"tapcash-pos/internal/domain"
)

// IntentRepository defines the interface for payment intent persistence.
type IntentRepository interface {
	// CreateIntent persists a freshly created intent.
	CreateIntent(ctx context.Context, q DBExecutor, intent *domain.PaymentIntent) error
	// GetIntentByID retrieves an intent.
	GetIntentByID(ctx context.Context, q DBExecutor, id string) (*domain.PaymentIntent, error)
	// UpdateIntentState moves an intent through its state machine and
	// records an optional denial reason.
	UpdateIntentState(ctx context.Context, q DBExecutor, id string, status domain.IntentStatus, state domain.ChallengeState, denyReason *string) error
}
