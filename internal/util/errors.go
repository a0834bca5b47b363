// internal/util/errors.go
package util

import "errors"

// Error taxonomy for the authorization and settlement engine.
var (
	ErrInvalidInput = errors.New("invalid input provided")
	ErrNotFound     = errors.New("resource not found")

	// Commit-time failures. Both abort the whole commit atomically.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Authorization outcomes. The caller must mint a new challenge,
	// never retry the same one.
	ErrInvalidCode      = errors.New("verification code does not match")
	ErrAlreadyConsumed  = errors.New("verification code already consumed")
	ErrChallengeExpired = errors.New("verification challenge expired")
	ErrPinRejected      = errors.New("pin rejected by card provider")
	ErrPushRejected     = errors.New("payment push rejected by payer")
	ErrPushTimeout      = errors.New("payment push timed out")

	// ProviderLocked is terminal for the card; callers must not retry.
	ErrProviderLocked = errors.New("card locked by provider")

	ErrIntentNotAuthorized = errors.New("payment intent is not authorized")
	ErrIntentTerminal      = errors.New("payment intent already resolved")

	// CommitConflict is a contract violation: the idempotency token was
	// reused with a different cart.
	ErrCommitConflict = errors.New("idempotency token reused with a different cart")

	ErrInvalidPhone   = errors.New("phone number is not a valid mobile number")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// IsError reports whether err matches target via errors.Is.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
