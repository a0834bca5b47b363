// internal/domain/challenge.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeMethod is the verification protocol backing a challenge.
type ChallengeMethod string

const (
	MethodPin  ChallengeMethod = "PIN"
	MethodCode ChallengeMethod = "CODE" // Generated one-time code
	MethodOTP  ChallengeMethod = "OTP"  // SMS OTP bound to a phone number
	MethodPush ChallengeMethod = "PUSH" // Mobile-money push
)

// ChallengeStatus tracks a challenge through its single successful
// consumption, supersession by a resend, or provider resolution.
type ChallengeStatus string

const (
	ChallengeStatusPending    ChallengeStatus = "PENDING"
	ChallengeStatusConsumed   ChallengeStatus = "CONSUMED"
	ChallengeStatusSuperseded ChallengeStatus = "SUPERSEDED" // Invalidated by an OTP resend
	ChallengeStatusAccepted   ChallengeStatus = "ACCEPTED"   // Push accepted by the payer
	ChallengeStatusRejected   ChallengeStatus = "REJECTED"   // Push rejected by the payer
)

// Method-specific lifetimes. Expiry is evaluated at redemption time by
// wall-clock comparison, not by a background sweep.
const (
	CodeTTL = 10 * time.Minute
	OTPTTL  = 5 * time.Minute
)

// CodeDigits and OTPDigits are the minted secret lengths.
const (
	CodeDigits = 8
	OTPDigits  = 6
)

// MaxRedeemAttempts is the retry budget for a single code/OTP challenge.
// Exhausting it denies the intent.
const MaxRedeemAttempts = 5

// Challenge is a short-lived secret used to authorize a payment intent.
// It is consumed at most once successfully.
type Challenge struct {
	ID          string          `db:"id" json:"id"` // UUID
	IntentID    string          `db:"intent_id" json:"intent_id"`
	Method      ChallengeMethod `db:"method" json:"method"`
	Secret      string          `db:"secret" json:"-"` // Minted code, empty for pin/push
	Phone       string          `db:"phone" json:"phone"` // Canonicalized, empty when not dispatched
	ProviderRef *string         `db:"provider_ref" json:"provider_ref"` // Mobile-money push token
	Status      ChallengeStatus `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time       `db:"expires_at" json:"expires_at"`
	ConsumedAt  *time.Time      `db:"consumed_at" json:"consumed_at"`
}

// NewChallenge creates a pending challenge for the given intent.
func NewChallenge(intentID string, method ChallengeMethod, secret, phone string, ttl time.Duration) *Challenge {
	now := time.Now().UTC()
	return &Challenge{
		ID:        uuid.New().String(),
		IntentID:  intentID,
		Method:    method,
		Secret:    secret,
		Phone:     phone,
		Status:    ChallengeStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the challenge is past its expiry at the given
// wall-clock instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
