// internal/domain/intent.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// FundingChannel names the wallet or rail a purchase is paid from.
type FundingChannel string

const (
	ChannelDashboard   FundingChannel = "DASHBOARD"    // Primary prepaid balance, reward-eligible
	ChannelCredit      FundingChannel = "CREDIT"       // Borrowed-funds balance, never reward-eligible
	ChannelMobileMoney FundingChannel = "MOBILE_MONEY" // External rail, collected by the provider
)

// ValidChannel reports whether ch is one of the known funding channels.
func ValidChannel(ch FundingChannel) bool {
	switch ch {
	case ChannelDashboard, ChannelCredit, ChannelMobileMoney:
		return true
	}
	return false
}

// IntentStatus is the payment intent state machine:
// created -> challenged -> (authorized | denied). Both authorized and
// denied are terminal.
type IntentStatus string

const (
	IntentStatusCreated    IntentStatus = "CREATED"
	IntentStatusChallenged IntentStatus = "CHALLENGED"
	IntentStatusAuthorized IntentStatus = "AUTHORIZED"
	IntentStatusDenied     IntentStatus = "DENIED"
)

// ChallengeState is the method-specific sub-state while an intent is
// challenged.
type ChallengeState string

const (
	ChallengeStateNone         ChallengeState = ""
	ChallengeStateCodeSent     ChallengeState = "CODE_SENT"
	ChallengeStateOTPSent      ChallengeState = "OTP_SENT"
	ChallengeStateAwaitingPush ChallengeState = "AWAITING_PUSH_ACK"
)

// PaymentIntent is one attempt to pay for a cart. It carries the cart
// total, the funding channel, the caller-supplied idempotency token and a
// fingerprint of the cart it was opened for.
type PaymentIntent struct {
	ID               string          `db:"id" json:"id"` // UUID
	PayerID          int64           `db:"payer_id" json:"payer_id"`
	Channel          FundingChannel  `db:"channel" json:"channel"`
	Amount           decimal.Decimal `db:"amount" json:"amount"` // NUMERIC(20, 4) in DB
	MeterID          *string         `db:"meter_id" json:"meter_id"` // Gas meter reference, dashboard funding only
	IdempotencyToken string          `db:"idempotency_token" json:"idempotency_token"`
	CartFingerprint  string          `db:"cart_fingerprint" json:"cart_fingerprint"`
	Status           IntentStatus    `db:"status" json:"status"`
	ChallengeState   ChallengeState  `db:"challenge_state" json:"challenge_state"`
	DenyReason       *string         `db:"deny_reason" json:"deny_reason"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// NewPaymentIntent creates an intent in the created state.
func NewPaymentIntent(payerID int64, channel FundingChannel, amount decimal.Decimal, meterID *string, idempotencyToken, cartFingerprint string) *PaymentIntent {
	now := time.Now().UTC()
	return &PaymentIntent{
		ID:               uuid.New().String(),
		PayerID:          payerID,
		Channel:          channel,
		Amount:           amount,
		MeterID:          meterID,
		IdempotencyToken: idempotencyToken,
		CartFingerprint:  cartFingerprint,
		Status:           IntentStatusCreated,
		ChallengeState:   ChallengeStateNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Terminal reports whether the intent has reached a final state.
func (i *PaymentIntent) Terminal() bool {
	return i.Status == IntentStatusAuthorized || i.Status == IntentStatusDenied
}

// RewardEligible reports whether a commit of this intent accrues gas
// units: dashboard funding with a meter identifier supplied.
func (i *PaymentIntent) RewardEligible() bool {
	return i.Channel == ChannelDashboard && i.MeterID != nil && *i.MeterID != ""
}
