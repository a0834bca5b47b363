// internal/service/authorize_service.go
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/phone"
	"tapcash-pos/internal/provider"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"
	"tapcash-pos/pkg/db"

	"github.com/shopspring/decimal"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// AuthorizationService resolves a payment intent to authorized or denied
// through one of four verification protocols: direct PIN, generated
// one-time code, SMS OTP, or mobile-money push.
type AuthorizationService interface {
	CreateIntent(ctx context.Context, payerID int64, channel domain.FundingChannel, amount decimal.Decimal, meterID *string, idempotencyToken, cartFingerprint string) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)

	// AuthorizePin performs a single PIN attempt against the card
	// provider. A provider lockout denies the intent terminally.
	AuthorizePin(ctx context.Context, intentID, cardID, pin string) (*domain.PaymentIntent, error)

	// IssueCode mints an 8-digit one-time code, optionally dispatched by
	// SMS when a phone number is supplied.
	IssueCode(ctx context.Context, intentID, rawPhone string) (*domain.Challenge, error)

	// IssueOTP mints a 6-digit code bound to the given phone number and
	// dispatches it by SMS.
	IssueOTP(ctx context.Context, intentID, rawPhone string) (*domain.Challenge, error)

	// ResendOTP invalidates the previous OTP and mints a fresh one with
	// a fresh expiry.
	ResendOTP(ctx context.Context, challengeID string) (*domain.Challenge, error)

	// Redeem validates a code or OTP challenge. Consuming a challenge is
	// one-shot; replay yields ErrAlreadyConsumed, a typo ErrInvalidCode.
	Redeem(ctx context.Context, challengeID, code, rawPhone string) (*domain.PaymentIntent, error)

	// RequestPush asks the mobile-money provider to push a payment
	// request and waits, bounded by the configured timeout, for the
	// provider callback. Timeout resolves to denied, never hangs.
	RequestPush(ctx context.Context, intentID, rawPhone string) (*domain.PaymentIntent, error)

	// ResolvePush records the provider callback outcome.
	ResolvePush(ctx context.Context, providerRef string, outcome provider.PushOutcome) error
}

type authorizationService struct {
	dbBeginner    db.DBTxBeginner
	dbExecutor    repository.DBExecutor
	intentRepo    repository.IntentRepository
	challengeRepo repository.ChallengeRepository
	pinVerifier   provider.PinVerifier
	sms           provider.SMSDispatcher
	momo          provider.MobileMoneyClient
	beginTx       db.BeginTxFunc
	commitTx      db.CommitTxFunc
	rollbackTx    db.RollbackTxFunc
	pushTimeout   time.Duration
	pushPoll      time.Duration
	logger        *slog.Logger
}

// NewAuthorizationService creates a new AuthorizationService.
func NewAuthorizationService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	intentRepo repository.IntentRepository,
	challengeRepo repository.ChallengeRepository,
	pinVerifier provider.PinVerifier,
	sms provider.SMSDispatcher,
	momo provider.MobileMoneyClient,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	pushTimeout time.Duration,
	pushPoll time.Duration,
	logger *slog.Logger,
) AuthorizationService {
	return &authorizationService{
		dbBeginner:    dbBeginner,
		dbExecutor:    dbExecutor,
		intentRepo:    intentRepo,
		challengeRepo: challengeRepo,
		pinVerifier:   pinVerifier,
		sms:           sms,
		momo:          momo,
		beginTx:       beginTx,
		commitTx:      commitTx,
		rollbackTx:    rollbackTx,
		pushTimeout:   pushTimeout,
		pushPoll:      pushPoll,
		logger:        logger,
	}
}

// mintCode returns a zero-padded random numeric code of the given length.
func mintCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to mint code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func (s *authorizationService) CreateIntent(ctx context.Context, payerID int64, channel domain.FundingChannel, amount decimal.Decimal, meterID *string, idempotencyToken, cartFingerprint string) (*domain.PaymentIntent, error) {
	if payerID <= 0 || idempotencyToken == "" || cartFingerprint == "" {
		return nil, util.ErrInvalidInput
	}
	if !domain.ValidChannel(channel) {
		return nil, util.ErrInvalidInput
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidInput
	}

	intent := domain.NewPaymentIntent(payerID, channel, amount, meterID, idempotencyToken, cartFingerprint)
	if err := s.intentRepo.CreateIntent(ctx, s.dbExecutor, intent); err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	return intent, nil
}

func (s *authorizationService) GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	intent, err := s.intentRepo.GetIntentByID(ctx, s.dbExecutor, intentID)
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", intentID, err)
	}
	return intent, nil
}

// loadOpenIntent fetches an intent and rejects terminal ones: a fresh
// attempt must start a fresh intent with fresh challenges.
func (s *authorizationService) loadOpenIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	intent, err := s.intentRepo.GetIntentByID(ctx, s.dbExecutor, intentID)
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", intentID, err)
	}
	if intent.Terminal() {
		return nil, util.ErrIntentTerminal
	}
	return intent, nil
}

func (s *authorizationService) AuthorizePin(ctx context.Context, intentID, cardID, pin string) (*domain.PaymentIntent, error) {
	if cardID == "" || !pinPattern.MatchString(pin) {
		return nil, util.ErrInvalidInput
	}
	intent, err := s.loadOpenIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.pinVerifier.VerifyPin(ctx, cardID, pin)
	if err != nil {
		return nil, fmt.Errorf("authorize pin: provider call failed: %w", err)
	}

	switch verdict {
	case provider.PinVerdictApproved:
		if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusAuthorized, domain.ChallengeStateNone, nil); err != nil {
			return nil, fmt.Errorf("authorize pin: %w", err)
		}
		intent.Status = domain.IntentStatusAuthorized
		return intent, nil
	case provider.PinVerdictLocked:
		reason := "card locked by provider"
		if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusDenied, domain.ChallengeStateNone, &reason); err != nil {
			return nil, fmt.Errorf("authorize pin: %w", err)
		}
		intent.Status = domain.IntentStatusDenied
		intent.DenyReason = &reason
		return intent, util.ErrProviderLocked
	default:
		// A plain denial stays retryable up to the provider's own
		// lockout limit; the intent remains open.
		if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusChallenged, domain.ChallengeStateNone, nil); err != nil {
			return nil, fmt.Errorf("authorize pin: %w", err)
		}
		intent.Status = domain.IntentStatusChallenged
		return intent, util.ErrPinRejected
	}
}

func (s *authorizationService) IssueCode(ctx context.Context, intentID, rawPhone string) (*domain.Challenge, error) {
	intent, err := s.loadOpenIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	canonical := ""
	if rawPhone != "" {
		canonical, err = phone.Validate(rawPhone)
		if err != nil {
			return nil, err
		}
	}

	secret, err := mintCode(domain.CodeDigits)
	if err != nil {
		return nil, err
	}
	challenge := domain.NewChallenge(intent.ID, domain.MethodCode, secret, canonical, domain.CodeTTL)

	if canonical != "" {
		message := fmt.Sprintf("Your payment code is %s. It expires in %d minutes.", secret, int(domain.CodeTTL.Minutes()))
		if err := s.sms.SendSMS(ctx, canonical, message); err != nil {
			return nil, fmt.Errorf("issue code: sms dispatch failed: %w", err)
		}
	}

	if err := s.challengeRepo.CreateChallenge(ctx, s.dbExecutor, challenge); err != nil {
		return nil, fmt.Errorf("issue code: %w", err)
	}
	if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusChallenged, domain.ChallengeStateCodeSent, nil); err != nil {
		return nil, fmt.Errorf("issue code: %w", err)
	}
	return challenge, nil
}

func (s *authorizationService) IssueOTP(ctx context.Context, intentID, rawPhone string) (*domain.Challenge, error) {
	intent, err := s.loadOpenIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	// Reject bad numbers before any dispatch attempt.
	canonical, err := phone.Validate(rawPhone)
	if err != nil {
		return nil, err
	}

	challenge, err := s.mintAndDispatchOTP(ctx, intent.ID, canonical)
	if err != nil {
		return nil, err
	}
	if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusChallenged, domain.ChallengeStateOTPSent, nil); err != nil {
		return nil, fmt.Errorf("issue otp: %w", err)
	}
	return challenge, nil
}

func (s *authorizationService) mintAndDispatchOTP(ctx context.Context, intentID, canonicalPhone string) (*domain.Challenge, error) {
	secret, err := mintCode(domain.OTPDigits)
	if err != nil {
		return nil, err
	}
	challenge := domain.NewChallenge(intentID, domain.MethodOTP, secret, canonicalPhone, domain.OTPTTL)

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", secret, int(domain.OTPTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, canonicalPhone, message); err != nil {
		return nil, fmt.Errorf("issue otp: sms dispatch failed: %w", err)
	}
	if err := s.challengeRepo.CreateChallenge(ctx, s.dbExecutor, challenge); err != nil {
		return nil, fmt.Errorf("issue otp: %w", err)
	}
	return challenge, nil
}

func (s *authorizationService) ResendOTP(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	previous, err := s.challengeRepo.GetChallengeByID(ctx, s.dbExecutor, challengeID)
	if err != nil {
		return nil, fmt.Errorf("resend otp: %w", err)
	}
	if previous.Method != domain.MethodOTP {
		return nil, util.ErrInvalidInput
	}
	if previous.Status == domain.ChallengeStatusConsumed {
		return nil, util.ErrAlreadyConsumed
	}
	if _, err := s.loadOpenIntent(ctx, previous.IntentID); err != nil {
		return nil, err
	}

	// The previous code is invalidated, not extended.
	if err := s.challengeRepo.UpdateChallengeStatus(ctx, s.dbExecutor, previous.ID, domain.ChallengeStatusSuperseded); err != nil {
		return nil, fmt.Errorf("resend otp: %w", err)
	}
	return s.mintAndDispatchOTP(ctx, previous.IntentID, previous.Phone)
}

func (s *authorizationService) Redeem(ctx context.Context, challengeID, code, rawPhone string) (*domain.PaymentIntent, error) {
	if code == "" {
		return nil, util.ErrInvalidInput
	}
	challenge, err := s.challengeRepo.GetChallengeByID(ctx, s.dbExecutor, challengeID)
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	if challenge.Method != domain.MethodCode && challenge.Method != domain.MethodOTP {
		return nil, util.ErrInvalidInput
	}

	switch challenge.Status {
	case domain.ChallengeStatusConsumed:
		// Replay, distinguishable from a typo.
		return nil, util.ErrAlreadyConsumed
	case domain.ChallengeStatusSuperseded:
		return nil, util.ErrChallengeExpired
	case domain.ChallengeStatusPending:
	default:
		return nil, util.ErrInvalidInput
	}

	// Expiry wins over a correct code value.
	if challenge.Expired(time.Now().UTC()) {
		return nil, util.ErrChallengeExpired
	}

	matched := challenge.Secret == code
	if matched && challenge.Method == domain.MethodOTP {
		canonical, err := phone.Validate(rawPhone)
		if err != nil || canonical != challenge.Phone {
			matched = false
		}
	}
	if !matched {
		return nil, s.recordFailedAttempt(ctx, challenge)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("redeem: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("redeem: transaction controller does not implement DBExecutor")
	}

	if err := s.challengeRepo.MarkConsumed(ctx, txExecutor, challenge.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	if err := s.intentRepo.UpdateIntentState(ctx, txExecutor, challenge.IntentID, domain.IntentStatusAuthorized, domain.ChallengeStateNone, nil); err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("redeem: failed to commit transaction: %w", err)
	}

	intent, err := s.intentRepo.GetIntentByID(ctx, s.dbExecutor, challenge.IntentID)
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	return intent, nil
}

// recordFailedAttempt bumps the attempt counter and denies the intent
// once the retry budget is exhausted.
func (s *authorizationService) recordFailedAttempt(ctx context.Context, challenge *domain.Challenge) error {
	attempts, err := s.challengeRepo.IncrementAttempts(ctx, s.dbExecutor, challenge.ID)
	if err != nil {
		return fmt.Errorf("redeem: %w", err)
	}
	if attempts >= domain.MaxRedeemAttempts {
		reason := "verification attempts exhausted"
		if err := s.challengeRepo.UpdateChallengeStatus(ctx, s.dbExecutor, challenge.ID, domain.ChallengeStatusSuperseded); err != nil {
			return fmt.Errorf("redeem: %w", err)
		}
		if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, challenge.IntentID, domain.IntentStatusDenied, domain.ChallengeStateNone, &reason); err != nil {
			return fmt.Errorf("redeem: %w", err)
		}
	}
	return util.ErrInvalidCode
}

func (s *authorizationService) RequestPush(ctx context.Context, intentID, rawPhone string) (*domain.PaymentIntent, error) {
	intent, err := s.loadOpenIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	canonical, err := phone.Validate(rawPhone)
	if err != nil {
		return nil, err
	}

	providerRef, err := s.momo.RequestPush(ctx, canonical, intent.Amount, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("request push: provider call failed: %w", err)
	}

	challenge := domain.NewChallenge(intent.ID, domain.MethodPush, "", canonical, s.pushTimeout)
	challenge.ProviderRef = &providerRef
	if err := s.challengeRepo.CreateChallenge(ctx, s.dbExecutor, challenge); err != nil {
		return nil, fmt.Errorf("request push: %w", err)
	}
	if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusChallenged, domain.ChallengeStateAwaitingPush, nil); err != nil {
		return nil, fmt.Errorf("request push: %w", err)
	}

	return s.awaitPush(ctx, intent, challenge)
}

// awaitPush polls the persisted challenge until the provider callback
// resolves it or the deadline passes. No stock or wallet lock is held
// while waiting; those are acquired only at commit time.
func (s *authorizationService) awaitPush(ctx context.Context, intent *domain.PaymentIntent, challenge *domain.Challenge) (*domain.PaymentIntent, error) {
	deadline := time.NewTimer(s.pushTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pushPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			current, err := s.challengeRepo.GetChallengeByID(ctx, s.dbExecutor, challenge.ID)
			if err != nil {
				return nil, fmt.Errorf("await push: %w", err)
			}
			switch current.Status {
			case domain.ChallengeStatusAccepted:
				if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusAuthorized, domain.ChallengeStateNone, nil); err != nil {
					return nil, fmt.Errorf("await push: %w", err)
				}
				intent.Status = domain.IntentStatusAuthorized
				return intent, nil
			case domain.ChallengeStatusRejected:
				reason := "push rejected by payer"
				if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusDenied, domain.ChallengeStateNone, &reason); err != nil {
					return nil, fmt.Errorf("await push: %w", err)
				}
				intent.Status = domain.IntentStatusDenied
				intent.DenyReason = &reason
				return intent, util.ErrPushRejected
			}
		case <-deadline.C:
			return s.denyPushTimedOut(ctx, intent, challenge)
		case <-ctx.Done():
			if _, err := s.denyPushTimedOut(context.WithoutCancel(ctx), intent, challenge); err != nil {
				s.logger.Error("Failed to deny timed-out push", "intent_id", intent.ID, "error", err)
			}
			return nil, ctx.Err()
		}
	}
}

func (s *authorizationService) denyPushTimedOut(ctx context.Context, intent *domain.PaymentIntent, challenge *domain.Challenge) (*domain.PaymentIntent, error) {
	reason := "mobile-money push timed out"
	if err := s.challengeRepo.UpdateChallengeStatus(ctx, s.dbExecutor, challenge.ID, domain.ChallengeStatusSuperseded); err != nil {
		return nil, fmt.Errorf("push timeout: %w", err)
	}
	if err := s.intentRepo.UpdateIntentState(ctx, s.dbExecutor, intent.ID, domain.IntentStatusDenied, domain.ChallengeStateNone, &reason); err != nil {
		return nil, fmt.Errorf("push timeout: %w", err)
	}
	intent.Status = domain.IntentStatusDenied
	intent.DenyReason = &reason
	return intent, util.ErrPushTimeout
}

func (s *authorizationService) ResolvePush(ctx context.Context, providerRef string, outcome provider.PushOutcome) error {
	if providerRef == "" {
		return util.ErrInvalidInput
	}
	challenge, err := s.challengeRepo.GetChallengeByProviderRef(ctx, s.dbExecutor, providerRef)
	if err != nil {
		return fmt.Errorf("resolve push: %w", err)
	}
	if challenge.Status != domain.ChallengeStatusPending {
		// Late or duplicate callback; the waiter already resolved.
		s.logger.Info("Ignoring push callback for resolved challenge", "challenge_id", challenge.ID, "status", challenge.Status)
		return nil
	}
	if challenge.Expired(time.Now().UTC()) {
		if err := s.challengeRepo.UpdateChallengeStatus(ctx, s.dbExecutor, challenge.ID, domain.ChallengeStatusSuperseded); err != nil {
			return fmt.Errorf("resolve push: %w", err)
		}
		return util.ErrChallengeExpired
	}

	status := domain.ChallengeStatusRejected
	if outcome == provider.PushAccepted {
		status = domain.ChallengeStatusAccepted
	}
	if err := s.challengeRepo.UpdateChallengeStatus(ctx, s.dbExecutor, challenge.ID, status); err != nil {
		return fmt.Errorf("resolve push: %w", err)
	}
	return nil
}
