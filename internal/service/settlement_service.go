// internal/service/settlement_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/events"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"
	"tapcash-pos/pkg/db"

	"github.com/shopspring/decimal"
)

// SettlementService commits an authorized payment intent: stock decrement,
// wallet debit and reward accrual execute as one atomic unit, producing an
// immutable sale record exactly once per idempotency token.
type SettlementService interface {
	Commit(ctx context.Context, cart *domain.Cart, intentID string) (*domain.Sale, error)
	GetSaleByReference(ctx context.Context, reference string) (*domain.Sale, error)
}

type settlementService struct {
	dbBeginner  db.DBTxBeginner
	dbExecutor  repository.DBExecutor
	intentRepo  repository.IntentRepository
	walletRepo  repository.WalletRepository
	saleRepo    repository.SaleRepository
	stockGate   StockGate
	publisher   events.SalePublisher
	rewardShare decimal.Decimal // Share of profit margin accrued as gas units
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
	logger      *slog.Logger
}

// NewSettlementService creates a new SettlementService. rewardShare is
// injected rather than hardcoded; pricing administration owns its value.
func NewSettlementService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	intentRepo repository.IntentRepository,
	walletRepo repository.WalletRepository,
	saleRepo repository.SaleRepository,
	stockGate StockGate,
	publisher events.SalePublisher,
	rewardShare decimal.Decimal,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) SettlementService {
	return &settlementService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		intentRepo:  intentRepo,
		walletRepo:  walletRepo,
		saleRepo:    saleRepo,
		stockGate:   stockGate,
		publisher:   publisher,
		rewardShare: rewardShare,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
		logger:      logger,
	}
}

// Commit settles an authorized intent against its cart. A repeated commit
// bearing the same idempotency token returns the original sale without
// re-debiting or re-decrementing.
func (s *settlementService) Commit(ctx context.Context, cart *domain.Cart, intentID string) (*domain.Sale, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, util.ErrInvalidInput
	}

	intent, err := s.intentRepo.GetIntentByID(ctx, s.dbExecutor, intentID)
	if err != nil {
		return nil, fmt.Errorf("commit: failed to get intent %s: %w", intentID, err)
	}
	if intent.Status != domain.IntentStatusAuthorized {
		return nil, util.ErrIntentNotAuthorized
	}
	if intent.CartFingerprint != cart.Fingerprint() {
		// The intent was opened for a different cart under this token.
		return nil, util.ErrCommitConflict
	}
	if !intent.Amount.Equal(cart.Total()) {
		return nil, util.ErrInvalidInput
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("commit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("commit: transaction controller does not implement DBExecutor")
	}

	// Idempotent replay: an earlier commit with this token already
	// produced a sale.
	existing, err := s.saleRepo.GetSaleByToken(ctx, txExecutor, intent.IdempotencyToken)
	if err == nil {
		return s.resolveReplay(existing, cart)
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("commit: failed to check idempotency token: %w", err)
	}

	// (a) Hard stock check, atomic with the decrement.
	if err := s.stockGate.ReserveAndDecrement(ctx, txExecutor, cart.Lines); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	// (b) Wallet debit. Mobile-money funds were collected by the
	// provider at authorization, so no wallet moves for that channel.
	if intent.Channel != domain.ChannelMobileMoney {
		if err := s.walletRepo.DebitWallet(ctx, txExecutor, intent.PayerID, intent.Channel, cart.Total()); err != nil {
			return nil, fmt.Errorf("commit: wallet debit: %w", err)
		}
	}

	// (c) Conditional reward accrual.
	rewardUnits := decimal.Zero
	if intent.RewardEligible() {
		rewardUnits = cart.Profit().Mul(s.rewardShare)
		if rewardUnits.IsNegative() {
			rewardUnits = decimal.Zero
		}
	}

	sale := domain.NewSale(cart, intent, rewardUnits)
	if err := s.saleRepo.CreateSale(ctx, txExecutor, sale); err != nil {
		if errors.Is(err, util.ErrDuplicateEntry) {
			// Lost a commit race on the token; roll back our effects and
			// resolve against the winner's sale.
			s.rollbackTx(txController)
			winner, lookupErr := s.saleRepo.GetSaleByToken(ctx, s.dbExecutor, intent.IdempotencyToken)
			if lookupErr != nil {
				return nil, fmt.Errorf("commit: failed to resolve duplicate token: %w", lookupErr)
			}
			return s.resolveReplay(winner, cart)
		}
		return nil, fmt.Errorf("commit: failed to create sale: %w", err)
	}

	if rewardUnits.IsPositive() {
		accrual := domain.NewRewardAccrual(sale.Reference, *intent.MeterID, rewardUnits)
		if err := s.saleRepo.CreateRewardAccrual(ctx, txExecutor, accrual); err != nil {
			return nil, fmt.Errorf("commit: reward accrual: %w", err)
		}
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("commit: failed to commit transaction: %w", err)
	}

	if err := s.publisher.PublishSaleCommitted(ctx, sale); err != nil {
		s.logger.Error("Failed to publish sale event", "reference", sale.Reference, "error", err)
	}
	return sale, nil
}

// resolveReplay returns the prior sale when the cart matches, and flags
// token reuse against a different cart as a contract violation.
func (s *settlementService) resolveReplay(existing *domain.Sale, cart *domain.Cart) (*domain.Sale, error) {
	if existing.CartFingerprint != cart.Fingerprint() {
		s.logger.Error("Idempotency token reused with a different cart", "reference", existing.Reference)
		return nil, util.ErrCommitConflict
	}
	return existing, nil
}

func (s *settlementService) GetSaleByReference(ctx context.Context, reference string) (*domain.Sale, error) {
	if reference == "" {
		return nil, util.ErrInvalidInput
	}
	sale, err := s.saleRepo.GetSaleByReference(ctx, s.dbExecutor, reference)
	if err != nil {
		return nil, fmt.Errorf("get sale %s: %w", reference, err)
	}
	return sale, nil
}
