// internal/service/settlement_service_test.go
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/events"
	"tapcash-pos/internal/repository/memory"
	"tapcash-pos/internal/util"
	"tapcash-pos/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testRewardShare = decimal.RequireFromString("0.10")

// settlementHarness runs the settlement service against the in-memory
// store so stock, wallet and sale effects stay observable across commits.
type settlementHarness struct {
	store   *memory.Store
	service SettlementService
}

func newSettlementHarness() *settlementHarness {
	store := memory.NewStore()
	svc := NewSettlementService(
		nil,
		nil,
		store,
		store,
		store,
		NewStockGate(nil, store),
		events.NoopPublisher{},
		testRewardShare,
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return store.Begin(), nil
		},
		func(tx db.TxController) error {
			return tx.Commit()
		},
		func(tx db.TxController) {
			_ = tx.Rollback()
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &settlementHarness{store: store, service: svc}
}

func (h *settlementHarness) seedProduct(t *testing.T, price, cost string, stock int64) *domain.Product {
	t.Helper()
	p := domain.NewProduct("Cooking Oil 1L", "groceries", decimal.RequireFromString(price), decimal.RequireFromString(cost), stock, 2)
	assert.NoError(t, h.store.CreateProduct(context.Background(), nil, p))
	return p
}

func (h *settlementHarness) seedWallet(t *testing.T, payerID int64, channel domain.FundingChannel, balance string) {
	t.Helper()
	w := domain.NewWallet(payerID, channel)
	w.Balance = decimal.RequireFromString(balance)
	assert.NoError(t, h.store.CreateWallet(context.Background(), nil, w))
}

func (h *settlementHarness) seedAuthorizedIntent(t *testing.T, payerID int64, channel domain.FundingChannel, cart *domain.Cart, meterID *string, token string) *domain.PaymentIntent {
	t.Helper()
	intent := domain.NewPaymentIntent(payerID, channel, cart.Total(), meterID, token, cart.Fingerprint())
	intent.Status = domain.IntentStatusAuthorized
	assert.NoError(t, h.store.CreateIntent(context.Background(), nil, intent))
	return intent
}

func buildCart(t *testing.T, p *domain.Product, quantity int64) *domain.Cart {
	t.Helper()
	cart := domain.NewCart()
	_, err := cart.AddLine(p, quantity)
	assert.NoError(t, err)
	return cart
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	meter := "MTR-001"

	t.Run("DebitsDecrementsAndAccruesReward", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "10000")
		cart := buildCart(t, p, 3) // subtotal 3000, tax 540, total 3540
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, &meter, "tok-1")

		sale, err := h.service.Commit(ctx, cart, intent.ID)

		assert.NoError(t, err)
		assert.NotEmpty(t, sale.Reference)
		assert.True(t, sale.Total.Equal(decimal.RequireFromString("3540")))
		assert.Len(t, sale.Lines, 1)

		stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
		assert.Equal(t, int64(2), stored.StockQuantity)

		wallet, _ := h.store.GetWallet(ctx, nil, 1, domain.ChannelDashboard)
		assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("6460")))

		// Profit 900 at a 10% share.
		assert.True(t, sale.RewardUnits.Equal(decimal.RequireFromString("90")))
		accruals := h.store.RewardAccruals()
		assert.Len(t, accruals, 1)
		assert.Equal(t, meter, accruals[0].MeterID)
		assert.True(t, accruals[0].Units.Equal(decimal.RequireFromString("90")))
	})

	t.Run("NoRewardWithoutMeter", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "10000")
		cart := buildCart(t, p, 1)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

		sale, err := h.service.Commit(ctx, cart, intent.ID)

		assert.NoError(t, err)
		assert.True(t, sale.RewardUnits.IsZero())
		assert.Empty(t, h.store.RewardAccruals())
	})

	t.Run("NoRewardOnCreditChannel", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelCredit, "10000")
		cart := buildCart(t, p, 1)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelCredit, cart, &meter, "tok-1")

		sale, err := h.service.Commit(ctx, cart, intent.ID)

		assert.NoError(t, err)
		assert.True(t, sale.RewardUnits.IsZero())
		assert.Empty(t, h.store.RewardAccruals())
	})

	t.Run("MobileMoneySkipsWalletDebit", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		// No wallet exists for this payer; the provider collected the funds.
		cart := buildCart(t, p, 2)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelMobileMoney, cart, nil, "tok-1")

		sale, err := h.service.Commit(ctx, cart, intent.ID)

		assert.NoError(t, err)
		assert.True(t, sale.RewardUnits.IsZero())
		stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
		assert.Equal(t, int64(3), stored.StockQuantity)
	})

	t.Run("ReplayReturnsOriginalSaleWithoutSideEffects", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "10000")
		cart := buildCart(t, p, 2)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

		first, err := h.service.Commit(ctx, cart, intent.ID)
		assert.NoError(t, err)
		second, err := h.service.Commit(ctx, cart, intent.ID)
		assert.NoError(t, err)

		assert.Equal(t, first.Reference, second.Reference)

		stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
		assert.Equal(t, int64(3), stored.StockQuantity)
		wallet, _ := h.store.GetWallet(ctx, nil, 1, domain.ChannelDashboard)
		assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("7640")))
	})

	t.Run("TokenReuseAgainstDifferentCartConflicts", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 10)
		h.seedWallet(t, 1, domain.ChannelDashboard, "20000")
		cartA := buildCart(t, p, 2)
		intentA := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cartA, nil, "tok-shared")

		_, err := h.service.Commit(ctx, cartA, intentA.ID)
		assert.NoError(t, err)

		cartB := buildCart(t, p, 3)
		intentB := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cartB, nil, "tok-shared")
		_, err = h.service.Commit(ctx, cartB, intentB.ID)

		assert.ErrorIs(t, err, util.ErrCommitConflict)
	})

	t.Run("UnauthorizedIntentRejected", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "10000")
		cart := buildCart(t, p, 1)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")
		assert.NoError(t, h.store.UpdateIntentState(ctx, nil, intent.ID, domain.IntentStatusChallenged, domain.ChallengeStateCodeSent, nil))

		_, err := h.service.Commit(ctx, cart, intent.ID)

		assert.ErrorIs(t, err, util.ErrIntentNotAuthorized)
		stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
		assert.Equal(t, int64(5), stored.StockQuantity)
	})

	t.Run("InsufficientFundsLeavesStockUnchanged", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "100")
		cart := buildCart(t, p, 3)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

		_, err := h.service.Commit(ctx, cart, intent.ID)

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		// The stock decrement inside the failed transaction was rolled back.
		stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
		assert.Equal(t, int64(5), stored.StockQuantity)
		assert.Empty(t, h.store.RewardAccruals())
	})

	t.Run("InsufficientStockLeavesWalletUnchanged", func(t *testing.T) {
		h := newSettlementHarness()
		p := h.seedProduct(t, "1000", "700", 5)
		h.seedWallet(t, 1, domain.ChannelDashboard, "50000")
		cart := buildCart(t, p, 5)
		intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

		// Stock drains between authorization and commit.
		assert.NoError(t, h.store.DecrementStock(ctx, nil, p.ID, 3))

		_, err := h.service.Commit(ctx, cart, intent.ID)

		assert.ErrorIs(t, err, util.ErrInsufficientStock)
		wallet, _ := h.store.GetWallet(ctx, nil, 1, domain.ChannelDashboard)
		assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("50000")))
	})

	t.Run("EmptyCartRejected", func(t *testing.T) {
		h := newSettlementHarness()
		_, err := h.service.Commit(ctx, domain.NewCart(), "some-intent")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})
}

func TestCommitConcurrentStock(t *testing.T) {
	ctx := context.Background()
	h := newSettlementHarness()
	p := h.seedProduct(t, "1000", "700", 5)
	h.seedWallet(t, 1, domain.ChannelDashboard, "100000")
	h.seedWallet(t, 2, domain.ChannelDashboard, "100000")

	cartA := buildCart(t, p, 3)
	cartB := buildCart(t, p, 4)
	intentA := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cartA, nil, "tok-a")
	intentB := h.seedAuthorizedIntent(t, 2, domain.ChannelDashboard, cartB, nil, "tok-b")

	var wg sync.WaitGroup
	wg.Add(2)
	var errA, errB error
	go func() {
		defer wg.Done()
		_, errA = h.service.Commit(ctx, cartA, intentA.ID)
	}()
	go func() {
		defer wg.Done()
		_, errB = h.service.Commit(ctx, cartB, intentB.ID)
	}()
	wg.Wait()

	// With 5 units on hand, 3 and 4 cannot both be sold.
	winners := 0
	remaining := int64(5)
	if errA == nil {
		winners++
		remaining -= 3
	} else {
		assert.ErrorIs(t, errA, util.ErrInsufficientStock)
	}
	if errB == nil {
		winners++
		remaining -= 4
	} else {
		assert.ErrorIs(t, errB, util.ErrInsufficientStock)
	}
	assert.Equal(t, 1, winners)

	stored, err := h.store.GetProductByID(ctx, nil, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, remaining, stored.StockQuantity)
}

func TestCommitConcurrentSameToken(t *testing.T) {
	ctx := context.Background()
	h := newSettlementHarness()
	p := h.seedProduct(t, "1000", "700", 10)
	h.seedWallet(t, 1, domain.ChannelDashboard, "100000")

	cart := buildCart(t, p, 2)
	intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

	var wg sync.WaitGroup
	results := make([]*domain.Sale, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.service.Commit(ctx, cart, intent.ID)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, results[0].Reference, results[1].Reference)

	// Effects applied exactly once.
	stored, _ := h.store.GetProductByID(ctx, nil, p.ID)
	assert.Equal(t, int64(8), stored.StockQuantity)
	wallet, _ := h.store.GetWallet(ctx, nil, 1, domain.ChannelDashboard)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("97640")))
}

func TestGetSaleByReference(t *testing.T) {
	ctx := context.Background()
	h := newSettlementHarness()
	p := h.seedProduct(t, "1000", "700", 5)
	h.seedWallet(t, 1, domain.ChannelDashboard, "10000")
	cart := buildCart(t, p, 1)
	intent := h.seedAuthorizedIntent(t, 1, domain.ChannelDashboard, cart, nil, "tok-1")

	sale, err := h.service.Commit(ctx, cart, intent.ID)
	assert.NoError(t, err)

	t.Run("Found", func(t *testing.T) {
		got, err := h.service.GetSaleByReference(ctx, sale.Reference)
		assert.NoError(t, err)
		assert.Equal(t, sale.Reference, got.Reference)
		assert.Len(t, got.Lines, 1)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := h.service.GetSaleByReference(ctx, "b2c5d7e9-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, util.ErrNotFound)
	})
}
