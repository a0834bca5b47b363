// internal/api/api_integration_test.go
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	router "tapcash-pos/internal/api"
	"tapcash-pos/internal/api/handler"
	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/events"
	"tapcash-pos/internal/provider"
	"tapcash-pos/internal/repository/memory"
	"tapcash-pos/internal/service"
	"tapcash-pos/pkg/db"
)

// Providers are stubbed; everything else in the stack is real, backed by
// the in-memory store.
type stubPinVerifier struct{ verdict provider.PinVerdict }

func (s stubPinVerifier) VerifyPin(ctx context.Context, cardID, pin string) (provider.PinVerdict, error) {
	return s.verdict, nil
}

type stubSMSDispatcher struct{}

func (stubSMSDispatcher) SendSMS(ctx context.Context, phone, message string) error { return nil }

type stubMomoClient struct{ ref string }

func (s stubMomoClient) RequestPush(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	return s.ref, nil
}

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	beginTx := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return store.Begin(), nil
	}
	commitTx := func(tx db.TxController) error { return tx.Commit() }
	rollbackTx := func(tx db.TxController) { _ = tx.Rollback() }

	authService := service.NewAuthorizationService(
		nil, nil, store, store,
		stubPinVerifier{verdict: provider.PinVerdictApproved},
		stubSMSDispatcher{},
		stubMomoClient{ref: "PUSH-REF"},
		beginTx, commitTx, rollbackTx,
		200*time.Millisecond, 10*time.Millisecond,
		logger,
	)
	stockGate := service.NewStockGate(nil, store)
	settlement := service.NewSettlementService(
		nil, nil, store, store, store, stockGate,
		events.NoopPublisher{},
		decimal.RequireFromString("0.10"),
		beginTx, commitTx, rollbackTx,
		logger,
	)

	checkoutHandler := handler.NewCheckoutHandler(authService, nil, store, logger)
	salesHandler := handler.NewSalesHandler(settlement, stockGate, nil, store, logger)

	server := httptest.NewServer(router.NewRouter(checkoutHandler, salesHandler, logger))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store}
}

func (e *testEnv) seedProduct(t *testing.T, stock int64) *domain.Product {
	t.Helper()
	p := domain.NewProduct("Cooking Oil 1L", "groceries", decimal.RequireFromString("1000"), decimal.RequireFromString("700"), stock, 2)
	require.NoError(t, e.store.CreateProduct(context.Background(), nil, p))
	return p
}

func (e *testEnv) seedWallet(t *testing.T, payerID int64, channel domain.FundingChannel, balance string) {
	t.Helper()
	w := domain.NewWallet(payerID, channel)
	w.Balance = decimal.RequireFromString(balance)
	require.NoError(t, e.store.CreateWallet(context.Background(), nil, w))
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) getJSON(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func cartPayload(productID, quantity int64) handler.CartPayload {
	return handler.CartPayload{
		Lines: []handler.CartLinePayload{{ProductID: productID, Quantity: quantity}},
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.getJSON(t, "/health", nil))
}

func TestQuoteCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, 10)

	var quote struct {
		Subtotal decimal.Decimal `json:"subtotal"`
		Tax      decimal.Decimal `json:"tax"`
		Total    decimal.Decimal `json:"total"`
	}
	code := env.postJSON(t, "/carts/quote", handler.QuoteCartRequest{Cart: cartPayload(p.ID, 2)}, &quote)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("2000")))
	assert.True(t, quote.Tax.Equal(decimal.RequireFromString("360")))
	assert.True(t, quote.Total.Equal(decimal.RequireFromString("2360")))
}

func TestCheckAvailability(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, 3)

	var availability service.Availability
	code := env.getJSON(t, fmt.Sprintf("/products/%d/availability?quantity=5", p.ID), &availability)

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, availability.OK)
	assert.Equal(t, int64(3), availability.AvailableStock)

	code = env.getJSON(t, fmt.Sprintf("/products/%d/availability?quantity=2", p.ID), &availability)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, availability.OK)
}

// TestCodeCheckoutFlow walks the full happy path: open an intent, mint a
// code, redeem it, commit the sale and fetch the receipt.
func TestCodeCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 10)
	env.seedWallet(t, 1, domain.ChannelDashboard, "10000")
	meter := "MTR-001"
	cart := cartPayload(p.ID, 2)

	var intent domain.PaymentIntent
	code := env.postJSON(t, "/intents", handler.CreateIntentRequest{
		PayerID:          1,
		Channel:          domain.ChannelDashboard,
		MeterID:          &meter,
		IdempotencyToken: "tok-flow-1",
		Cart:             cart,
	}, &intent)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.IntentStatusCreated, intent.Status)

	var challenge domain.Challenge
	code = env.postJSON(t, "/intents/"+intent.ID+"/challenges/code", handler.PhoneRequest{}, &challenge)
	require.Equal(t, http.StatusCreated, code)

	// The secret is never exposed over the API; read it from the store.
	stored, err := env.store.GetChallengeByID(ctx, nil, challenge.ID)
	require.NoError(t, err)

	t.Run("WrongCodeUnauthorized", func(t *testing.T) {
		status := env.postJSON(t, "/challenges/"+challenge.ID+"/redeem", handler.RedeemRequest{Code: "00000000"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	var authorized domain.PaymentIntent
	code = env.postJSON(t, "/challenges/"+challenge.ID+"/redeem", handler.RedeemRequest{Code: stored.Secret}, &authorized)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.IntentStatusAuthorized, authorized.Status)

	t.Run("ReplayedRedeemConflicts", func(t *testing.T) {
		status := env.postJSON(t, "/challenges/"+challenge.ID+"/redeem", handler.RedeemRequest{Code: stored.Secret}, nil)
		assert.Equal(t, http.StatusConflict, status)
	})

	var sale domain.Sale
	code = env.postJSON(t, "/sales", handler.CommitSaleRequest{IntentID: intent.ID, Cart: cart}, &sale)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("2360")))
	assert.True(t, sale.RewardUnits.Equal(decimal.RequireFromString("60")))

	t.Run("CommitReplayReturnsSameSale", func(t *testing.T) {
		var replay domain.Sale
		status := env.postJSON(t, "/sales", handler.CommitSaleRequest{IntentID: intent.ID, Cart: cart}, &replay)
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, sale.Reference, replay.Reference)
	})

	var view struct {
		Reference string          `json:"reference"`
		Total     decimal.Decimal `json:"total"`
		Lines     []struct {
			Name     string `json:"name"`
			Quantity int64  `json:"quantity"`
		} `json:"lines"`
	}
	code = env.getJSON(t, "/sales/"+sale.Reference+"/receipt", &view)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, sale.Reference, view.Reference)
	assert.Len(t, view.Lines, 1)
	assert.Equal(t, int64(2), view.Lines[0].Quantity)

	product, err := env.store.GetProductByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), product.StockQuantity)
}

// TestCommitReplayAfterStockDrained replays a commit whose first run
// consumed the last units of stock. The replay must still return the
// original sale; the soft clamp never applies on the commit path.
func TestCommitReplayAfterStockDrained(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 2)
	env.seedWallet(t, 1, domain.ChannelDashboard, "10000")
	cart := cartPayload(p.ID, 2)

	var intent domain.PaymentIntent
	code := env.postJSON(t, "/intents", handler.CreateIntentRequest{
		PayerID:          1,
		Channel:          domain.ChannelDashboard,
		IdempotencyToken: "tok-drain-1",
		Cart:             cart,
	}, &intent)
	require.Equal(t, http.StatusCreated, code)

	var authorized domain.PaymentIntent
	code = env.postJSON(t, "/intents/"+intent.ID+"/challenges/pin", handler.PinRequest{CardID: "CARD-1", Pin: "1234"}, &authorized)
	require.Equal(t, http.StatusOK, code)

	var sale domain.Sale
	code = env.postJSON(t, "/sales", handler.CommitSaleRequest{IntentID: intent.ID, Cart: cart}, &sale)
	require.Equal(t, http.StatusCreated, code)

	product, err := env.store.GetProductByID(ctx, nil, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), product.StockQuantity)

	var replay domain.Sale
	code = env.postJSON(t, "/sales", handler.CommitSaleRequest{IntentID: intent.ID, Cart: cart}, &replay)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, sale.Reference, replay.Reference)

	product, err = env.store.GetProductByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), product.StockQuantity)
}

func TestPinAuthorization(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, 10)
	env.seedWallet(t, 1, domain.ChannelDashboard, "10000")
	cart := cartPayload(p.ID, 1)

	var intent domain.PaymentIntent
	code := env.postJSON(t, "/intents", handler.CreateIntentRequest{
		PayerID:          1,
		Channel:          domain.ChannelDashboard,
		IdempotencyToken: "tok-pin-1",
		Cart:             cart,
	}, &intent)
	require.Equal(t, http.StatusCreated, code)

	var authorized domain.PaymentIntent
	code = env.postJSON(t, "/intents/"+intent.ID+"/challenges/pin", handler.PinRequest{CardID: "CARD-1", Pin: "1234"}, &authorized)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.IntentStatusAuthorized, authorized.Status)
}

func TestPushCallbackEndpoint(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, 10)
	cart := cartPayload(p.ID, 1)

	var intent domain.PaymentIntent
	code := env.postJSON(t, "/intents", handler.CreateIntentRequest{
		PayerID:          1,
		Channel:          domain.ChannelMobileMoney,
		IdempotencyToken: "tok-push-1",
		Cart:             cart,
	}, &intent)
	require.Equal(t, http.StatusCreated, code)

	pushDone := make(chan int, 1)
	go func() {
		pushDone <- env.postJSON(t, "/intents/"+intent.ID+"/challenges/push", handler.PhoneRequest{Phone: "0788000111"}, nil)
	}()

	// Wait for the push challenge to exist, then deliver the callback.
	require.Eventually(t, func() bool {
		_, err := env.store.GetChallengeByProviderRef(context.Background(), nil, "PUSH-REF")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	status := env.postJSON(t, "/momo/callback", handler.PushCallbackRequest{Token: "PUSH-REF", Outcome: provider.PushAccepted}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusOK, <-pushDone)

	stored, err := env.store.GetIntentByID(context.Background(), nil, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusAuthorized, stored.Status)
}

func TestUnknownIntentReturns404(t *testing.T) {
	env := newTestEnv(t)
	status := env.getJSON(t, "/intents/5b6c7d8e-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
