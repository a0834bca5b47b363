// internal/api/handler/common.go
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/util"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every request. It must exceed the mobile-money
// push wait, which is the only long-running call in the API.
const DefaultTimeout = 2 * time.Minute

func respondWithJSON(logger *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(logger *slog.Logger, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrInvalidPhone):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrInsufficientStock):
		statusCode = http.StatusConflict
		message = "Insufficient stock"
	case util.IsError(err, util.ErrInvalidCode), util.IsError(err, util.ErrPinRejected):
		statusCode = http.StatusUnauthorized
		message = err.Error()
	case util.IsError(err, util.ErrAlreadyConsumed):
		statusCode = http.StatusConflict
		message = "Verification code already consumed"
	case util.IsError(err, util.ErrChallengeExpired):
		statusCode = http.StatusGone
		message = "Verification challenge expired"
	case util.IsError(err, util.ErrProviderLocked):
		statusCode = http.StatusLocked
		message = "Card locked by provider"
	case util.IsError(err, util.ErrPushRejected):
		statusCode = http.StatusForbidden
		message = "Payment push rejected"
	case util.IsError(err, util.ErrPushTimeout):
		statusCode = http.StatusRequestTimeout
		message = "Payment push timed out"
	case util.IsError(err, util.ErrIntentNotAuthorized), util.IsError(err, util.ErrIntentTerminal):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrCommitConflict):
		// Contract violation; surfaced loudly, never retried silently.
		statusCode = http.StatusConflict
		message = "Idempotency token reused with a different cart"
		logger.Error("Commit conflict", "error", err)
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(logger, w, statusCode, map[string]string{"error": message})
}

// CartLinePayload is a client-held cart line. The unit price is the one
// captured when the line was added; omitted prices fall back to the
// current catalog price.
type CartLinePayload struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CartPayload is the client-held cart passed explicitly into the engine.
type CartPayload struct {
	Lines         []CartLinePayload   `json:"lines"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	DiscountMode  domain.DiscountMode `json:"discount_mode"`
}

// buildCart reconstructs a domain cart from its payload, enriching each
// line with catalog name, cost and a fresh stock snapshot. The returned
// warnings list products whose quantity was clamped by the soft check.
func buildCart(ctx context.Context, q repository.DBExecutor, products repository.ProductRepository, payload CartPayload) (*domain.Cart, []int64, error) {
	return assembleCart(ctx, q, products, payload, true)
}

// buildCommitCart reconstructs the cart exactly as the client holds it.
// The soft clamp belongs to quoting and intent creation; clamping here
// would change the cart's fingerprint once stock moves, breaking replay
// of an already-committed sale. The hard stock gate inside the
// settlement transaction enforces stock at commit.
func buildCommitCart(ctx context.Context, q repository.DBExecutor, products repository.ProductRepository, payload CartPayload) (*domain.Cart, error) {
	cart, _, err := assembleCart(ctx, q, products, payload, false)
	return cart, err
}

func assembleCart(ctx context.Context, q repository.DBExecutor, products repository.ProductRepository, payload CartPayload, clampToStock bool) (*domain.Cart, []int64, error) {
	if len(payload.Lines) == 0 {
		return nil, nil, util.ErrInvalidInput
	}
	cart := domain.NewCart()
	var warnings []int64
	for _, line := range payload.Lines {
		product, err := products.GetProductByID(ctx, q, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if !line.UnitPrice.IsZero() {
			product = priceOverride(product, line.UnitPrice)
		}
		if clampToStock {
			clamped, err := cart.AddLine(product, line.Quantity)
			if err != nil {
				return nil, nil, err
			}
			if clamped {
				warnings = append(warnings, line.ProductID)
			}
		} else if err := cart.AddLineExact(product, line.Quantity); err != nil {
			return nil, nil, err
		}
	}
	if !payload.DiscountValue.IsZero() {
		mode := payload.DiscountMode
		if mode == "" {
			mode = domain.DiscountModeFixed
		}
		if err := cart.ApplyDiscount(payload.DiscountValue, mode); err != nil {
			return nil, nil, err
		}
	}
	return cart, warnings, nil
}

func priceOverride(p *domain.Product, price decimal.Decimal) *domain.Product {
	cp := *p
	cp.UnitPrice = price
	return &cp
}
