// internal/api/handler/checkout.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/provider"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/service"
	"tapcash-pos/internal/util"
)

// CheckoutHandler handles payment intents and authorization challenges.
type CheckoutHandler struct {
	authService service.AuthorizationService
	dbExecutor  repository.DBExecutor
	productRepo repository.ProductRepository
	logger      *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(authService service.AuthorizationService, dbExecutor repository.DBExecutor, productRepo repository.ProductRepository, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		authService: authService,
		dbExecutor:  dbExecutor,
		productRepo: productRepo,
		logger:      logger,
	}
}

// QuoteCartRequest asks for cart totals with soft stock validation.
type QuoteCartRequest struct {
	Cart CartPayload `json:"cart"`
}

// QuoteCart computes totals for a client-held cart.
// POST /carts/quote
func (h *CheckoutHandler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	var req QuoteCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	cart, warnings, err := buildCart(r.Context(), h.dbExecutor, h.productRepo, req.Cart)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"subtotal":       cart.Subtotal(),
		"tax":            cart.Tax(),
		"discount":       cart.DiscountAmount(),
		"total":          cart.Total(),
		"stock_exceeded": warnings,
		"lines":          cart.Lines,
	})
}

// CreateIntentRequest opens a payment intent for a cart.
type CreateIntentRequest struct {
	PayerID          int64                 `json:"payer_id"`
	Channel          domain.FundingChannel `json:"channel"`
	MeterID          *string               `json:"meter_id"`
	IdempotencyToken string                `json:"idempotency_token"`
	Cart             CartPayload           `json:"cart"`
}

// CreateIntent handles intent creation.
// POST /intents
func (h *CheckoutHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	cart, _, err := buildCart(r.Context(), h.dbExecutor, h.productRepo, req.Cart)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	intent, err := h.authService.CreateIntent(r.Context(), req.PayerID, req.Channel, cart.Total(), req.MeterID, req.IdempotencyToken, cart.Fingerprint())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, intent)
}

// GetIntent returns the current state of an intent.
// GET /intents/{intentID}
func (h *CheckoutHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.authService.GetIntent(r.Context(), chi.URLParam(r, "intentID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, intent)
}

// PinRequest carries a single PIN attempt.
type PinRequest struct {
	CardID string `json:"card_id"`
	Pin    string `json:"pin"`
}

// AuthorizePin handles direct PIN authorization.
// POST /intents/{intentID}/challenges/pin
func (h *CheckoutHandler) AuthorizePin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	intent, err := h.authService.AuthorizePin(r.Context(), chi.URLParam(r, "intentID"), req.CardID, req.Pin)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, intent)
}

// PhoneRequest carries an optional or required phone number.
type PhoneRequest struct {
	Phone string `json:"phone"`
}

// IssueCode mints a one-time code.
// POST /intents/{intentID}/challenges/code
func (h *CheckoutHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	var req PhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	challenge, err := h.authService.IssueCode(r.Context(), chi.URLParam(r, "intentID"), req.Phone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, challenge)
}

// IssueOTP mints an SMS OTP bound to a phone number.
// POST /intents/{intentID}/challenges/otp
func (h *CheckoutHandler) IssueOTP(w http.ResponseWriter, r *http.Request) {
	var req PhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	challenge, err := h.authService.IssueOTP(r.Context(), chi.URLParam(r, "intentID"), req.Phone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, challenge)
}

// RequestPush starts a mobile-money push and waits for its resolution.
// POST /intents/{intentID}/challenges/push
func (h *CheckoutHandler) RequestPush(w http.ResponseWriter, r *http.Request) {
	var req PhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	intent, err := h.authService.RequestPush(r.Context(), chi.URLParam(r, "intentID"), req.Phone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, intent)
}

// RedeemRequest redeems a code or OTP challenge.
type RedeemRequest struct {
	Code  string `json:"code"`
	Phone string `json:"phone"`
}

// Redeem handles code/OTP redemption.
// POST /challenges/{challengeID}/redeem
func (h *CheckoutHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	intent, err := h.authService.Redeem(r.Context(), chi.URLParam(r, "challengeID"), req.Code, req.Phone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, intent)
}

// ResendOTP invalidates and re-mints an OTP challenge.
// POST /challenges/{challengeID}/resend
func (h *CheckoutHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.authService.ResendOTP(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, challenge)
}

// PushCallbackRequest is the mobile-money provider's result callback.
type PushCallbackRequest struct {
	Token   string               `json:"token"`
	Outcome provider.PushOutcome `json:"outcome"`
}

// PushCallback records a provider push result.
// POST /momo/callback
func (h *CheckoutHandler) PushCallback(w http.ResponseWriter, r *http.Request) {
	var req PushCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.authService.ResolvePush(r.Context(), req.Token, req.Outcome); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"status": "recorded"})
}
