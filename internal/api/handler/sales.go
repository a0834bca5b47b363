// internal/api/handler/sales.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tapcash-pos/internal/receipt"
	"tapcash-pos/internal/repository"
	"tapcash-pos/internal/service"
	"tapcash-pos/internal/util"
)

// SalesHandler handles settlement commits, receipts and stock checks.
type SalesHandler struct {
	settlement  service.SettlementService
	stockGate   service.StockGate
	dbExecutor  repository.DBExecutor
	productRepo repository.ProductRepository
	logger      *slog.Logger
}

// NewSalesHandler creates a new SalesHandler.
func NewSalesHandler(settlement service.SettlementService, stockGate service.StockGate, dbExecutor repository.DBExecutor, productRepo repository.ProductRepository, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{
		settlement:  settlement,
		stockGate:   stockGate,
		dbExecutor:  dbExecutor,
		productRepo: productRepo,
		logger:      logger,
	}
}

// CommitSaleRequest commits a cart against an authorized intent.
type CommitSaleRequest struct {
	IntentID string      `json:"intent_id"`
	Cart     CartPayload `json:"cart"`
}

// CommitSale handles the settlement commit.
// POST /sales
func (h *SalesHandler) CommitSale(w http.ResponseWriter, r *http.Request) {
	var req CommitSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.IntentID == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	cart, err := buildCommitCart(r.Context(), h.dbExecutor, h.productRepo, req.Cart)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	sale, err := h.settlement.Commit(r.Context(), cart, req.IntentID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, sale)
}

// GetReceipt renders a committed sale.
// GET /sales/{reference}/receipt
func (h *SalesHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	sale, err := h.settlement.GetSaleByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	view, err := receipt.Render(sale)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, view)
}

// CheckAvailability performs the soft, advisory stock check.
// GET /products/{productID}/availability?quantity=N
func (h *SalesHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	quantity := int64(1)
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		quantity, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(h.logger, w, util.ErrInvalidInput)
			return
		}
	}
	availability, err := h.stockGate.CheckAvailability(r.Context(), productID, quantity)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, availability)
}
