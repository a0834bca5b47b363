// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tapcash-pos/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(checkoutHandler *handler.CheckoutHandler, salesHandler *handler.SalesHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Cart and catalog
	r.Post("/carts/quote", checkoutHandler.QuoteCart)
	r.Get("/products/{productID}/availability", salesHandler.CheckAvailability)

	// Payment intents and authorization challenges
	r.Route("/intents", func(r chi.Router) {
		r.Post("/", checkoutHandler.CreateIntent)
		r.Get("/{intentID}", checkoutHandler.GetIntent)
		r.Post("/{intentID}/challenges/pin", checkoutHandler.AuthorizePin)
		r.Post("/{intentID}/challenges/code", checkoutHandler.IssueCode)
		r.Post("/{intentID}/challenges/otp", checkoutHandler.IssueOTP)
		r.Post("/{intentID}/challenges/push", checkoutHandler.RequestPush)
	})
	r.Route("/challenges", func(r chi.Router) {
		r.Post("/{challengeID}/redeem", checkoutHandler.Redeem)
		r.Post("/{challengeID}/resend", checkoutHandler.ResendOTP)
	})

	// Mobile-money provider callback
	r.Post("/momo/callback", checkoutHandler.PushCallback)

	// Settlement
	r.Post("/sales", salesHandler.CommitSale)
	r.Get("/sales/{reference}/receipt", salesHandler.GetReceipt)

	return r
}
