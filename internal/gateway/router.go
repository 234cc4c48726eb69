package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter assembles the HTTP surface: cart and session routes for the UI,
// admin routes for the recovery-marketing path.
func NewRouter(cart *CartHandler, admin *AdminHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ClearCart)
			r.Post("/items", cart.AddLine)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveLine)
		})
		r.Post("/checkout", cart.Checkout)
		r.Route("/session", func(r chi.Router) {
			r.Post("/signin", cart.SignIn)
			r.Post("/signout", cart.SignOut)
		})
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Get("/stats", admin.GetStats)
		r.Post("/reminders/send", admin.SendBulkReminders)
		r.Post("/reminders/{record_id}", admin.SendReminder)
	})

	return otelhttp.NewHandler(r, "cart-recovery-gateway")
}
