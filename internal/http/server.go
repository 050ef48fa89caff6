package http

import (
	"net/http"
	"time"

	"PizzaurumBackend/internal/feed"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the API surface. Webhook first, management endpoints under
// /api/orders, the live feed as a websocket upgrade.
func NewRouter(h *Handler, hub *feed.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/stripe/webhook", h.Webhook)
		r.Get("/stripe/order-id", h.OrderBySession)
		r.Post("/stripe/update-net-profit", h.UpdateNetProfit)

		r.Post("/orders/assign-rider", h.AssignRider)
		r.Post("/orders/complete", h.CompleteOrder)
		r.Post("/orders/update-status", h.UpdateStatus)
		r.Post("/orders/refund", h.Refund)
		r.Get("/orders/feed", hub.ServeHTTP)
	})

	return r
}

// NewServer applies the timeouts we run with in production. The write timeout
// stays generous because the webhook path may call out to the processor.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
