package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the router for the tracking service.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The register endpoint is called cross-origin by the sending scripts.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/register_email", h.HandleRegister)
	r.Get("/open/{trackingID}", h.HandleOpen)
	r.Get("/click/{trackingID}/{linkID}", h.HandleClick)
	r.Get("/unsubscribe/{trackingID}", h.HandleUnsubscribePage)
	r.Post("/api/unsubscribe", h.HandleUnsubscribeConfirm)
	r.Get("/logo", h.HandleLogo)
	r.Get("/health", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
