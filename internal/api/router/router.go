package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nexushealth/clinic-concierge/internal/gateway"
	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	WebhookHandler *gateway.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	if cfg.WebhookHandler == nil {
		panic("router: webhook handler cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", cfg.WebhookHandler.HealthCheck)
	r.Post("/webhooks/zapi", cfg.WebhookHandler.Webhook)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
