package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/barberbot/internal/http/middleware"
	"github.com/wolfman30/barberbot/internal/messaging"
	"github.com/wolfman30/barberbot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	Status           *StatusHandler
	MetricsHandler   http.Handler
	// WebhookLimiter throttles the inbound webhook per client when set.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", Health)
	if cfg.Status != nil {
		r.Get("/status", cfg.Status.ServeHTTP)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.MessagingHandler != nil {
		r.Route("/messaging", func(r chi.Router) {
			if cfg.WebhookLimiter != nil {
				r.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter))
			}
			r.Post("/twilio/webhook", cfg.MessagingHandler.TwilioWebhook)
		})
	}
	return r
}
