package query

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/sqlchat/internal/gateway"
)

// SetupRoutes registers the gateway endpoints.
func SetupRoutes(router chi.Router, gw *gateway.Gateway, logger *slog.Logger) {
	handlers := NewHandlers(gw, logger)

	router.Get("/health", handlers.Health)
	router.Post("/query", handlers.Query)
}
