package chat

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	chatcore "github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/ui/notifier"
)

// SetupRoutes registers the conversation endpoints.
func SetupRoutes(
	router chi.Router,
	registry *chatcore.Registry,
	prober Prober,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
) {
	handlers := NewHandlers(registry, prober, sessionStore, notify, logger)

	router.Route("/api/chat", func(r chi.Router) {
		r.Post("/messages", handlers.Submit)
		r.Get("/history", handlers.History)
		r.Post("/messages/{id}/execute", handlers.Execute)
		r.Post("/messages/{id}/replay", handlers.Replay)
		r.Post("/messages/{id}/rating", handlers.Rate)
		r.Get("/models", handlers.Models)
		r.Put("/model", handlers.SelectModel)
		r.Get("/status", handlers.Status)
		r.Get("/events", handlers.Events)
	})
}
