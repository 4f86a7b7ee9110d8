// Package router sets up HTTP routes for the web server.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/gateway"
	chatFeature "github.com/leapstack-labs/sqlchat/internal/ui/features/chat"
	queryFeature "github.com/leapstack-labs/sqlchat/internal/ui/features/query"
	"github.com/leapstack-labs/sqlchat/internal/ui/notifier"
)

// SetupRoutes configures all routes for the web server.
func SetupRoutes(
	router chi.Router,
	gw *gateway.Gateway,
	registry *chat.Registry,
	sessionStore *sessions.CookieStore,
	notify *notifier.Notifier,
	logger *slog.Logger,
) {
	queryFeature.SetupRoutes(router, gw, logger)
	chatFeature.SetupRoutes(router, registry, gw, sessionStore, notify, logger)
}
