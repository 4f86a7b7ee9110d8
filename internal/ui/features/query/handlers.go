package query

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leapstack-labs/sqlchat/internal/gateway"
	"github.com/leapstack-labs/sqlchat/internal/ui/features"
)

const healthTimeout = 5 * time.Second

// Handlers provides the gateway HTTP endpoints.
type Handlers struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(gw *gateway.Gateway, logger *slog.Logger) *Handlers {
	return &Handlers{gw: gw, logger: logger}
}

// Health runs a trivial round-trip query and reports connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.gw.Healthy(ctx); err != nil {
		h.logger.Error("health probe failed", slog.String("error", err.Error()))
		features.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "error",
			Message: "database unreachable",
			Detail:  err.Error(),
		})
		return
	}

	features.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "connected",
		CheckedAt: time.Now().UTC(),
	})
}

// Query validates and executes one SQL statement. Validation failures and
// upstream errors return 400, policy violations 403; every path ends in a
// JSON body.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := features.DecodeJSON(r, &req); err != nil {
		features.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.gw.Execute(r.Context(), req.SQL)
	if err != nil {
		var policyErr *gateway.PolicyViolationError
		var validationErr *gateway.ValidationError
		switch {
		case errors.As(err, &policyErr):
			features.WriteError(w, http.StatusForbidden, policyErr.Error())
		case errors.As(err, &validationErr):
			features.WriteError(w, http.StatusBadRequest, validationErr.Error())
		default:
			features.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	features.WriteJSON(w, http.StatusOK, QueryResponse{
		Rows:      res.Rows,
		RowCount:  res.RowCount,
		Fields:    res.Fields,
		Truncated: res.Truncated,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}
