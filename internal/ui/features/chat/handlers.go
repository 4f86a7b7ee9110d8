package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	chatcore "github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/ui/features"
	"github.com/leapstack-labs/sqlchat/internal/ui/notifier"
)

const sessionName = "sqlchat_session"

// Prober checks database connectivity for the advisory status endpoint.
type Prober interface {
	Healthy(ctx context.Context) error
}

// Handlers provides the conversation HTTP endpoints. Each browser session
// owns one conversation, resolved through the registry.
type Handlers struct {
	registry     *chatcore.Registry
	prober       Prober
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	registry *chatcore.Registry,
	prober Prober,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		registry:     registry,
		prober:       prober,
		sessionStore: sessionStore,
		notifier:     notify,
		logger:       logger,
	}
}

// conversation resolves the caller's controller, minting a conversation id
// into the cookie session on first contact.
func (h *Handlers) conversation(w http.ResponseWriter, r *http.Request) (*chatcore.Controller, string, error) {
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil {
		// A stale or tampered cookie gets a fresh session.
		sess, _ = h.sessionStore.New(r, sessionName)
	}

	id, ok := sess.Values["conversation_id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		sess.Values["conversation_id"] = id
		if err := sess.Save(r, w); err != nil {
			return nil, "", fmt.Errorf("failed to save session: %w", err)
		}
	}

	ctrl, err := h.registry.Get(id)
	if err != nil {
		return nil, "", err
	}
	return ctrl, id, nil
}

// Submit runs one conversational turn.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	ctrl, convID, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var req SubmitRequest
	if err := features.DecodeJSON(r, &req); err != nil {
		features.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := ctrl.Submit(r.Context(), req.Text)
	switch {
	case errors.Is(err, chatcore.ErrEmptyMessage):
		features.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chatcore.ErrTurnInFlight):
		features.WriteError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, chatcore.ErrNoSession):
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		features.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.notifier.Notify(convID)
	features.WriteJSON(w, http.StatusOK, view)
}

// History returns the conversation's exchanges in creation order.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	features.WriteJSON(w, http.StatusOK, ctrl.History())
}

// Execute runs the generated SQL of one exchange (manual-execute mode).
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	ctrl, convID, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	view, err := ctrl.Execute(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, chatcore.ErrTurnInFlight):
		features.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		features.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.notifier.Notify(convID)
	features.WriteJSON(w, http.StatusOK, view)
}

// Replay re-submits a prior user message as a new turn.
func (h *Handlers) Replay(w http.ResponseWriter, r *http.Request) {
	ctrl, convID, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	view, err := ctrl.Replay(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, chatcore.ErrTurnInFlight):
		features.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		features.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.notifier.Notify(convID)
	features.WriteJSON(w, http.StatusOK, view)
}

// Rate records a 1-5 rating on a settled model exchange.
func (h *Handlers) Rate(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var req RatingRequest
	if err := features.DecodeJSON(r, &req); err != nil {
		features.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.Rate(chi.URLParam(r, "id"), req.Rating); err != nil {
		features.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Models lists the selectable models and the active one.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	features.WriteJSON(w, http.StatusOK, ModelsResponse{
		Models: ctrl.Models(),
		Active: ctrl.ActiveModel(),
	})
}

// SelectModel swaps the conversation's model session.
func (h *Handlers) SelectModel(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var req SelectModelRequest
	if err := features.DecodeJSON(r, &req); err != nil {
		features.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.SwitchModel(req.Model); err != nil {
		features.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	features.WriteJSON(w, http.StatusOK, ModelsResponse{
		Models: ctrl.Models(),
		Active: ctrl.ActiveModel(),
	})
}

// Status reports the advisory model and database connection statuses. It is
// informational: the gateway still validates every request on its own.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctrl, _, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	modelStatus, detail := ctrl.ModelStatus()
	resp := StatusResponse{
		Model: StatusInfo{Status: string(modelStatus), Detail: detail},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.prober.Healthy(ctx); err != nil {
		resp.Database = StatusInfo{Status: string(chatcore.StatusError), Detail: err.Error()}
	} else {
		resp.Database = StatusInfo{Status: string(chatcore.StatusConnected)}
	}

	features.WriteJSON(w, http.StatusOK, resp)
}

// Events streams update pings for the caller's conversation as SSE.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	_, convID, err := h.conversation(w, r)
	if err != nil {
		features.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		features.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.notifier.Subscribe(convID)
	defer h.notifier.Unsubscribe(convID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if _, err := fmt.Fprint(w, "event: update\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
