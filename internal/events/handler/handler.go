// Package handler exposes the event log for off-band consumers that poll
// over HTTP instead of tailing a stream. Read-only, admin-gated.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provena/internal/events"
	id "provena/pkg/domain"
	"provena/pkg/platform/httputil"
	"provena/pkg/requestcontext"
)

// Store defines the event reads the handler needs.
type Store interface {
	List(ctx context.Context) ([]events.Event, error)
	ListByAction(ctx context.Context, action events.Action) ([]events.Event, error)
}

// Access gates the feed behind the admin role.
type Access interface {
	Require(ctx context.Context, account id.AccountID, role id.Role) error
}

type Handler struct {
	store  Store
	access Access
	logger *slog.Logger
}

func New(store Store, access Access, logger *slog.Logger) *Handler {
	return &Handler{store: store, access: access, logger: logger}
}

// Register mounts the event feed route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.handleListEvents)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.access.Require(ctx, requestcontext.Actor(ctx), id.RoleAdmin); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var (
		list []events.Event
		err  error
	)
	if action := r.URL.Query().Get("action"); action != "" {
		list, err = h.store.ListByAction(ctx, events.Action(action))
	} else {
		list, err = h.store.List(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": list})
}
