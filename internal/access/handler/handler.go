// Package handler exposes role administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "provena/pkg/domain"
	"provena/pkg/platform/httputil"
)

// Service defines the access-control operations the handler needs.
type Service interface {
	Grant(ctx context.Context, account id.AccountID, role id.Role) error
	Revoke(ctx context.Context, account id.AccountID, role id.Role) error
	RolesOf(ctx context.Context, account id.AccountID) ([]id.Role, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the role administration routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/access/grants", h.handleGrant)
	r.Delete("/access/accounts/{account}/roles/{role}", h.handleRevoke)
	r.Get("/access/accounts/{account}/roles", h.handleRolesOf)
}

type grantRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[grantRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Grant(r.Context(), account, role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), account, role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRolesOf(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roles, err := h.service.RolesOf(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}
