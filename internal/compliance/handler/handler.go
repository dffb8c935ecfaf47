// Package handler exposes the compliance engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provena/internal/compliance/models"
	complianceService "provena/internal/compliance/service"
	id "provena/pkg/domain"
	"provena/pkg/platform/httputil"
)

// Service defines the compliance operations the handler needs.
type Service interface {
	CanTransfer(ctx context.Context, from, to id.AccountID, amount uint64) (models.Decision, error)
	CanTransferBatch(ctx context.Context, checks []complianceService.TransferCheck) ([]models.Decision, error)
	AddRule(ctx context.Context, kind string, params []byte) (id.RuleID, error)
	UpdateRule(ctx context.Context, ruleID id.RuleID, params []byte, active bool) error
	RemoveRule(ctx context.Context, ruleID id.RuleID) error
	ListRules(ctx context.Context) ([]*models.Rule, error)
	SetCountryAllowed(ctx context.Context, jurisdiction id.Jurisdiction, allowed bool) error
	SetHoldingLimits(ctx context.Context, min, max uint64) error
	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
	IsPaused(ctx context.Context) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the compliance routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/check", h.handleCheck)
	r.Post("/compliance/check/batch", h.handleCheckBatch)
	r.Post("/compliance/rules", h.handleAddRule)
	r.Get("/compliance/rules", h.handleListRules)
	r.Put("/compliance/rules/{ruleID}", h.handleUpdateRule)
	r.Delete("/compliance/rules/{ruleID}", h.handleRemoveRule)
	r.Put("/compliance/countries/{code}", h.handleSetCountry)
	r.Put("/compliance/limits", h.handleSetLimits)
	r.Post("/compliance/pause", h.handlePause)
	r.Post("/compliance/unpause", h.handleUnpause)
	r.Get("/compliance/status", h.handleStatus)
}

// transferCheck allows an empty from account: that is a mint-shaped check
// where only the receiver is screened.
type transferCheck struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (c transferCheck) parse() (from, to id.AccountID, err error) {
	from = id.NilAccount
	if c.From != "" {
		if from, err = id.ParseAccountID(c.From); err != nil {
			return
		}
	}
	to, err = id.ParseAccountID(c.To)
	return
}

type decisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

func fromDecision(d models.Decision) decisionResponse {
	return decisionResponse{Allowed: d.Allowed, Reason: d.Reason, Code: string(d.Code)}
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[transferCheck](w, r, h.logger)
	if !ok {
		return
	}
	from, to, err := req.parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	decision, err := h.service.CanTransfer(r.Context(), from, to, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDecision(decision))
}

type checkBatchRequest struct {
	Checks []transferCheck `json:"checks"`
}

func (h *Handler) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[checkBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	checks := make([]complianceService.TransferCheck, 0, len(req.Checks))
	for _, c := range req.Checks {
		from, to, err := c.parse()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		checks = append(checks, complianceService.TransferCheck{From: from, To: to, Amount: c.Amount})
	}
	decisions, err := h.service.CanTransferBatch(r.Context(), checks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]decisionResponse, len(decisions))
	for i, d := range decisions {
		out[i] = fromDecision(d)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": out})
}

type addRuleRequest struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (h *Handler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[addRuleRequest](w, r, h.logger)
	if !ok {
		return
	}
	ruleID, err := h.service.AddRule(r.Context(), req.Kind, req.Params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"rule_id": ruleID.String()})
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type updateRuleRequest struct {
	Params json.RawMessage `json:"params,omitempty"`
	Active bool            `json:"active"`
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[updateRuleRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.UpdateRule(r.Context(), ruleID, req.Params, req.Active); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveRule(r.Context(), ruleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type countryRequest struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) handleSetCountry(w http.ResponseWriter, r *http.Request) {
	jurisdiction, err := id.ParseJurisdiction(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[countryRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.SetCountryAllowed(r.Context(), jurisdiction, req.Allowed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type limitsRequest struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

func (h *Handler) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[limitsRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.SetHoldingLimits(r.Context(), req.Min, req.Max); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Pause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unpause(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	paused, err := h.service.IsPaused(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}
