// Package handler exposes the identity registry over HTTP. It parses and
// validates transport input, delegates to the service, and maps results to
// JSON; no business rules live here.
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"provena/internal/identity/models"
	identityService "provena/internal/identity/service"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/httputil"
)

// Service defines the identity operations the handler needs.
type Service interface {
	Register(ctx context.Context, account id.AccountID, jurisdiction id.Jurisdiction) error
	RegisterBatch(ctx context.Context, entries []identityService.Registration) error
	Delete(ctx context.Context, account id.AccountID) error
	SetJurisdiction(ctx context.Context, account id.AccountID, jurisdiction id.Jurisdiction) error
	Get(ctx context.Context, account id.AccountID) (*models.Identity, error)
	IsVerified(ctx context.Context, account id.AccountID) (bool, error)
	AddClaim(ctx context.Context, subject id.AccountID, topic id.ClaimTopic, scheme uint64, signature, data []byte, uri string) (id.ClaimID, error)
	RemoveClaim(ctx context.Context, subject id.AccountID, claimID id.ClaimID) error
	ListClaims(ctx context.Context, subject id.AccountID) ([]*models.Claim, error)
	ClaimsByTopic(ctx context.Context, subject id.AccountID, topic id.ClaimTopic) ([]*models.Claim, error)
	AddIssuer(ctx context.Context, account id.AccountID, topics []id.ClaimTopic) error
	RemoveIssuer(ctx context.Context, account id.AccountID) error
	GrantTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) error
	RevokeTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) error
	IssuerTopics(ctx context.Context, account id.AccountID) ([]id.ClaimTopic, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the identity routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.handleRegister)
	r.Post("/identities/batch", h.handleRegisterBatch)
	r.Get("/identities/{account}", h.handleGet)
	r.Delete("/identities/{account}", h.handleDelete)
	r.Put("/identities/{account}/jurisdiction", h.handleSetJurisdiction)
	r.Post("/identities/{account}/claims", h.handleAddClaim)
	r.Get("/identities/{account}/claims", h.handleListClaims)
	r.Delete("/identities/{account}/claims/{claimID}", h.handleRemoveClaim)
	r.Post("/issuers", h.handleAddIssuer)
	r.Delete("/issuers/{account}", h.handleRemoveIssuer)
	r.Get("/issuers/{account}/topics", h.handleIssuerTopics)
	r.Post("/issuers/{account}/topics", h.handleGrantTopic)
	r.Delete("/issuers/{account}/topics/{topic}", h.handleRevokeTopic)
}

type registerRequest struct {
	Account      string `json:"account"`
	Jurisdiction string `json:"jurisdiction"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	jurisdiction, err := id.ParseJurisdiction(req.Jurisdiction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Register(r.Context(), account, jurisdiction); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type registerBatchRequest struct {
	Registrations []registerRequest `json:"registrations"`
}

func (h *Handler) handleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	entries := make([]identityService.Registration, 0, len(req.Registrations))
	for _, entry := range req.Registrations {
		account, err := id.ParseAccountID(entry.Account)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		jurisdiction, err := id.ParseJurisdiction(entry.Jurisdiction)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries = append(entries, identityService.Registration{Account: account, Jurisdiction: jurisdiction})
	}
	if err := h.service.RegisterBatch(r.Context(), entries); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type identityResponse struct {
	Account      string `json:"account"`
	Jurisdiction string `json:"jurisdiction"`
	Verified     bool   `json:"verified"`
	RegisteredAt string `json:"registered_at"`
	UpdatedAt    string `json:"updated_at"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.service.Get(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	verified, err := h.service.IsVerified(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identityResponse{
		Account:      identity.Account.String(),
		Jurisdiction: identity.Jurisdiction.String(),
		Verified:     verified,
		RegisteredAt: identity.RegisteredAt.Format(time.RFC3339),
		UpdatedAt:    identity.UpdatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type jurisdictionRequest struct {
	Jurisdiction string `json:"jurisdiction"`
}

func (h *Handler) handleSetJurisdiction(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[jurisdictionRequest](w, r, h.logger)
	if !ok {
		return
	}
	jurisdiction, err := id.ParseJurisdiction(req.Jurisdiction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetJurisdiction(r.Context(), account, jurisdiction); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim payloads carry opaque binary evidence; it crosses the wire base64
// encoded.
type addClaimRequest struct {
	Topic     string `json:"topic"`
	Scheme    uint64 `json:"scheme"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
	URI       string `json:"uri,omitempty"`
}

func (h *Handler) handleAddClaim(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[addClaimRequest](w, r, h.logger)
	if !ok {
		return
	}
	topic, err := id.ParseClaimTopic(req.Topic)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "signature must be base64"))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "data must be base64"))
		return
	}
	claimID, err := h.service.AddClaim(r.Context(), subject, topic, req.Scheme, signature, data, req.URI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"claim_id": claimID.String()})
}

func (h *Handler) handleListClaims(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var claims []*models.Claim
	if topicParam := r.URL.Query().Get("topic"); topicParam != "" {
		topic, err := id.ParseClaimTopic(topicParam)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		claims, err = h.service.ClaimsByTopic(r.Context(), subject, topic)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	} else {
		claims, err = h.service.ListClaims(r.Context(), subject)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (h *Handler) handleRemoveClaim(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveClaim(r.Context(), subject, claimID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addIssuerRequest struct {
	Account string   `json:"account"`
	Topics  []string `json:"topics"`
}

func (h *Handler) handleAddIssuer(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[addIssuerRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	topics, err := parseTopics(req.Topics)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.AddIssuer(r.Context(), account, topics); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRemoveIssuer(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveIssuer(r.Context(), account); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIssuerTopics(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	topics, err := h.service.IssuerTopics(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) handleGrantTopic(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[topicRequest](w, r, h.logger)
	if !ok {
		return
	}
	topic, err := id.ParseClaimTopic(req.Topic)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.GrantTopic(r.Context(), account, topic); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeTopic(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	topic, err := id.ParseClaimTopic(chi.URLParam(r, "topic"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeTopic(r.Context(), account, topic); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTopics(raw []string) ([]id.ClaimTopic, error) {
	topics := make([]id.ClaimTopic, 0, len(raw))
	for _, s := range raw {
		topic, err := id.ParseClaimTopic(s)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}
