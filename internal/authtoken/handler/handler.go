// Package handler exposes caller token issuance. The endpoint is gated on a
// deployment-scoped provisioning key rather than per-account credentials:
// account onboarding happens out of band and the registry only needs to know
// that the operator's provisioning system vouches for the caller.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"provena/internal/authtoken"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/httputil"
	"provena/pkg/secrets"
)

// DefaultTokenTTL bounds how long an issued caller token stays valid.
const DefaultTokenTTL = 1 * time.Hour

type Handler struct {
	tokens           *authtoken.Service
	provisioningHash string
	tokenTTL         time.Duration
	logger           *slog.Logger
}

// New builds the token handler. provisioningHash is the bcrypt hash of the
// provisioning key; an empty hash disables issuance entirely.
func New(tokens *authtoken.Service, provisioningHash string, logger *slog.Logger) *Handler {
	return &Handler{
		tokens:           tokens,
		provisioningHash: provisioningHash,
		tokenTTL:         DefaultTokenTTL,
		logger:           logger,
	}
}

// Register mounts the token route. Mount this outside the authenticated
// chain; it is how callers obtain tokens in the first place.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.handleIssueToken)
}

type tokenRequest struct {
	Account         string `json:"account"`
	ProvisioningKey string `json:"provisioning_key"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if h.provisioningHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token issuance is not configured"))
		return
	}
	req, ok := httputil.Decode[tokenRequest](w, r, h.logger)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(req.Account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := secrets.Verify(req.ProvisioningKey, h.provisioningHash); err != nil {
		h.logger.WarnContext(r.Context(), "provisioning key rejected", "account", account)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid provisioning key"))
		return
	}
	token, err := h.tokens.GenerateToken(account, h.tokenTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenTTL.Seconds()),
	})
}
