// Package handler exposes the asset registry over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provena/internal/asset/models"
	assetService "provena/internal/asset/service"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/httputil"
)

// Service defines the asset operations the handler needs.
type Service interface {
	Mint(ctx context.Context, to id.AccountID, metadataRef, legalEntityRef string, extended []byte) (id.AssetID, error)
	MintBatch(ctx context.Context, requests []assetService.MintRequest) ([]id.AssetID, error)
	Transfer(ctx context.Context, assetID id.AssetID, to id.AccountID) error
	TransferBatch(ctx context.Context, requests []assetService.TransferRequest) error
	Burn(ctx context.Context, assetID id.AssetID) error
	BurnBatch(ctx context.Context, assetIDs []id.AssetID) error
	Verify(ctx context.Context, assetID id.AssetID) error
	Unverify(ctx context.Context, assetID id.AssetID) error
	Approve(ctx context.Context, assetID id.AssetID, operator id.AccountID) error
	RevokeApproval(ctx context.Context, assetID id.AssetID) error
	Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	AssetsOf(ctx context.Context, owner id.AccountID) ([]id.AssetID, error)
	AssetsInJurisdiction(ctx context.Context, jurisdiction id.Jurisdiction) ([]id.AssetID, error)
	VerifiedAssets(ctx context.Context) ([]id.AssetID, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the asset routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.handleMint)
	r.Post("/assets/batch", h.handleMintBatch)
	r.Get("/assets", h.handleQuery)
	r.Get("/assets/{assetID}", h.handleGet)
	r.Post("/assets/{assetID}/transfer", h.handleTransfer)
	r.Post("/assets/transfer/batch", h.handleTransferBatch)
	r.Post("/assets/{assetID}/verify", h.handleVerify)
	r.Delete("/assets/{assetID}/verify", h.handleUnverify)
	r.Put("/assets/{assetID}/approval", h.handleApprove)
	r.Delete("/assets/{assetID}/approval", h.handleRevokeApproval)
	r.Delete("/assets/{assetID}", h.handleBurn)
	r.Post("/assets/burn/batch", h.handleBurnBatch)
}

type mintRequest struct {
	To             string `json:"to"`
	MetadataRef    string `json:"metadata_ref"`
	LegalEntityRef string `json:"legal_entity_ref,omitempty"`
	Extended       string `json:"extended,omitempty"`
}

func (m mintRequest) toDomain() (assetService.MintRequest, error) {
	to, err := id.ParseAccountID(m.To)
	if err != nil {
		return assetService.MintRequest{}, err
	}
	extended, err := base64.StdEncoding.DecodeString(m.Extended)
	if err != nil {
		return assetService.MintRequest{}, dErrors.New(dErrors.CodeValidation, "extended data must be base64")
	}
	return assetService.MintRequest{
		To:             to,
		MetadataRef:    m.MetadataRef,
		LegalEntityRef: m.LegalEntityRef,
		Extended:       extended,
	}, nil
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[mintRequest](w, r, h.logger)
	if !ok {
		return
	}
	domainReq, err := req.toDomain()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	assetID, err := h.service.Mint(r.Context(), domainReq.To, domainReq.MetadataRef, domainReq.LegalEntityRef, domainReq.Extended)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]id.AssetID{"asset_id": assetID})
}

type mintBatchRequest struct {
	Mints []mintRequest `json:"mints"`
}

func (h *Handler) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[mintBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	requests := make([]assetService.MintRequest, 0, len(req.Mints))
	for _, m := range req.Mints {
		domainReq, err := m.toDomain()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		requests = append(requests, domainReq)
	}
	assetIDs, err := h.service.MintBatch(r.Context(), requests)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string][]id.AssetID{"asset_ids": assetIDs})
}

// handleQuery serves the three asset indexes behind one route: by owner, by
// jurisdiction, or the verified set.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("owner") != "":
		owner, err := id.ParseAccountID(q.Get("owner"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		h.writeAssetIDs(w, r, func(ctx context.Context) ([]id.AssetID, error) {
			return h.service.AssetsOf(ctx, owner)
		})
	case q.Get("jurisdiction") != "":
		jurisdiction, err := id.ParseJurisdiction(q.Get("jurisdiction"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		h.writeAssetIDs(w, r, func(ctx context.Context) ([]id.AssetID, error) {
			return h.service.AssetsInJurisdiction(ctx, jurisdiction)
		})
	case q.Get("verified") == "true":
		h.writeAssetIDs(w, r, h.service.VerifiedAssets)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "owner, jurisdiction, or verified=true is required"))
	}
}

func (h *Handler) writeAssetIDs(w http.ResponseWriter, r *http.Request, query func(context.Context) ([]id.AssetID, error)) {
	assetIDs, err := query(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]id.AssetID{"asset_ids": assetIDs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := h.service.Get(r.Context(), assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

type transferRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[transferRequest](w, r, h.logger)
	if !ok {
		return
	}
	to, err := id.ParseAccountID(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Transfer(r.Context(), assetID, to); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferBatchRequest struct {
	Transfers []struct {
		AssetID id.AssetID `json:"asset_id"`
		To      string     `json:"to"`
	} `json:"transfers"`
}

func (h *Handler) handleTransferBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[transferBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	requests := make([]assetService.TransferRequest, 0, len(req.Transfers))
	for _, t := range req.Transfers {
		to, err := id.ParseAccountID(t.To)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		requests = append(requests, assetService.TransferRequest{AssetID: t.AssetID, To: to})
	}
	if err := h.service.TransferBatch(r.Context(), requests); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.assetAction(w, r, h.service.Verify)
}

func (h *Handler) handleUnverify(w http.ResponseWriter, r *http.Request) {
	h.assetAction(w, r, h.service.Unverify)
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	h.assetAction(w, r, h.service.Burn)
}

func (h *Handler) assetAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.AssetID) error) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := action(r.Context(), assetID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// approveRequest with an empty operator clears the standing approval.
type approveRequest struct {
	Operator string `json:"operator,omitempty"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[approveRequest](w, r, h.logger)
	if !ok {
		return
	}
	operator := id.NilAccount
	if req.Operator != "" {
		if operator, err = id.ParseAccountID(req.Operator); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if err := h.service.Approve(r.Context(), assetID, operator); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeApproval(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeApproval(r.Context(), assetID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type burnBatchRequest struct {
	AssetIDs []id.AssetID `json:"asset_ids"`
}

func (h *Handler) handleBurnBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[burnBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.BurnBatch(r.Context(), req.AssetIDs); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
