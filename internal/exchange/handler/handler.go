// Package handler exposes the escrow exchange over HTTP. Durations cross the
// wire as whole seconds.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"provena/internal/exchange/models"
	"provena/internal/exchange/service"
	"provena/internal/exchange/store"
	id "provena/pkg/domain"
	"provena/pkg/platform/httputil"
)

// Service defines the exchange operations the handler needs.
type Service interface {
	List(ctx context.Context, assetID id.AssetID, price uint64, expiry time.Duration, description string) (id.ListingID, error)
	Delist(ctx context.Context, listingID id.ListingID) error
	DelistBatch(ctx context.Context, listingIDs []id.ListingID) error
	UpdatePrice(ctx context.Context, listingID id.ListingID, price uint64) error
	Extend(ctx context.Context, listingID id.ListingID, extension time.Duration) error
	GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	ActiveListings(ctx context.Context) ([]*models.Listing, error)
	InitiatePurchase(ctx context.Context, listingID id.ListingID, deposit uint64) (id.EscrowID, error)
	DepositFunds(ctx context.Context, escrowID id.EscrowID, amount uint64) error
	CompletePurchase(ctx context.Context, escrowID id.EscrowID) error
	CancelPurchase(ctx context.Context, escrowID id.EscrowID, reason string) error
	RaiseDispute(ctx context.Context, escrowID id.EscrowID, reason string) error
	ResolveDispute(ctx context.Context, escrowID id.EscrowID, buyerWins bool) error
	EmergencyWithdraw(ctx context.Context, escrowID id.EscrowID) error
	GetEscrow(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error)
	UpdateFee(ctx context.Context, bps uint64, recipient id.AccountID) error
	Fee() service.FeeConfig
	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
	BalanceOf(ctx context.Context, account id.AccountID) (uint64, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the exchange routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/exchange/listings", h.handleList)
	r.Get("/exchange/listings", h.handleActiveListings)
	r.Get("/exchange/listings/{listingID}", h.handleGetListing)
	r.Delete("/exchange/listings/{listingID}", h.handleDelist)
	r.Post("/exchange/listings/delist/batch", h.handleDelistBatch)
	r.Put("/exchange/listings/{listingID}/price", h.handleUpdatePrice)
	r.Put("/exchange/listings/{listingID}/expiry", h.handleExtend)
	r.Post("/exchange/listings/{listingID}/purchase", h.handleInitiatePurchase)
	r.Get("/exchange/escrows/{escrowID}", h.handleGetEscrow)
	r.Post("/exchange/escrows/{escrowID}/deposit", h.handleDepositFunds)
	r.Post("/exchange/escrows/{escrowID}/complete", h.handleComplete)
	r.Post("/exchange/escrows/{escrowID}/cancel", h.handleCancel)
	r.Post("/exchange/escrows/{escrowID}/dispute", h.handleDispute)
	r.Post("/exchange/escrows/{escrowID}/resolve", h.handleResolve)
	r.Post("/exchange/escrows/{escrowID}/emergency-withdraw", h.handleEmergencyWithdraw)
	r.Get("/exchange/fee", h.handleGetFee)
	r.Put("/exchange/fee", h.handleUpdateFee)
	r.Post("/exchange/pause", h.handlePause)
	r.Post("/exchange/unpause", h.handleUnpause)
	r.Get("/exchange/stats", h.handleStats)
	r.Get("/exchange/balances/{account}", h.handleBalance)
}

type listRequest struct {
	AssetID       id.AssetID `json:"asset_id"`
	Price         uint64     `json:"price"`
	ExpirySeconds int64      `json:"expiry_seconds"`
	Description   string     `json:"description,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[listRequest](w, r, h.logger)
	if !ok {
		return
	}
	listingID, err := h.service.List(r.Context(), req.AssetID, req.Price,
		time.Duration(req.ExpirySeconds)*time.Second, req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"listing_id": listingID.String()})
}

func (h *Handler) handleActiveListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ActiveListings(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	listing, err := h.service.GetListing(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleDelist(w http.ResponseWriter, r *http.Request) {
	h.listingAction(w, r, h.service.Delist)
}

type delistBatchRequest struct {
	ListingIDs []string `json:"listing_ids"`
}

func (h *Handler) handleDelistBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[delistBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	listingIDs := make([]id.ListingID, 0, len(req.ListingIDs))
	for _, raw := range req.ListingIDs {
		listingID, err := id.ParseListingID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		listingIDs = append(listingIDs, listingID)
	}
	if err := h.service.DelistBatch(r.Context(), listingIDs); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type priceRequest struct {
	Price uint64 `json:"price"`
}

func (h *Handler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[priceRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.UpdatePrice(r.Context(), listingID, req.Price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type extendRequest struct {
	ExtensionSeconds int64 `json:"extension_seconds"`
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[extendRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.Extend(r.Context(), listingID, time.Duration(req.ExtensionSeconds)*time.Second); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type purchaseRequest struct {
	Deposit uint64 `json:"deposit"`
}

func (h *Handler) handleInitiatePurchase(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[purchaseRequest](w, r, h.logger)
	if !ok {
		return
	}
	escrowID, err := h.service.InitiatePurchase(r.Context(), listingID, req.Deposit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"escrow_id": escrowID.String()})
}

func (h *Handler) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	escrow, err := h.service.GetEscrow(r.Context(), escrowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, escrow)
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleDepositFunds(w http.ResponseWriter, r *http.Request) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[depositRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.DepositFunds(r.Context(), escrowID, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.escrowAction(w, r, h.service.CompletePurchase)
}

func (h *Handler) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	h.escrowAction(w, r, h.service.EmergencyWithdraw)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.escrowReasonAction(w, r, h.service.CancelPurchase)
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	h.escrowReasonAction(w, r, h.service.RaiseDispute)
}

type resolveRequest struct {
	BuyerWins bool `json:"buyer_wins"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[resolveRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.ResolveDispute(r.Context(), escrowID, req.BuyerWins); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetFee(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Fee())
}

type feeRequest struct {
	Bps       uint64 `json:"bps"`
	Recipient string `json:"recipient,omitempty"`
}

func (h *Handler) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[feeRequest](w, r, h.logger)
	if !ok {
		return
	}
	recipient := id.NilAccount
	if req.Recipient != "" {
		var err error
		if recipient, err = id.ParseAccountID(req.Recipient); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if err := h.service.UpdateFee(r.Context(), req.Bps, recipient); err != nil {
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

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.BalanceOf(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (h *Handler) listingAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.ListingID) error) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := action(r.Context(), listingID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) escrowAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.EscrowID) error) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := action(r.Context(), escrowID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) escrowReasonAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.EscrowID, string) error) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[reasonRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := action(r.Context(), escrowID, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
