// Package service implements the escrow exchange: listings, custodial fund
// handling, atomic settlement, and dispute arbitration. Settlement commits
// the escrow state before any funds move or ownership changes, so a failure
// in an external effect can never be observed alongside a half-settled
// escrow.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	compliance "provena/internal/compliance/models"
	"provena/internal/events"
	"provena/internal/exchange/funds"
	"provena/internal/exchange/metrics"
	"provena/internal/exchange/models"
	"provena/internal/exchange/store"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
	"provena/pkg/requestcontext"
)

const feeDenominator = 10_000

type Store interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listing *models.Listing) error
	ActiveListings(ctx context.Context) ([]id.ListingID, error)

	CreateEscrow(ctx context.Context, escrow *models.Escrow) error
	GetEscrow(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error)
	UpdateEscrow(ctx context.Context, escrow *models.Escrow) error

	RecordSale(ctx context.Context, price, fee uint64) error
	GetStats(ctx context.Context) (store.Stats, error)
}

type Access interface {
	Require(ctx context.Context, account id.AccountID, role id.Role) error
	RequireAny(ctx context.Context, account id.AccountID, roles ...id.Role) error
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// FeeConfig is the settlement fee, read at settlement time rather than
// frozen at listing or purchase time.
type FeeConfig struct {
	Bps       uint64       `json:"bps"`
	Recipient id.AccountID `json:"recipient,omitempty"`
}

// Service owns the listing and escrow lifecycles. The operator account is
// the identity the exchange acts under when it moves assets; sellers approve
// it per asset before listing.
type Service struct {
	store      Store
	ledger     FundsLedger
	assets     AssetRegistry
	compliance Compliance
	access     Access
	logger     *slog.Logger
	publisher  EventPublisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	operator         id.AccountID
	maxListingExpiry time.Duration
	completionWindow time.Duration
	feeCapBps        uint64

	mu     sync.RWMutex
	fee    FeeConfig
	paused bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxListingExpiry bounds how far out a listing may expire.
func WithMaxListingExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxListingExpiry = d
		}
	}
}

// WithCompletionWindow sets the escrow completion deadline from initiation.
func WithCompletionWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.completionWindow = d
		}
	}
}

// WithFeeCap bounds the configurable fee in basis points.
func WithFeeCap(bps uint64) Option {
	return func(s *Service) { s.feeCapBps = bps }
}

func New(st Store, ledger FundsLedger, assets AssetRegistry, comp Compliance, access Access, operator id.AccountID, opts ...Option) *Service {
	s := &Service{
		store:            st,
		ledger:           ledger,
		assets:           assets,
		compliance:       comp,
		access:           access,
		operator:         operator,
		maxListingExpiry: 90 * 24 * time.Hour,
		completionWindow: 7 * 24 * time.Hour,
		feeCapBps:        1_000,
		tracer:           otel.Tracer("provena/exchange"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Listings
// =============================================================================

// List offers an asset for sale. The caller must own the unit and must have
// approved the exchange operator to move it; without that approval the
// settlement transfer would fail after funds are already held.
func (s *Service) List(ctx context.Context, assetID id.AssetID, price uint64, expiry time.Duration, description string) (id.ListingID, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return id.ListingID{}, dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return id.ListingID{}, err
	}
	if err := s.checkPrice(price); err != nil {
		return id.ListingID{}, err
	}
	if expiry <= 0 || expiry > s.maxListingExpiry {
		return id.ListingID{}, dErrors.New(dErrors.CodeValidation, "expiry outside the allowed window")
	}
	owner, err := s.assets.OwnerOf(ctx, assetID)
	if err != nil {
		return id.ListingID{}, err
	}
	if owner != actor {
		return id.ListingID{}, dErrors.New(dErrors.CodeForbidden, "only the owner may list an asset")
	}
	approved, err := s.assets.IsApprovedFor(ctx, assetID, s.operator)
	if err != nil {
		return id.ListingID{}, err
	}
	if !approved {
		return id.ListingID{}, dErrors.New(dErrors.CodeConflict, "exchange is not approved to move this asset")
	}
	listing, err := models.NewListing(assetID, actor, price, expiry, description, requestcontext.Now(ctx))
	if err != nil {
		return id.ListingID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid listing")
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return id.ListingID{}, dErrors.New(dErrors.CodeConflict, "asset already has a live listing")
		}
		return id.ListingID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store listing")
	}
	s.log(ctx, "listing created", "listing_id", listing.ID, "asset_id", assetID, "price", price)
	if err := s.emit(ctx, events.Event{
		Action:    events.ActionListingCreated,
		Actor:     actor,
		AssetID:   assetID,
		ListingID: listing.ID.String(),
		Amount:    price,
	}); err != nil {
		return id.ListingID{}, err
	}
	return listing.ID, nil
}

// Delist cancels a live listing. Seller only.
func (s *Service) Delist(ctx context.Context, listingID id.ListingID) error {
	return s.mutateListing(ctx, listingID, events.ActionListingDelisted, func(listing *models.Listing, now time.Time) error {
		return listing.ApplyCancelled(now)
	})
}

// DelistBatch cancels several live listings in one call, all or none. Every
// listing must belong to the caller and still be live; any failure leaves the
// whole batch untouched.
func (s *Service) DelistBatch(ctx context.Context, listingIDs []id.ListingID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	if len(listingIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "batch cannot be empty")
	}
	now := requestcontext.Now(ctx)
	staged := make([]*models.Listing, 0, len(listingIDs))
	for _, listingID := range listingIDs {
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return err
		}
		if actor != listing.Seller {
			return dErrors.New(dErrors.CodeForbidden, "only the seller may modify a listing")
		}
		if listing.Status == models.ListingActive && listing.IsExpired(now) {
			return dErrors.Newf(dErrors.CodeConflict, "listing %s has expired", listingID)
		}
		cancelled := *listing
		if err := cancelled.ApplyCancelled(now); err != nil {
			return err
		}
		staged = append(staged, &cancelled)
	}
	for _, listing := range staged {
		if err := s.store.UpdateListing(ctx, listing); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
		}
		if err := s.emit(ctx, events.Event{
			Action:    events.ActionListingDelisted,
			Actor:     actor,
			AssetID:   listing.AssetID,
			ListingID: listing.ID.String(),
			Amount:    listing.Price,
		}); err != nil {
			return err
		}
	}
	s.log(ctx, "batch delisted", "count", len(staged))
	return nil
}

// UpdatePrice changes the asking price of a live listing. Seller only.
func (s *Service) UpdatePrice(ctx context.Context, listingID id.ListingID, price uint64) error {
	if err := s.checkPrice(price); err != nil {
		return err
	}
	return s.mutateListing(ctx, listingID, events.ActionListingPriceUpdated, func(listing *models.Listing, now time.Time) error {
		return listing.ApplyPriceUpdate(price, now)
	})
}

// checkPrice bounds the asking price so the fee product price*bps cannot
// overflow uint64 at settlement.
func (s *Service) checkPrice(price uint64) error {
	if price == 0 {
		return dErrors.New(dErrors.CodeValidation, "price must be positive")
	}
	if s.feeCapBps > 0 && price > math.MaxUint64/s.feeCapBps {
		return dErrors.New(dErrors.CodeValidation, "price too large")
	}
	return nil
}

// Extend pushes a live listing's expiry out, bounded by the configured
// maximum window. Seller only.
func (s *Service) Extend(ctx context.Context, listingID id.ListingID, extension time.Duration) error {
	return s.mutateListing(ctx, listingID, events.ActionListingExtended, func(listing *models.Listing, now time.Time) error {
		return listing.ApplyExtend(extension, s.maxListingExpiry, now)
	})
}

func (s *Service) mutateListing(ctx context.Context, listingID id.ListingID, action events.Action, mutate func(*models.Listing, time.Time) error) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return err
	}
	if actor != listing.Seller {
		return dErrors.New(dErrors.CodeForbidden, "only the seller may modify a listing")
	}
	now := requestcontext.Now(ctx)
	if listing.Status == models.ListingActive && listing.IsExpired(now) {
		s.expireListing(ctx, listing)
		return dErrors.New(dErrors.CodeConflict, "listing has expired")
	}
	if err := mutate(listing, now); err != nil {
		return err
	}
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}
	s.log(ctx, "listing updated", "listing_id", listingID, "action", action)
	return s.emit(ctx, events.Event{
		Action:    action,
		Actor:     actor,
		AssetID:   listing.AssetID,
		ListingID: listingID.String(),
		Amount:    listing.Price,
	})
}

// GetListing returns one listing, lazily folding an overdue Active status to
// Expired.
func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingActive && listing.IsExpired(requestcontext.Now(ctx)) {
		s.expireListing(ctx, listing)
	}
	return listing, nil
}

// ActiveListings returns the listings still open at the request time.
func (s *Service) ActiveListings(ctx context.Context) ([]*models.Listing, error) {
	ids, err := s.store.ActiveListings(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	now := requestcontext.Now(ctx)
	open := make([]*models.Listing, 0, len(ids))
	for _, listingID := range ids {
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if listing.IsOpen(now) {
			open = append(open, listing)
		} else if listing.Status == models.ListingActive {
			s.expireListing(ctx, listing)
		}
	}
	return open, nil
}

// expireListing records a lazily observed expiry. Best effort: a failed
// update leaves the listing in the active set and the next observation
// retries.
func (s *Service) expireListing(ctx context.Context, listing *models.Listing) {
	listing.ApplyExpired()
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		s.log(ctx, "failed to record listing expiry", "listing_id", listing.ID, "error", err)
	}
}

// =============================================================================
// Escrow lifecycle
// =============================================================================

// InitiatePurchase opens an escrow against an open listing. The deposit must
// cover the price and compliance must clear the seller-to-buyer transfer;
// the escrow starts in FundsDeposited with the deposit held custodially.
func (s *Service) InitiatePurchase(ctx context.Context, listingID id.ListingID, deposit uint64) (id.EscrowID, error) {
	buyer := requestcontext.Actor(ctx)
	if buyer.IsNil() {
		return id.EscrowID{}, dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return id.EscrowID{}, err
	}
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return id.EscrowID{}, err
	}
	now := requestcontext.Now(ctx)
	if !listing.IsOpen(now) {
		if listing.Status == models.ListingActive {
			s.expireListing(ctx, listing)
		}
		return id.EscrowID{}, dErrors.New(dErrors.CodeConflict, "listing is not open")
	}
	if buyer == listing.Seller {
		return id.EscrowID{}, dErrors.New(dErrors.CodeValidation, "seller cannot buy their own listing")
	}
	if deposit < listing.Price {
		return id.EscrowID{}, dErrors.New(dErrors.CodeValidation, "deposit below listing price")
	}
	decision, err := s.compliance.CanTransferAsset(ctx, listing.Seller, buyer)
	if err != nil {
		return id.EscrowID{}, err
	}
	if !decision.Allowed {
		return id.EscrowID{}, rejectionError(decision)
	}

	escrow, err := models.NewEscrow(listing, buyer, deposit, s.completionWindow, now)
	if err != nil {
		return id.EscrowID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid purchase")
	}
	if err := listing.ApplySold(now); err != nil {
		return id.EscrowID{}, err
	}
	if err := s.store.CreateEscrow(ctx, escrow); err != nil {
		return id.EscrowID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store escrow")
	}
	if err := s.ledger.Hold(ctx, escrow.ID, deposit); err != nil {
		return id.EscrowID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hold deposit")
	}
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return id.EscrowID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}
	s.log(ctx, "purchase initiated", "escrow_id", escrow.ID, "listing_id", listingID, "buyer", buyer, "deposit", deposit)
	if err := s.emit(ctx, events.Event{
		Action:    events.ActionPurchaseInitiated,
		Actor:     buyer,
		Account:   listing.Seller,
		AssetID:   listing.AssetID,
		ListingID: listingID.String(),
		EscrowID:  escrow.ID.String(),
		Amount:    deposit,
	}); err != nil {
		return id.EscrowID{}, err
	}
	return escrow.ID, nil
}

// DepositFunds tops up an open escrow. Buyer only.
func (s *Service) DepositFunds(ctx context.Context, escrowID id.EscrowID, amount uint64) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if actor != escrow.Buyer {
		return dErrors.New(dErrors.CodeForbidden, "only the buyer may deposit")
	}
	if err := escrow.ApplyDeposit(amount); err != nil {
		return err
	}
	if err := s.store.UpdateEscrow(ctx, escrow); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update escrow")
	}
	if err := s.ledger.AddToHold(ctx, escrowID, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hold deposit")
	}
	s.log(ctx, "funds deposited", "escrow_id", escrowID, "amount", amount)
	return s.emit(ctx, events.Event{
		Action:   events.ActionFundsDeposited,
		Actor:    actor,
		EscrowID: escrowID.String(),
		Amount:   amount,
	})
}

// CompletePurchase settles an escrow: the asset and compliance
// preconditions are re-checked at settlement time to close the gap since
// initiation, the state transition commits, and only then do funds disburse
// and ownership move.
func (s *Service) CompletePurchase(ctx context.Context, escrowID id.EscrowID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if !escrow.IsParty(actor) {
		return dErrors.New(dErrors.CodeForbidden, "only buyer or seller may complete")
	}
	now := requestcontext.Now(ctx)
	if err := escrow.CanComplete(now); err != nil {
		return err
	}
	return s.settle(ctx, actor, escrow, func() error {
		return escrow.ApplyCompleted(now)
	}, events.ActionEscrowCompleted)
}

// settle runs the shared settlement sequence for completion and buyer-wins
// resolution. Ordering is the safety property: check every precondition
// (asset still held by the seller, operator approval intact, compliance
// re-validated), commit the escrow and listing state, then external effects
// (disburse, transfer asset, stats). Nothing is paid out until every leg is
// known to be able to succeed.
func (s *Service) settle(ctx context.Context, actor id.AccountID, escrow *models.Escrow, transition func() error, action events.Action) error {
	ctx, span := s.tracer.Start(ctx, "exchange.settle", trace.WithAttributes(
		attribute.String("escrow_id", escrow.ID.String()),
		attribute.Int64("price", int64(escrow.Price)),
	))
	defer span.End()
	start := time.Now()

	// the seller keeps ownership during escrow and can burn the asset or
	// revoke the operator approval; settlement must refuse rather than pay
	// out against a transfer that cannot complete
	owner, err := s.assets.OwnerOf(ctx, escrow.AssetID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "asset no longer exists")
		}
		return err
	}
	if owner != escrow.Seller {
		return dErrors.New(dErrors.CodeConflict, "seller no longer holds the asset")
	}
	approved, err := s.assets.IsApprovedFor(ctx, escrow.AssetID, s.operator)
	if err != nil {
		return err
	}
	if !approved {
		return dErrors.New(dErrors.CodeConflict, "exchange approval for the asset has been revoked")
	}

	decision, err := s.compliance.ValidateTransfer(ctx, escrow.Seller, escrow.Buyer, 1)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return rejectionError(decision)
	}

	listing, err := s.loadListing(ctx, escrow.ListingID)
	if err != nil {
		return err
	}
	if err := listing.ApplyCompleted(); err != nil {
		return err
	}

	fee := s.currentFee()
	feeAmount := escrow.Price * fee.Bps / feeDenominator
	surplus := escrow.Deposited - escrow.Price

	if err := transition(); err != nil {
		return err
	}
	if err := s.store.UpdateEscrow(ctx, escrow); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update escrow")
	}
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close listing")
	}

	payouts := []funds.Payout{
		{To: escrow.Seller, Amount: escrow.Price - feeAmount},
		{To: fee.Recipient, Amount: feeAmount},
		{To: escrow.Buyer, Amount: surplus},
	}
	if err := s.ledger.Disburse(ctx, escrow.ID, payouts); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to disburse escrow")
	}
	if err := s.assets.Transfer(requestcontext.WithActor(ctx, s.operator), escrow.AssetID, escrow.Buyer); err != nil {
		return err
	}
	if err := s.store.RecordSale(ctx, escrow.Price, feeAmount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sale")
	}
	if s.metrics != nil {
		s.metrics.ObserveSettlement(escrow.Price, start)
	}
	s.log(ctx, "escrow settled", "escrow_id", escrow.ID, "price", escrow.Price, "fee", feeAmount, "surplus", surplus)
	return s.emit(ctx, events.Event{
		Action:    action,
		Actor:     actor,
		Account:   escrow.Buyer,
		AssetID:   escrow.AssetID,
		ListingID: escrow.ListingID.String(),
		EscrowID:  escrow.ID.String(),
		Amount:    escrow.Price,
	})
}

// CancelPurchase unwinds an open escrow: full refund to the buyer and the
// listing reactivates if its deadline has not passed. Buyer, seller, or
// admin.
func (s *Service) CancelPurchase(ctx context.Context, escrowID id.EscrowID, reason string) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if !escrow.IsParty(actor) {
		if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
			return dErrors.New(dErrors.CodeForbidden, "only buyer, seller, or admin may cancel")
		}
	}
	return s.unwind(ctx, actor, escrow, false, true, reason, events.ActionEscrowCancelled)
}

// unwind cancels an escrow, refunds the buyer, and optionally reactivates
// the listing. State commits before the refund, mirroring settle.
func (s *Service) unwind(ctx context.Context, actor id.AccountID, escrow *models.Escrow, allowDisputed, reactivate bool, reason string, action events.Action) error {
	if err := escrow.ApplyCancelled(allowDisputed); err != nil {
		return err
	}
	if err := s.store.UpdateEscrow(ctx, escrow); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update escrow")
	}
	refunded, err := s.ledger.Refund(ctx, escrow.ID, escrow.Buyer)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to refund deposit")
	}
	if reactivate {
		if err := s.reactivateListing(ctx, escrow.ListingID); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveOutcome("cancelled")
	}
	s.log(ctx, "escrow cancelled", "escrow_id", escrow.ID, "refunded", refunded, "reason", reason)
	return s.emit(ctx, events.Event{
		Action:    action,
		Actor:     actor,
		Account:   escrow.Buyer,
		AssetID:   escrow.AssetID,
		ListingID: escrow.ListingID.String(),
		EscrowID:  escrow.ID.String(),
		Amount:    refunded,
		Reason:    reason,
	})
}

func (s *Service) reactivateListing(ctx context.Context, listingID id.ListingID) error {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return err
	}
	if err := listing.ApplyReactivated(requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}
	if listing.Status == models.ListingActive {
		return s.emit(ctx, events.Event{
			Action:    events.ActionListingReactivated,
			AssetID:   listing.AssetID,
			ListingID: listingID.String(),
		})
	}
	return nil
}

// RaiseDispute freezes an open escrow pending arbitration. Buyer or seller,
// once per escrow.
func (s *Service) RaiseDispute(ctx context.Context, escrowID id.EscrowID, reason string) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if err := s.requireRunning(); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if err := escrow.ApplyDisputed(actor, reason); err != nil {
		return err
	}
	if err := s.store.UpdateEscrow(ctx, escrow); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update escrow")
	}
	s.log(ctx, "dispute raised", "escrow_id", escrowID, "by", actor)
	return s.emit(ctx, events.Event{
		Action:   events.ActionDisputeRaised,
		Actor:    actor,
		EscrowID: escrowID.String(),
		Reason:   reason,
	})
}

// ResolveDispute arbitrates a disputed escrow. Buyer-wins runs the full
// settlement sequence; otherwise the buyer is refunded and the listing
// reactivates. Dispute-resolver role; works while paused so arbitration is
// never blocked by an operational freeze.
func (s *Service) ResolveDispute(ctx context.Context, escrowID id.EscrowID, buyerWins bool) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleDisputeResolver); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if escrow.Status != models.EscrowDisputed {
		return dErrors.New(dErrors.CodeConflict, "escrow is not under dispute")
	}
	if buyerWins {
		err = s.settle(ctx, actor, escrow, escrow.ApplyResolvedCompleted, events.ActionEscrowCompleted)
	} else {
		err = s.unwind(ctx, actor, escrow, true, true, "dispute resolved for seller", events.ActionEscrowCancelled)
	}
	if err != nil {
		return err
	}
	return s.emit(ctx, events.Event{
		Action:   events.ActionDisputeResolved,
		Actor:    actor,
		EscrowID: escrowID.String(),
		Detail:   resolutionDetail(buyerWins),
	})
}

// EmergencyWithdraw force-cancels an escrow and refunds the remaining
// deposit. Admin only; deliberately usable while paused. The listing is left
// as-is: an emergency is not a resumption of normal trade.
func (s *Service) EmergencyWithdraw(ctx context.Context, escrowID id.EscrowID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	escrow, err := s.loadEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	return s.unwind(ctx, actor, escrow, true, false, "emergency withdrawal", events.ActionEmergencyWithdrawal)
}

// =============================================================================
// Configuration
// =============================================================================

// UpdateFee sets the settlement fee. Admin or fee-manager; the rate is read
// at settlement time, never frozen into listings or escrows.
func (s *Service) UpdateFee(ctx context.Context, bps uint64, recipient id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.RequireAny(ctx, actor, id.RoleAdmin, id.RoleFeeManager); err != nil {
		return err
	}
	if bps > s.feeCapBps {
		return dErrors.Newf(dErrors.CodeValidation, "fee exceeds the %d bps cap", s.feeCapBps)
	}
	if bps > 0 && recipient.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "fee recipient is required for a nonzero fee")
	}
	s.mu.Lock()
	s.fee = FeeConfig{Bps: bps, Recipient: recipient}
	s.mu.Unlock()
	s.log(ctx, "fee updated", "bps", bps, "recipient", recipient)
	return s.emit(ctx, events.Event{
		Action:  events.ActionFeeUpdated,
		Actor:   actor,
		Account: recipient,
		Amount:  bps,
	})
}

// Fee returns the current fee configuration.
func (s *Service) Fee() FeeConfig {
	return s.currentFee()
}

func (s *Service) currentFee() FeeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fee
}

// Pause freezes all exchange mutations except emergency withdrawal and
// dispute resolution. Admin only.
func (s *Service) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true, events.ActionExchangePaused)
}

// Unpause resumes the exchange. Admin only.
func (s *Service) Unpause(ctx context.Context) error {
	return s.setPaused(ctx, false, events.ActionExchangeUnpaused)
}

// IsPaused reports the exchange pause state.
func (s *Service) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *Service) setPaused(ctx context.Context, paused bool, action events.Action) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
	s.log(ctx, "exchange pause state changed", "paused", paused)
	return s.emit(ctx, events.Event{Action: action, Actor: actor})
}

func (s *Service) requireRunning() error {
	if s.IsPaused() {
		return dErrors.New(dErrors.CodePaused, "exchange is paused")
	}
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// GetEscrow returns one escrow.
func (s *Service) GetEscrow(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error) {
	return s.loadEscrow(ctx, escrowID)
}

// Stats returns the aggregate settlement counters.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return store.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read stats")
	}
	return stats, nil
}

// BalanceOf returns an account's settled ledger balance.
func (s *Service) BalanceOf(ctx context.Context, account id.AccountID) (uint64, error) {
	balance, err := s.ledger.BalanceOf(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}

func (s *Service) loadListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "listing not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return listing, nil
}

func (s *Service) loadEscrow(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error) {
	escrow, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escrow not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escrow")
	}
	return escrow, nil
}

func resolutionDetail(buyerWins bool) string {
	if buyerWins {
		return "buyer_wins"
	}
	return "seller_wins"
}

// rejectionError converts a compliance decision into the caller-facing
// error, reason verbatim.
func rejectionError(decision compliance.Decision) error {
	if decision.Code == compliance.RejectTransfersPaused {
		return dErrors.New(dErrors.CodePaused, decision.Reason)
	}
	return dErrors.New(dErrors.CodeComplianceRejected, decision.Reason)
}

func (s *Service) emit(ctx context.Context, event events.Event) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, event)
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}
