// Package service implements the asset registry: one ownership record per
// minted unit, compliance validation in front of every ownership change, and
// secondary indices kept consistent with the records.
package service

import (
	"context"
	"errors"
	"log/slog"

	"provena/internal/asset/models"
	compliance "provena/internal/compliance/models"
	"provena/internal/events"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
	"provena/pkg/requestcontext"
)

type Store interface {
	NextID(ctx context.Context) (id.AssetID, error)
	Create(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	Update(ctx context.Context, asset *models.Asset) error
	Delete(ctx context.Context, assetID id.AssetID) error
	ByOwner(ctx context.Context, owner id.AccountID) ([]id.AssetID, error)
	ByJurisdiction(ctx context.Context, jurisdiction id.Jurisdiction) ([]id.AssetID, error)
	VerifiedAssets(ctx context.Context) ([]id.AssetID, error)
}

// Compliance gates every ownership change. The null account on either side
// marks a mint or burn leg.
type Compliance interface {
	CanTransferAsset(ctx context.Context, from, to id.AccountID) (compliance.Decision, error)
}

// Identity resolves the jurisdiction captured on ownership changes.
type Identity interface {
	JurisdictionOf(ctx context.Context, account id.AccountID) (id.Jurisdiction, error)
}

type Access interface {
	Require(ctx context.Context, account id.AccountID, role id.Role) error
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// MintRequest is one entry of a mint batch.
type MintRequest struct {
	To             id.AccountID `json:"to"`
	MetadataRef    string       `json:"metadata_ref"`
	LegalEntityRef string       `json:"legal_entity_ref,omitempty"`
	Extended       []byte       `json:"extended,omitempty"`
}

// TransferRequest is one entry of a transfer batch.
type TransferRequest struct {
	AssetID id.AssetID   `json:"asset_id"`
	To      id.AccountID `json:"to"`
}

// Service owns the asset lifecycle. Batch operations are all-or-nothing:
// every entry is validated before any entry commits, so a mid-batch failure
// leaves no partial index state.
type Service struct {
	store      Store
	compliance Compliance
	identity   Identity
	access     Access
	logger     *slog.Logger
	publisher  EventPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func New(store Store, compliance Compliance, identity Identity, access Access, opts ...Option) *Service {
	s := &Service{
		store:      store,
		compliance: compliance,
		identity:   identity,
		access:     access,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint creates a new ownership record. Minter role; the compliance check
// treats the mint as a transfer from the null account.
func (s *Service) Mint(ctx context.Context, to id.AccountID, metadataRef, legalEntityRef string, extended []byte) (id.AssetID, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleMinter); err != nil {
		return 0, err
	}
	asset, err := s.prepareMint(ctx, MintRequest{To: to, MetadataRef: metadataRef, LegalEntityRef: legalEntityRef, Extended: extended})
	if err != nil {
		return 0, err
	}
	if err := s.commitMint(ctx, actor, asset); err != nil {
		return 0, err
	}
	return asset.ID, nil
}

// MintBatch mints every entry or none: all entries are validated up front and
// a validation failure aborts the batch before any record exists.
func (s *Service) MintBatch(ctx context.Context, requests []MintRequest) ([]id.AssetID, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleMinter); err != nil {
		return nil, err
	}
	prepared := make([]*models.Asset, 0, len(requests))
	for i, request := range requests {
		asset, err := s.prepareMint(ctx, request)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeOf(err), "batch entry %d", i)
		}
		prepared = append(prepared, asset)
	}
	ids := make([]id.AssetID, 0, len(prepared))
	for _, asset := range prepared {
		if err := s.commitMint(ctx, actor, asset); err != nil {
			return nil, err
		}
		ids = append(ids, asset.ID)
	}
	return ids, nil
}

func (s *Service) prepareMint(ctx context.Context, request MintRequest) (*models.Asset, error) {
	if request.To.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "mint target is required")
	}
	if request.MetadataRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "metadata reference is required")
	}
	decision, err := s.compliance.CanTransferAsset(ctx, id.NilAccount, request.To)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, rejectionError(decision)
	}
	jurisdiction, err := s.identity.JurisdictionOf(ctx, request.To)
	if err != nil {
		return nil, err
	}
	assetID, err := s.store.NextID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate asset id")
	}
	asset, err := models.NewAsset(assetID, request.To, request.MetadataRef, request.LegalEntityRef, request.Extended, jurisdiction, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid asset")
	}
	return asset, nil
}

func (s *Service) commitMint(ctx context.Context, actor id.AccountID, asset *models.Asset) error {
	if err := s.store.Create(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store asset")
	}
	s.log(ctx, "asset minted", "asset_id", asset.ID, "owner", asset.Owner)
	return s.emit(ctx, events.Event{
		Action:  events.ActionAssetMinted,
		Actor:   actor,
		Account: asset.Owner,
		AssetID: asset.ID,
	})
}

// Transfer moves ownership of one unit. The caller must be the current owner
// or the approved delegate; the compliance unit check must pass.
func (s *Service) Transfer(ctx context.Context, assetID id.AssetID, to id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	asset, err := s.prepareTransfer(ctx, actor, TransferRequest{AssetID: assetID, To: to})
	if err != nil {
		return err
	}
	return s.commitTransfer(ctx, actor, asset, to)
}

// TransferBatch transfers every entry or none. Duplicate asset ids in one
// batch are rejected: the second entry would be validated against stale
// ownership.
func (s *Service) TransferBatch(ctx context.Context, requests []TransferRequest) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	seen := make(map[id.AssetID]struct{}, len(requests))
	prepared := make([]*models.Asset, 0, len(requests))
	for i, request := range requests {
		if _, dup := seen[request.AssetID]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "batch entry %d: duplicate asset id", i)
		}
		seen[request.AssetID] = struct{}{}
		asset, err := s.prepareTransfer(ctx, actor, request)
		if err != nil {
			return dErrors.Wrapf(err, dErrors.CodeOf(err), "batch entry %d", i)
		}
		prepared = append(prepared, asset)
	}
	for i, asset := range prepared {
		if err := s.commitTransfer(ctx, actor, asset, requests[i].To); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) prepareTransfer(ctx context.Context, actor id.AccountID, request TransferRequest) (*models.Asset, error) {
	if request.To.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "transfer target is required")
	}
	asset, err := s.load(ctx, request.AssetID)
	if err != nil {
		return nil, err
	}
	if actor != asset.Owner && !asset.IsApprovedFor(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is neither owner nor approved delegate")
	}
	decision, err := s.compliance.CanTransferAsset(ctx, asset.Owner, request.To)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, rejectionError(decision)
	}
	return asset, nil
}

func (s *Service) commitTransfer(ctx context.Context, actor id.AccountID, asset *models.Asset, to id.AccountID) error {
	from := asset.Owner
	jurisdiction, err := s.identity.JurisdictionOf(ctx, to)
	if err != nil {
		return err
	}
	if err := asset.ApplyTransfer(to, jurisdiction, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "transfer rejected")
	}
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	s.log(ctx, "asset transferred", "asset_id", asset.ID, "from", from, "to", to)
	return s.emit(ctx, events.Event{
		Action:  events.ActionAssetTransferred,
		Actor:   actor,
		Account: to,
		AssetID: asset.ID,
		Detail:  from.String(),
	})
}

// Verify flips the verified flag on. Verifier role.
func (s *Service) Verify(ctx context.Context, assetID id.AssetID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleVerifier); err != nil {
		return err
	}
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return err
	}
	if err := asset.ApplyVerify(actor, requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	s.log(ctx, "asset verified", "asset_id", assetID, "verifier", actor)
	return s.emit(ctx, events.Event{
		Action:  events.ActionAssetVerified,
		Actor:   actor,
		AssetID: assetID,
	})
}

// Unverify clears the verified flag. Verifier role.
func (s *Service) Unverify(ctx context.Context, assetID id.AssetID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleVerifier); err != nil {
		return err
	}
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return err
	}
	if err := asset.ApplyUnverify(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	s.log(ctx, "asset unverified", "asset_id", assetID)
	return s.emit(ctx, events.Event{
		Action:  events.ActionAssetUnverified,
		Actor:   actor,
		AssetID: assetID,
	})
}

// Burn deletes a unit. Owner or approved delegate; all indices are cleaned
// with the record.
func (s *Service) Burn(ctx context.Context, assetID id.AssetID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	asset, err := s.prepareBurn(ctx, actor, assetID)
	if err != nil {
		return err
	}
	return s.commitBurn(ctx, actor, asset)
}

// BurnBatch burns every entry or none.
func (s *Service) BurnBatch(ctx context.Context, assetIDs []id.AssetID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	prepared := make([]*models.Asset, 0, len(assetIDs))
	for i, assetID := range assetIDs {
		asset, err := s.prepareBurn(ctx, actor, assetID)
		if err != nil {
			return dErrors.Wrapf(err, dErrors.CodeOf(err), "batch entry %d", i)
		}
		prepared = append(prepared, asset)
	}
	for _, asset := range prepared {
		if err := s.commitBurn(ctx, actor, asset); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) prepareBurn(ctx context.Context, actor id.AccountID, assetID id.AssetID) (*models.Asset, error) {
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.CanBeBurnedBy(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is neither owner nor approved delegate")
	}
	return asset, nil
}

func (s *Service) commitBurn(ctx context.Context, actor id.AccountID, asset *models.Asset) error {
	if err := s.store.Delete(ctx, asset.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete asset")
	}
	s.log(ctx, "asset burned", "asset_id", asset.ID, "owner", asset.Owner)
	return s.emit(ctx, events.Event{
		Action:  events.ActionAssetBurned,
		Actor:   actor,
		Account: asset.Owner,
		AssetID: asset.ID,
	})
}

// Approve delegates burn and exchange rights for one asset. Owner only; an
// empty operator clears the delegation.
func (s *Service) Approve(ctx context.Context, assetID id.AssetID, operator id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return err
	}
	if actor != asset.Owner {
		return dErrors.New(dErrors.CodeForbidden, "only the owner may approve a delegate")
	}
	asset.Approved = operator
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	s.log(ctx, "asset approval set", "asset_id", assetID, "operator", operator)
	return nil
}

// RevokeApproval clears the standing delegation on an asset. Owner only;
// revoking when no delegate is set is a no-op.
func (s *Service) RevokeApproval(ctx context.Context, assetID id.AssetID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return err
	}
	if actor != asset.Owner {
		return dErrors.New(dErrors.CodeForbidden, "only the owner may revoke a delegate")
	}
	if asset.Approved.IsNil() {
		return nil
	}
	asset.Approved = id.NilAccount
	if err := s.store.Update(ctx, asset); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update asset")
	}
	s.log(ctx, "asset approval revoked", "asset_id", assetID)
	return nil
}

// IsApprovedFor reports whether operator holds the per-asset delegation.
func (s *Service) IsApprovedFor(ctx context.Context, assetID id.AssetID, operator id.AccountID) (bool, error) {
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return false, err
	}
	return asset.IsApprovedFor(operator), nil
}

// Get returns one asset record.
func (s *Service) Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	return s.load(ctx, assetID)
}

// OwnerOf returns the current owner of a unit.
func (s *Service) OwnerOf(ctx context.Context, assetID id.AssetID) (id.AccountID, error) {
	asset, err := s.load(ctx, assetID)
	if err != nil {
		return id.NilAccount, err
	}
	return asset.Owner, nil
}

// AssetsOf lists the unit ids owned by an account.
func (s *Service) AssetsOf(ctx context.Context, owner id.AccountID) ([]id.AssetID, error) {
	ids, err := s.store.ByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return ids, nil
}

// AssetsInJurisdiction lists the unit ids currently keyed to a jurisdiction.
func (s *Service) AssetsInJurisdiction(ctx context.Context, jurisdiction id.Jurisdiction) ([]id.AssetID, error) {
	ids, err := s.store.ByJurisdiction(ctx, jurisdiction)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return ids, nil
}

// VerifiedAssets lists the verified unit ids.
func (s *Service) VerifiedAssets(ctx context.Context) ([]id.AssetID, error) {
	ids, err := s.store.VerifiedAssets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return ids, nil
}

func (s *Service) load(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	asset, err := s.store.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

// rejectionError converts a compliance decision into the error surfaced to
// callers. The reason string travels verbatim; the pause rejection maps to
// its own code.
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
