// Package service implements the identity and claims registry: account
// registration with a home jurisdiction, signed claims bucketed by topic, and
// the trusted-issuer table that controls who may attach claims.
package service

import (
	"context"
	"errors"
	"log/slog"

	"provena/internal/events"
	"provena/internal/identity/models"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
	"provena/pkg/requestcontext"
)

type Store interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, account id.AccountID) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, account id.AccountID) error
	UpdateIdentity(ctx context.Context, identity *models.Identity) error

	AddClaim(ctx context.Context, claim *models.Claim) error
	GetClaim(ctx context.Context, account id.AccountID, claimID id.ClaimID) (*models.Claim, error)
	RemoveClaim(ctx context.Context, account id.AccountID, claimID id.ClaimID) error
	ClaimsByTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) ([]*models.Claim, error)
	HasClaimForTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) (bool, error)
	ListClaims(ctx context.Context, account id.AccountID) ([]*models.Claim, error)

	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	GetIssuer(ctx context.Context, account id.AccountID) (*models.Issuer, error)
	UpdateIssuer(ctx context.Context, issuer *models.Issuer) error
	DeleteIssuer(ctx context.Context, account id.AccountID) error
}

// Access gates mutating operations on the caller's roles.
type Access interface {
	Require(ctx context.Context, account id.AccountID, role id.Role) error
	RequireAny(ctx context.Context, account id.AccountID, roles ...id.Role) error
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service owns identity lifecycle, claims, and the issuer registry.
// Verification status is derived, never stored: an account is verified while
// it holds at least one claim under every required topic.
type Service struct {
	store          Store
	access         Access
	logger         *slog.Logger
	publisher      EventPublisher
	requiredTopics []id.ClaimTopic
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithRequiredTopics overrides the claim topics an account must cover to
// count as verified.
func WithRequiredTopics(topics []id.ClaimTopic) Option {
	return func(s *Service) {
		if len(topics) > 0 {
			s.requiredTopics = topics
		}
	}
}

func New(store Store, access Access, opts ...Option) *Service {
	s := &Service{
		store:          store,
		access:         access,
		requiredTopics: id.DefaultRequiredTopics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registration is one entry of a batch register call.
type Registration struct {
	Account      id.AccountID
	Jurisdiction id.Jurisdiction
}

// Register creates an identity for an account. Agent or admin.
func (s *Service) Register(ctx context.Context, account id.AccountID, jurisdiction id.Jurisdiction) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.RequireAny(ctx, actor, id.RoleAgent, id.RoleAdmin); err != nil {
		return err
	}
	identity, err := models.NewIdentity(account, jurisdiction, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid identity")
	}
	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "identity already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register identity")
	}
	s.log(ctx, "identity registered", "account", account, "jurisdiction", jurisdiction)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIdentityRegistered,
		Actor:   actor,
		Account: account,
		Detail:  jurisdiction.String(),
	})
}

// RegisterBatch registers many accounts in one call. Entries that are already
// registered are skipped rather than failing the batch; any other error stops
// the batch at that entry.
func (s *Service) RegisterBatch(ctx context.Context, entries []Registration) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.RequireAny(ctx, actor, id.RoleAgent, id.RoleAdmin); err != nil {
		return err
	}
	for _, entry := range entries {
		identity, err := models.NewIdentity(entry.Account, entry.Jurisdiction, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.Wrapf(err, dErrors.CodeValidation, "invalid identity for %s", entry.Account)
		}
		if err := s.store.CreateIdentity(ctx, identity); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.log(ctx, "batch register skipped existing identity", "account", entry.Account)
				continue
			}
			return dErrors.Wrapf(err, dErrors.CodeInternal, "failed to register %s", entry.Account)
		}
		if err := s.emit(ctx, events.Event{
			Action:  events.ActionIdentityRegistered,
			Actor:   actor,
			Account: entry.Account,
			Detail:  entry.Jurisdiction.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an identity and every claim attached to it. Agent or admin.
func (s *Service) Delete(ctx context.Context, account id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.RequireAny(ctx, actor, id.RoleAgent, id.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteIdentity(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
	}
	s.log(ctx, "identity removed", "account", account)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIdentityRemoved,
		Actor:   actor,
		Account: account,
	})
}

// SetJurisdiction moves an account to a new home jurisdiction. Agent or
// admin. Compliance consequences surface on the next transfer check, not
// here.
func (s *Service) SetJurisdiction(ctx context.Context, account id.AccountID, jurisdiction id.Jurisdiction) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.RequireAny(ctx, actor, id.RoleAgent, id.RoleAdmin); err != nil {
		return err
	}
	if jurisdiction.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "invalid jurisdiction code")
	}
	identity, err := s.store.GetIdentity(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	identity.ApplyJurisdiction(jurisdiction, requestcontext.Now(ctx))
	if err := s.store.UpdateIdentity(ctx, identity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}
	s.log(ctx, "jurisdiction updated", "account", account, "jurisdiction", jurisdiction)
	return s.emit(ctx, events.Event{
		Action:  events.ActionJurisdictionUpdated,
		Actor:   actor,
		Account: account,
		Detail:  jurisdiction.String(),
	})
}

// Get returns the identity record for an account.
func (s *Service) Get(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// IsRegistered reports whether the account has an identity.
func (s *Service) IsRegistered(ctx context.Context, account id.AccountID) (bool, error) {
	_, err := s.store.GetIdentity(ctx, account)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return true, nil
}

// IsVerified reports whether the account holds at least one claim under every
// required topic. An unregistered account is simply not verified.
func (s *Service) IsVerified(ctx context.Context, account id.AccountID) (bool, error) {
	if _, err := s.store.GetIdentity(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	for _, topic := range s.requiredTopics {
		ok, err := s.store.HasClaimForTopic(ctx, account, topic)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claims")
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// JurisdictionOf returns the account's home jurisdiction.
func (s *Service) JurisdictionOf(ctx context.Context, account id.AccountID) (id.Jurisdiction, error) {
	identity, err := s.Get(ctx, account)
	if err != nil {
		return "", err
	}
	return identity.Jurisdiction, nil
}

// AddClaim attaches a claim to a registered account. The caller must be a
// registered issuer authorized for the claim's topic; admins get no bypass
// here, claim provenance matters.
func (s *Service) AddClaim(ctx context.Context, subject id.AccountID, topic id.ClaimTopic, scheme uint64, signature, data []byte, uri string) (id.ClaimID, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return id.ClaimID{}, dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	if !topic.IsValid() {
		return id.ClaimID{}, dErrors.Newf(dErrors.CodeValidation, "unknown claim topic %q", topic)
	}
	issuer, err := s.store.GetIssuer(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ClaimID{}, dErrors.New(dErrors.CodeForbidden, "caller is not a registered issuer")
		}
		return id.ClaimID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
	}
	if !issuer.CanIssue(topic) {
		return id.ClaimID{}, dErrors.Newf(dErrors.CodeForbidden, "issuer not authorized for topic %s", topic)
	}
	if _, err := s.store.GetIdentity(ctx, subject); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ClaimID{}, dErrors.New(dErrors.CodeNotFound, "subject identity not found")
		}
		return id.ClaimID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	claim, err := models.NewClaim(subject, topic, actor, scheme, signature, data, uri, requestcontext.Now(ctx))
	if err != nil {
		return id.ClaimID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid claim")
	}
	if err := s.store.AddClaim(ctx, claim); err != nil {
		return id.ClaimID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store claim")
	}
	s.log(ctx, "claim added", "account", subject, "topic", topic, "claim_id", claim.ID)
	if err := s.emit(ctx, events.Event{
		Action:  events.ActionClaimAdded,
		Actor:   actor,
		Account: subject,
		Detail:  topic.String(),
	}); err != nil {
		return id.ClaimID{}, err
	}
	return claim.ID, nil
}

// RemoveClaim revokes a claim. Only the issuer that attached it may remove
// it.
func (s *Service) RemoveClaim(ctx context.Context, subject id.AccountID, claimID id.ClaimID) error {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	claim, err := s.store.GetClaim(ctx, subject, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	if claim.Issuer != actor {
		return dErrors.New(dErrors.CodeForbidden, "only the issuing account may remove a claim")
	}
	if err := s.store.RemoveClaim(ctx, subject, claimID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove claim")
	}
	s.log(ctx, "claim removed", "account", subject, "claim_id", claimID)
	return s.emit(ctx, events.Event{
		Action:  events.ActionClaimRemoved,
		Actor:   actor,
		Account: subject,
		Detail:  claim.Topic.String(),
	})
}

// GetClaim returns one claim by id.
func (s *Service) GetClaim(ctx context.Context, subject id.AccountID, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.store.GetClaim(ctx, subject, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return claim, nil
}

// ClaimsByTopic returns the account's claims under one topic.
func (s *Service) ClaimsByTopic(ctx context.Context, subject id.AccountID, topic id.ClaimTopic) ([]*models.Claim, error) {
	if !topic.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown claim topic %q", topic)
	}
	claims, err := s.store.ClaimsByTopic(ctx, subject, topic)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// ListClaims returns every claim attached to an account.
func (s *Service) ListClaims(ctx context.Context, subject id.AccountID) ([]*models.Claim, error) {
	claims, err := s.store.ListClaims(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// AddIssuer registers a trusted issuer with its authorized topics. Admin
// only.
func (s *Service) AddIssuer(ctx context.Context, account id.AccountID, topics []id.ClaimTopic) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	issuer, err := models.NewIssuer(account, topics, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid issuer")
	}
	if err := s.store.CreateIssuer(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "issuer already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}
	s.log(ctx, "issuer added", "account", account, "topics", topics)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIssuerAdded,
		Actor:   actor,
		Account: account,
	})
}

// RemoveIssuer deregisters an issuer. Existing claims it issued survive;
// revocation is per-claim. Admin only.
func (s *Service) RemoveIssuer(ctx context.Context, account id.AccountID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteIssuer(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove issuer")
	}
	s.log(ctx, "issuer removed", "account", account)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIssuerRemoved,
		Actor:   actor,
		Account: account,
	})
}

// GrantTopic authorizes an issuer for an additional topic. Admin only.
func (s *Service) GrantTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	issuer, err := s.loadIssuer(ctx, account)
	if err != nil {
		return err
	}
	if err := issuer.GrantTopic(topic); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConflict, "cannot grant topic")
	}
	if err := s.store.UpdateIssuer(ctx, issuer); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update issuer")
	}
	s.log(ctx, "issuer topic granted", "account", account, "topic", topic)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIssuerTopicGranted,
		Actor:   actor,
		Account: account,
		Detail:  topic.String(),
	})
}

// RevokeTopic removes a topic authorization from an issuer. Admin only.
func (s *Service) RevokeTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	issuer, err := s.loadIssuer(ctx, account)
	if err != nil {
		return err
	}
	if err := issuer.RevokeTopic(topic); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "cannot revoke topic")
	}
	if err := s.store.UpdateIssuer(ctx, issuer); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update issuer")
	}
	s.log(ctx, "issuer topic revoked", "account", account, "topic", topic)
	return s.emit(ctx, events.Event{
		Action:  events.ActionIssuerTopicRevoked,
		Actor:   actor,
		Account: account,
		Detail:  topic.String(),
	})
}

// IssuerTopics returns the topics an issuer may issue for.
func (s *Service) IssuerTopics(ctx context.Context, account id.AccountID) ([]id.ClaimTopic, error) {
	issuer, err := s.loadIssuer(ctx, account)
	if err != nil {
		return nil, err
	}
	return issuer.TopicList(), nil
}

func (s *Service) loadIssuer(ctx context.Context, account id.AccountID) (*models.Issuer, error) {
	issuer, err := s.store.GetIssuer(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
	}
	return issuer, nil
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
