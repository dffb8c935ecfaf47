// Package service implements the role table gating every mutating operation
// in the registry core. Role checks are the first guard in each operation:
// a caller that fails the table gets an authorization error before any state
// is touched.
package service

import (
	"context"
	"errors"
	"log/slog"

	"provena/internal/events"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
	"provena/pkg/requestcontext"
)

type Store interface {
	Grant(ctx context.Context, account id.AccountID, role id.Role) error
	Revoke(ctx context.Context, account id.AccountID, role id.Role) error
	HasRole(ctx context.Context, account id.AccountID, role id.Role) (bool, error)
	RolesOf(ctx context.Context, account id.AccountID) ([]id.Role, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service answers "may this account invoke this operation class" and manages
// grants. Grant/Revoke are themselves admin-gated.
type Service struct {
	store     Store
	logger    *slog.Logger
	publisher EventPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Require fails with CodeForbidden unless account holds role.
func (s *Service) Require(ctx context.Context, account id.AccountID, role id.Role) error {
	if account.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	ok, err := s.store.HasRole(ctx, account, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve roles")
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeForbidden, "account lacks %s role", role)
	}
	return nil
}

// RequireAny fails with CodeForbidden unless account holds at least one of
// the given roles.
func (s *Service) RequireAny(ctx context.Context, account id.AccountID, roles ...id.Role) error {
	if account.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}
	for _, role := range roles {
		ok, err := s.store.HasRole(ctx, account, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve roles")
		}
		if ok {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "account lacks required role")
}

// Grant assigns a role to an account. Admin only.
func (s *Service) Grant(ctx context.Context, account id.AccountID, role id.Role) error {
	actor := requestcontext.Actor(ctx)
	if err := s.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if account.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "account is required")
	}
	if err := s.store.Grant(ctx, account, role); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "role already granted")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	s.log(ctx, "role granted", "account", account, "role", role)
	return s.emit(ctx, events.ActionRoleGranted, actor, account, role)
}

// Revoke removes a role from an account. Admin only.
func (s *Service) Revoke(ctx context.Context, account id.AccountID, role id.Role) error {
	actor := requestcontext.Actor(ctx)
	if err := s.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.Revoke(ctx, account, role); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role grant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	s.log(ctx, "role revoked", "account", account, "role", role)
	return s.emit(ctx, events.ActionRoleRevoked, actor, account, role)
}

// RolesOf lists the roles held by an account.
func (s *Service) RolesOf(ctx context.Context, account id.AccountID) ([]id.Role, error) {
	return s.store.RolesOf(ctx, account)
}

// Bootstrap grants the admin role without a caller check. Called once at
// startup to seed the configured admin account; never exposed over transport.
func (s *Service) Bootstrap(ctx context.Context, account id.AccountID) error {
	if account.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "bootstrap account is required")
	}
	if err := s.store.Grant(ctx, account, id.RoleAdmin); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bootstrap admin")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action events.Action, actor, subject id.AccountID, role id.Role) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, events.Event{
		Action:  action,
		Actor:   actor,
		Account: subject,
		Detail:  role.String(),
	})
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
