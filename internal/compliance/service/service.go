// Package service implements the compliance rule engine. Transfer
// eligibility combines identity verification, the country allowlist, holding
// limits, and an ordered set of custom rules; the first failing condition is
// the decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"provena/internal/compliance/metrics"
	"provena/internal/compliance/models"
	"provena/internal/events"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
	"provena/pkg/requestcontext"
)

// Rejection reason strings. Reasons are part of the external contract: they
// are surfaced verbatim to end users and recorded in audit events.
const (
	ReasonTransfersPaused     = "Transfers are paused"
	ReasonSenderNotVerified   = "Sender not verified"
	ReasonSenderCountry       = "Sender country not allowed"
	ReasonReceiverNotVerified = "Receiver not verified"
	ReasonReceiverCountry     = "Receiver country not allowed"
	ReasonBelowMinimum        = "Amount below minimum holding"
	ReasonAboveMaximum        = "Amount exceeds maximum holding"
)

type Store interface {
	IsPaused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
	HoldingLimits(ctx context.Context) (min, max uint64, err error)
	SetHoldingLimits(ctx context.Context, min, max uint64) error
	IsCountryAllowed(ctx context.Context, jurisdiction id.Jurisdiction) (bool, error)
	SetCountryAllowed(ctx context.Context, jurisdiction id.Jurisdiction, allowed bool) error

	AddRule(ctx context.Context, rule *models.Rule) error
	GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)
	UpdateRule(ctx context.Context, rule *models.Rule) error
	RemoveRule(ctx context.Context, ruleID id.RuleID) error
	ListRules(ctx context.Context) ([]*models.Rule, error)
}

// Identity answers verification and jurisdiction queries for accounts.
type Identity interface {
	IsVerified(ctx context.Context, account id.AccountID) (bool, error)
	JurisdictionOf(ctx context.Context, account id.AccountID) (id.Jurisdiction, error)
}

type Access interface {
	Require(ctx context.Context, account id.AccountID, role id.Role) error
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// TransferCheck is one entry of a batch eligibility query.
type TransferCheck struct {
	From   id.AccountID `json:"from"`
	To     id.AccountID `json:"to"`
	Amount uint64       `json:"amount"`
}

// Service evaluates transfer eligibility and manages the rule configuration.
// CanTransfer is pure; ValidateTransfer adds the audit record.
type Service struct {
	store     Store
	identity  Identity
	access    Access
	logger    *slog.Logger
	publisher EventPublisher
	metrics   *metrics.Metrics
	factories map[string]models.PredicateFactory
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

func New(store Store, identity Identity, access Access, opts ...Option) *Service {
	s := &Service{
		store:     store,
		identity:  identity,
		access:    access,
		factories: make(map[string]models.PredicateFactory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterPredicate makes a rule kind available for AddRule. Called at wiring
// time; the engine ships with no built-in kinds.
func (s *Service) RegisterPredicate(kind string, factory models.PredicateFactory) error {
	if kind == "" || factory == nil {
		return dErrors.New(dErrors.CodeValidation, "predicate kind and factory are required")
	}
	if _, ok := s.factories[kind]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "predicate kind %q already registered", kind)
	}
	s.factories[kind] = factory
	return nil
}

// CanTransfer evaluates a proposed transfer without side effects. The checks
// run in a fixed order and stop at the first failure: pause flag, sender
// verification and jurisdiction (skipped when from is the mint side),
// receiver verification and jurisdiction, holding bounds, then custom rules
// in insertion order.
func (s *Service) CanTransfer(ctx context.Context, from, to id.AccountID, amount uint64) (models.Decision, error) {
	paused, err := s.store.IsPaused(ctx)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause state")
	}
	if paused {
		return models.Rejected(models.RejectTransfersPaused, ReasonTransfersPaused), nil
	}

	if !from.IsNil() {
		decision, err := s.checkParty(ctx, from, ReasonSenderNotVerified, ReasonSenderCountry)
		if err != nil || !decision.Allowed {
			return decision, err
		}
	}
	decision, err := s.checkParty(ctx, to, ReasonReceiverNotVerified, ReasonReceiverCountry)
	if err != nil || !decision.Allowed {
		return decision, err
	}

	min, max, err := s.store.HoldingLimits(ctx)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read holding limits")
	}
	if min > 0 && amount < min {
		return models.Rejected(models.RejectAmountTooLow, ReasonBelowMinimum), nil
	}
	if max > 0 && amount > max {
		return models.Rejected(models.RejectAmountTooHigh, ReasonAboveMaximum), nil
	}

	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rules")
	}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		ok, reason, err := rule.Predicate().Evaluate(ctx, from, to, amount)
		if err != nil {
			return models.Decision{}, dErrors.Wrapf(err, dErrors.CodeInternal, "rule %s evaluation failed", rule.ID)
		}
		if !ok {
			if reason == "" {
				reason = fmt.Sprintf("Rejected by rule %s", rule.ID)
			}
			return models.Rejected(models.RejectCustomRuleFailed, reason), nil
		}
	}

	return models.Allowed(), nil
}

func (s *Service) checkParty(ctx context.Context, account id.AccountID, unverifiedReason, countryReason string) (models.Decision, error) {
	verified, err := s.identity.IsVerified(ctx, account)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verification")
	}
	if !verified {
		return models.Rejected(models.RejectUnverifiedParty, unverifiedReason), nil
	}
	jurisdiction, err := s.identity.JurisdictionOf(ctx, account)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve jurisdiction")
	}
	allowed, err := s.store.IsCountryAllowed(ctx, jurisdiction)
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check allowlist")
	}
	if !allowed {
		return models.Rejected(models.RejectCountryNotAllowed, countryReason), nil
	}
	return models.Allowed(), nil
}

// CanTransferAsset maps a single-unit transfer onto the amount-based check.
// Every asset unit has uniform weight for holding-limit purposes.
func (s *Service) CanTransferAsset(ctx context.Context, from, to id.AccountID) (models.Decision, error) {
	return s.CanTransfer(ctx, from, to, 1)
}

// ValidateTransfer is CanTransfer plus a durable audit record of the
// decision.
func (s *Service) ValidateTransfer(ctx context.Context, from, to id.AccountID, amount uint64) (models.Decision, error) {
	decision, err := s.CanTransfer(ctx, from, to, amount)
	if err != nil {
		return models.Decision{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDecision(decision)
	}
	event := events.Event{
		Actor:   requestcontext.Actor(ctx),
		Account: to,
		Amount:  amount,
		Detail:  from.String(),
	}
	if decision.Allowed {
		event.Action = events.ActionTransferApproved
	} else {
		event.Action = events.ActionTransferRejected
		event.Reason = decision.Reason
	}
	if err := s.emit(ctx, event); err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

// CanTransferBatch evaluates every entry independently. A rejected entry
// never short-circuits the rest; the result slice is positional.
func (s *Service) CanTransferBatch(ctx context.Context, checks []TransferCheck) ([]models.Decision, error) {
	decisions := make([]models.Decision, len(checks))
	for i, check := range checks {
		decision, err := s.CanTransfer(ctx, check.From, check.To, check.Amount)
		if err != nil {
			return nil, err
		}
		decisions[i] = decision
	}
	return decisions, nil
}

// AddRule stores a custom rule of a registered kind. Compliance officer only.
func (s *Service) AddRule(ctx context.Context, kind string, params []byte) (id.RuleID, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleComplianceOfficer); err != nil {
		return id.RuleID{}, err
	}
	predicate, err := s.compile(kind, params)
	if err != nil {
		return id.RuleID{}, err
	}
	rule, err := models.NewRule(kind, params, predicate, requestcontext.Now(ctx))
	if err != nil {
		return id.RuleID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule")
	}
	if err := s.store.AddRule(ctx, rule); err != nil {
		return id.RuleID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store rule")
	}
	s.log(ctx, "rule added", "rule_id", rule.ID, "kind", kind)
	if err := s.emit(ctx, events.Event{
		Action: events.ActionRuleAdded,
		Actor:  actor,
		Detail: rule.ID.String(),
	}); err != nil {
		return id.RuleID{}, err
	}
	return rule.ID, nil
}

// UpdateRule recompiles a rule with new parameters, keeping its evaluation
// position. Compliance officer only.
func (s *Service) UpdateRule(ctx context.Context, ruleID id.RuleID, params []byte, active bool) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleComplianceOfficer); err != nil {
		return err
	}
	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "rule not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}
	predicate, err := s.compile(rule.Kind, params)
	if err != nil {
		return err
	}
	if err := rule.ApplyUpdate(params, predicate, active, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule update")
	}
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rule")
	}
	s.log(ctx, "rule updated", "rule_id", ruleID)
	return s.emit(ctx, events.Event{
		Action: events.ActionRuleUpdated,
		Actor:  actor,
		Detail: ruleID.String(),
	})
}

// RemoveRule deletes a rule. Compliance officer only.
func (s *Service) RemoveRule(ctx context.Context, ruleID id.RuleID) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleComplianceOfficer); err != nil {
		return err
	}
	if err := s.store.RemoveRule(ctx, ruleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "rule not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove rule")
	}
	s.log(ctx, "rule removed", "rule_id", ruleID)
	return s.emit(ctx, events.Event{
		Action: events.ActionRuleRemoved,
		Actor:  actor,
		Detail: ruleID.String(),
	})
}

// ListRules returns the rules in evaluation order.
func (s *Service) ListRules(ctx context.Context) ([]*models.Rule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rules")
	}
	return rules, nil
}

// SetCountryAllowed adds or removes a jurisdiction from the allowlist.
// Compliance officer only. The list is default-deny.
func (s *Service) SetCountryAllowed(ctx context.Context, jurisdiction id.Jurisdiction, allowed bool) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleComplianceOfficer); err != nil {
		return err
	}
	if jurisdiction.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	if err := s.store.SetCountryAllowed(ctx, jurisdiction, allowed); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update allowlist")
	}
	s.log(ctx, "country restriction set", "jurisdiction", jurisdiction, "allowed", allowed)
	return s.emit(ctx, events.Event{
		Action: events.ActionCountryRestrictionSet,
		Actor:  actor,
		Detail: fmt.Sprintf("%s=%t", jurisdiction, allowed),
	})
}

// SetHoldingLimits configures the [min, max] amount bounds; zero disables a
// bound. Admin only.
func (s *Service) SetHoldingLimits(ctx context.Context, min, max uint64) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	if min > 0 && max > 0 && min > max {
		return dErrors.New(dErrors.CodeValidation, "minimum holding exceeds maximum")
	}
	if err := s.store.SetHoldingLimits(ctx, min, max); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update limits")
	}
	s.log(ctx, "holding limits updated", "min", min, "max", max)
	return s.emit(ctx, events.Event{
		Action: events.ActionHoldingLimitsUpdated,
		Actor:  actor,
		Detail: fmt.Sprintf("min=%d max=%d", min, max),
	})
}

// Pause stops all transfers until Unpause. Admin only.
func (s *Service) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true, events.ActionCompliancePaused)
}

// Unpause resumes transfers. Admin only.
func (s *Service) Unpause(ctx context.Context) error {
	return s.setPaused(ctx, false, events.ActionComplianceUnpaused)
}

// IsPaused reports the engine pause state.
func (s *Service) IsPaused(ctx context.Context) (bool, error) {
	paused, err := s.store.IsPaused(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause state")
	}
	return paused, nil
}

func (s *Service) setPaused(ctx context.Context, paused bool, action events.Action) error {
	actor := requestcontext.Actor(ctx)
	if err := s.access.Require(ctx, actor, id.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.SetPaused(ctx, paused); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update pause state")
	}
	s.log(ctx, "pause state changed", "paused", paused)
	return s.emit(ctx, events.Event{Action: action, Actor: actor})
}

func (s *Service) compile(kind string, params []byte) (models.Predicate, error) {
	factory, ok := s.factories[kind]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown rule kind %q", kind)
	}
	predicate, err := factory(params)
	if err != nil {
		return nil, dErrors.Wrapf(err, dErrors.CodeValidation, "invalid parameters for rule kind %q", kind)
	}
	return predicate, nil
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
