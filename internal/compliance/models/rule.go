package models

import (
	"context"
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// Predicate is one pluggable transfer check. Implementations must be
// side-effect free; the engine may evaluate them any number of times for the
// same proposed transfer.
type Predicate interface {
	// Evaluate returns ok=false with a human-readable reason to reject the
	// transfer. A non-nil error aborts the whole check rather than rejecting.
	Evaluate(ctx context.Context, from, to id.AccountID, amount uint64) (ok bool, reason string, err error)
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(ctx context.Context, from, to id.AccountID, amount uint64) (bool, string, error)

func (f PredicateFunc) Evaluate(ctx context.Context, from, to id.AccountID, amount uint64) (bool, string, error) {
	return f(ctx, from, to, amount)
}

// PredicateFactory builds a predicate from a rule's opaque parameter blob.
// Factories are registered in code at wiring time; rule records reference
// them by kind.
type PredicateFactory func(params []byte) (Predicate, error)

// Rule is a stored custom rule. Rules evaluate after the built-in checks, in
// insertion order; the engine ships with none.
type Rule struct {
	ID        id.RuleID `json:"id"`
	Kind      string    `json:"kind"`
	Params    []byte    `json:"params,omitempty"`
	Active    bool      `json:"active"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`

	predicate Predicate
}

func NewRule(kind string, params []byte, predicate Predicate, now time.Time) (*Rule, error) {
	if kind == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule kind cannot be empty")
	}
	if predicate == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule requires a predicate")
	}
	return &Rule{
		ID:        id.NewRuleID(),
		Kind:      kind,
		Params:    params,
		Active:    true,
		AddedAt:   now,
		UpdatedAt: now,
		predicate: predicate,
	}, nil
}

// Predicate returns the compiled predicate for this rule.
func (r *Rule) Predicate() Predicate {
	return r.predicate
}

// ApplyUpdate swaps the rule's parameters and compiled predicate.
func (r *Rule) ApplyUpdate(params []byte, predicate Predicate, active bool, now time.Time) error {
	if predicate == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "rule requires a predicate")
	}
	r.Params = params
	r.predicate = predicate
	r.Active = active
	r.UpdatedAt = now
	return nil
}
