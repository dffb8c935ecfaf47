package store

import (
	"context"
	"sync"

	"provena/internal/compliance/models"
	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// InMemory holds the engine's configuration: pause flag, holding limits, the
// country allowlist, and the ordered custom rule list. Rules keep insertion
// order; the slice is the order of evaluation.
type InMemory struct {
	mu         sync.RWMutex
	paused     bool
	minHolding uint64
	maxHolding uint64
	allowlist  map[id.Jurisdiction]bool
	rules      []*models.Rule
}

func NewInMemory() *InMemory {
	return &InMemory{
		allowlist: make(map[id.Jurisdiction]bool),
	}
}

func (s *InMemory) IsPaused(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused, nil
}

func (s *InMemory) SetPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
	return nil
}

// HoldingLimits returns (min, max); zero means unbounded on that side.
func (s *InMemory) HoldingLimits(_ context.Context) (uint64, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minHolding, s.maxHolding, nil
}

func (s *InMemory) SetHoldingLimits(_ context.Context, min, max uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minHolding = min
	s.maxHolding = max
	return nil
}

// IsCountryAllowed is default-deny: a jurisdiction never set is not allowed.
func (s *InMemory) IsCountryAllowed(_ context.Context, jurisdiction id.Jurisdiction) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowlist[jurisdiction], nil
}

func (s *InMemory) SetCountryAllowed(_ context.Context, jurisdiction id.Jurisdiction, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if allowed {
		s.allowlist[jurisdiction] = true
	} else {
		delete(s.allowlist, jurisdiction)
	}
	return nil
}

func (s *InMemory) AddRule(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.ID == rule.ID {
			return sentinel.ErrConflict
		}
	}
	s.rules = append(s.rules, rule)
	return nil
}

func (s *InMemory) GetRule(_ context.Context, ruleID id.RuleID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rule := range s.rules {
		if rule.ID == ruleID {
			return rule, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateRule replaces a rule in place, preserving its evaluation position.
func (s *InMemory) UpdateRule(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.ID == rule.ID {
			s.rules[i] = rule
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemory) RemoveRule(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rule := range s.rules {
		if rule.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// ListRules returns the rules in insertion order.
func (s *InMemory) ListRules(_ context.Context) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Rule{}, s.rules...), nil
}
