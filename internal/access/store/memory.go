package store

import (
	"context"
	"sync"

	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// InMemory keeps role grants in a per-account set. It is the default store
// for single-process deployments and the fixture for service tests.
type InMemory struct {
	mu     sync.RWMutex
	grants map[id.AccountID]map[id.Role]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{grants: make(map[id.AccountID]map[id.Role]struct{})}
}

func (s *InMemory) Grant(_ context.Context, account id.AccountID, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, ok := s.grants[account]
	if !ok {
		roles = make(map[id.Role]struct{})
		s.grants[account] = roles
	}
	if _, exists := roles[role]; exists {
		return sentinel.ErrConflict
	}
	roles[role] = struct{}{}
	return nil
}

func (s *InMemory) Revoke(_ context.Context, account id.AccountID, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, ok := s.grants[account]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := roles[role]; !exists {
		return sentinel.ErrNotFound
	}
	delete(roles, role)
	if len(roles) == 0 {
		delete(s.grants, account)
	}
	return nil
}

func (s *InMemory) HasRole(_ context.Context, account id.AccountID, role id.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles, ok := s.grants[account]
	if !ok {
		return false, nil
	}
	_, exists := roles[role]
	return exists, nil
}

func (s *InMemory) RolesOf(_ context.Context, account id.AccountID) ([]id.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]id.Role, 0, len(s.grants[account]))
	for role := range s.grants[account] {
		roles = append(roles, role)
	}
	return roles, nil
}
