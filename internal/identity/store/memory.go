package store

import (
	"context"
	"sync"

	"provena/internal/identity/models"
	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// InMemory keeps identities, their claims (bucketed by topic), and the
// issuer registry behind one mutex. Claim buckets are sets keyed by claim id
// so membership tests and removals stay O(1) regardless of claim count.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.AccountID]*models.Identity
	claims     map[id.AccountID]map[id.ClaimID]*models.Claim
	byTopic    map[id.AccountID]map[id.ClaimTopic]map[id.ClaimID]struct{}
	issuers    map[id.AccountID]*models.Issuer
}

func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[id.AccountID]*models.Identity),
		claims:     make(map[id.AccountID]map[id.ClaimID]*models.Claim),
		byTopic:    make(map[id.AccountID]map[id.ClaimTopic]map[id.ClaimID]struct{}),
		issuers:    make(map[id.AccountID]*models.Issuer),
	}
}

func (s *InMemory) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.identities[identity.Account]; exists {
		return sentinel.ErrConflict
	}
	cp := *identity
	s.identities[identity.Account] = &cp
	return nil
}

func (s *InMemory) GetIdentity(_ context.Context, account id.AccountID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

// DeleteIdentity removes the identity and cascades its claims.
func (s *InMemory) DeleteIdentity(_ context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[account]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.identities, account)
	delete(s.claims, account)
	delete(s.byTopic, account)
	return nil
}

func (s *InMemory) UpdateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.Account]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *identity
	s.identities[identity.Account] = &cp
	return nil
}

func (s *InMemory) AddClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[claim.Account]; !ok {
		return sentinel.ErrNotFound
	}
	if s.claims[claim.Account] == nil {
		s.claims[claim.Account] = make(map[id.ClaimID]*models.Claim)
		s.byTopic[claim.Account] = make(map[id.ClaimTopic]map[id.ClaimID]struct{})
	}
	cp := *claim
	s.claims[claim.Account][claim.ID] = &cp
	bucket := s.byTopic[claim.Account][claim.Topic]
	if bucket == nil {
		bucket = make(map[id.ClaimID]struct{})
		s.byTopic[claim.Account][claim.Topic] = bucket
	}
	bucket[claim.ID] = struct{}{}
	return nil
}

func (s *InMemory) GetClaim(_ context.Context, account id.AccountID, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[account][claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *claim
	return &cp, nil
}

func (s *InMemory) RemoveClaim(_ context.Context, account id.AccountID, claimID id.ClaimID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[account][claimID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.claims[account], claimID)
	if bucket := s.byTopic[account][claim.Topic]; bucket != nil {
		delete(bucket, claimID)
		if len(bucket) == 0 {
			delete(s.byTopic[account], claim.Topic)
		}
	}
	return nil
}

// ClaimsByTopic lists an identity's claims under one topic.
func (s *InMemory) ClaimsByTopic(_ context.Context, account id.AccountID, topic id.ClaimTopic) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Claim
	for claimID := range s.byTopic[account][topic] {
		cp := *s.claims[account][claimID]
		out = append(out, &cp)
	}
	return out, nil
}

// HasClaimForTopic reports whether the identity holds at least one claim
// under the topic.
func (s *InMemory) HasClaimForTopic(_ context.Context, account id.AccountID, topic id.ClaimTopic) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTopic[account][topic]) > 0, nil
}

// ListClaims returns all claims held by the identity.
func (s *InMemory) ListClaims(_ context.Context, account id.AccountID) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Claim
	for _, claim := range s.claims[account] {
		cp := *claim
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issuers[issuer.Account]; exists {
		return sentinel.ErrConflict
	}
	s.issuers[issuer.Account] = copyIssuer(issuer)
	return nil
}

func (s *InMemory) GetIssuer(_ context.Context, account id.AccountID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issuer, ok := s.issuers[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyIssuer(issuer), nil
}

func (s *InMemory) UpdateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[issuer.Account]; !ok {
		return sentinel.ErrNotFound
	}
	s.issuers[issuer.Account] = copyIssuer(issuer)
	return nil
}

func (s *InMemory) DeleteIssuer(_ context.Context, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[account]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.issuers, account)
	return nil
}

func copyIssuer(issuer *models.Issuer) *models.Issuer {
	cp := *issuer
	cp.Topics = make(map[id.ClaimTopic]struct{}, len(issuer.Topics))
	for topic := range issuer.Topics {
		cp.Topics[topic] = struct{}{}
	}
	return &cp
}
