package store

import (
	"context"
	"sync"

	"provena/internal/asset/models"
	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// InMemory keeps asset records plus secondary indices by owner, by
// jurisdiction, and by verification status. Indices are sets keyed by asset
// id so membership changes stay O(1); they are derived purely from the
// record, so Update re-keys them by diffing old against new.
type InMemory struct {
	mu     sync.RWMutex
	nextID uint64
	assets map[id.AssetID]*models.Asset

	byOwner        map[id.AccountID]map[id.AssetID]struct{}
	byJurisdiction map[id.Jurisdiction]map[id.AssetID]struct{}
	verified       map[id.AssetID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		nextID:         1,
		assets:         make(map[id.AssetID]*models.Asset),
		byOwner:        make(map[id.AccountID]map[id.AssetID]struct{}),
		byJurisdiction: make(map[id.Jurisdiction]map[id.AssetID]struct{}),
		verified:       make(map[id.AssetID]struct{}),
	}
}

// NextID reserves the next strictly increasing asset id. Ids are never
// reused, including after burns.
func (s *InMemory) NextID(_ context.Context) (id.AssetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assetID := id.AssetID(s.nextID)
	s.nextID++
	return assetID, nil
}

func (s *InMemory) Create(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.ID]; ok {
		return sentinel.ErrConflict
	}
	copied := *asset
	s.assets[asset.ID] = &copied
	s.index(&copied)
	return nil
}

func (s *InMemory) Get(_ context.Context, assetID id.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *asset
	return &copied, nil
}

// Update replaces a record and re-keys every index the change touched.
func (s *InMemory) Update(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.assets[asset.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.unindex(old)
	copied := *asset
	s.assets[asset.ID] = &copied
	s.index(&copied)
	return nil
}

// Delete removes a record and cleans every index before the record itself.
func (s *InMemory) Delete(_ context.Context, assetID id.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.unindex(asset)
	delete(s.assets, assetID)
	return nil
}

func (s *InMemory) ByOwner(_ context.Context, owner id.AccountID) ([]id.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.byOwner[owner]), nil
}

func (s *InMemory) ByJurisdiction(_ context.Context, jurisdiction id.Jurisdiction) ([]id.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.byJurisdiction[jurisdiction]), nil
}

func (s *InMemory) VerifiedAssets(_ context.Context) ([]id.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.verified), nil
}

func (s *InMemory) index(asset *models.Asset) {
	if s.byOwner[asset.Owner] == nil {
		s.byOwner[asset.Owner] = make(map[id.AssetID]struct{})
	}
	s.byOwner[asset.Owner][asset.ID] = struct{}{}

	if s.byJurisdiction[asset.Jurisdiction] == nil {
		s.byJurisdiction[asset.Jurisdiction] = make(map[id.AssetID]struct{})
	}
	s.byJurisdiction[asset.Jurisdiction][asset.ID] = struct{}{}

	if asset.Verified {
		s.verified[asset.ID] = struct{}{}
	}
}

func (s *InMemory) unindex(asset *models.Asset) {
	if owned := s.byOwner[asset.Owner]; owned != nil {
		delete(owned, asset.ID)
		if len(owned) == 0 {
			delete(s.byOwner, asset.Owner)
		}
	}
	if inJurisdiction := s.byJurisdiction[asset.Jurisdiction]; inJurisdiction != nil {
		delete(inJurisdiction, asset.ID)
		if len(inJurisdiction) == 0 {
			delete(s.byJurisdiction, asset.Jurisdiction)
		}
	}
	delete(s.verified, asset.ID)
}

func setToSlice(set map[id.AssetID]struct{}) []id.AssetID {
	out := make([]id.AssetID, 0, len(set))
	for assetID := range set {
		out = append(out, assetID)
	}
	return out
}
