package store

import (
	"context"
	"sync"

	"provena/internal/exchange/models"
	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// Stats are the exchange's aggregate settlement counters.
type Stats struct {
	Volume    uint64 `json:"volume"`
	SaleCount uint64 `json:"sale_count"`
	FeesPaid  uint64 `json:"fees_paid"`
}

// InMemory keeps listings, escrows, the active-listing set, and settlement
// stats. The active set is a set keyed by listing id; the lazy-expiry model
// means membership is a superset of truly open listings and callers filter
// by time.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*models.Listing
	escrows  map[id.EscrowID]*models.Escrow
	active   map[id.ListingID]struct{}
	byAsset  map[id.AssetID]id.ListingID
	stats    Stats
}

func NewInMemory() *InMemory {
	return &InMemory{
		listings: make(map[id.ListingID]*models.Listing),
		escrows:  make(map[id.EscrowID]*models.Escrow),
		active:   make(map[id.ListingID]struct{}),
		byAsset:  make(map[id.AssetID]id.ListingID),
	}
}

// CreateListing stores a new listing. One live listing per asset: a Sold
// listing with an open escrow blocks relisting just like an Active one.
func (s *InMemory) CreateListing(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ID]; ok {
		return sentinel.ErrConflict
	}
	if existingID, ok := s.byAsset[listing.AssetID]; ok {
		if existing, ok := s.listings[existingID]; ok && existing.IsLive() {
			return sentinel.ErrConflict
		}
	}
	copied := *listing
	s.listings[listing.ID] = &copied
	s.byAsset[listing.AssetID] = listing.ID
	if copied.Status == models.ListingActive {
		s.active[listing.ID] = struct{}{}
	}
	return nil
}

func (s *InMemory) GetListing(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *listing
	return &copied, nil
}

// UpdateListing replaces a listing and keeps the active set in sync with its
// status.
func (s *InMemory) UpdateListing(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *listing
	s.listings[listing.ID] = &copied
	if copied.Status == models.ListingActive {
		s.active[listing.ID] = struct{}{}
	} else {
		delete(s.active, listing.ID)
	}
	return nil
}

// ActiveListings returns the ids in the active set. Lazy expiry means some
// may already be past their deadline.
func (s *InMemory) ActiveListings(_ context.Context) ([]id.ListingID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.ListingID, 0, len(s.active))
	for listingID := range s.active {
		out = append(out, listingID)
	}
	return out, nil
}

func (s *InMemory) CreateEscrow(_ context.Context, escrow *models.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escrows[escrow.ID]; ok {
		return sentinel.ErrConflict
	}
	copied := *escrow
	s.escrows[escrow.ID] = &copied
	return nil
}

func (s *InMemory) GetEscrow(_ context.Context, escrowID id.EscrowID) (*models.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	escrow, ok := s.escrows[escrowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *escrow
	return &copied, nil
}

func (s *InMemory) UpdateEscrow(_ context.Context, escrow *models.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escrows[escrow.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *escrow
	s.escrows[escrow.ID] = &copied
	return nil
}

// OpenEscrows lists the non-terminal escrows.
func (s *InMemory) OpenEscrows(_ context.Context) ([]*models.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Escrow
	for _, escrow := range s.escrows {
		if escrow.Status == models.EscrowFundsDeposited || escrow.Status == models.EscrowDisputed {
			copied := *escrow
			out = append(out, &copied)
		}
	}
	return out, nil
}

// RecordSale folds one settlement into the aggregate stats.
func (s *InMemory) RecordSale(_ context.Context, price, fee uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Volume += price
	s.stats.SaleCount++
	s.stats.FeesPaid += fee
	return nil
}

func (s *InMemory) GetStats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}
