package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCompleted ListingStatus = "completed"
	ListingCancelled ListingStatus = "cancelled"
	ListingExpired   ListingStatus = "expired"
)

// Listing offers one asset unit for sale. Expiry is lazy: nothing flips the
// status at the deadline; operations check IsExpired against the request
// time and treat an expired Active listing as Expired.
type Listing struct {
	ID          id.ListingID  `json:"id"`
	AssetID     id.AssetID    `json:"asset_id"`
	Seller      id.AccountID  `json:"seller"`
	Price       uint64        `json:"price"`
	Description string        `json:"description,omitempty"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

func NewListing(assetID id.AssetID, seller id.AccountID, price uint64, expiry time.Duration, description string, now time.Time) (*Listing, error) {
	if seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing seller cannot be null")
	}
	if price == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing price must be positive")
	}
	if expiry <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing expiry must be positive")
	}
	return &Listing{
		ID:          id.NewListingID(),
		AssetID:     assetID,
		Seller:      seller,
		Price:       price,
		Description: description,
		Status:      ListingActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(expiry),
	}, nil
}

// IsExpired reports whether the listing's deadline has passed.
func (l *Listing) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// IsOpen reports whether the listing can take a purchase at the given time.
func (l *Listing) IsOpen(now time.Time) bool {
	return l.Status == ListingActive && !l.IsExpired(now)
}

// IsLive reports whether the listing still binds its asset: an Active
// listing awaits a buyer and a Sold one has an open escrow. Either blocks
// the asset from being listed again.
func (l *Listing) IsLive() bool {
	return l.Status == ListingActive || l.Status == ListingSold
}

// CanModify reports whether seller-side mutations (delist, price update,
// extend) are allowed. Only live Active listings are mutable.
func (l *Listing) CanModify(now time.Time) error {
	if l.Status != ListingActive {
		return dErrors.Newf(dErrors.CodeConflict, "listing is %s", l.Status)
	}
	if l.IsExpired(now) {
		return dErrors.New(dErrors.CodeConflict, "listing has expired")
	}
	return nil
}

// ApplySold marks the listing sold when its purchase is initiated.
func (l *Listing) ApplySold(now time.Time) error {
	if !l.IsOpen(now) {
		return dErrors.New(dErrors.CodeConflict, "listing is not open")
	}
	l.Status = ListingSold
	return nil
}

// ApplyCompleted closes a Sold listing once its escrow settles. The asset
// has changed hands, so the listing no longer binds it.
func (l *Listing) ApplyCompleted() error {
	if l.Status != ListingSold {
		return dErrors.Newf(dErrors.CodeConflict, "cannot complete a %s listing", l.Status)
	}
	l.Status = ListingCompleted
	return nil
}

// ApplyCancelled delists.
func (l *Listing) ApplyCancelled(now time.Time) error {
	if err := l.CanModify(now); err != nil {
		return err
	}
	l.Status = ListingCancelled
	return nil
}

// ApplyExpired records a lazily observed expiry.
func (l *Listing) ApplyExpired() {
	if l.Status == ListingActive {
		l.Status = ListingExpired
	}
}

// ApplyReactivated returns a Sold listing to Active after a cancelled or
// buyer-losing escrow, provided the deadline has not passed.
func (l *Listing) ApplyReactivated(now time.Time) error {
	if l.Status != ListingSold {
		return dErrors.Newf(dErrors.CodeConflict, "cannot reactivate a %s listing", l.Status)
	}
	if l.IsExpired(now) {
		l.Status = ListingExpired
		return nil
	}
	l.Status = ListingActive
	return nil
}

// ApplyPriceUpdate changes the asking price of a live listing.
func (l *Listing) ApplyPriceUpdate(price uint64, now time.Time) error {
	if price == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing price must be positive")
	}
	if err := l.CanModify(now); err != nil {
		return err
	}
	l.Price = price
	return nil
}

// ApplyExtend pushes the expiry out, bounded by maxExpiry from now.
func (l *Listing) ApplyExtend(extension, maxExpiry time.Duration, now time.Time) error {
	if extension <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "extension must be positive")
	}
	if err := l.CanModify(now); err != nil {
		return err
	}
	extended := l.ExpiresAt.Add(extension)
	if extended.After(now.Add(maxExpiry)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "extension exceeds the maximum listing window")
	}
	l.ExpiresAt = extended
	return nil
}
