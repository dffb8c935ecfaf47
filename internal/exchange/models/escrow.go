package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// EscrowStatus is the state machine position of an escrow.
type EscrowStatus string

const (
	EscrowCreated        EscrowStatus = "created"
	EscrowFundsDeposited EscrowStatus = "funds_deposited"
	EscrowCompleted      EscrowStatus = "completed"
	EscrowCancelled      EscrowStatus = "cancelled"
	EscrowDisputed       EscrowStatus = "disputed"
)

// Escrow custodially holds a buyer's funds pending atomic exchange for one
// asset unit. Completed and Cancelled are terminal; Disputed resolves
// deterministically into one of the two.
//
// Deposited tracks the ledger balance held for this escrow; the two must
// move together.
type Escrow struct {
	ID        id.EscrowID  `json:"id"`
	ListingID id.ListingID `json:"listing_id"`
	AssetID   id.AssetID   `json:"asset_id"`
	Buyer     id.AccountID `json:"buyer"`
	Seller    id.AccountID `json:"seller"`
	Price     uint64       `json:"price"`
	Deposited uint64       `json:"deposited"`
	Status    EscrowStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Deadline  time.Time    `json:"deadline"`

	DisputedBy    id.AccountID `json:"disputed_by,omitempty"`
	DisputeReason string       `json:"dispute_reason,omitempty"`
}

func NewEscrow(listing *Listing, buyer id.AccountID, deposit uint64, window time.Duration, now time.Time) (*Escrow, error) {
	if buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "escrow buyer cannot be null")
	}
	if buyer == listing.Seller {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer cannot be the seller")
	}
	if deposit < listing.Price {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "deposit below listing price")
	}
	return &Escrow{
		ID:        id.NewEscrowID(),
		ListingID: listing.ID,
		AssetID:   listing.AssetID,
		Buyer:     buyer,
		Seller:    listing.Seller,
		Price:     listing.Price,
		Deposited: deposit,
		Status:    EscrowFundsDeposited,
		CreatedAt: now,
		Deadline:  now.Add(window),
	}, nil
}

// IsParty reports whether account is the buyer or the seller.
func (e *Escrow) IsParty(account id.AccountID) bool {
	return account == e.Buyer || account == e.Seller
}

// ApplyDeposit tops up the held amount. Only open escrows take funds.
func (e *Escrow) ApplyDeposit(amount uint64) error {
	if e.Status != EscrowFundsDeposited {
		return dErrors.Newf(dErrors.CodeConflict, "escrow is %s", e.Status)
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "deposit must be positive")
	}
	e.Deposited += amount
	return nil
}

// CanComplete checks the settlement preconditions at the given time.
func (e *Escrow) CanComplete(now time.Time) error {
	if e.Status != EscrowFundsDeposited {
		return dErrors.Newf(dErrors.CodeConflict, "escrow is %s", e.Status)
	}
	if now.After(e.Deadline) {
		return dErrors.New(dErrors.CodeConflict, "completion deadline has passed")
	}
	if e.Deposited < e.Price {
		return dErrors.New(dErrors.CodeConflict, "deposited amount below price")
	}
	return nil
}

// ApplyCompleted commits the settlement state change.
func (e *Escrow) ApplyCompleted(now time.Time) error {
	if err := e.CanComplete(now); err != nil {
		return err
	}
	e.Status = EscrowCompleted
	return nil
}

// CanCancel reports whether the escrow can still be unwound. Disputed
// escrows cancel only through resolution; allowDisputed covers that path and
// the emergency withdrawal.
func (e *Escrow) CanCancel(allowDisputed bool) error {
	switch e.Status {
	case EscrowFundsDeposited:
		return nil
	case EscrowDisputed:
		if allowDisputed {
			return nil
		}
		return dErrors.New(dErrors.CodeConflict, "escrow is under dispute")
	default:
		return dErrors.Newf(dErrors.CodeConflict, "escrow is %s", e.Status)
	}
}

// ApplyCancelled unwinds the escrow.
func (e *Escrow) ApplyCancelled(allowDisputed bool) error {
	if err := e.CanCancel(allowDisputed); err != nil {
		return err
	}
	e.Status = EscrowCancelled
	return nil
}

// ApplyDisputed freezes the escrow pending arbitration. One dispute per
// escrow.
func (e *Escrow) ApplyDisputed(by id.AccountID, reason string) error {
	if e.Status != EscrowFundsDeposited {
		return dErrors.Newf(dErrors.CodeConflict, "escrow is %s", e.Status)
	}
	if !e.IsParty(by) {
		return dErrors.New(dErrors.CodeForbidden, "only buyer or seller may dispute")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "dispute reason is required")
	}
	e.Status = EscrowDisputed
	e.DisputedBy = by
	e.DisputeReason = reason
	return nil
}

// ApplyResolvedCompleted settles a disputed escrow in the buyer's favor.
// Resolution bypasses the deadline: arbitration time does not count against
// the buyer.
func (e *Escrow) ApplyResolvedCompleted() error {
	if e.Status != EscrowDisputed {
		return dErrors.Newf(dErrors.CodeConflict, "escrow is %s", e.Status)
	}
	if e.Deposited < e.Price {
		return dErrors.New(dErrors.CodeConflict, "deposited amount below price")
	}
	e.Status = EscrowCompleted
	return nil
}
