package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// Identity is one account's compliance profile.
//
// Invariants:
//   - Account is non-null and maps to at most one identity at a time
//   - Jurisdiction is always set (transfers are jurisdiction-gated)
//   - Deleting the identity cascades its claims
type Identity struct {
	Account      id.AccountID    `json:"account"`
	Jurisdiction id.Jurisdiction `json:"jurisdiction"`
	RegisteredAt time.Time       `json:"registered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewIdentity(account id.AccountID, jurisdiction id.Jurisdiction, now time.Time) (*Identity, error) {
	if account.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity account cannot be null")
	}
	if jurisdiction.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity jurisdiction is required")
	}
	return &Identity{
		Account:      account,
		Jurisdiction: jurisdiction,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

// ApplyJurisdiction records a jurisdiction change.
func (i *Identity) ApplyJurisdiction(jurisdiction id.Jurisdiction, now time.Time) {
	i.Jurisdiction = jurisdiction
	i.UpdatedAt = now
}
