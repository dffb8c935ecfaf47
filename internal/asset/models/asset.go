package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// Asset is one ownership record for a minted, non-fungible unit.
// Invariant: exactly one current owner at any instant. MetadataRef is an
// opaque content identifier; the registry never parses or dereferences it.
//
// Jurisdiction is the owner's home jurisdiction captured at mint or at the
// last ownership change; the store's jurisdiction index is keyed off it.
type Asset struct {
	ID             id.AssetID      `json:"id"`
	MetadataRef    string          `json:"metadata_ref"`
	LegalEntityRef string          `json:"legal_entity_ref,omitempty"`
	Extended       []byte          `json:"extended,omitempty"`
	Owner          id.AccountID    `json:"owner"`
	OriginalOwner  id.AccountID    `json:"original_owner"`
	Jurisdiction   id.Jurisdiction `json:"jurisdiction"`
	// Approved is the account the owner has delegated burn and exchange
	// rights to; cleared on every ownership change.
	Approved id.AccountID `json:"approved,omitempty"`

	MintedAt       time.Time    `json:"minted_at"`
	LastTransferAt time.Time    `json:"last_transfer_at"`
	Verified       bool         `json:"verified"`
	Verifier       id.AccountID `json:"verifier,omitempty"`
	VerifiedAt     time.Time    `json:"verified_at,omitzero"`
}

func NewAsset(assetID id.AssetID, owner id.AccountID, metadataRef, legalEntityRef string, extended []byte, jurisdiction id.Jurisdiction, now time.Time) (*Asset, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset owner cannot be null")
	}
	if metadataRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "metadata reference cannot be empty")
	}
	return &Asset{
		ID:             assetID,
		MetadataRef:    metadataRef,
		LegalEntityRef: legalEntityRef,
		Extended:       extended,
		Owner:          owner,
		OriginalOwner:  owner,
		Jurisdiction:   jurisdiction,
		MintedAt:       now,
		LastTransferAt: now,
	}, nil
}

// ApplyTransfer moves ownership and resets the delegation. The new owner's
// jurisdiction re-keys the jurisdiction index.
func (a *Asset) ApplyTransfer(to id.AccountID, jurisdiction id.Jurisdiction, now time.Time) error {
	if to.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "transfer target cannot be null")
	}
	a.Owner = to
	a.Jurisdiction = jurisdiction
	a.Approved = id.NilAccount
	a.LastTransferAt = now
	return nil
}

// ApplyVerify marks the unit verified with verifier bookkeeping.
func (a *Asset) ApplyVerify(verifier id.AccountID, now time.Time) error {
	if a.Verified {
		return dErrors.New(dErrors.CodeConflict, "asset already verified")
	}
	a.Verified = true
	a.Verifier = verifier
	a.VerifiedAt = now
	return nil
}

// ApplyUnverify clears the verified flag and its bookkeeping.
func (a *Asset) ApplyUnverify() error {
	if !a.Verified {
		return dErrors.New(dErrors.CodeConflict, "asset is not verified")
	}
	a.Verified = false
	a.Verifier = id.NilAccount
	a.VerifiedAt = time.Time{}
	return nil
}

// CanBeBurnedBy reports whether account is the owner or the approved
// delegate.
func (a *Asset) CanBeBurnedBy(account id.AccountID) bool {
	return account == a.Owner || (!a.Approved.IsNil() && account == a.Approved)
}

// IsApprovedFor reports whether operator holds the per-asset delegation.
func (a *Asset) IsApprovedFor(operator id.AccountID) bool {
	return !a.Approved.IsNil() && operator == a.Approved
}
