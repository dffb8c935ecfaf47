// Package domain holds the shared identifier and value types for the
// registry core. Types here carry no behavior beyond parsing and validity
// checks; construct them via the Parse helpers at trust boundaries.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "provena/pkg/domain-errors"
)

// AccountID identifies an external account (holder, issuer, buyer, seller).
// The value is opaque to the core. The zero value is the "null account" used
// to model mint (no sender) and burn (no receiver) transfers.
type AccountID string

// NilAccount is the null account for mint/burn transfers.
const NilAccount AccountID = ""

// IsNil reports whether the account is the null account.
func (a AccountID) IsNil() bool {
	return a == NilAccount
}

// String returns the raw account identifier.
func (a AccountID) String() string {
	return string(a)
}

// ParseAccountID validates an account identifier from external input.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NilAccount, dErrors.New(dErrors.CodeValidation, "account id cannot be empty")
	}
	return AccountID(s), nil
}

// AssetID identifies one minted asset unit. Ids are assigned by the asset
// registry as a strictly increasing sequence starting at 1; 0 is never a
// valid id.
type AssetID uint64

// IsNil reports whether the asset id is unassigned.
func (a AssetID) IsNil() bool {
	return a == 0
}

// String renders the asset id in decimal.
func (a AssetID) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAssetID parses an asset id from external input.
func ParseAssetID(s string) (AssetID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "invalid asset id")
	}
	return AssetID(n), nil
}

// ClaimID identifies a claim within an identity's claim set.
type ClaimID uuid.UUID

// NewClaimID returns a fresh random claim id.
func NewClaimID() ClaimID {
	return ClaimID(uuid.New())
}

func (c ClaimID) String() string {
	return uuid.UUID(c).String()
}

// IsNil reports whether the claim id is the zero value.
func (c ClaimID) IsNil() bool {
	return uuid.UUID(c) == uuid.Nil
}

// ParseClaimID parses a claim id from external input.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ClaimID{}, dErrors.New(dErrors.CodeValidation, "invalid claim id")
	}
	return ClaimID(u), nil
}

// ListingID identifies a sale listing on the exchange.
type ListingID uuid.UUID

// NewListingID returns a fresh random listing id.
func NewListingID() ListingID {
	return ListingID(uuid.New())
}

func (l ListingID) String() string {
	return uuid.UUID(l).String()
}

// IsNil reports whether the listing id is the zero value.
func (l ListingID) IsNil() bool {
	return uuid.UUID(l) == uuid.Nil
}

// ParseListingID parses a listing id from external input.
func ParseListingID(s string) (ListingID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ListingID{}, dErrors.New(dErrors.CodeValidation, "invalid listing id")
	}
	return ListingID(u), nil
}

// EscrowID identifies a custodial escrow on the exchange.
type EscrowID uuid.UUID

// NewEscrowID returns a fresh random escrow id.
func NewEscrowID() EscrowID {
	return EscrowID(uuid.New())
}

func (e EscrowID) String() string {
	return uuid.UUID(e).String()
}

// IsNil reports whether the escrow id is the zero value.
func (e EscrowID) IsNil() bool {
	return uuid.UUID(e) == uuid.Nil
}

// ParseEscrowID parses an escrow id from external input.
func ParseEscrowID(s string) (EscrowID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EscrowID{}, dErrors.New(dErrors.CodeValidation, "invalid escrow id")
	}
	return EscrowID(u), nil
}

// RuleID identifies a custom compliance rule.
type RuleID uuid.UUID

// NewRuleID returns a fresh random rule id.
func NewRuleID() RuleID {
	return RuleID(uuid.New())
}

func (r RuleID) String() string {
	return uuid.UUID(r).String()
}

// IsNil reports whether the rule id is the zero value.
func (r RuleID) IsNil() bool {
	return uuid.UUID(r) == uuid.Nil
}

// ParseRuleID parses a rule id from external input.
func ParseRuleID(s string) (RuleID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RuleID{}, dErrors.New(dErrors.CodeValidation, "invalid rule id")
	}
	return RuleID(u), nil
}
