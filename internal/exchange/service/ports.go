package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks AssetRegistry,Compliance,FundsLedger

import (
	"context"

	compliance "provena/internal/compliance/models"
	"provena/internal/exchange/funds"
	id "provena/pkg/domain"
)

// AssetRegistry is the exchange's view of the asset registry. Transfer runs
// with the exchange operator as the acting account; the operator must hold
// the per-asset approval the seller granted before listing.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, assetID id.AssetID) (id.AccountID, error)
	IsApprovedFor(ctx context.Context, assetID id.AssetID, operator id.AccountID) (bool, error)
	Transfer(ctx context.Context, assetID id.AssetID, to id.AccountID) error
}

// Compliance gates purchases twice: a pure check at initiation and a
// validated (audited) re-check at settlement.
type Compliance interface {
	CanTransferAsset(ctx context.Context, from, to id.AccountID) (compliance.Decision, error)
	ValidateTransfer(ctx context.Context, from, to id.AccountID, amount uint64) (compliance.Decision, error)
}

// FundsLedger is the custodial ledger holding buyer deposits per escrow.
type FundsLedger interface {
	Hold(ctx context.Context, escrowID id.EscrowID, amount uint64) error
	AddToHold(ctx context.Context, escrowID id.EscrowID, amount uint64) error
	Held(ctx context.Context, escrowID id.EscrowID) (uint64, error)
	Disburse(ctx context.Context, escrowID id.EscrowID, payouts []funds.Payout) error
	Refund(ctx context.Context, escrowID id.EscrowID, to id.AccountID) (uint64, error)
	BalanceOf(ctx context.Context, account id.AccountID) (uint64, error)
}
