// Package events defines the structured events the registry core emits on
// every state transition. Events exist for off-band consumers (indexer,
// notification layer); the core never subscribes to its own stream.
package events

import (
	"time"

	"github.com/google/uuid"

	id "provena/pkg/domain"
)

// Action names one observable state transition.
type Action string

const (
	// Identity registry
	ActionIdentityRegistered  Action = "identity_registered"
	ActionIdentityRemoved     Action = "identity_removed"
	ActionJurisdictionUpdated Action = "jurisdiction_updated"
	ActionClaimAdded          Action = "claim_added"
	ActionClaimRemoved        Action = "claim_removed"
	ActionIssuerAdded         Action = "issuer_added"
	ActionIssuerRemoved       Action = "issuer_removed"
	ActionIssuerTopicGranted  Action = "issuer_topic_granted"
	ActionIssuerTopicRevoked  Action = "issuer_topic_revoked"

	// Access control
	ActionRoleGranted Action = "role_granted"
	ActionRoleRevoked Action = "role_revoked"

	// Compliance engine
	ActionTransferApproved      Action = "transfer_approved"
	ActionTransferRejected      Action = "transfer_rejected"
	ActionRuleAdded             Action = "rule_added"
	ActionRuleUpdated           Action = "rule_updated"
	ActionRuleRemoved           Action = "rule_removed"
	ActionCountryRestrictionSet Action = "country_restriction_set"
	ActionHoldingLimitsUpdated  Action = "holding_limits_updated"
	ActionCompliancePaused      Action = "compliance_paused"
	ActionComplianceUnpaused    Action = "compliance_unpaused"

	// Asset registry
	ActionAssetMinted      Action = "asset_minted"
	ActionAssetTransferred Action = "asset_transferred"
	ActionAssetVerified    Action = "asset_verified"
	ActionAssetUnverified  Action = "asset_unverified"
	ActionAssetBurned      Action = "asset_burned"

	// Escrow exchange
	ActionListingCreated      Action = "listing_created"
	ActionListingDelisted     Action = "listing_delisted"
	ActionListingPriceUpdated Action = "listing_price_updated"
	ActionListingExtended     Action = "listing_extended"
	ActionListingReactivated  Action = "listing_reactivated"
	ActionPurchaseInitiated   Action = "purchase_initiated"
	ActionFundsDeposited      Action = "funds_deposited"
	ActionEscrowCompleted     Action = "escrow_completed"
	ActionEscrowCancelled     Action = "escrow_cancelled"
	ActionDisputeRaised       Action = "dispute_raised"
	ActionDisputeResolved     Action = "dispute_resolved"
	ActionEmergencyWithdrawal Action = "emergency_withdrawal"
	ActionFeeUpdated          Action = "fee_updated"
	ActionExchangePaused      Action = "exchange_paused"
	ActionExchangeUnpaused    Action = "exchange_unpaused"
)

// Event is emitted from domain logic to capture one state transition. Keep it
// transport-agnostic so stores and sinks can fan out. Unused entity fields
// stay at their zero value and are omitted on the wire.
type Event struct {
	ID        uuid.UUID    `json:"id"`
	Action    Action       `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
	Actor     id.AccountID `json:"actor,omitempty"`
	// Account is the affected account when different from the actor
	// (identity owner, claim subject, grant target, buyer).
	Account   id.AccountID `json:"account,omitempty"`
	AssetID   id.AssetID   `json:"asset_id,omitempty"`
	ListingID string       `json:"listing_id,omitempty"`
	EscrowID  string       `json:"escrow_id,omitempty"`
	Amount    uint64       `json:"amount,omitempty"`
	// Reason carries compliance rejection reasons and cancellation/dispute
	// explanations verbatim.
	Reason string `json:"reason,omitempty"`
	// Detail carries the secondary dimension of the transition: claim topic,
	// role name, jurisdiction code, rule id, fee bps.
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
