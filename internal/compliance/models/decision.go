package models

// RejectionCode is the coarse classification of a compliance rejection.
// Presentation layers key generic handling off the code; the Reason string is
// surfaced verbatim.
type RejectionCode string

const (
	RejectTransfersPaused   RejectionCode = "transfers_paused"
	RejectUnverifiedParty   RejectionCode = "unverified_party"
	RejectCountryNotAllowed RejectionCode = "country_not_allowed"
	RejectAmountTooLow      RejectionCode = "amount_too_low"
	RejectAmountTooHigh     RejectionCode = "amount_too_high"
	RejectCustomRuleFailed  RejectionCode = "custom_rule_failed"
)

// Decision is the outcome of a transfer eligibility check. Allowed decisions
// carry no reason; rejected ones carry the first failing condition.
type Decision struct {
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
	Code    RejectionCode `json:"code,omitempty"`
}

func Allowed() Decision {
	return Decision{Allowed: true}
}

func Rejected(code RejectionCode, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Code: code}
}
