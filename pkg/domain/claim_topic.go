package domain

import dErrors "provena/pkg/domain-errors"

// ClaimTopic is a domain value that categorizes an attestation about an
// identity.
// Invariant: the value must be one of the recognized claim topics.
//
// Usage: construct via ParseClaimTopic at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ClaimTopic string

// Recognized claim topics.
const (
	ClaimTopicKYC                ClaimTopic = "kyc"
	ClaimTopicAML                ClaimTopic = "aml"
	ClaimTopicAccreditedInvestor ClaimTopic = "accredited_investor"
	ClaimTopicJurisdiction       ClaimTopic = "jurisdiction"
)

// validClaimTopics is the single source of truth for recognized topics.
var validClaimTopics = map[ClaimTopic]bool{
	ClaimTopicKYC:                true,
	ClaimTopicAML:                true,
	ClaimTopicAccreditedInvestor: true,
	ClaimTopicJurisdiction:       true,
}

// DefaultRequiredTopics is the topic set an identity must hold claims under
// to count as verified. Configurable per deployment; see identity service.
var DefaultRequiredTopics = []ClaimTopic{ClaimTopicKYC, ClaimTopicAML}

// ParseClaimTopic constructs a ClaimTopic from external input.
//
// Errors: returns CodeValidation when the value is empty or unrecognized; no
// other errors are expected.
func ParseClaimTopic(s string) (ClaimTopic, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "claim topic cannot be empty")
	}
	t := ClaimTopic(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unrecognized claim topic")
	}
	return t, nil
}

// IsValid checks if the topic is one of the recognized enum values.
func (t ClaimTopic) IsValid() bool {
	return validClaimTopics[t]
}

// String returns the string representation of the topic.
func (t ClaimTopic) String() string {
	return string(t)
}
