package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// Claim is a signed attestation about an identity, issued by an authorized
// third party. The signature and data blobs are opaque to the core; the URI
// points at off-record evidence in the document store.
//
// Invariant: a claim may be removed only by its original issuer.
type Claim struct {
	ID        id.ClaimID    `json:"id"`
	Account   id.AccountID  `json:"account"`
	Topic     id.ClaimTopic `json:"topic"`
	Issuer    id.AccountID  `json:"issuer"`
	Scheme    uint64        `json:"scheme"`
	Signature []byte        `json:"signature,omitempty"`
	Data      []byte        `json:"data,omitempty"`
	URI       string        `json:"uri,omitempty"`
	IssuedAt  time.Time     `json:"issued_at"`
}

func NewClaim(subject id.AccountID, topic id.ClaimTopic, issuer id.AccountID, scheme uint64, signature, data []byte, uri string, now time.Time) (*Claim, error) {
	if subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim subject cannot be null")
	}
	if !topic.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim topic is not recognized")
	}
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim issuer cannot be null")
	}
	return &Claim{
		ID:        id.NewClaimID(),
		Account:   subject,
		Topic:     topic,
		Issuer:    issuer,
		Scheme:    scheme,
		Signature: signature,
		Data:      data,
		URI:       uri,
		IssuedAt:  now,
	}, nil
}
