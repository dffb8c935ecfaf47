package models

import (
	"time"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
)

// Issuer is a third party authorized to attest claims under a set of topics.
// Topic grants are managed by admins; the issuer itself never widens its own
// authorization.
type Issuer struct {
	Account id.AccountID               `json:"account"`
	Topics  map[id.ClaimTopic]struct{} `json:"-"`
	AddedAt time.Time                  `json:"added_at"`
}

func NewIssuer(account id.AccountID, topics []id.ClaimTopic, now time.Time) (*Issuer, error) {
	if account.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer account cannot be null")
	}
	issuer := &Issuer{
		Account: account,
		Topics:  make(map[id.ClaimTopic]struct{}, len(topics)),
		AddedAt: now,
	}
	for _, topic := range topics {
		if !topic.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer topic is not recognized")
		}
		issuer.Topics[topic] = struct{}{}
	}
	return issuer, nil
}

// CanIssue reports whether the issuer is authorized for the topic.
func (i *Issuer) CanIssue(topic id.ClaimTopic) bool {
	_, ok := i.Topics[topic]
	return ok
}

// GrantTopic authorizes the issuer for an additional topic.
func (i *Issuer) GrantTopic(topic id.ClaimTopic) error {
	if !topic.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "topic is not recognized")
	}
	if _, ok := i.Topics[topic]; ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "topic already granted")
	}
	i.Topics[topic] = struct{}{}
	return nil
}

// RevokeTopic removes a topic authorization.
func (i *Issuer) RevokeTopic(topic id.ClaimTopic) error {
	if _, ok := i.Topics[topic]; !ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "topic not granted")
	}
	delete(i.Topics, topic)
	return nil
}

// TopicList returns the granted topics in no particular order.
func (i *Issuer) TopicList() []id.ClaimTopic {
	topics := make([]id.ClaimTopic, 0, len(i.Topics))
	for topic := range i.Topics {
		topics = append(topics, topic)
	}
	return topics
}
