package domain

import (
	"strings"

	dErrors "provena/pkg/domain-errors"
)

// Jurisdiction is an ISO 3166-1 alpha-2 country code. It drives the
// compliance country allowlist; the core never interprets it beyond equality.
type Jurisdiction string

// ParseJurisdiction validates and normalizes a country code to upper case.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 {
		return "", dErrors.New(dErrors.CodeValidation, "jurisdiction must be a two-letter country code")
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", dErrors.New(dErrors.CodeValidation, "jurisdiction must be a two-letter country code")
		}
	}
	return Jurisdiction(s), nil
}

// IsZero reports whether the jurisdiction is unset.
func (j Jurisdiction) IsZero() bool {
	return j == ""
}

func (j Jurisdiction) String() string {
	return string(j)
}
