package domain

import dErrors "provena/pkg/domain-errors"

// Role is a capability class granted to an account. Every mutating operation
// names the role it requires; the access service answers whether a caller
// holds it. Violations are authorization errors with no state change.
type Role string

const (
	// RoleAdmin controls issuer management, holding limits, pause switches,
	// fee configuration, and emergency escrow withdrawal.
	RoleAdmin Role = "admin"
	// RoleAgent performs identity registration and removal on behalf of
	// account holders.
	RoleAgent Role = "agent"
	// RoleComplianceOfficer manages custom rules and the country allowlist.
	RoleComplianceOfficer Role = "compliance_officer"
	// RoleMinter mints new asset units.
	RoleMinter Role = "minter"
	// RoleVerifier flips asset verification flags.
	RoleVerifier Role = "verifier"
	// RoleDisputeResolver arbitrates disputed escrows.
	RoleDisputeResolver Role = "dispute_resolver"
	// RoleFeeManager updates exchange fee configuration.
	RoleFeeManager Role = "fee_manager"
)

var validRoles = map[Role]bool{
	RoleAdmin:             true,
	RoleAgent:             true,
	RoleComplianceOfficer: true,
	RoleMinter:            true,
	RoleVerifier:          true,
	RoleDisputeResolver:   true,
	RoleFeeManager:        true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role cannot be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	return r, nil
}

// IsValid checks if the role is one of the recognized enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}
