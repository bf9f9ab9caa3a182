package auth

import "strings"

// Role represents an organization-level role carried in token claims and
// mirrored on local user rows.
type Role string

const (
	RoleOwner   Role = "OWNER"   // Full access to every branch of the organization
	RoleManager Role = "MANAGER" // Branch-scoped management, may invite staff
	RoleWaiter  Role = "WAITER"  // Branch-scoped service staff
	RoleChef    Role = "CHEF"    // Branch-scoped kitchen staff
)

// ParseRole maps a role string from a token claim to a Role,
// case-insensitively. Unrecognized or empty strings default to RoleOwner;
// the second return value reports whether the default was applied so callers
// can log and count the fallback instead of silently granting the highest
// privilege.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, false
	case RoleManager:
		return RoleManager, false
	case RoleWaiter:
		return RoleWaiter, false
	case RoleChef:
		return RoleChef, false
	default:
		return RoleOwner, true
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleWaiter, RoleChef:
		return true
	}
	return false
}

// CanInvite reports whether a principal holding role r may create an
// invitation for the target role. Owners invite anyone; managers only
// service staff. Waiters and chefs never invite.
func (r Role) CanInvite(target Role) bool {
	switch r {
	case RoleOwner:
		return target.Valid()
	case RoleManager:
		return target == RoleWaiter || target == RoleChef
	default:
		return false
	}
}

// Identity is the canonical, transient record derived from a validated token.
// It is reconstructed per request and never persisted.
type Identity struct {
	// Subject is the external identity-provider subject id (always present).
	Subject string
	Email   string
	Name    string
	// OrgID is the external tenant/organization id. Empty during the
	// tenant-creation flow, in which case no provisioning runs.
	OrgID string
	Role  Role
	// RoleDefaulted is true when the token carried no recognizable role and
	// Role was defaulted to RoleOwner.
	RoleDefaulted bool
	BranchIDs     []string
}

// HasOrganization reports whether the token carried an organization claim.
func (i *Identity) HasOrganization() bool { return i.OrgID != "" }

// Principal is the resolved caller attached to the request context after
// authentication. When provisioning succeeded UserID/OrganizationID reference
// local rows; when it was skipped they are zero and the principal is
// claims-derived only.
type Principal struct {
	Identity

	// UserID is the local user row id, 0 when provisioning was skipped.
	UserID int64
	// OrganizationID is the local organization row id, 0 when unresolved.
	OrganizationID int64
}

// MemberOfBranch reports whether the principal's branch set contains id.
func (p *Principal) MemberOfBranch(id string) bool {
	for _, b := range p.BranchIDs {
		if b == id {
			return true
		}
	}
	return false
}
