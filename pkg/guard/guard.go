package guard

import (
	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/observability"
)

// Guard makes branch-level access decisions for authenticated principals.
type Guard struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewGuard creates a Guard
func NewGuard(logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{logger: logger, metrics: metrics}
}

// Check authorizes the principal for the given branch. Owners hold
// organization-wide access and pass without a branch id. Every other role
// must name a branch and be a member of it.
func (g *Guard) Check(principal *auth.Principal, branchID string) error {
	if principal.Role == auth.RoleOwner {
		g.record("allow")
		return nil
	}

	if branchID == "" {
		g.record("missing_branch")
		return apperrors.NewValidationError("branch_id", "branch id is required")
	}

	if !principal.MemberOfBranch(branchID) {
		g.record("deny")
		g.logger.WithFields(map[string]interface{}{
			"subject":   principal.Subject,
			"branch_id": branchID,
		}).Warn("branch access denied")
		return apperrors.NewAuthorizationError("not a member of this branch")
	}

	g.record("allow")
	return nil
}

// CheckInvite authorizes the principal to invite someone with the target
// role. Owners invite any role; managers only service staff.
func (g *Guard) CheckInvite(principal *auth.Principal, target auth.Role) error {
	if !principal.Role.CanInvite(target) {
		g.record("deny")
		return apperrors.NewAuthorizationError("role may not create this invitation")
	}
	g.record("allow")
	return nil
}

func (g *Guard) record(decision string) {
	if g.metrics != nil {
		g.metrics.AccessDecisionsTotal.WithLabelValues(decision).Inc()
	}
}
