package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
	"github.com/tablyhq/tably/pkg/observability"
)

// orgCacheSize bounds the tenant-id resolution cache. Entries are tiny;
// the bound only guards against unbounded growth from garbage tenant ids.
const orgCacheSize = 1024

// Synchronizer performs just-in-time provisioning: on every authenticated
// request it mirrors the caller into the local database and, when a pending
// invitation matches, accepts it.
type Synchronizer struct {
	db       *sql.DB
	orgCache *lru.Cache[string, int64]
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewSynchronizer creates a Synchronizer
func NewSynchronizer(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) (*Synchronizer, error) {
	cache, err := lru.New[string, int64](orgCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create org cache: %w", err)
	}
	return &Synchronizer{
		db:       db,
		orgCache: cache,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Sync mirrors the identity into local storage and returns the resolved
// principal. The returned principal is always usable: when provisioning
// fails the principal is claims-derived and the error reports what went
// wrong so the caller can log and discard it. Sync never blocks
// authentication.
func (s *Synchronizer) Sync(ctx context.Context, identity *auth.Identity) (*auth.Principal, error) {
	principal := &auth.Principal{Identity: *identity}

	// Tokens without an organization claim belong to the tenant-creation
	// flow; there is nothing to provision yet.
	if !identity.HasOrganization() {
		return principal, nil
	}

	start := time.Now()
	err := s.provision(ctx, principal)
	if s.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.ProvisioningTotal.WithLabelValues(outcome).Inc()
		s.metrics.ProvisioningDuration.Observe(time.Since(start).Seconds())
	}
	return principal, err
}

func (s *Synchronizer) provision(ctx context.Context, principal *auth.Principal) error {
	orgID, err := s.resolveOrg(ctx, principal.OrgID)
	if err != nil {
		return err
	}
	principal.OrganizationID = orgID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewProvisionError("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	inv, err := findPendingInvitation(ctx, tx, principal.Email, orgID, now)
	if err != nil {
		return apperrors.NewProvisionError("find_invitation", err)
	}

	// An accepted invitation's role wins over whatever the token carried
	role := principal.Role
	if inv != nil {
		role = inv.role
	}

	userID, err := upsertUser(ctx, tx, principal, role, orgID, now)
	if err != nil {
		return apperrors.NewProvisionError("upsert_user", err)
	}
	principal.UserID = userID

	if inv != nil {
		principal.Role = role
		principal.RoleDefaulted = false

		accepted, err := acceptInvitation(ctx, tx, inv.id, now)
		if err != nil {
			return apperrors.NewProvisionError("accept_invitation", err)
		}
		if accepted {
			if inv.branchID != nil {
				if err := assignBranch(ctx, tx, userID, *inv.branchID, now); err != nil {
					return apperrors.NewProvisionError("assign_branch", err)
				}
			}
			if s.metrics != nil {
				s.metrics.InvitationsAcceptedTotal.Inc()
			}
			s.logger.WithFields(map[string]interface{}{
				"invitation_id": inv.id,
				"user_id":       userID,
			}).Info("invitation accepted")
		}
		// Losing the conditional update means a concurrent request
		// already accepted; its branch assignment stands.
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewProvisionError("commit", err)
	}

	if err := s.mergeLocalBranches(ctx, principal); err != nil {
		return apperrors.NewProvisionError("load_branches", err)
	}
	return nil
}

// resolveOrg maps the external tenant id to the local organization row id,
// caching hits. Only positive results are cached so a tenant created moments
// later resolves without waiting for eviction.
func (s *Synchronizer) resolveOrg(ctx context.Context, auth0OrgID string) (int64, error) {
	if id, ok := s.orgCache.Get(auth0OrgID); ok {
		return id, nil
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM organizations WHERE auth0_org_id = $1", auth0OrgID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewProvisionError("resolve_org",
			fmt.Errorf("unknown organization %s", auth0OrgID))
	}
	if err != nil {
		return 0, apperrors.NewProvisionError("resolve_org", err)
	}

	s.orgCache.Add(auth0OrgID, id)
	return id, nil
}

// mergeLocalBranches unions locally assigned branch ids into the principal's
// claim-derived branch set, so an invitation accepted this request grants
// branch access immediately instead of after the next token refresh.
func (s *Synchronizer) mergeLocalBranches(ctx context.Context, principal *auth.Principal) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT branch_id FROM user_branches WHERE user_id = $1", principal.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	seen := make(map[string]bool, len(principal.BranchIDs))
	for _, b := range principal.BranchIDs {
		seen[b] = true
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		key := strconv.FormatInt(id, 10)
		if !seen[key] {
			principal.BranchIDs = append(principal.BranchIDs, key)
			seen[key] = true
		}
	}
	return rows.Err()
}

type pendingInvitation struct {
	id       int64
	role     auth.Role
	branchID *int64
}

func findPendingInvitation(ctx context.Context, tx *sql.Tx, email string, orgID int64, now time.Time) (*pendingInvitation, error) {
	query := `
		SELECT id, role, branch_id FROM invitations
		WHERE email = $1 AND organization_id = $2 AND status = 'PENDING' AND expires_at > $3
		ORDER BY created_at ASC
		LIMIT 1
	`
	var inv pendingInvitation
	var role string
	var branchID sql.NullInt64
	err := tx.QueryRowContext(ctx, query, email, orgID, now).Scan(&inv.id, &role, &branchID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inv.role = auth.Role(role)
	if branchID.Valid {
		inv.branchID = &branchID.Int64
	}
	return &inv, nil
}

func upsertUser(ctx context.Context, tx *sql.Tx, principal *auth.Principal, role auth.Role, orgID int64, now time.Time) (int64, error) {
	query := `
		INSERT INTO users (auth0_id, email, name, role, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (auth0_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			role = excluded.role,
			organization_id = excluded.organization_id,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		principal.Subject, principal.Email, principal.Name, string(role), orgID, now,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// acceptInvitation transitions PENDING to ACCEPTED. The status guard makes
// concurrent acceptance first-writer-wins; the returned bool reports whether
// this call won.
func acceptInvitation(ctx context.Context, tx *sql.Tx, id int64, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx,
		"UPDATE invitations SET status = 'ACCEPTED', accepted_at = $1 WHERE id = $2 AND status = 'PENDING'",
		now, id,
	)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func assignBranch(ctx context.Context, tx *sql.Tx, userID, branchID int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_branches (user_id, branch_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, branch_id) DO NOTHING
	`, userID, branchID, now)
	return err
}
