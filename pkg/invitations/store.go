package invitations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
)

// Store provides access to local invitation records
type Store interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, id int64) (*Invitation, error)
	FindPending(ctx context.Context, email string, orgID int64) (*Invitation, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*Invitation, error)
	Transition(ctx context.Context, id int64, from, to Status) (bool, error)
	MarkExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const invitationColumns = `id, email, organization_id, branch_id, role, status,
	invited_by, auth0_invitation_id, created_at, expires_at, accepted_at`

// Create inserts a PENDING invitation. The partial unique index on
// (email, organization_id) WHERE status = 'PENDING' rejects duplicates.
func (s *PostgresStore) Create(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO invitations (email, organization_id, branch_id, role, status, invited_by, auth0_invitation_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	var branchID sql.NullInt64
	if inv.BranchID != nil {
		branchID = sql.NullInt64{Int64: *inv.BranchID, Valid: true}
	}
	var invitedBy sql.NullInt64
	if inv.InvitedBy != nil {
		invitedBy = sql.NullInt64{Int64: *inv.InvitedBy, Valid: true}
	}

	if inv.Status == "" {
		inv.Status = StatusPending
	}

	err := s.db.QueryRowContext(ctx, query,
		inv.Email, inv.OrganizationID, branchID, string(inv.Role), string(inv.Status),
		invitedBy, nullString(inv.Auth0InvitationID), inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetByID retrieves an invitation by ID
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Invitation, error) {
	query := fmt.Sprintf("SELECT %s FROM invitations WHERE id = $1", invitationColumns)
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("invitation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// FindPending returns the oldest live PENDING invitation for (email, org),
// or a NotFoundError when none exists.
func (s *PostgresStore) FindPending(ctx context.Context, email string, orgID int64) (*Invitation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invitations
		WHERE email = $1 AND organization_id = $2 AND status = 'PENDING' AND expires_at > NOW()
		ORDER BY created_at ASC
		LIMIT 1
	`, invitationColumns)

	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, email, orgID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("invitation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending invitation: %w", err)
	}
	return inv, nil
}

// ListByOrganization lists invitations for an organization, newest first
func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID int64) ([]*Invitation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invitations
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, invitationColumns)

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var result []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// Transition moves an invitation from one status to another. The returned
// bool reports whether the row was in the expected state; a concurrent
// transition makes it false without error.
func (s *PostgresStore) Transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	query := `
		UPDATE invitations
		SET status = $1, accepted_at = CASE WHEN $1 = 'ACCEPTED' THEN NOW() ELSE accepted_at END
		WHERE id = $2 AND status = $3
	`
	result, err := s.db.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition invitation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// MarkExpired transitions every overdue PENDING invitation to EXPIRED and
// returns the number of rows touched.
func (s *PostgresStore) MarkExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE invitations SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired invitations: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitation(row rowScanner) (*Invitation, error) {
	inv := &Invitation{}
	var branchID, invitedBy sql.NullInt64
	var auth0ID sql.NullString
	var acceptedAt sql.NullTime
	var role, status string

	err := row.Scan(
		&inv.ID, &inv.Email, &inv.OrganizationID, &branchID, &role, &status,
		&invitedBy, &auth0ID, &inv.CreatedAt, &inv.ExpiresAt, &acceptedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Role = auth.Role(role)
	inv.Status = Status(status)
	if branchID.Valid {
		inv.BranchID = &branchID.Int64
	}
	if invitedBy.Valid {
		inv.InvitedBy = &invitedBy.Int64
	}
	if auth0ID.Valid {
		inv.Auth0InvitationID = auth0ID.String
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
