package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tablyhq/tably/pkg/apperrors"
)

// Store provides access to organizations, branches and branch memberships
type Store interface {
	UpsertOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	GetOrganizationByAuth0ID(ctx context.Context, auth0OrgID string) (*Organization, error)

	CreateBranch(ctx context.Context, branch *Branch) error
	UpdateBranch(ctx context.Context, orgID, branchID int64, updates *UpdateBranchRequest) error
	GetBranch(ctx context.Context, id int64) (*Branch, error)
	ListBranches(ctx context.Context, orgID int64) ([]*Branch, error)

	AssignUserToBranch(ctx context.Context, userID, branchID int64) error
	RemoveUserFromBranch(ctx context.Context, userID, branchID int64) error
	ListUserBranchIDs(ctx context.Context, userID int64) ([]int64, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertOrganization inserts an organization or refreshes its name when the
// external tenant id is already known.
func (s *PostgresStore) UpsertOrganization(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (auth0_org_id, name)
		VALUES ($1, $2)
		ON CONFLICT (auth0_org_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, org.Auth0OrgID, org.Name).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, auth0_org_id, name, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Auth0OrgID, &org.Name, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetOrganizationByAuth0ID retrieves an organization by its external tenant id
func (s *PostgresStore) GetOrganizationByAuth0ID(ctx context.Context, auth0OrgID string) (*Organization, error) {
	query := `
		SELECT id, auth0_org_id, name, created_at, updated_at
		FROM organizations
		WHERE auth0_org_id = $1
	`
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, auth0OrgID).Scan(
		&org.ID, &org.Auth0OrgID, &org.Name, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// CreateBranch creates a new branch within an organization
func (s *PostgresStore) CreateBranch(ctx context.Context, branch *Branch) error {
	query := `
		INSERT INTO branches (organization_id, name, address)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, branch.OrganizationID, branch.Name, branch.Address).
		Scan(&branch.ID, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return apperrors.NewConflictError("branch with this name already exists")
		}
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

// UpdateBranch applies partial updates to a branch owned by orgID
func (s *PostgresStore) UpdateBranch(ctx context.Context, orgID, branchID int64, updates *UpdateBranchRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Address != nil {
		setClauses = append(setClauses, fmt.Sprintf("address = $%d", argPos))
		args = append(args, *updates.Address)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, branchID, orgID)
	query := fmt.Sprintf("UPDATE branches SET %s WHERE id = $%d AND organization_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update branch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("branch")
	}
	return nil
}

// GetBranch retrieves a branch by ID
func (s *PostgresStore) GetBranch(ctx context.Context, id int64) (*Branch, error) {
	query := `
		SELECT id, organization_id, name, address, created_at, updated_at
		FROM branches
		WHERE id = $1
	`
	branch := &Branch{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&branch.ID, &branch.OrganizationID, &branch.Name, &branch.Address,
		&branch.CreatedAt, &branch.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("branch")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return branch, nil
}

// ListBranches lists branches for an organization ordered by creation time
func (s *PostgresStore) ListBranches(ctx context.Context, orgID int64) ([]*Branch, error) {
	query := `
		SELECT id, organization_id, name, address, created_at, updated_at
		FROM branches
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		branch := &Branch{}
		if err := rows.Scan(
			&branch.ID, &branch.OrganizationID, &branch.Name, &branch.Address,
			&branch.CreatedAt, &branch.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, branch)
	}
	return branches, rows.Err()
}

// AssignUserToBranch records branch membership. Assigning an existing
// membership is a no-op.
func (s *PostgresStore) AssignUserToBranch(ctx context.Context, userID, branchID int64) error {
	query := `
		INSERT INTO user_branches (user_id, branch_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, branch_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userID, branchID); err != nil {
		return fmt.Errorf("failed to assign user to branch: %w", err)
	}
	return nil
}

// RemoveUserFromBranch removes a branch membership
func (s *PostgresStore) RemoveUserFromBranch(ctx context.Context, userID, branchID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM user_branches WHERE user_id = $1 AND branch_id = $2",
		userID, branchID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove user from branch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("branch membership")
	}
	return nil
}

// ListUserBranchIDs returns the branch ids a user is assigned to
func (s *PostgresStore) ListUserBranchIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT branch_id FROM user_branches WHERE user_id = $1 ORDER BY branch_id ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user branches: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan branch id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
