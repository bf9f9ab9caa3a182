package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
)

// Store provides access to local user records
type Store interface {
	Upsert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByAuth0ID(ctx context.Context, auth0ID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*User, error)
	UpdateRole(ctx context.Context, userID int64, role string) error
	Delete(ctx context.Context, userID int64) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts a user or refreshes the profile fields when the external
// subject id is already known. The local role is overwritten with the
// caller-supplied role, which lets an accepted invitation take precedence
// over the role carried in the token.
func (s *PostgresStore) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (auth0_id, email, name, role, organization_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auth0_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			organization_id = EXCLUDED.organization_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	var orgID sql.NullInt64
	if user.OrganizationID != nil {
		orgID = sql.NullInt64{Int64: *user.OrganizationID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		user.Auth0ID, user.Email, user.Name, string(user.Role), orgID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by local row id
func (s *PostgresStore) GetByID(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, auth0_id, email, name, role, organization_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user := &User{}
	var orgID sql.NullInt64
	var role string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Auth0ID, &user.Email, &user.Name, &role,
		&orgID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = roleFromString(role)
	if orgID.Valid {
		user.OrganizationID = &orgID.Int64
	}
	return user, nil
}

// GetByAuth0ID retrieves a user by external subject id
func (s *PostgresStore) GetByAuth0ID(ctx context.Context, auth0ID string) (*User, error) {
	return s.getBy(ctx, "auth0_id", auth0ID)
}

// GetByEmail retrieves a user by email
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *PostgresStore) getBy(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, auth0_id, email, name, role, organization_id, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	user := &User{}
	var orgID sql.NullInt64
	var role string
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Auth0ID, &user.Email, &user.Name, &role,
		&orgID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = roleFromString(role)
	if orgID.Valid {
		user.OrganizationID = &orgID.Int64
	}
	return user, nil
}

// ListByOrganization lists users belonging to an organization
func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID int64) ([]*User, error) {
	query := `
		SELECT id, auth0_id, email, name, role, organization_id, created_at, updated_at
		FROM users
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		user := &User{}
		var nullOrgID sql.NullInt64
		var role string
		if err := rows.Scan(
			&user.ID, &user.Auth0ID, &user.Email, &user.Name, &role,
			&nullOrgID, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Role = roleFromString(role)
		if nullOrgID.Valid {
			user.OrganizationID = &nullOrgID.Int64
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

// UpdateRole updates the local role of a user
func (s *PostgresStore) UpdateRole(ctx context.Context, userID int64, role string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2",
		role, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}

// Delete removes a user row. Branch memberships cascade.
func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}

func roleFromString(s string) (r auth.Role) {
	r, _ = auth.ParseRole(s)
	return r
}
