package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tablyhq/tably/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					auth0_org_id VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_auth0_org_id ON organizations(auth0_org_id);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					auth0_id VARCHAR(255) NOT NULL UNIQUE,
					email VARCHAR(320) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					role VARCHAR(20) NOT NULL,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_auth0_id ON users(auth0_id);
				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_organization_id ON users(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create branches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS branches (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					address TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, name)
				);

				CREATE INDEX idx_branches_organization_id ON branches(organization_id);
			`,
		},
		{
			Version:     4,
			Description: "Create user_branches table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_branches (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					branch_id BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, branch_id)
				);

				CREATE INDEX idx_user_branches_user_id ON user_branches(user_id);
				CREATE INDEX idx_user_branches_branch_id ON user_branches(branch_id);
			`,
		},
		{
			Version:     5,
			Description: "Create invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS invitations (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(320) NOT NULL,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					branch_id BIGINT REFERENCES branches(id) ON DELETE SET NULL,
					role VARCHAR(20) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					auth0_invitation_id VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP
				);

				CREATE UNIQUE INDEX idx_invitations_pending_email_org
					ON invitations(email, organization_id) WHERE status = 'PENDING';
				CREATE INDEX idx_invitations_organization_id ON invitations(organization_id);
				CREATE INDEX idx_invitations_status ON invitations(status);
				CREATE INDEX idx_invitations_expires_at ON invitations(expires_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logger.WithField("version", migration.Version).Info("migration completed")
	}

	return nil
}
