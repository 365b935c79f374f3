package scope

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the scope schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create vendors table",
			SQL: `
				CREATE TABLE IF NOT EXISTS vendors (
					id VARCHAR(64) PRIMARY KEY,
					business_name VARCHAR(255) NOT NULL,
					admin_principal_id BIGINT NOT NULL
				);

				CREATE INDEX idx_vendors_admin ON vendors(admin_principal_id);
			`,
		},
		{
			Version:     2,
			Description: "Create vendor_staff table",
			SQL: `
				CREATE TABLE IF NOT EXISTS vendor_staff (
					id BIGSERIAL PRIMARY KEY,
					vendor_id VARCHAR(64) NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
					principal_id BIGINT NOT NULL,
					tier VARCHAR(20) NOT NULL,
					has_explicit_capabilities BOOLEAN NOT NULL DEFAULT FALSE,
					can_edit_info BOOLEAN NOT NULL DEFAULT FALSE,
					can_manage_bookings BOOLEAN NOT NULL DEFAULT FALSE,
					can_respond_inquiries BOOLEAN NOT NULL DEFAULT FALSE,
					can_view_analytics BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deactivated_at TIMESTAMP
				);

				CREATE UNIQUE INDEX idx_vendor_staff_one_active
					ON vendor_staff(vendor_id, principal_id) WHERE is_active;
				CREATE INDEX idx_vendor_staff_principal ON vendor_staff(principal_id);
			`,
		},
		{
			Version:     3,
			Description: "Create vendor_inquiries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS vendor_inquiries (
					id VARCHAR(64) PRIMARY KEY,
					vendor_id VARCHAR(64) NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
					submitted_by BIGINT NOT NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					responded_at TIMESTAMP
				);

				CREATE INDEX idx_vendor_inquiries_vendor ON vendor_inquiries(vendor_id);
				CREATE INDEX idx_vendor_inquiries_status ON vendor_inquiries(status);
			`,
		},
	}
}

// RunMigrations executes all pending scope migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scope_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM scope_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO scope_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
