package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists audit events to SQL for retention beyond the log stream.
// It satisfies Sink so it can be attached to a Logger.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit event store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Write inserts a single audit event. Audit writes are fire-and-forget from
// the caller's perspective, so the insert runs on a background context.
func (s *Store) Write(event Event) error {
	details := "{}"
	if len(event.Details) > 0 {
		encoded, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = string(encoded)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO audit_events (event_type, subject, actor, vendor_id, outcome, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(event.Type), event.Subject, event.Actor, event.VendorID, event.Outcome, details, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// RecentBySubject returns the most recent audit events for a subject,
// newest first.
func (s *Store) RecentBySubject(ctx context.Context, subject string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, subject, actor, vendor_id, outcome, details, occurred_at
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		subject, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event      Event
			eventType  string
			rawDetails string
		)
		if err := rows.Scan(&eventType, &event.Subject, &event.Actor, &event.VendorID,
			&event.Outcome, &rawDetails, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		event.Type = EventType(eventType)
		if rawDetails != "" && rawDetails != "{}" {
			if err := json.Unmarshal([]byte(rawDetails), &event.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetMigrations returns the audit schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(64) NOT NULL,
					subject VARCHAR(255) NOT NULL DEFAULT '',
					actor VARCHAR(255) NOT NULL DEFAULT '',
					vendor_id VARCHAR(64) NOT NULL DEFAULT '',
					outcome VARCHAR(32) NOT NULL DEFAULT '',
					details TEXT NOT NULL DEFAULT '{}',
					occurred_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_subject ON audit_events(subject, occurred_at);
			`,
		},
	}
}

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// RunMigrations executes all pending audit migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM audit_migrations ORDER BY version")
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
			"INSERT INTO audit_migrations (version, description) VALUES ($1, $2)",
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
