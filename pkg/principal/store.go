package principal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPrincipalNotFound indicates no principal exists for the identifier
var ErrPrincipalNotFound = errors.New("principal not found")

// Store persists principals and their synced authorization state. Roles
// and permissions are stored as JSON arrays.
type Store struct {
	db *sql.DB
}

// NewStore creates a new principal store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetBySubject loads a principal by its provider subject identifier
func (s *Store) GetBySubject(ctx context.Context, subjectID string) (*Principal, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, email, roles, permissions, last_synced, created_at, updated_at
		 FROM principals WHERE subject_id = $1`,
		subjectID,
	))
}

// GetByID loads a principal by its local identifier
func (s *Store) GetByID(ctx context.Context, id int64) (*Principal, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, email, roles, permissions, last_synced, created_at, updated_at
		 FROM principals WHERE id = $1`,
		id,
	))
}

// Ensure returns the principal for the subject, creating an empty record
// on first sight. A freshly created principal has no roles or permissions
// and has never synced.
func (s *Store) Ensure(ctx context.Context, subjectID, email string) (*Principal, error) {
	p, err := s.GetBySubject(ctx, subjectID)
	if err == nil {
		if email != "" && p.Email != email {
			// Keep the locally stored email current with the token claim
			_, uerr := s.db.ExecContext(ctx,
				`UPDATE principals SET email = $1, updated_at = $2 WHERE id = $3`,
				email, time.Now().UTC(), p.ID,
			)
			if uerr == nil {
				p.Email = email
			}
		}
		return p, nil
	}
	if !errors.Is(err, ErrPrincipalNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	p = &Principal{
		SubjectID:   subjectID,
		Email:       email,
		Roles:       []string{},
		Permissions: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO principals (subject_id, email, roles, permissions, created_at, updated_at)
		 VALUES ($1, $2, '[]', '[]', $3, $4)
		 RETURNING id`,
		subjectID, email, now, now,
	).Scan(&p.ID)
	if err != nil {
		// Lost a creation race; the other writer's row is authoritative
		if existing, gerr := s.GetBySubject(ctx, subjectID); gerr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("inserting principal: %w", err)
	}
	return p, nil
}

// UpdateSyncedState persists the outcome of a successful sync and stamps
// the sync time.
func (s *Store) UpdateSyncedState(ctx context.Context, id int64, roles, permissions []string, syncedAt time.Time) error {
	rolesJSON, err := json.Marshal(emptyIfNil(roles))
	if err != nil {
		return fmt.Errorf("marshaling roles: %w", err)
	}
	permsJSON, err := json.Marshal(emptyIfNil(permissions))
	if err != nil {
		return fmt.Errorf("marshaling permissions: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE principals
		 SET roles = $1, permissions = $2, last_synced = $3, updated_at = $4
		 WHERE id = $5`,
		string(rolesJSON), string(permsJSON), syncedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating synced state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// OverridePermissions replaces the stored permission set without touching
// the sync timestamp, so the next staleness check still re-syncs on
// schedule.
func (s *Store) OverridePermissions(ctx context.Context, id int64, permissions []string) error {
	permsJSON, err := json.Marshal(emptyIfNil(permissions))
	if err != nil {
		return fmt.Errorf("marshaling permissions: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE principals SET permissions = $1, updated_at = $2 WHERE id = $3`,
		string(permsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("overriding permissions: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (s *Store) scanOne(row *sql.Row) (*Principal, error) {
	var p Principal
	var email sql.NullString
	var rolesJSON, permsJSON string
	var lastSynced sql.NullTime

	err := row.Scan(&p.ID, &p.SubjectID, &email, &rolesJSON, &permsJSON, &lastSynced, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning principal: %w", err)
	}

	p.Email = email.String
	if err := json.Unmarshal([]byte(rolesJSON), &p.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles: %w", err)
	}
	if err := json.Unmarshal([]byte(permsJSON), &p.Permissions); err != nil {
		return nil, fmt.Errorf("decoding permissions: %w", err)
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		p.LastSynced = &t
	}
	return &p, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
