package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrVendorNotFound indicates the vendor does not exist
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrInquiryNotFound indicates the inquiry does not exist
	ErrInquiryNotFound = errors.New("inquiry not found")

	// ErrStaleInquiryStatus indicates the inquiry changed state underneath
	// a transition attempt.
	ErrStaleInquiryStatus = errors.New("inquiry status changed concurrently")
)

// Store persists vendors, vendor-staff relationships, and vendor inquiries
type Store struct {
	db *sql.DB
}

// NewStore creates a new scope store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Vendor is a vendor business entity. Only the fields the authorization
// layer needs are modeled here; listing profile data lives elsewhere.
type Vendor struct {
	ID               string
	BusinessName     string
	AdminPrincipalID int64
}

// CreateVendor inserts a vendor record
func (s *Store) CreateVendor(ctx context.Context, v *Vendor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendors (id, business_name, admin_principal_id) VALUES ($1, $2, $3)`,
		v.ID, v.BusinessName, v.AdminPrincipalID,
	)
	if err != nil {
		return fmt.Errorf("inserting vendor: %w", err)
	}
	return nil
}

// VendorAdmin returns the principal ID of the vendor's recorded primary
// administrator.
func (s *Store) VendorAdmin(ctx context.Context, vendorID string) (int64, error) {
	var adminID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT admin_principal_id FROM vendors WHERE id = $1`,
		vendorID,
	).Scan(&adminID)
	if err == sql.ErrNoRows {
		return 0, ErrVendorNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying vendor admin: %w", err)
	}
	return adminID, nil
}

// GrantStaff creates an active staff relationship for (principal, vendor).
// Any prior active relationship for the pair is deactivated in the same
// transaction, preserving the one-active-row invariant.
func (s *Store) GrantStaff(ctx context.Context, rel *VendorStaff) error {
	if !rel.Tier.Valid() {
		return fmt.Errorf("invalid tier %q", rel.Tier)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning grant transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE vendor_staff SET is_active = FALSE, deactivated_at = $1
		 WHERE vendor_id = $2 AND principal_id = $3 AND is_active`,
		now, rel.VendorID, rel.PrincipalID,
	)
	if err != nil {
		return fmt.Errorf("deactivating prior relationship: %w", err)
	}

	hasFlags := rel.Capabilities != nil
	flags := rel.Capabilities
	if flags == nil {
		flags = &CapabilityFlags{}
	}

	rel.CreatedAt = now
	rel.Active = true
	err = tx.QueryRowContext(ctx,
		`INSERT INTO vendor_staff
		 (vendor_id, principal_id, tier, has_explicit_capabilities,
		  can_edit_info, can_manage_bookings, can_respond_inquiries, can_view_analytics,
		  is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		 RETURNING id`,
		rel.VendorID, rel.PrincipalID, string(rel.Tier), hasFlags,
		flags.CanEditInfo, flags.CanManageBookings, flags.CanRespondInquiries, flags.CanViewAnalytics,
		now,
	).Scan(&rel.ID)
	if err != nil {
		return fmt.Errorf("inserting relationship: %w", err)
	}

	return tx.Commit()
}

// RevokeStaff deactivates the active relationship for (principal, vendor).
// Rows are never deleted; deactivation preserves audit history.
func (s *Store) RevokeStaff(ctx context.Context, principalID int64, vendorID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE vendor_staff SET is_active = FALSE, deactivated_at = $1
		 WHERE vendor_id = $2 AND principal_id = $3 AND is_active`,
		time.Now().UTC(), vendorID, principalID,
	)
	if err != nil {
		return fmt.Errorf("revoking relationship: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActiveRelationships returns the active relationships for (principal,
// vendor), most recently created first. More than one row indicates a
// violated uniqueness invariant; the resolver handles that
// deterministically.
func (s *Store) ActiveRelationships(ctx context.Context, principalID int64, vendorID string) ([]*VendorStaff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor_id, principal_id, tier, has_explicit_capabilities,
		        can_edit_info, can_manage_bookings, can_respond_inquiries, can_view_analytics,
		        is_active, created_at, deactivated_at
		 FROM vendor_staff
		 WHERE principal_id = $1 AND vendor_id = $2 AND is_active
		 ORDER BY created_at DESC, id DESC`,
		principalID, vendorID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}

// ActiveForPrincipal returns all of a principal's active relationships
// across vendors; used by the sync orchestrator to derive locally
// authoritative permissions.
func (s *Store) ActiveForPrincipal(ctx context.Context, principalID int64) ([]*VendorStaff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor_id, principal_id, tier, has_explicit_capabilities,
		        can_edit_info, can_manage_bookings, can_respond_inquiries, can_view_analytics,
		        is_active, created_at, deactivated_at
		 FROM vendor_staff
		 WHERE principal_id = $1 AND is_active
		 ORDER BY created_at DESC, id DESC`,
		principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying principal relationships: %w", err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}

// ListStaff returns all active relationships for a vendor
func (s *Store) ListStaff(ctx context.Context, vendorID string) ([]*VendorStaff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor_id, principal_id, tier, has_explicit_capabilities,
		        can_edit_info, can_manage_bookings, can_respond_inquiries, can_view_analytics,
		        is_active, created_at, deactivated_at
		 FROM vendor_staff
		 WHERE vendor_id = $1 AND is_active
		 ORDER BY created_at DESC, id DESC`,
		vendorID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying vendor staff: %w", err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}

func scanRelationships(rows *sql.Rows) ([]*VendorStaff, error) {
	var rels []*VendorStaff
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func scanRelationship(scanner interface {
	Scan(dest ...interface{}) error
}) (*VendorStaff, error) {
	var rel VendorStaff
	var tier string
	var hasFlags bool
	var flags CapabilityFlags
	var deactivatedAt sql.NullTime

	err := scanner.Scan(
		&rel.ID,
		&rel.VendorID,
		&rel.PrincipalID,
		&tier,
		&hasFlags,
		&flags.CanEditInfo,
		&flags.CanManageBookings,
		&flags.CanRespondInquiries,
		&flags.CanViewAnalytics,
		&rel.Active,
		&rel.CreatedAt,
		&deactivatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}

	rel.Tier = Tier(tier)
	if hasFlags {
		rel.Capabilities = &flags
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		rel.DeactivatedAt = &t
	}

	return &rel, nil
}

// GetInquiry loads a vendor inquiry by ID
func (s *Store) GetInquiry(ctx context.Context, inquiryID string) (*Inquiry, error) {
	var inq Inquiry
	var status string
	var respondedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, vendor_id, submitted_by, status, created_at, responded_at
		 FROM vendor_inquiries WHERE id = $1`,
		inquiryID,
	).Scan(&inq.ID, &inq.VendorID, &inq.SubmittedBy, &status, &inq.CreatedAt, &respondedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInquiryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying inquiry: %w", err)
	}

	inq.Status = InquiryStatus(status)
	if respondedAt.Valid {
		t := respondedAt.Time
		inq.RespondedAt = &t
	}
	return &inq, nil
}

// CreateInquiry inserts a new inquiry in the pending state
func (s *Store) CreateInquiry(ctx context.Context, inq *Inquiry) error {
	inq.Status = InquiryPending
	inq.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendor_inquiries (id, vendor_id, submitted_by, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		inq.ID, inq.VendorID, inq.SubmittedBy, string(inq.Status), inq.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting inquiry: %w", err)
	}
	return nil
}

// UpdateInquiryStatus transitions an inquiry from one state to another.
// The update is conditional on the current state so concurrent transitions
// cannot clobber each other; a lost race returns ErrStaleInquiryStatus.
func (s *Store) UpdateInquiryStatus(ctx context.Context, inquiryID string, from, to InquiryStatus) error {
	var respondedAt interface{}
	if to == InquiryResponded {
		respondedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE vendor_inquiries
		 SET status = $1, responded_at = COALESCE($2, responded_at)
		 WHERE id = $3 AND status = $4`,
		string(to), respondedAt, inquiryID, string(from),
	)
	if err != nil {
		return fmt.Errorf("updating inquiry status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrStaleInquiryStatus
	}
	return nil
}
