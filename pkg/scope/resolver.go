package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

// Resolver answers vendor-scoped access questions: which relationship a
// principal holds on a vendor and what rights that relationship grants.
type Resolver struct {
	store  *Store
	logger *observability.Logger
}

// NewResolver creates a vendor access resolver. logger may be nil.
func NewResolver(store *Store, logger *observability.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// ResolveVendorAccess determines the principal's access grant for one
// vendor. Ownership (recorded primary administrator) wins over any staff
// relationship; otherwise the active relationship's tier and capability
// flags apply. A nil grant with a nil error means no access — the caller
// denies or falls back to public-tier checks.
func (r *Resolver) ResolveVendorAccess(ctx context.Context, principalID int64, vendorID string) (*AccessGrant, error) {
	adminID, err := r.store.VendorAdmin(ctx, vendorID)
	if err != nil && !errors.Is(err, ErrVendorNotFound) {
		return nil, fmt.Errorf("resolving vendor admin: %w", err)
	}
	if err == nil && adminID == principalID {
		return ownerGrant(vendorID, principalID), nil
	}

	rels, err := r.store.ActiveRelationships(ctx, principalID, vendorID)
	if err != nil {
		return nil, fmt.Errorf("resolving staff relationship: %w", err)
	}
	if len(rels) == 0 {
		return nil, nil
	}

	// The store enforces one active relationship per (principal, vendor).
	// If data corruption violated that, pick the most recently created row
	// and say so — never silently pick arbitrarily.
	if len(rels) > 1 && r.logger != nil {
		r.logger.WithFields(map[string]interface{}{
			"principal_id": principalID,
			"vendor_id":    vendorID,
			"active_rows":  len(rels),
		}).Warn("duplicate active vendor-staff relationships; using most recent")
	}

	return staffGrant(rels[0]), nil
}
