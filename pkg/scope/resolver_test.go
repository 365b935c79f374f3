package scope

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

func TestResolveVendorAccessOwnerWins(t *testing.T) {
	store := NewStore(setupTestDB(t))
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateVendor(ctx, &Vendor{ID: "vendor-1", BusinessName: "Grand Ballroom", AdminPrincipalID: 42}))

	// The admin also holds a lesser staff relationship; ownership wins
	require.NoError(t, store.GrantStaff(ctx, &VendorStaff{VendorID: "vendor-1", PrincipalID: 42, Tier: TierRepresentative}))

	grant, err := resolver.ResolveVendorAccess(ctx, 42, "vendor-1")
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, GrantSourceAdmin, grant.Source)
	assert.Equal(t, TierOwner, grant.Tier)
	assert.True(t, grant.Allows(CapabilityManageTeam))
	assert.True(t, grant.Allows(CapabilityEditInfo))
}

func TestResolveVendorAccessStaffRelationship(t *testing.T) {
	store := NewStore(setupTestDB(t))
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateVendor(ctx, &Vendor{ID: "vendor-1", BusinessName: "Grand Ballroom", AdminPrincipalID: 1}))
	require.NoError(t, store.GrantStaff(ctx, &VendorStaff{VendorID: "vendor-1", PrincipalID: 7, Tier: TierEmployee}))

	grant, err := resolver.ResolveVendorAccess(ctx, 7, "vendor-1")
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, GrantSourceStaff, grant.Source)
	assert.Equal(t, TierEmployee, grant.Tier)
	assert.True(t, grant.Allows(CapabilityManageBookings))
	assert.True(t, grant.Allows(CapabilityRespondInquiries))
	assert.False(t, grant.Allows(CapabilityEditInfo))
	assert.False(t, grant.Allows(CapabilityManageTeam))
}

func TestResolveVendorAccessNoRelationship(t *testing.T) {
	store := NewStore(setupTestDB(t))
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateVendor(ctx, &Vendor{ID: "vendor-1", BusinessName: "Grand Ballroom", AdminPrincipalID: 1}))

	grant, err := resolver.ResolveVendorAccess(ctx, 7, "vendor-1")
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestResolveVendorAccessInactiveRelationship(t *testing.T) {
	store := NewStore(setupTestDB(t))
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateVendor(ctx, &Vendor{ID: "vendor-1", BusinessName: "Grand Ballroom", AdminPrincipalID: 1}))
	require.NoError(t, store.GrantStaff(ctx, &VendorStaff{VendorID: "vendor-1", PrincipalID: 7, Tier: TierManager}))
	require.NoError(t, store.RevokeStaff(ctx, 7, "vendor-1"))

	grant, err := resolver.ResolveVendorAccess(ctx, 7, "vendor-1")
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestResolveVendorAccessUnknownVendor(t *testing.T) {
	store := NewStore(setupTestDB(t))
	resolver := NewResolver(store, nil)

	grant, err := resolver.ResolveVendorAccess(context.Background(), 7, "missing")
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestResolveVendorAccessDuplicateActiveRows(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.WarnLevel, &buf)
	resolver := NewResolver(store, logger)
	ctx := context.Background()

	require.NoError(t, store.CreateVendor(ctx, &Vendor{ID: "vendor-1", BusinessName: "Grand Ballroom", AdminPrincipalID: 1}))

	// Violate the one-active-row invariant directly, bypassing GrantStaff
	_, err := db.ExecContext(ctx,
		`INSERT INTO vendor_staff (vendor_id, principal_id, tier, is_active, created_at)
		 VALUES ('vendor-1', 7, 'representative', 1, '2024-01-01 00:00:00')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO vendor_staff (vendor_id, principal_id, tier, is_active, created_at)
		 VALUES ('vendor-1', 7, 'manager', 1, '2024-06-01 00:00:00')`)
	require.NoError(t, err)

	grant, err := resolver.ResolveVendorAccess(ctx, 7, "vendor-1")
	require.NoError(t, err)
	require.NotNil(t, grant)

	// Most recently created row wins, and the inconsistency is logged
	assert.Equal(t, TierManager, grant.Tier)
	assert.Contains(t, buf.String(), "duplicate active vendor-staff relationships")
}
