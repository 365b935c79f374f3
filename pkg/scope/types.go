package scope

import "time"

// Tier is a principal's local role tier on one vendor business
type Tier string

const (
	TierOwner          Tier = "owner"
	TierManager        Tier = "manager"
	TierEmployee       Tier = "employee"
	TierRepresentative Tier = "representative"
)

// Valid reports whether the tier is one of the known values
func (t Tier) Valid() bool {
	switch t {
	case TierOwner, TierManager, TierEmployee, TierRepresentative:
		return true
	}
	return false
}

// Capability is a fine-grained right on a vendor business
type Capability string

const (
	CapabilityReadInfo         Capability = "read_info"
	CapabilityEditInfo         Capability = "edit_info"
	CapabilityManageBookings   Capability = "manage_bookings"
	CapabilityRespondInquiries Capability = "respond_to_inquiries"
	CapabilityViewAnalytics    Capability = "view_analytics"
	CapabilityManageTeam       Capability = "manage_team"
)

// CapabilityFlags are the explicit per-relationship capability overrides.
// When present on a relationship they take precedence over the tier's
// default capabilities.
type CapabilityFlags struct {
	CanEditInfo         bool `json:"can_edit_info"`
	CanManageBookings   bool `json:"can_manage_bookings"`
	CanRespondInquiries bool `json:"can_respond_inquiries"`
	CanViewAnalytics    bool `json:"can_view_analytics"`
}

// VendorStaff links a principal to a vendor business with a role tier,
// optional explicit capability flags, and an active flag. At most one
// active relationship exists per (principal, vendor) pair; revocation
// deactivates the row rather than deleting it, preserving audit history.
type VendorStaff struct {
	ID          int64
	VendorID    string
	PrincipalID int64
	Tier        Tier

	// Capabilities is nil when no explicit flags were set; the tier's
	// defaults apply in that case.
	Capabilities *CapabilityFlags

	Active        bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// GrantSource records how an access grant was derived
type GrantSource string

const (
	// GrantSourceAdmin marks a grant to the vendor's recorded primary
	// administrator.
	GrantSourceAdmin GrantSource = "admin"
	// GrantSourceStaff marks a grant derived from an active staff
	// relationship.
	GrantSourceStaff GrantSource = "staff"
)

// AccessGrant is the resolved outcome of checking a principal's access to
// one vendor business.
type AccessGrant struct {
	VendorID     string
	PrincipalID  int64
	Tier         Tier
	Source       GrantSource
	capabilities map[Capability]bool
}

// Allows reports whether the grant includes the capability
func (g *AccessGrant) Allows(capability Capability) bool {
	if g == nil {
		return false
	}
	return g.capabilities[capability]
}

// Capabilities returns the granted capabilities in stable order
func (g *AccessGrant) Capabilities() []Capability {
	if g == nil {
		return nil
	}
	all := []Capability{
		CapabilityReadInfo,
		CapabilityEditInfo,
		CapabilityManageBookings,
		CapabilityRespondInquiries,
		CapabilityViewAnalytics,
		CapabilityManageTeam,
	}
	out := make([]Capability, 0, len(all))
	for _, c := range all {
		if g.capabilities[c] {
			out = append(out, c)
		}
	}
	return out
}

// defaultCapabilities maps a role tier to its default capability set, used
// when a relationship carries no explicit flags.
func defaultCapabilities(tier Tier) map[Capability]bool {
	switch tier {
	case TierOwner, TierManager:
		return map[Capability]bool{
			CapabilityReadInfo:         true,
			CapabilityEditInfo:         true,
			CapabilityManageBookings:   true,
			CapabilityRespondInquiries: true,
			CapabilityViewAnalytics:    true,
			CapabilityManageTeam:       true,
		}
	case TierEmployee:
		return map[Capability]bool{
			CapabilityReadInfo:         true,
			CapabilityManageBookings:   true,
			CapabilityRespondInquiries: true,
		}
	case TierRepresentative:
		return map[Capability]bool{
			CapabilityReadInfo:         true,
			CapabilityRespondInquiries: true,
		}
	default:
		return map[Capability]bool{}
	}
}

// grantCapabilities resolves the effective capability set for a
// relationship: explicit flags override tier defaults when present.
// Reading basic vendor info comes with any active relationship, and team
// management stays tier-derived — explicit flags cannot grant it.
func grantCapabilities(tier Tier, flags *CapabilityFlags) map[Capability]bool {
	if flags == nil {
		return defaultCapabilities(tier)
	}
	caps := map[Capability]bool{
		CapabilityReadInfo:         true,
		CapabilityEditInfo:         flags.CanEditInfo,
		CapabilityManageBookings:   flags.CanManageBookings,
		CapabilityRespondInquiries: flags.CanRespondInquiries,
		CapabilityViewAnalytics:    flags.CanViewAnalytics,
	}
	if tier == TierOwner || tier == TierManager {
		caps[CapabilityManageTeam] = true
	}
	return caps
}

// ownerGrant builds the full-capability grant for a vendor's recorded
// administrator.
func ownerGrant(vendorID string, principalID int64) *AccessGrant {
	return &AccessGrant{
		VendorID:     vendorID,
		PrincipalID:  principalID,
		Tier:         TierOwner,
		Source:       GrantSourceAdmin,
		capabilities: defaultCapabilities(TierOwner),
	}
}

// GrantForRelationship builds the access grant an active staff
// relationship carries. Callers that already hold a relationship row can
// derive its grant without a resolver round trip.
func GrantForRelationship(rel *VendorStaff) *AccessGrant {
	return staffGrant(rel)
}

// staffGrant builds the grant carried by an active staff relationship
func staffGrant(rel *VendorStaff) *AccessGrant {
	return &AccessGrant{
		VendorID:     rel.VendorID,
		PrincipalID:  rel.PrincipalID,
		Tier:         rel.Tier,
		Source:       GrantSourceStaff,
		capabilities: grantCapabilities(rel.Tier, rel.Capabilities),
	}
}

// DerivedPermissions maps a relationship tier to the locally authoritative
// permission strings merged into a principal's permission set during sync.
func DerivedPermissions(tier Tier) []string {
	base := []string{
		"read:vendor_info",
		"read:vendor_inquiries",
	}
	switch tier {
	case TierOwner, TierManager:
		return append(base,
			"edit:vendor_info",
			"manage:vendor_bookings",
			"respond:vendor_inquiries",
			"view:vendor_analytics",
			"manage:vendor_team",
		)
	case TierEmployee:
		return append(base,
			"manage:vendor_bookings",
			"respond:vendor_inquiries",
		)
	case TierRepresentative:
		return append(base,
			"respond:vendor_inquiries",
		)
	default:
		return base
	}
}
