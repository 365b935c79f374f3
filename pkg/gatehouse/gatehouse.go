package gatehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadi-events/gatehouse/pkg/audit"
	"github.com/shadi-events/gatehouse/pkg/authn"
	"github.com/shadi-events/gatehouse/pkg/authz"
	"github.com/shadi-events/gatehouse/pkg/observability"
	"github.com/shadi-events/gatehouse/pkg/principal"
	"github.com/shadi-events/gatehouse/pkg/scope"
)

// ErrNoVendorAccess indicates the principal holds neither ownership nor an
// active staff relationship on the vendor.
var ErrNoVendorAccess = errors.New("no access to vendor")

// ErrCapabilityDenied indicates the principal's vendor access grant lacks
// the required capability.
var ErrCapabilityDenied = errors.New("capability denied")

// TokenValidator verifies bearer tokens. *authn.Validator satisfies this.
type TokenValidator interface {
	Validate(ctx context.Context, bearerToken string) (*authn.VerifiedClaims, error)
}

// StateSource serves principals with current authorization state.
// *principal.StateStore satisfies this.
type StateSource interface {
	GetOrRefresh(ctx context.Context, subjectID, email string) (*principal.Principal, error)
	Refresh(ctx context.Context, subjectID string) (*principal.Principal, error)
}

// VendorAccessResolver answers vendor-scoped access questions.
// *scope.Resolver satisfies this.
type VendorAccessResolver interface {
	ResolveVendorAccess(ctx context.Context, principalID int64, vendorID string) (*scope.AccessGrant, error)
}

// Service is the authorization engine facade: token validation, principal
// state, global permission checks, and vendor-scoped capability checks
// behind one surface.
type Service struct {
	validator TokenValidator
	state     StateSource
	vendors   VendorAccessResolver
	logger    *observability.Logger
	metrics   *observability.Metrics
	auditLog  *audit.Logger
}

// NewService creates the engine facade. logger, metrics, and auditLog may
// be nil.
func NewService(validator TokenValidator, state StateSource, vendors VendorAccessResolver,
	logger *observability.Logger, metrics *observability.Metrics, auditLog *audit.Logger) *Service {
	return &Service{
		validator: validator,
		state:     state,
		vendors:   vendors,
		logger:    logger,
		metrics:   metrics,
		auditLog:  auditLog,
	}
}

// Authenticate validates a bearer token and returns the principal with its
// current authorization state, syncing from the provider if the stored
// state is stale. Token rejections surface the authn sentinel errors.
func (s *Service) Authenticate(ctx context.Context, bearerToken string) (*principal.Principal, *authn.VerifiedClaims, error) {
	claims, err := s.validator.Validate(ctx, bearerToken)
	if err != nil {
		s.auditLog.AuthFailure(err.Error())
		return nil, nil, err
	}

	p, err := s.state.GetOrRefresh(ctx, claims.Subject, claims.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("loading principal state: %w", err)
	}

	s.auditLog.AuthSuccess(claims.Subject)
	return p, claims, nil
}

// Authorize reports whether the principal holds the permission. A nil
// principal always denies.
func (s *Service) Authorize(ctx context.Context, p *principal.Principal, permission string) bool {
	allowed := authz.HasPermission(p.Authz(), permission)
	s.recordDecision(p, "permission", permission, allowed)
	return allowed
}

// AuthorizeAny reports whether the principal holds at least one of the
// permissions.
func (s *Service) AuthorizeAny(ctx context.Context, p *principal.Principal, permissions ...string) bool {
	allowed := authz.HasAnyPermission(p.Authz(), permissions...)
	s.recordDecision(p, "permission_any", fmt.Sprintf("%v", permissions), allowed)
	return allowed
}

// AuthorizeAll reports whether the principal holds every permission. An
// empty requirement list allows any authenticated principal.
func (s *Service) AuthorizeAll(ctx context.Context, p *principal.Principal, permissions ...string) bool {
	allowed := authz.HasAllPermissions(p.Authz(), permissions...)
	s.recordDecision(p, "permission_all", fmt.Sprintf("%v", permissions), allowed)
	return allowed
}

// AuthorizeRole reports whether the principal holds the role
func (s *Service) AuthorizeRole(ctx context.Context, p *principal.Principal, role string) bool {
	allowed := authz.HasRole(p.Authz(), role)
	s.recordDecision(p, "role", role, allowed)
	return allowed
}

// AuthorizeVendorAction resolves the principal's access to the vendor and
// requires the capability. On success the resolved grant is returned so
// callers can make further capability checks without re-resolving.
func (s *Service) AuthorizeVendorAction(ctx context.Context, p *principal.Principal, vendorID string, capability scope.Capability) (*scope.AccessGrant, error) {
	if p == nil {
		s.recordDecision(nil, "vendor_capability", string(capability), false)
		return nil, ErrNoVendorAccess
	}

	grant, err := s.vendors.ResolveVendorAccess(ctx, p.ID, vendorID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		s.recordDecision(p, "vendor_capability", string(capability), false)
		return nil, fmt.Errorf("%w: vendor %s", ErrNoVendorAccess, vendorID)
	}
	if !grant.Allows(capability) {
		s.recordDecision(p, "vendor_capability", string(capability), false)
		return nil, fmt.Errorf("%w: %s on vendor %s", ErrCapabilityDenied, capability, vendorID)
	}

	s.recordDecision(p, "vendor_capability", string(capability), true)
	return grant, nil
}

// EstablishSession loads or creates the principal for an identity that was
// verified interactively (the browser login flow), syncing provider state
// when stale. Bearer-token requests go through Authenticate instead.
func (s *Service) EstablishSession(ctx context.Context, subjectID, email string) (*principal.Principal, error) {
	p, err := s.state.GetOrRefresh(ctx, subjectID, email)
	if err != nil {
		return nil, fmt.Errorf("loading principal state: %w", err)
	}
	s.auditLog.AuthSuccess(subjectID)
	return p, nil
}

// RefreshPermissions forces a provider re-sync for the subject regardless
// of staleness, returning the refreshed state.
func (s *Service) RefreshPermissions(ctx context.Context, subjectID string) (*principal.Principal, error) {
	return s.state.Refresh(ctx, subjectID)
}

func (s *Service) recordDecision(p *principal.Principal, check, requirement string, allowed bool) {
	if s.metrics != nil {
		s.metrics.RecordAuthzDecision(check, allowed)
	}
	if !allowed {
		subject := ""
		if p != nil {
			subject = p.SubjectID
		}
		s.auditLog.AccessDenied(subject, check+":"+requirement)
	}
}
