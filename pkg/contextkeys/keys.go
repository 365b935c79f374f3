// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *principal.Principal
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: All protected endpoints, permission guards
	PrincipalKey Key = "principal"

	// ClaimsKey contains *authn.VerifiedClaims for the current request
	// Set by: middleware.Authenticator after token validation
	// Required by: Handlers that inspect raw token claims
	ClaimsKey Key = "verified_claims"

	// VendorGrantKey contains *scope.AccessGrant for the vendor named in
	// the route
	// Set by: middleware.RequireVendorCapability
	// Required by: Vendor-scoped handlers needing further capability checks
	VendorGrantKey Key = "vendor_grant"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, p interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// WithClaims adds verified token claims to the context
func WithClaims(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithVendorGrant adds the resolved vendor access grant to the context
func WithVendorGrant(ctx context.Context, grant interface{}) context.Context {
	return context.WithValue(ctx, VendorGrantKey, grant)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
