package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shadi-events/gatehouse/pkg/authn"
	"github.com/shadi-events/gatehouse/pkg/contextkeys"
	"github.com/shadi-events/gatehouse/pkg/gatehouse"
	"github.com/shadi-events/gatehouse/pkg/httputil"
	"github.com/shadi-events/gatehouse/pkg/principal"
	"github.com/shadi-events/gatehouse/pkg/scope"
)

// AuthMiddleware authenticates requests with a bearer token and attaches
// the resolved principal to the request context.
type AuthMiddleware struct {
	engine   *gatehouse.Service
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(engine *gatehouse.Service, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		engine:   engine,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				// Continue without auth
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		p, claims, err := m.engine.Authenticate(r.Context(), parts[1])
		if err != nil {
			if authn.IsAuthError(err) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
			} else {
				httputil.WriteInternalError(w, err)
			}
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), p)
		ctx = contextkeys.WithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from the request
// context. Returns nil for unauthenticated requests.
func GetPrincipal(r *http.Request) *principal.Principal {
	value := r.Context().Value(contextkeys.PrincipalKey)
	if value == nil {
		return nil
	}
	p, ok := value.(*principal.Principal)
	if !ok {
		return nil
	}
	return p
}

// GetClaims extracts the verified token claims from the request context
func GetClaims(r *http.Request) *authn.VerifiedClaims {
	value := r.Context().Value(contextkeys.ClaimsKey)
	if value == nil {
		return nil
	}
	claims, ok := value.(*authn.VerifiedClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequirePermission creates middleware that requires one permission
func RequirePermission(engine *gatehouse.Service, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !engine.Authorize(r.Context(), p, permission) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission creates middleware that requires at least one of
// the permissions.
func RequireAnyPermission(engine *gatehouse.Service, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !engine.AuthorizeAny(r.Context(), p, permissions...) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates middleware that requires a role
func RequireRole(engine *gatehouse.Service, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !engine.AuthorizeRole(r.Context(), p, role) {
				httputil.WriteForbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVendorCapability creates middleware that resolves the
// authenticated principal's access to the vendor named by the id route
// variable and requires the capability. The resolved grant is attached to
// the request context for handlers that need further checks.
func RequireVendorCapability(engine *gatehouse.Service, capability scope.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			vendorID := mux.Vars(r)["id"]
			if vendorID == "" {
				httputil.WriteBadRequest(w, "missing vendor id")
				return
			}

			grant, err := engine.AuthorizeVendorAction(r.Context(), p, vendorID, capability)
			if err != nil {
				switch {
				case gatehouseAccessError(err):
					httputil.WriteForbidden(w, "no access to this vendor")
				default:
					httputil.WriteInternalError(w, err)
				}
				return
			}

			ctx := contextkeys.WithVendorGrant(r.Context(), grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetVendorGrant extracts the resolved vendor access grant from the
// request context.
func GetVendorGrant(r *http.Request) *scope.AccessGrant {
	value := r.Context().Value(contextkeys.VendorGrantKey)
	if value == nil {
		return nil
	}
	grant, ok := value.(*scope.AccessGrant)
	if !ok {
		return nil
	}
	return grant
}

func gatehouseAccessError(err error) bool {
	return errors.Is(err, gatehouse.ErrNoVendorAccess) || errors.Is(err, gatehouse.ErrCapabilityDenied)
}
