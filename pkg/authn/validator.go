package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

// VerifiedClaims is the ephemeral principal descriptor produced from a
// validated bearer token. It exists only for the duration of request
// handling and is never persisted.
type VerifiedClaims struct {
	Subject     string
	Email       string
	Roles       []string
	Permissions []string
	Issuer      string
	Audience    []string
	ExpiresAt   time.Time
}

// ValidatorConfig configures token verification
type ValidatorConfig struct {
	// IssuerDomain is the provider tenant domain, e.g. "shadi.us.auth0.com".
	IssuerDomain string

	// Audience is the expected aud claim.
	Audience string

	// ClaimsNamespace prefixes the custom role/permission claims,
	// e.g. "https://shadi.com/". The validator reads roles from
	// "<namespace>roles" and permissions from "<namespace>permissions".
	ClaimsNamespace string
}

// Issuer returns the expected iss claim
func (c ValidatorConfig) Issuer() string {
	return "https://" + c.IssuerDomain + "/"
}

// Validator verifies inbound bearer tokens and extracts verified claims
type Validator struct {
	config  ValidatorConfig
	keys    *KeyCache
	metrics *observability.Metrics
}

// NewValidator creates a token validator. metrics may be nil.
func NewValidator(config ValidatorConfig, keys *KeyCache, metrics *observability.Metrics) *Validator {
	return &Validator{
		config:  config,
		keys:    keys,
		metrics: metrics,
	}
}

// validMethods lists the asymmetric algorithms accepted on inbound tokens.
// Symmetric algorithms are rejected outright so a forged token cannot
// downgrade to HS256 with the public key as secret.
var validMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Validate verifies the bearer token and returns its verified claims.
// Failures are one of the sentinel errors in errors.go. Expiry is checked
// against the current time with zero leeway.
func (v *Validator) Validate(ctx context.Context, bearerToken string) (*VerifiedClaims, error) {
	claims, err := v.validate(ctx, bearerToken)
	if v.metrics != nil {
		result := "ok"
		if err != nil {
			result = errorLabel(err)
		}
		v.metrics.RecordTokenValidation(result)
	}
	return claims, err
}

func (v *Validator) validate(ctx context.Context, bearerToken string) (*VerifiedClaims, error) {
	if strings.Count(bearerToken, ".") != 2 {
		return nil, ErrMalformedToken
	}

	// Parse without verification first to read the key ID from the header.
	parser := jwt.NewParser(jwt.WithValidMethods(validMethods))
	unverified, _, err := parser.ParseUnverified(bearerToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: token header missing kid", ErrUnknownSigningKey)
	}

	publicKey, err := v.keys.SigningKey(ctx, v.config.IssuerDomain, kid)
	if err != nil {
		return nil, err
	}

	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(bearerToken, mapClaims,
		func(t *jwt.Token) (interface{}, error) { return publicKey, nil },
		jwt.WithValidMethods(validMethods),
		jwt.WithIssuer(v.config.Issuer()),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	return v.extractClaims(mapClaims)
}

// extractClaims builds VerifiedClaims from the validated claim map
func (v *Validator) extractClaims(claims jwt.MapClaims) (*VerifiedClaims, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: token missing subject", ErrMalformedToken)
	}

	verified := &VerifiedClaims{
		Subject:     subject,
		Roles:       stringList(claims[v.config.ClaimsNamespace+"roles"]),
		Permissions: stringList(claims[v.config.ClaimsNamespace+"permissions"]),
	}

	if email, ok := claims["email"].(string); ok {
		verified.Email = email
	}
	if iss, err := claims.GetIssuer(); err == nil {
		verified.Issuer = iss
	}
	if aud, err := claims.GetAudience(); err == nil {
		verified.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		verified.ExpiresAt = exp.Time
	}

	return verified, nil
}

// mapJWTError translates jwt/v5 validation errors into the package's
// sentinel taxonomy.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

// errorLabel maps an authentication error to a metrics label
func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrAudienceMismatch):
		return "audience_mismatch"
	case errors.Is(err, ErrUnknownSigningKey):
		return "unknown_key"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "error"
	}
}

// stringList converts a JSON claim value into a []string, tolerating both
// []interface{} and []string shapes.
func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
