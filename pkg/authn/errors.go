package authn

import "errors"

// Authentication failures surfaced to the transport boundary as 401s.
// None of these are retried automatically.
var (
	// ErrMalformedToken indicates the bearer token is not a three-part
	// signed JWT.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature indicates the token signature did not verify
	// against the issuer's published key.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired indicates the token's exp claim is in the past.
	// Expiry is compared against the current time with zero leeway.
	ErrTokenExpired = errors.New("token expired")

	// ErrAudienceMismatch indicates the aud or iss claim does not match
	// the configured expectations.
	ErrAudienceMismatch = errors.New("token audience mismatch")

	// ErrUnknownSigningKey indicates the token's key ID was not present in
	// the issuer's key set, even after one forced refetch.
	ErrUnknownSigningKey = errors.New("unknown signing key")
)

// IsAuthError reports whether err is one of the authentication failures
// that should map to a 401 at the HTTP boundary.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrAudienceMismatch) ||
		errors.Is(err, ErrUnknownSigningKey)
}
