// Package authn verifies inbound bearer tokens issued by the identity
// provider and produces verified principal descriptors.
//
// Validation checks the token's signature against the issuer's published
// JWKS, then its issuer, audience, and expiry claims. Signing keys are
// cached per issuer for an hour; a key ID that is not in the cached set
// triggers exactly one refetch before the token is rejected. Expiry is
// compared against the current time with zero clock-skew tolerance.
//
// Role and permission claims are read from provider-namespaced claim keys
// ("<namespace>roles", "<namespace>permissions") and carried on the
// VerifiedClaims value; they are not trusted as the authorization source of
// truth — the principal store syncs authoritative state from the provider's
// management API.
package authn
