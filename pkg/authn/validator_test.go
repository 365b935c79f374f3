package authn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain    = "shadi.us.auth0.com"
	testAudience  = "https://api.shadi.com"
	testNamespace = "https://shadi.com/"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwkFor(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// staticFetcher serves a fixed key set and counts fetches
type staticFetcher struct {
	set     *JWKSet
	err     error
	fetches int
}

func (f *staticFetcher) FetchSigningKeys(ctx context.Context, issuerDomain string) (*JWKSet, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

type tokenOpts struct {
	kid      string
	issuer   string
	audience string
	expires  time.Time
	roles    []string
	perms    []string
	method   jwt.SigningMethod
}

func signToken(t *testing.T, key *rsa.PrivateKey, opts tokenOpts) string {
	t.Helper()
	if opts.issuer == "" {
		opts.issuer = "https://" + testDomain + "/"
	}
	if opts.audience == "" {
		opts.audience = testAudience
	}
	if opts.expires.IsZero() {
		opts.expires = time.Now().Add(time.Hour)
	}
	if opts.method == nil {
		opts.method = jwt.SigningMethodRS256
	}

	claims := jwt.MapClaims{
		"iss":   opts.issuer,
		"aud":   opts.audience,
		"sub":   "auth0|123",
		"email": "vendor@example.com",
		"iat":   time.Now().Add(-time.Minute).Unix(),
		"exp":   opts.expires.Unix(),
	}
	if opts.roles != nil {
		claims[testNamespace+"roles"] = opts.roles
	}
	if opts.perms != nil {
		claims[testNamespace+"permissions"] = opts.perms
	}

	token := jwt.NewWithClaims(opts.method, claims)
	token.Header["kid"] = opts.kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newTestValidator(fetcher KeyFetcher) *Validator {
	return NewValidator(ValidatorConfig{
		IssuerDomain:    testDomain,
		Audience:        testAudience,
		ClaimsNamespace: testNamespace,
	}, NewKeyCache(fetcher, time.Hour, nil), nil)
}

func TestValidateExtractsNamespacedClaims(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, key, tokenOpts{
		kid:   "key-1",
		roles: []string{"vendor"},
		perms: []string{"read:vendor_info", "respond:vendor_inquiries"},
	})

	claims, err := validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.Subject)
	assert.Equal(t, "vendor@example.com", claims.Email)
	assert.Equal(t, []string{"vendor"}, claims.Roles)
	assert.Equal(t, []string{"read:vendor_info", "respond:vendor_inquiries"}, claims.Permissions)
	assert.Equal(t, "https://"+testDomain+"/", claims.Issuer)
}

func TestValidateMissingCustomClaims(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, key, tokenOpts{kid: "key-1"})

	claims, err := validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
	assert.Empty(t, claims.Permissions)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, key, tokenOpts{
		kid:     "key-1",
		expires: time.Now().Add(-time.Minute),
	})

	_, err := validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsAudienceMismatch(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, key, tokenOpts{
		kid:      "key-1",
		audience: "https://api.other.com",
	})

	_, err := validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, key, tokenOpts{
		kid:    "key-1",
		issuer: "https://evil.example.com/",
	})

	_, err := validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestValidateRejectsMalformedToken(t *testing.T) {
	validator := newTestValidator(&staticFetcher{set: &JWKSet{}})

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := validator.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestValidateRejectsWrongKeySignature(t *testing.T) {
	signingKey := generateKey(t)
	otherKey := generateKey(t)

	// The published key set carries a different key under the same kid
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &otherKey.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := signToken(t, signingKey, tokenOpts{kid: "key-1"})

	_, err := validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateUnknownKidRefetchesOnce(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	// Prime the cache
	_, err := validator.Validate(context.Background(), signToken(t, key, tokenOpts{kid: "key-1"}))
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.fetches)

	// A token with an unknown kid triggers exactly one refetch, then fails
	token := signToken(t, key, tokenOpts{kid: "rotated-key"})
	_, err = validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnknownSigningKey)
	assert.Equal(t, 2, fetcher.fetches)
}

func TestValidateKeyRotationPicksUpNewKey(t *testing.T) {
	oldKey := generateKey(t)
	newKey := generateKey(t)

	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &oldKey.PublicKey)}}}
	validator := newTestValidator(fetcher)

	_, err := validator.Validate(context.Background(), signToken(t, oldKey, tokenOpts{kid: "key-1"}))
	require.NoError(t, err)

	// The provider rotates; the refetch on kid miss finds the new key
	fetcher.set = &JWKSet{Keys: []JWK{
		jwkFor("key-1", &oldKey.PublicKey),
		jwkFor("key-2", &newKey.PublicKey),
	}}

	claims, err := validator.Validate(context.Background(), signToken(t, newKey, tokenOpts{kid: "key-2"}))
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.Subject)
	assert.Equal(t, 2, fetcher.fetches)
}

func TestValidateRejectsSymmetricAlgorithm(t *testing.T) {
	key := generateKey(t)
	fetcher := &staticFetcher{set: &JWKSet{Keys: []JWK{jwkFor("key-1", &key.PublicKey)}}}
	validator := newTestValidator(fetcher)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://" + testDomain + "/",
		"aud": testAudience,
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	assert.Error(t, err)
}

func TestValidateMissingKidHeader(t *testing.T) {
	key := generateKey(t)
	validator := newTestValidator(&staticFetcher{set: &JWKSet{}})

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": "https://" + testDomain + "/",
		"aud": testAudience,
		"sub": "auth0|123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrUnknownSigningKey)
}
