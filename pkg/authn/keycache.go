package authn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

// KeyFetcher fetches a JWKS from an issuer. Implemented by the identity
// provider client.
type KeyFetcher interface {
	FetchSigningKeys(ctx context.Context, issuerDomain string) (*JWKSet, error)
}

// DefaultSigningKeyTTL is how long a fetched key set is trusted before the
// next request triggers a refetch.
const DefaultSigningKeyTTL = time.Hour

// maxCachedIssuers bounds the key cache; in practice there is one issuer.
const maxCachedIssuers = 8

// KeyCache caches signing key sets per issuer domain with a TTL. Reads are
// lock-free once populated; refetches are serialized under a single writer
// lock. Staleness is resolved by TTL expiry only, not by provider
// invalidation signals.
type KeyCache struct {
	fetcher KeyFetcher
	cache   *expirable.LRU[string, *JWKSet]
	metrics *observability.Metrics

	// refreshMu serializes refetches so a burst of requests carrying an
	// unknown kid produces one provider call, not one per request.
	refreshMu sync.Mutex
}

// NewKeyCache creates a key cache backed by the given fetcher. metrics may
// be nil.
func NewKeyCache(fetcher KeyFetcher, ttl time.Duration, metrics *observability.Metrics) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultSigningKeyTTL
	}
	return &KeyCache{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, *JWKSet](maxCachedIssuers, nil, ttl),
		metrics: metrics,
	}
}

// SigningKey resolves the public key for (issuerDomain, kid). On a cache
// miss, or when the kid is not present among the cached keys, it performs
// exactly one refetch before failing with ErrUnknownSigningKey.
func (c *KeyCache) SigningKey(ctx context.Context, issuerDomain, kid string) (interface{}, error) {
	if set, ok := c.cache.Get(issuerDomain); ok {
		if key := set.Find(kid); key != nil {
			return key.PublicKey()
		}
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if set, ok := c.cache.Get(issuerDomain); ok {
		if key := set.Find(kid); key != nil {
			return key.PublicKey()
		}
	}

	set, err := c.fetcher.FetchSigningKeys(ctx, issuerDomain)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordSigningKeyFetch("error")
		}
		return nil, fmt.Errorf("fetching signing keys for %s: %w", issuerDomain, err)
	}
	if c.metrics != nil {
		c.metrics.RecordSigningKeyFetch("ok")
	}
	c.cache.Add(issuerDomain, set)

	if key := set.Find(kid); key != nil {
		return key.PublicKey()
	}
	return nil, fmt.Errorf("kid %q not in key set for %s: %w", kid, issuerDomain, ErrUnknownSigningKey)
}
