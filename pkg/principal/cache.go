package principal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL bounds how long a cached principal may serve reads
// before the database is consulted again.
const DefaultCacheTTL = 5 * time.Minute

// Cache is a Redis read-through cache in front of the principal store.
// Cache failures are reported but never block authorization; callers fall
// back to the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a principal cache. A zero ttl uses DefaultCacheTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(subjectID string) string {
	return fmt.Sprintf("principal:%s", subjectID)
}

// Get retrieves a cached principal. A nil result with a nil error is a
// cache miss.
func (c *Cache) Get(ctx context.Context, subjectID string) (*Principal, error) {
	key := cacheKey(subjectID)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p Principal
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal principal: %w", err)
	}
	return &p, nil
}

// Set stores a principal in cache
func (c *Cache) Set(ctx context.Context, p *Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}
	return c.client.Set(ctx, cacheKey(p.SubjectID), data, c.ttl).Err()
}

// Invalidate removes a principal from cache
func (c *Cache) Invalidate(ctx context.Context, subjectID string) error {
	return c.client.Del(ctx, cacheKey(subjectID)).Err()
}
