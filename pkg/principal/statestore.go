package principal

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shadi-events/gatehouse/pkg/idp"
	"github.com/shadi-events/gatehouse/pkg/observability"
)

// StateStore serves a principal's authorization state, refreshing it from
// the identity provider when stale. Concurrent refreshes for the same
// subject are collapsed into a single sync, and an in-flight sync runs to
// completion even if the triggering request is cancelled.
type StateStore struct {
	store     *Store
	cache     *Cache
	syncer    Syncer
	staleness time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics

	group singleflight.Group

	// now is swappable for tests
	now func() time.Time
}

// NewStateStore creates a state store. cache, logger, and metrics may be
// nil; a zero staleness uses DefaultStalenessWindow.
func NewStateStore(store *Store, cache *Cache, syncer Syncer, staleness time.Duration,
	logger *observability.Logger, metrics *observability.Metrics) *StateStore {
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	return &StateStore{
		store:     store,
		cache:     cache,
		syncer:    syncer,
		staleness: staleness,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetOrRefresh returns the principal's current authorization state,
// creating the principal on first sight and re-syncing from the provider
// when the stored state is stale. Provider outages degrade: a principal
// with previously synced state keeps it; one that has never synced gets
// an empty state, which denies everything.
func (s *StateStore) GetOrRefresh(ctx context.Context, subjectID, email string) (*Principal, error) {
	now := s.now().UTC()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, subjectID)
		if err != nil && s.logger != nil {
			s.logger.WithError(err).Warn("principal cache read failed")
		}
		if cached != nil && !cached.Stale(s.staleness, now) {
			if s.metrics != nil {
				s.metrics.CacheHitsTotal.WithLabelValues("principal").Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMissesTotal.WithLabelValues("principal").Inc()
		}
	}

	p, err := s.store.Ensure(ctx, subjectID, email)
	if err != nil {
		return nil, err
	}
	if !p.Stale(s.staleness, now) {
		s.cacheSet(ctx, p)
		return p, nil
	}

	return s.refresh(ctx, p)
}

// Refresh forces a provider re-sync regardless of staleness
func (s *StateStore) Refresh(ctx context.Context, subjectID string) (*Principal, error) {
	p, err := s.store.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, p)
}

// refresh runs the sync under single-flight so concurrent stale requests
// for one subject trigger exactly one provider round trip. The sync runs
// on a context detached from the request so cancellation cannot abandon
// a half-finished provider fetch; its result still commits.
func (s *StateStore) refresh(ctx context.Context, p *Principal) (*Principal, error) {
	result, err, _ := s.group.Do(p.SubjectID, func() (interface{}, error) {
		syncCtx := context.WithoutCancel(ctx)

		if err := s.syncer.Sync(syncCtx, p); err != nil {
			if errors.Is(err, idp.ErrProviderUnavailable) || errors.Is(err, idp.ErrSyncFailed) {
				return s.degrade(syncCtx, p, err), nil
			}
			return nil, err
		}

		s.cacheSet(syncCtx, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Principal), nil
}

// degrade handles a provider outage during sync. Previously synced state
// is served as-is (last known good); a principal that has never synced is
// served with empty roles and permissions so every check denies.
func (s *StateStore) degrade(ctx context.Context, p *Principal, cause error) *Principal {
	if p.LastSynced != nil {
		if s.logger != nil {
			s.logger.WithError(cause).WithFields(map[string]interface{}{
				"subject_id":  p.SubjectID,
				"last_synced": p.LastSynced.Format(time.RFC3339),
			}).Warn("provider sync failed; serving last known authorization state")
		}
		return p
	}

	if s.logger != nil {
		s.logger.WithError(cause).WithField("subject_id", p.SubjectID).
			Warn("provider sync failed with no prior state; serving empty authorization state")
	}
	p.Roles = []string{}
	p.Permissions = []string{}
	return p
}

func (s *StateStore) cacheSet(ctx context.Context, p *Principal) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("principal cache write failed")
	}
}

// Invalidate drops the cached state for a subject, forcing the next read
// through to the database.
func (s *StateStore) Invalidate(ctx context.Context, subjectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, subjectID); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("principal cache invalidation failed")
	}
}
