package principal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shadi-events/gatehouse/pkg/audit"
	"github.com/shadi-events/gatehouse/pkg/idp"
	"github.com/shadi-events/gatehouse/pkg/observability"
	"github.com/shadi-events/gatehouse/pkg/scope"
)

// RoleFetcher fetches a subject's role assignments from the identity
// provider. *idp.Client satisfies this.
type RoleFetcher interface {
	FetchRolesAndPermissions(ctx context.Context, subjectID string) (idp.RoleAssignments, error)
}

// RelationshipSource lists a principal's active vendor-staff
// relationships. *scope.Store satisfies this.
type RelationshipSource interface {
	ActiveForPrincipal(ctx context.Context, principalID int64) ([]*scope.VendorStaff, error)
}

// Syncer refreshes a principal's authorization state
type Syncer interface {
	Sync(ctx context.Context, p *Principal) error
}

// Orchestrator synchronizes a principal's authorization state: provider
// role assignments unioned with permissions derived locally from active
// vendor-staff relationships. Local relationships are authoritative for
// vendor permissions, so a provider outage never strips them — a failed
// provider fetch aborts the sync without overwriting stored state.
type Orchestrator struct {
	provider      RoleFetcher
	store         *Store
	relationships RelationshipSource
	cache         *Cache
	logger        *observability.Logger
	metrics       *observability.Metrics
	auditLog      *audit.Logger
}

// NewOrchestrator creates a sync orchestrator. logger, metrics, and
// auditLog may be nil.
func NewOrchestrator(provider RoleFetcher, store *Store, relationships RelationshipSource,
	logger *observability.Logger, metrics *observability.Metrics, auditLog *audit.Logger) *Orchestrator {
	return &Orchestrator{
		provider:      provider,
		store:         store,
		relationships: relationships,
		logger:        logger,
		metrics:       metrics,
		auditLog:      auditLog,
	}
}

// WithCache attaches the principal cache so administrative overrides drop
// cached state the moment they commit.
func (o *Orchestrator) WithCache(cache *Cache) *Orchestrator {
	o.cache = cache
	return o
}

// Sync fetches the subject's provider role assignments, merges in locally
// derived vendor permissions, and persists the result. On provider failure
// the stored state is left untouched and the error is returned so callers
// can fall back to last-known-good data.
func (o *Orchestrator) Sync(ctx context.Context, p *Principal) error {
	start := time.Now()

	assignments, err := o.provider.FetchRolesAndPermissions(ctx, p.SubjectID)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordSync("provider_error", time.Since(start))
		}
		if o.logger != nil {
			o.logger.WithError(err).WithField("subject_id", p.SubjectID).Warn("permission sync failed")
		}
		o.auditLog.PermissionSync(p.SubjectID, 0, 0, true)
		return fmt.Errorf("fetching provider assignments: %w", err)
	}

	permissions := assignments.Permissions
	if o.relationships != nil {
		local, err := o.deriveLocalPermissions(ctx, p.ID)
		if err != nil {
			if o.metrics != nil {
				o.metrics.RecordSync("local_error", time.Since(start))
			}
			return err
		}
		permissions = append(permissions, local...)
	}

	roles := dedupeSorted(assignments.Roles)
	permissions = dedupeSorted(permissions)

	syncedAt := time.Now().UTC()
	if err := o.store.UpdateSyncedState(ctx, p.ID, roles, permissions, syncedAt); err != nil {
		if o.metrics != nil {
			o.metrics.RecordSync("store_error", time.Since(start))
		}
		return err
	}

	p.Roles = roles
	p.Permissions = permissions
	p.LastSynced = &syncedAt

	if o.metrics != nil {
		o.metrics.RecordSync("success", time.Since(start))
	}
	o.auditLog.PermissionSync(p.SubjectID, len(roles), len(permissions), false)
	return nil
}

// deriveLocalPermissions expands every active vendor-staff relationship
// into its tier's permission strings.
func (o *Orchestrator) deriveLocalPermissions(ctx context.Context, principalID int64) ([]string, error) {
	rels, err := o.relationships.ActiveForPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("listing staff relationships: %w", err)
	}

	var derived []string
	for _, rel := range rels {
		derived = append(derived, scope.DerivedPermissions(rel.Tier)...)
	}
	return derived, nil
}

// Override replaces a principal's permission set by administrative action
// and records who did it. The sync timestamp is untouched so the next
// scheduled re-sync still runs. Cached state for the subject is dropped so
// a revocation takes effect on the next request, not after the cache TTL.
func (o *Orchestrator) Override(ctx context.Context, actor string, p *Principal, permissions []string) error {
	permissions = dedupeSorted(permissions)
	if err := o.store.OverridePermissions(ctx, p.ID, permissions); err != nil {
		return err
	}
	p.Permissions = permissions

	if o.cache != nil {
		if err := o.cache.Invalidate(ctx, p.SubjectID); err != nil && o.logger != nil {
			o.logger.WithError(err).WithField("subject_id", p.SubjectID).
				Warn("principal cache invalidation failed after override")
		}
	}

	o.auditLog.AdminOverride(actor, p.SubjectID, permissions)
	return nil
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
