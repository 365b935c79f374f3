package principal

import (
	"time"

	"github.com/shadi-events/gatehouse/pkg/authz"
)

// DefaultStalenessWindow is how long synced authorization state remains
// fresh before the next request triggers a provider re-sync.
const DefaultStalenessWindow = time.Hour

// Principal is a locally persisted identity with its synced authorization
// state. SubjectID is the provider's stable subject identifier and is
// unique across principals.
type Principal struct {
	ID          int64      `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Email       string     `json:"email,omitempty"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Stale reports whether the principal's authorization state needs a
// re-sync. A principal that has never synced is always stale.
func (p *Principal) Stale(window time.Duration, now time.Time) bool {
	if p.LastSynced == nil {
		return true
	}
	return now.Sub(*p.LastSynced) >= window
}

// Authz returns the principal's authorization descriptor for permission
// checks. A nil principal yields a nil descriptor, which denies everything.
func (p *Principal) Authz() *authz.Descriptor {
	if p == nil {
		return nil
	}
	return &authz.Descriptor{
		Roles:       p.Roles,
		Permissions: p.Permissions,
	}
}
