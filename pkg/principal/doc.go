// Package principal owns locally persisted identities and their synced
// authorization state.
//
// The provider is the source of truth for roles and role-derived
// permissions, consulted lazily: state older than the staleness window is
// re-synced on the next request. Vendor permissions derived from active
// staff relationships are locally authoritative and merged into the
// permission set during sync. Provider outages degrade to last-known-good
// state, or to an empty state for principals that have never synced.
package principal
