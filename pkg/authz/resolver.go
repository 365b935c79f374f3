// Package authz contains the pure permission and role decision functions.
//
// Every function is side-effect free and I/O free: decisions are exact
// string membership tests over a principal's synced role and permission
// sets. Permission strings have the shape "action:resource-class"
// (e.g. "update:own_vendor") with exact-match equality — no wildcards, no
// hierarchy. An unauthenticated caller (nil Descriptor) is denied by every
// check; an empty permission list likewise denies everything.
package authz

// Descriptor is the authorization view of a principal: its role names and
// permission strings, both with set semantics. A nil Descriptor represents
// an unauthenticated caller.
type Descriptor struct {
	Roles       []string
	Permissions []string
}

// HasPermission reports whether the principal holds the exact permission
func HasPermission(d *Descriptor, permission string) bool {
	if d == nil {
		return false
	}
	return contains(d.Permissions, permission)
}

// HasRole reports whether the principal holds the exact role
func HasRole(d *Descriptor, role string) bool {
	if d == nil {
		return false
	}
	return contains(d.Roles, role)
}

// HasAnyPermission reports whether the principal holds at least one of the
// given permissions. False when the list is empty.
func HasAnyPermission(d *Descriptor, permissions ...string) bool {
	if d == nil {
		return false
	}
	for _, p := range permissions {
		if contains(d.Permissions, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every one of the
// given permissions. Vacuously true for an empty list on an authenticated
// principal; always false for an unauthenticated one.
func HasAllPermissions(d *Descriptor, permissions ...string) bool {
	if d == nil {
		return false
	}
	for _, p := range permissions {
		if !contains(d.Permissions, p) {
			return false
		}
	}
	return true
}

// HasAnyRole reports whether the principal holds at least one of the given
// roles. False when the list is empty.
func HasAnyRole(d *Descriptor, roles ...string) bool {
	if d == nil {
		return false
	}
	for _, r := range roles {
		if contains(d.Roles, r) {
			return true
		}
	}
	return false
}

func contains(set []string, item string) bool {
	for _, s := range set {
		if s == item {
			return true
		}
	}
	return false
}
