// Package gatehouse is the facade over the authorization engine. It wires
// token validation, principal state, global permission checks, and
// vendor-scoped capability checks into the four operations callers use:
// Authenticate, Authorize, AuthorizeVendorAction, and RefreshPermissions.
package gatehouse
