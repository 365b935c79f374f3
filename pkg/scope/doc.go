// Package scope resolves vendor-scoped access: which relationship a
// principal holds on a vendor business, the capabilities that relationship
// grants, and the inquiry lifecycle those capabilities gate.
//
// Ownership of a vendor (its recorded primary administrator) always wins
// over staff relationships. Staff relationships carry a role tier with
// default capabilities, optionally overridden by explicit per-relationship
// flags. At most one active relationship exists per (principal, vendor)
// pair; revocation deactivates rows rather than deleting them.
package scope
