// Package idp is the outbound client for the hosted identity provider:
// management-token grants, role/permission fetches, and JWKS retrieval.
package idp
