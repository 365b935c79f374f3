// Package api exposes the authorization engine over HTTP: principal
// introspection, permission refresh, vendor access resolution, inquiry
// responses, staff management, and administrative permission overrides.
package api
