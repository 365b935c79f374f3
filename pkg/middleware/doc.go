// Package middleware provides HTTP middleware: bearer-token
// authentication, permission and vendor-capability guards, request IDs,
// and request logging/metrics.
package middleware
