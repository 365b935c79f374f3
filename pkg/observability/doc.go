// Package observability provides structured logging, Prometheus metrics,
// and health check probes for the Gatehouse service.
//
// The Logger wraps log/slog with a JSON handler and context propagation.
// Metrics cover the request path (HTTP, token validation, authorization
// decisions) and the background path (identity provider calls, permission
// syncs, cache effectiveness). The HealthChecker exposes liveness and
// readiness probes on a separate listener so Kubernetes probes never
// contend with API traffic.
package observability
