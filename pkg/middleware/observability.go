package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shadi-events/gatehouse/pkg/contextkeys"
	"github.com/shadi-events/gatehouse/pkg/observability"
)

// RequestID assigns each request a UUID, honoring an X-Request-ID header
// supplied by an upstream proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Observability logs each request and records HTTP metrics. logger and
// metrics may be nil.
func Observability(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)
			if metrics != nil {
				metrics.RecordHTTPRequest(r.Method, r.URL.Path, recorder.status, duration)
			}
			if logger != nil {
				logger.WithFields(map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      recorder.status,
					"duration_ms": duration.Milliseconds(),
					"request_id":  contextkeys.GetRequestID(r.Context()),
				}).Info("request completed")
			}
		})
	}
}
