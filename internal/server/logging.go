package server

import (
	"net/http"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogger puts a request-scoped logger into the request context
// and logs every completed request.
func withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.FromContext(r.Context()).WithName("server").WithValues(
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(log.IntoContext(r.Context(), logger)))

		logger.V(1).Info("Request completed", "status", rec.status, "duration", time.Since(start))
	})
}
