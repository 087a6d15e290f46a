// Package server serves the exporter endpoints: the scrape endpoint that
// collects and renders pod usage for the requested namespaces, and a
// liveness endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mehdiazizian/osmetrics-exporter/internal/exposition"
	"github.com/mehdiazizian/osmetrics-exporter/internal/metrics"
)

// DefaultAddr is the exporter listen address.
const DefaultAddr = ":3000"

const shutdownTimeout = 5 * time.Second

// MetricsCollector produces the metrics for a set of namespaces.
type MetricsCollector interface {
	Collect(ctx context.Context, namespaces []string) ([]metrics.Metric, error)
}

// Server is the exporter HTTP server. It implements manager.Runnable.
type Server struct {
	Addr      string
	Collector MetricsCollector
}

// New creates a server listening on addr
func New(addr string, collector MetricsCollector) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{Addr: addr, Collector: collector}
}

// Handler returns the exporter routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withRequestLogger(mux)
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("server")

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting exporter server", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("exporter server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Stopping exporter server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// NeedLeaderElection reports that every replica serves scrapes
func (s *Server) NeedLeaderElection() bool {
	return false
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	namespaces, ok := r.URL.Query()["namespace"]
	if !ok || len(namespaces) == 0 {
		writeError(w, http.StatusBadRequest, "querystring should have required property 'namespace'")
		return
	}
	for _, namespace := range namespaces {
		if namespace == "" {
			writeError(w, http.StatusBadRequest, "querystring.namespace should NOT be shorter than 1 characters")
			return
		}
	}

	logger := log.FromContext(ctx).WithValues("namespaces", namespaces)
	ctx = log.IntoContext(ctx, logger)

	result, err := s.Collector.Collect(ctx, namespaces)
	if err != nil {
		logger.Error(err, "Failed to collect metrics")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(exposition.Serialize(result))); err != nil {
		logger.Error(err, "Failed to write metrics response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
