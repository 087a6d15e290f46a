// Package instrumentation holds the exporter's own Prometheus collectors,
// registered in the controller-runtime metrics registry.
package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const selfSubsystem = "osmetrics_exporter"

// Upstream API labels.
const (
	APICluster = "cluster"
	APIMetrics = "metrics"
)

// Upstream request outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeNoData  = "no_data"
	OutcomeError   = "error"
)

var (
	// CollectionDuration measures full collection runs by result
	CollectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    selfSubsystem + "_collection_duration_seconds",
			Help:    "Duration of a full collection run over the requested namespaces",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"result"}, // "success", "error"
	)

	// UpstreamRequests counts outbound requests per upstream API and outcome
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: selfSubsystem + "_upstream_requests_total",
			Help: "Outbound requests to the cluster and metrics APIs by outcome",
		},
		[]string{"api", "outcome"},
	)

	// OverLimit counts usage ratios above 1
	OverLimit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: selfSubsystem + "_over_limit_total",
			Help: "Containers observed using more than their declared limit or request",
		},
		[]string{"resource", "spec"}, // spec: "limits", "requests"
	)

	// CollectedPods is the number of pods processed by the last successful run
	CollectedPods = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: selfSubsystem + "_collected_pods",
			Help: "Number of non-terminal pods processed by the last successful collection",
		},
	)
)

func init() {
	ctrlmetrics.Registry.MustRegister(
		CollectionDuration,
		UpstreamRequests,
		OverLimit,
		CollectedPods,
	)
}
