package transport

import (
	"context"

	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

// PodLister abstracts the cluster API pod listing.
type PodLister interface {
	// ListPods returns every pod of a namespace, terminal ones included
	ListPods(ctx context.Context, namespace string) ([]dto.Pod, error)
}

// SampleFetcher abstracts the metrics backend.
type SampleFetcher interface {
	// FetchLatestSample returns the newest point of a gauge series in the
	// given tenant, or nil when the series holds no recent data
	FetchLatestSample(ctx context.Context, metricName, tenant string) (*dto.MetricSample, error)
}

// Pinger checks connectivity to an upstream API.
type Pinger interface {
	// Name identifies the upstream in logs and readiness output
	Name() string

	// Ping checks connectivity
	Ping(ctx context.Context) error
}
