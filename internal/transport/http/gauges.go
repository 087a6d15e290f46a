package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mehdiazizian/osmetrics-exporter/internal/instrumentation"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

// TenantHeader selects the metrics backend partition.
const TenantHeader = "Hawkular-Tenant"

// GaugeClient reads raw gauge data points from the metrics backend.
type GaugeClient struct {
	upstream
}

// NewGaugeClient creates a client for the metrics backend at baseURL.
func NewGaugeClient(baseURL, token string, httpClient *http.Client) *GaugeClient {
	return &GaugeClient{upstream: newUpstream(baseURL, token, httpClient)}
}

// FetchLatestSample returns the newest data point of metricName in tenant.
// A 204 or an empty listing yields a nil sample and no error.
func (c *GaugeClient) FetchLatestSample(ctx context.Context, metricName, tenant string) (*dto.MetricSample, error) {
	logger := log.FromContext(ctx).WithName("gauge-client")

	endpoint := fmt.Sprintf("%s/metrics/gauges/%s/raw?limit=1", c.baseURL, url.PathEscape(metricName))

	header := http.Header{}
	header.Set(TenantHeader, tenant)

	resp, body, err := c.get(ctx, endpoint, header)
	if err != nil {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to fetch gauge %s: %w", metricName, err)
	}
	resolved := resolvedURL(resp, endpoint)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeError).Inc()
		return nil, &transport.UpstreamStatusError{StatusCode: resp.StatusCode, URL: resolved}
	}

	if resp.StatusCode == http.StatusNoContent {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeNoData).Inc()
		return nil, nil
	}

	var points []dto.GaugeDataPoint
	if err := json.Unmarshal(body, &points); err != nil {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeError).Inc()
		return nil, &transport.MalformedPayloadError{URL: resolved, Body: string(body), Err: err}
	}

	sample := dto.ToMetricSample(points)
	if sample == nil {
		instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeNoData).Inc()
		return nil, nil
	}

	instrumentation.UpstreamRequests.WithLabelValues(instrumentation.APIMetrics, instrumentation.OutcomeSuccess).Inc()
	logger.V(2).Info("Fetched sample", "metric", metricName, "tenant", tenant, "timestamp", sample.TimestampMillis)

	return sample, nil
}

// Name identifies the metrics API in readiness output
func (c *GaugeClient) Name() string {
	return "metrics-api"
}

// Ping checks that the metrics backend reports its status
func (c *GaugeClient) Ping(ctx context.Context) error {
	return c.ping(ctx, "/metrics/status")
}
