package dto

import "github.com/mehdiazizian/osmetrics-exporter/internal/quantity"

// ToMetricSample converts a raw data point listing into the latest sample.
// The backend is queried with limit=1, so the first point is the newest one.
// An empty listing yields nil.
func ToMetricSample(points []GaugeDataPoint) *MetricSample {
	if len(points) == 0 {
		return nil
	}
	return &MetricSample{
		Value:           points[0].Value,
		TimestampMillis: points[0].Timestamp,
	}
}

// DeclaredLimit returns the container's limit for a resource, if declared.
func (c *Container) DeclaredLimit(resource quantity.Resource) (quantity.Quantity, bool) {
	return c.Resources.Limits.Get(resource)
}

// DeclaredRequest returns the container's request for a resource, if declared.
func (c *Container) DeclaredRequest(resource quantity.Resource) (quantity.Quantity, bool) {
	return c.Resources.Requests.Get(resource)
}

// ActivePods drops pods in a terminal phase, keeping the input order.
func ActivePods(pods []Pod) []Pod {
	active := make([]Pod, 0, len(pods))
	for _, pod := range pods {
		if pod.IsTerminal() {
			continue
		}
		active = append(active, pod)
	}
	return active
}
