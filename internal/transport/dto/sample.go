package dto

// GaugeDataPoint is one raw data point of a gauge series as returned by
// GET /metrics/gauges/{id}/raw on the metrics backend.
type GaugeDataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MetricSample is the latest point of a gauge series. A nil *MetricSample
// means the backend holds no recent data for the series.
type MetricSample struct {
	Value           float64
	TimestampMillis int64
}
