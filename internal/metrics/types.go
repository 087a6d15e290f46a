package metrics

// TypeGauge is the only exposition type the exporter emits.
const TypeGauge = "gauge"

// Label is one name/value pair of a metric line.
type Label struct {
	Name  string
	Value string
}

// Labels is an ordered label set; serialization keeps insertion order.
type Labels []Label

// Metric is one line of exposition output plus its optional headers.
// Empty Help, Type and Comment are treated as unset.
type Metric struct {
	Name      string
	Value     float64
	Timestamp *int64
	Type      string
	Help      string
	Comment   string
	Labels    Labels
}

// Timestamp returns a pointer suitable for Metric.Timestamp.
func Timestamp(millis int64) *int64 {
	return &millis
}
