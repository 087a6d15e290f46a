package metrics

import (
	"fmt"

	"github.com/mehdiazizian/osmetrics-exporter/internal/quantity"
)

// Spec names for the two ratios computed per resource.
const (
	SpecLimits   = "limits"
	SpecRequests = "requests"
)

// Rate is a usage ratio against a declared limit or request.
type Rate struct {
	Value float64

	// OverLimit is set when usage exceeds the declared amount
	OverLimit bool
}

// ComputeRate divides usage by the declared spec quantity, parsed
// according to resource.
func ComputeRate(usage float64, spec quantity.Quantity, resource quantity.Resource) (Rate, error) {
	var (
		declared float64
		err      error
	)
	switch resource {
	case quantity.CPU:
		declared, err = quantity.ParseCPU(spec)
	case quantity.Memory:
		declared, err = quantity.ParseMemory(spec)
	default:
		return Rate{}, fmt.Errorf("unknown resource %q", resource)
	}
	if err != nil {
		return Rate{}, err
	}

	ratio := usage / declared
	return Rate{Value: ratio, OverLimit: ratio > 1}, nil
}

// resourceKind describes the metric families emitted for one resource.
type resourceKind struct {
	resource    quantity.Resource
	gaugeSuffix string

	usageName    string
	usageHelp    string
	limitsName   string
	requestsName string
	rateHelp     string
}

// resourceKinds is ordered: CPU metrics precede memory metrics.
var resourceKinds = []resourceKind{
	{
		resource:     quantity.CPU,
		gaugeSuffix:  "cpu/usage_rate",
		usageName:    "osmetrics_pod_cpu_usage_millicores",
		usageHelp:    "Pod CPU Usage Rate",
		limitsName:   "osmetrics_pod_cpu_usage_limits_rate",
		requestsName: "osmetrics_pod_cpu_usage_requests_rate",
		rateHelp:     "Pod CPU Usage rate",
	},
	{
		resource:     quantity.Memory,
		gaugeSuffix:  "memory/usage",
		usageName:    "osmetrics_pod_memory_usage_bytes",
		usageHelp:    "Pod Memory Usage",
		limitsName:   "osmetrics_pod_memory_usage_limits_rate",
		requestsName: "osmetrics_pod_memory_usage_requests_rate",
		rateHelp:     "Pod Memory Usage",
	},
}

// GaugeID returns the metrics backend series name for a container resource,
// e.g. "app/1234-abcd/cpu/usage_rate".
func GaugeID(container, podUID string, resource quantity.Resource) string {
	for _, kind := range resourceKinds {
		if kind.resource == resource {
			return fmt.Sprintf("%s/%s/%s", container, podUID, kind.gaugeSuffix)
		}
	}
	return fmt.Sprintf("%s/%s/%s", container, podUID, resource)
}
