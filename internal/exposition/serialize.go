// Package exposition renders collected metrics in the Prometheus text
// exposition format.
package exposition

import (
	"math"
	"strconv"
	"strings"

	"github.com/mehdiazizian/osmetrics-exporter/internal/metrics"
)

// Serialize renders metrics in input order. HELP, TYPE and comment lines
// are written only before the first metric of each name. Lines are joined
// with "\n" and the output has no trailing newline.
func Serialize(ms []metrics.Metric) string {
	var b strings.Builder
	emitted := make(map[string]struct{}, len(ms))

	for i, m := range ms {
		if i > 0 {
			b.WriteByte('\n')
		}

		if _, seen := emitted[m.Name]; !seen {
			writeHeaders(&b, m)
			emitted[m.Name] = struct{}{}
		}

		b.WriteString(m.Name)
		if len(m.Labels) > 0 {
			b.WriteByte('{')
			b.WriteString(SerializeLabels(m.Labels))
			b.WriteByte('}')
		}
		b.WriteByte(' ')
		b.WriteString(FormatValue(m.Value))
		if m.Timestamp != nil {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatInt(*m.Timestamp, 10))
		}
	}

	return b.String()
}

func writeHeaders(b *strings.Builder, m metrics.Metric) {
	if m.Help != "" {
		b.WriteString("# HELP " + m.Name + " " + m.Help + "\n")
	}
	if m.Type != "" {
		b.WriteString("# TYPE " + m.Name + " " + m.Type + "\n")
	}
	if m.Comment != "" {
		for _, line := range strings.Split(m.Comment, "\n") {
			b.WriteString("# " + strings.TrimSpace(line) + "\n")
		}
	}
}

// SerializeLabels renders labels as `k1="v1", k2="v2"` in slice order.
// Values are written verbatim.
func SerializeLabels(labels metrics.Labels) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Name+`="`+l.Value+`"`)
	}
	return strings.Join(parts, ", ")
}

// FormatValue writes a sample value in its shortest decimal form.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}

	if abs := math.Abs(v); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return trimExponent(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// trimExponent drops leading zeros from the exponent: "1e-07" becomes "1e-7".
func trimExponent(s string) string {
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok || len(exp) < 2 {
		return s
	}
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + exp[:1] + digits
}
