package quantity

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Resource names the kind of quantity being parsed.
type Resource string

const (
	CPU    Resource = "cpu"
	Memory Resource = "memory"
)

// FormatError is returned when a quantity string matches none of the
// supported notations.
type FormatError struct {
	Resource Resource
	Value    string
}

func (e *FormatError) Error() string {
	switch e.Resource {
	case CPU:
		return fmt.Sprintf("CPU %s has unsupported format", e.Value)
	case Memory:
		return fmt.Sprintf("memory %s has unsupported format", e.Value)
	}
	return fmt.Sprintf("%s quantity %s has unsupported format", e.Resource, e.Value)
}

var (
	millicoresRe = regexp.MustCompile(`^([0-9]+)m$`)
	coresRe      = regexp.MustCompile(`^([0-9]+)$`)
	exponentRe   = regexp.MustCompile(`^([0-9]+)(e([0-9]+))?$`)

	// Ordered by rank: K=1 ... E=6.
	memorySuffixRes = []*regexp.Regexp{
		regexp.MustCompile(`^([0-9]+)K(i?)$`),
		regexp.MustCompile(`^([0-9]+)M(i?)$`),
		regexp.MustCompile(`^([0-9]+)G(i?)$`),
		regexp.MustCompile(`^([0-9]+)T(i?)$`),
		regexp.MustCompile(`^([0-9]+)P(i?)$`),
		regexp.MustCompile(`^([0-9]+)E(i?)$`),
	}
)

// ParseCPU converts a CPU quantity to millicores. Native numbers are
// returned unchanged.
func ParseCPU(q Quantity) (float64, error) {
	if q.numeric {
		return q.number, nil
	}
	return ParseCPUString(q.text)
}

// ParseCPUString converts "250m" or "2" notation to millicores.
func ParseCPUString(s string) (float64, error) {
	if m := millicoresRe.FindStringSubmatch(s); m != nil {
		return parseDigits(m[1]), nil
	}
	if m := coresRe.FindStringSubmatch(s); m != nil {
		return parseDigits(m[1]) * 1000, nil
	}
	return 0, &FormatError{Resource: CPU, Value: s}
}

// ParseMemory converts a memory quantity to bytes. Native numbers are
// returned unchanged.
func ParseMemory(q Quantity) (float64, error) {
	if q.numeric {
		return q.number, nil
	}
	return ParseMemoryString(q.text)
}

// ParseMemoryString converts plain, exponent ("128e6") and suffixed
// ("64Mi", "1G") notations to bytes.
func ParseMemoryString(s string) (float64, error) {
	if m := exponentRe.FindStringSubmatch(s); m != nil {
		value := parseDigits(m[1])
		if m[3] == "" {
			return value, nil
		}
		return value * math.Pow(10, parseDigits(m[3])), nil
	}

	for i, re := range memorySuffixRes {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		base := 1000.0
		if m[2] == "i" {
			base = 1024
		}
		return parseDigits(m[1]) * math.Pow(base, float64(i+1)), nil
	}

	return 0, &FormatError{Resource: Memory, Value: s}
}

// parseDigits is only called on strings already matched by [0-9]+.
func parseDigits(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
