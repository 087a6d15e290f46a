package quantity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Quantity is a resource amount as declared in a container spec.
// The cluster API serialises it either as a JSON string ("500m", "2Gi")
// or as a plain JSON number, and both forms are kept as received.
type Quantity struct {
	text    string
	number  float64
	numeric bool
}

// FromString returns a Quantity holding a textual notation.
func FromString(s string) Quantity {
	return Quantity{text: s}
}

// FromNumber returns a Quantity holding a native number.
func FromNumber(f float64) Quantity {
	return Quantity{number: f, numeric: true}
}

// IsNumber reports whether the quantity was given as a native number.
func (q Quantity) IsNumber() bool {
	return q.numeric
}

// IsZero reports whether the quantity counts as "not declared":
// an empty string or the number zero.
func (q Quantity) IsZero() bool {
	if q.numeric {
		return q.number == 0
	}
	return q.text == ""
}

// String returns the quantity as it appeared in the pod spec.
func (q Quantity) String() string {
	if q.numeric {
		return strconv.FormatFloat(q.number, 'f', -1, 64)
	}
	return q.text
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = Quantity{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid quantity %s: %w", data, err)
		}
		*q = FromString(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("quantity must be a string or a number, got %s", data)
	}
	*q = FromNumber(f)
	return nil
}

// MarshalJSON writes the quantity back in its original form.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.numeric {
		return json.Marshal(q.number)
	}
	return json.Marshal(q.text)
}
