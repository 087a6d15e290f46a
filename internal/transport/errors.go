package transport

import "fmt"

// UpstreamProtocolError is returned when the cluster API answers with an
// unexpected status or with a body that is not a pod list object.
type UpstreamProtocolError struct {
	StatusCode int
	URL        string

	// Shape is the JSON shape of the body ("array", "null", ...) when the
	// body was not an object
	Shape string

	// Kind is the discriminator found on an object body
	Kind string
}

func (e *UpstreamProtocolError) Error() string {
	switch {
	case e.StatusCode < 200 || e.StatusCode > 299 || e.StatusCode == 204:
		return fmt.Sprintf("cluster API returned status code %d for %s", e.StatusCode, e.URL)
	case e.Shape != "":
		return fmt.Sprintf("expected cluster API to return an object but got %s (%s)", e.Shape, e.URL)
	default:
		return fmt.Sprintf("expected cluster API to return a PodList but got %q (%s)", e.Kind, e.URL)
	}
}

// UpstreamStatusError is returned when the metrics backend answers with a
// status outside 2xx.
type UpstreamStatusError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("metrics API returned status code %d for %s", e.StatusCode, e.URL)
}

// MalformedPayloadError is returned when a response body is not valid JSON
// for the expected type. Body holds the raw response text.
type MalformedPayloadError struct {
	URL  string
	Body string
	Err  error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed JSON payload from %s: %v (body: %q)", e.URL, e.Err, truncate(e.Body, 512))
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
