package http

import (
	"bytes"
	"encoding/json"

	"github.com/mehdiazizian/osmetrics-exporter/internal/transport"
	"github.com/mehdiazizian/osmetrics-exporter/internal/transport/dto"
)

// jsonShape is the top-level JSON type of a response body.
type jsonShape string

const (
	shapeObject  jsonShape = "object"
	shapeArray   jsonShape = "an array"
	shapeNull    jsonShape = "null"
	shapeString  jsonShape = "a string"
	shapeNumber  jsonShape = "a number"
	shapeBoolean jsonShape = "a boolean"
	shapeInvalid jsonShape = "invalid JSON"
)

func classifyJSON(body []byte) jsonShape {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return shapeInvalid
	}

	switch trimmed[0] {
	case '{':
		return shapeObject
	case '[':
		return shapeArray
	case '"':
		return shapeString
	case 't', 'f':
		return shapeBoolean
	case 'n':
		return shapeNull
	default:
		return shapeNumber
	}
}

// parsePodList validates a pod listing body. Only an object carrying the
// PodList discriminator is accepted; every other shape is reported as an
// *transport.UpstreamProtocolError, unparseable text as a
// *transport.MalformedPayloadError.
func parsePodList(endpoint string, statusCode int, body []byte) (*dto.PodList, error) {
	switch shape := classifyJSON(body); shape {
	case shapeObject:
	case shapeInvalid:
		return nil, &transport.MalformedPayloadError{
			URL:  endpoint,
			Body: string(body),
			Err:  json.Unmarshal(body, new(any)),
		}
	default:
		return nil, &transport.UpstreamProtocolError{
			StatusCode: statusCode,
			URL:        endpoint,
			Shape:      string(shape),
		}
	}

	var list dto.PodList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &transport.MalformedPayloadError{URL: endpoint, Body: string(body), Err: err}
	}

	if list.Kind != dto.KindPodList {
		return nil, &transport.UpstreamProtocolError{
			StatusCode: statusCode,
			URL:        endpoint,
			Kind:       list.Kind,
		}
	}

	return &list, nil
}
