package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped when the envelope shape changes.
const envelopeVersion = 1

// Envelope wraps every successful JSON response.
type Envelope struct {
	V       int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// EnvelopeTransformer wraps 2xx JSON bodies in an Envelope. Errors and raw
// byte bodies pass through unchanged.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch v.(type) {
	case []byte, *APIError, Envelope:
		return v, nil
	}
	if code, err := strconv.Atoi(status); err == nil && code >= 300 {
		return v, nil
	}
	return Envelope{V: envelopeVersion, Success: true, Data: v}, nil
}
