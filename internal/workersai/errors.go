package workersai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Request validation and configuration errors. Callers should use errors.Is.
var (
	ErrMultipleImagesUnsupported = errors.New("workersai: multiple images are not supported as input")
	ErrInvalidPassthrough        = errors.New("workersai: passthrough option must be a string, bool or number")
	ErrNoTransport               = errors.New("workersai: either a binding or credentials (account id and api key) must be provided")
)

// UnsupportedFunctionalityError is returned for request features this
// backend cannot serve at all.
type UnsupportedFunctionalityError struct {
	Functionality string
}

func (e *UnsupportedFunctionalityError) Error() string {
	return fmt.Sprintf("workersai: %s is not supported", e.Functionality)
}

// NoSuchToolError is returned when a specific tool choice names a tool that
// is not in the request's tool list.
type NoSuchToolError struct {
	ToolName string
}

func (e *NoSuchToolError) Error() string {
	return fmt.Sprintf("workersai: tool choice references unknown tool %q", e.ToolName)
}

// TooManyValuesError is returned by Embed when the batch exceeds the
// model's ceiling. No network call has been made when it is returned.
type TooManyValuesError struct {
	Provider      string
	ModelID       string
	MaxBatchSize  int
	ProvidedCount int
}

func (e *TooManyValuesError) Error() string {
	return fmt.Sprintf("workersai: too many values for a single embedding call: model %s (%s) accepts at most %d, got %d",
		e.ModelID, e.Provider, e.MaxBatchSize, e.ProvidedCount)
}

// APIError is a failed backend call. Error() returns the backend's message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Type       string
	Param      string
}

func (e *APIError) Error() string {
	return e.Message
}

// parseAPIError turns a non-2xx response body into an APIError. Two
// envelopes are understood, detected by field presence:
//
//	{"code": ..., "message": ..., "type": ..., "param": ...}
//	{"success": false, "errors": [{"code": 1000, "message": ...}]}
//
// Anything else keeps the HTTP status text and a body excerpt as message.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	r := gjson.ParseBytes(body)
	switch {
	case gjson.ValidBytes(body) && r.Get("message").Type == gjson.String:
		apiErr.Message = r.Get("message").String()
		apiErr.Code = r.Get("code").String()
		apiErr.Type = r.Get("type").String()
		apiErr.Param = r.Get("param").String()
	case gjson.ValidBytes(body) && r.Get("errors.0.message").Exists():
		apiErr.Message = r.Get("errors.0.message").String()
		apiErr.Code = r.Get("errors.0.code").String()
	default:
		apiErr.Message = fmt.Sprintf("%s: %s", http.StatusText(status), excerpt(body))
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// excerpt trims a body for inclusion in an error message.
func excerpt(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
