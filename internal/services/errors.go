package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/desertthunder/hego/internal/shared"
)

// NonFieldErrors is the key the backend uses for errors not tied to a form field
const NonFieldErrors = "non_field_errors"

// APIError is a non-2xx backend response.
//
// It matches the shared sentinels with [errors.Is]:
//   - 400 with non_field_errors : [shared.ErrInvalidCredentials]
//   - 400 otherwise : [shared.ErrValidation]
//   - 401, 403 : [shared.ErrUnauthorized]
//   - 5xx : [shared.ErrServiceUnavailable]
//   - any status : [shared.ErrAPIRequest]
type APIError struct {
	StatusCode int
	Body       []byte
	Detail     string
	Fields     map[string][]string
}

// NewAPIError parses a DRF-style error body. Unparseable bodies leave Detail and Fields empty.
func NewAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body, Fields: map[string][]string{}}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return e
	}

	for k, v := range raw {
		switch val := v.(type) {
		case string:
			if k == "detail" {
				e.Detail = val
			} else {
				e.Fields[k] = []string{val}
			}
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					e.Fields[k] = append(e.Fields[k], s)
				}
			}
		}
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Message())
}

// Is maps the status code onto the shared sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrInvalidCredentials:
		return e.StatusCode == http.StatusBadRequest && e.HasNonFieldErrors()
	case shared.ErrValidation:
		return e.StatusCode == http.StatusBadRequest && !e.HasNonFieldErrors()
	case shared.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case shared.ErrServiceUnavailable:
		return e.StatusCode >= 500
	}
	return false
}

// HasNonFieldErrors reports whether the body carried a non_field_errors entry
func (e *APIError) HasNonFieldErrors() bool {
	return len(e.Fields[NonFieldErrors]) > 0
}

// FirstNonFieldError returns the first non_field_errors message
func (e *APIError) FirstNonFieldError() (string, bool) {
	if !e.HasNonFieldErrors() {
		return "", false
	}
	return e.Fields[NonFieldErrors][0], true
}

// FirstFieldError returns the first message of the alphabetically first field, excluding non_field_errors
func (e *APIError) FirstFieldError() (field, msg string, ok bool) {
	keys := make([]string, 0, len(e.Fields))
	for k, msgs := range e.Fields {
		if k != NonFieldErrors && len(msgs) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", "", false
	}
	slices.Sort(keys)
	return keys[0], e.Fields[keys[0]][0], true
}

// Message returns the most specific human-readable message in the body
func (e *APIError) Message() string {
	if msg, ok := e.FirstNonFieldError(); ok {
		return msg
	}
	if e.Detail != "" {
		return e.Detail
	}
	if field, msg, ok := e.FirstFieldError(); ok {
		return field + ": " + msg
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "unknown error"
}

// AsAPIError unwraps err into an [*APIError]
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
