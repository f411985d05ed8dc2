package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sort"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op      string
	Status  int
	Message string
	Payload map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Status, e.Message)
}

// StatusCode implements http.StatusError so retry classification sees the status.
func (e *APIError) StatusCode() int {
	return e.Status
}

// newAPIError reads resp's body and builds an APIError. The caller closes the body.
func newAPIError(resp *nethttp.Response, op string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Op: op, Status: resp.StatusCode}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Payload = payload
		apiErr.Message = messageFromPayload(payload)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = nethttp.StatusText(resp.StatusCode)
	}
	return apiErr
}

// messageFromPayload picks "detail", then "error", then the first field error.
func messageFromPayload(payload map[string]interface{}) string {
	for _, key := range []string{"detail", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := payload[k].(type) {
		case string:
			if v != "" {
				return k + ": " + v
			}
		case []interface{}:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return k + ": " + s
				}
			}
		}
	}
	return ""
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return statusOf(err) == nethttp.StatusNotFound
}

// IsConflict reports whether err is a 409 from the backend, typically a name
// clash in the target folder.
func IsConflict(err error) bool {
	return statusOf(err) == nethttp.StatusConflict
}

// IsUnauthorized reports whether the session or token was rejected.
func IsUnauthorized(err error) bool {
	s := statusOf(err)
	return s == nethttp.StatusUnauthorized || s == nethttp.StatusForbidden
}
