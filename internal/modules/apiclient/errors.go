package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/httpx"
)

// Sentinel errors for use with errors.Is
var (
	// ErrNetwork matches failures where no response was received
	ErrNetwork = errors.New("network error")

	// ErrAuthExpired matches 401 and 403 responses
	ErrAuthExpired = errors.New("authorization expired")

	// ErrRefreshFailed matches requests that could not be recovered by a token refresh
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrCancelled matches requests aborted through their context
	ErrCancelled = errors.New("request cancelled")

	// ErrNoRefreshToken is the refresh failure cause when the session holds no refresh token
	ErrNoRefreshToken = errors.New("no refresh token in session")

	// ErrRefreshTimeout is the refresh failure cause when the cycle ran out of time
	ErrRefreshTimeout = errors.New("token refresh timed out")

	// ErrResponseTooLarge matches 2xx responses whose body exceeds the size limit
	ErrResponseTooLarge = errors.New("response body too large")

	// ErrMalformedRefresh is the refresh failure cause when the response lacks a token
	ErrMalformedRefresh = errors.New("refresh response is missing tokens")
)

// NetworkError is returned when the request never produced a response
type NetworkError struct {
	Method string
	URL    string
	Cause  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// StatusError is returned for every non-2xx response. API holds the decoded
// error body when the server sent one.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Header     http.Header
	Body       []byte
	API        *httpx.APIError

	refreshEndpoint bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
}

// Is matches ErrAuthExpired for 401 and 403. Rejections from the refresh
// endpoint never match: they are refresh failures, not expired access.
func (e *StatusError) Is(target error) bool {
	return target == ErrAuthExpired && isExpiryStatus(e.StatusCode) && !e.refreshEndpoint
}

// Message picks the most useful text from the error body: the message,
// then the validation errors, then the status reason.
func (e *StatusError) Message() string {
	if e.API != nil {
		if e.API.Message != "" {
			return e.API.Message
		}
		if len(e.API.ValidationErrors) > 0 {
			return joinValidationErrors(e.API.ValidationErrors)
		}
		if e.API.Reason != "" {
			return e.API.Reason
		}
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// RefreshError is returned to every request of a failed refresh cycle.
// Trigger is the 401/403 that sent the request into the cycle.
type RefreshError struct {
	Cause   error
	Trigger *StatusError
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Cause)
}

// Unwrap exposes the refresh cause only, so a RefreshError no longer
// matches ErrAuthExpired.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}

func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

// CancelledError wraps context.Canceled or context.DeadlineExceeded
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("request cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func isExpiryStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func joinValidationErrors(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return strings.Join(parts, "; ")
}
