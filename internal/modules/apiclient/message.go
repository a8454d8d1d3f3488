package apiclient

import (
	"errors"
	"net/http"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/validatorx"
)

const (
	networkMessage        = "Cannot connect to the server. Please check your internet connection."
	sessionExpiredMessage = "Your session has expired. Please log in again."
	cancelledMessage      = "The request was cancelled."
)

// ErrorMessage turns any error returned by the client into text for the
// end user
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		statusErr *StatusError
		valErr    validatorx.ValidationError
	)
	switch {
	case errors.Is(err, ErrRefreshFailed):
		return sessionExpiredMessage
	case errors.Is(err, ErrCancelled):
		return cancelledMessage
	case errors.Is(err, ErrNetwork):
		return networkMessage
	case errors.As(err, &statusErr):
		return statusErr.Message()
	case errors.As(err, &valErr):
		return joinValidationErrors(valErr.Fields())
	default:
		return err.Error()
	}
}

// IsUnauthorized reports whether err carries a 401 or 403 response
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}
