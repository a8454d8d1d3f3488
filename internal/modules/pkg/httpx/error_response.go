package httpx

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// APIError is the body of every 4xx and 5xx response of the BudgetWise API.
// The client decodes the same structure to build user-facing messages.
type APIError struct {
	Timestamp        time.Time         `json:"timestamp"`
	Status           int               `json:"status"`
	Reason           string            `json:"error"`                      // Reason is the HTTP status text
	Message          string            `json:"message"`                    // Message is meant for the end user
	Path             string            `json:"path"`                       // Path is the request path that failed
	ValidationErrors map[string]string `json:"validationErrors,omitempty"` // ValidationErrors maps field names to messages
}

// NewAPIError creates an APIError for the given status, stamped with the current time
func NewAPIError(status int, message, path string, validationErrors map[string]string) APIError {
	return APIError{
		Timestamp:        time.Now().UTC(),
		Status:           status,
		Reason:           http.StatusText(status),
		Message:          message,
		Path:             path,
		ValidationErrors: validationErrors,
	}
}

// SendAPIError writes an APIError for the current request path
func SendAPIError(c echo.Context, status int, message string, validationErrors map[string]string) error {
	return c.JSON(status, NewAPIError(status, message, c.Request().URL.Path, validationErrors))
}
