package devauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/httpx"
	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/validatorx"
)

// APIPrefix is where the dev API mounts its routes
const APIPrefix = "/api/v1"

// NewServer builds the echo instance of the dev API with its middleware
// chain and error handler. reg may be nil to skip HTTP metrics.
func NewServer(h *AuthHandler, baseLogger *slog.Logger, reg prometheus.Registerer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validatorx.NewValidator()
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return uuid.NewString()
		},
	}))
	e.Use(middleware.BodyLimit("2MB"))
	if reg != nil {
		e.Use(httpx.MetricsMiddleware(reg))
	}
	e.Use(httpx.ContextualLoggerMiddleware(baseLogger))
	e.Use(httpx.RequestLoggerMiddleware())

	apiRouteGroup := e.Group(APIPrefix)
	// The client probes connectivity with OPTIONS on the API root
	apiRouteGroup.OPTIONS("/", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderAllow, "GET, POST, PUT, OPTIONS")
		return c.NoContent(http.StatusNoContent)
	})
	h.RegisterRoutes(apiRouteGroup)

	return e
}

// ErrorHandler is the centralized error handler of the dev API. Every
// error leaves as an httpx.APIError body.
func ErrorHandler(err error, c echo.Context) {
	log := ctxlogger.GetLogger(c.Request().Context())
	if c.Response().Committed {
		return
	}

	var valErr validatorx.ValidationError
	if errors.As(err, &valErr) {
		_ = httpx.SendAPIError(c, http.StatusBadRequest, "Validation failed", valErr.Fields())
		return
	}

	if status := statusForDomainError(err); status != 0 {
		_ = httpx.SendAPIError(c, status, messageFor(err), nil)
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = httpx.SendAPIError(c, httpErr.Code, fmt.Sprintf("%v", httpErr.Message), nil)
		return
	}

	log.Error("unhandled internal error", slog.String("error", err.Error()))
	_ = httpx.SendAPIError(c, http.StatusInternalServerError, "An unexpected error occurred", nil)
}

func statusForDomainError(err error) int {
	switch {
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrEmailAlreadyInUse),
		errors.Is(err, ErrEmailTakenByOtherUser),
		errors.Is(err, ErrAlreadyVerified):
		return http.StatusConflict

	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshTokenExpired),
		errors.Is(err, ErrInvalidAccessToken),
		errors.Is(err, ErrMissingBearerToken):
		return http.StatusUnauthorized

	case errors.Is(err, ErrAccountNotVerified):
		return http.StatusForbidden

	// A wrong current password is a 400: a 401 would send the client into a refresh.
	case errors.Is(err, ErrInvalidVerification),
		errors.Is(err, ErrVerificationExpired),
		errors.Is(err, ErrUnknownCountry),
		errors.Is(err, ErrPasswordsDoNotMatch),
		errors.Is(err, ErrCurrentPasswordWrong):
		return http.StatusBadRequest
	}
	return 0
}

// messageFor capitalizes the sentinel text for display. Wrapped details of
// token failures stay in the logs.
func messageFor(err error) string {
	for _, sentinel := range []error{ErrInvalidAccessToken, ErrUnknownCountry} {
		if errors.Is(err, sentinel) {
			err = sentinel
			break
		}
	}
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
