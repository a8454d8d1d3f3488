package httpx

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
)

// ContextualLoggerMiddleware creates a request-scoped logger containing the request ID
// and injects it into the standard `context.Context` for use in downstream handlers and services
func ContextualLoggerMiddleware(baseLogger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			requestLogger := baseLogger.With(slog.String("request_id", requestID))

			ctx := ctxlogger.SetLogger(c.Request().Context(), requestLogger)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequestLoggerMiddleware logs one line per request through the contextual
// logger, so every access log carries the request ID
func RequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("latency", v.Latency.String()),
			}

			if v.Error == nil {
				ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "HTTP_REQUEST", attrs...)
				return nil
			}
			attrs = append(attrs, slog.String("error", v.Error.Error()))
			ctxlogger.GetLogger(ctx).LogAttrs(ctx, slog.LevelError, "HTTP_REQUEST_ERROR", attrs...)
			return nil
		},
	})
}
