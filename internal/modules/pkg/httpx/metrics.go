package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsMiddleware counts and times requests by route template, so
// path parameters do not explode the label set. Register it outside the
// request logger so handled errors report their final status.
func MetricsMiddleware(reg prometheus.Registerer) echo.MiddlewareFunc {
	requests := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "budgetwise",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)
	duration := promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "budgetwise",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				// No error handler has written yet; guess the status it will use
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			requests.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			duration.WithLabelValues(route, c.Request().Method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
