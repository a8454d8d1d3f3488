package apiclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID correlates client log lines with the server's
const HeaderRequestID = "X-Request-Id"

// LoggingTransport logs every round trip and stamps a request id on
// requests that lack one
type LoggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

var _ http.RoundTripper = (*LoggingTransport)(nil)

func NewLoggingTransport(next http.RoundTripper, logger *slog.Logger) *LoggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingTransport{next: next, logger: logger}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(HeaderRequestID, requestID)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	latency := time.Since(start)

	if err != nil {
		t.logger.LogAttrs(req.Context(), slog.LevelWarn, "HTTP_CLIENT_REQUEST_ERROR",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.String("latency", latency.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	t.logger.LogAttrs(req.Context(), level, "HTTP_CLIENT_REQUEST",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.String("latency", latency.String()),
	)
	return resp, nil
}
