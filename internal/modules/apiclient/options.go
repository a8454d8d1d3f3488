package apiclient

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithHTTPClient sets the transport used for every call, the refresh
// included. The client's own timeout and logging transport are skipped.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.httpClient = d
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRefreshPath sets the path of the refresh endpoint. Defaults to /auth/refresh.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = normalizePath(path)
		}
	}
}

// WithRefreshTimeout bounds a whole refresh cycle. Defaults to the request
// timeout. A refresh ended by either deadline fails with ErrRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithMaxResponseSize caps the bytes read from a response body. A larger
// 2xx body fails with ErrResponseTooLarge. Defaults to 10 MiB.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request and refresh metrics. A nil Metrics disables them.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}
