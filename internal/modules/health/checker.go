package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultCheckTimeout = 5 * time.Second

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Checker probes the API root with an OPTIONS request
type Checker struct {
	target  string
	timeout time.Duration
	client  Doer
}

// NewChecker creates a Checker for baseURL. A nil client uses http.DefaultClient.
func NewChecker(baseURL string, client Doer, timeout time.Duration) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		target:  strings.TrimRight(baseURL, "/") + "/",
		timeout: timeout,
		client:  client,
	}
}

// Check reports nil when the server answered with a status below 500.
// Any 4xx still proves the server is up.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.target, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.target, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("server at %s answered %d", c.target, resp.StatusCode)
	}
	return nil
}
