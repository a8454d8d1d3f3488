package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
)

// refreshResult is what every waiter of a cycle receives
type refreshResult struct {
	accessToken string
	err         error
}

// waiter receives exactly one result. The buffer lets settle deliver
// without blocking on waiters whose callers have gone away.
type waiter chan refreshResult

// waitQueue is the FIFO of requests suspended on the current cycle
type waitQueue struct {
	items []waiter
}

func (q *waitQueue) push(w waiter) {
	q.items = append(q.items, w)
}

// take empties the queue and returns its waiters in enqueue order
func (q *waitQueue) take() []waiter {
	items := q.items
	q.items = nil
	return items
}

func (q *waitQueue) len() int {
	return len(q.items)
}

// refreshCoordinator guarantees at most one refresh in flight. The queue
// is non-empty only while inFlight is set.
type refreshCoordinator struct {
	mu       sync.Mutex
	inFlight bool
	waiters  waitQueue
	// onDepth observes the queue length; it runs under mu
	onDepth func(int)
}

// join enqueues a waiter on the current cycle. leader is true when no cycle
// was running and the caller must start one.
func (rc *refreshCoordinator) join() (w waiter, leader bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	w = make(waiter, 1)
	rc.waiters.push(w)
	leader = !rc.inFlight
	rc.inFlight = true
	rc.observeDepth()
	return w, leader
}

// settle ends the cycle and hands res to every waiter in FIFO order. It is
// the only place waiters are resolved.
func (rc *refreshCoordinator) settle(res refreshResult) int {
	rc.mu.Lock()
	ws := rc.waiters.take()
	rc.inFlight = false
	rc.observeDepth()
	rc.mu.Unlock()

	for _, w := range ws {
		w <- res
	}
	return len(ws)
}

func (rc *refreshCoordinator) observeDepth() {
	if rc.onDepth != nil {
		rc.onDepth(rc.waiters.len())
	}
}

// refreshResponse is the body of a successful POST /auth/refresh
type refreshResponse struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// recoverExpired handles a 401/403 for a call that has not been replayed yet
func (c *Client) recoverExpired(ctx context.Context, cl *call, sentToken string, trigger *StatusError) (*Response, error) {
	cl.retried = true

	// The token this call carried was already replaced by a finished refresh.
	if current := c.store.Credentials().AccessToken; current != "" && current != sentToken {
		c.metrics.incReplay()
		return c.send(ctx, cl, current)
	}

	w, leader := c.refresh.join()
	if leader {
		go c.runRefresh(context.WithoutCancel(ctx))
	}

	select {
	case res := <-w:
		if res.err != nil {
			return nil, &RefreshError{Cause: res.err, Trigger: trigger}
		}
		c.metrics.incReplay()
		return c.send(ctx, cl, res.accessToken)
	case <-ctx.Done():
		return nil, &CancelledError{Cause: ctx.Err()}
	}
}

// runRefresh performs one refresh cycle. It is detached from the caller
// that started it and bounded by the refresh timeout.
func (c *Client) runRefresh(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, c.refreshTimeout)
	defer cancel()

	start := time.Now()
	creds, err := c.refreshTokens(ctx)
	if err == nil {
		if storeErr := c.store.SetTokens(ctx, creds); storeErr != nil {
			// The server already rotated the pair; keep going with the new one.
			c.logger.LogAttrs(ctx, slog.LevelError, "TOKEN_REFRESH_PERSIST_FAILED",
				slog.String("error", storeErr.Error()))
		}
		c.metrics.incRefresh("success")
		n := c.refresh.settle(refreshResult{accessToken: creds.AccessToken})
		c.logger.LogAttrs(ctx, slog.LevelInfo, "TOKEN_REFRESH_SUCCEEDED",
			slog.Int("waiters", n),
			slog.String("latency", time.Since(start).String()))
		return
	}

	// Logout gets its own deadline; ctx may be the one that just expired.
	logoutCtx, logoutCancel := context.WithTimeout(context.WithoutCancel(parent), c.refreshTimeout)
	defer logoutCancel()
	if logoutErr := c.store.Logout(logoutCtx); logoutErr != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "SESSION_LOGOUT_FAILED",
			slog.String("error", logoutErr.Error()))
	}

	c.metrics.incRefresh(refreshOutcome(err))
	n := c.refresh.settle(refreshResult{err: err})
	c.logger.LogAttrs(ctx, slog.LevelWarn, "TOKEN_REFRESH_FAILED",
		slog.Int("waiters", n),
		slog.String("latency", time.Since(start).String()),
		slog.String("error", err.Error()))
}

// refreshTokens exchanges the stored refresh token for a new pair. A
// missing refresh token fails without a network call.
func (c *Client) refreshTokens(ctx context.Context) (session.Credentials, error) {
	refreshToken := c.store.Credentials().RefreshToken
	if refreshToken == "" {
		return session.Credentials{}, ErrNoRefreshToken
	}

	resp, err := c.send(ctx, &call{req: Request{Method: http.MethodPost, Path: c.refreshPath}}, refreshToken)
	if errors.Is(err, ErrCancelled) || isTimeout(err) {
		return session.Credentials{}, fmt.Errorf("%w: %v", ErrRefreshTimeout, err)
	}
	if err != nil {
		return session.Credentials{}, err
	}

	var body refreshResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return session.Credentials{}, fmt.Errorf("%w: %v", ErrMalformedRefresh, err)
	}
	if err := c.validator.Validate(body); err != nil {
		return session.Credentials{}, fmt.Errorf("%w: %v", ErrMalformedRefresh, err)
	}
	return session.Credentials{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

// isTimeout reports a transport deadline, such as http.Client.Timeout,
// that fired before the refresh context did
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func refreshOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNoRefreshToken):
		return "no_token"
	case errors.Is(err, ErrMalformedRefresh):
		return "malformed"
	case errors.Is(err, ErrRefreshTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "rejected"
	}
}
