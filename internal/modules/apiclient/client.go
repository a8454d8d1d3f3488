package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/httpx"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/validatorx"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRefreshPath  = "/auth/refresh"
	maxResponseBodySize = 10 * 1024 * 1024
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionStore is the part of the session the client reads and mutates
type SessionStore interface {
	Credentials() session.Credentials
	SetTokens(ctx context.Context, creds session.Credentials) error
	Logout(ctx context.Context) error
}

var _ SessionStore = (*session.Store)(nil)

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent as JSON. A []byte or json.RawMessage is sent verbatim.
	Body any
	// SkipRefresh disables expiry interception, for calls such as login
	// where a 401 means bad credentials.
	SkipRefresh bool
}

// Response is a fully read 2xx response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into dst. An empty body leaves dst untouched.
func (r *Response) Decode(dst any) error {
	if dst == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Client issues authenticated requests against the API. On a 401 or 403 it
// refreshes the token pair once for all concurrent failures and replays the
// failed requests with the new access token.
type Client struct {
	baseURL        string
	refreshPath    string
	timeout        time.Duration
	refreshTimeout time.Duration
	maxBodySize    int64
	userAgent      string
	httpClient     Doer
	store          SessionStore
	logger         *slog.Logger
	metrics        *Metrics
	validator      *validatorx.Validator

	refresh refreshCoordinator
}

// NewClient creates a Client for the API rooted at baseURL
func NewClient(baseURL string, store SessionStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		refreshPath: defaultRefreshPath,
		timeout:     defaultTimeout,
		maxBodySize: maxResponseBodySize,
		userAgent:   "budgetwise-go",
		store:       store,
		logger:      slog.Default(),
		validator:   validatorx.NewValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.refresh.onDepth = c.metrics.setWaiters
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = c.timeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: NewLoggingTransport(http.DefaultTransport, c.logger),
		}
	}
	return c, nil
}

// BaseURL returns the API root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req with the current access token. Expired credentials are
// refreshed and the request replayed transparently; only a failed refresh
// surfaces, as an error matching ErrRefreshFailed.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	cl := &call{req: req, body: body}
	token := c.store.Credentials().AccessToken

	resp, err := c.send(ctx, cl, token)
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !c.intercepts(cl, statusErr) {
		return nil, err
	}
	return c.recoverExpired(ctx, cl, token, statusErr)
}

// Get sends a GET and decodes the JSON response into dst
func (c *Client) Get(ctx context.Context, path string, dst any) error {
	return c.doJSON(ctx, Request{Method: http.MethodGet, Path: path}, dst)
}

// Post sends body as JSON and decodes the JSON response into dst
func (c *Client) Post(ctx context.Context, path string, body, dst any) error {
	return c.doJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, dst)
}

// Put sends body as JSON and decodes the JSON response into dst
func (c *Client) Put(ctx context.Context, path string, body, dst any) error {
	return c.doJSON(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, dst)
}

// Delete sends a DELETE and decodes the JSON response, if any, into dst
func (c *Client) Delete(ctx context.Context, path string, dst any) error {
	return c.doJSON(ctx, Request{Method: http.MethodDelete, Path: path}, dst)
}

func (c *Client) doJSON(ctx context.Context, req Request, dst any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(dst)
}

// call is one logical request across its original send and its replay
type call struct {
	req     Request
	body    []byte
	retried bool
}

// intercepts reports whether a failed call enters the refresh flow
func (c *Client) intercepts(cl *call, statusErr *StatusError) bool {
	return isExpiryStatus(statusErr.StatusCode) &&
		!cl.req.SkipRefresh &&
		!cl.retried &&
		!c.isRefreshPath(cl.req.Path)
}

func (c *Client) isRefreshPath(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return normalizePath(path) == c.refreshPath
}

// send performs one round trip with token as the bearer credential
func (c *Client) send(ctx context.Context, cl *call, token string) (*Response, error) {
	target := c.resolve(cl.req.Path, cl.req.Query)

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, cl.req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, vs := range cl.req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if cl.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	// An explicit Authorization header wins, as for logout with the refresh token.
	if token != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observeRequest(cl.req.Method, 0, time.Since(start))
		return nil, transportError(ctx, cl.req.Method, target, err)
	}
	defer httpResp.Body.Close()

	// One byte past the limit tells a full body from an oversized one.
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodySize+1))
	c.metrics.observeRequest(cl.req.Method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, transportError(ctx, cl.req.Method, target, err)
	}
	oversized := int64(len(respBody)) > c.maxBodySize
	if oversized {
		respBody = respBody[:c.maxBodySize]
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		statusErr := newStatusError(cl.req.Method, cl.req.Path, httpResp, respBody)
		statusErr.refreshEndpoint = c.isRefreshPath(cl.req.Path)
		return nil, statusErr
	}
	if oversized {
		return nil, fmt.Errorf("%s %s: %w (limit %d bytes)", cl.req.Method, cl.req.Path, ErrResponseTooLarge, c.maxBodySize)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + normalizePath(path)
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func transportError(ctx context.Context, method, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancelledError{Cause: ctxErr}
	}
	return &NetworkError{Method: method, URL: target, Cause: err}
}

func newStatusError(method, path string, resp *http.Response, body []byte) *StatusError {
	se := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	var apiErr httpx.APIError
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && (apiErr.Message != "" || apiErr.Reason != "" || len(apiErr.ValidationErrors) > 0) {
		se.API = &apiErr
	}
	return se
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
