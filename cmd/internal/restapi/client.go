// Package restapi is the request/response client for the backend's JSON API.
//
// Every call goes through one Client so the 401 hook applies globally: an
// unauthorized response clears the Session Store (which broadcasts the
// auth-changed signal once) before the error is returned to the caller.
// Requests are never retried.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"talkwire/cmd/internal/session"
)

const (
	// DefaultTimeout bounds each request.
	DefaultTimeout = 5 * time.Second

	// TokenCookie is the cookie the backend sets on sign-in.
	TokenCookie = "jwt"

	maxResponseBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	Timeout time.Duration

	Store   *session.Store
	Logger  *slog.Logger
	Metrics *Metrics

	// HTTPClient overrides the transport. Its Jar and Timeout are replaced when unset.
	HTTPClient *http.Client
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	hc      *http.Client
	store   *session.Store
	log     *slog.Logger
	metrics *Metrics
}

// New validates opts and builds a Client with its own cookie jar.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, raw)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: session store is required", ErrInvalidConfig)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	if hc.Timeout <= 0 {
		hc.Timeout = timeout
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		base:    base,
		hc:      &hc,
		store:   opts.Store,
		log:     log,
		metrics: opts.Metrics,
	}, nil
}

// Store returns the Session Store the client clears on 401.
func (c *Client) Store() *session.Store { return c.store }

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// Token returns the bearer token for the current session: the jwt cookie when
// the backend set one, otherwise the token returned at sign-in.
func (c *Client) Token() string {
	for _, ck := range c.hc.Jar.Cookies(c.base) {
		if ck.Name == TokenCookie && ck.Value != "" {
			return ck.Value
		}
	}
	sess, _ := c.store.Session()
	return sess.Token
}

// HTTPClient returns the underlying client. Its cookie jar carries the session,
// so the realtime handshake can share it.
func (c *Client) HTTPClient() *http.Client { return c.hc }

// Cookies returns the cookies the jar would send to the API root.
func (c *Client) Cookies() []*http.Cookie { return c.hc.Jar.Cookies(c.base) }

type callOptions struct {
	skipAuthHook bool
}

type callOption func(*callOptions)

// withoutAuthHook keeps a 401 from clearing the session; the probe uses it so
// its own failure does not re-trigger it.
func withoutAuthHook() callOption {
	return func(o *callOptions) { o.skipAuthHook = true }
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, opts ...callOption) error {
	var o callOptions
	for _, fn := range opts {
		fn(&o)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		return c.transportError(ctx, method, path, reqID, err)
	}
	defer func() { _ = res.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(ctx, method, path, reqID, err)
	}

	c.metrics.observe(method, res.StatusCode)
	c.log.Debug("rest.response",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"request_id", reqID,
		"dur_ms", time.Since(start).Milliseconds(),
	)

	if res.StatusCode == http.StatusUnauthorized {
		apiErr := decodeAPIError(method, path, res.StatusCode, payload)
		apiErr.Err = ErrUnauthorized
		if !o.skipAuthHook {
			c.metrics.unauthorizedHit()
			c.log.Warn("rest.unauthorized", "method", method, "path", path, "request_id", reqID)
			c.store.Clear()
		}
		return apiErr
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(method, path, res.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := decodeData(payload, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, method, path, reqID string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		c.metrics.transportFailure("timeout")
		c.log.Warn("rest.timeout", "method", method, "path", path, "request_id", reqID)
		return fmt.Errorf("%s %s: %w", method, path, ErrTimeout)
	}

	c.metrics.transportFailure("no_response")
	c.log.Warn("rest.no_response", "method", method, "path", path, "request_id", reqID, "err", err)
	return fmt.Errorf("%s %s: %w: %v", method, path, ErrNoResponse, err)
}

type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func decodeAPIError(method, path string, status int, payload []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var eb errorBody
	if err := decodeData(payload, &eb); err == nil {
		apiErr.Message = strings.TrimSpace(eb.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(eb.Error)
		}
		if len(eb.Errors) > 0 {
			apiErr.Errors = eb.Errors
		}
	}
	// A top-level message wins over one nested in data.
	var top errorBody
	if err := json.Unmarshal(payload, &top); err == nil {
		if m := strings.TrimSpace(top.Message); m != "" {
			apiErr.Message = m
		}
		if len(top.Errors) > 0 {
			apiErr.Errors = top.Errors
		}
	}
	return apiErr
}

// decodeData decodes payload into out, unwrapping a {"data": ...} envelope when present.
func decodeData(payload []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
			return json.Unmarshal(d, out)
		}
	}
	return json.Unmarshal(payload, out)
}
