// Package client is the HTTP transport to a Kylin server. It handles
// authentication, versioned Accept headers, retries, rate limiting and
// the {code,data,msg} response envelope.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
)

const (
	UserAgent = "kylinctl"

	acceptV2 = "application/vnd.apache.kylin-v2+json"
	acceptV4 = "application/vnd.apache.kylin-v4-public+json"

	successCode = "000"
)

// Client sends requests to one Kylin server.
type Client struct {
	baseURL  string
	version  string
	username string
	password string
	session  string
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// New builds a client from a validated server config.
func New(sc *config.ServerConfig, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = sc.RetryMax
	rc.HTTPClient.Timeout = time.Duration(sc.Timeout) * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = checkRetry
	if sc.Unverified {
		if t, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per server config
		}
	}

	c := &Client{
		baseURL:  sc.BaseURL(),
		version:  sc.APIVersion,
		username: sc.Username,
		password: sc.Password,
		session:  sc.Session,
		http:     rc,
		logger:   slog.Default(),
	}
	if sc.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(sc.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version returns the service version tag the client speaks.
func (c *Client) Version() string { return c.version }

// BaseURL returns scheme://host:port/prefix.
func (c *Client) BaseURL() string { return c.baseURL }

// Get decodes the response of GET endpoint into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, params, nil, out)
}

// Post sends body as JSON and decodes the response into out. POSTs are
// never retried.
func (c *Client) Post(ctx context.Context, endpoint string, params url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, params, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, endpoint string, params url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, params, body, out)
}

// Delete decodes the response of DELETE endpoint into out.
func (c *Client) Delete(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.do(ctx, http.MethodDelete, endpoint, params, nil, out)
}

// URL returns the full request URL. Query parameters are sorted by key.
func (c *Client) URL(endpoint string, params url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	var payload any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", endpoint, err)
		}
		payload = b
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	if method == http.MethodPost {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}

	target := c.URL(endpoint, params)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req.Header, payload != nil)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("kylin request failed", "method", method, "url", target, "error", err)
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrConnection, method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %w", apperrors.ErrConnection, method, target, err)
	}
	c.logger.Debug("kylin request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		return newHTTPError(method, target, resp.StatusCode, data)
	}
	return decode(method, target, resp.StatusCode, data, out)
}

func (c *Client) setHeaders(h http.Header, hasBody bool) {
	h.Set("User-Agent", UserAgent)
	switch c.version {
	case config.VersionKE3:
		h.Set("Accept", acceptV2)
	case config.VersionKE4:
		h.Set("Accept", acceptV4)
	default:
		h.Set("Accept", "application/json")
	}
	if c.session != "" {
		h.Set("Cookie", c.session)
	} else {
		h.Set("Authorization", "Basic "+basicAuth(c.username, c.password))
	}
	if hasBody {
		h.Set("Content-Type", "application/json")
	}
}

// envelope is the v2 and v4 response wrapper.
type envelope struct {
	Code *string         `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// decode unwraps an envelope when present and decodes the payload into out.
func decode(method, target string, status int, data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil && env.Code != nil && env.Data != nil {
			if *env.Code != successCode {
				return &HTTPError{Method: method, URL: target, Status: status, Code: *env.Code, Message: env.Msg}
			}
			data = env.Data
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s %s: %w", apperrors.ErrConfusedResponse, method, target, err)
	}
	return nil
}

type noRetryKey struct{}

// checkRetry retries connection errors, 429 and 5xx except 501, but only
// for idempotent methods.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
