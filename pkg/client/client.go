// Package client provides the HTTP client for the branch administration API
// with bearer authentication, retries, response caching and error decoding.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/cache"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for each request. An empty token
// means the request is sent without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// UnauthorizedHandler is invoked when the API answers 401.
type UnauthorizedHandler func(ctx context.Context, err *APIError)

// Client is the API client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API origin, e.g. "https://admin.example.com". A path
	// component is kept as a prefix for every request.
	BaseURL string

	// UserAgent header value.
	UserAgent string

	// Timeout for a single HTTP attempt.
	Timeout time.Duration

	// Retry policy for 5xx and network failures.
	Retry RetryConfig

	// Tokens supplies the bearer token (optional).
	Tokens TokenSource

	// StaticToken is used when Tokens is nil or returns an empty token.
	StaticToken string

	// Cache enables ETag-revalidated response caching of GET requests (optional).
	Cache *cache.Manager

	// OnUnauthorized is called once per 401 response (optional).
	OnUnauthorized UnauthorizedHandler
}

// DefaultConfig returns a configuration with safe defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "branchdesk/0.1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "branchdesk/0.1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		config:     cfg,
		logger:     log.With().Str("component", "api-client").Logger(),
	}, nil
}

type skipUnauthorizedKey struct{}

// WithoutUnauthorizedHook marks ctx so that a 401 on requests made with it
// does not invoke OnUnauthorized (login with bad credentials, logout).
func WithoutUnauthorizedHook(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipUnauthorizedKey{}, true)
}

func unauthorizedHookSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipUnauthorizedKey{}).(bool)
	return skip
}

// Do performs an HTTP request with authentication, caching, retries and
// error decoding. Non-2xx responses are returned as *APIError (possibly
// wrapped by ErrRetryExhausted); the response is nil in that case.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path
	method := req.Method

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method, endpoint).Observe(time.Since(startTime).Seconds())
	}()

	token := c.token(ctx)
	requestID := c.prepare(req, token)

	// Cache lookup for GET requests
	var cacheKey cache.Key
	var cached *cache.Entry
	useCache := c.cache != nil && method == http.MethodGet
	if useCache {
		cacheKey = cache.Key{Path: endpoint, Query: req.URL.Query(), Scope: cache.ScopeForToken(token)}
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && cache.ShouldRevalidate(entry) {
			cached = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", entry.ETag).
				Msg("Revalidating cached response")
		}
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Msg("Executing API request")

	// Non-idempotent writes are sent once; a retried POST could create duplicates.
	retryCfg := c.config.Retry
	if !idempotent(method) {
		retryCfg = NoRetry()
	}

	var resp *http.Response
	err := retryWithBackoff(ctx, retryCfg, c.logger, func() error {
		attemptReq, err := cloneForAttempt(req)
		if err != nil {
			return &APIError{Class: ErrorClassInternal, Message: "rewind request body", Err: err}
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(method, endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			return &APIError{Class: ErrorClassNetwork, Message: "network failure", Err: err}
		}

		requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode == http.StatusNotModified && cached != nil {
			resp = r
			return nil
		}

		if r.StatusCode >= 400 {
			body, _ := io.ReadAll(r.Body)
			r.Body.Close()

			apiErr := decodeAPIError(r.StatusCode, body)
			errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
			c.logger.Warn().
				Str("method", method).
				Str("endpoint", endpoint).
				Int("status", r.StatusCode).
				Str("error_class", string(apiErr.Class)).
				Str("request_id", requestID).
				Msg("API request error")
			return apiErr
		}

		resp = r
		return nil
	}, func(err error) ErrorClass {
		if ctx.Err() != nil {
			return ErrorClassInternal
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Class
		}
		return ErrorClassInternal
	})

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Class == ErrorClassUnauthorized {
			c.handleUnauthorized(ctx, apiErr)
		}
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		cache.CacheHits.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("age", cached.Age()).
			Msg("304 Not Modified - serving cached response")

		if cached.Refresh(resp.Header) {
			if uerr := c.cache.UpdateTTL(ctx, cacheKey, cached.Expires); uerr != nil {
				c.logger.Warn().Err(uerr).Msg("Failed to update cache TTL")
			}
		}
		return cache.EntryToResponse(cached, req), nil
	}

	if useCache && resp.StatusCode == http.StatusOK {
		c.store(ctx, cacheKey, resp)
	}

	return resp, nil
}

func (c *Client) store(ctx context.Context, key cache.Key, resp *http.Response) {
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if !cache.ShouldRevalidate(entry) {
		// Without a validator the entry could never be reused safely.
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().
		Str("endpoint", key.Path).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

func (c *Client) handleUnauthorized(ctx context.Context, apiErr *APIError) {
	if c.config.OnUnauthorized == nil || unauthorizedHookSkipped(ctx) {
		return
	}
	unauthorizedTotal.Inc()
	c.logger.Warn().Msg("Received 401 - tearing down session")
	c.config.OnUnauthorized(ctx, apiErr)
}

func (c *Client) token(ctx context.Context) string {
	if c.config.Tokens != nil {
		tok, err := c.config.Tokens.Token(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to read token")
		} else if tok != "" {
			return tok
		}
	}
	return c.config.StaticToken
}

// prepare sets the standard headers and returns the request ID.
func (c *Client) prepare(req *http.Request, token string) string {
	if req.Header == nil {
		req.Header = http.Header{}
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(RequestIDHeader, requestID)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return requestID
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// cloneForAttempt returns a request safe to send again, rewinding the body.
func cloneForAttempt(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// URL resolves path and params against the base URL.
func (c *Client) URL(path string, params *Params) *url.URL {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = params.Encode()
	return u
}

// NewRequest builds a request for path. A non-nil body is JSON encoded.
func (c *Client) NewRequest(ctx context.Context, method, path string, params *Params, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Class: ErrorClassInternal, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, params).String(), reader)
	if err != nil {
		return nil, &APIError{Class: ErrorClassInternal, Message: "create request", Err: err}
	}
	return req, nil
}

// Fetch performs a request and returns the raw response body.
func (c *Client) Fetch(ctx context.Context, method, path string, params *Params, body any) ([]byte, error) {
	req, err := c.NewRequest(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}
	return data, nil
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params *Params, out any) error {
	return c.SendJSON(ctx, http.MethodGet, path, params, nil, out)
}

// SendJSON performs a request with a JSON body and decodes the response into
// out. A nil out or an empty body skips decoding.
func (c *Client) SendJSON(ctx context.Context, method, path string, params *Params, body, out any) error {
	data, err := c.Fetch(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Class: ErrorClassInternal, Message: "decode response", Err: err}
	}
	return nil
}

// InvalidatePath drops cached responses for path and everything below it.
// It is a no-op without a cache.
func (c *Client) InvalidatePath(ctx context.Context, path string) {
	if c.cache == nil {
		return
	}
	n, err := c.cache.InvalidatePath(ctx, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cache invalidation failed")
		return
	}
	c.logger.Debug().Str("endpoint", path).Int("keys", n).Msg("Cache invalidated")
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
