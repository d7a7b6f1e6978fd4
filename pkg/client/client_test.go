package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/branchdesk/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) { return "", errors.New("store offline") }

func newTestClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(serverURL)
	cfg.Retry = fastRetry()
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		expectError bool
		errorMsg    string
	}{
		{name: "valid https", baseURL: "https://admin.example.com"},
		{name: "valid with path prefix", baseURL: "http://localhost:8080/backend"},
		{name: "empty", baseURL: "", expectError: true, errorMsg: "base url is required"},
		{name: "bad scheme", baseURL: "ftp://example.com", expectError: true, errorMsg: "must be http or https"},
		{name: "missing host", baseURL: "http://", expectError: true, errorMsg: "must include a host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(DefaultConfig(tt.baseURL))
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Error = %q, want to contain %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.BaseURL() != strings.TrimRight(tt.baseURL, "/") {
				t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.baseURL)
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.config.UserAgent == "" {
		t.Error("Expected default user agent")
	}
	if c.config.Retry.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want default", c.config.Retry.MaxAttempts)
	}
	if c.httpClient.Timeout <= 0 {
		t.Error("Expected a positive HTTP timeout")
	}
}

func TestDo_SetsStandardHeaders(t *testing.T) {
	tests := []struct {
		name       string
		tokens     TokenSource
		static     string
		wantBearer string
	}{
		{name: "token source", tokens: staticTokens("abc"), wantBearer: "Bearer abc"},
		{name: "static fallback", static: "public-token", wantBearer: "Bearer public-token"},
		{name: "empty source falls back", tokens: staticTokens(""), static: "public-token", wantBearer: "Bearer public-token"},
		{name: "failing source falls back", tokens: failingTokens{}, static: "public-token", wantBearer: "Bearer public-token"},
		{name: "anonymous", wantBearer: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got http.Header
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Clone()
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, func(cfg *Config) {
				cfg.Tokens = tt.tokens
				cfg.StaticToken = tt.static
				cfg.UserAgent = "branchdesk-test/1.0"
			})

			if err := c.GetJSON(context.Background(), "/api/v1/branch", nil, nil); err != nil {
				t.Fatalf("GetJSON() error = %v", err)
			}

			if got.Get("Authorization") != tt.wantBearer {
				t.Errorf("Authorization = %q, want %q", got.Get("Authorization"), tt.wantBearer)
			}
			if got.Get("Accept") != "application/json" {
				t.Errorf("Accept = %q, want application/json", got.Get("Accept"))
			}
			if got.Get("User-Agent") != "branchdesk-test/1.0" {
				t.Errorf("User-Agent = %q", got.Get("User-Agent"))
			}
			if got.Get(RequestIDHeader) == "" {
				t.Error("Expected a request ID header")
			}
		})
	}
}

func TestGetJSON_EncodesOrderedParams(t *testing.T) {
	var rawQuery, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		path = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/backend", nil)

	params := NewParams().
		Set("page", 2).
		Set("limit", 10).
		Set("search", "").
		Set("sort_by", "name|desc").
		Set("is_active", true)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), "/api/v1/branch", params, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if path != "/backend/api/v1/branch" {
		t.Errorf("path = %q, want base path prefix kept", path)
	}
	if rawQuery != "page=2&limit=10&sort_by=name%7Cdesc&is_active=true" {
		t.Errorf("query = %q", rawQuery)
	}
	if !out.OK {
		t.Error("Expected response to be decoded")
	}
}

func TestDo_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantClass   ErrorClass
		wantCode    int
		wantMessage string
		wantField   string
	}{
		{
			name:        "validation with field errors",
			status:      http.StatusUnprocessableEntity,
			body:        `{"code":422,"message":"The given data was invalid","errors":[{"field":"email","message":"Email is taken"}]}`,
			wantClass:   ErrorClassValidation,
			wantCode:    422,
			wantMessage: "The given data was invalid",
			wantField:   "Email is taken",
		},
		{
			name:        "bad request with field errors upgrades to validation",
			status:      http.StatusBadRequest,
			body:        `{"message":"invalid","errors":[{"field":"email","message":"required"}]}`,
			wantClass:   ErrorClassValidation,
			wantCode:    400,
			wantMessage: "invalid",
			wantField:   "required",
		},
		{
			name:        "not found without envelope",
			status:      http.StatusNotFound,
			body:        `<html>nope</html>`,
			wantClass:   ErrorClassClient,
			wantCode:    404,
			wantMessage: "Not Found",
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			body:        `{"code":403,"message":"Forbidden branch"}`,
			wantClass:   ErrorClassClient,
			wantCode:    403,
			wantMessage: "Forbidden branch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)
			err := c.GetJSON(context.Background(), "/api/v1/branch/1", nil, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T: %v", err, err)
			}
			if apiErr.Class != tt.wantClass {
				t.Errorf("Class = %s, want %s", apiErr.Class, tt.wantClass)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", apiErr.Code, tt.wantCode)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if got := apiErr.FieldMessage("email"); got != tt.wantField {
				t.Errorf("FieldMessage(email) = %q, want %q", got, tt.wantField)
			}
			if calls.Load() != 1 {
				t.Errorf("4xx must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"id":7}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var out struct {
		Data struct {
			ID int `json:"id"`
		} `json:"data"`
	}
	if err := c.GetJSON(context.Background(), "/api/v1/branch/7", nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if out.Data.ID != 7 {
		t.Errorf("ID = %d, want 7", out.Data.ID)
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":500,"message":"database down"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	err := c.GetJSON(context.Background(), "/api/v1/branch", nil, nil)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	apiErr := AsAPIError(err)
	if apiErr.Class != ErrorClassServer || apiErr.Message != "database down" {
		t.Errorf("AsAPIError() = %+v", apiErr)
	}
	if calls.Load() != int32(fastRetry().MaxAttempts) {
		t.Errorf("calls = %d, want %d", calls.Load(), fastRetry().MaxAttempts)
	}
}

func TestDo_DefaultConfigSendsOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := New(DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	err = c.GetJSON(context.Background(), "/api/v1/branch", nil, nil)
	if AsAPIError(err).Class != ErrorClassServer {
		t.Fatalf("Expected server error, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected the first failure to propagate, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDo_RetryRewindsBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(b)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	payload := map[string]string{"name": "North"}
	var out map[string]string
	if err := c.SendJSON(context.Background(), http.MethodPut, "/api/v1/branch/1", nil, payload, &out); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[1] == "" {
		t.Errorf("Expected identical non-empty bodies on both attempts, got %q", bodies)
	}
	if out["name"] != "North" {
		t.Errorf("out = %v", out)
	}
}

func TestDo_PostNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	err := c.SendJSON(context.Background(), http.MethodPost, "/api/v1/branch", nil, map[string]string{"name": "x"}, nil)

	if apiErr := AsAPIError(err); apiErr.Class != ErrorClassServer {
		t.Errorf("Class = %s, want server", apiErr.Class)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("POST must be sent once, not retried")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDo_UnauthorizedHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"message":"Token expired"}`))
	}))
	defer server.Close()

	var hookCalls atomic.Int32
	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.OnUnauthorized = func(ctx context.Context, err *APIError) {
			hookCalls.Add(1)
			if err.Message != "Token expired" {
				t.Errorf("hook error message = %q", err.Message)
			}
		}
	})

	err := c.GetJSON(context.Background(), "/api/v1/branch", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("Expected unauthorized error, got %v", err)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("hook calls = %d, want 1", hookCalls.Load())
	}

	err = c.GetJSON(WithoutUnauthorizedHook(context.Background()), "/auth/login", nil, nil)
	if !IsUnauthorized(err) {
		t.Fatalf("Expected unauthorized error, got %v", err)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("hook must be skipped for marked contexts, calls = %d", hookCalls.Load())
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url, nil)
	err := c.GetJSON(context.Background(), "/api/v1/branch", nil, nil)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected network errors to be retried until exhausted, got %v", err)
	}
	if apiErr := AsAPIError(err); apiErr.Class != ErrorClassNetwork {
		t.Errorf("Class = %s, want network", apiErr.Class)
	}
}

func TestDo_CancelledContextNotRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.GetJSON(ctx, "/api/v1/branch", nil, nil) }()

	for calls.Load() == 0 {
		runtime.Gosched()
	}
	cancel()

	err := <-done
	if err == nil {
		t.Fatal("Expected error after cancel")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Cancelled requests must not be retried: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSendJSON_EmptyBody(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var out map[string]any
	if err := c.SendJSON(context.Background(), http.MethodDelete, "/api/v1/branch/3", nil, nil, &out); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", method)
	}
	if out != nil {
		t.Errorf("out = %v, want untouched", out)
	}
}

func TestSendJSON_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var out map[string]any
	err := c.GetJSON(context.Background(), "/api/v1/branch/1", nil, &out)
	if apiErr := AsAPIError(err); apiErr == nil || apiErr.Class != ErrorClassInternal {
		t.Errorf("Expected internal decode error, got %v", err)
	}
}

func TestDo_CacheRevalidation(t *testing.T) {
	redisClient := setupTestRedis(t)

	var calls, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 1, "name": "North"}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Cache = cache.NewManager(redisClient)
		cfg.Tokens = staticTokens("abc")
	})

	ctx := context.Background()
	var first, second map[string]any
	if err := c.GetJSON(ctx, "/api/v1/branch/1", nil, &first); err != nil {
		t.Fatalf("first GetJSON() error = %v", err)
	}
	if err := c.GetJSON(ctx, "/api/v1/branch/1", nil, &second); err != nil {
		t.Fatalf("second GetJSON() error = %v", err)
	}

	if calls.Load() != 2 || conditional.Load() != 1 {
		t.Errorf("calls = %d, conditional = %d, want 2 and 1", calls.Load(), conditional.Load())
	}
	if second["data"].(map[string]any)["name"] != "North" {
		t.Errorf("Expected cached body on 304, got %v", second)
	}

	// A write invalidates the path so the next read is unconditional.
	c.InvalidatePath(ctx, "/api/v1/branch")
	if err := c.GetJSON(ctx, "/api/v1/branch/1", nil, nil); err != nil {
		t.Fatalf("third GetJSON() error = %v", err)
	}
	if conditional.Load() != 1 {
		t.Errorf("Expected unconditional request after invalidation, conditional = %d", conditional.Load())
	}
}

func TestInvalidatePath_NoCache(t *testing.T) {
	c := newTestClient(t, "http://localhost", nil)
	// Must not panic without a cache.
	c.InvalidatePath(context.Background(), "/api/v1/branch")
}
