package cache

import (
	"net/http"
	"time"
)

// Entry is a cached API response.
type Entry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ETag is sent back as If-None-Match on revalidation.
	ETag string `json:"etag,omitempty"`

	// Expires bounds how long the entry is kept in Redis.
	Expires time.Time `json:"expires"`

	// LastModified is sent back as If-Modified-Since when there is no ETag.
	LastModified time.Time `json:"last_modified,omitempty"`

	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	CachedAt   time.Time   `json:"cached_at"`
}

// IsExpired reports whether the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL is the remaining retention, never negative.
func (e *Entry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// Age is how long ago the response was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// Refresh moves Expires to the deadline announced by the headers of a 304
// revalidation. It reports false, leaving the entry untouched, when the
// headers carry no freshness information.
func (e *Entry) Refresh(h http.Header) bool {
	t, ok := freshness(h, time.Now())
	if !ok {
		return false
	}
	e.Expires = t
	return true
}
