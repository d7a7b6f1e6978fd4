package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long an entry is retained when the response carries no
// freshness information. Entries are always revalidated before use.
const DefaultTTL = 10 * time.Minute

// ResponseToEntry converts an HTTP response to an Entry.
// The response body is read and restored for the caller.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		Body:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		CachedAt:   time.Now(),
		Expires:    parseExpires(resp.Header),
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	return entry, nil
}

// parseExpires derives the retention deadline from the response headers,
// falling back to DefaultTTL when they say nothing.
func parseExpires(h http.Header) time.Time {
	if t, ok := freshness(h, time.Now()); ok {
		return t
	}
	return time.Now().Add(DefaultTTL)
}

// freshness reads Cache-Control, then Expires. no-store yields now.
func freshness(h http.Header, now time.Time) (time.Time, bool) {
	if cc := h.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(strings.ToLower(directive))
			switch {
			case directive == "no-store":
				return now, true
			case strings.HasPrefix(directive, "max-age="):
				secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
				if err == nil && secs > 0 {
					return now.Add(time.Duration(secs) * time.Second), true
				}
			}
		}
	}

	if exp := h.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil && t.After(now) {
			return t, true
		}
	}
	return time.Time{}, false
}

// ShouldRevalidate reports whether the entry carries a validator usable for a
// conditional request.
func ShouldRevalidate(entry *Entry) bool {
	if entry == nil {
		return false
	}
	return entry.ETag != "" || !entry.LastModified.IsZero()
}

// AddConditionalHeaders sets If-None-Match (preferred) or If-Modified-Since.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}

// EntryToResponse rebuilds an HTTP response from a cached entry.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        entry.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
