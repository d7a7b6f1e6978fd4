package query

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Location is an owned, address-bar-like URL. Query rewrites replace the
// current history entry; only Navigate adds a new one.
type Location struct {
	mu        sync.Mutex
	u         *url.URL
	history   int
	replaces  int
	listeners []func(*url.URL)
}

// NewLocation parses raw (e.g. "/branches?page=2") into a Location.
func NewLocation(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return &Location{u: u, history: 1}, nil
}

// MustLocation is like NewLocation but panics on error.
func MustLocation(raw string) *Location {
	loc, err := NewLocation(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// URL returns a copy of the current URL.
func (l *Location) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.u
	return &u
}

// String returns the current URL as a string.
func (l *Location) String() string {
	return l.URL().String()
}

// RawQuery returns the current encoded query string.
func (l *Location) RawQuery() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.u.RawQuery
}

// Query returns the decoded query values.
func (l *Location) Query() url.Values {
	return l.URL().Query()
}

// ReplaceQuery swaps the query string in place without a new history entry.
func (l *Location) ReplaceQuery(rawQuery string) {
	l.mu.Lock()
	if l.u.RawQuery == rawQuery {
		l.mu.Unlock()
		return
	}
	l.u.RawQuery = rawQuery
	l.replaces++
	u, listeners := l.snapshot()
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// Navigate moves to path, pushing a new history entry. It satisfies the
// navigator used by the session to redirect to the login route.
func (l *Location) Navigate(_ context.Context, path string) error {
	target, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse navigation target: %w", err)
	}

	l.mu.Lock()
	l.u = l.u.ResolveReference(target)
	l.history++
	u, listeners := l.snapshot()
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
	return nil
}

// Path returns the current path.
func (l *Location) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.u.Path
}

// HistoryLen returns the number of history entries.
func (l *Location) HistoryLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history
}

// Replaces returns how many in-place query rewrites happened.
func (l *Location) Replaces() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaces
}

// OnChange registers fn to be called with a copy of the URL after every change.
func (l *Location) OnChange(fn func(*url.URL)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// snapshot must be called with l.mu held.
func (l *Location) snapshot() (*url.URL, []func(*url.URL)) {
	u := *l.u
	listeners := make([]func(*url.URL), len(l.listeners))
	copy(listeners, l.listeners)
	return &u, listeners
}

// rawSegments splits a raw query into its "k=v" segments, keeping order and
// encoding, and returns the decoded key of each.
func rawSegments(rawQuery string) (keys []string, segments []string) {
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		k, _, _ := strings.Cut(seg, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		keys = append(keys, k)
		segments = append(segments, seg)
	}
	return keys, segments
}
