package query

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnknownFilter is returned when setting a filter key the resource does not declare.
var ErrUnknownFilter = errors.New("unknown filter key")

// Synchronizer owns a State and writes it to a Location on every change.
// The Location is read once, at construction.
type Synchronizer struct {
	mu         sync.Mutex
	loc        *Location
	filterKeys []string
	managed    map[string]bool
	state      State
	listeners  []func(State)
	logger     zerolog.Logger
}

// NewSynchronizer reads the initial state from loc, applying defaults.
func NewSynchronizer(loc *Location, filterKeys []string) *Synchronizer {
	keys := make([]string, len(filterKeys))
	copy(keys, filterKeys)

	s := &Synchronizer{
		loc:        loc,
		filterKeys: keys,
		managed:    managedKeys(keys),
		state:      ParseState(loc.Query(), keys),
		logger:     log.With().Str("component", "query-sync").Logger(),
	}

	s.logger.Debug().
		Int("page", s.state.Page).
		Int("limit", s.state.Limit).
		Str("sort_by", s.state.SortBy).
		Msg("Query state initialized from location")
	return s
}

// State returns a deep copy of the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// FilterKeys returns the declared filter keys in order.
func (s *Synchronizer) FilterKeys() []string {
	out := make([]string, len(s.filterKeys))
	copy(out, s.filterKeys)
	return out
}

// Location returns the mirrored location.
func (s *Synchronizer) Location() *Location {
	return s.loc
}

// OnChange registers fn to receive a copy of the state after every change.
func (s *Synchronizer) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetPage sets the page. Values below 1 become 1.
func (s *Synchronizer) SetPage(page int) {
	s.Update(func(st *State) { st.Page = max(page, 1) })
}

// SetLimit sets the page size and returns to the first page. Values below 1
// become the default.
func (s *Synchronizer) SetLimit(limit int) {
	if limit < 1 {
		limit = DefaultLimit
	}
	s.Update(func(st *State) {
		if st.Limit != limit {
			st.Limit = limit
			st.Page = DefaultPage
		}
	})
}

// SetSearch sets the raw search input. Fetches follow the debounced value.
func (s *Synchronizer) SetSearch(search string) {
	s.Update(func(st *State) { st.Search = search })
}

// SetSortBy sets the sort.
func (s *Synchronizer) SetSortBy(sort SortBy) error {
	parsed, err := ParseSortBy(sort.String())
	if err != nil {
		return err
	}
	s.Update(func(st *State) { st.SortBy = parsed.String() })
	return nil
}

// SetFilter sets one declared filter. An empty value clears it.
func (s *Synchronizer) SetFilter(key, value string) error {
	if !s.isFilter(key) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	s.Update(func(st *State) { st.Filters[key] = value })
	return nil
}

// ResetFilters clears every filter.
func (s *Synchronizer) ResetFilters() {
	s.Update(func(st *State) {
		for _, k := range s.filterKeys {
			st.Filters[k] = ""
		}
	})
}

// Update applies fn to the state and writes the location once. Listeners
// are only notified when the state actually changed.
func (s *Synchronizer) Update(fn func(*State)) {
	s.mu.Lock()
	before := s.state.Clone()
	next := s.state.Clone()
	fn(&next)
	next.Page = max(next.Page, 1)
	if next.Limit < 1 {
		next.Limit = DefaultLimit
	}
	if next.Equal(before) {
		s.mu.Unlock()
		return
	}
	s.state = next
	// Written under the lock so the location always reflects the latest state.
	s.loc.ReplaceQuery(s.encode(next))
	locationWrites.Inc()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
}

func (s *Synchronizer) isFilter(key string) bool {
	for _, k := range s.filterKeys {
		if k == key {
			return true
		}
	}
	return false
}

// encode renders managed keys in canonical order followed by any keys the
// synchronizer does not own, unchanged.
func (s *Synchronizer) encode(st State) string {
	encoded := st.Params(s.filterKeys).Encode()

	keys, segments := rawSegments(s.loc.RawQuery())
	var foreign []string
	for i, k := range keys {
		if !s.managed[k] {
			foreign = append(foreign, segments[i])
		}
	}
	if len(foreign) == 0 {
		return encoded
	}
	if encoded == "" {
		return strings.Join(foreign, "&")
	}
	return encoded + "&" + strings.Join(foreign, "&")
}
