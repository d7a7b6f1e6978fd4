// Package query owns list query state (page, limit, search, sort and
// filters) and mirrors it into a Location's query string.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/branchdesk/pkg/client"
)

// Query string keys managed by the synchronizer.
const (
	KeyPage   = "page"
	KeyLimit  = "limit"
	KeySearch = "search"
	KeySortBy = "sort_by"
)

// Defaults applied when a key is absent or invalid.
const (
	DefaultPage   = 1
	DefaultLimit  = 10
	DefaultSortBy = "id|asc"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// ErrInvalidSort is returned for sort expressions not of the form field|dir.
var ErrInvalidSort = errors.New("invalid sort expression")

// SortBy is a single-field sort, written as "field|asc" or "field|desc".
type SortBy struct {
	Field     string
	Direction string
}

// ParseSortBy parses "field|dir". A missing direction means ascending.
func ParseSortBy(s string) (SortBy, error) {
	field, dir, found := strings.Cut(strings.TrimSpace(s), "|")
	field = strings.TrimSpace(field)
	if field == "" {
		return SortBy{}, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}

	dir = strings.ToLower(strings.TrimSpace(dir))
	if !found || dir == "" {
		dir = Asc
	}
	if dir != Asc && dir != Desc {
		return SortBy{}, fmt.Errorf("%w: direction %q", ErrInvalidSort, dir)
	}
	return SortBy{Field: field, Direction: dir}, nil
}

// String formats the sort as "field|dir".
func (s SortBy) String() string {
	return s.Field + "|" + s.Direction
}

// Toggle returns the opposite direction on the same field.
func (s SortBy) Toggle() SortBy {
	if s.Direction == Desc {
		return SortBy{Field: s.Field, Direction: Asc}
	}
	return SortBy{Field: s.Field, Direction: Desc}
}

// State is the query of a list view.
type State struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	Filters map[string]string
}

// DefaultState returns the defaults with every filter key set to "".
func DefaultState(filterKeys []string) State {
	s := State{
		Page:    DefaultPage,
		Limit:   DefaultLimit,
		SortBy:  DefaultSortBy,
		Filters: make(map[string]string, len(filterKeys)),
	}
	for _, k := range filterKeys {
		s.Filters[k] = ""
	}
	return s
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Filters = make(map[string]string, len(s.Filters))
	for k, v := range s.Filters {
		out.Filters[k] = v
	}
	return out
}

// Equal reports whether two states are identical.
func (s State) Equal(o State) bool {
	if s.Page != o.Page || s.Limit != o.Limit || s.Search != o.Search || s.SortBy != o.SortBy {
		return false
	}
	if len(s.Filters) != len(o.Filters) {
		return false
	}
	for k, v := range s.Filters {
		if ov, ok := o.Filters[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// ParseState reads a state from query values. Absent, unparseable or
// out-of-range values fall back to the defaults.
func ParseState(values url.Values, filterKeys []string) State {
	s := DefaultState(filterKeys)

	if n, err := strconv.Atoi(values.Get(KeyPage)); err == nil && n >= 1 {
		s.Page = n
	}
	if n, err := strconv.Atoi(values.Get(KeyLimit)); err == nil && n >= 1 {
		s.Limit = n
	}
	s.Search = values.Get(KeySearch)
	if sort, err := ParseSortBy(values.Get(KeySortBy)); err == nil {
		s.SortBy = sort.String()
	}
	for _, k := range filterKeys {
		s.Filters[k] = values.Get(k)
	}
	return s
}

// Params renders the state in canonical order: page, limit, search, sort_by,
// then filterKeys in order. Empty strings are omitted.
func (s State) Params(filterKeys []string) *client.Params {
	p := client.NewParams().
		Set(KeyPage, s.Page).
		Set(KeyLimit, s.Limit).
		Set(KeySearch, s.Search).
		Set(KeySortBy, s.SortBy)
	for _, k := range filterKeys {
		p.Set(k, s.Filters[k])
	}
	return p
}

func managedKeys(filterKeys []string) map[string]bool {
	keys := map[string]bool{KeyPage: true, KeyLimit: true, KeySearch: true, KeySortBy: true}
	for _, k := range filterKeys {
		keys[k] = true
	}
	return keys
}
