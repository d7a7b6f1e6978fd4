package listview

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/query"
)

// Options configures a View.
type Options struct {
	// Resource names the list in fetch keys, logs and metrics.
	Resource string

	// FilterKeys are the resource's filter query keys, in URL order.
	FilterKeys []string

	// Debounce is the search settle window (default 300ms).
	Debounce time.Duration

	// Clock drives the debounce timer (default: real time).
	Clock query.Clock
}

// View is one mounted list: query state mirrored into a Location, a
// debounced search, and an Orchestrator fetching the current page.
type View[T any] struct {
	sync      *query.Synchronizer
	debouncer *query.Debouncer
	orch      *Orchestrator[T]
	resource  string

	mu         sync.Mutex
	debounced  string
	lastSearch string
	closed     bool
}

// NewView builds the view from loc and dispatches the first fetch.
func NewView[T any](loc *query.Location, fetch Fetcher[T], opts Options) *View[T] {
	s := query.NewSynchronizer(loc, opts.FilterKeys)
	initial := s.State()

	v := &View[T]{
		sync:       s,
		orch:       NewOrchestrator(opts.Resource, fetch),
		resource:   opts.Resource,
		debounced:  initial.Search,
		lastSearch: initial.Search,
	}
	v.debouncer = query.NewDebouncer(opts.Debounce, opts.Clock, v.commitSearch)

	s.OnChange(v.stateChanged)
	v.refetch()
	return v
}

// stateChanged reads the current search rather than the delivered state:
// listener calls run outside the synchronizer's lock and may arrive out of
// order, e.g. a debounce commit racing a newer keystroke.
func (v *View[T]) stateChanged(query.State) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	search := v.sync.State().Search
	if search != v.lastSearch {
		v.lastSearch = search
		v.debouncer.Push(search)
	}
	v.mu.Unlock()

	v.refetch()
}

// commitSearch stores the settled search and returns to the first page.
func (v *View[T]) commitSearch(search string) {
	v.mu.Lock()
	if v.closed || search == v.debounced {
		v.mu.Unlock()
		return
	}
	v.debounced = search
	v.mu.Unlock()

	v.sync.Update(func(st *query.State) { st.Page = query.DefaultPage })
	v.refetch()
}

func (v *View[T]) refetch() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	debounced := v.debounced
	v.mu.Unlock()

	st := v.sync.State()
	key := query.FetchKey(v.resource, st, debounced)
	v.orch.Request(key, RequestParams(st, debounced, v.sync.FilterKeys()))
}

// RequestParams renders the request query for st, using the debounced
// search instead of the raw input.
func RequestParams(st query.State, debouncedSearch string, filterKeys []string) *client.Params {
	st.Search = debouncedSearch
	return st.Params(filterKeys)
}

// Snapshot returns the orchestrator state.
func (v *View[T]) Snapshot() Snapshot[T] {
	return v.orch.Snapshot()
}

// State returns a copy of the query state.
func (v *View[T]) State() query.State {
	return v.sync.State()
}

// DebouncedSearch returns the search value fetches currently use.
func (v *View[T]) DebouncedSearch() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.debounced
}

// Location returns the mirrored location.
func (v *View[T]) Location() *query.Location {
	return v.sync.Location()
}

// Next moves to the following page when the server reports one. It is a
// no-op before the first successful fetch.
func (v *View[T]) Next() bool {
	snap := v.orch.Snapshot()
	if !snap.HasData || !snap.Data.Meta.HasNext() {
		return false
	}
	v.sync.SetPage(v.sync.State().Page + 1)
	return true
}

// Prev moves to the preceding page when page > 1.
func (v *View[T]) Prev() bool {
	page := v.sync.State().Page
	if page <= 1 {
		return false
	}
	v.sync.SetPage(page - 1)
	return true
}

// GoTo jumps to page, clamped to [1, last page] once the last page is known.
func (v *View[T]) GoTo(page int) {
	snap := v.orch.Snapshot()
	if snap.HasData && snap.Data.Meta.Known() {
		page = min(page, snap.Data.Meta.LastPage)
	}
	v.sync.SetPage(max(page, 1))
}

// SetSearch records raw search input; the fetch follows after the debounce window.
func (v *View[T]) SetSearch(search string) {
	v.sync.SetSearch(search)
}

// FlushSearch commits pending search input immediately.
func (v *View[T]) FlushSearch() {
	v.debouncer.Flush()
}

// SetLimit changes the page size and returns to the first page.
func (v *View[T]) SetLimit(limit int) {
	v.sync.SetLimit(limit)
}

// SetSortBy changes the sort.
func (v *View[T]) SetSortBy(sort query.SortBy) error {
	return v.sync.SetSortBy(sort)
}

// SetFilter sets one filter.
func (v *View[T]) SetFilter(key, value string) error {
	return v.sync.SetFilter(key, value)
}

// ResetFilters clears all filters.
func (v *View[T]) ResetFilters() {
	v.sync.ResetFilters()
}

// Refresh refetches the current page.
func (v *View[T]) Refresh() {
	v.orch.Refresh()
}

// OnChange registers fn for orchestrator changes.
func (v *View[T]) OnChange(fn func(Snapshot[T])) {
	v.orch.OnChange(fn)
}

// Wait blocks until the current fetch settles.
func (v *View[T]) Wait(ctx context.Context) error {
	return v.orch.Wait(ctx)
}

// Close tears the view down: the pending debounce is dropped and in-flight
// results are suppressed.
func (v *View[T]) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.debouncer.Close()
	v.orch.Close()
}
