// Package listview runs paginated list views: it turns query state into
// fetches, applies only the latest response and exposes next/prev paging.
package listview

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads one page for params. It must honour ctx cancellation.
type Fetcher[T any] func(ctx context.Context, params *client.Params) (pagination.Result[T], error)

// Snapshot is the consumer-visible state of an Orchestrator.
type Snapshot[T any] struct {
	// Data is the latest successful result. It survives failed refetches.
	Data pagination.Result[T]

	// HasData is false until the first successful fetch.
	HasData bool

	// Pending is true while the latest dispatch is unresolved.
	Pending bool

	// Err is the latest failure, cleared by the next success.
	Err *client.APIError

	// Key is the last requested fetch key.
	Key string
}

// Orchestrator dispatches fetches per key and applies results last-key-wins:
// a response is applied only if no newer dispatch happened since it started.
type Orchestrator[T any] struct {
	fetch  Fetcher[T]
	name   string
	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	key       string
	params    *client.Params
	data      pagination.Result[T]
	hasData   bool
	pending   bool
	err       *client.APIError
	idle      chan struct{}
	closed    bool
	listeners []func(Snapshot[T])
}

// NewOrchestrator creates an orchestrator; name labels logs and metrics.
func NewOrchestrator[T any](name string, fetch Fetcher[T]) *Orchestrator[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator[T]{
		fetch:  fetch,
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		data:   pagination.Empty[T](),
		logger: log.With().Str("component", "list-fetch").Str("resource", name).Logger(),
	}
}

// Request dispatches a fetch for key unless key is already the last
// requested one. It reports whether a fetch was dispatched.
func (o *Orchestrator[T]) Request(key string, params *client.Params) bool {
	o.mu.Lock()
	if o.closed || (key == o.key && o.gen > 0) {
		o.mu.Unlock()
		return false
	}
	snap, listeners := o.dispatchLocked(key, params)
	o.mu.Unlock()

	notify(listeners, snap)
	return true
}

// Refresh re-dispatches the last requested key.
func (o *Orchestrator[T]) Refresh() bool {
	o.mu.Lock()
	if o.closed || o.gen == 0 {
		o.mu.Unlock()
		return false
	}
	snap, listeners := o.dispatchLocked(o.key, o.params)
	o.mu.Unlock()

	notify(listeners, snap)
	return true
}

// dispatchLocked must be called with o.mu held.
func (o *Orchestrator[T]) dispatchLocked(key string, params *client.Params) (Snapshot[T], []func(Snapshot[T])) {
	o.gen++
	gen := o.gen
	o.key = key
	o.params = params
	o.pending = true
	if o.idle == nil {
		o.idle = make(chan struct{})
	}

	fetchesStarted.WithLabelValues(o.name).Inc()
	o.logger.Debug().Str("fetch_key", key).Uint64("generation", gen).Msg("Dispatching list fetch")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		start := time.Now()
		v, err, shared := o.group.Do(key, func() (any, error) {
			return o.fetch(o.ctx, params)
		})
		if shared {
			fetchesShared.WithLabelValues(o.name).Inc()
		}
		fetchDuration.WithLabelValues(o.name).Observe(time.Since(start).Seconds())

		var result pagination.Result[T]
		if err == nil {
			result, _ = v.(pagination.Result[T])
		}
		o.resolve(gen, key, result, err)
	}()

	return o.snapshotLocked(), o.copyListeners()
}

func (o *Orchestrator[T]) resolve(gen uint64, key string, result pagination.Result[T], err error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		fetchResults.WithLabelValues(o.name, "suppressed").Inc()
		return
	}
	if gen != o.gen {
		o.mu.Unlock()
		fetchResults.WithLabelValues(o.name, "stale").Inc()
		o.logger.Debug().Str("fetch_key", key).Uint64("generation", gen).Msg("Discarding stale list response")
		return
	}

	o.pending = false
	if err != nil {
		apiErr := client.AsAPIError(err)
		if apiErr.Class == client.ErrorClassUnauthorized {
			// The session teardown handles 401; it is not a list error.
			fetchResults.WithLabelValues(o.name, "unauthorized").Inc()
		} else {
			o.err = apiErr
			fetchResults.WithLabelValues(o.name, "error").Inc()
			o.logger.Warn().
				Err(err).
				Str("fetch_key", key).
				Str("error_class", string(apiErr.Class)).
				Msg("List fetch failed - keeping previous page")
		}
	} else {
		if result.Items == nil {
			result.Items = []T{}
		}
		o.data = result
		o.hasData = true
		o.err = nil
		fetchResults.WithLabelValues(o.name, "success").Inc()
	}

	if o.idle != nil {
		close(o.idle)
		o.idle = nil
	}
	snap := o.snapshotLocked()
	listeners := o.copyListeners()
	o.mu.Unlock()

	notify(listeners, snap)
}

// Snapshot returns the current state.
func (o *Orchestrator[T]) Snapshot() Snapshot[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Data:    o.data,
		HasData: o.hasData,
		Pending: o.pending,
		Err:     o.err,
		Key:     o.key,
	}
}

func (o *Orchestrator[T]) copyListeners() []func(Snapshot[T]) {
	out := make([]func(Snapshot[T]), len(o.listeners))
	copy(out, o.listeners)
	return out
}

func notify[T any](listeners []func(Snapshot[T]), snap Snapshot[T]) {
	for _, fn := range listeners {
		fn(snap)
	}
}

// OnChange registers fn to be called after every dispatch and every applied result.
func (o *Orchestrator[T]) OnChange(fn func(Snapshot[T])) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Wait blocks until no dispatch is pending or ctx is done.
func (o *Orchestrator[T]) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		idle := o.idle
		o.mu.Unlock()

		if idle == nil {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels in-flight fetches and suppresses their results. It waits
// for fetch goroutines to return.
func (o *Orchestrator[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.pending = false
	if o.idle != nil {
		close(o.idle)
		o.idle = nil
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}
