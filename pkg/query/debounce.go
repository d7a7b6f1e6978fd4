package query

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the settle window for search input.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer is a persistent trailing-edge debounce controller for one field.
// Each Push restarts the window; commit runs once the input has been quiet
// for the full delay.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	clock   Clock
	commit  func(string)
	timer   Timer
	pending string
	has     bool
	gen     uint64
	closed  bool
	logger  zerolog.Logger
}

// NewDebouncer creates a debouncer. A nil clock uses RealClock; a
// non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration, clock Clock, commit func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Debouncer{
		delay:  delay,
		clock:  clock,
		commit: commit,
		logger: log.With().Str("component", "debounce").Logger(),
	}
}

// Push records v and restarts the window, cancelling any pending commit.
func (d *Debouncer) Push(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if d.timer != nil && d.timer.Stop() {
		debounceCancelled.Inc()
	}
	d.gen++
	gen := d.gen
	d.pending = v
	d.has = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen || !d.has {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.has = false
	d.timer = nil
	d.mu.Unlock()

	d.run(v)
}

func (d *Debouncer) run(v string) {
	debounceCommits.Inc()
	d.logger.Debug().Str("value", v).Msg("Debounced value committed")
	d.commit(v)
}

// Flush commits the pending value now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.closed || !d.has {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	v := d.pending
	d.has = false
	d.mu.Unlock()

	d.run(v)
}

// Cancel drops the pending value without committing it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.has
}

// Close cancels any pending commit; later pushes are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.closed = true
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		if d.timer.Stop() {
			debounceCancelled.Inc()
		}
		d.timer = nil
	}
	d.gen++
	d.has = false
}
