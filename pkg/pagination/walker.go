package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds walker configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages fetched in parallel.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout per page fetch.
	Timeout time.Duration `yaml:"timeout"`

	// MaxPages stops the walk after this many pages (0 = unlimited).
	MaxPages int `yaml:"max_pages"`
}

// DefaultConfig returns a configuration that keeps load on the API modest.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFunc fetches a single page (1-based).
type PageFunc[T any] func(ctx context.Context, page int) (Result[T], error)

// Walker fetches every page of a collection.
type Walker[T any] struct {
	fetch  PageFunc[T]
	config Config
}

// NewWalker creates a walker over fetch.
func NewWalker[T any](fetch PageFunc[T], config Config) *Walker[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Walker[T]{fetch: fetch, config: config}
}

// All fetches page 1, then pages 2..LastPage concurrently, and returns the
// items in page order together with the first page's metadata. Any page
// failure cancels the remaining fetches.
func (w *Walker[T]) All(ctx context.Context) ([]T, Meta, error) {
	start := time.Now()

	first, err := w.page(ctx, 1)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("fetch first page: %w", err)
	}

	lastPage := first.Meta.LastPage
	if w.config.MaxPages > 0 && lastPage > w.config.MaxPages {
		lastPage = w.config.MaxPages
	}

	if lastPage <= 1 {
		log.Debug().Int("pages", 1).Dur("duration", time.Since(start)).Msg("Walk complete (single page)")
		return first.Items, first.Meta, nil
	}

	log.Debug().Int("total_pages", lastPage).Msg("Starting parallel page walk")

	pages := make([][]T, lastPage+1)
	pages[1] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.MaxConcurrency)

	for p := 2; p <= lastPage; p++ {
		g.Go(func() error {
			res, err := w.page(gctx, p)
			if err != nil {
				log.Warn().Err(err).Int("page", p).Msg("Page fetch failed")
				return fmt.Errorf("fetch page %d: %w", p, err)
			}
			pages[p] = res.Items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, first.Meta, err
	}

	items := make([]T, 0, max(first.Meta.Total, 0))
	for _, page := range pages[1:] {
		items = append(items, page...)
	}

	log.Debug().
		Int("pages", lastPage).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return items, first.Meta, nil
}

func (w *Walker[T]) page(ctx context.Context, page int) (Result[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()
	return w.fetch(pageCtx, page)
}
