package pagination

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultItemsPerPage is the page size of the RateBeer rating history.
const DefaultItemsPerPage = 100

// Prometheus metrics for page fetching.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratebeer_pages_fetched_total",
		Help: "Total page requests by outcome",
	}, []string{"outcome"})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ratebeer_page_fetch_duration_seconds",
		Help:    "Duration of a single page request in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// Config holds fetcher configuration
type Config struct {
	// ItemsPerPage is the page size used to derive the page count
	ItemsPerPage int
	// MaxConcurrency is how many pages may be in flight ahead of the consumer.
	// 1 means a page is requested only after the previous one was consumed.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// Dispatch runs progress callbacks on the designated callback context.
	// It must run callbacks serially in submission order. Nil runs them inline.
	Dispatch func(fn func())
}

// DefaultConfig returns the default configuration for the rating history.
func DefaultConfig() Config {
	return Config{
		ItemsPerPage:   DefaultItemsPerPage,
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFunc fetches the items of one page. Page numbers start at 1.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// ProgressFunc receives the completed share of pages in percent.
type ProgressFunc func(percent float64)

// PageCount returns ceil(total/perPage), or 0 when there is nothing to fetch.
func PageCount(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Progress returns the percentage reported after the page with zero-based index has been merged.
func Progress(index, pageCount int) float64 {
	return float64(index+1) / float64(pageCount) * 100
}

type pageResult[T any] struct {
	items []T
	err   error
}

// Fetcher requests all pages of a paginated resource in order.
type Fetcher[T any] struct {
	fetch  PageFunc[T]
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new page fetcher
func NewFetcher[T any](fetch PageFunc[T], config Config) *Fetcher[T] {
	if config.ItemsPerPage <= 0 {
		config.ItemsPerPage = DefaultItemsPerPage
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Fetcher[T]{
		fetch:  fetch,
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// All returns a lazy sequence of every item of the total items, page by page.
//
// Nothing is requested until the sequence is ranged over. A failed page ends
// the sequence with its error. Breaking out of the loop or cancelling ctx stops
// further page requests and aborts pages already in flight.
func (f *Fetcher[T]) All(ctx context.Context, total int, onProgress ProgressFunc) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		pageCount := PageCount(total, f.config.ItemsPerPage)
		if pageCount == 0 {
			return
		}

		start := time.Now()
		f.logger.Info().
			Int("total_items", total).
			Int("total_pages", pageCount).
			Int("max_concurrency", f.config.MaxConcurrency).
			Msg("Starting page fetch")

		ctx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer wg.Wait()
		defer cancel()

		slots := make([]chan pageResult[T], pageCount)
		launched := 0
		launchUpTo := func(limit int) {
			for launched < pageCount && launched < limit && ctx.Err() == nil {
				slot := make(chan pageResult[T], 1)
				slots[launched] = slot
				wg.Add(1)
				go f.fetchPage(ctx, launched+1, slot, &wg)
				launched++
			}
		}

		for index := 0; index < pageCount; index++ {
			launchUpTo(index + f.config.MaxConcurrency)

			var result pageResult[T]
			select {
			case result = <-slots[index]:
			case <-ctx.Done():
				yield(zero, ctx.Err())
				return
			}
			slots[index] = nil

			if result.err != nil {
				f.logger.Warn().
					Err(result.err).
					Int("page", index+1).
					Int("total_pages", pageCount).
					Msg("Page fetch failed - aborting")
				yield(zero, fmt.Errorf("fetch page %d of %d: %w", index+1, pageCount, result.err))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			percent := Progress(index, pageCount)
			if onProgress != nil {
				f.dispatch(func() { onProgress(percent) })
			}
			f.logger.Debug().
				Int("page", index+1).
				Int("items", len(result.items)).
				Float64("progress_pct", percent).
				Msg("Fetch progress")

			for _, item := range result.items {
				if !yield(item, nil) {
					f.logger.Debug().
						Int("page", index+1).
						Msg("Consumer stopped - cancelling remaining pages")
					return
				}
			}
		}

		f.logger.Info().
			Int("pages", pageCount).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete")
	}
}

// fetchPage requests a single page and delivers it to its slot.
func (f *Fetcher[T]) fetchPage(ctx context.Context, page int, slot chan<- pageResult[T], wg *sync.WaitGroup) {
	defer wg.Done()

	if err := ctx.Err(); err != nil {
		slot <- pageResult[T]{err: err}
		return
	}

	pageCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	started := time.Now()
	items, err := f.fetch(pageCtx, page)
	pageFetchDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		pagesFetchedTotal.WithLabelValues("error").Inc()
	} else {
		pagesFetchedTotal.WithLabelValues("success").Inc()
	}

	slot <- pageResult[T]{items: items, err: err}
}

func (f *Fetcher[T]) dispatch(fn func()) {
	if f.config.Dispatch == nil {
		fn()
		return
	}
	f.config.Dispatch(fn)
}
