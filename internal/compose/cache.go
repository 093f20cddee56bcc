package compose

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// Observer receives instrumentation events from the engine.
// Implementations must be safe for concurrent use.
type Observer interface {
	CacheHit(scenario string)
	CacheMiss(scenario string)
	TableLoaded(scenario string, elapsed time.Duration, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) CacheHit(string)                           {}
func (NopObserver) CacheMiss(string)                          {}
func (NopObserver) TableLoaded(string, time.Duration, error) {}

// tableCache holds the scenario tables of one composition request.
//
// A cache is created per request and discarded with it, so concurrent
// requests never observe each other's tables. Cached tables are read-only
// and may be shared between layers without copying.
type tableCache struct {
	src         source.Source
	year        int
	weatherYear int
	obs         Observer

	mu     sync.Mutex
	tables map[string]*table.Table
}

func newTableCache(src source.Source, year, weatherYear int, obs Observer) *tableCache {
	return &tableCache{
		src:         src,
		year:        year,
		weatherYear: weatherYear,
		obs:         obs,
		tables:      make(map[string]*table.Table),
	}
}

// prefetch loads scenarios concurrently, at most limit at a time. It fails
// with the first load error.
func (c *tableCache) prefetch(ctx context.Context, scenarios []string, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, s := range scenarios {
		s := s
		g.Go(func() error {
			_, err := c.get(gctx, s)
			return err
		})
	}
	return g.Wait()
}

// get returns the table for scenario, loading it on first use.
func (c *tableCache) get(ctx context.Context, scenario string) (*table.Table, error) {
	c.mu.Lock()
	if tbl, ok := c.tables[scenario]; ok {
		c.mu.Unlock()
		c.obs.CacheHit(scenario)
		return tbl, nil
	}
	c.mu.Unlock()
	c.obs.CacheMiss(scenario)

	start := time.Now()
	tbl, err := c.src.Load(ctx, c.year, scenario)
	c.obs.TableLoaded(scenario, time.Since(start), err)
	if err != nil {
		return nil, newLoadError(c.year, scenario, err)
	}

	if c.weatherYear != 0 {
		tbl = tbl.FilterWeatherYear(c.weatherYear)
		if tbl.Len() == 0 {
			return nil, &Error{
				Code:     ErrCodeEmptyWeatherYear,
				Message:  fmt.Sprintf("no rows for weather year %d", c.weatherYear),
				Scenario: scenario,
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent load of the same scenario may have finished first; keep
	// the first table so every layer sees one instance.
	if existing, ok := c.tables[scenario]; ok {
		return existing, nil
	}
	c.tables[scenario] = tbl
	return tbl, nil
}

// len returns the number of cached tables.
func (c *tableCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}
