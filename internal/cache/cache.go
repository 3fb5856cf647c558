// Package cache holds parsed index records per archive coordinate with a
// freshness deadline. It is the only shared mutable state in the query
// path.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/debtools/madison/internal/archive"
	"github.com/debtools/madison/internal/control"
	"github.com/debtools/madison/internal/fetch"
)

// Fetcher retrieves the decompressed index bytes for one coordinate.
// *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, coord archive.Coordinate) ([]byte, error)
}

// entry is one cached index. Entries are replaced wholesale on refresh,
// never mutated, so returned record slices stay valid without copying.
type entry struct {
	records   []control.Record
	fetchedAt time.Time
	deadline  time.Time
}

// Cache caches parsed records per coordinate. Reads are concurrent; at
// most one refresh per coordinate is in flight at a time. Callers hitting
// an expired coordinate join the in-flight refresh rather than being
// served the stale value; the refresh itself falls back to the stale
// entry when the fetch fails, so joining is bounded by the fetch timeout.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *log.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[archive.Coordinate]*entry
	group   singleflight.Group
}

// New returns an empty cache. Entries expire ttl after they were fetched;
// expiry is checked lazily on read.
func New(fetcher Fetcher, ttl time.Duration, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[archive.Coordinate]*entry),
	}
}

// GetOrFetch returns the records for coord, fetching and parsing the
// index if there is no fresh cached copy. A coordinate absent from the
// mirror (HTTP 404) caches as an empty record set. When a refresh fails
// and a stale entry exists, the stale records are returned and the
// failure is only logged.
func (c *Cache) GetOrFetch(ctx context.Context, coord archive.Coordinate) ([]control.Record, error) {
	if e := c.lookup(coord); e != nil && c.now().Before(e.deadline) {
		return e.records, nil
	}

	v, err, _ := c.group.Do(coord.String(), func() (interface{}, error) {
		// Another caller may have completed a refresh while this one was
		// waiting for the flight slot.
		if e := c.lookup(coord); e != nil && c.now().Before(e.deadline) {
			return e.records, nil
		}
		return c.refresh(ctx, coord)
	})
	if err != nil {
		return nil, err
	}
	return v.([]control.Record), nil
}

func (c *Cache) lookup(coord archive.Coordinate) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[coord]
}

func (c *Cache) store(coord archive.Coordinate, records []control.Record) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[coord] = &entry{
		records:   records,
		fetchedAt: now,
		deadline:  now.Add(c.ttl),
	}
}

func (c *Cache) refresh(ctx context.Context, coord archive.Coordinate) (interface{}, error) {
	// Detach from the caller: a fetched index is worth caching even when
	// the query that triggered it has been abandoned. The fetcher applies
	// its own timeout.
	b, err := c.fetcher.Fetch(context.WithoutCancel(ctx), coord)
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		c.logger.Debug("no index on mirror", "coordinate", coord.String())
		c.store(coord, nil)
		return []control.Record(nil), nil
	case err != nil:
		if stale := c.lookup(coord); stale != nil {
			c.logger.Warn("refresh failed, serving stale index",
				"coordinate", coord.String(),
				"age", c.now().Sub(stale.fetchedAt).Round(time.Second),
				"err", err)
			return stale.records, nil
		}
		return nil, err
	}

	records, warnings := control.Parse(b)
	for _, w := range warnings {
		c.logger.Warn("skipped stanza",
			"coordinate", coord.String(),
			"stanza", w.Stanza,
			"reason", w.Reason)
	}
	for i := range records {
		records[i].Suite = coord.Suite
		records[i].Pocket = coord.Pocket
		records[i].Component = coord.Component
		if coord.IsSource() {
			records[i].Architecture = archive.ArchSource
		}
	}
	c.store(coord, records)
	return records, nil
}
