package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/debtools/madison/internal/archive"
	"github.com/debtools/madison/internal/fetch"
)

var testCoord = archive.Coordinate{
	Suite: "focal", Component: "main", Arch: archive.ArchSource,
}

// fakeFetcher counts fetches and serves a fixed response per call.
type fakeFetcher struct {
	calls int64
	delay time.Duration
	body  []byte
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, coord archive.Coordinate) ([]byte, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

const testIndex = "Package: systemd\nVersion: 245.4-4ubuntu3\n"

func TestGetOrFetchCachesWithinTTL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte(testIndex)}
	c := New(fetcher, time.Hour, nil)

	for i := 0; i < 3; i++ {
		records, err := c.GetOrFetch(context.Background(), testCoord)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "systemd", records[0].Name)
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&fetcher.calls))
}

func TestGetOrFetchStampsCoordinate(t *testing.T) {
	t.Parallel()

	c := New(&fakeFetcher{body: []byte(testIndex)}, time.Hour, nil)
	coord := archive.Coordinate{Suite: "focal", Pocket: "updates", Component: "main", Arch: archive.ArchSource}
	records, err := c.GetOrFetch(context.Background(), coord)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "focal", records[0].Suite)
	require.Equal(t, "updates", records[0].Pocket)
	require.Equal(t, "main", records[0].Component)
	require.Equal(t, archive.ArchSource, records[0].Architecture)
}

func TestGetOrFetchRefreshesAfterExpiry(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte(testIndex)}
	c := New(fetcher, time.Hour, nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt64(&fetcher.calls))
}

// Concurrent queries for the same expired coordinate must trigger at most
// one underlying fetch.
func TestGetOrFetchSingleFlight(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte(testIndex), delay: 100 * time.Millisecond}
	c := New(fetcher, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := c.GetOrFetch(context.Background(), testCoord)
			require.NoError(t, err)
			require.Len(t, records, 1)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt64(&fetcher.calls))
}

func TestGetOrFetchServesStaleOnError(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte(testIndex)}
	c := New(fetcher, time.Hour, nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	fetcher.err = errors.New("mirror on fire")
	records, err := c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The stale entry was not freshened: the next query retries.
	_, err = c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt64(&fetcher.calls))
}

func TestGetOrFetchErrorWithoutStale(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("mirror on fire")
	c := New(&fakeFetcher{err: wantErr}, time.Hour, nil)
	_, err := c.GetOrFetch(context.Background(), testCoord)
	require.ErrorIs(t, err, wantErr)
}

type fetcherFunc func(context.Context, archive.Coordinate) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, coord archive.Coordinate) ([]byte, error) {
	return f(ctx, coord)
}

// A caller abandoning its query must not cancel the refresh: the fetched
// index is still worth caching.
func TestGetOrFetchDetachedFromCallerCancel(t *testing.T) {
	t.Parallel()

	var calls int
	var fetchCtxErr error
	c := New(fetcherFunc(func(ctx context.Context, coord archive.Coordinate) ([]byte, error) {
		calls++
		fetchCtxErr = ctx.Err()
		return []byte(testIndex), nil
	}), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := c.GetOrFetch(ctx, testCoord)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, fetchCtxErr)

	// The refresh completed and populated the cache despite the cancel.
	_, err = c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestGetOrFetchNotFoundIsEmpty(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: fetch.ErrNotFound}
	c := New(fetcher, time.Hour, nil)

	records, err := c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.Empty(t, records)

	// The miss is cached like any other entry.
	_, err = c.GetOrFetch(context.Background(), testCoord)
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt64(&fetcher.calls))
}
