// Package fetch retrieves and decompresses archive index files over HTTP.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ulikunitz/xz"

	"github.com/debtools/madison/internal/archive"
	"github.com/debtools/madison/internal/humanbytes"
)

// ErrNotFound is returned when the mirror serves HTTP 404 for every
// compression variant of an index. The coordinate has no data; callers
// treat it as an empty index, not a failure.
var ErrNotFound = errors.New("index not found on mirror")

// Error is a failed fetch of one coordinate.
type Error struct {
	Coordinate archive.Coordinate
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Coordinate, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// compressions are tried in order; apt mirrors publish xz first and keep
// gz for compatibility.
var compressions = []struct {
	ext        string
	decompress func(io.Reader) (io.Reader, error)
}{
	{".xz", func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }},
	{".gz", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
}

// Client fetches index files from a single mirror. It is safe for
// concurrent use.
type Client struct {
	base     *url.URL
	client   *http.Client
	maxBytes int64 // decompressed size cap
	timeout  time.Duration
	logger   *log.Logger
}

// NewClient validates the mirror URL and returns a fetcher. maxBytes caps
// the decompressed size of a single index; timeout bounds one HTTP
// request including body download.
func NewClient(mirror string, maxBytes int64, timeout time.Duration, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(mirror)
	if err != nil {
		return nil, fmt.Errorf("mirror URL %q: %v", mirror, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		base:     base,
		client:   &http.Client{},
		maxBytes: maxBytes,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// URL returns the fetch URL for coord with the given compression
// extension.
func (c *Client) URL(coord archive.Coordinate, ext string) string {
	u := *c.base
	u.Path = path.Join(u.Path, coord.IndexPath()) + ext
	return u.String()
}

// Fetch downloads the index for coord and returns its decompressed bytes.
// It tries each published compression variant, treating 404 as "try the
// next one". When all variants are missing it returns ErrNotFound; any
// other failure is reported as an *Error.
func (c *Client) Fetch(ctx context.Context, coord archive.Coordinate) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for _, comp := range compressions {
		b, err := c.fetchOne(ctx, c.URL(coord, comp.ext), comp.decompress)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, &Error{Coordinate: coord, Err: err}
		}
		c.logger.Debug("fetched index",
			"coordinate", coord.String(),
			"size", humanbytes.Format(int64(len(b))))
		return b, nil
	}
	return nil, ErrNotFound
}

func (c *Client) fetchOne(ctx context.Context, url string, decompress func(io.Reader) (io.Reader, error)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "madison")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) // drain for keep-alive
		resp.Body.Close()
	}()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%s: unexpected HTTP status code: got %d, want %d", url, resp.StatusCode, http.StatusOK)
	}

	r, err := decompress(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: decompress: %v", url, err)
	}
	// Read one byte past the cap so that an oversized index is
	// distinguishable from one that is exactly at the limit.
	b, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: decompress: %v", url, err)
	}
	if int64(len(b)) > c.maxBytes {
		return nil, fmt.Errorf("%s: decompressed index exceeds limit of %s", url, humanbytes.Format(c.maxBytes))
	}
	return b, nil
}
