// Package madison answers "which versions of package X exist" against the
// configured archive, producing the classic madison table: one row per
// (version, suite, pocket), architectures merged into a list.
package madison

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/debtools/madison/internal/archive"
	"github.com/debtools/madison/internal/control"
	"github.com/debtools/madison/internal/version"
)

// Mode selects how a query matches records.
type Mode int

const (
	// ModeSource matches the source package behind each record: Sources
	// entries by name, binary entries by their Source field. Rows merge
	// the "source" pseudo-architecture with any binary architectures.
	ModeSource Mode = iota
	// ModeBinary matches binary packages by name only.
	ModeBinary
)

// Row is one line of madison output: a distinct (version, suite, pocket)
// with every architecture it was seen on.
type Row struct {
	Package       string
	Version       string
	Suite         string
	Pocket        string
	Architectures []string // sorted, "source" first
}

// Distribution returns "suite" or "suite-pocket" as shown in the table.
func (r Row) Distribution() string {
	if r.Pocket == "" {
		return r.Suite
	}
	return r.Suite + "-" + r.Pocket
}

// Result is the outcome of one query. Missing lists distributions whose
// index could not be fetched; their absence degrades the result rather
// than failing it.
type Result struct {
	Rows    []Row
	Missing []string
}

// RecordSource yields the (possibly cached) records for one coordinate.
// *cache.Cache satisfies it.
type RecordSource interface {
	GetOrFetch(ctx context.Context, coord archive.Coordinate) ([]control.Record, error)
}

// Engine aggregates archive indices into query answers. It holds no
// per-query state and is safe for concurrent use.
type Engine struct {
	catalog archive.Catalog
	source  RecordSource
	logger  *log.Logger
}

func NewEngine(catalog archive.Catalog, source RecordSource, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{catalog: catalog, source: source, logger: logger}
}

// Query returns every known (version, suite, pocket) for name, sorted by
// catalog suite order (oldest release first) and then by ascending Debian
// version. An unknown package yields an empty result, not an error; an
// unreachable coordinate contributes zero records and is reported in
// Result.Missing.
func (e *Engine) Query(ctx context.Context, name string, mode Mode) (Result, error) {
	arches := e.catalog.Architectures
	if mode == ModeSource {
		arches = append([]string{archive.ArchSource}, arches...)
	}
	coords := e.catalog.Coordinates(arches...)

	matches := make([][]control.Record, len(coords))
	failed := make([]bool, len(coords))
	var eg errgroup.Group
	for idx, coord := range coords {
		eg.Go(func() error {
			records, err := e.source.GetOrFetch(ctx, coord)
			if err != nil {
				// Partial results beat no results: drop the coordinate.
				e.logger.Warn("coordinate unavailable", "coordinate", coord.String(), "err", err)
				failed[idx] = true
				return nil
			}
			for _, rec := range records {
				if matchRecord(rec, name, mode) {
					matches[idx] = append(matches[idx], rec)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	var result Result
	seenMissing := make(map[string]bool)
	for idx, coord := range coords {
		if failed[idx] && !seenMissing[coord.Distribution()] {
			seenMissing[coord.Distribution()] = true
			result.Missing = append(result.Missing, coord.Distribution())
		}
	}
	result.Rows = e.groupAndSort(name, matches)
	return result, nil
}

func matchRecord(rec control.Record, name string, mode Mode) bool {
	switch mode {
	case ModeBinary:
		return !rec.IsSource() && rec.Name == name
	default:
		return rec.SourceName() == name
	}
}

type groupKey struct {
	version string
	suite   string
	pocket  string
}

// groupAndSort deduplicates matches into one row per (version, suite,
// pocket), merging architectures.
func (e *Engine) groupAndSort(name string, matches [][]control.Record) []Row {
	arches := make(map[groupKey]map[string]bool)
	for _, records := range matches {
		for _, rec := range records {
			key := groupKey{version: rec.Version, suite: rec.Suite, pocket: rec.Pocket}
			if arches[key] == nil {
				arches[key] = make(map[string]bool)
			}
			arches[key][rec.Architecture] = true
		}
	}

	rows := make([]Row, 0, len(arches))
	for key, set := range arches {
		rows = append(rows, Row{
			Package:       name,
			Version:       key.version,
			Suite:         key.suite,
			Pocket:        key.pocket,
			Architectures: sortArches(set),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		oi := e.catalog.Ordinal(rows[i].Suite, rows[i].Pocket)
		oj := e.catalog.Ordinal(rows[j].Suite, rows[j].Pocket)
		if oi != oj {
			return oi < oj
		}
		return version.Compare(rows[i].Version, rows[j].Version) < 0
	})
	return rows
}

// sortArches flattens an architecture set: "source" first, the rest
// alphabetically.
func sortArches(set map[string]bool) []string {
	var arches []string
	for arch := range set {
		if arch != archive.ArchSource {
			arches = append(arches, arch)
		}
	}
	sort.Strings(arches)
	if set[archive.ArchSource] {
		arches = append([]string{archive.ArchSource}, arches...)
	}
	return arches
}
