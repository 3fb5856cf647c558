// Package archive models the layout of a Debian-family package archive:
// which suites, pockets, components and architectures exist, and where the
// index file for each combination lives relative to the mirror root.
package archive

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ArchSource is the pseudo-architecture selecting the Sources index.
const ArchSource = "source"

// Coordinate identifies one fetchable index file.
type Coordinate struct {
	Suite     string
	Pocket    string // empty for the release pocket
	Component string
	Arch      string
}

// Distribution returns the dists/ directory name: the suite, with the
// pocket appended after a hyphen when non-empty ("focal-updates").
func (c Coordinate) Distribution() string {
	if c.Pocket == "" {
		return c.Suite
	}
	return c.Suite + "-" + c.Pocket
}

// IsSource reports whether the coordinate addresses a Sources index.
func (c Coordinate) IsSource() bool { return c.Arch == ArchSource }

// IndexPath returns the mirror-relative path of the uncompressed index
// file, without the compression extension.
func (c Coordinate) IndexPath() string {
	dir := "binary-" + c.Arch
	name := "Packages"
	if c.IsSource() {
		dir = "source"
		name = "Sources"
	}
	return path.Join("dists", c.Distribution(), c.Component, dir, name)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Distribution(), c.Component, c.Arch)
}

// Suite is one distribution release and the pockets layered on top of it.
// An empty pocket name denotes the release pocket itself.
type Suite struct {
	Name    string
	Pockets []string
}

// Catalog enumerates everything the archive publishes that this tool is
// willing to query. It is static data: adding a suite is a config edit.
// Suites are listed oldest release first; that declaration order is the
// display order of query results, and the tie-break between two pockets
// shipping the identical version.
type Catalog struct {
	Mirror        string
	Suites        []Suite
	Components    []string
	Architectures []string // binary architectures; ArchSource is implicit
}

// DefaultCatalog matches the primary Ubuntu archive.
func DefaultCatalog() Catalog {
	pockets := []string{"", "security", "updates"}
	return Catalog{
		Mirror: "http://archive.ubuntu.com/ubuntu",
		Suites: []Suite{
			{Name: "bionic", Pockets: pockets},
			{Name: "focal", Pockets: pockets},
			{Name: "jammy", Pockets: pockets},
			{Name: "noble", Pockets: pockets},
		},
		Components:    []string{"main"},
		Architectures: []string{"amd64"},
	}
}

// Validate fails fast on configuration mistakes so that they surface at
// startup, never mid-query.
func (c *Catalog) Validate() error {
	u, err := url.Parse(c.Mirror)
	if err != nil {
		return fmt.Errorf("mirror URL %q: %v", c.Mirror, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("mirror URL %q: scheme must be http or https", c.Mirror)
	}
	if len(c.Suites) == 0 {
		return fmt.Errorf("no suites configured")
	}
	if len(c.Components) == 0 {
		return fmt.Errorf("no components configured")
	}
	if len(c.Architectures) == 0 {
		return fmt.Errorf("no architectures configured")
	}
	names := func(kind, s string) error {
		if s == "" {
			return fmt.Errorf("empty %s name", kind)
		}
		if strings.ContainsAny(s, "/ \t") {
			return fmt.Errorf("invalid %s name %q", kind, s)
		}
		return nil
	}
	for _, suite := range c.Suites {
		if err := names("suite", suite.Name); err != nil {
			return err
		}
		for _, pocket := range suite.Pockets {
			if pocket == "" {
				continue // release pocket
			}
			if err := names("pocket", pocket); err != nil {
				return fmt.Errorf("suite %s: %v", suite.Name, err)
			}
		}
	}
	for _, comp := range c.Components {
		if err := names("component", comp); err != nil {
			return err
		}
	}
	for _, arch := range c.Architectures {
		if err := names("architecture", arch); err != nil {
			return err
		}
		if arch == ArchSource {
			return fmt.Errorf("architecture %q is implicit, do not configure it", ArchSource)
		}
	}
	return nil
}

// Coordinates enumerates the index files to consult for the given
// architectures, in catalog declaration order.
func (c *Catalog) Coordinates(arches ...string) []Coordinate {
	var coords []Coordinate
	for _, suite := range c.Suites {
		for _, pocket := range suite.Pockets {
			for _, comp := range c.Components {
				for _, arch := range arches {
					coords = append(coords, Coordinate{
						Suite:     suite.Name,
						Pocket:    pocket,
						Component: comp,
						Arch:      arch,
					})
				}
			}
		}
	}
	return coords
}

// Ordinal returns the sort position of a (suite, pocket) pair, following
// catalog declaration order. Unknown pairs sort last.
func (c *Catalog) Ordinal(suite, pocket string) int {
	n := 0
	for _, s := range c.Suites {
		for _, p := range s.Pockets {
			if s.Name == suite && p == pocket {
				return n
			}
			n++
		}
	}
	return n
}
