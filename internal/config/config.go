// Package config reads the process-wide madison configuration, a single
// TOML file loaded once at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/debtools/madison/internal/archive"
	"github.com/debtools/madison/internal/humanbytes"
)

// Duration wraps time.Duration so that TOML values can be written as
// "10m" or "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type Suite struct {
	Name    string   `toml:"name"`
	Pockets []string `toml:"pockets"`
}

// Config is the full configuration surface. Every field has a usable
// default; a missing config file means "query the Ubuntu archive".
type Config struct {
	Listen        string   `toml:"listen"`
	Mirror        string   `toml:"mirror"`
	CacheTTL      Duration `toml:"cache_ttl"`
	FetchTimeout  Duration `toml:"fetch_timeout"`
	MaxIndexSize  string   `toml:"max_index_size"`
	Components    []string `toml:"components"`
	Architectures []string `toml:"architectures"`
	Suites        []Suite  `toml:"suite"`
}

func Default() Config {
	catalog := archive.DefaultCatalog()
	cfg := Config{
		Listen:        ":8000",
		Mirror:        catalog.Mirror,
		CacheTTL:      Duration(10 * time.Minute),
		FetchTimeout:  Duration(30 * time.Second),
		MaxIndexSize:  "128MiB",
		Components:    catalog.Components,
		Architectures: catalog.Architectures,
	}
	for _, suite := range catalog.Suites {
		cfg.Suites = append(cfg.Suites, Suite{Name: suite.Name, Pockets: suite.Pockets})
	}
	return cfg
}

// Load reads path on top of the defaults. A missing file is not an
// error: the defaults apply unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	// A file that names suites replaces the default table, it does not
	// extend it.
	fresh := cfg
	fresh.Suites = nil
	if err := toml.Unmarshal(b, &fresh); err != nil {
		return Config{}, fmt.Errorf("%s: %v", path, err)
	}
	if len(fresh.Suites) == 0 {
		fresh.Suites = cfg.Suites
	}
	return fresh, nil
}

// Catalog converts the configured suite table into a validated catalog.
func (c Config) Catalog() (archive.Catalog, error) {
	catalog := archive.Catalog{
		Mirror:        c.Mirror,
		Components:    c.Components,
		Architectures: c.Architectures,
	}
	for _, suite := range c.Suites {
		pockets := suite.Pockets
		if len(pockets) == 0 {
			pockets = []string{""}
		}
		catalog.Suites = append(catalog.Suites, archive.Suite{Name: suite.Name, Pockets: pockets})
	}
	if err := catalog.Validate(); err != nil {
		return archive.Catalog{}, err
	}
	return catalog, nil
}

// MaxIndexBytes parses the configured decompressed-size cap.
func (c Config) MaxIndexBytes() (int64, error) {
	n, err := humanbytes.Parse(c.MaxIndexSize)
	if err != nil {
		return 0, fmt.Errorf("max_index_size: %v", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("max_index_size must be positive, got %s", c.MaxIndexSize)
	}
	return n, nil
}

// Validate checks everything that must fail at startup rather than
// mid-query.
func (c Config) Validate() error {
	if _, err := c.Catalog(); err != nil {
		return err
	}
	if _, err := c.MaxIndexBytes(); err != nil {
		return err
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	return nil
}
