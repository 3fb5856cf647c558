package cli

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/debtools/madison/internal/cache"
	"github.com/debtools/madison/internal/config"
	"github.com/debtools/madison/internal/fetch"
	"github.com/debtools/madison/internal/madison"
)

// buildEngine loads and validates the configuration and assembles the
// query engine on top of fetcher and cache. Configuration mistakes
// surface here, at startup.
func buildEngine(configPath string, logger *log.Logger) (*madison.Engine, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, config.Config{}, err
	}
	maxBytes, err := cfg.MaxIndexBytes()
	if err != nil {
		return nil, config.Config{}, err
	}
	client, err := fetch.NewClient(catalog.Mirror, maxBytes, time.Duration(cfg.FetchTimeout), logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	indexCache := cache.New(client, time.Duration(cfg.CacheTTL), logger)
	return madison.NewEngine(catalog, indexCache, logger), cfg, nil
}
