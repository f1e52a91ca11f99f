package config

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overlay/pkg/buildinfo"
	"github.com/matzehuels/overlay/pkg/cache"
	"github.com/matzehuels/overlay/pkg/catalog"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/fetch"
	"github.com/matzehuels/overlay/pkg/fonts"
	"github.com/matzehuels/overlay/pkg/pipeline"
)

// BuildOptions are per-invocation overrides applied on top of the file.
type BuildOptions struct {
	NoCache    bool // use a null cache regardless of [cache]
	AllowFiles bool // allow local file sources even if [render] does not
	Logger     *log.Logger
}

// Components are the runtime pieces described by a Config.
type Components struct {
	Runner  *pipeline.Runner
	Catalog catalog.Catalog // nil when no catalog is configured
}

// Close releases the cache and the catalog.
func (c *Components) Close() error {
	var first error
	if c.Runner != nil {
		first = c.Runner.Close()
	}
	if c.Catalog != nil {
		if err := c.Catalog.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build opens the cache and catalog and assembles a pipeline runner.
func (c *Config) Build(ctx context.Context, opts BuildOptions) (*Components, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ch, err := c.OpenCache(ctx, opts.NoCache)
	if err != nil {
		return nil, err
	}
	cat, err := c.OpenCatalog(ctx)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if c.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Cache.Prefix)
	}

	runner := pipeline.NewRunner(ch, keyer, logger)
	runner.Limits = c.Limits
	runner.JPEGQuality = c.Render.JPEGQuality

	fopts := fetch.Options{
		MaxBytes:   c.Limits.FetchBytes(),
		AllowFiles: c.Render.AllowFiles || opts.AllowFiles,
		UserAgent:  buildinfo.UserAgent(),
		Logger:     logger,
	}
	if cat != nil {
		fopts.Presets = catalog.Resolver{Catalog: cat}
	}
	runner.Fetcher = fetch.New(ch, keyer, fopts)

	if c.Render.Font != "" {
		runner.Fonts = fonts.NewLoader(fonts.File(c.Render.Font))
	}

	return &Components{Runner: runner, Catalog: cat}, nil
}

// OpenCache opens the configured cache backend. noCache forces a null cache.
func (c *Config) OpenCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			URL:      c.Cache.RedisURL,
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
	case BackendFile, "":
		dir := c.Cache.Dir
		if dir == "" {
			d, err := CacheDir()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve cache dir")
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid cache backend: %q", c.Cache.Backend)
	}
}

// OpenCatalog opens the preset catalog, or returns nil when none is
// configured.
func (c *Config) OpenCatalog(ctx context.Context) (catalog.Catalog, error) {
	switch {
	case c.Catalog.File != "":
		return catalog.LoadFile(c.Catalog.File)
	case c.Catalog.MongoURI != "":
		return catalog.NewMongo(ctx, catalog.MongoOptions{
			URI:        c.Catalog.MongoURI,
			Database:   c.Catalog.MongoDatabase,
			Collection: c.Catalog.MongoCollection,
		})
	default:
		return nil, nil
	}
}
