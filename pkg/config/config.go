// Package config loads the overlay configuration file and builds the
// runtime components (cache, catalog, pipeline runner) it describes.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/overlay/config.toml
// (~/.config/overlay/config.toml when XDG_CONFIG_HOME is unset):
//
//	[server]
//	addr = ":8080"
//	request_timeout = "30s"
//
//	[limits]
//	max_payload_bytes = 20971520
//
//	[render]
//	font = "/usr/share/fonts/inter/Inter-Bold.ttf"
//	jpeg_quality = 90
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[catalog]
//	file = "~/.config/overlay/presets.toml"
//
// Every field is optional; missing values take the defaults below.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/pipeline"
)

// AppName names the config and cache directories.
const AppName = "overlay"

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultAddr           = ":8080"
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultRequestTimeout = 45 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultCacheBackend   = BackendFile
	DefaultJPEGQuality    = 90
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// ValidBackends is the set of supported cache backends.
var ValidBackends = map[string]bool{
	BackendFile:  true,
	BackendRedis: true,
	BackendNone:  true,
}

// =============================================================================
// Config
// =============================================================================

// Config is the whole configuration file.
type Config struct {
	Server  Server          `toml:"server"`
	Limits  pipeline.Limits `toml:"limits"`
	Render  Render          `toml:"render"`
	Cache   Cache           `toml:"cache"`
	Catalog Catalog         `toml:"catalog"`
}

// Server configures `overlay serve`.
type Server struct {
	Addr           string        `toml:"addr"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxBodyBytes   int64         `toml:"max_body_bytes"`
}

// Render configures the compositor.
type Render struct {
	// Font is a TTF/OTF path. Empty means the embedded Go Regular font.
	Font        string `toml:"font"`
	JPEGQuality int    `toml:"jpeg_quality"`

	// AllowFiles lets requests reference local files. The CLI enables it;
	// the server only when this is set.
	AllowFiles bool `toml:"allow_files"`
}

// Cache selects and configures the cache backend.
type Cache struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisURL      string `toml:"redis_url"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// Prefix scopes every key, for sharing one Redis between deployments.
	Prefix string `toml:"prefix"`
}

// Catalog selects the preset store. File wins over Mongo when both are set.
type Catalog struct {
	File            string `toml:"file"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.Limits.SetDefaults()
	if c.Render.JPEGQuality == 0 {
		c.Render.JPEGQuality = DefaultJPEGQuality
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Dir == "" {
		if dir, err := CacheDir(); err == nil {
			c.Cache.Dir = dir
		}
	}
	c.Render.Font = expandHome(c.Render.Font)
	c.Cache.Dir = expandHome(c.Cache.Dir)
	c.Catalog.File = expandHome(c.Catalog.File)
}

// Validate checks enumerations and ranges. Call SetDefaults first.
func (c *Config) Validate() error {
	if !ValidBackends[c.Cache.Backend] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid cache backend: %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendFile && c.Cache.Dir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache.dir is required for the file backend")
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisURL == "" && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache.redis_url or cache.redis_addr is required for the redis backend")
	}
	if q := c.Render.JPEGQuality; q < 1 || q > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "render.jpeg_quality must be within [1, 100], got %d", q)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.RequestTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server timeouts must not be negative")
	}
	return nil
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the file at path. An empty path means DefaultPath, and a
// missing default file yields the defaults; a missing explicit path is an
// error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes TOML configuration and applies defaults. Unknown keys are
// rejected.
func Parse(data []byte) (Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q", undecoded[0].String())
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// =============================================================================
// Paths
// =============================================================================

// DefaultPath returns the config file location using the XDG convention.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// CacheDir returns the cache directory using the XDG convention
// (~/.cache/overlay/).
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
