// Package cache stores fetched assets and rendered artifacts.
//
// Backends implement [Cache]; keys are produced by a [Keyer] so that the
// CLI, the HTTP server and tests agree on the key layout. Three backends are
// provided:
//
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [RedisCache]: shared cache for server deployments
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Default time-to-live for cache entries.
const (
	// TTLAsset is how long fetched source bytes (backgrounds, logos) are kept.
	TTLAsset = 24 * time.Hour

	// TTLArtifact is how long rendered outputs are kept. Artifacts are keyed
	// by content hashes, so they never go stale; the TTL only bounds storage.
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry expiration.
//
// Get reports a miss as (nil, false, nil); an error means the backend itself
// failed. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
