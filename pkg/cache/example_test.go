package cache_test

import (
	"context"
	"fmt"
	"os"

	"github.com/matzehuels/overlay/pkg/cache"
)

func ExampleFileCache() {
	dir, _ := os.MkdirTemp("", "overlay-cache")
	defer os.RemoveAll(dir)

	c, err := cache.NewFileCache(dir)
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx := context.Background()
	key := cache.NewDefaultKeyer().AssetKey("https://example.com/bg.png")

	_ = c.Set(ctx, key, []byte("bytes"), cache.TTLAsset)
	data, ok, _ := c.Get(ctx, key)
	fmt.Println(string(data), ok)

	n, _ := c.Clear()
	fmt.Println("cleared", n)
	// Output:
	// bytes true
	// cleared 1
}

func ExampleNewScopedKeyer() {
	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "staging:")
	key := k.ArtifactKey("request-hash", cache.ArtifactKeyOpts{JPEGQuality: 90})
	fmt.Println(key[:len("staging:")])
	// Output:
	// staging:
}
