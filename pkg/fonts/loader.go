package fonts

import (
	"context"
	"os"
	"sync"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/overlay/pkg/errors"
)

// Source produces raw font bytes. It is the only I/O a Loader performs.
type Source func(ctx context.Context) ([]byte, error)

// Embedded returns the built-in Go Regular font.
func Embedded() Source {
	return func(context.Context) ([]byte, error) { return goregular.TTF, nil }
}

// File reads a font file from disk.
func File(path string) Source {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFont, err, "read font %s", path)
		}
		return data, nil
	}
}

// Loader lazily parses one font and shares the result.
//
// Only one parse runs at a time; concurrent callers wait for it and may give
// up through their context. A successful parse is kept for the life of the
// Loader. A failed parse is not, so the next Get tries again.
type Loader struct {
	source Source
	sem    chan struct{}

	mu     sync.RWMutex
	handle *Handle
}

// NewLoader creates a loader reading from src.
func NewLoader(src Source) *Loader {
	if src == nil {
		src = Embedded()
	}
	return &Loader{source: src, sem: make(chan struct{}, 1)}
}

// Shared is the process-wide loader for the embedded default font.
var Shared = NewLoader(Embedded())

// Get returns the parsed font, parsing it on first use.
func (l *Loader) Get(ctx context.Context) (*Handle, error) {
	if h := l.loaded(); h != nil {
		return h, nil
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "waiting for font")
	}
	defer func() { <-l.sem }()

	// Another caller may have finished while we waited.
	if h := l.loaded(); h != nil {
		return h, nil
	}

	data, err := l.source(ctx)
	if err != nil {
		return nil, errors.Ensure(errors.ErrCodeFont, err, "load font")
	}
	h, err := Load(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.handle = h
	l.mu.Unlock()
	return h, nil
}

func (l *Loader) loaded() *Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handle
}
