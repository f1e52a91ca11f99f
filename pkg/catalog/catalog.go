// Package catalog stores preset logos that overlays reference as
// "preset:<id>".
//
// Two backends are provided: a TOML file loaded into memory (the CLI default)
// and a MongoDB collection for shared server deployments.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/matzehuels/overlay/pkg/errors"
)

// Entry is one preset.
type Entry struct {
	ID           string   `toml:"id" json:"id" bson:"_id"`
	Name         string   `toml:"name" json:"name" bson:"name"`
	Source       string   `toml:"source" json:"source" bson:"source"`
	WidthPercent float64  `toml:"width" json:"width,omitempty" bson:"width,omitempty"`
	AspectRatio  float64  `toml:"aspect_ratio" json:"aspect_ratio,omitempty" bson:"aspect_ratio,omitempty"`
	Tags         []string `toml:"tags" json:"tags,omitempty" bson:"tags,omitempty"`
}

// Validate checks the entry's identity and source.
func (e *Entry) Validate() error {
	if err := errors.ValidateID(e.ID); err != nil {
		return err
	}
	if e.Source == "" {
		return errors.New(errors.ErrCodeInvalidInput, "preset %q has no source", e.ID)
	}
	if strings.HasPrefix(e.Source, "preset:") {
		return errors.New(errors.ErrCodeInvalidInput, "preset %q cannot point at another preset", e.ID)
	}
	if e.WidthPercent < 0 || e.AspectRatio < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "preset %q has negative dimensions", e.ID)
	}
	return nil
}

// Title returns Name, or ID when the entry has no name.
func (e *Entry) Title() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// Catalog looks up presets. Lookup returns a NOT_FOUND error for unknown ids.
type Catalog interface {
	Lookup(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Resolver adapts a Catalog to the fetcher's preset resolution.
type Resolver struct {
	Catalog Catalog
}

// Resolve returns the source reference behind id.
func (r Resolver) Resolve(ctx context.Context, id string) (string, error) {
	e, err := r.Catalog.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return e.Source, nil
}

// =============================================================================
// Memory
// =============================================================================

// Memory is an in-memory catalog.
type Memory struct {
	entries map[string]Entry
}

// NewMemory builds a catalog from entries. Every entry is validated and ids
// must be unique.
func NewMemory(entries ...Entry) (*Memory, error) {
	m := &Memory{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.entries[e.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate preset %q", e.ID)
		}
		m.entries[e.ID] = e
	}
	return m, nil
}

// Lookup implements Catalog.
func (m *Memory) Lookup(_ context.Context, id string) (Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, errors.New(errors.ErrCodeNotFound, "preset %q not found", id)
	}
	return e, nil
}

// List implements Catalog. Entries are sorted by id.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Catalog.
func (m *Memory) Close() error { return nil }

var _ Catalog = (*Memory)(nil)
