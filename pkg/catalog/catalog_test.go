package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/overlay/pkg/errors"
)

const sample = `
[[preset]]
id = "acme"
name = "ACME Corp."
source = "https://cdn.example.com/acme.png"
width = 20.0
aspect_ratio = 2.5
tags = ["sponsor"]

[[preset]]
id = "beta"
source = "data:image/png;base64,iVBORw0KGgo="
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := context.Background()

	e, err := c.Lookup(ctx, "acme")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Name != "ACME Corp." || e.WidthPercent != 20 || e.AspectRatio != 2.5 || len(e.Tags) != 1 {
		t.Errorf("entry = %+v", e)
	}

	list, _ := c.List(ctx)
	if len(list) != 2 || list[0].ID != "acme" || list[1].ID != "beta" {
		t.Errorf("List = %+v", list)
	}
	if list[1].Title() != "beta" {
		t.Errorf("Title() = %q, want id fallback", list[1].Title())
	}

	if _, err := c.Lookup(ctx, "missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing: %v, want NOT_FOUND", err)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `[[preset]` + "\n"},
		{"unknown key", "[[preset]]\nid = \"a\"\nsource = \"x\"\ncolour = \"red\"\n"},
		{"no source", "[[preset]]\nid = \"a\"\n"},
		{"bad id", "[[preset]]\nid = \"a b\"\nsource = \"x\"\n"},
		{"duplicate", "[[preset]]\nid = \"a\"\nsource = \"x\"\n[[preset]]\nid = \"a\"\nsource = \"y\"\n"},
		{"self reference", "[[preset]]\nid = \"a\"\nsource = \"preset:a\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Parse error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	defer c.Close()

	src, err := Resolver{Catalog: c}.Resolve(context.Background(), "acme")
	if err != nil || src != "https://cdn.example.com/acme.png" {
		t.Errorf("Resolve = %q, %v", src, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file: %v", err)
	}
}

func TestNewMongoRequiresURI(t *testing.T) {
	if _, err := NewMongo(context.Background(), MongoOptions{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
	if _, err := NewMongo(context.Background(), MongoOptions{URI: "not-a-uri"}); err == nil {
		t.Error("NewMongo should reject a malformed uri")
	}
}
