package catalog

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/overlay/pkg/errors"
)

// fileFormat is the on-disk layout:
//
//	[[preset]]
//	id = "acme"
//	name = "ACME Corp."
//	source = "https://cdn.example.com/acme.png"
//	width = 20
type fileFormat struct {
	Presets []Entry `toml:"preset"`
}

// LoadFile reads a TOML preset file into memory.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "catalog file %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read catalog %s", path)
	}
	return Parse(data)
}

// Parse decodes TOML preset data. Unknown keys are rejected so typos in a
// catalog file surface immediately.
func Parse(data []byte) (*Memory, error) {
	var f fileFormat
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse catalog")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown catalog key %q", undecoded[0].String())
	}
	return NewMemory(f.Presets...)
}
