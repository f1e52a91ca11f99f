// Package fonts adapts an OpenType font to the layout engine and rasterizes
// glyph outlines.
//
// A [Handle] is immutable once parsed and safe for concurrent use; every
// method allocates its own sfnt.Buffer. The embedded Go Regular font is the
// default face, so rendering works without any font files on disk.
//
// Process-wide sharing goes through a [Loader] (see [Shared]), which parses at
// most once, blocks concurrent callers until the parse finishes and retries
// after a failure.
package fonts

import (
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/overlay/pkg/errors"
)

// DefaultName is the family name of the embedded default font.
const DefaultName = "Go Regular"

// Handle is a parsed font.
type Handle struct {
	font *sfnt.Font
	name string
}

// Load parses TrueType or OpenType font data.
func Load(data []byte) (*Handle, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeFont, "font data is empty")
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFont, err, "parse font")
	}

	var buf sfnt.Buffer
	name, err := f.Name(&buf, sfnt.NameIDFull)
	if err != nil {
		name = ""
	}
	return &Handle{font: f, name: name}, nil
}

// Default parses the embedded Go Regular font.
func Default() (*Handle, error) {
	return Load(goregular.TTF)
}

// Name returns the font's full name, or "" if the font does not carry one.
func (h *Handle) Name() string { return h.name }

// ppem converts a pixel size to the 26.6 pixels-per-em sfnt expects.
func ppem(sizePx float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(sizePx * 64))
}

// Advance returns the horizontal advance of text at sizePx, in pixels.
// Glyphs are not kerned.
func (h *Handle) Advance(text string, sizePx float64) float64 {
	if text == "" || sizePx <= 0 {
		return 0
	}
	var (
		buf   sfnt.Buffer
		total fixed.Int26_6
		em    = ppem(sizePx)
	)
	for _, r := range text {
		idx, err := h.font.GlyphIndex(&buf, r)
		if err != nil {
			continue
		}
		adv, err := h.font.GlyphAdvance(&buf, idx, em, font.HintingNone)
		if err != nil {
			continue
		}
		total += adv
	}
	return float64(total) / 64
}

	return float64(m.Ascent) / 64, float64(m.Descent) / 64
}
