// Package layout positions parsed markup lines using font-metric advances.
//
// The engine is independent of any concrete font: callers supply a [Metrics]
// implementation (see pkg/fonts) and receive a flat list of draw operations
// in pixel space, ready for rasterization.
//
// # Geometry
//
//   - Superscript runs use 0.7 × the font size and sit 0.3 × the font size above
//     the baseline.
//   - Visual line i has its baseline at y + i × 1.2 × the font size.
//   - A line starts at x (left), x − width/2 (center) or x − width (right).
package layout

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matzehuels/overlay/pkg/markup"
)

const (
	// SuperscriptScale is the size of a superscript run relative to the font size.
	SuperscriptScale = 0.7

	// SuperscriptRise is the baseline shift of a superscript run relative to the font size.
	SuperscriptRise = 0.3

	// LineHeight is the baseline-to-baseline distance relative to the font size.
	LineHeight = 1.2

	// DeviceWrapRatio is the wrap width, as a fraction of canvas width, used by
	// desktop and mobile renders.
	DeviceWrapRatio = 0.8
)

// Metrics measures horizontal advances of text at a pixel size.
type Metrics interface {
	Advance(text string, sizePx float64) float64
}

// MetricsFunc adapts a function to the Metrics interface.
type MetricsFunc func(text string, sizePx float64) float64

// Advance calls f.
func (f MetricsFunc) Advance(text string, sizePx float64) float64 { return f(text, sizePx) }

// Options controls text transformation and wrapping.
type Options struct {
	// AllCaps uppercases every run before it is measured and drawn.
	AllCaps bool

	// WrapWidth enables greedy word wrapping at this pixel width when > 0.
	WrapWidth float64
}

// Op is one positioned run: draw Text at baseline (X, Y) with the given size.
type Op struct {
	Text        string
	X, Y        float64
	Size        float64
	Superscript bool
}

// Engine lays out text with a fixed Metrics provider.
type Engine struct {
	Metrics Metrics
}

// New returns an Engine measuring with m.
func New(m Metrics) *Engine {
	return &Engine{Metrics: m}
}

// RunSize returns the pixel size a run is drawn at.
func RunSize(r markup.Run, size float64) float64 {
	if r.Superscript {
		return size * SuperscriptScale
	}
	return size
}

// LineWidth sums the advances of every run in l at each run's effective size.
func (e *Engine) LineWidth(l markup.Line, size float64) float64 {
	var w float64
	for _, r := range l.Runs {
		w += e.Metrics.Advance(r.Text, RunSize(r, size))
	}
	return w
}

// StartX returns where a line of the given width begins for an anchor x.
func StartX(a markup.Alignment, x, width float64) float64 {
	switch a {
	case markup.Center:
		return x - width/2
	case markup.Right:
		return x - width
	default:
		return x
	}
}

// Layout positions lines anchored at (x, y) with the given normal font size.
// Empty runs produce no Op but empty lines still take a vertical slot.
func (e *Engine) Layout(lines []markup.Line, size, x, y float64, opts Options) []Op {
	if opts.AllCaps {
		lines = upper(lines)
	}
	if opts.WrapWidth > 0 {
		lines = e.wrap(lines, size, opts.WrapWidth)
	}

	var ops []Op
	for i, l := range lines {
		baseline := y + float64(i)*size*LineHeight
		cursor := StartX(l.Alignment, x, e.LineWidth(l, size))
		for _, r := range l.Runs {
			rs := RunSize(r, size)
			adv := e.Metrics.Advance(r.Text, rs)
			if r.Text != "" {
				op := Op{Text: r.Text, X: cursor, Y: baseline, Size: rs, Superscript: r.Superscript}
				if r.Superscript {
					op.Y -= size * SuperscriptRise
				}
				ops = append(ops, op)
			}
			cursor += adv
		}
	}
	return ops
}

// upper returns a copy of lines with every run uppercased.
func upper(lines []markup.Line) []markup.Line {
	c := cases.Upper(language.Und)
	out := make([]markup.Line, len(lines))
	for i, l := range lines {
		runs := make([]markup.Run, len(l.Runs))
		for j, r := range l.Runs {
			runs[j] = markup.Run{Text: c.String(r.Text), Superscript: r.Superscript}
		}
		out[i] = markup.Line{Alignment: l.Alignment, Runs: runs}
	}
	return out
}

// Bounds returns the horizontal extent covered by ops, for hit-testing and tests.
func Bounds(m Metrics, ops []Op) (minX, maxX float64) {
	for i, op := range ops {
		end := op.X + m.Advance(op.Text, op.Size)
		if i == 0 || op.X < minX {
			minX = op.X
		}
		if i == 0 || end > maxX {
			maxX = end
		}
	}
	return minX, maxX
}
