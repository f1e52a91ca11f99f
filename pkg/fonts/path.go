package fonts

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Path is a glyph outline in absolute pixel coordinates with Y increasing
// downward, as produced by GlyphPath.
type Path []sfnt.Segment

// Bounds returns the integer pixel rectangle covering every control point.
func (p Path) Bounds() image.Rectangle {
	if len(p) == 0 {
		return image.Rectangle{}
	}
	b := sfnt.Segments(p).Bounds()
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
}

// GlyphPath returns the outline of text with its baseline origin at (x, y).
// Glyphs without a monochrome outline (spaces, colour emoji) contribute only
// their advance.
func (h *Handle) GlyphPath(text string, x, y, sizePx float64) Path {
	if text == "" || sizePx <= 0 {
		return nil
	}
	var (
		buf  sfnt.Buffer
		path Path
		em   = ppem(sizePx)
		pen  = fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))}
	)
	for _, r := range text {
		idx, err := h.font.GlyphIndex(&buf, r)
		if err != nil {
			continue
		}
		segs, err := h.font.LoadGlyph(&buf, idx, em, nil)
		if err == nil {
			for _, s := range segs {
				for i := range s.Args {
					s.Args[i] = s.Args[i].Add(pen)
				}
				path = append(path, s)
			}
		}
		if adv, err := h.font.GlyphAdvance(&buf, idx, em, font.HintingNone); err == nil {
			pen.X += adv
		}
	}
	return path
}

// Fill rasterizes p onto dst with the solid colour c, blending Over.
func Fill(dst draw.Image, p Path, c color.Color) {
	r := p.Bounds().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Over
	ox, oy := float32(r.Min.X), float32(r.Min.Y)
	pt := func(q fixed.Point26_6) (float32, float32) {
		return float32(q.X)/64 - ox, float32(q.Y)/64 - oy
	}

	started := false
	for _, s := range p {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if started {
				z.ClosePath()
			}
			z.MoveTo(pt(s.Args[0]))
			started = true
		case sfnt.SegmentOpLineTo:
			z.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			z.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			dx, dy := pt(s.Args[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	if started {
		z.ClosePath()
	}
	z.Draw(dst, r, image.NewUniform(c), image.Point{})
}
