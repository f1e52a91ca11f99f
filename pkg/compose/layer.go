package compose

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/overlay/pkg/fonts"
	"github.com/matzehuels/overlay/pkg/layout"
	"github.com/matzehuels/overlay/pkg/markup"
)

// layer is the overlay content of a scene rasterized onto a transparent canvas.
type layer struct {
	img    *image.NRGBA
	bounds image.Rectangle // union of everything drawn
	colors []color.NRGBA   // image and text overlay colours, for GIF palettes
}

// maxImageColors bounds how many image-overlay colours a GIF palette reserves.
const maxImageColors = 64

// drawOver blends the layer onto dst.
func (l *layer) drawOver(dst *image.NRGBA) {
	r := l.bounds.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, l.img, r.Min, draw.Over)
}

// layer rasterizes image overlays then text overlays for a w×h canvas.
func (c *Compositor) layer(s Scene, w, h int) (*layer, []error) {
	l := &layer{img: image.NewNRGBA(image.Rect(0, 0, w, h))}

	for _, o := range s.Images {
		if o.Image == nil {
			continue
		}
		r := o.Rect(s.Variant, w, h)
		if r.Dx() <= 0 || r.Dy() <= 0 || !r.Overlaps(l.img.Bounds()) {
			continue
		}
		scaled := imaging.Resize(o.Image, r.Dx(), r.Dy(), imaging.Lanczos)
		draw.Draw(l.img, r, scaled, image.Point{}, draw.Over)
		l.bounds = l.bounds.Union(r.Intersect(l.img.Bounds()))
	}
	l.colors = dominantColors(l.img, l.bounds, maxImageColors)

	var diags []error
	if c.Font == nil {
		if len(s.Texts) > 0 {
			c.Logger.Warn("no font configured, skipping text overlays", "count", len(s.Texts))
		}
		return l, diags
	}

	engine := layout.New(c.Font)
	for _, t := range s.Texts {
		lines, issues := markup.ParseWithDiagnostics(t.Markup)
		for _, err := range issues {
			c.Logger.Warn("markup", "overlay", t.ID, "err", err)
		}
		diags = append(diags, issues...)

		p := t.Place(s.Variant, w, h)
		opts := layout.Options{AllCaps: t.AllCaps}
		if s.Variant.IsDevice() {
			opts.WrapWidth = layout.DeviceWrapRatio * float64(w)
		}

		for _, op := range engine.Layout(lines, p.SizePx, p.X, p.Y, opts) {
			path := c.Font.GlyphPath(op.Text, op.X, op.Y, op.Size)
			fonts.Fill(l.img, path, p.Color)
			l.bounds = l.bounds.Union(path.Bounds().Intersect(l.img.Bounds()))
		}
		l.colors = append(l.colors, p.Color)
	}
	return l, diags
}

// dominantColors returns up to n of the most frequent opaque colours of img
// within r, most frequent first.
func dominantColors(img *image.NRGBA, r image.Rectangle, n int) []color.NRGBA {
	counts := make(map[color.NRGBA]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if c := img.NRGBAAt(x, y); c.A == 0xff {
				counts[c]++
			}
		}
	}

	out := make([]color.NRGBA, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return packed(a) < packed(b)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func packed(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
