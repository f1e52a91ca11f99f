// Package transform fits a background raster into a canvas.
//
// Fit mode, anchor and zoom/pan are folded into a single [Placement] by [Plan]:
// the size the source is scaled to and where its top-left corner lands on the
// canvas. [Apply] then performs exactly one resample of the visible part of the
// source.
package transform

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/overlay/pkg/scene"
)

// Placement is where the scaled source sits relative to the canvas origin.
// Offset may be negative when the source overhangs the canvas.
type Placement struct {
	Size   image.Point
	Offset image.Point
}

// Rect returns the placement as a rectangle in canvas coordinates.
func (p Placement) Rect() image.Rectangle {
	return image.Rectangle{Min: p.Offset, Max: p.Offset.Add(p.Size)}
}

// Plan computes the placement of a source of the given natural size.
func Plan(natural image.Point, c scene.Canvas) Placement {
	wn, hn := float64(natural.X), float64(natural.Y)
	wc, hc := float64(c.Width), float64(c.Height)
	if wn <= 0 || hn <= 0 || wc <= 0 || hc <= 0 {
		return Placement{}
	}

	var w, h float64
	switch c.Fit {
	case scene.FitStretch:
		w, h = wc, hc
	case scene.FitContain:
		s := math.Min(wc/wn, hc/hn)
		w, h = wn*s, hn*s
	default:
		s := math.Max(wc/wn, hc/hn)
		w, h = wn*s, hn*s
	}

	x, y := (wc-w)/2, (hc-h)/2
	switch c.Anchor {
	case scene.AnchorTop:
		y = 0
	case scene.AnchorBottom:
		y = hc - h
	case scene.AnchorLeft:
		x = 0
	case scene.AnchorRight:
		x = wc - w
	}

	zoom := c.Zoom
	if zoom < 1 {
		zoom = 1
	}
	if zoom > 1 {
		zw, zh := w*zoom, h*zoom
		x -= (zw - w) * c.PanX / 100
		y -= (zh - h) * c.PanY / 100
		w, h = zw, zh
	}

	return Placement{
		Size:   image.Pt(int(math.Round(w)), int(math.Round(h))),
		Offset: image.Pt(int(math.Round(x)), int(math.Round(y))),
	}
}

// Apply renders src into a new canvas-sized image. Contain letterboxing is
// filled with the canvas background colour; other modes start transparent so
// source alpha survives.
func Apply(src image.Image, c scene.Canvas) *image.NRGBA {
	fill := color.NRGBA{}
	if c.Fit == scene.FitContain {
		fill = c.Background()
	}
	dst := imaging.New(c.Width, c.Height, fill)

	b := src.Bounds()
	p := Plan(b.Size(), c)
	if p.Size.X <= 0 || p.Size.Y <= 0 {
		return dst
	}

	visible := p.Rect().Intersect(dst.Bounds())
	if visible.Empty() {
		return dst
	}

	// Map the visible canvas region back to source pixels so only that region
	// is resampled, however large the zoom.
	sx := float64(b.Dx()) / float64(p.Size.X)
	sy := float64(b.Dy()) / float64(p.Size.Y)
	crop := image.Rect(
		b.Min.X+int(math.Floor(float64(visible.Min.X-p.Offset.X)*sx)),
		b.Min.Y+int(math.Floor(float64(visible.Min.Y-p.Offset.Y)*sy)),
		b.Min.X+int(math.Ceil(float64(visible.Max.X-p.Offset.X)*sx)),
		b.Min.Y+int(math.Ceil(float64(visible.Max.Y-p.Offset.Y)*sy)),
	).Intersect(b)
	if crop.Empty() {
		return dst
	}

	part := imaging.Resize(imaging.Crop(src, crop), visible.Dx(), visible.Dy(), imaging.Lanczos)
	if c.Fit == scene.FitContain {
		return imaging.Overlay(dst, part, visible.Min, 1.0)
	}
	return imaging.Paste(dst, part, visible.Min)
}
