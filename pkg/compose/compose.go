// Package compose merges a background, image overlays and text overlays into
// an encoded image.
//
// [Compositor.Static] renders one frame and picks PNG or JPEG. [Compositor.Animated]
// replays an animated GIF frame by frame, honouring each frame's disposal
// method, and draws the same overlay layer onto every frame.
//
// Both paths share the same steps per frame:
//
//  1. Fit the background to the canvas (pkg/transform).
//  2. Scale RGB by the canvas brightness.
//  3. Draw image overlays, then text overlays, in input order.
//
// Overlays are rasterized once per render into a transparent layer which is
// then blended over each frame.
package compose

import (
	"bytes"
	"image"
	"io"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/fonts"
	"github.com/matzehuels/overlay/pkg/geometry"
	"github.com/matzehuels/overlay/pkg/scene"
	"github.com/matzehuels/overlay/pkg/transform"
)

// DefaultJPEGQuality is used for opaque static output.
const DefaultJPEGQuality = 90

// Output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
)

// Scene is everything drawn over one background.
type Scene struct {
	Canvas  scene.Canvas
	Texts   []scene.TextOverlay
	Images  []scene.ImageOverlay
	Variant geometry.Variant
}

// Output is an encoded render.
type Output struct {
	Data        []byte
	Format      string
	ContentType string
	Width       int
	Height      int
	Frames      int

	// Diagnostics are non-fatal markup issues found while laying out text.
	Diagnostics []error
}

// Ext returns the conventional file extension for the output format.
func (o *Output) Ext() string {
	if o.Format == FormatJPEG {
		return "jpg"
	}
	return o.Format
}

// Compositor renders scenes with a fixed font.
// It holds no per-render state and is safe for concurrent use.
type Compositor struct {
	Font        *fonts.Handle
	JPEGQuality int
	Logger      *log.Logger
}

// New creates a compositor. A nil logger discards output.
func New(font *fonts.Handle, logger *log.Logger) *Compositor {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Compositor{Font: font, JPEGQuality: DefaultJPEGQuality, Logger: logger}
}

// Static renders a single frame.
//
// The output is PNG when the background has transparency or the composed
// frame does; otherwise JPEG. Nothing is returned unless encoding succeeds.
func (c *Compositor) Static(bg image.Image, s Scene) (*Output, error) {
	canvas, err := c.canvas(bg.Bounds().Size(), s.Canvas)
	if err != nil {
		return nil, err
	}

	layer, diags := c.layer(s, canvas.Width, canvas.Height)

	frame := transform.Apply(bg, canvas)
	frame = Brightness(frame, canvas.BrightnessPercent())
	layer.drawOver(frame)

	format, ct := FormatJPEG, "image/jpeg"
	if !opaque(bg) || !frame.Opaque() {
		format, ct = FormatPNG, "image/png"
	}

	var buf bytes.Buffer
	if err := c.encode(&buf, frame, format); err != nil {
		return nil, err
	}
	return &Output{
		Data:        buf.Bytes(),
		Format:      format,
		ContentType: ct,
		Width:       canvas.Width,
		Height:      canvas.Height,
		Frames:      1,
		Diagnostics: diags,
	}, nil
}

// canvas fills a zero canvas size from the source and validates the result.
func (c *Compositor) canvas(natural image.Point, cv scene.Canvas) (scene.Canvas, error) {
	cv.SetDefaults()
	cv = cv.Sized(natural.X, natural.Y)
	if err := cv.Validate(); err != nil {
		return cv, err
	}
	if cv.Width <= 0 || cv.Height <= 0 {
		return cv, errors.New(errors.ErrCodeInvalidInput, "canvas size must be positive, got %dx%d", cv.Width, cv.Height)
	}
	return cv, nil
}

func (c *Compositor) encode(buf *bytes.Buffer, img image.Image, format string) error {
	var err error
	switch format {
	case FormatJPEG:
		q := c.JPEGQuality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	default:
		err = imaging.Encode(buf, img, imaging.PNG)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeEncode, err, "encode %s", format)
	}
	return nil
}

// opaque reports whether img is known to have no transparent pixels.
func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
