package scene

import (
	"encoding/json"
	"image"
	"image/color"

	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/geometry"
)

// DefaultTextColor is used when a text overlay omits Color.
const DefaultTextColor = "#ffffff"

// =============================================================================
// Text Overlays
// =============================================================================

// TextOverride holds per-device replacements for a text overlay.
// A nil field falls back to the generic value.
type TextOverride struct {
	FontSizePercent *float64 `json:"font_size,omitempty" yaml:"font_size,omitempty"`
	X               *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y               *float64 `json:"y,omitempty" yaml:"y,omitempty"`
}

func (o *TextOverride) fontSize() *float64 {
	if o == nil {
		return nil
	}
	return o.FontSizePercent
}

func (o *TextOverride) x() *float64 {
	if o == nil {
		return nil
	}
	return o.X
}

func (o *TextOverride) y() *float64 {
	if o == nil {
		return nil
	}
	return o.Y
}

// TextOverlay is a block of markup text anchored at (X, Y).
type TextOverlay struct {
	ID              string        `json:"id,omitempty" yaml:"id,omitempty"`
	Markup          string        `json:"text" yaml:"text"`
	FontSizePercent float64       `json:"font_size" yaml:"font_size"`
	Color           string        `json:"color,omitempty" yaml:"color,omitempty"`
	X               float64       `json:"x" yaml:"x"`
	Y               float64       `json:"y" yaml:"y"`
	Desktop         *TextOverride `json:"desktop,omitempty" yaml:"desktop,omitempty"`
	Mobile          *TextOverride `json:"mobile,omitempty" yaml:"mobile,omitempty"`
	AllCaps         bool          `json:"all_caps,omitempty" yaml:"all_caps,omitempty"`
}

// TextPlacement is a text overlay resolved to pixels for one canvas and variant.
type TextPlacement struct {
	SizePx float64
	X, Y   float64
	Color  color.NRGBA
}

// Validate checks the overlay's fields.
func (t *TextOverlay) Validate() error {
	if t.ID != "" {
		if err := errors.ValidateID(t.ID); err != nil {
			return err
		}
	}
	if t.FontSizePercent <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "text overlay %q: font_size must be positive", t.ID)
	}
	if s := t.Desktop.fontSize(); s != nil && *s <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "text overlay %q: desktop font_size must be positive", t.ID)
	}
	if s := t.Mobile.fontSize(); s != nil && *s <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "text overlay %q: mobile font_size must be positive", t.ID)
	}
	_, err := t.color()
	return err
}

func (t *TextOverlay) color() (color.NRGBA, error) {
	if t.Color == "" {
		return ParseColor(DefaultTextColor)
	}
	return ParseColor(t.Color)
}

// Place resolves the overlay for a canvas of w×h pixels. Every field comes from
// the same variant, falling back field by field to the generic value.
func (t *TextOverlay) Place(v geometry.Variant, w, h int) TextPlacement {
	size := geometry.Resolve(v, t.FontSizePercent, t.Desktop.fontSize(), t.Mobile.fontSize())
	x := geometry.Resolve(v, t.X, t.Desktop.x(), t.Mobile.x())
	y := geometry.Resolve(v, t.Y, t.Desktop.y(), t.Mobile.y())

	col, err := t.color()
	if err != nil {
		col = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return TextPlacement{
		SizePx: geometry.PercentToPixel(size, float64(w)),
		X:      geometry.PercentToPixel(x, float64(w)),
		Y:      geometry.PercentToPixel(y, float64(h)),
		Color:  col,
	}
}

// =============================================================================
// Image Overlays
// =============================================================================

// ImageOverride holds per-device replacements for an image overlay.
type ImageOverride struct {
	WidthPercent *float64 `json:"width,omitempty" yaml:"width,omitempty"`
	X            *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y            *float64 `json:"y,omitempty" yaml:"y,omitempty"`
}

func (o *ImageOverride) width() *float64 {
	if o == nil {
		return nil
	}
	return o.WidthPercent
}

func (o *ImageOverride) x() *float64 {
	if o == nil {
		return nil
	}
	return o.X
}

func (o *ImageOverride) y() *float64 {
	if o == nil {
		return nil
	}
	return o.Y
}

// ImageOverlay is a raster placed with its top-left corner at (X, Y).
//
// HeightPercent is expressed in canvas-width units and always equals
// WidthPercent / AspectRatio, so the drawn rectangle keeps the source's
// proportions on any canvas.
type ImageOverlay struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	Source        string         `json:"source" yaml:"source"`
	WidthPercent  float64        `json:"width" yaml:"width"`
	HeightPercent float64        `json:"height,omitempty" yaml:"height,omitempty"`
	X             float64        `json:"x" yaml:"x"`
	Y             float64        `json:"y" yaml:"y"`
	AspectRatio   float64        `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty"`
	Desktop       *ImageOverride `json:"desktop,omitempty" yaml:"desktop,omitempty"`
	Mobile        *ImageOverride `json:"mobile,omitempty" yaml:"mobile,omitempty"`

	// Image holds the decoded pixels, attached by the pipeline after fetching Source.
	Image image.Image `json:"-" yaml:"-"`
}

// SetWidth changes the width and re-derives the height from the aspect ratio.
func (o *ImageOverlay) SetWidth(widthPercent float64) {
	o.WidthPercent = widthPercent
	if o.AspectRatio > 0 {
		o.HeightPercent = widthPercent / o.AspectRatio
	}
}

// Normalize derives AspectRatio when it is unset (from the decoded image, or
// from the width/height pair) and then re-derives HeightPercent from it.
func (o *ImageOverlay) Normalize() error {
	aspect := o.aspect()
	if aspect <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: aspect_ratio or height is required", o.ID)
	}
	o.AspectRatio = aspect
	o.SetWidth(o.WidthPercent)
	return nil
}

// Validate checks the overlay's fields.
func (o *ImageOverlay) Validate() error {
	if o.ID != "" {
		if err := errors.ValidateID(o.ID); err != nil {
			return err
		}
	}
	if o.Source == "" && o.Image == nil {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: source is required", o.ID)
	}
	if o.WidthPercent <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: width must be positive", o.ID)
	}
	if w := o.Desktop.width(); w != nil && *w <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: desktop width must be positive", o.ID)
	}
	if w := o.Mobile.width(); w != nil && *w <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: mobile width must be positive", o.ID)
	}
	if o.AspectRatio < 0 || o.HeightPercent < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "image overlay %q: negative height or aspect_ratio", o.ID)
	}
	return nil
}

// aspect is AspectRatio, or the ratio Normalize would derive when it is unset.
func (o *ImageOverlay) aspect() float64 {
	switch {
	case o.AspectRatio > 0:
		return o.AspectRatio
	case o.Image != nil && o.Image.Bounds().Dy() > 0:
		b := o.Image.Bounds()
		return float64(b.Dx()) / float64(b.Dy())
	case o.HeightPercent > 0:
		return o.WidthPercent / o.HeightPercent
	}
	return 0
}

// Rect resolves the overlay to a pixel rectangle on a w×h canvas. The height
// always follows the resolved width.
func (o *ImageOverlay) Rect(v geometry.Variant, w, h int) image.Rectangle {
	width := geometry.Resolve(v, o.WidthPercent, o.Desktop.width(), o.Mobile.width())
	height := 0.0
	if aspect := o.aspect(); aspect > 0 {
		height = width / aspect
	}
	x := geometry.Resolve(v, o.X, o.Desktop.x(), o.Mobile.x())
	y := geometry.Resolve(v, o.Y, o.Desktop.y(), o.Mobile.y())

	fw := float64(w)
	x0 := geometry.Round(geometry.PercentToPixel(x, fw))
	y0 := geometry.Round(geometry.PercentToPixel(y, float64(h)))
	return image.Rect(x0, y0,
		x0+geometry.Round(geometry.PercentToPixel(width, fw)),
		y0+geometry.Round(geometry.PercentToPixel(height, fw)))
}

// =============================================================================
// Tagged Union
// =============================================================================

// Kind discriminates Overlay.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Overlay is either a text or an image overlay. Exactly one of Text and Image
// is set, matching Kind.
type Overlay struct {
	Kind  Kind          `json:"kind" yaml:"kind"`
	Text  *TextOverlay  `json:"text,omitempty" yaml:"text,omitempty"`
	Image *ImageOverlay `json:"image,omitempty" yaml:"image,omitempty"`
}

// Text wraps t as an Overlay.
func Text(t TextOverlay) Overlay { return Overlay{Kind: KindText, Text: &t} }

// Image wraps o as an Overlay.
func Image(o ImageOverlay) Overlay { return Overlay{Kind: KindImage, Image: &o} }

// Check reports whether the discriminator matches the populated variant.
func (o Overlay) Check() error {
	switch o.Kind {
	case KindText:
		if o.Text == nil || o.Image != nil {
			return errors.New(errors.ErrCodeInvalidInput, "overlay of kind text must set only text")
		}
	case KindImage:
		if o.Image == nil || o.Text != nil {
			return errors.New(errors.ErrCodeInvalidInput, "overlay of kind image must set only image")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid overlay kind: %q (must be one of: text, image)", o.Kind)
	}
	return nil
}

// UnmarshalJSON accepts the explicit form {"kind": ..., "text"|"image": {...}}.
func (o *Overlay) UnmarshalJSON(data []byte) error {
	type raw Overlay
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*o = Overlay(r)
	return o.Check()
}

// Split resolves a mixed overlay list into typed slices, keeping input order
// within each kind.
func Split(overlays []Overlay) ([]TextOverlay, []ImageOverlay, error) {
	var texts []TextOverlay
	var images []ImageOverlay
	for i, o := range overlays {
		if err := o.Check(); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "overlay %d", i)
		}
		switch o.Kind {
		case KindText:
			texts = append(texts, *o.Text)
		case KindImage:
			images = append(images, *o.Image)
		}
	}
	return texts, images, nil
}
