// Package scene defines the render-time data model: the canvas and the text
// and image overlays placed on it.
//
// All placement fields are percentages relative to the current canvas
// dimensions. Font size, overlay width and overlay height are percentages of
// the canvas width; X is a percentage of the width and Y of the height.
//
// Overlays arrive from callers as a mixed list. [Split] resolves that list once
// into typed text and image slices, preserving input order within each kind.
package scene

import (
	"image/color"

	"github.com/matzehuels/overlay/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultBrightness leaves background pixels unchanged.
	DefaultBrightness = 100.0

	// MaxBrightness is the upper bound of Canvas.Brightness.
	MaxBrightness = 200.0

	// DefaultZoom disables zoom.
	DefaultZoom = 1.0

	// MaxZoom bounds the zoom factor.
	MaxZoom = 10.0

	// DefaultBackgroundColor fills letterbox bars in contain mode.
	DefaultBackgroundColor = "#000000"
)

// FitMode is the background scaling strategy.
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
	FitStretch FitMode = "stretch"
)

// Anchor pins the scaled background to a canvas edge.
type Anchor string

const (
	AnchorCenter Anchor = "center"
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
)

// ValidFitModes is the set of supported fit modes.
var ValidFitModes = map[FitMode]bool{
	FitCover:   true,
	FitContain: true,
	FitStretch: true,
}

// ValidAnchors is the set of supported anchors.
var ValidAnchors = map[Anchor]bool{
	AnchorCenter: true,
	AnchorTop:    true,
	AnchorBottom: true,
	AnchorLeft:   true,
	AnchorRight:  true,
}

// =============================================================================
// Canvas
// =============================================================================

// Canvas describes the output raster and how the background is fitted into it.
type Canvas struct {
	// Width and Height are the output size in pixels. Zero means "use the
	// background's natural size" and is filled in by the pipeline.
	Width  int `json:"width,omitempty" yaml:"width,omitempty"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`

	Fit    FitMode `json:"fit,omitempty" yaml:"fit,omitempty"`
	Anchor Anchor  `json:"anchor,omitempty" yaml:"anchor,omitempty"`

	// Brightness is a percentage in [0, 200]. Nil means 100.
	Brightness *float64 `json:"brightness,omitempty" yaml:"brightness,omitempty"`

	Zoom float64 `json:"zoom,omitempty" yaml:"zoom,omitempty"`
	PanX float64 `json:"pan_x,omitempty" yaml:"pan_x,omitempty"`
	PanY float64 `json:"pan_y,omitempty" yaml:"pan_y,omitempty"`

	BackgroundColor string `json:"background_color,omitempty" yaml:"background_color,omitempty"`
}

// SetDefaults fills unset fields. It never touches Width or Height.
func (c *Canvas) SetDefaults() {
	if c.Fit == "" {
		c.Fit = FitCover
	}
	if c.Anchor == "" {
		c.Anchor = AnchorCenter
	}
	if c.Zoom == 0 {
		c.Zoom = DefaultZoom
	}
	if c.BackgroundColor == "" {
		c.BackgroundColor = DefaultBackgroundColor
	}
}

// Validate checks ranges and enumerations. Call SetDefaults first.
func (c *Canvas) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "canvas size must not be negative, got %dx%d", c.Width, c.Height)
	}
	if !ValidFitModes[c.Fit] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid fit: %q (must be one of: cover, contain, stretch)", c.Fit)
	}
	if !ValidAnchors[c.Anchor] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid anchor: %q (must be one of: center, top, bottom, left, right)", c.Anchor)
	}
	if err := errors.ValidatePercent("brightness", c.BrightnessPercent(), 0, MaxBrightness); err != nil {
		return err
	}
	if c.Zoom < 1 || c.Zoom > MaxZoom {
		return errors.New(errors.ErrCodeInvalidInput, "zoom must be within [1, %g], got %g", MaxZoom, c.Zoom)
	}
	if err := errors.ValidatePercent("pan_x", c.PanX, 0, 100); err != nil {
		return err
	}
	if err := errors.ValidatePercent("pan_y", c.PanY, 0, 100); err != nil {
		return err
	}
	_, err := ParseColor(c.BackgroundColor)
	return err
}

// BrightnessPercent returns the effective brightness.
func (c *Canvas) BrightnessPercent() float64 {
	if c.Brightness == nil {
		return DefaultBrightness
	}
	return *c.Brightness
}

// Background returns the parsed letterbox colour, falling back to opaque black.
func (c *Canvas) Background() color.NRGBA {
	col, err := ParseColor(c.BackgroundColor)
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	return col
}

// Sized returns a copy of c with zero dimensions taken from (w, h).
func (c Canvas) Sized(w, h int) Canvas {
	if c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = w, h
	} else if c.Width == 0 && h > 0 {
		c.Width = w * c.Height / h
	} else if c.Height == 0 && w > 0 {
		c.Height = h * c.Width / w
	}
	return c
}
