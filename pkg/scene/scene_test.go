package scene

import (
	"encoding/json"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/geometry"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#fff", color.NRGBA{255, 255, 255, 255}, false},
		{"#ff8000", color.NRGBA{255, 128, 0, 255}, false},
		{"ff800080", color.NRGBA{255, 128, 0, 128}, false},
		{"#000000", color.NRGBA{0, 0, 0, 255}, false},
		{"", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidColor) {
					t.Errorf("error code = %v, want INVALID_COLOR", errors.GetCode(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanvasDefaults(t *testing.T) {
	c := Canvas{Width: 800, Height: 600}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if c.Fit != FitCover || c.Anchor != AnchorCenter || c.Zoom != 1 {
		t.Errorf("defaults = %+v", c)
	}
	if c.BrightnessPercent() != 100 {
		t.Errorf("BrightnessPercent() = %v, want 100", c.BrightnessPercent())
	}

	zero := 0.0
	c.Brightness = &zero
	if c.BrightnessPercent() != 0 {
		t.Errorf("explicit zero brightness = %v, want 0", c.BrightnessPercent())
	}
}

func TestCanvasValidate(t *testing.T) {
	over := 201.0
	tests := []struct {
		name   string
		mutate func(*Canvas)
	}{
		{"fit", func(c *Canvas) { c.Fit = "fill" }},
		{"anchor", func(c *Canvas) { c.Anchor = "middle" }},
		{"brightness", func(c *Canvas) { c.Brightness = &over }},
		{"zoom", func(c *Canvas) { c.Zoom = 0.5 }},
		{"pan", func(c *Canvas) { c.PanX = 120 }},
		{"color", func(c *Canvas) { c.BackgroundColor = "black" }},
		{"size", func(c *Canvas) { c.Width = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Canvas{Width: 100, Height: 100}
			c.SetDefaults()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestCanvasSized(t *testing.T) {
	tests := []struct {
		in           Canvas
		w, h         int
		wantW, wantH int
	}{
		{Canvas{}, 640, 480, 640, 480},
		{Canvas{Width: 320}, 640, 480, 320, 240},
		{Canvas{Height: 240}, 640, 480, 320, 240},
		{Canvas{Width: 100, Height: 50}, 640, 480, 100, 50},
	}
	for _, tt := range tests {
		got := tt.in.Sized(tt.w, tt.h)
		if got.Width != tt.wantW || got.Height != tt.wantH {
			t.Errorf("%+v.Sized(%d, %d) = %dx%d, want %dx%d", tt.in, tt.w, tt.h, got.Width, got.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestTextPlacementVariants(t *testing.T) {
	text := TextOverlay{
		Markup:          "hello",
		FontSizePercent: 5,
		X:               10,
		Y:               20,
		Desktop:         &TextOverride{X: geometry.Float(30)},
		Mobile:          &TextOverride{FontSizePercent: geometry.Float(8)},
	}

	tests := []struct {
		variant    geometry.Variant
		size, x, y float64
	}{
		{geometry.VariantDefault, 20, 40, 40},
		{geometry.VariantDesktop, 20, 120, 40},
		{geometry.VariantMobile, 32, 40, 40},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			p := text.Place(tt.variant, 400, 200)
			if p.SizePx != tt.size || p.X != tt.x || p.Y != tt.y {
				t.Errorf("Place() = %+v, want size=%v x=%v y=%v", p, tt.size, tt.x, tt.y)
			}
			if p.Color != (color.NRGBA{255, 255, 255, 255}) {
				t.Errorf("default color = %v, want white", p.Color)
			}
		})
	}
}

func TestImageOverlayAspect(t *testing.T) {
	o := ImageOverlay{Source: "logo.png", WidthPercent: 20, Image: image.NewNRGBA(image.Rect(0, 0, 200, 100))}
	if err := o.Normalize(); err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if o.AspectRatio != 2 || o.HeightPercent != 10 {
		t.Errorf("after Normalize: aspect=%v height=%v, want 2 and 10", o.AspectRatio, o.HeightPercent)
	}

	o.SetWidth(30)
	if o.HeightPercent != 15 {
		t.Errorf("after SetWidth(30): height=%v, want 15", o.HeightPercent)
	}

	// Rectangle keeps the source proportions on a non-square canvas.
	r := o.Rect(geometry.VariantDefault, 1000, 500)
	if r != image.Rect(0, 0, 300, 150) {
		t.Errorf("Rect() = %v, want (0,0)-(300,150)", r)
	}
}

func TestImageOverlayNormalizeFromHeight(t *testing.T) {
	o := ImageOverlay{Source: "x", WidthPercent: 30, HeightPercent: 10}
	if err := o.Normalize(); err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if math.Abs(o.AspectRatio-3) > 1e-9 {
		t.Errorf("aspect = %v, want 3", o.AspectRatio)
	}

	missing := ImageOverlay{Source: "x", WidthPercent: 30}
	if err := missing.Normalize(); err == nil {
		t.Error("Normalize() without aspect or height should fail")
	}
}

func TestImageRectVariant(t *testing.T) {
	o := ImageOverlay{
		Source:       "x",
		WidthPercent: 10,
		AspectRatio:  1,
		X:            50,
		Y:            50,
		Desktop:      &ImageOverride{WidthPercent: geometry.Float(20), X: geometry.Float(0)},
	}
	o.SetWidth(10)

	if got := o.Rect(geometry.VariantDefault, 400, 200); got != image.Rect(200, 100, 240, 140) {
		t.Errorf("default Rect() = %v", got)
	}
	// Width and X come from desktop, Y falls back to generic; height follows width.
	if got := o.Rect(geometry.VariantDesktop, 400, 200); got != image.Rect(0, 100, 80, 180) {
		t.Errorf("desktop Rect() = %v", got)
	}
}

func TestImageRectHeightFollowsVariantWidth(t *testing.T) {
	tests := []struct {
		name string
		o    ImageOverlay
		want image.Rectangle
	}{
		{
			name: "generic height",
			o: ImageOverlay{Source: "x", WidthPercent: 10, HeightPercent: 5,
				Desktop: &ImageOverride{WidthPercent: geometry.Float(20)}},
			want: image.Rect(0, 0, 80, 40),
		},
		{
			name: "attached image",
			o: ImageOverlay{WidthPercent: 50, Image: image.NewNRGBA(image.Rect(0, 0, 10, 5)),
				Desktop: &ImageOverride{WidthPercent: geometry.Float(100)}},
			want: image.Rect(0, 0, 400, 200),
		},
		{
			name: "no aspect",
			o:    ImageOverlay{Source: "x", WidthPercent: 10},
			want: image.Rect(0, 0, 40, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.Rect(geometry.VariantDesktop, 400, 200); got != tt.want {
				t.Errorf("Rect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	overlays := []Overlay{
		Text(TextOverlay{ID: "a", Markup: "A", FontSizePercent: 1}),
		Image(ImageOverlay{ID: "b", Source: "b.png", WidthPercent: 1}),
		Text(TextOverlay{ID: "c", Markup: "C", FontSizePercent: 1}),
	}

	texts, images, err := Split(overlays)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(texts) != 2 || texts[0].ID != "a" || texts[1].ID != "c" {
		t.Errorf("texts = %+v", texts)
	}
	if len(images) != 1 || images[0].ID != "b" {
		t.Errorf("images = %+v", images)
	}

	bad := []Overlay{{Kind: KindText}}
	if _, _, err := Split(bad); err == nil {
		t.Error("Split() should reject a text overlay without text")
	}
}

func TestOverlayUnmarshalJSON(t *testing.T) {
	var o Overlay
	if err := json.Unmarshal([]byte(`{"kind":"image","image":{"source":"a.png","width":10}}`), &o); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if o.Image == nil || o.Image.Source != "a.png" {
		t.Errorf("decoded = %+v", o)
	}

	if err := json.Unmarshal([]byte(`{"kind":"video"}`), &o); err == nil {
		t.Error("unknown kind should fail")
	}
	if err := json.Unmarshal([]byte(`{"kind":"text","image":{"source":"a.png"}}`), &o); err == nil {
		t.Error("mismatched kind should fail")
	}
}

func TestTextValidate(t *testing.T) {
	ok := TextOverlay{Markup: "x", FontSizePercent: 4, Color: "#abc"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	badColor := TextOverlay{Markup: "x", FontSizePercent: 4, Color: "red"}
	if err := badColor.Validate(); !errors.Is(err, errors.ErrCodeInvalidColor) {
		t.Errorf("bad color error = %v", err)
	}

	badSize := TextOverlay{Markup: "x", FontSizePercent: 4, Mobile: &TextOverride{FontSizePercent: geometry.Float(0)}}
	if err := badSize.Validate(); err == nil {
		t.Error("zero mobile font size should fail")
	}
}
