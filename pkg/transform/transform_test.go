package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/overlay/pkg/scene"
)

func canvas(w, h int, fit scene.FitMode, anchor scene.Anchor) scene.Canvas {
	c := scene.Canvas{Width: w, Height: h, Fit: fit, Anchor: anchor}
	c.SetDefaults()
	return c
}

func TestPlan(t *testing.T) {
	wide := image.Pt(200, 100)
	tests := []struct {
		name   string
		canvas scene.Canvas
		want   Placement
	}{
		{"cover center", canvas(100, 100, scene.FitCover, scene.AnchorCenter), Placement{image.Pt(200, 100), image.Pt(-50, 0)}},
		{"cover left", canvas(100, 100, scene.FitCover, scene.AnchorLeft), Placement{image.Pt(200, 100), image.Pt(0, 0)}},
		{"cover right", canvas(100, 100, scene.FitCover, scene.AnchorRight), Placement{image.Pt(200, 100), image.Pt(-100, 0)}},
		{"contain center", canvas(100, 100, scene.FitContain, scene.AnchorCenter), Placement{image.Pt(100, 50), image.Pt(0, 25)}},
		{"contain top", canvas(100, 100, scene.FitContain, scene.AnchorTop), Placement{image.Pt(100, 50), image.Pt(0, 0)}},
		{"contain bottom", canvas(100, 100, scene.FitContain, scene.AnchorBottom), Placement{image.Pt(100, 50), image.Pt(0, 50)}},
		{"stretch", canvas(100, 100, scene.FitStretch, scene.AnchorCenter), Placement{image.Pt(100, 100), image.Pt(0, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plan(wide, tt.canvas); got != tt.want {
				t.Errorf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanZoomPan(t *testing.T) {
	c := canvas(100, 100, scene.FitCover, scene.AnchorCenter)
	c.Zoom = 2

	tests := []struct {
		panX, panY float64
		want       image.Point
	}{
		{0, 0, image.Pt(0, 0)},
		{50, 50, image.Pt(-50, -50)},
		{100, 0, image.Pt(-100, 0)},
	}
	for _, tt := range tests {
		c.PanX, c.PanY = tt.panX, tt.panY
		got := Plan(image.Pt(100, 100), c)
		if got.Size != image.Pt(200, 200) || got.Offset != tt.want {
			t.Errorf("pan (%v, %v): Plan() = %+v, want offset %v", tt.panX, tt.panY, got, tt.want)
		}
	}
}

func TestPlanDegenerate(t *testing.T) {
	if got := Plan(image.Pt(0, 10), canvas(100, 100, scene.FitCover, scene.AnchorCenter)); got != (Placement{}) {
		t.Errorf("zero-width source: Plan() = %+v", got)
	}
}

func TestApplyContainLetterbox(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	src := imaging.New(200, 100, red)
	c := canvas(100, 100, scene.FitContain, scene.AnchorCenter)
	c.BackgroundColor = "#0000ff"

	out := Apply(src, c)
	if out.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	assertColor(t, out, 50, 10, color.NRGBA{0, 0, 255, 255})
	assertColor(t, out, 50, 50, red)
	assertColor(t, out, 50, 90, color.NRGBA{0, 0, 255, 255})
}

func TestApplyCoverFillsCanvas(t *testing.T) {
	src := imaging.New(30, 70, color.NRGBA{10, 20, 30, 255})
	out := Apply(src, canvas(64, 48, scene.FitCover, scene.AnchorCenter))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if a := out.NRGBAAt(x, y).A; a != 255 {
				t.Fatalf("pixel (%d,%d) alpha = %d, want 255", x, y, a)
			}
		}
	}
}

func TestApplyZoomShowsPannedRegion(t *testing.T) {
	// Left half red, right half blue.
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.NRGBA{255, 0, 0, 255}
			if x >= 50 {
				c = color.NRGBA{0, 0, 255, 255}
			}
			src.SetNRGBA(x, y, c)
		}
	}

	c := canvas(100, 100, scene.FitCover, scene.AnchorCenter)
	c.Zoom = 2

	c.PanX = 0
	assertColor(t, Apply(src, c), 50, 50, color.NRGBA{255, 0, 0, 255})

	c.PanX = 100
	assertColor(t, Apply(src, c), 50, 50, color.NRGBA{0, 0, 255, 255})
}

func assertColor(t *testing.T, img *image.NRGBA, x, y int, want color.NRGBA) {
	t.Helper()
	got := img.NRGBAAt(x, y)
	if diff(got.R, want.R) > 2 || diff(got.G, want.G) > 2 || diff(got.B, want.B) > 2 || diff(got.A, want.A) > 2 {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
