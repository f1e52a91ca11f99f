package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/transform"
)

// DefaultDelayMs is the delay of a first frame that declares none.
const DefaultDelayMs = 100

// Disposal is how a frame's patch is removed before the next frame is drawn.
type Disposal byte

const (
	DisposalUnspecified Disposal = 0
	DisposalNone        Disposal = 1 // do not dispose
	DisposalBackground  Disposal = 2 // restore the patch to transparent
	DisposalPrevious    Disposal = 3 // restore the state before this frame
)

func (d Disposal) String() string {
	switch d {
	case DisposalNone:
		return "none"
	case DisposalBackground:
		return "background"
	case DisposalPrevious:
		return "previous"
	default:
		return "unspecified"
	}
}

// Frame describes one decoded GIF frame.
type Frame struct {
	Index    int
	Patch    image.Rectangle
	DelayMs  int
	Disposal Disposal
}

// Frames lists g's frames with delays resolved: a missing delay repeats the
// previous frame's, and the first frame falls back to DefaultDelayMs.
func Frames(g *gif.GIF) []Frame {
	frames := make([]Frame, len(g.Image))
	prev := DefaultDelayMs
	for i, img := range g.Image {
		f := Frame{Index: i, Patch: img.Bounds(), DelayMs: prev}
		if i < len(g.Delay) && g.Delay[i] > 0 {
			f.DelayMs = g.Delay[i] * 10
		}
		if i < len(g.Disposal) {
			f.Disposal = Disposal(g.Disposal[i])
		}
		prev = f.DelayMs
		frames[i] = f
	}
	return frames
}

// =============================================================================
// Disposal state machine
// =============================================================================

// disposer owns the persistent composite canvas. Each frame goes through
// begin (snapshot if needed), patch, and end (dispose).
type disposer struct {
	composite *image.NRGBA
	snapshot  *image.NRGBA
}

func newDisposer(w, h int) *disposer {
	return &disposer{composite: image.NewNRGBA(image.Rect(0, 0, w, h))}
}

func (d *disposer) begin(f Frame) {
	d.snapshot = nil
	if f.Disposal == DisposalPrevious {
		d.snapshot = imaging.Clone(d.composite)
	}
}

// patch blends a frame's pixels into the composite. Transparent patch pixels
// leave what is underneath.
func (d *disposer) patch(img *image.Paletted) {
	draw.Draw(d.composite, img.Bounds(), img, img.Bounds().Min, draw.Over)
}

func (d *disposer) end(f Frame) {
	switch f.Disposal {
	case DisposalBackground:
		draw.Draw(d.composite, f.Patch, image.Transparent, image.Point{}, draw.Src)
	case DisposalPrevious:
		if d.snapshot != nil {
			d.composite = d.snapshot
			d.snapshot = nil
		}
	case DisposalUnspecified, DisposalNone:
	default:
		// Reserved values behave like DisposalNone.
	}
}

// =============================================================================
// Animated rendering
// =============================================================================

// Animated re-renders every frame of g with the scene's overlays.
//
// Frames are processed strictly in order. Brightness and overlays are applied
// to each output frame only, never to the composite, so they do not compound.
// Output frames cover the whole canvas; the loop count is preserved.
func (c *Compositor) Animated(g *gif.GIF, s Scene) (*Output, error) {
	if len(g.Image) == 0 {
		return nil, errors.New(errors.ErrCodeDecode, "gif has no frames")
	}

	natural := image.Pt(g.Config.Width, g.Config.Height)
	if natural.X <= 0 || natural.Y <= 0 {
		natural = g.Image[0].Bounds().Max
	}
	canvas, err := c.canvas(natural, s.Canvas)
	if err != nil {
		return nil, err
	}
	resize := canvas.Width != natural.X || canvas.Height != natural.Y || canvas.Zoom != 1

	layer, diags := c.layer(s, canvas.Width, canvas.Height)
	brightness := canvas.BrightnessPercent()

	frames := Frames(g)
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		Disposal:  make([]byte, 0, len(frames)),
		LoopCount: g.LoopCount,
		Config:    image.Config{Width: canvas.Width, Height: canvas.Height},
	}

	d := newDisposer(natural.X, natural.Y)
	for i, f := range frames {
		d.begin(f)
		d.patch(g.Image[i])

		var frame *image.NRGBA
		if resize {
			frame = transform.Apply(d.composite, canvas)
		} else {
			frame = imaging.Clone(d.composite)
		}
		frame = Brightness(frame, brightness)
		layer.drawOver(frame)

		pal := framePalette(g.Image[i].Palette, brightness/100, layer.colors)
		pm := image.NewPaletted(frame.Bounds(), pal)
		draw.Draw(pm, pm.Bounds(), frame, image.Point{}, draw.Src)

		out.Image = append(out.Image, pm)
		out.Delay = append(out.Delay, (f.DelayMs+5)/10)
		out.Disposal = append(out.Disposal, gif.DisposalBackground)

		d.end(f)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "encode gif")
	}

	c.Logger.Debug("rendered animation", "frames", len(frames), "width", canvas.Width, "height", canvas.Height)
	return &Output{
		Data:        buf.Bytes(),
		Format:      FormatGIF,
		ContentType: "image/gif",
		Width:       canvas.Width,
		Height:      canvas.Height,
		Frames:      len(frames),
		Diagnostics: diags,
	}, nil
}

// framePalette builds the palette of an output frame: the source palette
// scaled by brightness factor f, then a transparent entry and the overlay
// colours. When the palette is full, extras replace entries from the end.
func framePalette(base color.Palette, f float64, overlay []color.NRGBA) color.Palette {
	const maxColors = 256

	pal := make(color.Palette, 0, maxColors)
	for _, c := range base {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		if f != 1 {
			n = scaleColor(n, f)
		}
		if !hasColor(pal, n) {
			pal = append(pal, n)
		}
	}
	if len(pal) == 0 {
		pal = append(pal, color.Black)
	}

	extras := make([]color.Color, 0, len(overlay)+1)
	extras = append(extras, color.NRGBA{})
	for _, c := range overlay {
		c.A = 0xff
		extras = append(extras, c)
	}

	replace := len(pal) - 1
	for _, e := range extras {
		if hasColor(pal, e) {
			continue
		}
		if len(pal) < maxColors {
			pal = append(pal, e)
			continue
		}
		if replace < 0 {
			break
		}
		pal[replace] = e
		replace--
	}
	return pal
}

func hasColor(p color.Palette, c color.Color) bool {
	r, g, b, a := c.RGBA()
	for _, pc := range p {
		pr, pg, pb, pa := pc.RGBA()
		if pr == r && pg == g && pb == b && pa == a {
			return true
		}
	}
	return false
}
