package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Brightness multiplies R, G and B by percent/100, clamped to [0, 255].
// Alpha is left untouched. At 100 the input is returned as is.
func Brightness(img *image.NRGBA, percent float64) *image.NRGBA {
	if percent == 100 {
		return img
	}
	f := percent / 100
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return scaleColor(c, f)
	})
}

func scaleColor(c color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{R: scale(c.R, f), G: scale(c.G, f), B: scale(c.B, f), A: c.A}
}

func scale(v uint8, f float64) uint8 {
	x := math.Round(float64(v) * f)
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	}
	return uint8(x)
}
