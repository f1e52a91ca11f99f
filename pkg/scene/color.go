package scene

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/matzehuels/overlay/pkg/errors"
)

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". The leading '#' is optional.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidColor, "invalid color %q (want #rgb, #rrggbb or #rrggbbaa)", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidColor, "invalid color %q (want #rgb, #rrggbb or #rrggbbaa)", s)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
