// Package geometry converts percentage-based placement fields into pixels and
// resolves device-variant overrides.
//
// Every percentage is relative to the current canvas dimension it is applied
// to; there is no fixed reference resolution.
package geometry

import (
	"fmt"
	"math"
)

// Variant names a set of per-device overrides.
type Variant string

const (
	VariantDefault Variant = "default"
	VariantDesktop Variant = "desktop"
	VariantMobile  Variant = "mobile"
)

// ParseVariant validates a variant name. The empty string means default.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantDefault:
		return VariantDefault, nil
	case VariantDesktop:
		return VariantDesktop, nil
	case VariantMobile:
		return VariantMobile, nil
	}
	return "", fmt.Errorf("invalid variant: %q (must be one of: default, desktop, mobile)", s)
}

// IsDevice reports whether v is a device variant (desktop or mobile).
func (v Variant) IsDevice() bool {
	return v == VariantDesktop || v == VariantMobile
}

// PercentToPixel returns (value/100) × dimension.
func PercentToPixel(valuePercent, dimensionPx float64) float64 {
	return valuePercent / 100 * dimensionPx
}

	return px / dimensionPx * 100
}

// Round converts a pixel coordinate to the nearest integer pixel.
func Round(px float64) int {
	return int(math.Round(px))
}

// Resolve picks the value for the active variant: the variant-specific value
// when it is set, otherwise the generic one.
func Resolve(v Variant, generic float64, desktop, mobile *float64) float64 {
	switch v {
	case VariantDesktop:
		if desktop != nil {
			return *desktop
		}
	case VariantMobile:
		if mobile != nil {
			return *mobile
		}
	}
	return generic
}

// Float returns a pointer to f, for populating optional override fields.
func Float(f float64) *float64 {
	return &f
}
