// Package color converts between the HSB tuples Alexa speaks and the RGB
// triples stored in device shadows. It is the single translation point
// between the two representations.
package color

import "math"

// HsbToRgb converts hue [0,360), saturation [0,1] and brightness [0,1] to
// 8-bit RGB channels.
func HsbToRgb(hue, saturation, brightness float64) (r, g, b int) {
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	saturation = clamp01(saturation)
	brightness = clamp01(brightness)

	c := brightness * saturation
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := brightness - c

	var rf, gf, bf float64
	switch {
	case hue < 60:
		rf, gf, bf = c, x, 0
	case hue < 120:
		rf, gf, bf = x, c, 0
	case hue < 180:
		rf, gf, bf = 0, c, x
	case hue < 240:
		rf, gf, bf = 0, x, c
	case hue < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	r = int(math.Round((rf + m) * 255))
	g = int(math.Round((gf + m) * 255))
	b = int(math.Round((bf + m) * 255))
	return r, g, b
}

// RgbToHsb converts 8-bit RGB channels to hue [0,360), saturation [0,1] and
// brightness [0,1]. Degenerate cases canonicalize: zero saturation yields
// hue 0, zero brightness yields hue and saturation 0.
func RgbToHsb(r, g, b int) (hue, saturation, brightness float64) {
	rf := float64(clampByte(r)) / 255
	gf := float64(clampByte(g)) / 255
	bf := float64(clampByte(b)) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	brightness = max
	if max == 0 {
		return 0, 0, 0
	}

	saturation = delta / max
	if delta == 0 {
		return 0, 0, brightness
	}

	switch max {
	case rf:
		hue = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		hue = 60 * ((bf-rf)/delta + 2)
	default:
		hue = 60 * ((rf-gf)/delta + 4)
	}

	if hue < 0 {
		hue += 360
	}
	return hue, saturation, brightness
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
