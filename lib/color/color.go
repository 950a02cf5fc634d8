// Package color parses and derives the CSS colors used by themes.
package color

import (
	"fmt"
	stdcolor "image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
)

const (
	White = "#ffffff"
	Black = "#000000"

	// Special
	Empty = ""
	None  = "none"
)

// Blend mixes a towards b by t in [0, 1].
func Blend(a, b string, t float64) (string, error) {
	ca, err := csscolorparser.Parse(a)
	if err != nil {
		return "", err
	}
	cb, err := csscolorparser.Parse(b)
	if err != nil {
		return "", err
	}
	c1 := colorful.Color{R: ca.R, G: ca.G, B: ca.B}
	c2 := colorful.Color{R: cb.R, G: cb.G, B: cb.B}
	return c1.BlendRgb(c2, t).Clamped().Hex(), nil
}

// RGBA converts a CSS color string to an image color.
func RGBA(colorString string) (stdcolor.RGBA, error) {
	if colorString == None || colorString == Empty {
		return stdcolor.RGBA{}, nil
	}
	c, err := csscolorparser.Parse(colorString)
	if err != nil {
		return stdcolor.RGBA{}, fmt.Errorf("invalid color %q: %w", colorString, err)
	}
	r, g, b, a := c.RGBA255()
	// image/color expects premultiplied alpha.
	if a != 255 {
		r = uint8(uint16(r) * uint16(a) / 255)
		g = uint8(uint16(g) * uint16(a) / 255)
		b = uint8(uint16(b) * uint16(a) / 255)
	}
	return stdcolor.RGBA{R: r, G: g, B: b, A: a}, nil
}
