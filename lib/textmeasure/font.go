package textmeasure

import (
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

type FontStyle string

const (
	FONT_STYLE_REGULAR FontStyle = "regular"
	FONT_STYLE_BOLD    FontStyle = "bold"
)

var FontStyles = []FontStyle{
	FONT_STYLE_REGULAR,
	FONT_STYLE_BOLD,
}

// FontFamily is the CSS font-family name fonts are embedded under.
const FontFamily = "impactmap-go"

type Font struct {
	Style FontStyle
	Size  int
}

func NewFont(style FontStyle, size int) Font {
	return Font{
		Style: style,
		Size:  size,
	}
}

// Weight is the CSS font-weight of f.
func (f Font) Weight() int {
	if f.Style == FONT_STYLE_BOLD {
		return 700
	}
	return 400
}

// TTF returns the embedded TrueType data for style.
func TTF(style FontStyle) []byte {
	switch style {
	case FONT_STYLE_BOLD:
		return gobold.TTF
	default:
		return goregular.TTF
	}
}
