package imlayout

import (
	"math"

	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

// TextArea models the auto-growing free-text block.
//
// Fit must be called after every content change. It resets the height to the intrinsic
// height of an empty area and then expands it to the scroll height of the content, so the
// final height never depends on the previous one.
type TextArea struct {
	ruler *textmeasure.Ruler

	Font             textmeasure.Font
	Width            float64
	PaddingX         float64
	PaddingY         float64
	MinContentHeight float64

	Height float64
	Lines  []string
}

func NewTextArea(ruler *textmeasure.Ruler, width float64) *TextArea {
	ta := &TextArea{
		ruler:            ruler,
		Font:             FreeTextFont,
		Width:            width,
		PaddingX:         BLOCK_PADDING_X,
		PaddingY:         BLOCK_PADDING_Y,
		MinContentHeight: BLOCK_MIN_CONTENT_HEIGHT,
	}
	ta.Height = ta.IntrinsicHeight()
	return ta
}

func (ta *TextArea) ContentWidth() float64 {
	return math.Max(0, ta.Width-2*ta.PaddingX)
}

func (ta *TextArea) IntrinsicHeight() float64 {
	return ta.MinContentHeight + 2*ta.PaddingY
}

func (ta *TextArea) ScrollHeight(lines []string) float64 {
	return float64(len(lines))*ta.ruler.LineHeight(ta.Font) + 2*ta.PaddingY
}

// Fit sizes the area to text and returns the new height. Empty text is measured as the
// placeholder.
func (ta *TextArea) Fit(text string) float64 {
	if text == "" {
		text = PLACEHOLDER
	}
	ta.Lines = Wrap(ta.ruler, ta.Font, text, ta.ContentWidth())

	ta.Height = ta.IntrinsicHeight()
	if sh := ta.ScrollHeight(ta.Lines); sh > ta.Height {
		ta.Height = sh
	}
	return ta.Height
}
