package imlayout

import "oss.terrastruct.com/impactmap/lib/textmeasure"

const (
	PAD = 10

	CIRCLE_DIAMETER     = 180
	CIRCLE_PADDING      = 20
	CIRCLE_STROKE_WIDTH = 3
	NODE_GAP            = 40
	NODE_PITCH          = CIRCLE_DIAMETER + NODE_GAP

	ARROW_LENGTH       = 150
	ARROW_STROKE_WIDTH = 4
	ARROW_HEAD_WIDTH   = 20
	ARROW_HEAD_LENGTH  = 20

	BLOCK_MIN_WIDTH          = 180
	BLOCK_PADDING_X          = 35
	BLOCK_PADDING_Y          = 20
	BLOCK_MIN_CONTENT_HEIGHT = 45
	BLOCK_STROKE_WIDTH       = 3
	BLOCK_BORDER_RADIUS      = 14

	FOCUS_RING_WIDTH = 4
)

const PLACEHOLDER = "Your text here"

var (
	LabelFont    = textmeasure.NewFont(textmeasure.FONT_STYLE_BOLD, 16)
	FreeTextFont = textmeasure.NewFont(textmeasure.FONT_STYLE_BOLD, 15)
)

// BlockWidth is the width of the free-text block beneath n nodes.
func BlockWidth(n int) float64 {
	w := float64(n*NODE_PITCH - NODE_GAP)
	if w < BLOCK_MIN_WIDTH {
		return BLOCK_MIN_WIDTH
	}
	return w
}
