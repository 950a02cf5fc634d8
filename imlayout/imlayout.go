// Package imlayout positions the shapes of an impact map.
//
// Layout is a pure function of the diagram state and the per-viewer decorations (focus and
// selection). Nodes are laid out in a single row of circles, each with a down arrow into the
// free-text block beneath them.
package imlayout

import (
	"fmt"

	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/geo"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

type FieldKind string

const (
	FIELD_NODE FieldKind = "node"
	FIELD_TEXT FieldKind = "text"
)

// Field identifies one editable input of the page.
type Field struct {
	Kind  FieldKind `json:"kind"`
	Index int       `json:"index,omitempty"`
}

func NodeField(i int) Field {
	return Field{Kind: FIELD_NODE, Index: i}
}

func TextField() Field {
	return Field{Kind: FIELD_TEXT}
}

func (f Field) String() string {
	if f.Kind == FIELD_NODE {
		return fmt.Sprintf("node[%d]", f.Index)
	}
	return string(f.Kind)
}

// Selection is a rune range [Start, End) of a field's text.
type Selection struct {
	Field Field `json:"field"`
	Start int   `json:"start"`
	End   int   `json:"end"`
}

func (s *Selection) Empty() bool {
	return s == nil || s.End <= s.Start
}

type Decorations struct {
	Focus     *Field
	Selection *Selection
}

type Line struct {
	Text string `json:"text"`
	// Center of the line on the x axis.
	X        float64 `json:"x"`
	Top      float64 `json:"top"`
	Baseline float64 `json:"baseline"`
	Width    float64 `json:"width"`
}

type Node struct {
	Index       int      `json:"index"`
	Box         *geo.Box `json:"box"`
	Label       string   `json:"label"`
	Placeholder bool     `json:"placeholder"`
	Lines       []Line   `json:"lines"`
}

type Arrow struct {
	Start *geo.Point `json:"start"`
	// End is the tip of the arrow head.
	End *geo.Point `json:"end"`
}

// HeadBase returns the corners of the arrow head's base and the shaft end.
func (a Arrow) HeadBase() (left, right, shaftEnd *geo.Point) {
	y := a.End.Y - ARROW_HEAD_LENGTH
	return geo.NewPoint(a.End.X-ARROW_HEAD_WIDTH/2, y),
		geo.NewPoint(a.End.X+ARROW_HEAD_WIDTH/2, y),
		geo.NewPoint(a.End.X, y)
}

type Block struct {
	Box         *geo.Box `json:"box"`
	Text        string   `json:"text"`
	Placeholder bool     `json:"placeholder"`
	Lines       []Line   `json:"lines"`
}

type Diagram struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Nodes  []Node  `json:"nodes"`
	Arrows []Arrow `json:"arrows"`
	Block  Block   `json:"block"`

	Focus     *Field     `json:"focus,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
}

func Layout(d *imstate.Diagram, ruler *textmeasure.Ruler, decorations *Decorations) *Diagram {
	n := len(d.Nodes)
	blockWidth := BlockWidth(n)
	rowWidth := float64(n*NODE_PITCH - NODE_GAP)
	rowLeft := PAD + (blockWidth-rowWidth)/2
	blockTop := float64(PAD + CIRCLE_DIAMETER + ARROW_LENGTH + ARROW_HEAD_LENGTH)

	ld := &Diagram{
		Width: blockWidth + 2*PAD,
	}

	for i, label := range d.Nodes {
		box := geo.NewBox(geo.NewPoint(rowLeft+float64(i*NODE_PITCH), PAD), CIRCLE_DIAMETER, CIRCLE_DIAMETER)
		node := Node{
			Index: i,
			Box:   box,
			Label: label,
		}
		text := label
		if text == "" {
			text = PLACEHOLDER
			node.Placeholder = true
		}
		lines := Wrap(ruler, LabelFont, text, CIRCLE_DIAMETER-2*CIRCLE_PADDING)
		center := box.Center()
		top := center.Y - float64(len(lines))*ruler.LineHeight(LabelFont)/2
		node.Lines = placeLines(ruler, LabelFont, lines, center.X, top)
		ld.Nodes = append(ld.Nodes, node)

		ld.Arrows = append(ld.Arrows, Arrow{
			Start: geo.NewPoint(center.X, box.Bottom()),
			End:   geo.NewPoint(center.X, blockTop),
		})
	}

	ta := NewTextArea(ruler, blockWidth)
	ta.Fit(d.FreeText)
	blockBox := geo.NewBox(geo.NewPoint(PAD, blockTop), blockWidth, ta.Height)
	ld.Block = Block{
		Box:         blockBox,
		Text:        d.FreeText,
		Placeholder: d.FreeText == "",
		Lines:       placeLines(ruler, ta.Font, ta.Lines, blockBox.Center().X, blockTop+ta.PaddingY),
	}

	ld.Height = blockBox.Bottom() + PAD

	if decorations != nil {
		if decorations.Focus != nil && ld.hasField(*decorations.Focus) {
			f := *decorations.Focus
			ld.Focus = &f
		}
		if s := decorations.Selection; !s.Empty() && ld.hasField(s.Field) {
			sel := *s
			ld.Selection = &sel
		}
	}

	return ld
}

func placeLines(ruler *textmeasure.Ruler, f textmeasure.Font, lines []string, centerX, top float64) []Line {
	lh := ruler.LineHeight(f)
	ascent := ruler.Ascent(f)
	placed := make([]Line, 0, len(lines))
	for i, l := range lines {
		lineTop := top + float64(i)*lh
		placed = append(placed, Line{
			Text:     l,
			X:        centerX,
			Top:      lineTop,
			Baseline: lineTop + ascent,
			Width:    ruler.MeasureWidth(f, l),
		})
	}
	return placed
}

func (d *Diagram) hasField(f Field) bool {
	switch f.Kind {
	case FIELD_NODE:
		return 0 <= f.Index && f.Index < len(d.Nodes)
	case FIELD_TEXT:
		return true
	default:
		return false
	}
}

// FieldBox returns the bounding box of the shape a field is rendered in.
func (d *Diagram) FieldBox(f Field) (box *geo.Box, round bool, ok bool) {
	if !d.hasField(f) {
		return nil, false, false
	}
	if f.Kind == FIELD_NODE {
		return d.Nodes[f.Index].Box, true, true
	}
	return d.Block.Box, false, true
}
