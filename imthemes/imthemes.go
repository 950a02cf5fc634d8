// imthemes defines the color themes of impact maps.
package imthemes

import (
	"fmt"

	"oss.terrastruct.com/impactmap/lib/color"
)

type Theme struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Colors ColorPalette `json:"colors"`
}

type ColorPalette struct {
	Background string `json:"background"`

	NodeFill   string `json:"nodeFill"`
	NodeStroke string `json:"nodeStroke"`
	Label      string `json:"label"`

	Arrow string `json:"arrow"`

	BlockFill   string `json:"blockFill"`
	BlockStroke string `json:"blockStroke"`
	Text        string `json:"text"`

	Placeholder string `json:"placeholder"`
	FocusRing   string `json:"focusRing"`
	Shadow      string `json:"shadow"`
}

// SelectionFill is the fill of a shape whose text is selected.
func (t Theme) SelectionFill(fill string) string {
	c, err := color.Blend(fill, t.Colors.FocusRing, .35)
	if err != nil {
		return fill
	}
	return c
}

// Validate checks that every color in the palette parses.
func (t Theme) Validate() error {
	p := t.Colors
	for name, c := range map[string]string{
		"background":  p.Background,
		"nodeFill":    p.NodeFill,
		"nodeStroke":  p.NodeStroke,
		"label":       p.Label,
		"arrow":       p.Arrow,
		"blockFill":   p.BlockFill,
		"blockStroke": p.BlockStroke,
		"text":        p.Text,
		"placeholder": p.Placeholder,
		"focusRing":   p.FocusRing,
		"shadow":      p.Shadow,
	} {
		if _, err := color.RGBA(c); err != nil {
			return fmt.Errorf("theme %q: %s: %w", t.Name, name, err)
		}
	}
	return nil
}
