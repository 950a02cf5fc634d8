package imthemes

import (
	"fmt"
	"strings"
)

var Classic = Theme{
	ID:   0,
	Name: "Classic",
	Colors: ColorPalette{
		Background: "#ffffff",

		NodeFill:   "#ffffff",
		NodeStroke: "#333333",
		Label:      "#222222",

		Arrow: "#111111",

		BlockFill:   "#ffffff",
		BlockStroke: "#28a745",
		Text:        "#111111",

		Placeholder: "#9ca3af",
		FocusRing:   "#93c5fd",
		Shadow:      "rgba(0, 0, 0, 0.1)",
	},
}

var Mono = Theme{
	ID:   1,
	Name: "Mono",
	Colors: ColorPalette{
		Background: "#ffffff",

		NodeFill:   "#f5f5f5",
		NodeStroke: "#111111",
		Label:      "#111111",

		Arrow: "#111111",

		BlockFill:   "#f5f5f5",
		BlockStroke: "#111111",
		Text:        "#111111",

		Placeholder: "#8a8a8a",
		FocusRing:   "#a3a3a3",
		Shadow:      "rgba(0, 0, 0, 0.15)",
	},
}

var Catalog = []Theme{
	Classic,
	Mono,
}

func Find(id int64) (Theme, bool) {
	for _, theme := range Catalog {
		if theme.ID == id {
			return theme, true
		}
	}
	return Theme{}, false
}

func CLIString() string {
	var s strings.Builder
	for _, t := range Catalog {
		s.WriteString(fmt.Sprintf("- %s: %d\n", t.Name, t.ID))
	}
	return s.String()
}
