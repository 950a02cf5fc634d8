package svg

import (
	"fmt"
	"strings"

	"oss.terrastruct.com/impactmap/lib/geo"
)

// Points formats ps as the points attribute of a polygon or polyline.
func Points(ps ...*geo.Point) string {
	strs := make([]string, 0, len(ps))
	for _, p := range ps {
		strs = append(strs, fmt.Sprintf("%s,%s", num(p.X), num(p.Y)))
	}
	return strings.Join(strs, " ")
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}
