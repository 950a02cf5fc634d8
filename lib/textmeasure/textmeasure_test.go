package textmeasure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	utilassert "oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

func TestMeasureWidth(t *testing.T) {
	t.Parallel()

	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)

	f := textmeasure.NewFont(textmeasure.FONT_STYLE_BOLD, 16)

	w1 := ruler.MeasureWidth(f, "Premium")
	w2 := ruler.MeasureWidth(f, "Premium Site")
	if w1 <= 0 || w2 <= w1 {
		t.Fatalf("expected widths to grow with text: %v, %v", w1, w2)
	}
	assert.Equal(t, 0.0, ruler.MeasureWidth(f, ""))
	assert.Equal(t, 20.0, ruler.LineHeight(f))
}

func TestStyles(t *testing.T) {
	t.Parallel()

	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)

	regular := ruler.MeasureWidth(textmeasure.NewFont(textmeasure.FONT_STYLE_REGULAR, 15), "Loyal Customers")
	bold := ruler.MeasureWidth(textmeasure.NewFont(textmeasure.FONT_STYLE_BOLD, 15), "Loyal Customers")
	if bold <= regular {
		t.Fatalf("expected bold (%v) to be wider than regular (%v)", bold, regular)
	}
}

func TestAscent(t *testing.T) {
	t.Parallel()

	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)

	f := textmeasure.NewFont(textmeasure.FONT_STYLE_REGULAR, 16)
	a := ruler.Ascent(f)
	if a <= 0 || a >= ruler.LineHeight(f) {
		t.Fatalf("ascent %v out of line box %v", a, ruler.LineHeight(f))
	}
}
