package imsvg_test

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	utilassert "oss.terrastruct.com/util-go/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

func render(t *testing.T, d *imstate.Diagram, decorations *imlayout.Decorations, opts *imsvg.RenderOpts) string {
	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)

	out, err := imsvg.Render(imlayout.Layout(d, ruler, decorations), opts)
	utilassert.Success(t, err)

	// Must be well formed XML.
	dec := xml.NewDecoder(strings.NewReader(string(out)))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("invalid svg: %v", err)
		}
	}
	return string(out)
}

func TestRender(t *testing.T) {
	t.Parallel()

	d := imstate.New()
	d.AddNode()
	d.SetNode(0, `<a & "b">`)
	d.SetFreeText("Grow revenue")

	out := render(t, d, nil, nil)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="utf-8"?><svg`))
	assert.Equal(t, 4, strings.Count(out, `<g class="node"`))
	assert.Equal(t, 4, strings.Count(out, `<g class="arrow">`))
	assert.Equal(t, 1, strings.Count(out, `<g class="block">`))
	assert.Contains(t, out, `&lt;a &amp; &#34;b&#34;&gt;`)
	assert.Contains(t, out, `>Grow revenue</tspan>`)
	assert.Contains(t, out, `stroke="#28a745"`)
	assert.Contains(t, out, `@font-face`)
	assert.NotContains(t, out, `focus-ring`)
	assert.NotContains(t, out, imlayout.PLACEHOLDER)
}

func TestRenderPlaceholder(t *testing.T) {
	t.Parallel()

	d := imstate.New()
	d.SetNode(2, "")
	out := render(t, d, nil, &imsvg.RenderOpts{NoXMLTag: go2.Pointer(true)})

	assert.True(t, strings.HasPrefix(out, `<svg`))
	// One for the empty node, one for the empty free text.
	assert.Equal(t, 2, strings.Count(out, imlayout.PLACEHOLDER))
}

func TestRenderDecorations(t *testing.T) {
	t.Parallel()

	d := imstate.New()
	focus := imlayout.TextField()
	out := render(t, d, &imlayout.Decorations{
		Focus:     &focus,
		Selection: &imlayout.Selection{Field: imlayout.NodeField(0), Start: 0, End: 4},
	}, nil)

	assert.Equal(t, 1, strings.Count(out, `class="focus-ring"`))
	assert.Contains(t, out, `<g class="block"><rect class="focus-ring"`)
}

func TestRenderScaleAndTheme(t *testing.T) {
	t.Parallel()

	d := imstate.New()
	out := render(t, d, nil, &imsvg.RenderOpts{
		Scale:   go2.Pointer(2.),
		ThemeID: go2.Pointer(int64(1)),
	})
	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)
	ld := imlayout.Layout(d, ruler, nil)

	assert.Contains(t, out, `viewBox="0 0 `)
	assert.Contains(t, out, fmt.Sprintf(`width="%g"`, ld.Width*2))
	assert.NotContains(t, out, `#28a745`)

	_, err = imsvg.Render(ld, &imsvg.RenderOpts{ThemeID: go2.Pointer(int64(42))})
	assert.Error(t, err)
}
