// imsvg implements an SVG renderer for impact maps.
// The input is imlayout's output.
package imsvg

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"io"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imthemes"
	"oss.terrastruct.com/impactmap/lib/geo"
	"oss.terrastruct.com/impactmap/lib/svg"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
	"oss.terrastruct.com/impactmap/lib/version"
)

type RenderOpts struct {
	ThemeID *int64
	// the svg will be scaled by this factor, if unset the svg is rendered at its layout size
	Scale *float64

	NoXMLTag *bool
	// Salt is mixed into the diagram hash so several renders can share one HTML document.
	Salt *string
}

func Render(d *imlayout.Diagram, opts *RenderOpts) ([]byte, error) {
	if opts == nil {
		opts = &RenderOpts{}
	}
	theme := imthemes.Classic
	if opts.ThemeID != nil {
		var ok bool
		theme, ok = imthemes.Find(*opts.ThemeID)
		if !ok {
			return nil, fmt.Errorf("theme %d not found", *opts.ThemeID)
		}
	}
	salt := ""
	if opts.Salt != nil {
		salt = *opts.Salt
	}
	diagramHash := hash(fmt.Sprintf("%v%v%s", d.Width, d.Height, salt))
	scale := 1.
	if opts.Scale != nil {
		scale = *opts.Scale
	}

	buf := &bytes.Buffer{}
	if opts.NoXMLTag == nil || !*opts.NoXMLTag {
		fmt.Fprint(buf, `<?xml version="1.0" encoding="utf-8"?>`)
	}
	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" class="impactmap-%s" data-impactmap-version="%s" width="%s" height="%s" viewBox="0 0 %s %s">`,
		diagramHash, version.Version,
		num(d.Width*scale), num(d.Height*scale), num(d.Width), num(d.Height),
	)
	embedFonts(buf, diagramHash)
	defineShadowFilter(buf, diagramHash, theme)

	fmt.Fprintf(buf, `<rect class="background" x="0" y="0" width="%s" height="%s" fill="%s"></rect>`,
		num(d.Width), num(d.Height), theme.Colors.Background)

	for _, n := range d.Nodes {
		drawNode(buf, diagramHash, d, n, theme)
	}
	for _, a := range d.Arrows {
		drawArrow(buf, a, theme)
	}
	drawBlock(buf, diagramHash, d, theme)

	fmt.Fprint(buf, `</svg>`)
	return buf.Bytes(), nil
}

func drawNode(w io.Writer, diagramHash string, d *imlayout.Diagram, n imlayout.Node, theme imthemes.Theme) {
	field := imlayout.NodeField(n.Index)
	c := n.Box.Center()
	r := n.Box.Width/2 - imlayout.CIRCLE_STROKE_WIDTH/2.

	fmt.Fprintf(w, `<g class="node" data-index="%d">`, n.Index)
	if isFocused(d, field) {
		fmt.Fprintf(w, `<circle class="focus-ring" cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="%d"></circle>`,
			num(c.X), num(c.Y), num(n.Box.Width/2+imlayout.FOCUS_RING_WIDTH/2), theme.Colors.FocusRing, imlayout.FOCUS_RING_WIDTH)
	}
	fill := theme.Colors.NodeFill
	if isSelected(d, field) {
		fill = theme.SelectionFill(fill)
	}
	fmt.Fprintf(w, `<circle class="shape" cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="%d" filter="url(#shadow-%s)"></circle>`,
		num(c.X), num(c.Y), num(r), fill, theme.Colors.NodeStroke, imlayout.CIRCLE_STROKE_WIDTH, diagramHash)
	fontColor := theme.Colors.Label
	if n.Placeholder {
		fontColor = theme.Colors.Placeholder
	}
	drawText(w, "label", n.Lines, imlayout.LabelFont, fontColor)
	fmt.Fprint(w, `</g>`)
}

func drawArrow(w io.Writer, a imlayout.Arrow, theme imthemes.Theme) {
	left, right, shaftEnd := a.HeadBase()
	fmt.Fprint(w, `<g class="arrow">`)
	fmt.Fprintf(w, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%d"></line>`,
		num(a.Start.X), num(a.Start.Y), num(shaftEnd.X), num(shaftEnd.Y), theme.Colors.Arrow, imlayout.ARROW_STROKE_WIDTH)
	fmt.Fprintf(w, `<polygon points="%s" fill="%s"></polygon>`, svg.Points(left, right, a.End), theme.Colors.Arrow)
	fmt.Fprint(w, `</g>`)
}

func drawBlock(w io.Writer, diagramHash string, d *imlayout.Diagram, theme imthemes.Theme) {
	b := d.Block
	field := imlayout.TextField()

	fmt.Fprint(w, `<g class="block">`)
	if isFocused(d, field) {
		ring := b.Box.Grow(imlayout.FOCUS_RING_WIDTH / 2)
		drawRect(w, "focus-ring", ring, imlayout.BLOCK_BORDER_RADIUS+imlayout.FOCUS_RING_WIDTH/2, "none", theme.Colors.FocusRing, imlayout.FOCUS_RING_WIDTH, "")
	}
	fill := theme.Colors.BlockFill
	if isSelected(d, field) {
		fill = theme.SelectionFill(fill)
	}
	inner := b.Box.Grow(-imlayout.BLOCK_STROKE_WIDTH / 2.)
	drawRect(w, "shape", inner, imlayout.BLOCK_BORDER_RADIUS, fill, theme.Colors.BlockStroke, imlayout.BLOCK_STROKE_WIDTH, fmt.Sprintf(`url(#shadow-%s)`, diagramHash))
	fontColor := theme.Colors.Text
	if b.Placeholder {
		fontColor = theme.Colors.Placeholder
	}
	drawText(w, "free-text", b.Lines, imlayout.FreeTextFont, fontColor)
	fmt.Fprint(w, `</g>`)
}

func drawRect(w io.Writer, class string, box *geo.Box, radius float64, fill, stroke string, strokeWidth int, filter string) {
	filterAttr := ""
	if filter != "" {
		filterAttr = fmt.Sprintf(` filter="%s"`, filter)
	}
	fmt.Fprintf(w, `<rect class="%s" x="%s" y="%s" width="%s" height="%s" rx="%s" ry="%s" fill="%s" stroke="%s" stroke-width="%d"%s></rect>`,
		class, num(box.TopLeft.X), num(box.TopLeft.Y), num(box.Width), num(box.Height), num(radius), num(radius),
		fill, stroke, strokeWidth, filterAttr)
}

func drawText(w io.Writer, class string, lines []imlayout.Line, font textmeasure.Font, fill string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, `<text class="text %s" text-anchor="middle" fill="%s" style="font-size:%dpx;font-weight:%d;white-space:pre" xml:space="preserve">`,
		class, fill, font.Size, font.Weight())
	for _, l := range lines {
		fmt.Fprintf(w, `<tspan x="%s" y="%s">%s</tspan>`, num(l.X), num(l.Baseline), svg.EscapeText(l.Text))
	}
	fmt.Fprint(w, `</text>`)
}

func isFocused(d *imlayout.Diagram, f imlayout.Field) bool {
	return d.Focus != nil && *d.Focus == f
}

func isSelected(d *imlayout.Diagram, f imlayout.Field) bool {
	return !d.Selection.Empty() && d.Selection.Field == f
}

// embedFonts inlines the fonts measured by textmeasure so every viewer renders the same
// line breaks.
func embedFonts(buf *bytes.Buffer, diagramHash string) {
	fmt.Fprint(buf, `<style type="text/css"><![CDATA[`)
	fmt.Fprintf(buf, `
.impactmap-%s .text {
	font-family: "%s-%s";
}`, diagramHash, textmeasure.FontFamily, diagramHash)
	seen := make(map[textmeasure.FontStyle]struct{})
	for _, f := range []textmeasure.Font{imlayout.LabelFont, imlayout.FreeTextFont} {
		if _, ok := seen[f.Style]; ok {
			continue
		}
		seen[f.Style] = struct{}{}
		fmt.Fprintf(buf, `
@font-face {
	font-family: %s-%s;
	font-weight: %d;
	src: url("data:font/truetype;base64,%s");
}`, textmeasure.FontFamily, diagramHash, f.Weight(), base64.StdEncoding.EncodeToString(textmeasure.TTF(f.Style)))
	}
	fmt.Fprint(buf, `]]></style>`)
}

func defineShadowFilter(w io.Writer, diagramHash string, theme imthemes.Theme) {
	fmt.Fprintf(w, `<defs>
	<filter id="shadow-%s" width="200%%" height="200%%" x="-50%%" y="-50%%">
		<feDropShadow dx="0" dy="4" stdDeviation="4" flood-color="%s"></feDropShadow>
	</filter>
</defs>`, diagramHash, theme.Colors.Shadow)
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}

func hash(s string) string {
	const secret = "lalalas"
	h := fnv.New32a()
	h.Write([]byte(fmt.Sprintf("%s%s", s, secret)))
	return fmt.Sprint(h.Sum32())
}
