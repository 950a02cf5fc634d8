// imraster paints impact map layouts directly into bitmaps.
//
// It mirrors imsvg without a browser: shapes are filled with golang.org/x/image/vector and
// text is drawn with the same fonts textmeasure measures with. Shadows are drawn unblurred.
package imraster

import (
	"context"
	"fmt"
	"image"
	stdcolor "image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imthemes"
	"oss.terrastruct.com/impactmap/lib/color"
	"oss.terrastruct.com/impactmap/lib/geo"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

// kappa places cubic bezier control points to approximate a quarter circle.
const kappa = 0.5522847498

const shadowOffset = 4

// Rasterizer adapts Draw to imexport.Rasterizer.
type Rasterizer struct {
	Ruler *textmeasure.Ruler
	Theme imthemes.Theme
}

func (r *Rasterizer) Rasterize(ctx context.Context, d *imlayout.Diagram, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Draw(d, r.Ruler, r.Theme, scale)
}

type palette struct {
	background, nodeFill, nodeStroke, label, arrow stdcolor.RGBA
	blockFill, blockStroke, text, placeholder      stdcolor.RGBA
	focusRing, shadow                              stdcolor.RGBA
	selectedNodeFill, selectedBlockFill            stdcolor.RGBA
}

func newPalette(theme imthemes.Theme) (*palette, error) {
	p := &palette{}
	c := theme.Colors
	for _, e := range []struct {
		dst *stdcolor.RGBA
		src string
	}{
		{&p.background, c.Background},
		{&p.nodeFill, c.NodeFill},
		{&p.nodeStroke, c.NodeStroke},
		{&p.label, c.Label},
		{&p.arrow, c.Arrow},
		{&p.blockFill, c.BlockFill},
		{&p.blockStroke, c.BlockStroke},
		{&p.text, c.Text},
		{&p.placeholder, c.Placeholder},
		{&p.focusRing, c.FocusRing},
		{&p.shadow, c.Shadow},
		{&p.selectedNodeFill, theme.SelectionFill(c.NodeFill)},
		{&p.selectedBlockFill, theme.SelectionFill(c.BlockFill)},
	} {
		rgba, err := color.RGBA(e.src)
		if err != nil {
			return nil, err
		}
		*e.dst = rgba
	}
	return p, nil
}

// Draw paints d at scale device pixels per layout unit.
func Draw(d *imlayout.Diagram, ruler *textmeasure.Ruler, theme imthemes.Theme, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	p, err := newPalette(theme)
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(d.Width * scale))
	h := int(math.Ceil(d.Height * scale))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(p.background), image.Point{}, draw.Src)

	c := &canvas{img: img, scale: scale}

	for _, n := range d.Nodes {
		field := imlayout.NodeField(n.Index)
		center := n.Box.Center()
		r := n.Box.Width / 2

		if d.Focus != nil && *d.Focus == field {
			c.ring(center, r+imlayout.FOCUS_RING_WIDTH, r, p.focusRing)
		}
		c.disk(center.Offset(0, shadowOffset), r, p.shadow)
		fill := p.nodeFill
		if !d.Selection.Empty() && d.Selection.Field == field {
			fill = p.selectedNodeFill
		}
		c.disk(center, r, p.nodeStroke)
		c.disk(center, r-imlayout.CIRCLE_STROKE_WIDTH, fill)

		textColor := p.label
		if n.Placeholder {
			textColor = p.placeholder
		}
		c.text(ruler, imlayout.LabelFont, n.Lines, textColor)
	}

	for _, a := range d.Arrows {
		left, right, shaftEnd := a.HeadBase()
		half := imlayout.ARROW_STROKE_WIDTH / 2.
		c.rect(geo.NewBox(a.Start.Offset(-half, 0), 2*half, shaftEnd.Y-a.Start.Y), 0, p.arrow)
		c.polygon(p.arrow, left, right, a.End)
	}

	b := d.Block
	if d.Focus != nil && d.Focus.Kind == imlayout.FIELD_TEXT {
		c.rectRing(b.Box.Grow(imlayout.FOCUS_RING_WIDTH), b.Box, imlayout.BLOCK_BORDER_RADIUS, p.focusRing)
	}
	shadow := geo.NewBox(b.Box.TopLeft.Offset(0, shadowOffset), b.Box.Width, b.Box.Height)
	c.rect(shadow, imlayout.BLOCK_BORDER_RADIUS, p.shadow)
	fill := p.blockFill
	if !d.Selection.Empty() && d.Selection.Field.Kind == imlayout.FIELD_TEXT {
		fill = p.selectedBlockFill
	}
	c.rect(b.Box, imlayout.BLOCK_BORDER_RADIUS, p.blockStroke)
	c.rect(b.Box.Grow(-imlayout.BLOCK_STROKE_WIDTH), imlayout.BLOCK_BORDER_RADIUS-imlayout.BLOCK_STROKE_WIDTH, fill)
	textColor := p.text
	if b.Placeholder {
		textColor = p.placeholder
	}
	c.text(ruler, imlayout.FreeTextFont, b.Lines, textColor)

	return img, nil
}

type canvas struct {
	img   *image.RGBA
	scale float64
}

func (c *canvas) fill(col stdcolor.RGBA, path func(z *vector.Rasterizer)) {
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	path(z)
	z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

func (c *canvas) pt(x, y float64) (float32, float32) {
	return float32(x * c.scale), float32(y * c.scale)
}

func (c *canvas) disk(center *geo.Point, r float64, col stdcolor.RGBA) {
	c.fill(col, func(z *vector.Rasterizer) {
		c.circlePath(z, center, r, false)
	})
}

// ring fills the area between two concentric circles.
func (c *canvas) ring(center *geo.Point, outer, inner float64, col stdcolor.RGBA) {
	c.fill(col, func(z *vector.Rasterizer) {
		c.circlePath(z, center, outer, false)
		c.circlePath(z, center, inner, true)
	})
}

func (c *canvas) circlePath(z *vector.Rasterizer, center *geo.Point, r float64, reverse bool) {
	k := r * kappa
	x, y := center.X, center.Y
	z.MoveTo(c.pt(x+r, y))
	if !reverse {
		c.cubeTo(z, x+r, y+k, x+k, y+r, x, y+r)
		c.cubeTo(z, x-k, y+r, x-r, y+k, x-r, y)
		c.cubeTo(z, x-r, y-k, x-k, y-r, x, y-r)
		c.cubeTo(z, x+k, y-r, x+r, y-k, x+r, y)
	} else {
		c.cubeTo(z, x+r, y-k, x+k, y-r, x, y-r)
		c.cubeTo(z, x-k, y-r, x-r, y-k, x-r, y)
		c.cubeTo(z, x-r, y+k, x-k, y+r, x, y+r)
		c.cubeTo(z, x+k, y+r, x+r, y+k, x+r, y)
	}
	z.ClosePath()
}

func (c *canvas) cubeTo(z *vector.Rasterizer, x1, y1, x2, y2, x3, y3 float64) {
	ax, ay := c.pt(x1, y1)
	bx, by := c.pt(x2, y2)
	cx, cy := c.pt(x3, y3)
	z.CubeTo(ax, ay, bx, by, cx, cy)
}

func (c *canvas) rect(box *geo.Box, radius float64, col stdcolor.RGBA) {
	c.fill(col, func(z *vector.Rasterizer) {
		c.roundedRectPath(z, box, radius, false)
	})
}

func (c *canvas) rectRing(outer, inner *geo.Box, innerRadius float64, col stdcolor.RGBA) {
	grow := (outer.Width - inner.Width) / 2
	c.fill(col, func(z *vector.Rasterizer) {
		c.roundedRectPath(z, outer, innerRadius+grow, false)
		c.roundedRectPath(z, inner, innerRadius, true)
	})
}

func (c *canvas) roundedRectPath(z *vector.Rasterizer, box *geo.Box, r float64, reverse bool) {
	r = math.Max(0, math.Min(r, math.Min(box.Width, box.Height)/2))
	k := r * kappa
	l, t := box.TopLeft.X, box.TopLeft.Y
	rt, b := box.Right(), box.Bottom()

	z.MoveTo(c.pt(l+r, t))
	if !reverse {
		z.LineTo(c.pt(rt-r, t))
		c.cubeTo(z, rt-r+k, t, rt, t+r-k, rt, t+r)
		z.LineTo(c.pt(rt, b-r))
		c.cubeTo(z, rt, b-r+k, rt-r+k, b, rt-r, b)
		z.LineTo(c.pt(l+r, b))
		c.cubeTo(z, l+r-k, b, l, b-r+k, l, b-r)
		z.LineTo(c.pt(l, t+r))
		c.cubeTo(z, l, t+r-k, l+r-k, t, l+r, t)
	} else {
		c.cubeTo(z, l+r-k, t, l, t+r-k, l, t+r)
		z.LineTo(c.pt(l, b-r))
		c.cubeTo(z, l, b-r+k, l+r-k, b, l+r, b)
		z.LineTo(c.pt(rt-r, b))
		c.cubeTo(z, rt-r+k, b, rt, b-r+k, rt, b-r)
		z.LineTo(c.pt(rt, t+r))
		c.cubeTo(z, rt, t+r-k, rt-r+k, t, rt-r, t)
		z.LineTo(c.pt(l+r, t))
	}
	z.ClosePath()
}

func (c *canvas) polygon(col stdcolor.RGBA, ps ...*geo.Point) {
	if len(ps) < 3 {
		return
	}
	c.fill(col, func(z *vector.Rasterizer) {
		z.MoveTo(c.pt(ps[0].X, ps[0].Y))
		for _, p := range ps[1:] {
			z.LineTo(c.pt(p.X, p.Y))
		}
		z.ClosePath()
	})
}

func (c *canvas) text(ruler *textmeasure.Ruler, f textmeasure.Font, lines []imlayout.Line, col stdcolor.RGBA) {
	src := image.NewUniform(col)
	for _, l := range lines {
		ruler.Draw(c.img, src, f, c.scale, l.X-l.Width/2, l.Baseline, l.Text)
	}
}
