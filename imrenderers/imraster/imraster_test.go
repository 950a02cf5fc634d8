package imraster_test

import (
	"context"
	"image"
	stdcolor "image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	utilassert "oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imraster"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/imthemes"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

func layout(t *testing.T, decorations *imlayout.Decorations) (*imlayout.Diagram, *textmeasure.Ruler) {
	ruler, err := textmeasure.NewRuler()
	utilassert.Success(t, err)
	d := imstate.New()
	d.SetFreeText("Grow revenue")
	return imlayout.Layout(d, ruler, decorations), ruler
}

func at(img *image.RGBA, x, y, scale float64) stdcolor.RGBA {
	return img.RGBAAt(int(x*scale), int(y*scale))
}

func dark(c stdcolor.RGBA) bool {
	return c.R < 0x60 && c.G < 0x60 && c.B < 0x60
}

func TestDraw(t *testing.T) {
	t.Parallel()

	ld, ruler := layout(t, nil)
	const scale = 2
	img, err := imraster.Draw(ld, ruler, imthemes.Classic, scale)
	utilassert.Success(t, err)

	assert.Equal(t, int(math.Ceil(ld.Width*scale)), img.Bounds().Dx())
	assert.Equal(t, int(math.Ceil(ld.Height*scale)), img.Bounds().Dy())

	white := stdcolor.RGBA{0xff, 0xff, 0xff, 0xff}
	assert.Equal(t, white, img.RGBAAt(0, 0))
	assert.Equal(t, white, img.RGBAAt(img.Bounds().Dx()-1, img.Bounds().Dy()-1))

	n := ld.Nodes[0]
	// Circle border.
	if c := at(img, n.Box.TopLeft.X+1, n.Box.Center().Y, scale); !dark(c) {
		t.Fatalf("expected node border to be dark, got %v", c)
	}

	a := ld.Arrows[0]
	if c := at(img, a.Start.X, (a.Start.Y+a.End.Y)/2, scale); !dark(c) {
		t.Fatalf("expected arrow shaft to be dark, got %v", c)
	}

	b := ld.Block.Box
	c := at(img, b.TopLeft.X+1.5, b.Center().Y, scale)
	if !(c.G > c.R && c.G > c.B) {
		t.Fatalf("expected block border to be green, got %v", c)
	}
}

func TestDrawFocusRing(t *testing.T) {
	t.Parallel()

	focus := imlayout.NodeField(1)
	ld, ruler := layout(t, &imlayout.Decorations{Focus: &focus})
	img, err := imraster.Draw(ld, ruler, imthemes.Classic, 1)
	utilassert.Success(t, err)

	ringAt := func(i int) stdcolor.RGBA {
		n := ld.Nodes[i]
		return at(img, n.Box.TopLeft.X-imlayout.FOCUS_RING_WIDTH/2, n.Box.Center().Y, 1)
	}
	assert.Equal(t, stdcolor.RGBA{0xff, 0xff, 0xff, 0xff}, ringAt(0))
	assert.NotEqual(t, stdcolor.RGBA{0xff, 0xff, 0xff, 0xff}, ringAt(1))
}

func TestRasterizer(t *testing.T) {
	t.Parallel()

	ld, ruler := layout(t, nil)
	r := &imraster.Rasterizer{Ruler: ruler, Theme: imthemes.Mono}

	img, err := r.Rasterize(context.Background(), ld, 2)
	utilassert.Success(t, err)
	assert.Equal(t, int(math.Ceil(ld.Width*2)), img.Bounds().Dx())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Rasterize(ctx, ld, 2)
	assert.Error(t, err)

	_, err = imraster.Draw(ld, ruler, imthemes.Classic, 0)
	assert.Error(t, err)
}
