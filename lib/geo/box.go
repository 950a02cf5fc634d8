package geo

import "fmt"

type Box struct {
	TopLeft *Point
	Width   float64
	Height  float64
}

func NewBox(tl *Point, width, height float64) *Box {
	return &Box{
		TopLeft: tl,
		Width:   width,
		Height:  height,
	}
}

func (b *Box) Center() *Point {
	return NewPoint(b.TopLeft.X+b.Width/2, b.TopLeft.Y+b.Height/2)
}

func (b *Box) Right() float64 {
	return b.TopLeft.X + b.Width
}

func (b *Box) Bottom() float64 {
	return b.TopLeft.Y + b.Height
}

func (b *Box) Contains(p *Point) bool {
	return !(p.X < b.TopLeft.X || b.Right() < p.X ||
		p.Y < b.TopLeft.Y || b.Bottom() < p.Y)
}

// Grow returns b expanded by d on every side.
func (b *Box) Grow(d float64) *Box {
	return NewBox(b.TopLeft.Offset(-d, -d), b.Width+2*d, b.Height+2*d)
}

func (b *Box) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("{TopLeft: %v, Width: %.0f, Height: %.0f}", b.TopLeft, b.Width, b.Height)
}
