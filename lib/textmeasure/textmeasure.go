// Package textmeasure measures text with the same fonts the renderers embed.
package textmeasure

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// LINE_HEIGHT_FACTOR matches the CSS line-height used when text is rendered.
const LINE_HEIGHT_FACTOR = 1.25

// Ruler measures strings. It is safe for concurrent use.
type Ruler struct {
	mu    sync.Mutex
	ttfs  map[FontStyle]*truetype.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	font  Font
	scale float64
}

func NewRuler() (*Ruler, error) {
	r := &Ruler{
		ttfs:  make(map[FontStyle]*truetype.Font),
		faces: make(map[faceKey]font.Face),
	}
	for _, style := range FontStyles {
		ttf, err := truetype.Parse(TTF(style))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s font: %w", style, err)
		}
		r.ttfs[style] = ttf
	}
	return r, nil
}

func (r *Ruler) face(f Font, scale float64) font.Face {
	k := faceKey{f, scale}
	if face, ok := r.faces[k]; ok {
		return face
	}
	ttf, ok := r.ttfs[f.Style]
	if !ok {
		ttf = r.ttfs[FONT_STYLE_REGULAR]
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    float64(f.Size) * scale,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	r.faces[k] = face
	return face
}

// MeasureWidth returns the advance width of a single line.
func (r *Ruler) MeasureWidth(f Font, line string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fixedToFloat(font.MeasureString(r.face(f, 1), line))
}

func (r *Ruler) LineHeight(f Font) float64 {
	return r.lineHeight(f)
}

func (r *Ruler) lineHeight(f Font) float64 {
	return math.Ceil(float64(f.Size) * LINE_HEIGHT_FACTOR)
}

// Ascent is the distance from the top of a line box to the baseline.
func (r *Ruler) Ascent(f Font) float64 {
	r.mu.Lock()
	m := r.face(f, 1).Metrics()
	r.mu.Unlock()

	ascent := fixedToFloat(m.Ascent)
	descent := fixedToFloat(m.Descent)
	// Center the glyph box inside the line box the way browsers do.
	return (r.lineHeight(f)-(ascent+descent))/2 + ascent
}

// Draw draws a single line of s at device scale with its baseline starting at (x, y), given
// in unscaled units.
func (r *Ruler) Draw(dst draw.Image, src image.Image, f Font, scale, x, y float64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: r.face(f, scale),
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * scale * 64),
			Y: fixed.Int26_6(y * scale * 64),
		},
	}
	d.DrawString(s)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
