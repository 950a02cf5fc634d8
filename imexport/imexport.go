// Package imexport captures a displayed impact map as a PNG and hands it to a saver.
//
// The capabilities an export needs are interfaces so that a browser session, the CLI and
// tests can each provide their own: a Page that can drop its focus and selection
// decorations, a Rasterizer that turns a layout into pixels and a Saver that delivers the
// encoded file.
package imexport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	stdcolor "image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cdr.dev/slog"
	"golang.org/x/image/draw"

	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/lib/log"
)

const (
	Filename      = "impact-map.png"
	DeviceScale   = 2.
	DefaultSettle = 50 * time.Millisecond

	DataURIPrefix = "data:image/png;base64,"
)

// Page is the view an export is taken from.
type Page interface {
	ClearFocus(ctx context.Context) error
	ClearSelection(ctx context.Context) error
}

// Target is a mounted diagram. Diagram is read after the page decorations are cleared.
type Target interface {
	Diagram() *imlayout.Diagram
}

type Rasterizer interface {
	Rasterize(ctx context.Context, d *imlayout.Diagram, scale float64) (image.Image, error)
}

type Saver interface {
	Save(ctx context.Context, filename, dataURI string) error
}

type SaverFunc func(ctx context.Context, filename, dataURI string) error

func (f SaverFunc) Save(ctx context.Context, filename, dataURI string) error {
	return f(ctx, filename, dataURI)
}

// Still is a Target for a layout no page is showing.
type Still struct {
	Layout *imlayout.Diagram
}

func (s Still) Diagram() *imlayout.Diagram {
	return s.Layout
}

type Exporter struct {
	// Page is optional.
	Page       Page
	Rasterizer Rasterizer
	Saver      Saver

	// Settle is waited between clearing the page and capturing it. Zero means DefaultSettle,
	// negative means no wait.
	Settle time.Duration
	// Zero means DeviceScale.
	Scale float64
	// Empty means Filename.
	Filename string
	// Nil means white.
	Background stdcolor.Color
}

// Export captures target and saves it. A nil target means the diagram is not mounted and
// nothing happens.
func (e *Exporter) Export(ctx context.Context, target Target) (err error) {
	if target == nil {
		log.Debug(ctx, "export skipped: diagram not mounted")
		return nil
	}
	defer xdefer.Errorf(&err, "failed to export %s", e.filename())

	if e.Page != nil {
		err = e.Page.ClearFocus(ctx)
		if err != nil {
			return err
		}
		err = e.Page.ClearSelection(ctx)
		if err != nil {
			return err
		}
	}

	err = e.settle(ctx)
	if err != nil {
		return err
	}

	b, err := e.Capture(ctx, target)
	if err != nil {
		return err
	}

	return e.Saver.Save(ctx, e.filename(), EncodeDataURI(b))
}

// Capture rasterizes target onto the background and returns the PNG bytes.
func (e *Exporter) Capture(ctx context.Context, target Target) (_ []byte, err error) {
	defer xdefer.Errorf(&err, "failed to capture diagram")

	d := target.Diagram()
	if d == nil {
		return nil, fmt.Errorf("no diagram to capture")
	}
	scale := e.scale()
	img, err := e.Rasterizer.Rasterize(ctx, d, scale)
	if err != nil {
		return nil, err
	}

	size := image.Rect(0, 0, int(math.Ceil(d.Width*scale)), int(math.Ceil(d.Height*scale)))
	flat := Flatten(img, size, e.background())

	buf := &bytes.Buffer{}
	err = png.Encode(buf, flat)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) settle(ctx context.Context) error {
	d := e.Settle
	if d == 0 {
		d = DefaultSettle
	}
	if d < 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Exporter) scale() float64 {
	if e.Scale > 0 {
		return e.Scale
	}
	return DeviceScale
}

func (e *Exporter) filename() string {
	if e.Filename != "" {
		return e.Filename
	}
	return Filename
}

func (e *Exporter) background() stdcolor.Color {
	if e.Background != nil {
		return e.Background
	}
	return stdcolor.White
}

// Flatten composites img over a solid bg sized to size. An image of another size, as a
// browser may return, is resampled to fit.
func Flatten(img image.Image, size image.Rectangle, bg stdcolor.Color) *image.RGBA {
	dst := image.NewRGBA(size)
	draw.Draw(dst, size, image.NewUniform(bg), image.Point{}, draw.Src)
	if img.Bounds().Size() == size.Size() {
		draw.Draw(dst, size, img, img.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, size, img, img.Bounds(), draw.Over, nil)
	}
	return dst
}

func EncodeDataURI(b []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(b)
}

func DecodeDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, DataURIPrefix) {
		if len(uri) > 50 {
			uri = uri[:50] + "..."
		}
		return nil, fmt.Errorf("not a PNG data URI: %q", uri)
	}
	return base64.StdEncoding.DecodeString(uri[len(DataURIPrefix):])
}

// FileSaver writes exports into Dir, or to Path when it is set.
type FileSaver struct {
	Dir  string
	Path string
}

func (fs FileSaver) Save(ctx context.Context, filename, dataURI string) error {
	b, err := DecodeDataURI(dataURI)
	if err != nil {
		return err
	}
	fp := fs.Path
	if fp == "" {
		fp = filepath.Join(fs.Dir, filename)
	}
	log.Debug(ctx, "writing export", slog.F("path", fp))
	return os.WriteFile(fp, b, 0644)
}
