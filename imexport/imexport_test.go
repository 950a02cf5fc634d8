package imexport_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	stdcolor "image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tassert "oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/lib/log"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakePage struct {
	*recorder
}

func (p fakePage) ClearFocus(ctx context.Context) error {
	p.add("clear_focus")
	return nil
}

func (p fakePage) ClearSelection(ctx context.Context) error {
	p.add("clear_selection")
	return nil
}

type fakeRasterizer struct {
	*recorder
	shrink int
	scales []float64
	err    error
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, d *imlayout.Diagram, scale float64) (image.Image, error) {
	r.add("rasterize")
	r.scales = append(r.scales, scale)
	if r.err != nil {
		return nil, r.err
	}
	w := int(d.Width*scale) / (r.shrink + 1)
	h := int(d.Height*scale) / (r.shrink + 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// One opaque pixel in the middle, the rest transparent.
	img.Set(w/2, h/2, stdcolor.RGBA{0, 0, 0, 255})
	return img, nil
}

type fakeSaver struct {
	*recorder
	filename string
	dataURI  string
}

func (s *fakeSaver) Save(ctx context.Context, filename, dataURI string) error {
	s.add("save")
	s.filename = filename
	s.dataURI = dataURI
	return nil
}

type fakeTarget struct {
	*recorder
	d *imlayout.Diagram
}

func (t fakeTarget) Diagram() *imlayout.Diagram {
	t.add("diagram")
	return t.d
}

type harness struct {
	rec   *recorder
	page  fakePage
	rast  *fakeRasterizer
	saver *fakeSaver
	tgt   fakeTarget
	e     *imexport.Exporter
}

func newHarness() *harness {
	rec := &recorder{}
	h := &harness{
		rec:   rec,
		page:  fakePage{rec},
		rast:  &fakeRasterizer{recorder: rec},
		saver: &fakeSaver{recorder: rec},
		tgt:   fakeTarget{rec, &imlayout.Diagram{Width: 60, Height: 40}},
	}
	h.e = &imexport.Exporter{
		Page:       h.page,
		Rasterizer: h.rast,
		Saver:      h.saver,
		Settle:     time.Millisecond,
	}
	return h
}

func decode(t *testing.T, dataURI string) image.Image {
	t.Helper()
	b, err := imexport.DecodeDataURI(dataURI)
	tassert.Success(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	tassert.Success(t, err)
	return img
}

func TestExport(t *testing.T) {
	t.Parallel()

	t.Run("order", func(t *testing.T) {
		t.Parallel()
		ctx := log.WithTB(context.Background(), t, nil)

		h := newHarness()
		err := h.e.Export(ctx, h.tgt)
		tassert.Success(t, err)

		assert.Equal(t, []string{"clear_focus", "clear_selection", "diagram", "rasterize", "save"}, h.rec.get())
		assert.Equal(t, []float64{2}, h.rast.scales)
		assert.Equal(t, "impact-map.png", h.saver.filename)

		img := decode(t, h.saver.dataURI)
		assert.Equal(t, image.Pt(120, 80), img.Bounds().Size())
		r, g, b, a := img.At(0, 0).RGBA()
		assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a})
		r, _, _, a = img.At(60, 40).RGBA()
		assert.Equal(t, uint32(0), r)
		assert.Equal(t, uint32(0xffff), a)
	})

	t.Run("not_mounted", func(t *testing.T) {
		t.Parallel()
		ctx := log.WithTB(context.Background(), t, nil)

		h := newHarness()
		err := h.e.Export(ctx, nil)
		tassert.Success(t, err)
		assert.Empty(t, h.rec.get())
	})

	t.Run("cancelled_during_settle", func(t *testing.T) {
		t.Parallel()
		ctx := log.WithTB(context.Background(), t, nil)
		ctx, cancel := context.WithCancel(ctx)

		h := newHarness()
		h.e.Settle = time.Hour
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := h.e.Export(ctx, h.tgt)
		assert.Error(t, err)
		assert.Equal(t, []string{"clear_focus", "clear_selection"}, h.rec.get())
	})

	t.Run("rasterize_error", func(t *testing.T) {
		t.Parallel()
		ctx := log.WithTB(context.Background(), t, nil)

		h := newHarness()
		h.rast.err = errors.New("no gpu")
		err := h.e.Export(ctx, h.tgt)
		assert.ErrorContains(t, err, "no gpu")
		assert.NotContains(t, h.rec.get(), "save")
	})

	t.Run("resamples_odd_size", func(t *testing.T) {
		t.Parallel()
		ctx := log.WithTB(context.Background(), t, nil)

		h := newHarness()
		h.rast.shrink = 1
		h.e.Filename = "x.png"
		h.e.Scale = 3
		err := h.e.Export(ctx, h.tgt)
		tassert.Success(t, err)
		assert.Equal(t, "x.png", h.saver.filename)
		img := decode(t, h.saver.dataURI)
		assert.Equal(t, image.Pt(180, 120), img.Bounds().Size())
	})
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	uri := imexport.EncodeDataURI([]byte("png"))
	assert.Equal(t, "data:image/png;base64,cG5n", uri)
	b, err := imexport.DecodeDataURI(uri)
	tassert.Success(t, err)
	assert.Equal(t, []byte("png"), b)

	_, err = imexport.DecodeDataURI("data:image/svg+xml;base64,AAAA")
	assert.Error(t, err)
}

func TestFileSaver(t *testing.T) {
	t.Parallel()
	ctx := log.WithTB(context.Background(), t, nil)

	dir := t.TempDir()
	err := imexport.FileSaver{Dir: dir}.Save(ctx, imexport.Filename, imexport.EncodeDataURI([]byte{1, 2, 3}))
	tassert.Success(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "impact-map.png"))
	tassert.Success(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	out := filepath.Join(dir, "out.png")
	err = imexport.FileSaver{Dir: dir, Path: out}.Save(ctx, imexport.Filename, imexport.EncodeDataURI([]byte{4}))
	tassert.Success(t, err)
	b, err = os.ReadFile(out)
	tassert.Success(t, err)
	assert.Equal(t, []byte{4}, b)
}
