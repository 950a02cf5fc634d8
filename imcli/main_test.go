package imcli

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/cmdlog"
	tassert "oss.terrastruct.com/util-go/assert"
	"oss.terrastruct.com/xos"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/lib/log"
	"oss.terrastruct.com/impactmap/lib/version"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

// syncBuffer is written by the command while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Close() error {
	return nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

type testState struct {
	ms     *xmain.State
	stdout *syncBuffer
	stderr *syncBuffer
}

func newTestState(t *testing.T, environ []string, args ...string) *testState {
	t.Helper()

	ts := &testState{
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
	}
	env := xos.NewEnv(append([]string{"BROWSER=0"}, environ...))
	ms := &xmain.State{
		Name:   "impactmap",
		PWD:    t.TempDir(),
		Stdin:  strings.NewReader(""),
		Stdout: ts.stdout,
		Stderr: ts.stderr,
		Env:    env,
	}
	ms.Log = cmdlog.Log(env, ms.Stderr)
	ms.Opts = xmain.NewOpts(env, ms.Log, args)
	ts.ms = ms
	return ts
}

func (ts *testState) run(t *testing.T) error {
	t.Helper()
	ctx := log.WithTB(context.Background(), t, nil)
	return Run(ctx, ts.ms)
}

func (ts *testState) writeFile(t *testing.T, name, data string) string {
	t.Helper()
	fp := filepath.Join(ts.ms.PWD, name)
	tassert.Success(t, os.WriteFile(fp, []byte(data), 0644))
	return fp
}

func (ts *testState) readFile(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(ts.ms.PWD, name))
	tassert.Success(t, err)
	return b
}

func TestRun(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		environ []string
		setup   func(t *testing.T, ts *testState)
		check   func(t *testing.T, ts *testState, err error)
	}{
		{
			name: "version",
			args: []string{"version"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				assert.Equal(t, version.Version+"\n", ts.stdout.String())
			},
		},
		{
			name: "version_flag",
			args: []string{"--version"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				assert.Equal(t, version.Version+"\n", ts.stdout.String())
			},
		},
		{
			name: "themes",
			args: []string{"themes"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				assert.Contains(t, ts.stdout.String(), "Classic")
				assert.Contains(t, ts.stdout.String(), "Mono")
			},
		},
		{
			name: "help",
			args: []string{"--help"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				out := ts.stdout.String()
				assert.Contains(t, out, "impactmap render")
				assert.Contains(t, out, "--theme")
				assert.Contains(t, out, "$IMPACTMAP_SETTLE")
			},
		},
		{
			name: "render_svg_default",
			args: []string{"render", "out.svg"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				svg := string(ts.readFile(t, "out.svg"))
				assert.Equal(t, 3, strings.Count(svg, `class="node"`))
				assert.Contains(t, svg, "Faster Checkout")
			},
		},
		{
			name: "render_svg_seed",
			args: []string{"render", "--theme=1", "seed.json", "out.svg"},
			setup: func(t *testing.T, ts *testState) {
				ts.writeFile(t, "seed.json", `{"nodes": ["Alpha", "Beta"], "text": "Gamma"}`)
			},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				svg := string(ts.readFile(t, "out.svg"))
				assert.Equal(t, 2, strings.Count(svg, `class="node"`))
				assert.Contains(t, svg, "Gamma")
				assert.NotContains(t, svg, "Premium Site")
			},
		},
		{
			name: "render_png",
			args: []string{"render", "seed.json", "out.png"},
			setup: func(t *testing.T, ts *testState) {
				ts.writeFile(t, "seed.json", `{"nodes": ["Alpha"], "text": ""}`)
			},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				img, err := png.Decode(bytes.NewReader(ts.readFile(t, "out.png")))
				tassert.Success(t, err)
				w := 2 * (imlayout.BLOCK_MIN_WIDTH + 2*imlayout.PAD)
				assert.Equal(t, w, img.Bounds().Dx())
			},
		},
		{
			name: "render_stdout_png",
			args: []string{"render", "--stdout-format=png", "-"},
			check: func(t *testing.T, ts *testState, err error) {
				tassert.Success(t, err)
				_, err = png.Decode(bytes.NewReader(ts.stdout.Bytes()))
				tassert.Success(t, err)
			},
		},
		{
			name: "render_bad_ext",
			args: []string{"render", "out.gif"},
			check: func(t *testing.T, ts *testState, err error) {
				var uerr xmain.UsageError
				assert.ErrorAs(t, err, &uerr)
			},
		},
		{
			name: "render_no_args",
			args: []string{"render"},
			check: func(t *testing.T, ts *testState, err error) {
				var uerr xmain.UsageError
				assert.ErrorAs(t, err, &uerr)
			},
		},
		{
			name: "render_empty_seed",
			args: []string{"render", "seed.json", "out.svg"},
			setup: func(t *testing.T, ts *testState) {
				ts.writeFile(t, "seed.json", `{"nodes": []}`)
			},
			check: func(t *testing.T, ts *testState, err error) {
				assert.ErrorContains(t, err, "seed.json")
				_, statErr := os.Stat(filepath.Join(ts.ms.PWD, "out.svg"))
				assert.True(t, os.IsNotExist(statErr))
			},
		},
		{
			name:    "bad_theme_env",
			args:    []string{"render", "out.svg"},
			environ: []string{"IMPACTMAP_THEME=42"},
			check: func(t *testing.T, ts *testState, err error) {
				var uerr xmain.UsageError
				assert.ErrorAs(t, err, &uerr)
			},
		},
		{
			name: "bad_raster",
			args: []string{"render", "--raster=gpu", "out.png"},
			check: func(t *testing.T, ts *testState, err error) {
				var uerr xmain.UsageError
				assert.ErrorAs(t, err, &uerr)
			},
		},
		{
			name: "serve_too_many_args",
			args: []string{"serve", "a.json", "b.json"},
			check: func(t *testing.T, ts *testState, err error) {
				var uerr xmain.UsageError
				assert.ErrorAs(t, err, &uerr)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestState(t, tc.environ, tc.args...)
			if tc.setup != nil {
				tc.setup(t, ts)
			}
			tc.check(t, ts, ts.run(t))
		})
	}
}
