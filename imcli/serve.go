package imcli

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"oss.terrastruct.com/impactmap/imeditor"
	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/env"
	"oss.terrastruct.com/impactmap/lib/log"
	"oss.terrastruct.com/impactmap/lib/xbrowser"
	"oss.terrastruct.com/impactmap/lib/xhttp"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

//go:embed static
var staticFS embed.FS

const sessionTimeout = time.Hour * 12

func serveCmd(ctx context.Context, ms *xmain.State, cfg *config, args []string) error {
	if len(args) > 1 {
		return xmain.UsageErrorf("serve takes at most one seed file, got %d arguments", len(args))
	}
	seedPath := ""
	if len(args) == 1 {
		if args[0] == "-" {
			return xmain.UsageErrorf("serve cannot watch stdin: pass a seed file path")
		}
		seedPath = ms.AbsPath(args[0])
	}

	rast, cleanup, err := newRasterizer(ctx, ms, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := newServer(ctx, ms, cfg, seedPath, rast)
	if err != nil {
		return err
	}
	return s.run(true)
}

type server struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	devMode bool

	ms       *xmain.State
	cfg      *config
	seedPath string
	editor   *imeditor.Editor

	reloadCh chan struct{}

	fw               *fsnotify.Watcher
	l                net.Listener
	staticFileServer http.Handler

	wsclientsMu sync.Mutex
	closing     bool
	wsclientsWG sync.WaitGroup

	errMu sync.Mutex
	err   error
}

func newServer(ctx context.Context, ms *xmain.State, cfg *config, seedPath string, rast imexport.Rasterizer) (*server, error) {
	ctx, cancel := context.WithCancel(ctx)

	s := &server{
		ctx:     ctx,
		cancel:  cancel,
		devMode: env.Dev(),

		ms:       ms,
		cfg:      cfg,
		seedPath: seedPath,

		reloadCh: make(chan struct{}, 1),
	}

	var seed *imstate.Diagram
	if seedPath != "" {
		var err error
		seed, err = readSeed(ms, seedPath)
		if err != nil {
			cancel()
			return nil, err
		}
		ms.Log.Info.Printf("seeded diagram from %s", ms.HumanPath(seedPath))
	}
	s.editor = imeditor.New(seed, imeditor.Opts{
		Ruler:      cfg.ruler,
		Rasterizer: rast,
		RenderOpts: cfg.renderOpts,
		Settle:     cfg.settle,
	})

	err := s.init()
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *server) init() error {
	if s.seedPath != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		s.fw = fw
	}
	err := s.initStaticFileServer()
	if err != nil {
		return err
	}
	return s.listen()
}

func (s *server) initStaticFileServer() error {
	// Dev mode serves the page assets straight from the source tree.
	if s.devMode {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			return errors.New("impactmap: runtime failed to provide path of serve.go")
		}
		s.staticFileServer = http.FileServer(http.Dir(filepath.Join(filepath.Dir(file), "static")))
		return nil
	}

	sfs, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	s.staticFileServer = http.FileServer(http.FS(sfs))
	return nil
}

func (s *server) listen() error {
	l, err := net.Listen("tcp", net.JoinHostPort(s.cfg.host, s.cfg.port))
	if err != nil {
		return err
	}
	s.l = l
	s.ms.Log.Success.Printf("listening on %s", s.url())
	return nil
}

func (s *server) url() string {
	return fmt.Sprintf("http://%s", s.l.Addr())
}

func (s *server) run(openBrowser bool) error {
	defer s.close()

	if s.fw != nil {
		s.goFunc(s.watchLoop)
		s.goFunc(s.reloadLoop)
	}
	s.goServe()

	if openBrowser {
		err := xbrowser.Open(s.ctx, s.ms.Env, s.url())
		if err != nil {
			s.ms.Log.Warn.Printf("failed to open browser to %v: %v", s.url(), err)
		}
	}

	s.wg.Wait()
	s.close()
	return s.err
}

func (s *server) close() {
	s.wsclientsMu.Lock()
	if s.closing {
		s.wsclientsMu.Unlock()
		return
	}
	s.closing = true
	s.wsclientsMu.Unlock()

	s.cancel()
	if s.fw != nil {
		s.setErr(s.fw.Close())
	}
	if s.l != nil {
		err := s.l.Close()
		if !errors.Is(err, net.ErrClosed) {
			s.setErr(err)
		}
	}

	s.wsclientsWG.Wait()
}

func (s *server) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *server) goFunc(fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.cancel()

		err := fn(s.ctx)
		if !errors.Is(err, context.Canceled) {
			s.setErr(err)
		}
	}()
}

// watchLoop requests a reload whenever the seed file changes. Editors often replace the
// file instead of writing it, so the watch is re-added after every event, and a slow poll
// of the modification time covers events fsnotify never delivers.
func (s *server) watchLoop(ctx context.Context) error {
	lastModified, err := s.ensureAddWatch(ctx, s.seedPath)
	if err != nil {
		return err
	}

	eatBurstTimer := time.NewTimer(0)
	<-eatBurstTimer.C
	pollTicker := time.NewTicker(time.Second * 10)
	defer pollTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			mt, err := s.ensureAddWatch(ctx, s.seedPath)
			if err != nil {
				return err
			}
			if !mt.Equal(lastModified) {
				lastModified = mt
				s.requestReload()
			}
		case ev, ok := <-s.fw.Events:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			s.ms.Log.Debug.Printf("received file system event %v", ev)
			mt, err := s.ensureAddWatch(ctx, s.seedPath)
			if err != nil {
				return err
			}
			if ev.Op == fsnotify.Chmod && mt.Equal(lastModified) {
				continue
			}
			lastModified = mt
			// Writes arrive in bursts: wait for 16ms of quiet before reading the file.
			eatBurstTimer.Reset(time.Millisecond * 16)
		case <-eatBurstTimer.C:
			s.ms.Log.Info.Printf("detected change in %s: reloading...", s.ms.HumanPath(s.seedPath))
			s.requestReload()
		case err, ok := <-s.fw.Errors:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			s.ms.Log.Error.Printf("fsnotify error: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *server) ensureAddWatch(ctx context.Context, path string) (time.Time, error) {
	interval := time.Millisecond * 16
	tc := time.NewTimer(0)
	<-tc.C
	for {
		mt, err := s.addWatch(path)
		if err == nil {
			return mt, nil
		}
		if interval >= time.Second {
			s.ms.Log.Error.Printf("failed to watch %q: %v (retrying in %v)", s.ms.HumanPath(path), err, interval)
		}

		tc.Reset(interval)
		select {
		case <-tc.C:
			if interval < time.Second {
				interval = time.Second
			}
			if interval < time.Second*16 {
				interval *= 2
			}
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func (s *server) addWatch(path string) (time.Time, error) {
	err := s.fw.Add(path)
	if err != nil {
		return time.Time{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func (s *server) requestReload() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// reloadLoop swaps the seed file into the editor. A file that fails to parse is reported
// and the current diagram is kept.
func (s *server) reloadLoop(ctx context.Context) error {
	for {
		select {
		case <-s.reloadCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		d, err := readSeed(s.ms, s.seedPath)
		if err != nil {
			s.ms.Log.Error.Printf("failed to reload: %v", err)
			continue
		}
		s.editor.Reset(d)
		s.ms.Log.Info.Printf("reloaded %s: %d nodes, broadcasting to %d client(s)", s.ms.HumanPath(s.seedPath), len(d.Nodes), s.editor.Clients())
	}
}

func (s *server) goServe() {
	m := http.NewServeMux()
	m.HandleFunc("/", s.handleRoot)
	m.Handle("/static/", http.StripPrefix("/static", s.staticFileServer))
	m.Handle("/edit", xhttp.Handler{Log: s.ms.Log, Func: s.handleEdit})
	m.Handle("/impact-map.svg", xhttp.Handler{Log: s.ms.Log, Func: s.handleSVG})
	m.Handle("/"+imexport.Filename, xhttp.Handler{Log: s.ms.Log, Func: s.handlePNG})

	hs := &xhttp.Server{
		Log:             s.ms.Log,
		Handler:         m,
		ShutdownTimeout: time.Second * 30,
	}
	s.goFunc(func(ctx context.Context) error {
		return hs.Serve(ctx, s.l)
	})
}

func (s *server) handleRoot(hw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(hw, r)
		return
	}
	hw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(hw, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Impact Map</title>
	<script src="/static/editor.js"></script>
	<link rel="stylesheet" href="/static/editor.css">
</head>
<body data-impactmap-dev-mode=%t>
	<main id="impactmap-editor">
		<section id="impactmap-controls">
			<div id="impactmap-nodes"></div>
			<div class="impactmap-buttons">
				<button id="impactmap-add" type="button">Add circle</button>
				<button id="impactmap-remove" type="button">Remove circle</button>
				<button id="impactmap-download" type="button">Download PNG</button>
			</div>
			<textarea id="impactmap-text" placeholder="Your text here"></textarea>
		</section>
		<section id="impactmap-diagram"></section>
	</main>
</body>
</html>`, s.devMode)
}

func (s *server) handleSVG(hw http.ResponseWriter, r *http.Request) error {
	svg, err := s.editor.SVG()
	if err != nil {
		return err
	}
	hw.Header().Set("Content-Type", "image/svg+xml")
	_, err = hw.Write(svg)
	return err
}

func (s *server) handlePNG(hw http.ResponseWriter, r *http.Request) error {
	b, err := s.editor.Exporter(nil).Capture(r.Context(), imexport.Still{Layout: s.editor.Layout(nil)})
	if err != nil {
		return err
	}
	hw.Header().Set("Content-Type", "image/png")
	hw.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", imexport.Filename))
	_, err = hw.Write(b)
	return err
}

func (s *server) handleEdit(hw http.ResponseWriter, r *http.Request) error {
	s.wsclientsMu.Lock()
	if s.closing {
		s.wsclientsMu.Unlock()
		return xhttp.Errorf(http.StatusServiceUnavailable, "server shutting down...", "server shutting down...")
	}
	// Register before the upgrade so close waits for this connection.
	s.wsclientsWG.Add(1)
	s.wsclientsMu.Unlock()

	c, err := websocket.Accept(hw, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.wsclientsWG.Done()
		return err
	}
	c.SetReadLimit(1 << 20)

	go func() {
		defer s.wsclientsWG.Done()
		defer c.Close(websocket.StatusInternalError, "the sky is falling")

		ctx, cancel := context.WithTimeout(log.Named(s.ctx, "edit"), sessionTimeout)
		defer cancel()

		cl := s.editor.Connect(ctx)
		defer cl.Close()
		s.ms.Log.Info.Printf("client %s connected (%d connected)", cl.ID, s.editor.Clients())

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			defer cancel()
			_ = s.readLoop(ctx, c, cl)
		}()
		go wsHeartbeat(ctx, c)

		_ = s.writeLoop(ctx, c, cl)
		cancel()
		<-readDone
		s.ms.Log.Info.Printf("client %s disconnected", cl.ID)
	}()
	return nil
}

// readLoop applies page messages in order. A message that fails is logged and the
// connection is kept.
func (s *server) readLoop(ctx context.Context, c *websocket.Conn, cl *imeditor.Client) error {
	for {
		var m imeditor.Message
		err := wsjson.Read(ctx, c, &m)
		if err != nil {
			return err
		}
		err = cl.Handle(ctx, m)
		if err != nil {
			if m.Type == imeditor.MSG_EXPORT {
				s.ms.Log.Error.Printf("client %s: %v", cl.ID, err)
			} else {
				s.ms.Log.Warn.Printf("client %s: %v", cl.ID, err)
			}
		}
	}
}

func (s *server) writeLoop(ctx context.Context, c *websocket.Conn, cl *imeditor.Client) error {
	for {
		select {
		case <-cl.Notify():
			res, err := cl.Render()
			if err != nil {
				s.ms.Log.Error.Printf("failed to render for client %s: %v", cl.ID, err)
				continue
			}
			err = write(ctx, c, res)
			if err != nil {
				return err
			}
		case m := <-cl.Outbox():
			err := write(ctx, c, m)
			if err != nil {
				return err
			}
		case <-ctx.Done():
			c.Close(websocket.StatusGoingAway, "server shutting down...")
			return ctx.Err()
		}
	}
}

func write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	return wsjson.Write(ctx, c, v)
}

func wsHeartbeat(ctx context.Context, c *websocket.Conn) {
	defer c.Close(websocket.StatusInternalError, "the sky is falling")

	t := time.NewTimer(0)
	<-t.C
	for {
		err := c.Ping(ctx)
		if err != nil {
			return
		}

		t.Reset(time.Second * 30)
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}
