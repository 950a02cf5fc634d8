// Package imeditor runs editing sessions over one shared impact map.
//
// Every browser tab is a Client. The diagram is shared: a mutation from any client is
// applied under the Editor lock and every client is told to repaint. Focus, selection and
// whether the diagram is mounted belong to the client that reported them, so two tabs never
// see each other's focus ring and an export from one tab never captures the other.
package imeditor

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog"

	"oss.terrastruct.com/xrand"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/log"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
)

type Opts struct {
	Ruler      *textmeasure.Ruler
	Rasterizer imexport.Rasterizer
	RenderOpts *imsvg.RenderOpts
	// Settle is passed to imexport.Exporter.
	Settle time.Duration
}

type Editor struct {
	opts Opts

	mu      sync.Mutex
	diagram *imstate.Diagram
	clients map[*Client]struct{}
}

// New starts an editor on d, or on the default diagram if d is nil.
func New(d *imstate.Diagram, opts Opts) *Editor {
	if d == nil {
		d = imstate.New()
	}
	return &Editor{
		opts:    opts,
		diagram: d.Copy(),
		clients: make(map[*Client]struct{}),
	}
}

func (e *Editor) Connect(ctx context.Context) *Client {
	c := &Client{
		ID:     xrand.Base64(12),
		e:      e,
		notify: make(chan struct{}, 1),
		outbox: make(chan Message, 16),
		done:   make(chan struct{}),
	}
	c.requestRender()

	e.mu.Lock()
	e.clients[c] = struct{}{}
	n := len(e.clients)
	e.mu.Unlock()

	log.Debug(ctx, "client connected", slog.F("id", c.ID), slog.F("clients", n))
	return c
}

func (e *Editor) disconnect(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, c)
}

// Clients returns the number of connected clients.
func (e *Editor) Clients() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

// Snapshot returns a copy of the shared diagram.
func (e *Editor) Snapshot() *imstate.Diagram {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diagram.Copy()
}

// Reset replaces the shared diagram, as when the seed file changes. A nil d is ignored.
func (e *Editor) Reset(d *imstate.Diagram) {
	if d == nil {
		return
	}
	e.mutate(func(cur *imstate.Diagram) bool {
		if cur.Equals(d) {
			return false
		}
		*cur = *d.Copy()
		return true
	})
}

// mutate applies fn under the lock and notifies every client if fn reports a change.
func (e *Editor) mutate(fn func(*imstate.Diagram) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !fn(e.diagram) {
		return
	}
	for c := range e.clients {
		c.requestRender()
	}
}

// Layout lays out the shared diagram with decorations.
func (e *Editor) Layout(decorations *imlayout.Decorations) *imlayout.Diagram {
	return imlayout.Layout(e.Snapshot(), e.opts.Ruler, decorations)
}

// SVG renders the shared diagram without decorations.
func (e *Editor) SVG() ([]byte, error) {
	return imsvg.Render(e.Layout(nil), e.opts.RenderOpts)
}

func (e *Editor) exporter(p imexport.Page, s imexport.Saver) *imexport.Exporter {
	return &imexport.Exporter{
		Page:       p,
		Rasterizer: e.opts.Rasterizer,
		Saver:      s,
		Settle:     e.opts.Settle,
	}
}

// Exporter returns an exporter of the undecorated shared diagram with no page.
func (e *Editor) Exporter(s imexport.Saver) *imexport.Exporter {
	return e.exporter(nil, s)
}
