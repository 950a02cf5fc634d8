package imeditor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cdr.dev/slog"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/log"
)

var ErrClosed = errors.New("client closed")

// Client is one page editing the shared diagram.
//
// The transport reads Notify and pulls Render when it fires, and forwards everything
// from Outbox as is.
type Client struct {
	ID string
	e  *Editor

	mu        sync.Mutex
	focus     *imlayout.Field
	selection *imlayout.Selection
	mounted   bool

	notify chan struct{}
	outbox chan Message

	closeOnce sync.Once
	done      chan struct{}
}

var (
	_ imexport.Page   = &Client{}
	_ imexport.Saver  = &Client{}
	_ imexport.Target = &Client{}
)

// Notify fires when the client should repaint. Bursts coalesce into one.
func (c *Client) Notify() <-chan struct{} {
	return c.notify
}

func (c *Client) Outbox() <-chan Message {
	return c.outbox
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.e.disconnect(c)
	})
}

func (c *Client) requestRender() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Client) send(ctx context.Context, m Message) error {
	select {
	case c.outbox <- m:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle applies one message from the page.
func (c *Client) Handle(ctx context.Context, m Message) error {
	log.Debug(ctx, "handling message", slog.F("client", c.ID), slog.F("type", m.Type))

	switch m.Type {
	case MSG_ADD:
		c.e.mutate(func(d *imstate.Diagram) bool {
			if !d.CanAdd() {
				return false
			}
			d.AddNode()
			return true
		})
	case MSG_REMOVE:
		c.e.mutate(func(d *imstate.Diagram) bool {
			if !d.CanRemove() || m.Index < 0 || m.Index >= len(d.Nodes) {
				return false
			}
			d.RemoveNode(m.Index)
			// Every open page indexes its focus into the shared node list.
			for o := range c.e.clients {
				o.shiftFocus(m.Index)
			}
			return true
		})
	case MSG_SET_NODE:
		c.e.mutate(func(d *imstate.Diagram) bool {
			if m.Index < 0 || m.Index >= len(d.Nodes) || d.Nodes[m.Index] == m.Text {
				return false
			}
			d.SetNode(m.Index, m.Text)
			return true
		})
	case MSG_SET_TEXT:
		c.e.mutate(func(d *imstate.Diagram) bool {
			if d.FreeText == m.Text {
				return false
			}
			d.SetFreeText(m.Text)
			return true
		})
	case MSG_FOCUS:
		if m.Field == nil {
			return fmt.Errorf("focus message without field")
		}
		f := *m.Field
		c.decorate(func() {
			c.focus = &f
		})
	case MSG_BLUR:
		c.decorate(func() {
			c.focus = nil
		})
	case MSG_SELECT:
		if m.Field == nil {
			return fmt.Errorf("select message without field")
		}
		sel := &imlayout.Selection{Field: *m.Field, Start: m.Start, End: m.End}
		if sel.Start > sel.End {
			sel.Start, sel.End = sel.End, sel.Start
		}
		if sel.Start < 0 {
			sel.Start = 0
		}
		c.decorate(func() {
			if sel.Empty() {
				c.selection = nil
			} else {
				c.selection = sel
			}
		})
	case MSG_MOUNTED:
		c.setMounted(true)
	case MSG_UNMOUNTED:
		c.setMounted(false)
	case MSG_EXPORT:
		return c.e.exporter(c, c).Export(ctx, c.Target())
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// shiftFocus keeps focus on the same node after node i is removed.
func (c *Client) shiftFocus(i int) {
	c.decorate(func() {
		if c.focus != nil && c.focus.Kind == imlayout.FIELD_NODE {
			switch {
			case c.focus.Index == i:
				c.focus = nil
			case c.focus.Index > i:
				f := imlayout.NodeField(c.focus.Index - 1)
				c.focus = &f
			}
		}
		if c.selection != nil && c.selection.Field.Kind == imlayout.FIELD_NODE && c.selection.Field.Index >= i {
			c.selection = nil
		}
	})
}

func (c *Client) decorate(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	c.requestRender()
}

func (c *Client) setMounted(mounted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = mounted
}

// Decorations returns a copy of the client's focus and selection.
func (c *Client) Decorations() *imlayout.Decorations {
	c.mu.Lock()
	defer c.mu.Unlock()
	dec := &imlayout.Decorations{}
	if c.focus != nil {
		f := *c.focus
		dec.Focus = &f
	}
	if c.selection != nil {
		s := *c.selection
		dec.Selection = &s
	}
	return dec
}

// Target returns the client as an export target, or nil if its diagram is not mounted.
func (c *Client) Target() imexport.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return nil
	}
	return c
}

// Diagram lays out the shared diagram with this client's decorations.
func (c *Client) Diagram() *imlayout.Diagram {
	return c.e.Layout(c.Decorations())
}

func (c *Client) Render() (*Render, error) {
	d := c.e.Snapshot()
	ld := imlayout.Layout(d, c.e.opts.Ruler, c.Decorations())
	svg, err := imsvg.Render(ld, c.e.opts.RenderOpts)
	if err != nil {
		return nil, err
	}
	return &Render{
		Type: MSG_RENDER,

		Nodes: d.Nodes,
		Text:  d.FreeText,

		CanAdd:    d.CanAdd(),
		CanRemove: d.CanRemove(),

		TextHeight: ld.Block.Box.Height,

		Focus:     ld.Focus,
		Selection: ld.Selection,

		Width:  ld.Width,
		Height: ld.Height,
		SVG:    string(svg),
	}, nil
}

func (c *Client) ClearFocus(ctx context.Context) error {
	c.decorate(func() {
		c.focus = nil
	})
	return c.send(ctx, Message{Type: MSG_BLUR})
}

func (c *Client) ClearSelection(ctx context.Context) error {
	c.decorate(func() {
		c.selection = nil
	})
	return c.send(ctx, Message{Type: MSG_CLEAR_SELECTION})
}

// Save hands the export to the page as a download.
func (c *Client) Save(ctx context.Context, filename, dataURI string) error {
	log.Info(ctx, "sending export", slog.F("client", c.ID), slog.F("filename", filename), slog.F("bytes", len(dataURI)))
	return c.send(ctx, Message{
		Type:     MSG_DOWNLOAD,
		Filename: filename,
		DataURI:  dataURI,
	})
}
