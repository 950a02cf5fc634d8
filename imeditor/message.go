package imeditor

import (
	"oss.terrastruct.com/impactmap/imlayout"
)

type MessageType string

// Sent by the page.
const (
	MSG_ADD       MessageType = "add"
	MSG_REMOVE    MessageType = "remove"
	MSG_SET_NODE  MessageType = "set_node"
	MSG_SET_TEXT  MessageType = "set_text"
	MSG_FOCUS     MessageType = "focus"
	MSG_BLUR      MessageType = "blur"
	MSG_SELECT    MessageType = "select"
	MSG_MOUNTED   MessageType = "mounted"
	MSG_UNMOUNTED MessageType = "unmounted"
	MSG_EXPORT    MessageType = "export"
)

// Sent to the page. MSG_BLUR is also sent back to drop focus from the page inputs.
const (
	MSG_RENDER          MessageType = "render"
	MSG_CLEAR_SELECTION MessageType = "clear_selection"
	MSG_DOWNLOAD        MessageType = "download"
)

// Message is the envelope for every event in either direction except renders.
type Message struct {
	Type MessageType `json:"type"`

	// add, remove, set_node
	Index int `json:"index,omitempty"`
	// set_node, set_text
	Text string `json:"text,omitempty"`

	// focus, select
	Field *imlayout.Field `json:"field,omitempty"`
	Start int             `json:"start,omitempty"`
	End   int             `json:"end,omitempty"`

	// download
	Filename string `json:"filename,omitempty"`
	DataURI  string `json:"dataURI,omitempty"`
}

// Render is everything the page needs to repaint: the shared state, its own decorations
// and the diagram drawn with them.
type Render struct {
	Type MessageType `json:"type"`

	Nodes []string `json:"nodes"`
	Text  string   `json:"text"`

	CanAdd    bool `json:"canAdd"`
	CanRemove bool `json:"canRemove"`

	// TextHeight is the fitted height of the free text area.
	TextHeight float64 `json:"textHeight"`

	Focus     *imlayout.Field     `json:"focus,omitempty"`
	Selection *imlayout.Selection `json:"selection,omitempty"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	SVG    string  `json:"svg"`
}
