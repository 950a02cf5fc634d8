// Package imstate holds the editable state of an impact map: an ordered list of node labels
// and one free-text block.
//
// Every mutation is total. Requests that would break the node count bounds or that name a
// node that does not exist are ignored.
package imstate

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

const (
	MIN_NODES = 1
	MAX_NODES = 10
)

// DefaultLabels seed a new diagram. Nodes past the defaults are labeled by NextLabel.
var DefaultLabels = []string{
	"Premium Site",
	"Faster Checkout",
	"Loyal Customers",
}

type Diagram struct {
	Nodes    []string `json:"nodes"`
	FreeText string   `json:"text"`
}

func New() *Diagram {
	return &Diagram{
		Nodes: slices.Clone(DefaultLabels),
	}
}

// NextLabel is the label given to the node appended at index i.
func NextLabel(i int) string {
	if 0 <= i && i < len(DefaultLabels) {
		return DefaultLabels[i]
	}
	return fmt.Sprintf("Circle %d", i+1)
}

func (d *Diagram) CanAdd() bool {
	return len(d.Nodes) < MAX_NODES
}

func (d *Diagram) CanRemove() bool {
	return len(d.Nodes) > MIN_NODES
}

func (d *Diagram) AddNode() {
	if !d.CanAdd() {
		return
	}
	d.Nodes = append(d.Nodes, NextLabel(len(d.Nodes)))
}

func (d *Diagram) RemoveNode(i int) {
	if !d.CanRemove() || !d.has(i) {
		return
	}
	d.Nodes = slices.Delete(d.Nodes, i, i+1)
}

// SetNode replaces the label at i verbatim.
func (d *Diagram) SetNode(i int, text string) {
	if !d.has(i) {
		return
	}
	d.Nodes[i] = text
}

func (d *Diagram) SetFreeText(text string) {
	d.FreeText = text
}

func (d *Diagram) has(i int) bool {
	return 0 <= i && i < len(d.Nodes)
}

func (d *Diagram) Copy() *Diagram {
	if d == nil {
		return nil
	}
	return &Diagram{
		Nodes:    slices.Clone(d.Nodes),
		FreeText: d.FreeText,
	}
}

func (d *Diagram) Equals(other *Diagram) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.FreeText == other.FreeText && slices.Equal(d.Nodes, other.Nodes)
}

var ErrNodeCount = errors.New("node count out of bounds")

// Parse decodes a diagram from JSON. Unlike the mutators, Parse reports a node count outside
// [MIN_NODES, MAX_NODES] as an error.
func Parse(b []byte) (*Diagram, error) {
	d := &Diagram{}
	err := json.Unmarshal(b, d)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diagram: %w", err)
	}
	if n := len(d.Nodes); n < MIN_NODES || n > MAX_NODES {
		return nil, fmt.Errorf("%w: got %d nodes, expected between %d and %d", ErrNodeCount, n, MIN_NODES, MAX_NODES)
	}
	return d, nil
}
