// Package propagate moves signals through the grid one hop per pass.
package propagate

import (
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/grid"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/signal"
)

// Engine advances single messages against a grid store. It holds no state
// of its own.
type Engine struct {
	store *grid.Store
}

func NewEngine(store *grid.Store) *Engine { return &Engine{store: store} }

// Advance performs one propagation step and returns the follow-up messages.
func (e *Engine) Advance(m signal.Message) []signal.Message {
	switch m.Kind {
	case signal.FromNode:
		return e.fromNode(m)
	case signal.WireRelay:
		return e.relay(m)
	default:
		return nil
	}
}

func (e *Engine) fromNode(m signal.Message) []signal.Message {
	// The emitter may have been deleted after the message was queued.
	if _, ok := e.store.Object(m.Object); !ok {
		return nil
	}
	e.store.Stamp(m.Object)

	var out []signal.Message
	for _, adj := range m.Node.Side.Ahead(m.Cell) {
		px, ok := e.store.Pixel(adj.Pos)
		if !ok {
			continue
		}
		switch px.Kind {
		case grid.PixelNode:
			if px.Owner == m.Object {
				continue
			}
			out = append(out, e.deliver(adj.Pos, px, m.Value)...)
		case grid.PixelWire:
			if px.Value != m.Value {
				e.store.SetWireValue(adj.Pos, m.Value)
				out = append(out, signal.RelayMessage(adj.Side.Opposite(), adj.Pos))
			}
		}
	}
	return out
}

func (e *Engine) relay(m signal.Message) []signal.Message {
	start, ok := e.store.WireValue(m.Cell)
	if !ok {
		return nil
	}
	pal, _ := e.store.WirePalette(m.Cell)

	var out []signal.Message
	for _, adj := range m.Side.Opposite().Ahead(m.Cell) {
		px, ok := e.store.Pixel(adj.Pos)
		if !ok {
			continue
		}
		switch px.Kind {
		case grid.PixelNode:
			out = append(out, e.deliver(adj.Pos, px, start)...)
		case grid.PixelWire:
			if px.Palette == pal && px.Value != start {
				e.store.SetWireValue(adj.Pos, start)
				out = append(out, signal.RelayMessage(adj.Side.Opposite(), adj.Pos))
			}
		}
	}
	e.store.SetWireValue(m.Cell, start.Unset())
	return out
}

// deliver hands v to the input node at pos when the node accepts its kind.
func (e *Engine) deliver(pos geom.CellPos, px grid.Pixel, v signal.Value) []signal.Message {
	if px.Direction != objects.Input {
		return nil
	}
	target, ok := e.store.Object(px.Owner)
	if !ok {
		return nil
	}
	node, ok := target.NodeAt(pos)
	if !ok || !node.Accepts.Accepts(v.Kind) {
		return nil
	}
	out := target.OnReceive(node.Side, v)
	e.store.Stamp(target.ID())
	return out
}
