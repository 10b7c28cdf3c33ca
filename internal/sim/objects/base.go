package objects

import (
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

// NodeSpec is a node as declared by a kind, before rotation.
type NodeSpec struct {
	Side      geom.NodeSide
	Direction Direction
	Accepts   signal.Kind
	Label     string
}

func In(side geom.Side, slot int, accepts signal.Kind) NodeSpec {
	return NodeSpec{Side: geom.NodeAt(side, slot), Direction: Input, Accepts: accepts}
}

func Out(side geom.Side, slot int, accepts signal.Kind) NodeSpec {
	return NodeSpec{Side: geom.NodeAt(side, slot), Direction: Output, Accepts: accepts}
}

// Base holds the geometry shared by every kind and provides the no-op
// behavior defaults.
type Base struct {
	id   ids.ObjectID
	kind Kind
	pos  geom.CellPos
	dims geom.Dimensions
	rot  int

	specs []NodeSpec
	nodes []Node
}

func NewBase(id ids.ObjectID, kind Kind, pos geom.CellPos, dims geom.Dimensions, specs []NodeSpec) *Base {
	b := &Base{
		id:    id,
		kind:  kind,
		pos:   pos,
		dims:  dims.Checked(),
		specs: append([]NodeSpec(nil), specs...),
	}
	b.layout()
	return b
}

func (b *Base) ID() ids.ObjectID            { return b.id }
func (b *Base) Kind() Kind                  { return b.kind }
func (b *Base) Position() geom.CellPos      { return b.pos }
func (b *Base) Dimensions() geom.Dimensions { return b.dims }
func (b *Base) Rotation() int               { return b.rot }

func (b *Base) SetPosition(p geom.CellPos) {
	b.pos = p
	b.layout()
}

func (b *Base) SetDimensions(d geom.Dimensions) {
	b.dims = d.Checked()
	b.layout()
}

// SetRotation turns the object to r quarter turns clockwise from its
// declared orientation. Odd changes swap width and height.
func (b *Base) SetRotation(r int) {
	r = geom.NormalizeRotation(r)
	if (r-b.rot)%2 != 0 {
		b.dims = b.dims.Rotate()
	}
	b.rot = r
	b.layout()
}

func (b *Base) layout() {
	b.nodes = b.nodes[:0]
	for _, s := range b.specs {
		side := geom.NodeSide{Side: s.Side.Side.Rotate(b.rot), Slot: s.Side.Slot}
		p, ok := side.CellPos(b.pos, b.dims)
		b.nodes = append(b.nodes, Node{
			Side:      side,
			Direction: s.Direction,
			Accepts:   s.Accepts,
			Label:     s.Label,
			Pos:       p,
			Disabled:  !ok,
		})
	}
}

func (b *Base) Nodes() []Node { return append([]Node(nil), b.nodes...) }

func (b *Base) NodeAt(pos geom.CellPos) (Node, bool) {
	for _, n := range b.nodes {
		if !n.Disabled && n.Pos == pos {
			return n, true
		}
	}
	return Node{}, false
}

func (b *Base) BodyCells() []geom.CellPos {
	out := make([]geom.CellPos, 0, b.dims.Width*b.dims.Height)
	for y := 0; y < b.dims.Height; y++ {
		for x := 0; x < b.dims.Width; x++ {
			out = append(out, geom.CellPos{X: b.pos.X + x, Y: b.pos.Y + y})
		}
	}
	return out
}

func (b *Base) FootprintCells() []geom.CellPos {
	out := b.BodyCells()
	for _, n := range b.nodes {
		if !n.Disabled {
			out = append(out, n.Pos)
		}
	}
	return out
}

func (b *Base) inBody(p geom.CellPos) bool {
	return p.X >= b.pos.X && p.Y >= b.pos.Y && p.X < b.pos.X+b.dims.Width && p.Y < b.pos.Y+b.dims.Height
}

func (b *Base) ContainsCell(p geom.CellPos) bool {
	if b.inBody(p) {
		return true
	}
	_, ok := b.NodeAt(p)
	return ok
}

// emit sends v out of every enabled output node.
func (b *Base) emit(v signal.Value) []signal.Message {
	var out []signal.Message
	for _, n := range b.nodes {
		if n.Disabled || n.Direction != Output {
			continue
		}
		out = append(out, signal.NodeMessage(b.id, n.Pos, n.Side, v))
	}
	return out
}

func (b *Base) OnReceive(geom.NodeSide, signal.Value) []signal.Message { return nil }
func (b *Base) Tickable() bool                                         { return false }
func (b *Base) Tick(Event) []signal.Message                            { return nil }
func (b *Base) CurrentValue() signal.Value                             { return signal.GpioValue(false) }
func (b *Base) Reset()                                                 {}
func (b *Base) BodyColor() palette.RGB                                 { return palette.ObjectColor }
