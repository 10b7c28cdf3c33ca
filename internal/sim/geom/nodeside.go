package geom

import "fmt"

// NodeSide is a node slot on one side of an object. Slots are numbered
// clockwise: top-to-bottom on the right, right-to-left on the bottom,
// bottom-to-top on the left, left-to-right on the top.
type NodeSide struct {
	Side Side
	Slot int
}

func NodeAt(s Side, slot int) NodeSide { return NodeSide{Side: s, Slot: slot} }

// FromOrdinal builds a NodeSide from (side ordinal, slot).
func FromOrdinal(ord, slot int) (NodeSide, error) {
	if ord < 0 || ord > int(Bottom) {
		return NodeSide{}, fmt.Errorf("node side ordinal out of range: %d", ord)
	}
	if slot < 0 {
		return NodeSide{}, fmt.Errorf("negative node slot: %d", slot)
	}
	return NodeSide{Side: Side(ord), Slot: slot}, nil
}

func (n NodeSide) Ordinal() (ord, slot int) { return int(n.Side), n.Slot }

func (n NodeSide) Previous() NodeSide {
	if n.Slot > 0 {
		n.Slot--
	}
	return n
}

func (n NodeSide) Next() NodeSide {
	n.Slot++
	return n
}

func (n NodeSide) At(slot int) NodeSide {
	n.Slot = slot
	return n
}

func (n NodeSide) Opposite() NodeSide { return NodeSide{Side: n.Side.Opposite(), Slot: n.Slot} }

func (n NodeSide) Clockwise() NodeSide { return NodeSide{Side: n.Side.Clockwise(), Slot: n.Slot} }

func (n NodeSide) String() string { return fmt.Sprintf("%s%d", n.Side, n.Slot) }

// CellPos returns the cell the node occupies for an object at pos with body
// dims, or false when that cell would be off-grid.
func (n NodeSide) CellPos(pos CellPos, dims Dimensions) (CellPos, bool) {
	dims = dims.Checked()
	switch n.Side {
	case Left:
		return pos.Offset(-1, dims.Height-n.Slot-1)
	case Right:
		return pos.Offset(dims.Width, n.Slot)
	case Top:
		return pos.Offset(n.Slot, -1)
	default:
		return pos.Offset(dims.Width-n.Slot-1, dims.Height)
	}
}
