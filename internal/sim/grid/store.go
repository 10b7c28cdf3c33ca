package grid

import (
	"errors"
	"fmt"
	"sort"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

var (
	ErrDuplicateObject = errors.New("duplicate object id")
	ErrOverlap         = errors.New("object footprint overlaps another object")
	ErrPaletteIndex    = errors.New("palette index out of range")
)

// Store owns the cell map and the placed objects. It is the single source
// of truth for occupancy. Not safe for concurrent use.
type Store struct {
	pal   palette.Palette
	cells map[geom.CellPos]Pixel

	objs  map[ids.ObjectID]objects.Object
	order []ids.ObjectID
}

func NewStore(pal palette.Palette) *Store {
	if len(pal) == 0 {
		pal = palette.Default()
	}
	return &Store{
		pal:   pal.Clone(),
		cells: map[geom.CellPos]Pixel{},
		objs:  map[ids.ObjectID]objects.Object{},
	}
}

func (s *Store) Palette() palette.Palette { return s.pal.Clone() }

// ---- cells ----

func (s *Store) Pixel(pos geom.CellPos) (Pixel, bool) {
	p, ok := s.cells[pos]
	return p, ok
}

func (s *Store) Len() int { return len(s.cells) }

func (s *Store) InsertWire(pos geom.CellPos, paletteIndex int) error {
	if !s.pal.Valid(paletteIndex) {
		return fmt.Errorf("%w: %d", ErrPaletteIndex, paletteIndex)
	}
	s.insert(pos, Pixel{Kind: PixelWire, Palette: paletteIndex, Value: signal.GpioValue(false)})
	return nil
}

func (s *Store) InsertNodeMarker(pos geom.CellPos, side geom.NodeSide, dir objects.Direction, owner ids.ObjectID) {
	s.insert(pos, Pixel{Kind: PixelNode, Side: side, Direction: dir, Owner: owner})
}

func (s *Store) InsertBody(pos geom.CellPos, owner ids.ObjectID, color palette.RGB) {
	s.insert(pos, Pixel{Kind: PixelBody, Owner: owner, Color: color})
}

func (s *Store) InsertDecor(pos geom.CellPos, color palette.RGB) {
	s.insert(pos, Pixel{Kind: PixelDecor, Color: color})
}

func (s *Store) insert(pos geom.CellPos, px Pixel) {
	s.DeleteCell(pos)

	px.Display = 0
	switch px.Kind {
	case PixelWire:
		for _, adj := range geom.Around(pos) {
			n, ok := s.cells[adj.Pos]
			if !ok {
				continue
			}
			if n.IsNode() || (n.IsWire() && n.Palette == px.Palette) {
				px.Display |= DisplayBit(adj.Side)
			}
		}
	case PixelNode:
		// The side facing the owning object is always connected.
		px.Display = DisplayBit(px.Side.Side.Opposite())
		for _, adj := range geom.Around(pos) {
			if _, ok := s.cells[adj.Pos]; ok {
				px.Display |= DisplayBit(adj.Side)
			}
		}
	}
	s.cells[pos] = px

	if px.IsWire() || px.IsNode() {
		s.updateAround(pos, px, true)
	}
}

// DeleteCell removes whatever is at pos and clears the neighbors' flags
// toward it.
func (s *Store) DeleteCell(pos geom.CellPos) bool {
	if _, ok := s.cells[pos]; !ok {
		return false
	}
	delete(s.cells, pos)
	s.updateAround(pos, Pixel{}, false)
	return true
}

func (s *Store) updateAround(pos geom.CellPos, px Pixel, inserted bool) {
	for _, adj := range geom.Around(pos) {
		n, ok := s.cells[adj.Pos]
		if !ok {
			continue
		}
		bit := DisplayBit(adj.Side.Opposite())
		if inserted {
			if !(n.IsNode() || (n.IsWire() && (!px.IsWire() || n.Palette == px.Palette))) {
				continue
			}
			n.Display |= bit
		} else {
			if !n.IsNode() && !n.IsWire() {
				continue
			}
			n.Display &^= bit
		}
		s.cells[adj.Pos] = n
	}
}

func (s *Store) IsWire(pos geom.CellPos) bool {
	p, ok := s.cells[pos]
	return ok && p.IsWire()
}

func (s *Store) IsNode(pos geom.CellPos) bool {
	p, ok := s.cells[pos]
	return ok && p.IsNode()
}

func (s *Store) WireValue(pos geom.CellPos) (signal.Value, bool) {
	p, ok := s.cells[pos]
	if !ok || !p.IsWire() {
		return signal.Value{}, false
	}
	return p.Value, true
}

func (s *Store) WirePalette(pos geom.CellPos) (int, bool) {
	p, ok := s.cells[pos]
	if !ok || !p.IsWire() {
		return 0, false
	}
	return p.Palette, true
}

// WireColor is the wire's current display color.
func (s *Store) WireColor(pos geom.CellPos) (palette.RGB, bool) {
	p, ok := s.cells[pos]
	if !ok || !p.IsWire() || !s.pal.Valid(p.Palette) {
		return palette.RGB{}, false
	}
	return s.pal[p.Palette].For(p.Value.Active), true
}

func (s *Store) SetWireValue(pos geom.CellPos, v signal.Value) bool {
	p, ok := s.cells[pos]
	if !ok || !p.IsWire() {
		return false
	}
	p.Value = v
	s.cells[pos] = p
	return true
}

// Cells returns every occupied cell in row-major order.
func (s *Store) Cells() []Cell {
	out := make([]Cell, 0, len(s.cells))
	for pos, px := range s.cells {
		out = append(out, Cell{Pos: pos, Pixel: px})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

// Wires groups wire cells by palette index, each list in row-major order.
func (s *Store) Wires() map[int][]geom.CellPos {
	out := map[int][]geom.CellPos{}
	for _, c := range s.Cells() {
		if c.Pixel.IsWire() {
			out[c.Pixel.Palette] = append(out[c.Pixel.Palette], c.Pos)
		}
	}
	return out
}

func (s *Store) Bounds() geom.Rect {
	var r geom.Rect
	for pos := range s.cells {
		r = r.Extend(pos)
	}
	return r
}

// ---- objects ----

func (s *Store) Object(id ids.ObjectID) (objects.Object, bool) {
	o, ok := s.objs[id]
	return o, ok
}

func (s *Store) mustObject(id ids.ObjectID) objects.Object {
	o, ok := s.objs[id]
	if !ok {
		panic(fmt.Sprintf("grid: unknown object %s", id))
	}
	return o
}

// ObjectAt returns the first placed object whose footprint contains pos.
func (s *Store) ObjectAt(pos geom.CellPos) (objects.Object, bool) {
	for _, id := range s.order {
		if o := s.objs[id]; o.ContainsCell(pos) {
			return o, true
		}
	}
	return nil, false
}

// Objects returns the placed objects in insertion order.
func (s *Store) Objects() []objects.Object {
	out := make([]objects.Object, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.objs[id])
	}
	return out
}

func (s *Store) ObjectCount() int { return len(s.order) }

// AddObject places o at its current position and stamps it.
func (s *Store) AddObject(o objects.Object) error {
	if _, dup := s.objs[o.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, o.ID())
	}
	if !s.fits(o) {
		return ErrOverlap
	}
	s.objs[o.ID()] = o
	s.order = append(s.order, o.ID())
	s.Stamp(o.ID())
	return nil
}

// RemoveObject clears the object's footprint, then forgets it.
func (s *Store) RemoveObject(id ids.ObjectID) bool {
	o, ok := s.objs[id]
	if !ok {
		return false
	}
	s.unstamp(o)
	delete(s.objs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Stamp rewrites the object's entire footprint: every cell is deleted and
// re-inserted, never diffed.
func (s *Store) Stamp(id ids.ObjectID) {
	o := s.mustObject(id)
	s.unstamp(o)
	for _, st := range objects.Stamps(o) {
		switch st.Kind {
		case objects.StampBody:
			s.InsertBody(st.Pos, id, st.Color)
		case objects.StampNode:
			s.InsertNodeMarker(st.Pos, st.Side, st.Direction, id)
		}
	}
}

// Unstamp clears the object's footprint but keeps it placed.
func (s *Store) Unstamp(id ids.ObjectID) { s.unstamp(s.mustObject(id)) }

func (s *Store) unstamp(o objects.Object) {
	for _, p := range o.FootprintCells() {
		s.DeleteCell(p)
	}
}

// fits reports whether o's footprint at its current position is clear of
// every other object.
func (s *Store) fits(o objects.Object) bool {
	for _, id := range s.order {
		if id == o.ID() {
			continue
		}
		if objects.Overlaps(o, s.objs[id]) {
			return false
		}
	}
	return true
}

// IsValidObjectPos reports whether o could sit at pos.
func (s *Store) IsValidObjectPos(o objects.Object, pos geom.CellPos) bool {
	old := o.Position()
	o.SetPosition(pos)
	ok := s.fits(o)
	o.SetPosition(old)
	return ok
}

// MoveObject moves id to pos. An overlapping target leaves the object where
// it was; either way the footprint is restamped.
func (s *Store) MoveObject(id ids.ObjectID, pos geom.CellPos) bool {
	o, ok := s.objs[id]
	if !ok {
		return false
	}
	return s.transform(o, func() { o.SetPosition(pos) }, func() {})
}

// RotateObject sets the object's rotation with the same revert rule as a move.
func (s *Store) RotateObject(id ids.ObjectID, rot int) bool {
	o, ok := s.objs[id]
	if !ok {
		return false
	}
	old := o.Rotation()
	return s.transform(o, func() { o.SetRotation(rot) }, func() { o.SetRotation(old) })
}

func (s *Store) transform(o objects.Object, apply, undo func()) bool {
	oldPos := o.Position()
	s.unstamp(o)
	apply()
	ok := s.fits(o)
	if !ok {
		undo()
		o.SetPosition(oldPos)
	}
	s.Stamp(o.ID())
	return ok
}

// ResetAll discharges every wire, resets every object and restamps them.
func (s *Store) ResetAll() {
	for pos, px := range s.cells {
		if px.IsWire() {
			px.Value = px.Value.Unset()
			s.cells[pos] = px
		}
	}
	for _, id := range s.order {
		s.objs[id].Reset()
	}
	for _, id := range s.order {
		s.Stamp(id)
	}
}
