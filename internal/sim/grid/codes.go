package grid

import "pixelcircuits.dev/internal/sim/geom"

// Cell codes pack one pixel into 16 bits for the frame stream:
//
//	bits 12-15  kind (0 = empty)
//	bits  5-11  wire palette index, or node direction
//	bit   4     wire active
//	bits  0-3   display mask
func (p Pixel) Code() uint16 {
	c := uint16(p.Kind)<<12 | uint16(p.Display&0x0f)
	switch p.Kind {
	case PixelWire:
		c |= uint16(p.Palette&0x7f) << 5
		if p.Value.Active {
			c |= 1 << 4
		}
	case PixelNode:
		c |= uint16(p.Direction&0x7f) << 5
	}
	return c
}

// Codes returns the cell codes of r in row-major order. Empty cells are 0.
func (s *Store) Codes(r geom.Rect) []uint16 {
	if r.Empty() {
		return nil
	}
	out := make([]uint16, r.W*r.H)
	for pos, px := range s.cells {
		if !r.Contains(pos) {
			continue
		}
		out[(pos.Y-r.Min.Y)*r.W+(pos.X-r.Min.X)] = px.Code()
	}
	return out
}
