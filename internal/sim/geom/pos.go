package geom

import "fmt"

// CellPos is a grid cell. Both coordinates are non-negative.
type CellPos struct {
	X int
	Y int
}

func Pos(x, y int) CellPos { return CellPos{X: x, Y: y} }

func (p CellPos) ToArray() [2]int { return [2]int{p.X, p.Y} }

func FromArray(a [2]int) (CellPos, bool) {
	if a[0] < 0 || a[1] < 0 {
		return CellPos{}, false
	}
	return CellPos{X: a[0], Y: a[1]}, true
}

// Offset returns p+(dx,dy), or false when either coordinate would go negative.
func (p CellPos) Offset(dx, dy int) (CellPos, bool) {
	x, y := p.X+dx, p.Y+dy
	if x < 0 || y < 0 {
		return CellPos{}, false
	}
	return CellPos{X: x, Y: y}, true
}

// SaturatingSub subtracts (dx,dy) and clamps at zero.
func (p CellPos) SaturatingSub(dx, dy int) CellPos {
	x, y := p.X-dx, p.Y-dy
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return CellPos{X: x, Y: y}
}

func (p CellPos) Less(o CellPos) bool {
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

func (p CellPos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Rect is an inclusive-exclusive cell rectangle.
type Rect struct {
	Min CellPos
	W   int
	H   int
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Contains(p CellPos) bool {
	return p.X >= r.Min.X && p.Y >= r.Min.Y && p.X < r.Min.X+r.W && p.Y < r.Min.Y+r.H
}

// Extend grows r to cover p.
func (r Rect) Extend(p CellPos) Rect {
	if r.Empty() {
		return Rect{Min: p, W: 1, H: 1}
	}
	minX, minY := min(r.Min.X, p.X), min(r.Min.Y, p.Y)
	maxX, maxY := max(r.Min.X+r.W, p.X+1), max(r.Min.Y+r.H, p.Y+1)
	return Rect{Min: CellPos{X: minX, Y: minY}, W: maxX - minX, H: maxY - minY}
}
