package geom

import (
	"fmt"
	"strings"
)

// Side is one edge of a cell or object. The ordinal order is clockwise
// starting from Left.
type Side uint8

const (
	Left Side = iota
	Top
	Right
	Bottom
)

var sideNames = [...]string{"left", "top", "right", "bottom"}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

func (s Side) Valid() bool { return s <= Bottom }

func ParseSide(v string) (Side, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, n := range sideNames {
		if n == v {
			return Side(i), true
		}
	}
	return 0, false
}

func (s Side) Opposite() Side { return (s + 2) & 3 }

// Clockwise maps Left->Top->Right->Bottom->Left.
func (s Side) Clockwise() Side { return (s + 1) & 3 }

func (s Side) CounterClockwise() Side { return (s + 3) & 3 }

// Rotate turns s clockwise by r quarter turns (or degrees, see NormalizeRotation).
func (s Side) Rotate(r int) Side { return (s + Side(NormalizeRotation(r))) & 3 }

// Delta is the unit step from a cell toward s.
func (s Side) Delta() (dx, dy int) {
	switch s {
	case Left:
		return -1, 0
	case Top:
		return 0, -1
	case Right:
		return 1, 0
	default:
		return 0, 1
	}
}

// Facing returns the neighbor of pos on side s.
func (s Side) Facing(pos CellPos) (CellPos, bool) {
	dx, dy := s.Delta()
	return pos.Offset(dx, dy)
}

// Adjacent is a neighbor cell together with the side of the origin it sits on.
type Adjacent struct {
	Pos  CellPos
	Side Side
}

// Ahead returns the cell straight ahead of pos on side s plus the two cells
// lateral to pos, ordered as the lateral before, ahead, lateral after.
// Off-grid cells are left out.
func (s Side) Ahead(pos CellPos) []Adjacent {
	var order [3]Side
	switch s {
	case Left:
		order = [3]Side{Top, Left, Bottom}
	case Right:
		order = [3]Side{Top, Right, Bottom}
	case Top:
		order = [3]Side{Left, Top, Right}
	default:
		order = [3]Side{Left, Bottom, Right}
	}
	out := make([]Adjacent, 0, 3)
	for _, side := range order {
		if p, ok := side.Facing(pos); ok {
			out = append(out, Adjacent{Pos: p, Side: side})
		}
	}
	return out
}

// Around returns the four neighbors of pos (bottom, right, left, top),
// skipping off-grid cells.
func Around(pos CellPos) []Adjacent {
	out := make([]Adjacent, 0, 4)
	for _, side := range [4]Side{Bottom, Right, Left, Top} {
		if p, ok := side.Facing(pos); ok {
			out = append(out, Adjacent{Pos: p, Side: side})
		}
	}
	return out
}
