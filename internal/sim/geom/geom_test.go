package geom

import "testing"

func TestFacing_BoundsSafe(t *testing.T) {
	if _, ok := Left.Facing(Pos(0, 5)); ok {
		t.Fatalf("left of column 0 should be off-grid")
	}
	if _, ok := Top.Facing(Pos(5, 0)); ok {
		t.Fatalf("top of row 0 should be off-grid")
	}
	p, ok := Right.Facing(Pos(0, 0))
	if !ok || p != Pos(1, 0) {
		t.Fatalf("right of origin: got %v ok=%v", p, ok)
	}
	p, ok = Bottom.Facing(Pos(0, 0))
	if !ok || p != Pos(0, 1) {
		t.Fatalf("bottom of origin: got %v ok=%v", p, ok)
	}
}

func TestSide_OppositeAndClockwise(t *testing.T) {
	cases := []struct {
		s, opp, cw Side
	}{
		{Left, Right, Top},
		{Top, Bottom, Right},
		{Right, Left, Bottom},
		{Bottom, Top, Left},
	}
	for _, c := range cases {
		if got := c.s.Opposite(); got != c.opp {
			t.Fatalf("%v.Opposite()=%v want %v", c.s, got, c.opp)
		}
		if got := c.s.Clockwise(); got != c.cw {
			t.Fatalf("%v.Clockwise()=%v want %v", c.s, got, c.cw)
		}
		if got := c.s.Clockwise().CounterClockwise(); got != c.s {
			t.Fatalf("cw/ccw round trip for %v: %v", c.s, got)
		}
	}
	if Left.Rotate(90) != Top || Left.Rotate(-1) != Bottom || Top.Rotate(2) != Bottom {
		t.Fatalf("rotate mismatch")
	}
}

func TestAhead_OrderAndSides(t *testing.T) {
	got := Right.Ahead(Pos(4, 4))
	want := []Adjacent{{Pos(4, 3), Top}, {Pos(5, 4), Right}, {Pos(4, 5), Bottom}}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ahead[%d]=%+v want %+v", i, got[i], want[i])
		}
	}

	// At the origin the Top and Left neighbors are dropped.
	got = Left.Ahead(Pos(0, 0))
	if len(got) != 1 || got[0] != (Adjacent{Pos(0, 1), Bottom}) {
		t.Fatalf("left ahead of origin: %+v", got)
	}
	got = Top.Ahead(Pos(0, 0))
	if len(got) != 1 || got[0] != (Adjacent{Pos(1, 0), Right}) {
		t.Fatalf("top ahead of origin: %+v", got)
	}
}

func TestAround_SkipsNegative(t *testing.T) {
	if n := len(Around(Pos(0, 0))); n != 2 {
		t.Fatalf("origin neighbors=%d want 2", n)
	}
	if n := len(Around(Pos(3, 3))); n != 4 {
		t.Fatalf("interior neighbors=%d want 4", n)
	}
}

func TestNodeSide_CellPos(t *testing.T) {
	pos := Pos(10, 20)
	dims := Dims(3, 2)
	cases := []struct {
		n    NodeSide
		want CellPos
	}{
		{NodeAt(Left, 0), Pos(9, 21)},
		{NodeAt(Left, 1), Pos(9, 20)},
		{NodeAt(Right, 0), Pos(13, 20)},
		{NodeAt(Right, 1), Pos(13, 21)},
		{NodeAt(Top, 2), Pos(12, 19)},
		{NodeAt(Bottom, 0), Pos(12, 22)},
		{NodeAt(Bottom, 2), Pos(10, 22)},
	}
	for _, c := range cases {
		got, ok := c.n.CellPos(pos, dims)
		if !ok || got != c.want {
			t.Fatalf("%v: got %v ok=%v want %v", c.n, got, ok, c.want)
		}
	}

	if _, ok := NodeAt(Left, 0).CellPos(Pos(0, 0), Dims(1, 1)); ok {
		t.Fatalf("left node at column 0 should be off-grid")
	}
	if _, ok := NodeAt(Top, 0).CellPos(Pos(3, 0), Dims(1, 1)); ok {
		t.Fatalf("top node at row 0 should be off-grid")
	}
}

func TestNodeSide_SlotOps(t *testing.T) {
	n, err := FromOrdinal(2, 1)
	if err != nil {
		t.Fatalf("FromOrdinal: %v", err)
	}
	if n != NodeAt(Right, 1) {
		t.Fatalf("FromOrdinal(2,1)=%v", n)
	}
	if ord, slot := n.Ordinal(); ord != 2 || slot != 1 {
		t.Fatalf("Ordinal()=(%d,%d)", ord, slot)
	}
	if _, err := FromOrdinal(4, 0); err == nil {
		t.Fatalf("expected error for ordinal 4")
	}
	if NodeAt(Top, 0).Previous() != NodeAt(Top, 0) {
		t.Fatalf("Previous should saturate at 0")
	}
	if NodeAt(Top, 0).Next().Next() != NodeAt(Top, 2) {
		t.Fatalf("Next mismatch")
	}
	if NodeAt(Top, 3).At(1) != NodeAt(Top, 1) {
		t.Fatalf("At mismatch")
	}
	if NodeAt(Left, 2).Opposite() != NodeAt(Right, 2) || NodeAt(Left, 2).Clockwise() != NodeAt(Top, 2) {
		t.Fatalf("opposite/clockwise must keep the slot")
	}
}

func TestDimensions(t *testing.T) {
	if d := (Dimensions{}).Checked(); d != Dims(1, 1) {
		t.Fatalf("Checked zero=%v", d)
	}
	d := Dims(3, 1)
	if d.Rotate() != Dims(1, 3) {
		t.Fatalf("Rotate=%v", d.Rotate())
	}
	if d.Grow(Left) != Dims(4, 1) || d.Grow(Top) != Dims(3, 2) {
		t.Fatalf("Grow mismatch")
	}
	if d.Shrink(Top) != Dims(3, 1) {
		t.Fatalf("Shrink must floor at 1: %v", d.Shrink(Top))
	}
	if d.Along(Left) != 1 || d.Along(Bottom) != 3 {
		t.Fatalf("Along mismatch")
	}
}

func TestRect_Extend(t *testing.T) {
	var r Rect
	r = r.Extend(Pos(2, 3))
	r = r.Extend(Pos(5, 1))
	if r.Min != Pos(2, 1) || r.W != 4 || r.H != 3 {
		t.Fatalf("rect=%+v", r)
	}
	if !r.Contains(Pos(5, 3)) || r.Contains(Pos(6, 3)) {
		t.Fatalf("contains mismatch")
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, -1: 3, 90: 1, 180: 2, 270: 3, 360: 0, -90: 3, 5: 1}
	for in, want := range cases {
		if got := NormalizeRotation(in); got != want {
			t.Fatalf("NormalizeRotation(%d)=%d want %d", in, got, want)
		}
	}
}
