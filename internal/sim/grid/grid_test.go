package grid

import (
	"errors"
	"testing"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

func newObject(t *testing.T, k objects.Kind, id ids.ObjectID, pos geom.CellPos) objects.Object {
	t.Helper()
	o, err := objects.New(k, id, pos)
	if err != nil {
		t.Fatalf("objects.New: %v", err)
	}
	return o
}

func display(t *testing.T, s *Store, pos geom.CellPos) Display {
	t.Helper()
	px, ok := s.Pixel(pos)
	if !ok {
		t.Fatalf("no pixel at %s", pos)
	}
	return px.Display
}

func TestWireConnectivity(t *testing.T) {
	s := NewStore(nil)
	a, b, c := geom.Pos(1, 1), geom.Pos(2, 1), geom.Pos(1, 2)

	if err := s.InsertWire(a, 0); err != nil {
		t.Fatalf("InsertWire: %v", err)
	}
	_ = s.InsertWire(b, 0)
	_ = s.InsertWire(c, 1)

	if d := display(t, s, a); d != ConnRight {
		t.Fatalf("a display=%04b want right only", d)
	}
	if d := display(t, s, b); d != ConnLeft {
		t.Fatalf("b display=%04b want left only", d)
	}
	if d := display(t, s, c); d != 0 {
		t.Fatalf("other palette must not connect, display=%04b", d)
	}

	s.DeleteCell(b)
	if d := display(t, s, a); d != 0 {
		t.Fatalf("delete should clear neighbor flag, display=%04b", d)
	}
	if s.DeleteCell(b) {
		t.Fatalf("second delete must report false")
	}
	if err := s.InsertWire(b, 42); !errors.Is(err, ErrPaletteIndex) {
		t.Fatalf("bad palette err=%v", err)
	}
}

func TestNodeConnectivity(t *testing.T) {
	s := NewStore(nil)
	led := newObject(t, objects.KindLED, 1, geom.Pos(5, 5))
	if err := s.AddObject(led); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	in := geom.Pos(4, 5)
	if !s.IsNode(in) {
		t.Fatalf("expected input node at %s", in)
	}
	// The side toward the body is always set.
	if d := display(t, s, in); !d.Has(geom.Right) {
		t.Fatalf("node display=%04b missing object side", d)
	}
	body, _ := s.Pixel(geom.Pos(5, 5))
	if body.Kind != PixelBody || body.Display != 0 || body.Owner != 1 {
		t.Fatalf("body pixel=%+v", body)
	}

	w := geom.Pos(3, 5)
	_ = s.InsertWire(w, 3)
	if d := display(t, s, w); d != ConnRight {
		t.Fatalf("wire next to node display=%04b", d)
	}
	if d := display(t, s, in); !d.Has(geom.Left) {
		t.Fatalf("node should connect to new wire, display=%04b", d)
	}
}

func TestInsertReplacesContent(t *testing.T) {
	s := NewStore(nil)
	p := geom.Pos(2, 2)
	s.InsertDecor(p, palette.RGB{1, 2, 3})
	_ = s.InsertWire(p, 0)
	if !s.IsWire(p) || s.Len() != 1 {
		t.Fatalf("wire should replace decor")
	}
	if v, ok := s.WireValue(p); !ok || v.Active {
		t.Fatalf("fresh wire value=%v ok=%v", v, ok)
	}
	if !s.SetWireValue(p, signal.GpioValue(true)) {
		t.Fatalf("SetWireValue failed")
	}
	c, _ := s.WireColor(p)
	if c != palette.Default()[0].Active {
		t.Fatalf("wire color=%v", c)
	}
	if s.SetWireValue(geom.Pos(9, 9), signal.GpioValue(true)) {
		t.Fatalf("SetWireValue on empty cell must fail")
	}
}

func TestMoveObject_RejectsOverlap(t *testing.T) {
	s := NewStore(nil)
	a := newObject(t, objects.KindLED, 1, geom.Pos(5, 5))
	b := newObject(t, objects.KindLED, 2, geom.Pos(9, 5))
	if err := s.AddObject(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := s.AddObject(b); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := s.AddObject(newObject(t, objects.KindLED, 3, geom.Pos(6, 5))); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlapping add err=%v", err)
	}
	if err := s.AddObject(newObject(t, objects.KindLED, 2, geom.Pos(20, 20))); !errors.Is(err, ErrDuplicateObject) {
		t.Fatalf("duplicate add err=%v", err)
	}

	// (6,5) is a's output and would be b's input.
	if s.MoveObject(2, geom.Pos(7, 5)) {
		t.Fatalf("overlapping move accepted")
	}
	if b.Position() != geom.Pos(9, 5) {
		t.Fatalf("position not reverted: %s", b.Position())
	}
	if px, ok := s.Pixel(geom.Pos(9, 5)); !ok || px.Owner != 2 {
		t.Fatalf("reverted object not restamped")
	}

	if !s.MoveObject(2, geom.Pos(9, 8)) {
		t.Fatalf("free move rejected")
	}
	if _, ok := s.Pixel(geom.Pos(9, 5)); ok {
		t.Fatalf("vacated cell still occupied")
	}
	if o, ok := s.ObjectAt(geom.Pos(10, 8)); !ok || o.ID() != 2 {
		t.Fatalf("ObjectAt new output node")
	}
	if s.MoveObject(99, geom.Pos(0, 0)) {
		t.Fatalf("move of unknown object")
	}
	if !s.IsValidObjectPos(b, geom.Pos(30, 30)) || s.IsValidObjectPos(b, geom.Pos(5, 5)) {
		t.Fatalf("IsValidObjectPos")
	}
}

func TestObjectAtOrigin_DisabledNodes(t *testing.T) {
	s := NewStore(nil)
	btn := newObject(t, objects.KindButton, 1, geom.Pos(0, 0))
	if err := s.AddObject(btn); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	// body + right + bottom
	if s.Len() != 3 {
		t.Fatalf("cells=%d want 3", s.Len())
	}
	if b := s.Bounds(); b != (geom.Rect{Min: geom.Pos(0, 0), W: 2, H: 2}) {
		t.Fatalf("bounds=%+v", b)
	}
}

func TestRemoveAndRotate(t *testing.T) {
	s := NewStore(nil)
	sw := newObject(t, objects.KindSwitch, 1, geom.Pos(5, 5))
	_ = s.AddObject(sw)
	if !s.RotateObject(1, 1) {
		t.Fatalf("rotate rejected")
	}
	if !s.IsNode(geom.Pos(5, 4)) || !s.IsNode(geom.Pos(5, 6)) {
		t.Fatalf("rotated nodes not stamped")
	}
	if s.IsNode(geom.Pos(4, 5)) {
		t.Fatalf("old node still stamped")
	}
	if !s.RemoveObject(1) || s.Len() != 0 || s.ObjectCount() != 0 {
		t.Fatalf("remove left %d cells", s.Len())
	}
	if s.RemoveObject(1) {
		t.Fatalf("double remove")
	}
}

func TestResetAll(t *testing.T) {
	s := NewStore(nil)
	sw := newObject(t, objects.KindSwitch, 1, geom.Pos(5, 5))
	_ = s.AddObject(sw)
	sw.Tick(objects.Click)
	s.Stamp(1)
	if px, _ := s.Pixel(geom.Pos(5, 5)); px.Color != palette.SwitchOn {
		t.Fatalf("stamp did not pick up on color")
	}
	w := geom.Pos(1, 1)
	_ = s.InsertWire(w, 0)
	s.SetWireValue(w, signal.GpioValue(true))

	s.ResetAll()
	if v, _ := s.WireValue(w); v.Active {
		t.Fatalf("wire still active after reset")
	}
	if sw.CurrentValue().Active {
		t.Fatalf("switch still on after reset")
	}
	if px, _ := s.Pixel(geom.Pos(5, 5)); px.Color != palette.SwitchOff {
		t.Fatalf("reset did not restamp")
	}
}

func TestCodes(t *testing.T) {
	s := NewStore(nil)
	_ = s.InsertWire(geom.Pos(1, 0), 2)
	_ = s.InsertWire(geom.Pos(2, 0), 2)
	s.SetWireValue(geom.Pos(2, 0), signal.GpioValue(true))

	codes := s.Codes(geom.Rect{Min: geom.Pos(0, 0), W: 3, H: 1})
	want := []uint16{
		0,
		uint16(PixelWire)<<12 | 2<<5 | uint16(ConnRight),
		uint16(PixelWire)<<12 | 2<<5 | 1<<4 | uint16(ConnLeft),
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes=%v want %v", codes, want)
		}
	}
	if s.Codes(geom.Rect{}) != nil {
		t.Fatalf("empty rect should give nil")
	}
}

func TestStampUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewStore(nil).Stamp(7)
}
