package circuit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/signal"
)

func newTestCircuit(t *testing.T) *Circuit {
	t.Helper()
	c, err := New(Config{ID: "C_test", FrameRateHz: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// lamp builds a switch at (5,5) driving an LED at (9,5) over a single wire
// cell at (7,5). The LED input sits at (8,5).
func lamp(t *testing.T, c *Circuit) (sw, led ids.ObjectID) {
	t.Helper()
	var err error
	if sw, err = c.PlaceObject(objects.KindSwitch, geom.Pos(5, 5)); err != nil {
		t.Fatalf("place switch: %v", err)
	}
	if led, err = c.PlaceObject(objects.KindLED, geom.Pos(9, 5)); err != nil {
		t.Fatalf("place led: %v", err)
	}
	if n, err := c.PlaceWire([]geom.CellPos{geom.Pos(7, 5)}, 0); err != nil || n != 1 {
		t.Fatalf("PlaceWire: n=%d err=%v", n, err)
	}
	return sw, led
}

func lit(t *testing.T, c *Circuit, id ids.ObjectID) bool {
	t.Helper()
	o, ok := c.Store().Object(id)
	if !ok {
		t.Fatalf("missing %s", id)
	}
	return o.CurrentValue().Active
}

func TestPlaceConsumesIDOnlyOnSuccess(t *testing.T) {
	c := newTestCircuit(t)
	a, err := c.PlaceObject(objects.KindSwitch, geom.Pos(5, 5))
	if err != nil || a != 1 {
		t.Fatalf("first place: id=%v err=%v", a, err)
	}
	if _, err := c.PlaceObject(objects.KindSwitch, geom.Pos(5, 5)); err == nil {
		t.Fatalf("expected overlap")
	}
	if _, err := c.PlaceObject("nope", geom.Pos(20, 20)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown kind: %v", err)
	}
	b, err := c.PlaceObject(objects.KindSwitch, geom.Pos(10, 10))
	if err != nil || b != 2 {
		t.Fatalf("second place: id=%v err=%v", b, err)
	}
}

func TestEditOperationsRequireEditMode(t *testing.T) {
	c := newTestCircuit(t)
	sw, _ := lamp(t, c)
	c.SetMode(ModeRun)

	if _, err := c.PlaceObject(objects.KindLED, geom.Pos(20, 20)); !errors.Is(err, ErrMode) {
		t.Fatalf("place: %v", err)
	}
	if _, err := c.MoveObject(sw, geom.Pos(20, 20)); !errors.Is(err, ErrMode) {
		t.Fatalf("move: %v", err)
	}
	if _, err := c.PlaceWire([]geom.CellPos{geom.Pos(0, 0)}, 0); !errors.Is(err, ErrMode) {
		t.Fatalf("wire: %v", err)
	}
	if err := c.DeleteObject(sw); !errors.Is(err, ErrMode) {
		t.Fatalf("delete: %v", err)
	}

	c.SetMode(ModeEdit)
	if err := c.Interact(sw, objects.Click); !errors.Is(err, ErrMode) {
		t.Fatalf("interact in edit: %v", err)
	}
}

func TestMoveAndDrag(t *testing.T) {
	c := newTestCircuit(t)
	sw, _ := lamp(t, c)

	ok, err := c.MoveObject(sw, geom.Pos(9, 5))
	if err != nil || ok {
		t.Fatalf("move onto led: ok=%v err=%v", ok, err)
	}
	if o, _ := c.Store().Object(sw); o.Position() != geom.Pos(5, 5) {
		t.Fatalf("rejected move changed position to %s", o.Position())
	}

	if _, err := c.MoveObject(99, geom.Pos(1, 1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("move unknown: %v", err)
	}

	probe, err := c.PlaceObject(objects.KindProbe, geom.Pos(20, 20))
	if err != nil {
		t.Fatalf("place probe: %v", err)
	}
	if ok, err := c.DragObject(probe, geom.Pos(30, 30)); err != nil || !ok {
		t.Fatalf("drag: ok=%v err=%v", ok, err)
	}
	if o, _ := c.Store().Object(probe); o.Position() != geom.Pos(29, 29) {
		t.Fatalf("drag should center the probe, got %s", o.Position())
	}
}

func TestWireAndErase(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)

	if _, err := c.PlaceWire([]geom.CellPos{geom.Pos(5, 5)}, 0); !errors.Is(err, ErrOccupied) {
		t.Fatalf("wire onto body: %v", err)
	}
	if _, err := c.PlaceWire([]geom.CellPos{geom.Pos(0, 0)}, 99); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad palette: %v", err)
	}
	n, err := c.EraseWire([]geom.CellPos{geom.Pos(7, 5), geom.Pos(5, 5), geom.Pos(40, 40)})
	if err != nil || n != 1 {
		t.Fatalf("erase: n=%d err=%v", n, err)
	}
	if _, ok := c.Store().Pixel(geom.Pos(5, 5)); !ok {
		t.Fatalf("erase removed an object body")
	}
}

func TestSwitchDrivesLEDAcrossFrames(t *testing.T) {
	c := newTestCircuit(t)
	sw, led := lamp(t, c)
	c.SetMode(ModeRun)
	if err := c.Interact(sw, objects.Click); err != nil {
		t.Fatalf("Interact: %v", err)
	}

	res := c.Frame()
	if res.Frame != 1 || lit(t, c, led) {
		t.Fatalf("frame 1: %+v led=%v", res, lit(t, c, led))
	}
	for i := 0; i < 4; i++ {
		c.Frame()
		if !lit(t, c, led) {
			t.Fatalf("led dark at frame %d", c.CurrentFrame())
		}
	}

	if err := c.Interact(sw, objects.Click); err != nil {
		t.Fatalf("Interact: %v", err)
	}
	for i := 0; i < 4; i++ {
		c.Frame()
	}
	if lit(t, c, led) {
		t.Fatalf("led still lit after switch off")
	}
}

func TestFrameInEditModeOnlyCounts(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)
	before := c.Digest()
	res := c.Frame()
	if res.Frame != 1 || res.Drain.Advanced != 0 {
		t.Fatalf("edit frame: %+v", res)
	}
	if c.Digest() != before {
		t.Fatalf("edit frame changed state")
	}
}

func TestReleaseSynthesizesClick(t *testing.T) {
	c := newTestCircuit(t)
	sw, _ := lamp(t, c)
	c.SetMode(ModeRun)
	if err := c.Interact(sw, objects.Release); err != nil {
		t.Fatalf("Interact: %v", err)
	}
	if !lit(t, c, sw) {
		t.Fatalf("release did not toggle the switch")
	}
}

func TestModeSwitchDischarges(t *testing.T) {
	c := newTestCircuit(t)
	sw, led := lamp(t, c)
	c.SetMode(ModeRun)
	_ = c.Interact(sw, objects.Click)
	c.Frame()
	c.Frame()
	if !lit(t, c, led) {
		t.Fatalf("setup: led not lit")
	}

	c.SetMode(ModeEdit)
	if lit(t, c, led) || lit(t, c, sw) || c.Pending() != 0 {
		t.Fatalf("mode switch left charge: led=%v sw=%v pending=%d", lit(t, c, led), lit(t, c, sw), c.Pending())
	}
	if v, _ := c.Store().WireValue(geom.Pos(7, 5)); v.Active {
		t.Fatalf("wire still charged")
	}
}

func TestSettleResolvesButtonPulse(t *testing.T) {
	c := newTestCircuit(t)
	btn, _ := c.PlaceObject(objects.KindButton, geom.Pos(5, 5))
	led, _ := c.PlaceObject(objects.KindLED, geom.Pos(10, 5))
	if _, err := c.PlaceWire([]geom.CellPos{geom.Pos(7, 5), geom.Pos(8, 5)}, 0); err != nil {
		t.Fatalf("PlaceWire: %v", err)
	}
	c.SetMode(ModeRun)
	if err := c.Interact(btn, objects.Click); err != nil {
		t.Fatalf("Interact: %v", err)
	}

	if _, settled := c.Settle(1); settled {
		t.Fatalf("one pass should not settle the pulse")
	}
	passes, settled := c.Settle(64)
	if !settled || passes == 0 {
		t.Fatalf("passes=%d settled=%v", passes, settled)
	}
	if !lit(t, c, led) {
		t.Fatalf("pulse never reached the led")
	}
	if c.CurrentFrame() != 0 {
		t.Fatalf("settle advanced the frame counter")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := newTestCircuit(t)
	sw, _ := lamp(t, c)
	on := true
	if err := c.ConfigureObject(sw, objects.Settings{DefaultOn: &on}); err != nil {
		t.Fatalf("ConfigureObject: %v", err)
	}
	if _, err := c.PlaceObject(objects.KindAnd, geom.Pos(20, 4)); err != nil {
		t.Fatalf("place and: %v", err)
	}
	if _, err := c.PlaceWire([]geom.CellPos{geom.Pos(0, 9), geom.Pos(1, 9)}, 2); err != nil {
		t.Fatalf("PlaceWire: %v", err)
	}
	doc := c.Export()

	b, err := document.Encode(doc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := document.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	d := newTestCircuit(t)
	if err := d.Import(decoded); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if d.Digest() != c.Digest() {
		t.Fatalf("digest mismatch after round trip")
	}
	if d.Store().ObjectCount() != 3 {
		t.Fatalf("objects=%d", d.Store().ObjectCount())
	}
	next, err := d.PlaceObject(objects.KindLED, geom.Pos(30, 30))
	if err != nil || next != 4 {
		t.Fatalf("id allocator not restored: id=%v err=%v", next, err)
	}
}

func TestImportFailureLeavesCircuitUntouched(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)
	before := c.Digest()

	doc := c.Export()
	dup := doc.Objects[0]
	dup.ID = 50
	doc.Objects = append(doc.Objects, dup)

	err := c.Import(doc)
	if !errors.Is(err, document.ErrMalformed) {
		t.Fatalf("Import: %v", err)
	}
	if c.Digest() != before {
		t.Fatalf("failed import modified the circuit")
	}

	doc = c.Export()
	doc.Version = 7
	if err := c.Import(doc); !errors.Is(err, document.ErrVersion) {
		t.Fatalf("version: %v", err)
	}
}

func TestSnapshotRestoresFrameAndMode(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)
	c.SetMode(ModeRun)
	for i := 0; i < 3; i++ {
		c.Frame()
	}
	s := c.ExportSnapshot()

	d := newTestCircuit(t)
	if err := d.ImportSnapshot(s); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if d.CurrentFrame() != 3 || d.Mode() != ModeRun {
		t.Fatalf("frame=%d mode=%s", d.CurrentFrame(), d.Mode())
	}
}

func TestApplyAckCodes(t *testing.T) {
	c := newTestCircuit(t)
	sw, _ := lamp(t, c)

	cases := []struct {
		name string
		act  protocol.ActMsg
		code string
	}{
		{"move onto led", protocol.ActMsg{Op: protocol.OpMove, Object: uint64(sw), Pos: [2]int{9, 5}}, protocol.ErrConflict},
		{"unknown object", protocol.ActMsg{Op: protocol.OpDelete, Object: 77}, protocol.ErrNotFound},
		{"wire on body", protocol.ActMsg{Op: protocol.OpWire, Cells: [][2]int{{5, 5}}}, protocol.ErrInvalidTarget},
		{"negative pos", protocol.ActMsg{Op: protocol.OpPlace, Kind: "led", Pos: [2]int{-1, 0}}, protocol.ErrBadRequest},
		{"unknown op", protocol.ActMsg{Op: "FLY"}, protocol.ErrBadRequest},
		{"settle in edit", protocol.ActMsg{Op: protocol.OpSettle}, protocol.ErrMode},
		{"interact in edit", protocol.ActMsg{Op: protocol.OpInteract, Object: uint64(sw), Event: protocol.EventClick}, protocol.ErrMode},
	}
	for _, tc := range cases {
		ack := c.Apply(tc.act)
		if ack.Accepted || ack.Code != tc.code {
			t.Fatalf("%s: accepted=%v code=%q want %q (%s)", tc.name, ack.Accepted, ack.Code, tc.code, ack.Message)
		}
	}

	ack := c.Apply(protocol.ActMsg{ID: "a1", Op: protocol.OpPlace, Kind: "probe", Pos: [2]int{20, 20}, Rot: 1})
	if !ack.Accepted || ack.AckFor != "a1" || ack.ObjectID != 3 {
		t.Fatalf("place ack: %+v", ack)
	}
	if o, _ := c.Store().Object(3); o.Rotation() != 1 {
		t.Fatalf("rotation not applied")
	}

	if ack := c.Apply(protocol.ActMsg{Op: protocol.OpMode, Mode: "run"}); !ack.Accepted || c.Mode() != ModeRun {
		t.Fatalf("mode ack: %+v", ack)
	}
	if ack := c.Apply(protocol.ActMsg{Op: protocol.OpInteract, Object: uint64(sw), Event: protocol.EventClick}); !ack.Accepted {
		t.Fatalf("interact ack: %+v", ack)
	}
	if ack := c.Apply(protocol.ActMsg{Op: protocol.OpSettle}); !ack.Accepted {
		t.Fatalf("settle ack: %+v", ack)
	}
}

func TestRunLoop(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	out := make(chan []byte, 4)
	welcome := make(chan protocol.WelcomeMsg, 1)
	c.Join() <- JoinRequest{SessionID: "s1", Out: out, Resp: welcome}
	select {
	case w := <-welcome:
		if w.SessionID != "s1" || w.CircuitID != "C_test" || len(w.Kinds) == 0 {
			t.Fatalf("welcome: %+v", w)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no welcome")
	}

	resp := make(chan protocol.AckMsg, 1)
	c.Inbox() <- Request{ClientID: "s1", Act: protocol.ActMsg{ID: "m", Op: protocol.OpMode, Mode: protocol.ModeRun}, Resp: resp}
	select {
	case ack := <-resp:
		if !ack.Accepted {
			t.Fatalf("ack: %+v", ack)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no ack")
	}

	select {
	case b := <-out:
		var msg protocol.FrameMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("frame json: %v", err)
		}
		if msg.Type != protocol.TypeFrame || len(msg.Objects) != 2 {
			t.Fatalf("frame: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame")
	}

	var mode Mode
	if err := c.Do(ctx, func(c *Circuit) { mode = c.Mode() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if mode != ModeRun {
		t.Fatalf("mode=%s", mode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

type sliceFrameLog struct{ entries []FrameLogEntry }

func (l *sliceFrameLog) WriteFrame(e FrameLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func TestStepOnceLogsRecordedActsAndLoads(t *testing.T) {
	src := newTestCircuit(t)
	fl := &sliceFrameLog{}
	src.SetFrameLogger(fl)

	doc := newTestCircuit(t)
	lamp(t, doc)
	lampDoc := doc.Export()

	src.ApplyRecorded("ws-1", protocol.ActMsg{ID: "a1", Op: protocol.OpPlace, Kind: "probe", Pos: [2]int{30, 30}})
	if err := src.ImportRecorded("rest:ada", lampDoc); err != nil {
		t.Fatalf("ImportRecorded: %v", err)
	}
	src.ApplyRecorded("ws-1", protocol.ActMsg{ID: "a2", Op: protocol.OpMode, Mode: protocol.ModeRun})
	src.StepOnce()
	src.ApplyRecorded("ws-1", protocol.ActMsg{ID: "a3", Op: protocol.OpInteract, Object: 1, Event: protocol.EventClick})
	src.StepOnce()
	src.StepOnce()

	if len(fl.entries) != 3 {
		t.Fatalf("entries=%d want 3", len(fl.entries))
	}
	first := fl.entries[0].Acts
	if len(first) != 3 || first[1].Act.Op != OpLoad || first[1].Document == nil || first[1].ClientID != "rest:ada" {
		t.Fatalf("frame 1 acts=%+v", first)
	}
	if len(fl.entries[1].Acts) != 1 || len(fl.entries[2].Acts) != 0 {
		t.Fatalf("acts not cleared between frames")
	}

	// Round-trip the log through JSON the way the file logger does.
	raw, err := json.Marshal(fl.entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var logged []FrameLogEntry
	if err := json.Unmarshal(raw, &logged); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	dst := newTestCircuit(t)
	for _, e := range logged {
		for _, ra := range e.Acts {
			if ok := dst.Replay(ra); ok != ra.Accepted {
				t.Fatalf("frame %d %s: accepted=%v logged=%v", e.Frame, ra.Act.Op, ok, ra.Accepted)
			}
		}
		dst.Frame()
		if got := dst.Digest(); got != e.Digest {
			t.Fatalf("frame %d digest %s, logged %s", e.Frame, got, e.Digest)
		}
	}
}

func TestImportRecordedSkipsFailedLoads(t *testing.T) {
	c := newTestCircuit(t)
	fl := &sliceFrameLog{}
	c.SetFrameLogger(fl)

	if err := c.ImportRecorded("rest", document.CircuitV1{Version: 99}); err == nil {
		t.Fatalf("expected version error")
	}
	c.StepOnce()
	if len(fl.entries) != 1 || len(fl.entries[0].Acts) != 0 {
		t.Fatalf("failed load was logged: %+v", fl.entries)
	}
}

func TestPlaceWithRotationIsAtomic(t *testing.T) {
	c := newTestCircuit(t)
	if ack := c.Apply(protocol.ActMsg{ID: "p1", Op: protocol.OpPlace, Kind: "switch", Pos: [2]int{5, 4}}); !ack.Accepted {
		t.Fatalf("first place: %+v", ack)
	}

	// Turned a quarter, the new switch's outputs land on (5,4) and (5,6).
	ack := c.Apply(protocol.ActMsg{ID: "p2", Op: protocol.OpPlace, Kind: "switch", Pos: [2]int{5, 5}, Rot: 1})
	if ack.Accepted || ack.Code != protocol.ErrConflict {
		t.Fatalf("rotated place: %+v", ack)
	}
	if n := len(c.Store().Objects()); n != 1 {
		t.Fatalf("objects=%d want 1", n)
	}

	ack = c.Apply(protocol.ActMsg{ID: "p3", Op: protocol.OpPlace, Kind: "switch", Pos: [2]int{5, 5}})
	if !ack.Accepted || ack.ObjectID != 2 {
		t.Fatalf("unrotated place: %+v", ack)
	}

	ack = c.Apply(protocol.ActMsg{ID: "p4", Op: protocol.OpPlace, Kind: "led", Pos: [2]int{20, 20}, Rot: 2})
	if !ack.Accepted {
		t.Fatalf("free rotated place: %+v", ack)
	}
	o, _ := c.Store().Object(ids.ObjectID(ack.ObjectID))
	if o.Rotation() != 2 {
		t.Fatalf("rotation=%d want 2", o.Rotation())
	}
}

func TestImportRejectsCellOnTwoNets(t *testing.T) {
	c := newTestCircuit(t)
	lamp(t, c)
	doc := c.Export()
	doc.Palette = append(doc.Palette, document.PairV1{Inactive: "#202080", Active: "#4040ff"})
	doc.Wires[1] = [][2]int{{7, 5}}

	dst := newTestCircuit(t)
	for i := 0; i < 5; i++ {
		err := dst.Import(doc)
		if !errors.Is(err, document.ErrMalformed) {
			t.Fatalf("attempt %d: err=%v", i, err)
		}
	}
	if n := len(dst.Store().Objects()); n != 0 {
		t.Fatalf("failed import changed the circuit: objects=%d", n)
	}
}

func TestSettleStopsAtPassLimitOnLoop(t *testing.T) {
	c := newTestCircuit(t)
	loop := []geom.CellPos{
		geom.Pos(7, 5), geom.Pos(8, 5), geom.Pos(9, 5), geom.Pos(9, 6),
		geom.Pos(9, 7), geom.Pos(8, 7), geom.Pos(7, 7), geom.Pos(7, 6),
	}
	if _, err := c.PlaceWire(loop, 0); err != nil {
		t.Fatalf("PlaceWire: %v", err)
	}
	c.SetMode(ModeRun)
	c.store.SetWireValue(geom.Pos(8, 5), signal.GpioValue(true))
	c.queue.Enqueue(signal.RelayMessage(geom.Left, geom.Pos(8, 5)))

	passes, settled := c.Settle(100)
	if passes != 100 || settled || c.Pending() != 1 {
		t.Fatalf("passes=%d settled=%v pending=%d", passes, settled, c.Pending())
	}
}
