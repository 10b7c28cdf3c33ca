package main

import (
	"path/filepath"
	"strings"
	"testing"

	"pixelcircuits.dev/internal/persistence/document"
	persistlog "pixelcircuits.dev/internal/persistence/log"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/circuit"
)

func lampSession() [][]protocol.ActMsg {
	return [][]protocol.ActMsg{
		{
			{ID: "a1", Op: protocol.OpPlace, Kind: "switch", Pos: [2]int{5, 5}},
			{ID: "a2", Op: protocol.OpPlace, Kind: "led", Pos: [2]int{9, 5}},
			{ID: "a3", Op: protocol.OpWire, Cells: [][2]int{{7, 5}}},
		},
		{{ID: "a4", Op: protocol.OpMode, Mode: protocol.ModeRun}},
		{{ID: "a5", Op: protocol.OpInteract, Object: 1, Event: protocol.EventClick}},
		nil,
		nil,
		{{ID: "a6", Op: protocol.OpPlace, Kind: "led", Pos: [2]int{20, 20}}},
	}
}

type corruptingLogger struct {
	circuit.FrameLogger
	frame uint64
}

func (l corruptingLogger) WriteFrame(e circuit.FrameLogEntry) error {
	if e.Frame == l.frame {
		e.Digest = "bad"
	}
	return l.FrameLogger.WriteFrame(e)
}

// record plays batches on a fresh circuit through the same path the live
// loop uses. loads[i] is imported before batch i.
func record(t *testing.T, dir string, corrupt uint64, batches [][]protocol.ActMsg, loads map[int]document.CircuitV1) *circuit.Circuit {
	t.Helper()
	src, err := circuit.New(circuit.Config{ID: "c_replay", FrameRateHz: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fl := persistlog.NewFrameLogger(dir)
	src.SetFrameLogger(corruptingLogger{FrameLogger: fl, frame: corrupt})
	for i, batch := range batches {
		if doc, ok := loads[i]; ok {
			if err := src.ImportRecorded("t", doc); err != nil {
				t.Fatalf("import: %v", err)
			}
		}
		for _, a := range batch {
			src.ApplyRecorded("t", a)
		}
		src.StepOnce()
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return src
}

func replayAll(t *testing.T, dir string, toFrame uint64) (*circuit.Circuit, uint64, error) {
	t.Helper()
	files, err := listFrameFiles(filepath.Join(dir, "frames"))
	if err != nil || len(files) == 0 {
		t.Fatalf("list frames: %v files=%v", err, files)
	}
	dst, err := circuit.New(circuit.Config{ID: "c_replay", FrameRateHz: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var checked uint64
	for _, f := range files {
		if err := replayFile(dst, f, 0, 1, toFrame, &checked); err != nil {
			return dst, checked, err
		}
	}
	return dst, checked, nil
}

func TestReplayMatchesRecordedDigests(t *testing.T) {
	dir := t.TempDir()
	src := record(t, dir, 0, lampSession(), nil)

	dst, checked, err := replayAll(t, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 6 {
		t.Fatalf("checked=%d want 6", checked)
	}
	if dst.Digest() != src.Digest() || dst.CurrentFrame() != src.CurrentFrame() {
		t.Fatalf("replayed state differs: frame %d vs %d", dst.CurrentFrame(), src.CurrentFrame())
	}
}

func TestReplayReportsDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 4, lampSession(), nil)

	_, checked, err := replayAll(t, dir, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at frame 4") {
		t.Fatalf("err=%v", err)
	}
	if checked != 4 {
		t.Fatalf("checked=%d want 4", checked)
	}
}

func TestReplayStopsAtToFrame(t *testing.T) {
	dir := t.TempDir()
	record(t, dir, 0, lampSession(), nil)

	dst, checked, err := replayAll(t, dir, 3)
	if err != errStop {
		t.Fatalf("err=%v want errStop", err)
	}
	if checked != 3 || dst.CurrentFrame() != 3 {
		t.Fatalf("checked=%d frame=%d", checked, dst.CurrentFrame())
	}
}

func lampDocument() document.CircuitV1 {
	return document.CircuitV1{
		Version: document.Version,
		Info:    document.InfoV1{Title: "lamp", Kind: "c"},
		Objects: []document.ObjectV1{
			{ID: 1, Kind: "switch", Pos: [2]int{5, 5}, Dim: [2]int{1, 1}},
			{ID: 2, Kind: "led", Pos: [2]int{9, 5}, Dim: [2]int{1, 1}},
		},
		Palette: []document.PairV1{{Inactive: "#c4c4be", Active: "#919186"}},
		Wires:   map[int][][2]int{0: {{7, 5}}},
	}
}

func TestReplayFollowsDocumentLoad(t *testing.T) {
	dir := t.TempDir()
	batches := [][]protocol.ActMsg{
		{{ID: "b1", Op: protocol.OpPlace, Kind: "probe", Pos: [2]int{30, 30}}},
		nil,
		{{ID: "b2", Op: protocol.OpMode, Mode: protocol.ModeRun}},
		{{ID: "b3", Op: protocol.OpInteract, Object: 1, Event: protocol.EventClick}},
		nil,
		nil,
	}
	src := record(t, dir, 0, batches, map[int]document.CircuitV1{1: lampDocument()})

	dst, checked, err := replayAll(t, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 6 {
		t.Fatalf("checked=%d want 6", checked)
	}
	if dst.Digest() != src.Digest() {
		t.Fatalf("replayed digest differs")
	}
	if o, ok := dst.Store().Object(1); !ok || string(o.Kind()) != "switch" {
		t.Fatalf("object 1 should be the loaded switch")
	}
}
