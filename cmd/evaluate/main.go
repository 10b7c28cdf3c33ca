package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pixelcircuits.dev/internal/persistence/document"
	persistlog "pixelcircuits.dev/internal/persistence/log"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/sim/circuit"
)

var errStop = errors.New("stop")

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		docPath   = flag.String("doc", "", "circuit document to start from at frame 0 (instead of -snapshot)")
		framesDir = flag.String("frames", "", "dir containing frames-*.jsonl.zst (optional)")
		fromFrame = flag.Uint64("from_frame", 0, "start verifying from frame (inclusive, optional)")
		toFrame   = flag.Uint64("to_frame", 0, "stop at frame (inclusive, optional)")
		run       = flag.Int("run", 0, "without -frames: switch to run mode and step this many frames")
		settle    = flag.Bool("settle", false, "settle pending messages before printing")
		maxPasses = flag.Int("settle_passes", 256, "settle pass limit")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[evaluate] ", log.LstdFlags|log.Lmicroseconds)

	c, err := load(*snapPath, *docPath)
	if err != nil {
		logger.Fatalf("load: %v", err)
	}

	if *framesDir == "" {
		if *run > 0 {
			c.SetMode(circuit.ModeRun)
			for i := 0; i < *run; i++ {
				c.Frame()
			}
		}
		if *settle {
			passes, ok := c.Settle(*maxPasses)
			fmt.Printf("settle passes=%d settled=%v\n", passes, ok)
		}
		printObjects(c)
		return
	}

	startFrame := c.CurrentFrame()
	verifyFrom := *fromFrame
	if verifyFrom == 0 {
		verifyFrom = startFrame + 1
	}
	if c.Mode() == circuit.ModeRun {
		logger.Printf("run-mode snapshots resume discharged; digests may differ until the circuit settles")
	}

	files, err := listFrameFiles(*framesDir)
	if err != nil {
		logger.Fatalf("list frames: %v", err)
	}
	if len(files) == 0 {
		logger.Fatalf("no frame files found in %s", *framesDir)
	}

	var checked uint64
	for _, path := range files {
		err := replayFile(c, path, startFrame, verifyFrom, *toFrame, &checked)
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			logger.Fatalf("replay: %v", err)
		}
	}
	fmt.Printf("replay ok: checked=%d frames (from frame=%d) digest=%s\n", checked, startFrame, c.Digest())
}

func load(snapPath, docPath string) (*circuit.Circuit, error) {
	switch {
	case snapPath != "":
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		c, err := circuit.New(circuit.Config{ID: snap.Header.CircuitID, FrameRateHz: snap.FrameRateHz})
		if err != nil {
			return nil, err
		}
		if err := c.ImportSnapshot(snap); err != nil {
			return nil, fmt.Errorf("import snapshot: %w", err)
		}
		fmt.Printf("snapshot v%d circuit=%s frame=%d mode=%s objects=%d\n",
			snap.Header.Version, snap.Header.CircuitID, snap.Header.Frame, snap.Mode, len(snap.Document.Objects))
		return c, nil
	case docPath != "":
		raw, err := os.ReadFile(docPath)
		if err != nil {
			return nil, err
		}
		doc, err := document.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		c, err := circuit.New(circuit.Config{FrameRateHz: 10})
		if err != nil {
			return nil, err
		}
		if err := c.Import(doc); err != nil {
			return nil, fmt.Errorf("import document: %w", err)
		}
		fmt.Printf("document %q objects=%d nets=%d\n", doc.Info.Title, len(doc.Objects), len(doc.Wires))
		return c, nil
	default:
		return nil, errors.New("missing -snapshot or -doc")
	}
}

func listFrameFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "frames-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// replayFile applies each logged frame's acts, steps once and compares the
// resulting digest with the logged one.
func replayFile(c *circuit.Circuit, path string, startFrame, verifyFrom, toFrame uint64, checked *uint64) error {
	entries, err := persistlog.ReadFrames(path)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for _, entry := range entries {
		if entry.Frame <= startFrame {
			continue
		}
		if toFrame != 0 && entry.Frame > toFrame {
			return errStop
		}
		if want := c.CurrentFrame() + 1; entry.Frame != want {
			return fmt.Errorf("frame gap: want=%d got=%d (file=%s)", want, entry.Frame, filepath.Base(path))
		}
		for _, ra := range entry.Acts {
			if ok := c.Replay(ra); ok != ra.Accepted {
				return fmt.Errorf("frame %d act %s %s: accepted=%v, logged %v", entry.Frame, ra.Act.Op, ra.Act.ID, ok, ra.Accepted)
			}
		}
		res := c.Frame()
		if res.Frame < verifyFrom {
			continue
		}
		*checked++
		if got := c.Digest(); got != entry.Digest {
			return fmt.Errorf("digest mismatch at frame %d: got=%s want=%s", res.Frame, got, entry.Digest)
		}
	}
	return nil
}

func printObjects(c *circuit.Circuit) {
	fmt.Printf("frame=%d mode=%s pending=%d digest=%s\n", c.CurrentFrame(), c.Mode(), c.Pending(), c.Digest())
	for _, o := range c.Store().Objects() {
		v := o.CurrentValue()
		fmt.Printf("  #%d %-8s at %s value=%v active=%v\n", o.ID(), o.Kind(), o.Position(), v.Kind, v.Active)
	}
}
