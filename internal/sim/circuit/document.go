package circuit

import (
	"fmt"
	"sort"
	"strconv"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/persistence/snapshot"
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/grid"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/propagate"
	"pixelcircuits.dev/internal/sim/signal"
)

// Export captures the placed objects, palette and wires. Runtime charge is
// not part of a document.
func (c *Circuit) Export() document.CircuitV1 {
	doc := document.CircuitV1{
		Version: document.Version,
		Info:    c.info,
		Objects: []document.ObjectV1{},
		Wires:   map[int][][2]int{},
	}
	for _, o := range c.store.Objects() {
		ov := document.ObjectV1{
			ID:   uint64(o.ID()),
			Kind: string(o.Kind()),
			Pos:  o.Position().ToArray(),
			Dim:  o.Dimensions().ToArray(),
			Rot:  o.Rotation(),
		}
		if cfg, ok := o.(objects.Configurable); ok {
			s := cfg.Settings()
			ov.Settings = &document.SettingsV1{DefaultOn: s.DefaultOn, PeriodTicks: s.PeriodTicks}
		}
		for _, n := range o.Nodes() {
			ov.Nodes = append(ov.Nodes, document.NodeV1{
				Pos:       n.Pos.ToArray(),
				Side:      n.Side.Side.String(),
				Slot:      n.Side.Slot,
				Direction: n.Direction.String(),
				Accepts:   n.Accepts.String(),
				Disabled:  n.Disabled,
				Label:     n.Label,
			})
		}
		doc.Objects = append(doc.Objects, ov)
	}
	for _, p := range c.store.Palette() {
		doc.Palette = append(doc.Palette, document.PairV1{Inactive: p.Inactive.Hex(), Active: p.Active.Hex()})
	}
	for pal, cells := range c.store.Wires() {
		for _, p := range cells {
			doc.Wires[pal] = append(doc.Wires[pal], p.ToArray())
		}
	}
	return doc
}

// Import replaces the circuit with doc. The document is fully built into a
// fresh store first; on any error the live circuit is left untouched.
func (c *Circuit) Import(doc document.CircuitV1) error {
	if doc.Version != document.Version {
		return fmt.Errorf("%w: %d", document.ErrVersion, doc.Version)
	}
	pal, err := importPalette(doc.Palette)
	if err != nil {
		return err
	}
	store := grid.NewStore(pal)
	alloc := ids.NewAllocator()

	for i, ov := range doc.Objects {
		o, err := importObject(ov)
		if err != nil {
			return fmt.Errorf("%w: objects[%d]: %v", document.ErrMalformed, i, err)
		}
		if err := store.AddObject(o); err != nil {
			return fmt.Errorf("%w: objects[%d]: %v", document.ErrMalformed, i, err)
		}
		alloc.Observe(o.ID())
	}

	nets := make([]int, 0, len(doc.Wires))
	for idx := range doc.Wires {
		nets = append(nets, idx)
	}
	sort.Ints(nets)
	wired := map[geom.CellPos]int{}
	for _, idx := range nets {
		for _, a := range doc.Wires[idx] {
			p, ok := geom.FromArray(a)
			if !ok {
				return fmt.Errorf("%w: wires[%d]: negative cell %v", document.ErrMalformed, idx, a)
			}
			if prev, dup := wired[p]; dup && prev != idx {
				return fmt.Errorf("%w: wires[%d]: cell %s already listed under wires[%d]", document.ErrMalformed, idx, p, prev)
			}
			wired[p] = idx
			if px, ok := store.Pixel(p); ok && !px.IsWire() {
				return fmt.Errorf("%w: wires[%d]: cell %s is occupied by %s", document.ErrMalformed, idx, p, px.Kind)
			}
			if err := store.InsertWire(p, idx); err != nil {
				return fmt.Errorf("%w: wires[%d]: %v", document.ErrMalformed, idx, err)
			}
		}
	}

	c.store = store
	c.engine = propagate.NewEngine(store)
	c.queue.Clear()
	c.ids = alloc
	c.cfg.Palette = pal
	c.info = doc.Info
	return nil
}

func importPalette(pairs []document.PairV1) (palette.Palette, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: empty palette", document.ErrMalformed)
	}
	out := make(palette.Palette, 0, len(pairs))
	for i, p := range pairs {
		off, err := palette.ParseHex(p.Inactive)
		if err != nil {
			return nil, fmt.Errorf("%w: palette[%d]: %v", document.ErrMalformed, i, err)
		}
		on, err := palette.ParseHex(p.Active)
		if err != nil {
			return nil, fmt.Errorf("%w: palette[%d]: %v", document.ErrMalformed, i, err)
		}
		out = append(out, palette.Pair{Inactive: off, Active: on})
	}
	return out, nil
}

func importObject(ov document.ObjectV1) (objects.Object, error) {
	pos, ok := geom.FromArray(ov.Pos)
	if !ok {
		return nil, fmt.Errorf("negative position %v", ov.Pos)
	}
	o, err := objects.New(objects.Kind(ov.Kind), ids.ObjectID(ov.ID), pos)
	if err != nil {
		return nil, err
	}
	// Stored dims are post-rotation.
	o.SetRotation(ov.Rot)
	o.SetDimensions(geom.Dims(ov.Dim[0], ov.Dim[1]))

	if ov.Settings != nil {
		cfg, ok := o.(objects.Configurable)
		if !ok {
			return nil, fmt.Errorf("%s has no settings", ov.Kind)
		}
		if err := cfg.ApplySettings(objects.Settings{DefaultOn: ov.Settings.DefaultOn, PeriodTicks: ov.Settings.PeriodTicks}); err != nil {
			return nil, err
		}
	}
	if err := checkNodes(o, ov.Nodes); err != nil {
		return nil, err
	}
	return o, nil
}

// checkNodes verifies stored node entries against the nodes the kind
// declares. An empty list is accepted.
func checkNodes(o objects.Object, stored []document.NodeV1) error {
	if len(stored) == 0 {
		return nil
	}
	have := map[string]objects.Node{}
	for _, n := range o.Nodes() {
		have[n.Side.Side.String()+"/"+strconv.Itoa(n.Side.Slot)] = n
	}
	for _, sn := range stored {
		n, ok := have[sn.Side+"/"+strconv.Itoa(sn.Slot)]
		if !ok {
			return fmt.Errorf("no %s node at %s%d", o.Kind(), sn.Side, sn.Slot)
		}
		dir, ok := objects.ParseDirection(sn.Direction)
		if !ok || dir != n.Direction {
			return fmt.Errorf("node %s%d direction %q does not match %s", sn.Side, sn.Slot, sn.Direction, n.Direction)
		}
		if k, ok := signal.ParseKind(sn.Accepts); !ok || k != n.Accepts {
			return fmt.Errorf("node %s%d accepts %q does not match %s", sn.Side, sn.Slot, sn.Accepts, n.Accepts)
		}
	}
	return nil
}

// ExportSnapshot captures a resumable copy for the snapshot sink.
func (c *Circuit) ExportSnapshot() snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			CircuitID: c.cfg.ID,
			Frame:     c.frame.Load(),
		},
		Mode:         c.mode.String(),
		FrameRateHz:  c.cfg.FrameRateHz,
		NextObjectID: uint64(c.ids.Peek()),
		Document:     c.Export(),
	}
}

// ImportSnapshot restores the document, frame counter and id allocator.
// The circuit resumes discharged in the recorded mode.
func (c *Circuit) ImportSnapshot(s snapshot.SnapshotV1) error {
	if err := c.Import(s.Document); err != nil {
		return err
	}
	if s.NextObjectID > 0 {
		c.ids.Observe(ids.ObjectID(s.NextObjectID - 1))
	}
	c.frame.Store(s.Header.Frame)
	if m, ok := ParseMode(s.Mode); ok {
		c.mode = m
	}
	return nil
}
