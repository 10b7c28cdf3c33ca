package circuit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/encoding"
	"pixelcircuits.dev/internal/sim/objects"
)

// FrameMsg renders the current grid for clients.
func (c *Circuit) FrameMsg() protocol.FrameMsg {
	b := c.store.Bounds()
	msg := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Frame:           c.frame.Load(),
		Mode:            c.mode.String(),
		Bounds:          protocol.RectRef{Min: b.Min.ToArray(), W: b.W, H: b.H},
		Encoding:        "RLE",
		Cells:           encoding.EncodeCells(c.store.Codes(b)),
		Objects:         []protocol.ObjectRef{},
		Pending:         c.queue.Len(),
		Digest:          c.Digest(),
	}
	for _, o := range c.store.Objects() {
		msg.Objects = append(msg.Objects, protocol.ObjectRef{
			ID:     uint64(o.ID()),
			Kind:   string(o.Kind()),
			Pos:    o.Position().ToArray(),
			Dim:    o.Dimensions().ToArray(),
			Rot:    o.Rotation(),
			Active: o.CurrentValue().Active,
			Color:  o.BodyColor().Hex(),
		})
	}
	return msg
}

func (c *Circuit) Welcome(sessionID string) protocol.WelcomeMsg {
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		CircuitID:       c.cfg.ID,
		Params: protocol.CircuitParams{
			FrameRateHz: c.cfg.FrameRateHz,
			Mode:        c.mode.String(),
			Frame:       c.frame.Load(),
		},
	}
	for _, p := range c.store.Palette() {
		w.Palette = append(w.Palette, protocol.PairRef{Inactive: p.Inactive.Hex(), Active: p.Active.Hex()})
	}
	for _, s := range objects.Kinds() {
		w.Kinds = append(w.Kinds, protocol.KindRef{Kind: string(s.Kind), Label: s.Label, Dim: s.Dims.ToArray()})
	}
	return w
}

// Digest hashes every occupied cell and every object's visible state.
// Identical circuits in identical states digest identically.
func (c *Circuit) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}

	put(uint64(c.mode))
	for _, cell := range c.store.Cells() {
		put(uint64(cell.Pos.X))
		put(uint64(cell.Pos.Y))
		put(uint64(cell.Pixel.Code()))
		put(uint64(cell.Pixel.Owner))
	}
	for _, o := range c.store.Objects() {
		put(uint64(o.ID()))
		h.Write([]byte(o.Kind()))
		put(uint64(o.Position().X))
		put(uint64(o.Position().Y))
		put(uint64(o.Rotation()))
		v := o.CurrentValue()
		put(uint64(v.Kind))
		if v.Active {
			put(1)
		} else {
			put(0)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func encodeFrame(msg protocol.FrameMsg, withMsgpack bool) (jsonB, packB []byte, err error) {
	jsonB, err = json.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	if withMsgpack {
		packB, err = msgpack.Marshal(&msg)
		if err != nil {
			return nil, nil, err
		}
	}
	return jsonB, packB, nil
}
