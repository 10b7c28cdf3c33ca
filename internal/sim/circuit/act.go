package circuit

import (
	"errors"
	"fmt"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/grid"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
)

var interactEvents = map[string]objects.Event{
	protocol.EventHover:   objects.Hover,
	protocol.EventClick:   objects.Click,
	protocol.EventPress:   objects.Press,
	protocol.EventRelease: objects.Release,
}

// Apply executes one ACT and reports the outcome.
func (c *Circuit) Apply(act protocol.ActMsg) protocol.AckMsg {
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          act.ID,
	}
	id, err := c.apply(act)
	ack.Frame = c.frame.Load()
	if err != nil {
		ack.Code = ErrorCode(err)
		ack.Message = err.Error()
		return ack
	}
	ack.Accepted = true
	ack.ObjectID = uint64(id)
	return ack
}

func (c *Circuit) apply(act protocol.ActMsg) (ids.ObjectID, error) {
	pos, posOK := geom.FromArray(act.Pos)
	obj := ids.ObjectID(act.Object)

	moved := func(ok bool, err error) (ids.ObjectID, error) {
		if err != nil {
			return ids.None, err
		}
		if !ok {
			return ids.None, grid.ErrOverlap
		}
		return obj, nil
	}

	switch act.Op {
	case protocol.OpPlace:
		if !posOK {
			return ids.None, fmt.Errorf("%w: bad position %v", ErrInvalid, act.Pos)
		}
		return c.PlaceRotated(objects.Kind(act.Kind), pos, act.Rot)
	case protocol.OpMove:
		if !posOK {
			return ids.None, fmt.Errorf("%w: bad position %v", ErrInvalid, act.Pos)
		}
		return moved(c.MoveObject(obj, pos))
	case protocol.OpDrag:
		if !posOK {
			return ids.None, fmt.Errorf("%w: bad position %v", ErrInvalid, act.Pos)
		}
		return moved(c.DragObject(obj, pos))
	case protocol.OpRotate:
		return moved(c.RotateObject(obj, act.Rot))
	case protocol.OpDelete:
		return obj, c.DeleteObject(obj)
	case protocol.OpWire:
		cells, err := cellList(act.Cells)
		if err != nil {
			return ids.None, err
		}
		_, err = c.PlaceWire(cells, act.Palette)
		return ids.None, err
	case protocol.OpErase:
		cells, err := cellList(act.Cells)
		if err != nil {
			return ids.None, err
		}
		_, err = c.EraseWire(cells)
		return ids.None, err
	case protocol.OpInteract:
		ev, ok := interactEvents[act.Event]
		if !ok {
			return ids.None, fmt.Errorf("%w: unknown event %q", ErrInvalid, act.Event)
		}
		return obj, c.Interact(obj, ev)
	case protocol.OpMode:
		m, ok := ParseMode(act.Mode)
		if !ok {
			return ids.None, fmt.Errorf("%w: unknown mode %q", ErrInvalid, act.Mode)
		}
		c.SetMode(m)
		return ids.None, nil
	case protocol.OpReset:
		c.Reset()
		return ids.None, nil
	case protocol.OpSettle:
		if err := c.requireMode(ModeRun); err != nil {
			return ids.None, err
		}
		passes := act.Passes
		if passes <= 0 {
			passes = c.cfg.SettleMaxPasses
		}
		c.Settle(passes)
		return ids.None, nil
	default:
		return ids.None, fmt.Errorf("%w: unknown op %q", ErrInvalid, act.Op)
	}
}

func cellList(in [][2]int) ([]geom.CellPos, error) {
	out := make([]geom.CellPos, 0, len(in))
	for _, a := range in {
		p, ok := geom.FromArray(a)
		if !ok {
			return nil, fmt.Errorf("%w: bad cell %v", ErrInvalid, a)
		}
		out = append(out, p)
	}
	return out, nil
}

// ErrorCode maps circuit errors onto protocol error codes.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMode):
		return protocol.ErrMode
	case errors.Is(err, ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, grid.ErrOverlap), errors.Is(err, grid.ErrDuplicateObject):
		return protocol.ErrConflict
	case errors.Is(err, ErrOccupied):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrInvalid), errors.Is(err, grid.ErrPaletteIndex),
		errors.Is(err, document.ErrMalformed), errors.Is(err, document.ErrVersion):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}
