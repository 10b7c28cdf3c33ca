package circuit

import (
	"fmt"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
)

func (c *Circuit) requireMode(m Mode) error {
	if c.mode != m {
		return fmt.Errorf("%w: circuit is in %s mode", ErrMode, c.mode)
	}
	return nil
}

func (c *Circuit) object(id ids.ObjectID) (objects.Object, error) {
	o, ok := c.store.Object(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o, nil
}

// PlaceObject builds a new object of kind k at pos. The id is only consumed
// when the placement succeeds.
func (c *Circuit) PlaceObject(k objects.Kind, pos geom.CellPos) (ids.ObjectID, error) {
	return c.PlaceRotated(k, pos, 0)
}

// PlaceRotated is PlaceObject with the rotation applied before the overlap
// check, so a rotated footprint that does not fit places nothing.
func (c *Circuit) PlaceRotated(k objects.Kind, pos geom.CellPos, rot int) (ids.ObjectID, error) {
	if err := c.requireMode(ModeEdit); err != nil {
		return ids.None, err
	}
	id := c.ids.Peek()
	o, err := objects.New(k, id, pos)
	if err != nil {
		return ids.None, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if k == objects.KindClock && c.cfg.ClockPeriodTicks > 0 {
		if cfg, ok := o.(objects.Configurable); ok {
			_ = cfg.ApplySettings(objects.Settings{PeriodTicks: c.cfg.ClockPeriodTicks})
		}
	}
	if rot != 0 {
		o.SetRotation(rot)
	}
	if err := c.store.AddObject(o); err != nil {
		return ids.None, err
	}
	c.ids.Next()
	return id, nil
}

// MoveObject reports false when the target overlaps another object; the
// object then stays where it was.
func (c *Circuit) MoveObject(id ids.ObjectID, pos geom.CellPos) (bool, error) {
	if err := c.requireMode(ModeEdit); err != nil {
		return false, err
	}
	if _, err := c.object(id); err != nil {
		return false, err
	}
	return c.store.MoveObject(id, pos), nil
}

// DragObject moves the object so that it is centered on cursor.
func (c *Circuit) DragObject(id ids.ObjectID, cursor geom.CellPos) (bool, error) {
	o, err := c.object(id)
	if err != nil {
		return false, err
	}
	d := o.Dimensions()
	return c.MoveObject(id, cursor.SaturatingSub(d.Width/2, d.Height/2))
}

func (c *Circuit) RotateObject(id ids.ObjectID, rot int) (bool, error) {
	if err := c.requireMode(ModeEdit); err != nil {
		return false, err
	}
	if _, err := c.object(id); err != nil {
		return false, err
	}
	return c.store.RotateObject(id, rot), nil
}

func (c *Circuit) ConfigureObject(id ids.ObjectID, s objects.Settings) error {
	if err := c.requireMode(ModeEdit); err != nil {
		return err
	}
	o, err := c.object(id)
	if err != nil {
		return err
	}
	cfg, ok := o.(objects.Configurable)
	if !ok {
		return fmt.Errorf("%w: %s has no settings", ErrInvalid, o.Kind())
	}
	if err := cfg.ApplySettings(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.store.Stamp(id)
	return nil
}

func (c *Circuit) DeleteObject(id ids.ObjectID) error {
	if err := c.requireMode(ModeEdit); err != nil {
		return err
	}
	if !c.store.RemoveObject(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// PlaceWire paints wire cells of one palette entry. Cells holding anything
// other than wire are left alone. It returns how many cells were painted.
func (c *Circuit) PlaceWire(cells []geom.CellPos, pal int) (int, error) {
	if err := c.requireMode(ModeEdit); err != nil {
		return 0, err
	}
	if !c.cfg.Palette.Valid(pal) {
		return 0, fmt.Errorf("%w: palette index %d", ErrInvalid, pal)
	}
	n := 0
	for _, p := range cells {
		if px, ok := c.store.Pixel(p); ok && !px.IsWire() {
			continue
		}
		if err := c.store.InsertWire(p, pal); err != nil {
			return n, err
		}
		n++
	}
	if n == 0 && len(cells) > 0 {
		return 0, ErrOccupied
	}
	return n, nil
}

// EraseWire removes wire cells only and returns how many were removed.
func (c *Circuit) EraseWire(cells []geom.CellPos) (int, error) {
	if err := c.requireMode(ModeEdit); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range cells {
		if c.store.IsWire(p) {
			c.store.DeleteCell(p)
			n++
		}
	}
	return n, nil
}
