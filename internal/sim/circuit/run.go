package circuit

import (
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/propagate"
)

type FrameResult struct {
	Frame   uint64
	Drain   propagate.DrainStats
	Pending int
}

// Interact delivers a pointer event to a placed object. A Release is
// followed by a synthesized Click.
func (c *Circuit) Interact(id ids.ObjectID, ev objects.Event) error {
	if err := c.requireMode(ModeRun); err != nil {
		return err
	}
	o, err := c.object(id)
	if err != nil {
		return err
	}
	msgs := o.Tick(ev)
	if ev == objects.Release {
		msgs = append(msgs, o.Tick(objects.Click)...)
	}
	c.queue.Enqueue(msgs...)
	c.store.Stamp(id)
	return nil
}

// Frame advances the simulation by one frame: in run mode every tickable
// object gets a GlobalTick, then the queue is drained exactly once.
func (c *Circuit) Frame() FrameResult {
	f := c.frame.Add(1)
	if c.mode != ModeRun {
		return FrameResult{Frame: f, Pending: c.queue.Len()}
	}
	for _, o := range c.store.Objects() {
		if !o.Tickable() {
			continue
		}
		c.queue.Enqueue(o.Tick(objects.GlobalTick)...)
		c.store.Stamp(o.ID())
	}
	st := c.queue.DrainOnePass(c.engine)
	c.lastDrain = st
	return FrameResult{Frame: f, Drain: st, Pending: c.queue.Len()}
}

// Settle drains the queue until it is empty or maxPasses passes ran. It
// does not run the global sweep, so it reports the state the pending
// messages resolve to. settled is false when the limit was hit.
func (c *Circuit) Settle(maxPasses int) (passes int, settled bool) {
	for c.queue.Len() > 0 && passes < maxPasses {
		c.lastDrain = c.queue.DrainOnePass(c.engine)
		passes++
	}
	return passes, c.queue.Len() == 0
}

// SetMode switches between edit and run. Any switch discharges the circuit.
func (c *Circuit) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.mode = m
	c.Reset()
}

// Reset drops pending messages and returns every wire and object to its
// resting state.
func (c *Circuit) Reset() {
	c.queue.Clear()
	c.store.ResetAll()
}

func (c *Circuit) Pending() int { return c.queue.Len() }
