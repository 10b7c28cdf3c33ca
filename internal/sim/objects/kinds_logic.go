package objects

import (
	"fmt"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

const DefaultClockPeriod = 2

func init() {
	Register(Spec{
		Kind:  KindClock,
		Label: "Clock",
		Dims:  geom.Dims(1, 1),
		Nodes: []NodeSpec{
			Out(geom.Left, 0, signal.Gpio),
			Out(geom.Right, 0, signal.Gpio),
		},
		Build: func(b *Base) Object { return &Clock{Base: b, period: DefaultClockPeriod} },
	})

	twoIn := []NodeSpec{
		In(geom.Left, 0, signal.Gpio),
		In(geom.Left, 2, signal.Gpio),
		Out(geom.Right, 1, signal.Gpio),
	}
	gate := func(kind Kind, label string, eval func(a, b bool) bool) {
		Register(Spec{
			Kind:  kind,
			Label: label,
			Dims:  geom.Dims(3, 3),
			Nodes: twoIn,
			Build: func(b *Base) Object { return &Gate{Base: b, eval: eval} },
		})
	}
	gate(KindAnd, "AND gate", func(a, b bool) bool { return a && b })
	gate(KindOr, "OR gate", func(a, b bool) bool { return a || b })
	gate(KindXor, "XOR gate", func(a, b bool) bool { return a != b })

	Register(Spec{
		Kind:  KindNot,
		Label: "NOT gate",
		Dims:  geom.Dims(3, 3),
		Nodes: []NodeSpec{
			In(geom.Left, 1, signal.Gpio),
			Out(geom.Right, 1, signal.Gpio),
		},
		Build: func(b *Base) Object {
			return &Gate{Base: b, eval: func(a, _ bool) bool { return !a }}
		},
	})
}

// Clock flips its level every period global ticks and drives its outputs
// while high.
type Clock struct {
	*Base
	period int
	count  int
	high   bool
}

func (o *Clock) Tickable() bool { return true }

func (o *Clock) Tick(ev Event) []signal.Message {
	if ev != GlobalTick {
		return nil
	}
	o.count++
	if o.count >= o.period {
		o.count = 0
		o.high = !o.high
	}
	if o.high {
		return o.emit(signal.GpioValue(true))
	}
	return nil
}

func (o *Clock) CurrentValue() signal.Value { return signal.GpioValue(o.high) }

func (o *Clock) Reset() {
	o.count = 0
	o.high = false
}

func (o *Clock) BodyColor() palette.RGB {
	if o.high {
		return palette.ClockHigh
	}
	return palette.ClockLow
}

func (o *Clock) Settings() Settings { return Settings{PeriodTicks: o.period} }

func (o *Clock) ApplySettings(s Settings) error {
	if s.DefaultOn != nil {
		return fmt.Errorf("clock has no default state")
	}
	if s.PeriodTicks < 0 {
		return fmt.Errorf("clock period must be positive, got %d", s.PeriodTicks)
	}
	if s.PeriodTicks > 0 {
		o.period = s.PeriodTicks
	}
	return nil
}

// Gate latches what its inputs receive during a drain and evaluates on the
// next global tick. Input order follows the declared node order.
type Gate struct {
	*Base
	eval func(a, b bool) bool

	latched [2]bool
	out     bool
}

func (o *Gate) Tickable() bool { return true }

func (o *Gate) inputIndex(side geom.NodeSide) int {
	i := 0
	for _, n := range o.Base.nodes {
		if n.Direction != Input {
			continue
		}
		if n.Side == side {
			return i
		}
		i++
	}
	return -1
}

func (o *Gate) OnReceive(side geom.NodeSide, v signal.Value) []signal.Message {
	if i := o.inputIndex(side); i >= 0 && i < len(o.latched) && v.Active {
		o.latched[i] = true
	}
	return nil
}

func (o *Gate) Tick(ev Event) []signal.Message {
	if ev != GlobalTick {
		return nil
	}
	o.out = o.eval(o.latched[0], o.latched[1])
	o.latched = [2]bool{}
	if o.out {
		return o.emit(signal.GpioValue(true))
	}
	return nil
}

func (o *Gate) CurrentValue() signal.Value { return signal.GpioValue(o.out) }

func (o *Gate) Reset() {
	o.latched = [2]bool{}
	o.out = false
}

func (o *Gate) BodyColor() palette.RGB {
	if o.out {
		return palette.GateHigh
	}
	return palette.ObjectColor
}
