package objects

import (
	"fmt"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

func init() {
	Register(Spec{
		Kind:  KindButton,
		Label: "Button",
		Dims:  geom.Dims(1, 1),
		Nodes: []NodeSpec{
			Out(geom.Right, 0, signal.Gpio),
			Out(geom.Left, 0, signal.Gpio),
			Out(geom.Top, 0, signal.Gpio),
			Out(geom.Bottom, 0, signal.Gpio),
		},
		Build: func(b *Base) Object { return &Button{Base: b} },
	})
	Register(Spec{
		Kind:  KindSwitch,
		Label: "Switch",
		Dims:  geom.Dims(1, 1),
		Nodes: []NodeSpec{
			Out(geom.Left, 0, signal.Gpio),
			Out(geom.Right, 0, signal.Gpio),
		},
		Build: func(b *Base) Object { return &Switch{Base: b} },
	})
	Register(Spec{
		Kind:  KindLED,
		Label: "LED",
		Dims:  geom.Dims(1, 1),
		Nodes: []NodeSpec{
			In(geom.Left, 0, signal.GpioOrCurrent),
			Out(geom.Right, 0, signal.GpioOrCurrent),
		},
		Build: func(b *Base) Object { return &LED{Base: b, last: signal.GpioValue(false)} },
	})
	Register(Spec{
		Kind:  KindProbe,
		Label: "Probe",
		Dims:  geom.Dims(3, 3),
		Nodes: []NodeSpec{
			In(geom.Left, 1, signal.Gpio),
			Out(geom.Right, 1, signal.Gpio),
		},
		Build: func(b *Base) Object { return &Probe{Base: b, last: signal.GpioValue(false)} },
	})
}

// Button emits a one-shot active pulse from every output when clicked.
type Button struct {
	*Base
}

func (o *Button) Tickable() bool { return true }

func (o *Button) Tick(ev Event) []signal.Message {
	if ev != Click {
		return nil
	}
	return o.emit(signal.GpioValue(true))
}

// Switch toggles on click and re-drives its outputs on every global tick
// while on.
type Switch struct {
	*Base
	on        bool
	defaultOn bool
}

func (o *Switch) Tickable() bool { return true }

func (o *Switch) Tick(ev Event) []signal.Message {
	switch ev {
	case Click:
		o.on = !o.on
	case GlobalTick:
		if o.on {
			return o.emit(signal.GpioValue(true))
		}
	}
	return nil
}

func (o *Switch) CurrentValue() signal.Value { return signal.GpioValue(o.on) }
func (o *Switch) Reset()                     { o.on = o.defaultOn }

func (o *Switch) BodyColor() palette.RGB {
	if o.on {
		return palette.SwitchOn
	}
	return palette.SwitchOff
}

func (o *Switch) Settings() Settings {
	on := o.defaultOn
	return Settings{DefaultOn: &on}
}

func (o *Switch) ApplySettings(s Settings) error {
	if s.PeriodTicks != 0 {
		return fmt.Errorf("switch has no period")
	}
	if s.DefaultOn != nil {
		o.defaultOn = *s.DefaultOn
		o.on = o.defaultOn
	}
	return nil
}

// LED lights while driven, relays what it receives, and goes dark on the
// next global tick unless driven again.
type LED struct {
	*Base
	last signal.Value
}

func (o *LED) Tickable() bool { return true }

func (o *LED) OnReceive(_ geom.NodeSide, v signal.Value) []signal.Message {
	o.last = v
	return o.emit(o.CurrentValue())
}

func (o *LED) Tick(ev Event) []signal.Message {
	if ev == GlobalTick {
		o.last = o.last.Unset()
	}
	return nil
}

func (o *LED) CurrentValue() signal.Value { return o.last }
func (o *LED) Reset()                     { o.last = signal.GpioValue(false) }

func (o *LED) BodyColor() palette.RGB {
	if o.last.Active {
		return palette.LedLit
	}
	return palette.LedDark
}

// Probe records the last value it received and passes it through unchanged.
type Probe struct {
	*Base
	last signal.Value
}

func (o *Probe) OnReceive(_ geom.NodeSide, v signal.Value) []signal.Message {
	o.last = v
	return o.emit(v)
}

func (o *Probe) CurrentValue() signal.Value { return o.last }
func (o *Probe) Reset()                     { o.last = signal.GpioValue(false) }
