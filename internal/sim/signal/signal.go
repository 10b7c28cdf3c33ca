package signal

import (
	"fmt"
	"strings"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
)

// Kind classifies the values a node produces or accepts.
type Kind uint8

const (
	Gpio Kind = iota
	Current
	GpioOrCurrent
)

var kindNames = [...]string{"gpio", "current", "gpio_or_current"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Accepts reports whether a node of kind k can take a value of kind v.
// GpioOrCurrent is compatible with both concrete kinds; Gpio and Current
// are never compatible with each other. The relation is not transitive.
func (k Kind) Accepts(v Kind) bool {
	if k == GpioOrCurrent || v == GpioOrCurrent {
		return true
	}
	return k == v
}

// Value is what travels along wires and between nodes.
type Value struct {
	Kind   Kind
	Active bool
}

func GpioValue(active bool) Value { return Value{Kind: Gpio, Active: active} }

func (v Value) IsActive() bool { return v.Active }

// Unset keeps the kind and drops the charge.
func (v Value) Unset() Value {
	v.Active = false
	return v
}

func (v Value) String() string {
	if v.Active {
		return v.Kind.String() + ":on"
	}
	return v.Kind.String() + ":off"
}

// MessageKind selects the Message variant.
type MessageKind uint8

const (
	FromNode MessageKind = iota + 1
	WireRelay
)

func (k MessageKind) String() string {
	switch k {
	case FromNode:
		return "from_node"
	case WireRelay:
		return "wire_relay"
	default:
		return "unknown"
	}
}

// Message is one pending propagation step.
//
// FromNode: Object emitted Value from its node Node located at Cell.
// WireRelay: the wire at Cell was charged from Side and must fan out away
// from it.
type Message struct {
	Kind   MessageKind
	Object ids.ObjectID
	Cell   geom.CellPos
	Node   geom.NodeSide
	Side   geom.Side
	Value  Value
}

func NodeMessage(obj ids.ObjectID, cell geom.CellPos, node geom.NodeSide, v Value) Message {
	return Message{Kind: FromNode, Object: obj, Cell: cell, Node: node, Value: v}
}

func RelayMessage(incoming geom.Side, cell geom.CellPos) Message {
	return Message{Kind: WireRelay, Side: incoming, Cell: cell}
}

// Key identifies the destination of a message for de-duplication.
type Key struct {
	Kind MessageKind
	Cell geom.CellPos
}

func (m Message) Key() Key { return Key{Kind: m.Kind, Cell: m.Cell} }

func (m Message) String() string {
	switch m.Kind {
	case FromNode:
		return fmt.Sprintf("from_node(%s %s %s %s)", m.Object, m.Cell, m.Node, m.Value)
	case WireRelay:
		return fmt.Sprintf("wire_relay(%s %s)", m.Side, m.Cell)
	default:
		return "message(?)"
	}
}
