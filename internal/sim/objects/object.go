package objects

import (
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

// Event is an interaction or the shared per-frame tick delivered to a
// tickable object.
type Event uint8

const (
	Hover Event = iota + 1
	Click
	Press
	Release
	GlobalTick
)

func (e Event) String() string {
	switch e {
	case Hover:
		return "hover"
	case Click:
		return "click"
	case Press:
		return "press"
	case Release:
		return "release"
	case GlobalTick:
		return "global_tick"
	default:
		return "unknown"
	}
}

type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "input":
		return Input, true
	case "output":
		return Output, true
	default:
		return 0, false
	}
}

// Node is a connection point owned by exactly one object. Pos is derived
// from the owner's position and dimensions; Disabled is set whenever that
// derived cell would be off-grid.
type Node struct {
	Side      geom.NodeSide
	Direction Direction
	Accepts   signal.Kind
	Label     string

	Pos      geom.CellPos
	Disabled bool
}

// Object is a placed component. Implementations embed *Base for geometry
// and override the behavior hooks they need.
type Object interface {
	ID() ids.ObjectID
	Kind() Kind

	Position() geom.CellPos
	SetPosition(geom.CellPos)
	Dimensions() geom.Dimensions
	SetDimensions(geom.Dimensions)
	Rotation() int
	SetRotation(int)

	Nodes() []Node
	NodeAt(pos geom.CellPos) (Node, bool)
	BodyCells() []geom.CellPos
	FootprintCells() []geom.CellPos
	ContainsCell(pos geom.CellPos) bool

	// OnReceive reacts to value arriving on one of the object's input nodes.
	OnReceive(side geom.NodeSide, v signal.Value) []signal.Message
	Tickable() bool
	Tick(ev Event) []signal.Message
	CurrentValue() signal.Value
	Reset()

	BodyColor() palette.RGB
}

// Settings are the persisted, kind-specific knobs of an object.
type Settings struct {
	DefaultOn   *bool `json:"default_on,omitempty"`
	PeriodTicks int   `json:"period_ticks,omitempty"`
}

// Configurable is implemented by kinds that carry Settings.
type Configurable interface {
	Settings() Settings
	ApplySettings(Settings) error
}

// StampKind is the kind of grid pixel an object contributes.
type StampKind uint8

const (
	StampBody StampKind = iota + 1
	StampNode
)

// Stamp is one cell of an object's visual footprint.
type Stamp struct {
	Pos       geom.CellPos
	Kind      StampKind
	Color     palette.RGB
	Side      geom.NodeSide
	Direction Direction
}

// Stamps returns the pixels o paints into the grid: every body cell followed
// by every enabled node.
func Stamps(o Object) []Stamp {
	body := o.BodyCells()
	nodes := o.Nodes()
	out := make([]Stamp, 0, len(body)+len(nodes))
	color := o.BodyColor()
	for _, p := range body {
		out = append(out, Stamp{Pos: p, Kind: StampBody, Color: color})
	}
	for _, n := range nodes {
		if n.Disabled {
			continue
		}
		out = append(out, Stamp{Pos: n.Pos, Kind: StampNode, Color: palette.NodeColor, Side: n.Side, Direction: n.Direction})
	}
	return out
}

// Overlaps reports whether the footprints of a and b share any cell.
func Overlaps(a, b Object) bool {
	for _, p := range a.FootprintCells() {
		if b.ContainsCell(p) {
			return true
		}
	}
	return false
}
