package grid

import (
	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
	"pixelcircuits.dev/internal/sim/objects"
	"pixelcircuits.dev/internal/sim/palette"
	"pixelcircuits.dev/internal/sim/signal"
)

type PixelKind uint8

const (
	PixelWire PixelKind = iota + 1
	PixelNode
	PixelBody
	PixelDecor
)

func (k PixelKind) String() string {
	switch k {
	case PixelWire:
		return "wire"
	case PixelNode:
		return "node"
	case PixelBody:
		return "body"
	case PixelDecor:
		return "decor"
	default:
		return "empty"
	}
}

// Display is the per-cell connectivity mask read by renderers.
type Display uint8

const (
	ConnRight  Display = 1 << 0
	ConnLeft   Display = 1 << 1
	ConnBottom Display = 1 << 2
	ConnTop    Display = 1 << 3
)

func DisplayBit(s geom.Side) Display {
	switch s {
	case geom.Top:
		return ConnTop
	case geom.Bottom:
		return ConnBottom
	case geom.Left:
		return ConnLeft
	default:
		return ConnRight
	}
}

func (d Display) Has(s geom.Side) bool { return d&DisplayBit(s) != 0 }

// Pixel is the content of one grid cell. Which fields are meaningful
// depends on Kind.
type Pixel struct {
	Kind    PixelKind
	Display Display

	// Wire.
	Palette int
	Value   signal.Value

	// Node and Body: owning object (a handle, not ownership).
	Owner     ids.ObjectID
	Side      geom.NodeSide
	Direction objects.Direction

	// Body and Decor.
	Color palette.RGB
}

func (p Pixel) IsWire() bool { return p.Kind == PixelWire }
func (p Pixel) IsNode() bool { return p.Kind == PixelNode }

// Cell is a read-only view of one occupied cell.
type Cell struct {
	Pos   geom.CellPos
	Pixel Pixel
}
