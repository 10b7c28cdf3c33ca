package protocol

// FRAME (server -> client), sent after every simulation frame.
type FrameMsg struct {
	Type            string `json:"type" msgpack:"type"`
	ProtocolVersion string `json:"protocol_version" msgpack:"protocol_version"`
	Frame           uint64 `json:"frame" msgpack:"frame"`
	Mode            string `json:"mode" msgpack:"mode"`

	Bounds   RectRef `json:"bounds" msgpack:"bounds"`
	Encoding string  `json:"encoding" msgpack:"encoding"` // "RLE"
	Cells    string  `json:"cells_rle" msgpack:"cells_rle"`

	Objects []ObjectRef `json:"objects" msgpack:"objects"`
	Pending int         `json:"pending" msgpack:"pending"`
	Digest  string      `json:"digest" msgpack:"digest"`
}

type RectRef struct {
	Min [2]int `json:"min" msgpack:"min"`
	W   int    `json:"w" msgpack:"w"`
	H   int    `json:"h" msgpack:"h"`
}

type ObjectRef struct {
	ID     uint64 `json:"id" msgpack:"id"`
	Kind   string `json:"kind" msgpack:"kind"`
	Pos    [2]int `json:"pos" msgpack:"pos"`
	Dim    [2]int `json:"dim" msgpack:"dim"`
	Rot    int    `json:"rot,omitempty" msgpack:"rot,omitempty"`
	Active bool   `json:"active" msgpack:"active"`
	Color  string `json:"color" msgpack:"color"`
}

// ACT (client -> server): one edit or interaction.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	Object  uint64   `json:"object,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Pos     [2]int   `json:"pos,omitempty"`
	Rot     int      `json:"rot,omitempty"`
	Palette int      `json:"palette,omitempty"`
	Cells   [][2]int `json:"cells,omitempty"`
	Event   string   `json:"event,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Passes  int      `json:"passes,omitempty"`
}

// ACT ops.
const (
	OpPlace    = "PLACE"
	OpMove     = "MOVE"
	OpDrag     = "DRAG"
	OpRotate   = "ROTATE"
	OpDelete   = "DELETE"
	OpWire     = "WIRE"
	OpErase    = "ERASE"
	OpInteract = "INTERACT"
	OpMode     = "MODE"
	OpReset    = "RESET"
	OpSettle   = "SETTLE"
)

// Interaction events carried by INTERACT.
const (
	EventHover   = "HOVER"
	EventClick   = "CLICK"
	EventPress   = "PRESS"
	EventRelease = "RELEASE"
)

// Modes carried by MODE and reported in FRAME/WELCOME.
const (
	ModeEdit = "EDIT"
	ModeRun  = "RUN"
)
