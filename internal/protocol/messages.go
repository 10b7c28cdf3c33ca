package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	// Msgpack asks for FRAME messages as binary msgpack instead of JSON text.
	Msgpack  bool `json:"msgpack,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	CircuitID       string        `json:"circuit_id"`
	Params          CircuitParams `json:"params"`
	Palette         []PairRef     `json:"palette"`
	Kinds           []KindRef     `json:"kinds"`
}

type CircuitParams struct {
	FrameRateHz int    `json:"frame_rate_hz"`
	Mode        string `json:"mode"`
	Frame       uint64 `json:"frame"`
}

type PairRef struct {
	Inactive string `json:"inactive"`
	Active   string `json:"active"`
}

type KindRef struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Dim   [2]int `json:"dim"`
}

// ACK (server -> client) answers one ACT.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Frame           uint64 `json:"frame"`
	ObjectID        uint64 `json:"object_id,omitempty"`
}
