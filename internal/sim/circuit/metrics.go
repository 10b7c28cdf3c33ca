package circuit

import (
	"time"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/protocol"
)

type FrameLogger interface {
	WriteFrame(entry FrameLogEntry) error
}

type FrameLogEntry struct {
	Frame    uint64        `json:"frame"`
	Mode     string        `json:"mode"`
	Acts     []RecordedAct `json:"acts,omitempty"`
	Advanced int           `json:"advanced"`
	Emitted  int           `json:"emitted"`
	Dropped  int           `json:"dropped"`
	Pending  int           `json:"pending"`
	Digest   string        `json:"digest"`
}

type RecordedAct struct {
	ClientID string              `json:"client_id"`
	Act      protocol.ActMsg     `json:"act"`
	Document *document.CircuitV1 `json:"document,omitempty"`
	Accepted bool                `json:"accepted"`
	Code     string              `json:"code,omitempty"`
}

type CircuitMetrics struct {
	Frame   uint64 `json:"frame"`
	Mode    string `json:"mode"`
	Objects int    `json:"objects"`
	Cells   int    `json:"cells"`
	Clients int    `json:"clients"`
	Pending int    `json:"pending"`

	LastAdvanced int `json:"last_advanced"`
	LastEmitted  int `json:"last_emitted"`
	LastDropped  int `json:"last_dropped"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Exec  int `json:"exec"`
}

func (c *Circuit) publishMetrics(step time.Duration) {
	c.metrics.Store(CircuitMetrics{
		Frame:        c.frame.Load(),
		Mode:         c.mode.String(),
		Objects:      c.store.ObjectCount(),
		Cells:        c.store.Len(),
		Clients:      len(c.clients),
		Pending:      c.queue.Len(),
		LastAdvanced: c.lastDrain.Advanced,
		LastEmitted:  c.lastDrain.Emitted,
		LastDropped:  c.lastDrain.Dropped,
		QueueDepths: QueueDepths{
			Inbox: len(c.inbox),
			Join:  len(c.join),
			Leave: len(c.leave),
			Exec:  len(c.exec),
		},
		StepMS: float64(step.Microseconds()) / 1000,
	})
}

// Metrics returns the values published after the last frame. Safe to call
// from any goroutine.
func (c *Circuit) Metrics() CircuitMetrics {
	if c == nil {
		return CircuitMetrics{}
	}
	m, ok := c.metrics.Load().(CircuitMetrics)
	if !ok {
		return CircuitMetrics{}
	}
	return m
}
