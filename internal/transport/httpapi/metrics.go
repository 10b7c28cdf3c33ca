package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleMetrics writes a minimal Prometheus exposition.
func (h *Handler) HandleMetrics(c echo.Context) error {
	rw := c.Response()
	rw.Header().Set(echo.HeaderContentType, "text/plain; version=0.0.4")
	rw.WriteHeader(http.StatusOK)

	if cc := h.d.Circuit; cc != nil {
		id := cc.ID()
		m := cc.Metrics()
		frame := cc.CurrentFrame()
		if m.Frame != 0 {
			frame = m.Frame
		}
		run := 0
		if m.Mode == "RUN" {
			run = 1
		}

		fmt.Fprintf(rw, "# HELP pixelcircuits_frame Current frame number.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_frame gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_frame{circuit=%q} %d\n", id, frame)

		fmt.Fprintf(rw, "# HELP pixelcircuits_running Whether the circuit is in run mode.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_running gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_running{circuit=%q} %d\n", id, run)

		fmt.Fprintf(rw, "# HELP pixelcircuits_objects Placed objects.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_objects gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_objects{circuit=%q} %d\n", id, m.Objects)

		fmt.Fprintf(rw, "# HELP pixelcircuits_cells Occupied grid cells.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_cells gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_cells{circuit=%q} %d\n", id, m.Cells)

		fmt.Fprintf(rw, "# HELP pixelcircuits_clients Connected websocket clients.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_clients gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_clients{circuit=%q} %d\n", id, m.Clients)

		fmt.Fprintf(rw, "# HELP pixelcircuits_pending_messages Messages waiting for the next pass.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_pending_messages gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_pending_messages{circuit=%q} %d\n", id, m.Pending)

		fmt.Fprintf(rw, "# HELP pixelcircuits_last_pass Messages handled by the last drain pass.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_last_pass gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_last_pass{circuit=%q,metric=%q} %d\n", id, "advanced", m.LastAdvanced)
		fmt.Fprintf(rw, "pixelcircuits_last_pass{circuit=%q,metric=%q} %d\n", id, "emitted", m.LastEmitted)
		fmt.Fprintf(rw, "pixelcircuits_last_pass{circuit=%q,metric=%q} %d\n", id, "dropped", m.LastDropped)

		fmt.Fprintf(rw, "# HELP pixelcircuits_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_queue_depth gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_queue_depth{circuit=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "pixelcircuits_queue_depth{circuit=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "pixelcircuits_queue_depth{circuit=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)
		fmt.Fprintf(rw, "pixelcircuits_queue_depth{circuit=%q,queue=%q} %d\n", id, "exec", m.QueueDepths.Exec)

		fmt.Fprintf(rw, "# HELP pixelcircuits_step_ms Last frame step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_step_ms gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_step_ms{circuit=%q} %.3f\n", id, m.StepMS)
	}

	if h.d.Store != nil {
		s := h.d.Store.Stats()
		fmt.Fprintf(rw, "# HELP pixelcircuits_index_queue_depth Frame index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "pixelcircuits_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP pixelcircuits_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE pixelcircuits_index_dropped_total counter\n")
		fmt.Fprintf(rw, "pixelcircuits_index_dropped_total{kind=%q} %d\n", "frame", s.DropFrameTotal)
		fmt.Fprintf(rw, "pixelcircuits_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	}
	return nil
}
