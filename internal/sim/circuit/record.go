package circuit

import (
	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/protocol"
)

// OpLoad marks a recorded document load in the frame log. It is not a wire
// op; clients load documents through the REST API.
const OpLoad = "LOAD"

// ApplyRecorded applies act and appends it to the acts logged with the next
// frame. Every client-originated ACT goes through here so that frame logs
// replay to the same digests.
func (c *Circuit) ApplyRecorded(clientID string, act protocol.ActMsg) protocol.AckMsg {
	ack := c.Apply(act)
	c.recorded = append(c.recorded, RecordedAct{
		ClientID: clientID,
		Act:      act,
		Accepted: ack.Accepted,
		Code:     ack.Code,
	})
	return ack
}

// ImportRecorded replaces the circuit with doc and logs the load with the
// next frame. Failed loads change nothing and are not logged.
func (c *Circuit) ImportRecorded(clientID string, doc document.CircuitV1) error {
	if err := c.Import(doc); err != nil {
		return err
	}
	c.recorded = append(c.recorded, RecordedAct{
		ClientID: clientID,
		Act:      protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Op: OpLoad},
		Document: &doc,
		Accepted: true,
	})
	return nil
}

// Replay re-executes one logged act and reports whether it was accepted.
func (c *Circuit) Replay(ra RecordedAct) bool {
	if ra.Act.Op == OpLoad {
		return ra.Document != nil && c.Import(*ra.Document) == nil
	}
	return c.Apply(ra.Act).Accepted
}
