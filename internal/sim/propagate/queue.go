package propagate

import "pixelcircuits.dev/internal/sim/signal"

// Advancer performs one propagation step.
type Advancer interface {
	Advance(signal.Message) []signal.Message
}

type AdvancerFunc func(signal.Message) []signal.Message

func (f AdvancerFunc) Advance(m signal.Message) []signal.Message { return f(m) }

// DrainStats summarizes one pass.
type DrainStats struct {
	Advanced int
	Emitted  int
	Dropped  int
}

// Queue holds the pending messages for the next pass. At most one message
// per destination (variant + cell) is kept; the first one wins.
type Queue struct {
	pending []signal.Message
	seen    map[signal.Key]struct{}
}

func NewQueue() *Queue {
	return &Queue{seen: map[signal.Key]struct{}{}}
}

// Enqueue appends msgs and returns how many were kept.
func (q *Queue) Enqueue(msgs ...signal.Message) int {
	if q.seen == nil {
		q.seen = map[signal.Key]struct{}{}
	}
	kept := 0
	for _, m := range msgs {
		k := m.Key()
		if _, dup := q.seen[k]; dup {
			continue
		}
		q.seen[k] = struct{}{}
		q.pending = append(q.pending, m)
		kept++
	}
	return kept
}

// DrainOnePass advances every pending message exactly once. Messages produced
// during the pass form the next queue; none of them is advanced now.
func (q *Queue) DrainOnePass(a Advancer) DrainStats {
	batch := q.pending
	q.pending = nil
	q.seen = map[signal.Key]struct{}{}

	var st DrainStats
	for _, m := range batch {
		out := a.Advance(m)
		st.Advanced++
		st.Emitted += len(out)
		st.Dropped += len(out) - q.Enqueue(out...)
	}
	return st
}

func (q *Queue) Len() int { return len(q.pending) }

// Pending returns a copy of the queued messages in order.
func (q *Queue) Pending() []signal.Message {
	return append([]signal.Message(nil), q.pending...)
}

func (q *Queue) Clear() {
	q.pending = nil
	q.seen = map[signal.Key]struct{}{}
}
