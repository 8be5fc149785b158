package remote

import (
	"rigelnet/protocol"
	"time"
)

// PendingFrame is an outgoing frame awaiting acknowledgment. Data is the
// encoded frame and is resent unchanged.
type PendingFrame struct {
	Kind      protocol.Kind
	Ordinal   protocol.Ordinal
	Data      []byte
	Cycles    int       // Retransmissions so far
	FirstSent time.Time
	LastSent  time.Time
}

// Queue holds pending frames in send order.
type Queue struct {
	frames []*PendingFrame
}

// Push appends a frame that has just been sent for the first time.
func (q *Queue) Push(kind protocol.Kind, ordinal protocol.Ordinal, data []byte, now time.Time) *PendingFrame {
	p := &PendingFrame{
		Kind:      kind,
		Ordinal:   ordinal,
		Data:      data,
		FirstSent: now,
		LastSent:  now,
	}
	q.frames = append(q.frames, p)
	return p
}

func (q *Queue) Len() int {
	return len(q.frames)
}

// Frames returns the queued frames. The slice must not be modified.
func (q *Queue) Frames() []*PendingFrame {
	return q.frames
}

// AckThrough removes every Rpc frame whose ordinal is at or before o and
// returns them.
func (q *Queue) AckThrough(o protocol.Ordinal) []*PendingFrame {
	return q.remove(func(p *PendingFrame) bool {
		return p.Kind == protocol.KindRpc && protocol.LessEq(p.Ordinal, o)
	})
}

// RemoveKind removes every frame of kind k and returns them.
func (q *Queue) RemoveKind(k protocol.Kind) []*PendingFrame {
	return q.remove(func(p *PendingFrame) bool {
		return p.Kind == k
	})
}

// Clear discards every frame.
func (q *Queue) Clear() {
	q.frames = nil
}

func (q *Queue) remove(match func(*PendingFrame) bool) []*PendingFrame {
	var removed []*PendingFrame
	kept := q.frames[:0]
	for _, p := range q.frames {
		if match(p) {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(q.frames); i++ {
		q.frames[i] = nil
	}
	q.frames = kept
	return removed
}
