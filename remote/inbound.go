package remote

import "rigelnet/protocol"

// Inbound orders one direction of Rpc frames. It hands payloads out strictly
// in ordinal order, exactly once each.
//
//	expected
//	   │
//	───┼────────────── window ──────────────┼───►
//	 dup│ buffered until the gap fills      │ dropped
type Inbound struct {
	expected protocol.Ordinal
	window   int
	buffered map[protocol.Ordinal][]byte
}

// NewInbound creates a receive window expecting first.
func NewInbound(first protocol.Ordinal, window int) *Inbound {
	return &Inbound{
		expected: first,
		window:   window,
		buffered: make(map[protocol.Ordinal][]byte),
	}
}

// Expected returns the next ordinal that will be delivered.
func (in *Inbound) Expected() protocol.Ordinal {
	return in.expected
}

// Last returns the highest ordinal delivered so far; this is the cumulative
// acknowledgment sent back to the peer.
func (in *Inbound) Last() protocol.Ordinal {
	return in.expected - 1
}

// Buffered returns how many out-of-order frames are held.
func (in *Inbound) Buffered() int {
	return len(in.buffered)
}

// Accept offers a frame. It returns the payloads that became deliverable, in
// order, and whether the frame was new. Duplicates and frames beyond the
// window are rejected.
func (in *Inbound) Accept(o protocol.Ordinal, payload []byte) ([][]byte, bool) {
	if protocol.Less(o, in.expected) {
		return nil, false
	}
	if protocol.Distance(in.expected, o) >= int64(in.window) {
		return nil, false
	}
	if o != in.expected {
		if _, dup := in.buffered[o]; dup {
			return nil, false
		}
		in.buffered[o] = payload
		return nil, true
	}

	deliver := [][]byte{payload}
	in.expected = in.expected.Next()
	for {
		next, ok := in.buffered[in.expected]
		if !ok {
			break
		}
		delete(in.buffered, in.expected)
		deliver = append(deliver, next)
		in.expected = in.expected.Next()
	}
	return deliver, true
}
