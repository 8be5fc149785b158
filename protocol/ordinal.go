package protocol

// Ordinal is a per-connection, per-direction sequence number. It wraps modulo
// 2^32, so ordering is decided on the circle rather than on the integer line:
// a precedes b when the forward distance from a to b is less than half the space.
type Ordinal uint32

// Next returns the ordinal following o, wrapping after 0xFFFFFFFF.
func (o Ordinal) Next() Ordinal {
	return o + 1
}

// Less reports whether a precedes b.
func Less(a, b Ordinal) bool {
	return int32(uint32(a)-uint32(b)) < 0
}

// LessEq reports whether a precedes or equals b.
func LessEq(a, b Ordinal) bool {
	return a == b || Less(a, b)
}

// Distance returns how far b is ahead of a. Negative when b precedes a.
func Distance(a, b Ordinal) int64 {
	return int64(int32(uint32(b) - uint32(a)))
}
