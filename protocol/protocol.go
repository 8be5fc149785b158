// Package protocol implements the RigelNet datagram frame format.
//
// Every datagram carries exactly one frame. There is no length prefix at the
// frame level: the datagram boundary is the frame boundary, and each kind's
// payload carries its own length prefixes where it needs them.
//
// Frame format:
//
//	0    1         5
//	┌────┬─────────┬──────────────────────────┐
//	│kind│ ordinal │ kind-specific payload ... │
//	│ u8 │ uint32  │                          │
//	└────┴─────────┴──────────────────────────┘
//
// All integers are big-endian (network byte order).
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is 1 (kind) + 4 (ordinal).
const HeaderSize = 5

// Frame size limits. MaxFrameSize is the largest UDP payload over IPv4
// (65535 - 8 byte UDP header - 20 byte IP header); a frame never spans
// datagrams. A node may lower its limit down to MinFrameSize.
const (
	MaxFrameSize = 65507
	MinFrameSize = 64
)

var (
	// ErrTruncated means the datagram ended before a length the frame declared.
	ErrTruncated = errors.New("protocol: truncated frame")
	// ErrMalformed means the frame is structurally invalid (unknown tag, trailing bytes, bad count).
	ErrMalformed = errors.New("protocol: malformed frame")
	// ErrTooManyArgs is returned when encoding a call with more than MaxArgs arguments.
	ErrTooManyArgs = errors.New("protocol: too many arguments")
	// ErrFrameTooLarge is returned when an encoded frame would not fit in one datagram.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// Kind identifies the frame type.
type Kind byte

const (
	KindHandshake       Kind = 0x01 // Client → Server, passphrase
	KindHandshakeAck    Kind = 0x02 // Server → Client, assigned slot
	KindHandshakeReject Kind = 0x03 // Server → Client, no free slot
	KindRpc             Kind = 0x04 // Reliable, ordered remote invocation
	KindAck             Kind = 0x05 // Cumulative acknowledgment of Rpc frames
	KindHeartbeat       Kind = 0x06 // Liveness probe and latency sample
	KindDisconnect      Kind = 0x07 // Orderly teardown
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindHandshakeAck:
		return "handshake-ack"
	case KindHandshakeReject:
		return "handshake-reject"
	case KindRpc:
		return "rpc"
	case KindAck:
		return "ack"
	case KindHeartbeat:
		return "heartbeat"
	case KindDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("kind(0x%02x)", byte(k))
}

// Valid reports whether k is a known frame kind.
func (k Kind) Valid() bool {
	return k >= KindHandshake && k <= KindDisconnect
}

// Frame is one decoded datagram.
type Frame struct {
	Kind    Kind
	Ordinal Ordinal
	Payload []byte // Aliases the decoded buffer
}

// Encode builds a frame. The output depends only on the inputs, so a pending
// frame can be resent byte for byte.
func Encode(kind Kind, ordinal Ordinal, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(ordinal))
	copy(buf[HeaderSize:], payload)
	return buf
}

// CheckSize fails with ErrFrameTooLarge when a frame with payloadLen payload
// bytes would exceed limit.
func CheckSize(payloadLen, limit int) error {
	if n := HeaderSize + payloadLen; n > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, n, limit)
	}
	return nil
}

// Decode parses a datagram into a frame and validates the kind-specific
// payload. It never reads past data.
func Decode(data []byte) (Frame, error) {
	if len(data) < 1 {
		return Frame{}, fmt.Errorf("%w: empty datagram", ErrTruncated)
	}
	kind := Kind(data[0])
	if !kind.Valid() {
		return Frame{}, fmt.Errorf("%w: unknown kind 0x%02x", ErrMalformed, data[0])
	}
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(data))
	}

	f := Frame{
		Kind:    kind,
		Ordinal: Ordinal(binary.BigEndian.Uint32(data[1:5])),
		Payload: data[HeaderSize:],
	}
	if err := validatePayload(kind, f.Payload); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func validatePayload(kind Kind, payload []byte) error {
	var err error
	switch kind {
	case KindHandshake:
		_, err = DecodeHandshake(payload)
	case KindHandshakeAck:
		_, err = DecodeHandshakeAck(payload)
	case KindRpc:
		_, _, err = DecodeCall(payload)
	case KindHeartbeat:
		_, err = DecodeHeartbeat(payload)
	case KindHandshakeReject, KindAck, KindDisconnect:
		if len(payload) != 0 {
			err = fmt.Errorf("%w: %s carries %d trailing bytes", ErrMalformed, kind, len(payload))
		}
	}
	return err
}
