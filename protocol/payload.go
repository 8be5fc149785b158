package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxPassphraseLen is bounded by the u16 length prefix.
const MaxPassphraseLen = math.MaxUint16

// EncodeHandshake builds a Handshake payload: [len u16][passphrase].
func EncodeHandshake(passphrase string) ([]byte, error) {
	if len(passphrase) > MaxPassphraseLen {
		return nil, fmt.Errorf("protocol: passphrase is %d bytes, limit %d", len(passphrase), MaxPassphraseLen)
	}
	buf := make([]byte, 2+len(passphrase))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(passphrase)))
	copy(buf[2:], passphrase)
	return buf, nil
}

// DecodeHandshake extracts the passphrase from a Handshake payload.
func DecodeHandshake(payload []byte) (string, error) {
	if len(payload) < 2 {
		return "", fmt.Errorf("%w: handshake length prefix", ErrTruncated)
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if len(payload)-2 < n {
		return "", fmt.Errorf("%w: handshake declares %d passphrase bytes, have %d", ErrTruncated, n, len(payload)-2)
	}
	if len(payload)-2 > n {
		return "", fmt.Errorf("%w: %d trailing bytes after passphrase", ErrMalformed, len(payload)-2-n)
	}
	return string(payload[2 : 2+n]), nil
}

// EncodeHandshakeAck builds a HandshakeAck payload: [slot u32].
func EncodeHandshakeAck(slot uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, slot)
	return buf
}

// DecodeHandshakeAck extracts the slot assigned by the server.
func DecodeHandshakeAck(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%w: handshake ack needs 4 bytes, have %d", ErrTruncated, len(payload))
	}
	if len(payload) > 4 {
		return 0, fmt.Errorf("%w: %d trailing bytes after slot", ErrMalformed, len(payload)-4)
	}
	return binary.BigEndian.Uint32(payload), nil
}

// Heartbeat flags.
const (
	HeartbeatPing byte = 0
	HeartbeatPong byte = 1
)

// HeartbeatSize is 1 (flags) + 8 (timestamp).
const HeartbeatSize = 9

// Heartbeat is a liveness probe. A pong echoes the ping's timestamp so the
// originator can take a round-trip sample against its own clock.
type Heartbeat struct {
	Pong   bool
	SentAt int64 // Unix nanoseconds on the originator's clock
}

// EncodeHeartbeat builds a Heartbeat payload: [flags u8][sentAt u64].
func EncodeHeartbeat(h Heartbeat) []byte {
	buf := make([]byte, HeartbeatSize)
	if h.Pong {
		buf[0] = HeartbeatPong
	}
	binary.BigEndian.PutUint64(buf[1:9], uint64(h.SentAt))
	return buf
}

// DecodeHeartbeat parses a Heartbeat payload.
func DecodeHeartbeat(payload []byte) (Heartbeat, error) {
	if len(payload) < HeartbeatSize {
		return Heartbeat{}, fmt.Errorf("%w: heartbeat needs %d bytes, have %d", ErrTruncated, HeartbeatSize, len(payload))
	}
	if len(payload) > HeartbeatSize {
		return Heartbeat{}, fmt.Errorf("%w: %d trailing bytes after heartbeat", ErrMalformed, len(payload)-HeartbeatSize)
	}
	if payload[0] != HeartbeatPing && payload[0] != HeartbeatPong {
		return Heartbeat{}, fmt.Errorf("%w: heartbeat flags 0x%02x", ErrMalformed, payload[0])
	}
	return Heartbeat{
		Pong:   payload[0] == HeartbeatPong,
		SentAt: int64(binary.BigEndian.Uint64(payload[1:9])),
	}, nil
}
