package protocol

import (
	"encoding/binary"
	"fmt"
)

// Rpc payload format:
//
//	0         4    5        9
//	┌─────────┬────┬────────┬──────────┬────────┬──────────┬───
//	│ handler │argc│ len[0] │ arg[0]   │ len[1] │ arg[1]   │...
//	│ uint32  │ u8 │ uint32 │ len bytes│ uint32 │ len bytes│
//	└─────────┴────┴────────┴──────────┴────────┴──────────┴───

// EncodeCall builds an Rpc payload. Calls with more than MaxArgs arguments
// fail to encode.
func EncodeCall(index uint32, args [][]byte) ([]byte, error) {
	if len(args) > MaxArgs {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyArgs, len(args), MaxArgs)
	}
	total := 5
	for _, a := range args {
		total += 4 + len(a)
	}
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], index)
	buf[4] = byte(len(args))

	offset := 5
	for _, a := range args {
		binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(a)))
		offset += 4
		copy(buf[offset:], a)
		offset += len(a)
	}
	return buf, nil
}

// DecodeCall parses an Rpc payload. The returned argument slices alias payload.
func DecodeCall(payload []byte) (uint32, [][]byte, error) {
	if len(payload) < 5 {
		return 0, nil, fmt.Errorf("%w: rpc header needs 5 bytes, have %d", ErrTruncated, len(payload))
	}
	index := binary.BigEndian.Uint32(payload[0:4])
	argc := int(payload[4])
	if argc > MaxArgs {
		return 0, nil, fmt.Errorf("%w: argument count %d exceeds %d", ErrMalformed, argc, MaxArgs)
	}

	args := make([][]byte, 0, argc)
	offset := 5
	for i := 0; i < argc; i++ {
		if len(payload)-offset < 4 {
			return 0, nil, fmt.Errorf("%w: length of argument %d", ErrTruncated, i)
		}
		n := binary.BigEndian.Uint32(payload[offset : offset+4])
		offset += 4
		if uint64(len(payload)-offset) < uint64(n) {
			return 0, nil, fmt.Errorf("%w: argument %d declares %d bytes, have %d", ErrTruncated, i, n, len(payload)-offset)
		}
		end := offset + int(n)
		args = append(args, payload[offset:end:end])
		offset = end
	}
	if offset != len(payload) {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes after arguments", ErrMalformed, len(payload)-offset)
	}
	return index, args, nil
}
