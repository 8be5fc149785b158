// Package message defines the decoded form of an RPC invocation.
//
// A Call is what an Rpc frame carries once the wire layout has been parsed:
// the handler index and the raw argument list. Args pairs the raw list with
// the codec both ends agreed on, so handlers can decode arguments by position.
package message

import (
	"fmt"
	"rigelnet/codec"
)

// Call carries a single remote invocation.
//
//   - Index selects the receive-side handler in the registry.
//   - Args holds the serialized arguments in call order.
type Call struct {
	Index uint32
	Args  Args
}

// Args is a positional argument list.
type Args struct {
	raw   [][]byte
	codec codec.Codec
}

// NewArgs wraps raw arguments decoded with c.
func NewArgs(c codec.Codec, raw [][]byte) Args {
	return Args{raw: raw, codec: c}
}

// EncodeArgs serializes each value with c.
func EncodeArgs(c codec.Codec, values ...any) ([][]byte, error) {
	raw := make([][]byte, len(values))
	for i, v := range values {
		b, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		raw[i] = b
	}
	return raw, nil
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a.raw)
}

// Raw returns the serialized form of argument i.
func (a Args) Raw(i int) []byte {
	return a.raw[i]
}

// Decode decodes argument i into v.
func (a Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a.raw) {
		return fmt.Errorf("argument %d out of range, call has %d", i, len(a.raw))
	}
	if a.codec == nil {
		return fmt.Errorf("argument %d: no codec", i)
	}
	if err := a.codec.Decode(a.raw[i], v); err != nil {
		return fmt.Errorf("argument %d: %w", i, err)
	}
	return nil
}

// Scan decodes the arguments into vs in order. The call must carry exactly
// len(vs) arguments.
func (a Args) Scan(vs ...any) error {
	if len(vs) != len(a.raw) {
		return fmt.Errorf("scan: call has %d arguments, want %d", len(a.raw), len(vs))
	}
	for i, v := range vs {
		if err := a.Decode(i, v); err != nil {
			return err
		}
	}
	return nil
}
