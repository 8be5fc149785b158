package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONCodec encodes each argument as one JSON document. It is the codec to
// pick when a peer is written in another language or traffic needs to be
// readable in a capture. Map keys are sorted, so encoding is deterministic.
//
// Decoding is strict: unknown object fields and trailing data are errors,
// since a shape mismatch between peers usually means mismatched builds.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("JSONCodec: trailing data after argument")
	}
	return nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
