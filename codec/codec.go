// Package codec serializes individual RPC arguments.
//
// A call's argument list travels as a list of opaque byte strings; the codec
// decides what each string means. Both ends of a connection must use the same
// codec type because the frame does not carry it.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON     CodecType = 0
	CodecTypeBinary   CodecType = 1
	CodecTypeProtobuf CodecType = 2
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	case CodecTypeProtobuf:
		return "protobuf"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}
	case CodecTypeProtobuf:
		return &ProtobufCodec{}
	}
	return &BinaryCodec{}
}

// ParseCodecType maps a configuration name to a codec type.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "", "binary":
		return CodecTypeBinary, nil
	case "json":
		return CodecTypeJSON, nil
	case "protobuf":
		return CodecTypeProtobuf, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}
