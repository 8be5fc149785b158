package codec

import (
	"errors"
	"reflect"

	"go.dedis.ch/protobuf"
)

// ProtobufCodec encodes struct arguments with reflection-driven protobuf
// encoding. Only pointers to structs are accepted in either direction.
type ProtobufCodec struct{}

var errNotStructPtr = errors.New("ProtobufCodec: v must be a pointer to a struct")

func (c *ProtobufCodec) Encode(v any) ([]byte, error) {
	if !isStructPtr(v) {
		return nil, errNotStructPtr
	}
	return protobuf.Encode(v)
}

func (c *ProtobufCodec) Decode(data []byte, v any) error {
	if !isStructPtr(v) {
		return errNotStructPtr
	}
	return protobuf.Decode(data, v)
}

func (c *ProtobufCodec) Type() CodecType {
	return CodecTypeProtobuf
}

func isStructPtr(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
}
