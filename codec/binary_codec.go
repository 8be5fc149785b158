package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
)

// BinaryCodec encodes a single primitive value as a type tag followed by a
// fixed or length-delimited body:
//
//	┌─────┬──────────────────────────────┐
//	│ tag │ body                          │
//	│ u8  │ 0/1/4/8 bytes, or the rest    │
//	└─────┴──────────────────────────────┘
//
// Signed integers of every width travel as int64, unsigned as uint64; the
// receiver narrows them and reports overflow. Strings and byte slices take the
// rest of the argument, since each argument is already length-delimited by
// the frame.
type BinaryCodec struct{}

const (
	tagNil     byte = 0
	tagBool    byte = 1
	tagInt     byte = 2
	tagUint    byte = 3
	tagFloat64 byte = 4
	tagString  byte = 5
	tagBytes   byte = 6
	tagFloat32 byte = 7
)

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	if v == nil {
		return []byte{tagNil}, nil
	}
	switch x := v.(type) {
	case []byte:
		buf := make([]byte, 1+len(x))
		buf[0] = tagBytes
		copy(buf[1:], x)
		return buf, nil
	case string:
		buf := make([]byte, 1+len(x))
		buf[0] = tagString
		copy(buf[1:], x)
		return buf, nil
	case bool:
		if x {
			return []byte{tagBool, 1}, nil
		}
		return []byte{tagBool, 0}, nil
	case float32:
		buf := make([]byte, 5)
		buf[0] = tagFloat32
		binary.BigEndian.PutUint32(buf[1:], math.Float32bits(x))
		return buf, nil
	case float64:
		return fixed64(tagFloat64, math.Float64bits(x)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fixed64(tagInt, uint64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fixed64(tagUint, rv.Uint()), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return []byte{tagNil}, nil
		}
		return c.Encode(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("BinaryCodec: unsupported type %T", v)
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("BinaryCodec: empty argument")
	}
	tag, body := data[0], data[1:]

	if p, ok := v.(*any); ok {
		val, err := decodeDynamic(tag, body)
		if err != nil {
			return err
		}
		*p = val
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("BinaryCodec: v must be a non-nil pointer")
	}
	out := rv.Elem()

	if tag == tagNil {
		out.Set(reflect.Zero(out.Type()))
		return nil
	}

	switch out.Kind() {
	case reflect.Bool:
		if tag != tagBool || len(body) != 1 {
			return mismatch(tag, out)
		}
		out.SetBool(body[0] != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if tag != tagInt || len(body) != 8 {
			return mismatch(tag, out)
		}
		n := int64(binary.BigEndian.Uint64(body))
		if out.OverflowInt(n) {
			return fmt.Errorf("BinaryCodec: %d overflows %s", n, out.Type())
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if tag != tagUint || len(body) != 8 {
			return mismatch(tag, out)
		}
		n := binary.BigEndian.Uint64(body)
		if out.OverflowUint(n) {
			return fmt.Errorf("BinaryCodec: %d overflows %s", n, out.Type())
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		switch {
		case tag == tagFloat64 && len(body) == 8:
			out.SetFloat(math.Float64frombits(binary.BigEndian.Uint64(body)))
		case tag == tagFloat32 && len(body) == 4:
			out.SetFloat(float64(math.Float32frombits(binary.BigEndian.Uint32(body))))
		default:
			return mismatch(tag, out)
		}
	case reflect.String:
		if tag != tagString {
			return mismatch(tag, out)
		}
		out.SetString(string(body))
	case reflect.Slice:
		if tag != tagBytes || out.Type().Elem().Kind() != reflect.Uint8 {
			return mismatch(tag, out)
		}
		b := make([]byte, len(body))
		copy(b, body)
		out.SetBytes(b)
	default:
		return fmt.Errorf("BinaryCodec: unsupported target %s", out.Type())
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func fixed64(tag byte, bits uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = tag
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf
}

func mismatch(tag byte, out reflect.Value) error {
	return fmt.Errorf("BinaryCodec: cannot decode tag %d into %s", tag, out.Type())
}

// decodeDynamic produces the widest natural Go value for a tag.
func decodeDynamic(tag byte, body []byte) (any, error) {
	switch tag {
	case tagNil:
		return nil, nil
	case tagBool:
		if len(body) == 1 {
			return body[0] != 0, nil
		}
	case tagInt:
		if len(body) == 8 {
			return int64(binary.BigEndian.Uint64(body)), nil
		}
	case tagUint:
		if len(body) == 8 {
			return binary.BigEndian.Uint64(body), nil
		}
	case tagFloat64:
		if len(body) == 8 {
			return math.Float64frombits(binary.BigEndian.Uint64(body)), nil
		}
	case tagFloat32:
		if len(body) == 4 {
			return math.Float32frombits(binary.BigEndian.Uint32(body)), nil
		}
	case tagString:
		return string(body), nil
	case tagBytes:
		b := make([]byte, len(body))
		copy(b, body)
		return b, nil
	default:
		return nil, fmt.Errorf("BinaryCodec: unknown tag %d", tag)
	}
	return nil, fmt.Errorf("BinaryCodec: tag %d with %d-byte body", tag, len(body))
}
