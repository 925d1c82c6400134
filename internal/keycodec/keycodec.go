// Package keycodec encodes typed column values into byte strings whose
// bytes.Compare order is the order of the values.
//
// Each value is a one-byte type tag followed by its orderedcode encoding.
// Strings and byte slices end in 0x00 0x01 with embedded 0x00 written as
// 0x00 0xFF, so no encoded value is a prefix of another and a tuple's
// encoding is a prefix of exactly the tuples that extend it. Types order by
// tag:
//
//	nil < []byte < string < int64 < float64 < false < true
package keycodec

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/orderedcode"
)

const (
	tagNil    byte = 0x00
	tagBytes  byte = 0x01
	tagString byte = 0x02
	tagInt    byte = 0x15
	tagFloat  byte = 0x21
	tagFalse  byte = 0x26
	tagTrue   byte = 0x27
)

var (
	ErrUnsupportedType = errors.New("keycodec: unsupported value type")
	ErrOutOfRange      = errors.New("keycodec: integer out of int64 range")
	ErrNaN             = errors.New("keycodec: NaN is not orderable")
	ErrMalformed       = errors.New("keycodec: malformed encoding")
)

// Normalize converts v to its canonical type: nil, int64, float64, string,
// []byte or bool. All Go integer kinds become int64 and float32 becomes
// float64.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64, string, bool:
		return x, nil
	case []byte:
		return x, nil
	case float64:
		if math.IsNaN(x) {
			return nil, ErrNaN
		}
		if x == 0 {
			return float64(0), nil // fold -0 into +0
		}
		return x, nil
	case float32:
		return Normalize(float64(x))
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, ErrOutOfRange
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, ErrOutOfRange
		}
		return int64(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// Encode returns the order-preserving encoding of the tuple values.
func Encode(values ...any) ([]byte, error) {
	var buf []byte
	for _, v := range values {
		var err error
		buf, err = Append(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Append appends the encoding of a single value to dst.
func Append(dst []byte, v any) ([]byte, error) {
	v, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case nil:
		return append(dst, tagNil), nil
	case []byte:
		return orderedcode.Append(append(dst, tagBytes), string(x))
	case string:
		return orderedcode.Append(append(dst, tagString), x)
	case int64:
		return orderedcode.Append(append(dst, tagInt), x)
	case float64:
		return orderedcode.Append(append(dst, tagFloat), x)
	case bool:
		if x {
			return append(dst, tagTrue), nil
		}
		return append(dst, tagFalse), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// Decode splits an encoded tuple back into its values.
func Decode(b []byte) ([]any, error) {
	var out []any
	rest := string(b)
	for len(rest) > 0 {
		v, next, err := decodeOne(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		rest = next
	}
	return out, nil
}

func decodeOne(enc string) (any, string, error) {
	tag, payload := enc[0], enc[1:]
	var (
		v    any
		rest string
		err  error
	)
	switch tag {
	case tagNil:
		return nil, payload, nil
	case tagFalse:
		return false, payload, nil
	case tagTrue:
		return true, payload, nil
	case tagInt:
		var x int64
		rest, err = orderedcode.Parse(payload, &x)
		v = x
	case tagFloat:
		var x float64
		rest, err = orderedcode.Parse(payload, &x)
		v = x
	case tagString:
		var x string
		rest, err = orderedcode.Parse(payload, &x)
		v = x
	case tagBytes:
		var x string
		rest, err = orderedcode.Parse(payload, &x)
		v = []byte(x)
	default:
		return nil, "", fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformed, tag)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, rest, nil
}

// PrefixEnd returns the smallest key greater than every key that has prefix
// as a prefix, or nil if no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
