package codec

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the wire type of a Field. The numeric value is the tag byte
// written in front of every field payload.
type Kind uint8

const (
	KindNull    Kind = 0
	KindBytes   Kind = 1
	KindString  Kind = 2
	KindDouble  Kind = 4
	KindFloat   Kind = 5
	KindLong    Kind = 6
	KindInteger Kind = 7
	KindShort   Kind = 8
	KindByte    Kind = 9
	KindBoolean Kind = 10
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindDouble:
		return "double"
	case KindFloat:
		return "float"
	case KindLong:
		return "long"
	case KindInteger:
		return "integer"
	case KindShort:
		return "short"
	case KindByte:
		return "byte"
	case KindBoolean:
		return "boolean"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is a defined tag
func (k Kind) Valid() bool {
	switch k {
	case KindNull, KindBytes, KindString, KindDouble, KindFloat,
		KindLong, KindInteger, KindShort, KindByte, KindBoolean:
		return true
	}
	return false
}

// payloadSize returns the fixed payload width of k, or -1 for the
// length-prefixed kinds.
func (k Kind) payloadSize() int {
	switch k {
	case KindNull:
		return 0
	case KindBoolean, KindByte:
		return 1
	case KindShort:
		return 2
	case KindInteger, KindFloat:
		return 4
	case KindLong, KindDouble:
		return 8
	default:
		return -1
	}
}

// Field is a single typed value. Integer kinds and booleans keep their value in
// num, floating kinds keep the IEEE754 bits in num, String and Bytes keep their
// payload in raw.
type Field struct {
	kind Kind
	num  uint64
	raw  []byte
}

// Null returns the null field
func Null() Field { return Field{kind: KindNull} }

// Bool returns a boolean field
func Bool(v bool) Field {
	f := Field{kind: KindBoolean}
	if v {
		f.num = 1
	}
	return f
}

// Byte returns a signed 8-bit field
func Byte(v int8) Field { return Field{kind: KindByte, num: uint64(int64(v))} }

// Short returns a signed 16-bit field
func Short(v int16) Field { return Field{kind: KindShort, num: uint64(int64(v))} }

// Int returns a signed 32-bit field
func Int(v int32) Field { return Field{kind: KindInteger, num: uint64(int64(v))} }

// Long returns a signed 64-bit field
func Long(v int64) Field { return Field{kind: KindLong, num: uint64(v)} }

// Float returns a 32-bit floating point field
func Float(v float32) Field { return Field{kind: KindFloat, num: uint64(math.Float32bits(v))} }

// Double returns a 64-bit floating point field
func Double(v float64) Field { return Field{kind: KindDouble, num: math.Float64bits(v)} }

// String returns a string field
func String(v string) Field { return Field{kind: KindString, raw: []byte(v)} }

// Bytes returns a raw bytes field. The slice is not copied.
func Bytes(v []byte) Field {
	if v == nil {
		v = []byte{}
	}
	return Field{kind: KindBytes, raw: v}
}

// Kind returns the wire kind of the field
func (f Field) Kind() Kind { return f.kind }

// IsNull reports whether the field is null
func (f Field) IsNull() bool { return f.kind == KindNull }

// Bool returns the boolean value; false for other kinds
func (f Field) Bool() bool { return f.kind == KindBoolean && f.num != 0 }

// Int64 returns the value of any integer kind, widened to 64 bits
func (f Field) Int64() int64 {
	switch f.kind {
	case KindByte, KindShort, KindInteger, KindLong:
		return int64(f.num)
	case KindBoolean:
		return int64(f.num)
	}
	return 0
}

// Float64 returns the value of a floating kind, widened to 64 bits
func (f Field) Float64() float64 {
	switch f.kind {
	case KindFloat:
		return float64(math.Float32frombits(uint32(f.num)))
	case KindDouble:
		return math.Float64frombits(f.num)
	}
	return 0
}

// Str returns the value of a String or Bytes field as a string
func (f Field) Str() string {
	if f.kind == KindString || f.kind == KindBytes {
		return string(f.raw)
	}
	return ""
}

// Raw returns the payload of a String or Bytes field
func (f Field) Raw() []byte {
	if f.kind == KindString || f.kind == KindBytes {
		return f.raw
	}
	return nil
}

// Equal reports whether two fields have the same kind and value. Floating
// kinds compare by bit pattern so NaN equals itself.
func (f Field) Equal(o Field) bool {
	if f.kind != o.kind {
		return false
	}
	switch f.kind {
	case KindString, KindBytes:
		return bytes.Equal(f.raw, o.raw)
	default:
		return f.num == o.num
	}
}

// String renders the field for diagnostics
func (f Field) String() string {
	switch f.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(f.Bool())
	case KindByte, KindShort, KindInteger, KindLong:
		return strconv.FormatInt(f.Int64(), 10)
	case KindFloat:
		return strconv.FormatFloat(f.Float64(), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(f.Float64(), 'g', -1, 64)
	case KindString:
		return strconv.Quote(string(f.raw))
	case KindBytes:
		return fmt.Sprintf("0x%x", f.raw)
	default:
		return f.kind.String()
	}
}

// Size returns the encoded size of the field including its tag byte
func (f Field) Size() int {
	if n := f.kind.payloadSize(); n >= 0 {
		return 1 + n
	}
	return 1 + 4 + len(f.raw)
}
