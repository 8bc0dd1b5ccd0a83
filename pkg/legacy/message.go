// Package legacy implements the structured-message record format that older
// hosts speak instead of the binary codec.
//
// Each record travels as a frame: a 4-byte big-endian signed length followed
// by a protobuf-wire Tuple message. A length of -1 ends the group, so the
// Emitter has no reason to hold records back.
//
//	message Tuple { repeated Value fields = 1; bool scalar = 2; }
//	message Value {
//	  oneof kind {
//	    bool   null   = 1;
//	    bool   bool   = 2;
//	    sint32 byte   = 3;
//	    sint32 short  = 4;
//	    sint32 int    = 5;
//	    sint64 long   = 6;
//	    float  float  = 7;
//	    double double = 8;
//	    string string = 9;
//	    bytes  bytes  = 10;
//	  }
//	}
package legacy

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ssargent/tether/pkg/codec"
)

const (
	tupleFields protowire.Number = 1
	tupleScalar protowire.Number = 2

	valueNull   protowire.Number = 1
	valueBool   protowire.Number = 2
	valueByte   protowire.Number = 3
	valueShort  protowire.Number = 4
	valueInt    protowire.Number = 5
	valueLong   protowire.Number = 6
	valueFloat  protowire.Number = 7
	valueDouble protowire.Number = 8
	valueString protowire.Number = 9
	valueBytes  protowire.Number = 10
)

func protocolError(op, format string, args ...any) error {
	return &codec.ProtocolError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// AppendTuple appends the Tuple message for rec to dst
func AppendTuple(dst []byte, rec codec.Record) ([]byte, error) {
	switch {
	case rec.IsNone():
		return dst, protocolError("encode tuple", "cannot encode an absent record")
	case rec.IsScalar() && rec.Len() != 1:
		return dst, protocolError("encode tuple", "scalar record with %d fields", rec.Len())
	case rec.Len() == 0:
		return dst, protocolError("encode tuple", "empty tuple has no wire form")
	}

	var value []byte
	for _, f := range rec.Fields() {
		var err error
		value, err = AppendValue(value[:0], f)
		if err != nil {
			return dst, err
		}
		dst = protowire.AppendTag(dst, tupleFields, protowire.BytesType)
		dst = protowire.AppendBytes(dst, value)
	}
	if rec.IsScalar() {
		dst = protowire.AppendTag(dst, tupleScalar, protowire.VarintType)
		dst = protowire.AppendVarint(dst, 1)
	}
	return dst, nil
}

// AppendValue appends the Value message for f to dst
func AppendValue(dst []byte, f codec.Field) ([]byte, error) {
	switch f.Kind() {
	case codec.KindNull:
		dst = protowire.AppendTag(dst, valueNull, protowire.VarintType)
		dst = protowire.AppendVarint(dst, 1)
	case codec.KindBoolean:
		dst = protowire.AppendTag(dst, valueBool, protowire.VarintType)
		dst = protowire.AppendVarint(dst, protowire.EncodeBool(f.Bool()))
	case codec.KindByte:
		dst = appendSint(dst, valueByte, f.Int64())
	case codec.KindShort:
		dst = appendSint(dst, valueShort, f.Int64())
	case codec.KindInteger:
		dst = appendSint(dst, valueInt, f.Int64())
	case codec.KindLong:
		dst = appendSint(dst, valueLong, f.Int64())
	case codec.KindFloat:
		dst = protowire.AppendTag(dst, valueFloat, protowire.Fixed32Type)
		dst = protowire.AppendFixed32(dst, math.Float32bits(float32(f.Float64())))
	case codec.KindDouble:
		dst = protowire.AppendTag(dst, valueDouble, protowire.Fixed64Type)
		dst = protowire.AppendFixed64(dst, math.Float64bits(f.Float64()))
	case codec.KindString:
		dst = protowire.AppendTag(dst, valueString, protowire.BytesType)
		dst = protowire.AppendBytes(dst, f.Raw())
	case codec.KindBytes:
		dst = protowire.AppendTag(dst, valueBytes, protowire.BytesType)
		dst = protowire.AppendBytes(dst, f.Raw())
	default:
		return dst, protocolError("encode value", "unknown kind %d", f.Kind())
	}
	return dst, nil
}

func appendSint(dst []byte, num protowire.Number, v int64) []byte {
	dst = protowire.AppendTag(dst, num, protowire.VarintType)
	return protowire.AppendVarint(dst, protowire.EncodeZigZag(v))
}

// ParseTuple decodes a Tuple message. Unknown fields are skipped.
func ParseTuple(b []byte) (codec.Record, error) {
	var fields []codec.Field
	scalar := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return codec.None, protocolError("decode tuple", "%v", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == tupleFields && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return codec.None, protocolError("decode tuple", "field %d: %v", len(fields), protowire.ParseError(n))
			}
			f, err := ParseValue(v)
			if err != nil {
				return codec.None, err
			}
			fields = append(fields, f)
			b = b[n:]
		case num == tupleScalar && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return codec.None, protocolError("decode tuple", "scalar flag: %v", protowire.ParseError(n))
			}
			scalar = protowire.DecodeBool(v)
			b = b[n:]
		case num == tupleFields || num == tupleScalar:
			return codec.None, protocolError("decode tuple", "field %d has wire type %d", num, typ)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return codec.None, protocolError("decode tuple", "unknown field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	switch {
	case len(fields) == 0:
		return codec.None, protocolError("decode tuple", "tuple without fields")
	case scalar && len(fields) != 1:
		return codec.None, protocolError("decode tuple", "scalar tuple with %d fields", len(fields))
	case scalar:
		return codec.Scalar(fields[0]), nil
	default:
		return codec.Tuple(fields...), nil
	}
}

// ParseValue decodes a Value message. The last kind present wins.
func ParseValue(b []byte) (codec.Field, error) {
	var (
		f   codec.Field
		set bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return codec.Field{}, protocolError("decode value", "%v", protowire.ParseError(n))
		}
		b = b[n:]

		want, known := valueWireType(num)
		if !known {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return codec.Field{}, protocolError("decode value", "unknown field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if typ != want {
			return codec.Field{}, protocolError("decode value", "field %d has wire type %d", num, typ)
		}

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return codec.Field{}, protocolError("decode value", "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			f = varintField(num, v)
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return codec.Field{}, protocolError("decode value", "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			f = codec.Float(math.Float32frombits(v))
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return codec.Field{}, protocolError("decode value", "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			f = codec.Double(math.Float64frombits(v))
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return codec.Field{}, protocolError("decode value", "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == valueString {
				f = codec.String(string(v))
			} else {
				f = codec.Bytes(v)
			}
		}
		set = true
	}
	if !set {
		return codec.Field{}, protocolError("decode value", "value without a kind")
	}
	return f, nil
}

func valueWireType(num protowire.Number) (protowire.Type, bool) {
	switch num {
	case valueNull, valueBool, valueByte, valueShort, valueInt, valueLong:
		return protowire.VarintType, true
	case valueFloat:
		return protowire.Fixed32Type, true
	case valueDouble:
		return protowire.Fixed64Type, true
	case valueString, valueBytes:
		return protowire.BytesType, true
	default:
		return 0, false
	}
}

func varintField(num protowire.Number, v uint64) codec.Field {
	switch num {
	case valueNull:
		return codec.Null()
	case valueBool:
		return codec.Bool(protowire.DecodeBool(v))
	case valueByte:
		return codec.Byte(int8(protowire.DecodeZigZag(v)))
	case valueShort:
		return codec.Short(int16(protowire.DecodeZigZag(v)))
	case valueInt:
		return codec.Int(int32(protowire.DecodeZigZag(v)))
	default:
		return codec.Long(protowire.DecodeZigZag(v))
	}
}
