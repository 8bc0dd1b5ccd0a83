package codec

import (
	"encoding/binary"
	"math"
	"strings"
)

// MaxPayloadSize bounds the declared length of a String or Bytes field
const MaxPayloadSize = 1 << 28

// Reader is the read side of a channel: ReadFull blocks until len(p) bytes
// are available or fails.
type Reader interface {
	ReadFull(p []byte) error
}

// Record is an ordered, fixed sequence of fields. A scalar record holds exactly
// one field and travels without a tuple wrapper.
type Record struct {
	fields []Field
	scalar bool
}

// None is the absent record returned by exhausted cursors
var None = Record{}

// Scalar wraps a single field as a bare value record
func Scalar(f Field) Record {
	return Record{fields: []Field{f}, scalar: true}
}

// Tuple builds a record of one or more fields
func Tuple(fields ...Field) Record {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return Record{fields: fs}
}

// IsNone reports whether r is the absent record
func (r Record) IsNone() bool { return r.fields == nil }

// IsScalar reports whether r is a bare value
func (r Record) IsScalar() bool { return r.scalar }

// Len returns the number of fields
func (r Record) Len() int { return len(r.fields) }

// Field returns the i-th field
func (r Record) Field(i int) Field { return r.fields[i] }

// Fields returns the fields of the record. The slice must not be modified.
func (r Record) Fields() []Field { return r.fields }

// Value returns the bare value of a scalar record, or Null otherwise
func (r Record) Value() Field {
	if r.scalar && len(r.fields) == 1 {
		return r.fields[0]
	}
	return Null()
}

// Equal compares shape and field values
func (r Record) Equal(o Record) bool {
	if r.scalar != o.scalar || len(r.fields) != len(o.fields) || r.IsNone() != o.IsNone() {
		return false
	}
	for i := range r.fields {
		if !r.fields[i].Equal(o.fields[i]) {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	if r.IsNone() {
		return "<none>"
	}
	if r.scalar {
		return r.fields[0].String()
	}
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Size returns the encoded size of the record including its header
func (r Record) Size() int {
	n := 1
	for _, f := range r.fields {
		n += f.Size()
	}
	return n
}

// RecordCodec handles serialization and deserialization of records
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// Encode serializes a record with its header.
// Format: [Header(1)] then per field [Tag(1)][Payload]
func (c *RecordCodec) Encode(r Record, last bool, group uint8) ([]byte, error) {
	return c.AppendRecord(make([]byte, 0, r.Size()), r, last, group)
}

// AppendRecord appends the encoded record to dst
func (c *RecordCodec) AppendRecord(dst []byte, r Record, last bool, group uint8) ([]byte, error) {
	count := len(r.fields)
	switch {
	case r.IsNone():
		return dst, protocolErrorf("encode record", "cannot encode an absent record")
	case r.scalar:
		if count != 1 {
			return dst, protocolErrorf("encode record", "scalar record with %d fields", count)
		}
		count = 0
	case count == 0:
		return dst, protocolErrorf("encode record", "empty tuple has no wire form")
	}

	h, err := NewHeader(group, last, count)
	if err != nil {
		return dst, err
	}
	dst = append(dst, byte(h))
	for _, f := range r.fields {
		if dst, err = c.AppendField(dst, f); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// EncodeSentinel returns the end-of-stream byte for group
func (c *RecordCodec) EncodeSentinel(group uint8) []byte {
	return []byte{byte(SentinelHeader(group))}
}

// AppendField appends tag and big-endian payload of f to dst
func (c *RecordCodec) AppendField(dst []byte, f Field) ([]byte, error) {
	if !f.kind.Valid() {
		return dst, protocolErrorf("encode field", "unknown kind %d", f.kind)
	}
	dst = append(dst, byte(f.kind))
	switch f.kind {
	case KindNull:
	case KindBoolean, KindByte:
		dst = append(dst, byte(f.num))
	case KindShort:
		dst = binary.BigEndian.AppendUint16(dst, uint16(f.num))
	case KindInteger, KindFloat:
		dst = binary.BigEndian.AppendUint32(dst, uint32(f.num))
	case KindLong, KindDouble:
		dst = binary.BigEndian.AppendUint64(dst, f.num)
	case KindString, KindBytes:
		if len(f.raw) > MaxPayloadSize {
			return dst, protocolErrorf("encode field", "%s payload of %d bytes exceeds limit", f.kind, len(f.raw))
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(f.raw)))
		dst = append(dst, f.raw...)
	}
	return dst, nil
}

// ReadHeader reads and validates one header byte
func (c *RecordCodec) ReadHeader(r Reader) (Header, error) {
	var b [1]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return DecodeHeader(b[0])
}

// ReadRecord reads the fields announced by h. h must not be a sentinel.
func (c *RecordCodec) ReadRecord(h Header, r Reader) (Record, error) {
	if h.IsSentinel() {
		return None, protocolErrorf("decode record", "sentinel has no record body")
	}
	if h.IsScalar() {
		f, err := c.ReadField(r)
		if err != nil {
			return None, err
		}
		return Record{fields: []Field{f}, scalar: true}, nil
	}
	fields := make([]Field, h.FieldCount())
	for i := range fields {
		f, err := c.ReadField(r)
		if err != nil {
			return None, err
		}
		fields[i] = f
	}
	return Record{fields: fields}, nil
}

// ReadField reads a tag byte and its payload
func (c *RecordCodec) ReadField(r Reader) (Field, error) {
	var tag [1]byte
	if err := r.ReadFull(tag[:]); err != nil {
		return Field{}, err
	}
	return c.DecodeField(tag[0], r)
}

// DecodeField reads the payload for an already consumed tag byte
func (c *RecordCodec) DecodeField(tag byte, r Reader) (Field, error) {
	kind := Kind(tag)
	if !kind.Valid() {
		return Field{}, protocolErrorf("decode field", "unknown type tag %d", tag)
	}

	var buf [8]byte
	switch kind {
	case KindNull:
		return Null(), nil
	case KindBoolean:
		if err := r.ReadFull(buf[:1]); err != nil {
			return Field{}, err
		}
		return Bool(buf[0] != 0), nil
	case KindByte:
		if err := r.ReadFull(buf[:1]); err != nil {
			return Field{}, err
		}
		return Byte(int8(buf[0])), nil
	case KindShort:
		if err := r.ReadFull(buf[:2]); err != nil {
			return Field{}, err
		}
		return Short(int16(binary.BigEndian.Uint16(buf[:2]))), nil
	case KindInteger:
		if err := r.ReadFull(buf[:4]); err != nil {
			return Field{}, err
		}
		return Int(int32(binary.BigEndian.Uint32(buf[:4]))), nil
	case KindFloat:
		if err := r.ReadFull(buf[:4]); err != nil {
			return Field{}, err
		}
		return Float(math.Float32frombits(binary.BigEndian.Uint32(buf[:4]))), nil
	case KindLong:
		if err := r.ReadFull(buf[:8]); err != nil {
			return Field{}, err
		}
		return Long(int64(binary.BigEndian.Uint64(buf[:8]))), nil
	case KindDouble:
		if err := r.ReadFull(buf[:8]); err != nil {
			return Field{}, err
		}
		return Double(math.Float64frombits(binary.BigEndian.Uint64(buf[:8]))), nil
	default:
		if err := r.ReadFull(buf[:4]); err != nil {
			return Field{}, err
		}
		size := int32(binary.BigEndian.Uint32(buf[:4]))
		if size < 0 || size > MaxPayloadSize {
			return Field{}, protocolErrorf("decode field", "%s length %d out of range", kind, size)
		}
		data := make([]byte, size)
		if err := r.ReadFull(data); err != nil {
			return Field{}, err
		}
		return Field{kind: kind, raw: data}, nil
	}
}

// Decode decodes one header and, unless it is a sentinel, the record that
// follows from data. It returns the number of bytes consumed.
func (c *RecordCodec) Decode(data []byte) (Header, Record, int, error) {
	sr := &sliceReader{data: data}
	h, err := c.ReadHeader(sr)
	if err != nil {
		return 0, None, sr.pos, err
	}
	if h.IsSentinel() {
		return h, None, sr.pos, nil
	}
	r, err := c.ReadRecord(h, sr)
	if err != nil {
		return 0, None, sr.pos, err
	}
	return h, r, sr.pos, nil
}

// sliceReader adapts a byte slice to Reader
type sliceReader struct {
	data []byte
	pos  int
}

func (s *sliceReader) ReadFull(p []byte) error {
	if len(s.data)-s.pos < len(p) {
		s.pos = len(s.data)
		return ErrTruncated
	}
	copy(p, s.data[s.pos:])
	s.pos += len(p)
	return nil
}
