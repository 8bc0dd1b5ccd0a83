package codec

import "fmt"

const (
	groupBit    = 0x80
	sentinelBit = 0x40
	lastBit     = 0x20
	countMask   = 0x1F

	// MaxFields is the largest field count a header can carry
	MaxFields = 31

	// Sentinel is the end-of-stream byte for group 0
	Sentinel byte = sentinelBit

	// BatchMarker opens a reduce or co-group batch. It is only read where a
	// single-group cursor expects the start of a batch.
	BatchMarker byte = groupBit
)

// Header is the single byte written in front of every record.
//
//	bit 7    group id (0 or 1)
//	bit 6    end-of-stream sentinel when set alone
//	bit 5    last record of the current group
//	bits 4-0 field count, 0 meaning one bare scalar field
type Header byte

// NewHeader builds a record header
func NewHeader(group uint8, last bool, count int) (Header, error) {
	if group > 1 {
		return 0, protocolErrorf("encode header", "group id %d out of range", group)
	}
	if count < 0 || count > MaxFields {
		return 0, protocolErrorf("encode header", "field count %d out of range", count)
	}
	h := Header(count)
	if group == 1 {
		h |= groupBit
	}
	if last {
		h |= lastBit
	}
	return h, nil
}

// SentinelHeader returns the end-of-stream header addressed to group
func SentinelHeader(group uint8) Header {
	if group == 1 {
		return Header(sentinelBit | groupBit)
	}
	return Header(sentinelBit)
}

// DecodeHeader validates a header byte read from the wire
func DecodeHeader(b byte) (Header, error) {
	h := Header(b)
	if b&sentinelBit != 0 && b&(lastBit|countMask) != 0 {
		return 0, protocolErrorf("decode header", "malformed header 0x%02x", b)
	}
	return h, nil
}

// Group returns the logical group id
func (h Header) Group() uint8 {
	if h&groupBit != 0 {
		return 1
	}
	return 0
}

// IsSentinel reports whether the header ends its group's stream
func (h Header) IsSentinel() bool { return h&sentinelBit != 0 }

// IsBatchMarker reports whether h is the batch marker byte
func (h Header) IsBatchMarker() bool { return byte(h) == BatchMarker }

// IsLast reports whether the record is the last of its group
func (h Header) IsLast() bool { return h&lastBit != 0 }

// FieldCount returns the raw field count; 0 means a bare scalar
func (h Header) FieldCount() int { return int(h & countMask) }

// IsScalar reports whether the record is a bare scalar
func (h Header) IsScalar() bool { return !h.IsSentinel() && h.FieldCount() == 0 }

func (h Header) String() string {
	if h.IsSentinel() {
		return fmt.Sprintf("group=%d end", h.Group())
	}
	return fmt.Sprintf("group=%d last=%t fields=%d", h.Group(), h.IsLast(), h.FieldCount())
}
