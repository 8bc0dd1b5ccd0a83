package legacy

import (
	"encoding/binary"
	"errors"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/stream"
)

// endOfGroup is the frame length that terminates a group
const endOfGroup = -1

// Cursor pulls the frames of one group. It mirrors stream.Cursor: HasNext
// reads at most one length prefix and remembers it, and the end-of-group
// frame exhausts the cursor until Reset.
type Cursor struct {
	src       codec.Reader
	size      int
	probed    bool
	exhausted bool
	observer  stream.Observer
}

var _ stream.BatchSource = (*Cursor)(nil)

// Marker is the frame content that opens a reduce batch. It travels as a
// group of its own, followed by the end-of-group frame.
func Marker() codec.Record {
	return codec.Scalar(codec.Bool(true))
}

// NewCursor creates a legacy cursor reading from src
func NewCursor(src codec.Reader, observer stream.Observer) *Cursor {
	if observer == nil {
		observer = stream.NopObserver{}
	}
	return &Cursor{src: src, observer: observer}
}

// HasNext reports whether another frame follows in the current group
func (c *Cursor) HasNext() (bool, error) {
	if c.exhausted {
		return false, nil
	}
	if c.probed {
		return true, nil
	}

	var prefix [4]byte
	if err := c.src.ReadFull(prefix[:]); err != nil {
		return false, c.fail(err)
	}
	size := int32(binary.BigEndian.Uint32(prefix[:]))
	switch {
	case size == endOfGroup:
		c.exhausted = true
		c.observer.GroupFinished(0)
		return false, nil
	case size < 0 || size > codec.MaxPayloadSize:
		return false, c.fail(protocolError("decode frame", "frame length %d out of range", size))
	}
	c.size = int(size)
	c.probed = true
	return true, nil
}

// Next returns the next record, or codec.None once the group is exhausted
func (c *Cursor) Next() (codec.Record, error) {
	ok, err := c.HasNext()
	if err != nil || !ok {
		return codec.None, err
	}

	c.probed = false
	msg := make([]byte, c.size)
	if err := c.src.ReadFull(msg); err != nil {
		return codec.None, c.fail(err)
	}
	rec, err := ParseTuple(msg)
	if err != nil {
		return codec.None, c.fail(err)
	}
	c.observer.RecordRead(0)
	return rec, nil
}

// All drains the remaining records of the group
func (c *Cursor) All() ([]codec.Record, error) {
	var out []codec.Record
	for {
		rec, err := c.Next()
		if err != nil {
			return out, err
		}
		if rec.IsNone() {
			return out, nil
		}
		out = append(out, rec)
	}
}

// NextBatch consumes a marker group and re-arms the cursor for the batch. The
// end-of-group frame in its place ends the input and reports false.
func (c *Cursor) NextBatch() (bool, error) {
	marker, err := c.Next()
	if err != nil {
		return false, err
	}
	if marker.IsNone() {
		return false, nil
	}
	if !marker.Equal(Marker()) {
		return false, c.fail(protocolError("read batch", "expected batch marker, got %s", marker))
	}
	more, err := c.HasNext()
	if err != nil {
		return false, err
	}
	if more {
		return false, c.fail(protocolError("read batch", "batch marker does not end its group"))
	}
	c.Reset()
	return true, nil
}

// Reset re-arms the cursor for the next segment
func (c *Cursor) Reset() {
	c.exhausted = false
	c.probed = false
}

func (c *Cursor) fail(err error) error {
	if errors.Is(err, codec.ErrProtocol) {
		c.observer.ProtocolError(err)
	}
	return err
}
