package stream

import (
	"errors"
	"fmt"

	"github.com/ssargent/tether/pkg/codec"
)

// Cursor pulls the records of one group from a channel.
//
// HasNext reads at most one header and remembers it, so repeated calls are
// free. The record carrying the last flag, or a sentinel header, exhausts the
// cursor; after that Next returns codec.None until Reset is called.
type Cursor struct {
	src       codec.Reader
	codec     *codec.RecordCodec
	header    codec.Header
	probed    bool
	exhausted bool
	opts      options
}

// NewCursor creates a cursor reading from src
func NewCursor(src codec.Reader, opts ...Option) *Cursor {
	return &Cursor{
		src:   src,
		codec: codec.NewRecordCodec(),
		opts:  buildOptions(opts),
	}
}

// HasNext reports whether another record follows in the current group
func (c *Cursor) HasNext() (bool, error) {
	if c.exhausted {
		return false, nil
	}
	if c.probed {
		return true, nil
	}

	h, err := c.codec.ReadHeader(c.src)
	if err != nil {
		return false, c.fail(err)
	}
	if h.IsSentinel() {
		c.exhausted = true
		c.opts.observer.GroupFinished(h.Group())
		return false, nil
	}
	c.header = h
	c.probed = true
	return true, nil
}

// Next returns the next record, or codec.None once the group is exhausted
func (c *Cursor) Next() (codec.Record, error) {
	ok, err := c.HasNext()
	if err != nil || !ok {
		return codec.None, err
	}

	rec, err := c.codec.ReadRecord(c.header, c.src)
	c.probed = false
	if err != nil {
		return codec.None, c.fail(err)
	}
	c.opts.observer.RecordRead(c.header.Group())
	if c.header.IsLast() {
		c.exhausted = true
		c.opts.observer.GroupFinished(c.header.Group())
	}
	return rec, nil
}

// All drains the remaining records of the group
func (c *Cursor) All() ([]codec.Record, error) {
	return drain(c)
}

// NextBatch consumes the marker byte that opens a reduce or co-group batch
// and re-arms the cursor for the batch. A sentinel in its place ends the
// input and reports false.
func (c *Cursor) NextBatch() (bool, error) {
	h := c.header
	if !c.probed {
		var err error
		if h, err = c.codec.ReadHeader(c.src); err != nil {
			return false, c.fail(err)
		}
	}
	c.probed = false

	switch {
	case h.IsBatchMarker():
		c.exhausted = false
		return true, nil
	case h.IsSentinel():
		c.exhausted = true
		c.opts.observer.GroupFinished(h.Group())
		return false, nil
	default:
		return false, c.fail(&codec.ProtocolError{
			Op:  "read batch",
			Msg: fmt.Sprintf("expected batch marker, got header 0x%02x", byte(h)),
		})
	}
}

// Exhausted reports whether the group has ended
func (c *Cursor) Exhausted() bool {
	return c.exhausted
}

// Reset re-arms the cursor for the next segment. A header read by HasNext but
// not yet consumed is dropped along with the exhausted state.
func (c *Cursor) Reset() {
	c.exhausted = false
	c.probed = false
}

func (c *Cursor) fail(err error) error {
	if errors.Is(err, codec.ErrProtocol) {
		c.opts.observer.ProtocolError(err)
	}
	return err
}
