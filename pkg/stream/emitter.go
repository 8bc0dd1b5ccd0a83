package stream

import (
	"github.com/ssargent/tether/pkg/codec"
)

const lastFlag = 0x20

// Emitter writes records for one group, always one record behind the
// producer. The held-back record is only written once the next Emit proves it
// is not the last one, or by Finish with the last flag set. Finish without a
// held-back record writes the group's sentinel instead.
type Emitter struct {
	dst        Writer
	codec      *codec.RecordCodec
	pending    []byte
	hasPending bool
	scratch    []byte
	opts       options
}

// NewEmitter creates an emitter writing to dst
func NewEmitter(dst Writer, opts ...Option) *Emitter {
	return &Emitter{
		dst:   dst,
		codec: codec.NewRecordCodec(),
		opts:  buildOptions(opts),
	}
}

// Emit hands a record to the emitter. The record is encoded immediately so
// a record without a wire form is rejected here, not at a later flush.
func (e *Emitter) Emit(rec codec.Record) error {
	encoded, err := e.codec.AppendRecord(e.scratch[:0], rec, false, e.opts.group)
	if err != nil {
		return err
	}

	if e.hasPending {
		if err := e.write(e.pending); err != nil {
			return err
		}
	}

	e.scratch, e.pending = e.pending, encoded
	e.hasPending = true
	return nil
}

// Finish terminates the current group and flushes the channel
func (e *Emitter) Finish() error {
	if e.hasPending {
		e.pending[0] |= lastFlag
		if err := e.write(e.pending); err != nil {
			return err
		}
		e.hasPending = false
	} else {
		if err := e.dst.Write(e.codec.EncodeSentinel(e.opts.group)); err != nil {
			return err
		}
	}
	e.opts.observer.GroupFinished(e.opts.group)
	return e.dst.Flush()
}

// Pending reports whether a record is held back
func (e *Emitter) Pending() bool {
	return e.hasPending
}

func (e *Emitter) write(encoded []byte) error {
	if err := e.dst.Write(encoded); err != nil {
		return err
	}
	e.opts.observer.RecordWritten(e.opts.group)
	return nil
}
