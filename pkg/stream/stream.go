// Package stream implements the record iteration engine of a worker session:
// the single-group Cursor, the delayed-flush Emitter, and the GroupedCursor
// that demultiplexes a co-group stream into two independently paced groups.
//
// A channel carries one protocol session at a time. A Cursor and an Emitter
// may share it since one only reads and the other only writes; a
// GroupedCursor takes over all reads for as long as its Receiver runs.
package stream

import (
	"log/slog"

	"github.com/ssargent/tether/pkg/codec"
)

// Iterator is the pull side handed to operator code
type Iterator interface {
	HasNext() (bool, error)
	Next() (codec.Record, error)
	All() ([]codec.Record, error)
}

// Source is an Iterator that can be re-armed for the next segment
type Source interface {
	Iterator
	Reset()
}

// BatchSource is a Source that also reads the markers opening reduce and
// co-group batches
type BatchSource interface {
	Source
	// NextBatch consumes the next batch marker. It reports false when the
	// host ended the input instead.
	NextBatch() (bool, error)
}

// Collector is the push side handed to operator code
type Collector interface {
	Emit(rec codec.Record) error
	Finish() error
}

// Writer is the write side of a channel
type Writer interface {
	Write(p []byte) error
	Flush() error
}

// Observer receives protocol events, mostly for metrics
type Observer interface {
	RecordRead(group uint8)
	RecordWritten(group uint8)
	GroupFinished(group uint8)
	QueueDepth(group uint8, depth int)
	ProtocolError(err error)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) RecordRead(uint8)      {}
func (NopObserver) RecordWritten(uint8)   {}
func (NopObserver) GroupFinished(uint8)   {}
func (NopObserver) QueueDepth(uint8, int) {}
func (NopObserver) ProtocolError(error)   {}

// Option configures cursors and emitters
type Option func(*options)

type options struct {
	observer Observer
	logger   *slog.Logger
	group    uint8
}

// WithObserver reports protocol events to o
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithGroup binds an Emitter to a group id
func WithGroup(group uint8) Option {
	return func(opts *options) {
		opts.group = group
	}
}

func buildOptions(opts []Option) options {
	o := options{observer: NopObserver{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// drain collects the remaining records of it
func drain(it Iterator) ([]codec.Record, error) {
	var out []codec.Record
	for {
		ok, err := it.HasNext()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		rec, err := it.Next()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
