// Package operator is the thin layer between the record protocol and user
// logic. An Operator is opened with the session Context, wired to a
// downstream Collector, driven by the runner for its kind, and closed.
package operator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/stream"
)

var (
	// ErrUnknownOperator is returned for names missing from the registry
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrKindMismatch is returned when an operator cannot serve the requested kind
	ErrKindMismatch = errors.New("operator kind mismatch")
)

// Kind selects how an operator consumes its input
type Kind string

const (
	KindMap     Kind = "map"
	KindFlatMap Kind = "flatmap"
	KindFilter  Kind = "filter"
	KindReduce  Kind = "reduce"
	KindCoGroup Kind = "cogroup"
	KindJoin    Kind = "join"
	KindCross   Kind = "cross"
)

// Kinds lists every operator kind
var Kinds = []Kind{KindMap, KindFlatMap, KindFilter, KindReduce, KindCoGroup, KindJoin, KindCross}

// ParseKind validates s as a Kind
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, s)
}

// RecordAtATime reports whether the kind maps each input record independently
func (k Kind) RecordAtATime() bool {
	return k == KindMap || k == KindFlatMap || k == KindFilter
}

// Context is what an operator sees of its session
type Context struct {
	Broadcast map[string][]codec.Record
	Params    map[string]string
	Logger    *slog.Logger
}

// Operator is the capability set shared by every operator
type Operator interface {
	Kind() Kind
	Open(ctx *Context) error
	EmitTo(next stream.Collector)
	Output() stream.Collector
	Close() error
}

// Mapper turns each record into exactly one record
type Mapper interface {
	Map(rec codec.Record) (codec.Record, error)
}

// FlatMapper turns each record into any number of records
type FlatMapper interface {
	FlatMap(rec codec.Record, out stream.Collector) error
}

// Filterer keeps the records it accepts
type Filterer interface {
	Filter(rec codec.Record) (bool, error)
}

// Reducer consumes one batch of records sharing a key
type Reducer interface {
	Reduce(values stream.Iterator, out stream.Collector) error
}

// CoGrouper consumes the two groups of one co-group batch
type CoGrouper interface {
	CoGroup(left, right stream.Iterator, out stream.Collector) error
}

// Joiner combines a matched pair of records
type Joiner interface {
	Join(left, right codec.Record) (codec.Record, error)
}

// Crosser combines one pair of a cross product
type Crosser interface {
	Cross(left, right codec.Record) (codec.Record, error)
}

// Base implements the bookkeeping part of Operator
type Base struct {
	kind Kind
	ctx  *Context
	out  stream.Collector
}

// NewBase returns a Base for an operator of kind
func NewBase(kind Kind) Base {
	return Base{kind: kind}
}

// Kind returns the operator kind
func (b *Base) Kind() Kind { return b.kind }

// Open stores the session context
func (b *Base) Open(ctx *Context) error {
	b.ctx = ctx
	return nil
}

// EmitTo sets the downstream collector
func (b *Base) EmitTo(next stream.Collector) { b.out = next }

// Output returns the downstream collector
func (b *Base) Output() stream.Collector { return b.out }

// Close is a no-op
func (b *Base) Close() error { return nil }

// Context returns the context passed to Open
func (b *Base) Context() *Context { return b.ctx }

// Logger returns the session logger, or the default logger before Open
func (b *Base) Logger() *slog.Logger {
	if b.ctx == nil || b.ctx.Logger == nil {
		return slog.Default()
	}
	return b.ctx.Logger
}
