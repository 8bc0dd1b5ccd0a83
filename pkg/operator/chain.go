package operator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/stream"
)

// Collect adapts a record-at-a-time operator into a Collector that applies
// it and forwards results to the operator's output
func Collect(op Operator) (stream.Collector, error) {
	switch op.Kind() {
	case KindMap:
		if m, ok := op.(Mapper); ok {
			return &mapCollector{op: op, fn: m}, nil
		}
	case KindFlatMap:
		if f, ok := op.(FlatMapper); ok {
			return &flatMapCollector{op: op, fn: f}, nil
		}
	case KindFilter:
		if f, ok := op.(Filterer); ok {
			return &filterCollector{op: op, fn: f}, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s operator cannot run record at a time", ErrKindMismatch, op.Kind())
	}
	return nil, mismatch(op)
}

type mapCollector struct {
	op Operator
	fn Mapper
}

func (c *mapCollector) Emit(rec codec.Record) error {
	res, err := c.fn.Map(rec)
	if err != nil {
		return err
	}
	return c.op.Output().Emit(res)
}

func (c *mapCollector) Finish() error { return c.op.Output().Finish() }

type flatMapCollector struct {
	op Operator
	fn FlatMapper
}

func (c *flatMapCollector) Emit(rec codec.Record) error { return c.fn.FlatMap(rec, c.op.Output()) }

func (c *flatMapCollector) Finish() error { return c.op.Output().Finish() }

type filterCollector struct {
	op Operator
	fn Filterer
}

func (c *filterCollector) Emit(rec codec.Record) error {
	keep, err := c.fn.Filter(rec)
	if err != nil || !keep {
		return err
	}
	return c.op.Output().Emit(rec)
}

func (c *filterCollector) Finish() error { return c.op.Output().Finish() }

type link struct {
	name   string
	op     Operator
	params map[string]string
}

// Chain is a head operator followed by record-at-a-time operators, each
// feeding the next. The last one feeds the sink given to Connect.
type Chain struct {
	links []link
}

// Add appends op to the chain. Every operator after the head must be a
// record-at-a-time kind.
func (c *Chain) Add(name string, op Operator, params map[string]string) error {
	if len(c.links) > 0 && !op.Kind().RecordAtATime() {
		return fmt.Errorf("%w: %s cannot be chained (%s)", ErrKindMismatch, name, op.Kind())
	}
	c.links = append(c.links, link{name: name, op: op, params: params})
	return nil
}

// Head returns the first operator
func (c *Chain) Head() Operator {
	if len(c.links) == 0 {
		return nil
	}
	return c.links[0].op
}

// Len returns the number of operators
func (c *Chain) Len() int { return len(c.links) }

// Connect wires each operator to its successor and the last to sink
func (c *Chain) Connect(sink stream.Collector) error {
	next := sink
	for i := len(c.links) - 1; i >= 0; i-- {
		op := c.links[i].op
		op.EmitTo(next)
		if i == 0 {
			break
		}
		col, err := Collect(op)
		if err != nil {
			return err
		}
		next = col
	}
	return nil
}

// Open opens every operator with a context carrying its own params
func (c *Chain) Open(broadcast map[string][]codec.Record, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for i, l := range c.links {
		ctx := &Context{
			Broadcast: broadcast,
			Params:    l.params,
			Logger:    logger.With("operator", l.name, "position", i),
		}
		if err := l.op.Open(ctx); err != nil {
			return fmt.Errorf("failed to open operator %s: %w", l.name, err)
		}
	}
	return nil
}

// Run drives the head operator
func (c *Chain) Run(in Input) error {
	head := c.Head()
	if head == nil {
		return errors.New("empty operator chain")
	}
	return Run(head, in)
}

// Close closes every operator in order and joins their errors
func (c *Chain) Close() error {
	var errs []error
	for _, l := range c.links {
		if err := l.op.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close operator %s: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}
