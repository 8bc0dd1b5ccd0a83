package operator

import (
	"fmt"
	"io"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/stream"
)

// Input is the read side handed to a runner
type Input struct {
	// Records reads single-group input and batch markers
	Records stream.Source
	// Reader is the raw channel the co-group Receiver reads from
	Reader codec.Reader
	// Options configure the co-group cursor
	Options []stream.Option
	// Closer, when set, is closed if a co-group batch fails so the Receiver
	// blocked on Reader returns and can be joined. Without it the caller must
	// close the channel to release the Receiver.
	Closer io.Closer
}

// Run drives op over in until the host ends the input.
//
// Record-at-a-time kinds read one group and finish once. Join and cross read
// consecutive (left, right) pairs from one group and finish once. Reduce and
// co-group read a batch marker before each batch and finish after it; a
// sentinel where a marker belongs ends the input.
func Run(op Operator, in Input) error {
	out := op.Output()
	if out == nil {
		return fmt.Errorf("%s operator has no downstream collector", op.Kind())
	}

	switch op.Kind() {
	case KindMap, KindFlatMap, KindFilter:
		c, err := Collect(op)
		if err != nil {
			return err
		}
		return runRecords(in.Records, c)
	case KindJoin:
		j, ok := op.(Joiner)
		if !ok {
			return mismatch(op)
		}
		return runPairs(in.Records, j.Join, out)
	case KindCross:
		c, ok := op.(Crosser)
		if !ok {
			return mismatch(op)
		}
		return runPairs(in.Records, c.Cross, out)
	case KindReduce:
		r, ok := op.(Reducer)
		if !ok {
			return mismatch(op)
		}
		return runReduce(in.Records, r, out)
	case KindCoGroup:
		cg, ok := op.(CoGrouper)
		if !ok {
			return mismatch(op)
		}
		if in.Reader == nil {
			return fmt.Errorf("co-group input requires a raw reader")
		}
		return runCoGroup(in, cg, out)
	default:
		return mismatch(op)
	}
}

func mismatch(op Operator) error {
	return fmt.Errorf("%w: %T cannot run as %s", ErrKindMismatch, op, op.Kind())
}

func runRecords(src stream.Iterator, head stream.Collector) error {
	for {
		ok, err := src.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rec, err := src.Next()
		if err != nil {
			return err
		}
		if err := head.Emit(rec); err != nil {
			return err
		}
	}
	return head.Finish()
}

func runPairs(src stream.Iterator, combine func(left, right codec.Record) (codec.Record, error), out stream.Collector) error {
	for {
		left, err := src.Next()
		if err != nil {
			return err
		}
		if left.IsNone() {
			break
		}
		right, err := src.Next()
		if err != nil {
			return err
		}
		if right.IsNone() {
			return fmt.Errorf("%w: unpaired record %s", codec.ErrProtocol, left)
		}

		rec, err := combine(left, right)
		if err != nil {
			return err
		}
		if err := out.Emit(rec); err != nil {
			return err
		}
	}
	return out.Finish()
}

func runReduce(src stream.Source, r Reducer, out stream.Collector) error {
	for {
		more, err := nextBatch(src)
		if err != nil || !more {
			return err
		}

		if err := r.Reduce(src, out); err != nil {
			return err
		}
		// records the function left unread still belong to this batch
		if _, err := src.All(); err != nil {
			return err
		}
		src.Reset()
		if err := out.Finish(); err != nil {
			return err
		}
	}
}

func runCoGroup(in Input, cg CoGrouper, out stream.Collector) error {
	var grouped *stream.GroupedCursor
	// release stops the Receiver of a failed batch
	release := func(err error) error {
		if in.Closer != nil {
			_ = in.Closer.Close()
			_ = grouped.Wait()
		}
		return err
	}

	for {
		more, err := nextBatch(in.Records)
		if err != nil || !more {
			return err
		}

		if grouped == nil {
			grouped = stream.NewGroupedCursor(in.Reader, in.Options...)
		} else if err := grouped.Reset(); err != nil {
			return err
		}

		if err := cg.CoGroup(grouped.Group(0), grouped.Group(1), out); err != nil {
			return release(err)
		}
		for group := uint8(0); group < 2; group++ {
			if _, err := grouped.All(group); err != nil {
				return release(err)
			}
		}
		if err := grouped.Wait(); err != nil {
			return err
		}
		if err := out.Finish(); err != nil {
			return err
		}
	}
}

// nextBatch consumes a batch marker and re-arms src for the batch. It
// reports false when the host sent the end-of-input sentinel instead.
func nextBatch(src stream.Source) (bool, error) {
	bs, ok := src.(stream.BatchSource)
	if !ok {
		return false, fmt.Errorf("%T cannot read batch markers", src)
	}
	return bs.NextBatch()
}
