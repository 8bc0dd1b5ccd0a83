package operator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/stream"
)

// Identity forwards every record unchanged
type Identity struct {
	Base
}

func newIdentity(config.Operator) (Operator, error) {
	return &Identity{Base: NewBase(KindMap)}, nil
}

func (o *Identity) Map(rec codec.Record) (codec.Record, error) { return rec, nil }

// Project keeps the fields listed in the "fields" param, in that order
type Project struct {
	Base
	indexes []int
}

func newProject(config.Operator) (Operator, error) {
	return &Project{Base: NewBase(KindMap)}, nil
}

func (o *Project) Open(ctx *Context) error {
	if err := o.Base.Open(ctx); err != nil {
		return err
	}
	spec := strings.TrimSpace(ctx.Params["fields"])
	if spec == "" {
		return fmt.Errorf("project requires a fields param")
	}
	o.indexes = o.indexes[:0]
	for _, part := range strings.Split(spec, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 0 {
			return fmt.Errorf("invalid field index %q", part)
		}
		o.indexes = append(o.indexes, i)
	}
	return nil
}

func (o *Project) Map(rec codec.Record) (codec.Record, error) {
	fields := make([]codec.Field, len(o.indexes))
	for i, idx := range o.indexes {
		if idx >= rec.Len() {
			return codec.None, fmt.Errorf("field %d out of range for %s", idx, rec)
		}
		fields[i] = rec.Field(idx)
	}
	if len(fields) == 1 {
		return codec.Scalar(fields[0]), nil
	}
	return codec.Tuple(fields...), nil
}

// DropNulls drops records holding a null field
type DropNulls struct {
	Base
}

func newDropNulls(config.Operator) (Operator, error) {
	return &DropNulls{Base: NewBase(KindFilter)}, nil
}

func (o *DropNulls) Filter(rec codec.Record) (bool, error) {
	for _, f := range rec.Fields() {
		if f.IsNull() {
			return false, nil
		}
	}
	return true, nil
}

// Count emits the size of each batch as a Long
type Count struct {
	Base
}

func newCount(config.Operator) (Operator, error) {
	return &Count{Base: NewBase(KindReduce)}, nil
}

func (o *Count) Reduce(values stream.Iterator, out stream.Collector) error {
	var n int64
	for {
		ok, err := values.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := values.Next(); err != nil {
			return err
		}
		n++
	}
	return out.Emit(codec.Scalar(codec.Long(n)))
}

// Concat emits the left group followed by the right group
type Concat struct {
	Base
}

func newConcat(config.Operator) (Operator, error) {
	return &Concat{Base: NewBase(KindCoGroup)}, nil
}

func (o *Concat) CoGroup(left, right stream.Iterator, out stream.Collector) error {
	for _, it := range []stream.Iterator{left, right} {
		recs, err := it.All()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := out.Emit(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Pair joins or crosses two records by concatenating their fields, so two
// scalars become a 2-tuple
type Pair struct {
	Base
}

func newPair(cfg config.Operator) (Operator, error) {
	kind := KindJoin
	if cfg.Kind != "" {
		kind = Kind(cfg.Kind)
	}
	if kind != KindJoin && kind != KindCross {
		return nil, fmt.Errorf("%w: pair runs as join or cross, not %s", ErrKindMismatch, kind)
	}
	return &Pair{Base: NewBase(kind)}, nil
}

func (o *Pair) Join(left, right codec.Record) (codec.Record, error) {
	return pair(left, right)
}

func (o *Pair) Cross(left, right codec.Record) (codec.Record, error) {
	return pair(left, right)
}

func pair(left, right codec.Record) (codec.Record, error) {
	if left.Len()+right.Len() > codec.MaxFields {
		return codec.None, fmt.Errorf("pair of %d and %d fields exceeds %d", left.Len(), right.Len(), codec.MaxFields)
	}
	fields := make([]codec.Field, 0, left.Len()+right.Len())
	fields = append(fields, left.Fields()...)
	fields = append(fields, right.Fields()...)
	return codec.Tuple(fields...), nil
}
