package operator

import (
	"fmt"
	"os"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/stream"
)

// Script runs a user function written in Starlark. The script defines a
// function named after the operator kind: map(v), flatmap(v), filter(v),
// reduce(values), cogroup(left, right), join(a, b) or cross(a, b).
//
// Scalar records arrive as plain values and tuples as Starlark tuples.
// Returned tuples and lists become tuple records. flatmap returns an iterable
// of results; reduce and cogroup may return a list to emit several records
// or None to emit nothing. Broadcast variables are predeclared as the
// broadcast dict and operator params as the params dict.
type Script struct {
	Base
	name   string
	source string
	thread *starlark.Thread
	fn     starlark.Callable
}

// NewScript creates a Starlark operator. cfg.Script is either the program
// text or the path of a .star file.
func NewScript(cfg config.Operator) (Operator, error) {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	source, name := cfg.Script, "operator.star"
	if strings.HasSuffix(source, ".star") && !strings.Contains(source, "\n") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		source, name = string(data), cfg.Script
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("starlark operator requires a script")
	}
	return &Script{Base: NewBase(kind), name: name, source: source}, nil
}

// Open executes the script and resolves the function for the operator kind
func (s *Script) Open(ctx *Context) error {
	if err := s.Base.Open(ctx); err != nil {
		return err
	}
	logger := s.Logger()
	s.thread = &starlark.Thread{
		Name: s.name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg, "script", s.name)
		},
	}

	predeclared, err := s.predeclared(ctx)
	if err != nil {
		return err
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, s.thread, s.name, s.source, predeclared)
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}

	fnName := string(s.Kind())
	fn, ok := globals[fnName].(starlark.Callable)
	if !ok {
		return fmt.Errorf("%w: script does not define %s()", ErrKindMismatch, fnName)
	}
	s.fn = fn
	return nil
}

func (s *Script) predeclared(ctx *Context) (starlark.StringDict, error) {
	broadcast := starlark.NewDict(len(ctx.Broadcast))
	for name, recs := range ctx.Broadcast {
		values := make([]starlark.Value, len(recs))
		for i, rec := range recs {
			values[i] = recordValue(rec)
		}
		if err := broadcast.SetKey(starlark.String(name), starlark.NewList(values)); err != nil {
			return nil, err
		}
	}
	params := starlark.NewDict(len(ctx.Params))
	for k, v := range ctx.Params {
		if err := params.SetKey(starlark.String(k), starlark.String(v)); err != nil {
			return nil, err
		}
	}
	broadcast.Freeze()
	params.Freeze()
	return starlark.StringDict{"broadcast": broadcast, "params": params}, nil
}

func (s *Script) call(args ...starlark.Value) (starlark.Value, error) {
	if s.fn == nil {
		return nil, fmt.Errorf("script operator used before Open")
	}
	v, err := starlark.Call(s.thread, s.fn, starlark.Tuple(args), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.fn.Name(), err)
	}
	return v, nil
}

func (s *Script) Map(rec codec.Record) (codec.Record, error) {
	v, err := s.call(recordValue(rec))
	if err != nil {
		return codec.None, err
	}
	return valueRecord(v)
}

func (s *Script) FlatMap(rec codec.Record, out stream.Collector) error {
	v, err := s.call(recordValue(rec))
	if err != nil {
		return err
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return fmt.Errorf("flatmap must return an iterable, got %s", v.Type())
	}
	it := iterable.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		res, err := valueRecord(x)
		if err != nil {
			return err
		}
		if err := out.Emit(res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Script) Filter(rec codec.Record) (bool, error) {
	v, err := s.call(recordValue(rec))
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func (s *Script) Reduce(values stream.Iterator, out stream.Collector) error {
	list, err := iteratorList(values)
	if err != nil {
		return err
	}
	v, err := s.call(list)
	if err != nil {
		return err
	}
	return emitResult(v, out)
}

func (s *Script) CoGroup(left, right stream.Iterator, out stream.Collector) error {
	l, err := iteratorList(left)
	if err != nil {
		return err
	}
	r, err := iteratorList(right)
	if err != nil {
		return err
	}
	v, err := s.call(l, r)
	if err != nil {
		return err
	}
	return emitResult(v, out)
}

func (s *Script) Join(left, right codec.Record) (codec.Record, error) {
	v, err := s.call(recordValue(left), recordValue(right))
	if err != nil {
		return codec.None, err
	}
	return valueRecord(v)
}

func (s *Script) Cross(left, right codec.Record) (codec.Record, error) {
	return s.Join(left, right)
}

func iteratorList(it stream.Iterator) (*starlark.List, error) {
	recs, err := it.All()
	if err != nil {
		return nil, err
	}
	values := make([]starlark.Value, len(recs))
	for i, rec := range recs {
		values[i] = recordValue(rec)
	}
	return starlark.NewList(values), nil
}

func emitResult(v starlark.Value, out stream.Collector) error {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil
	case *starlark.List:
		for i := 0; i < v.Len(); i++ {
			rec, err := valueRecord(v.Index(i))
			if err != nil {
				return err
			}
			if err := out.Emit(rec); err != nil {
				return err
			}
		}
		return nil
	default:
		rec, err := valueRecord(v)
		if err != nil {
			return err
		}
		return out.Emit(rec)
	}
}

func recordValue(rec codec.Record) starlark.Value {
	if rec.IsScalar() {
		return fieldValue(rec.Value())
	}
	values := make(starlark.Tuple, rec.Len())
	for i, f := range rec.Fields() {
		values[i] = fieldValue(f)
	}
	return values
}

func fieldValue(f codec.Field) starlark.Value {
	switch f.Kind() {
	case codec.KindBoolean:
		return starlark.Bool(f.Bool())
	case codec.KindByte, codec.KindShort, codec.KindInteger, codec.KindLong:
		return starlark.MakeInt64(f.Int64())
	case codec.KindFloat, codec.KindDouble:
		return starlark.Float(f.Float64())
	case codec.KindString:
		return starlark.String(f.Str())
	case codec.KindBytes:
		return starlark.Bytes(f.Raw())
	default:
		return starlark.None
	}
}

func valueRecord(v starlark.Value) (codec.Record, error) {
	var elems []starlark.Value
	switch v := v.(type) {
	case starlark.Tuple:
		elems = v
	case *starlark.List:
		for i := 0; i < v.Len(); i++ {
			elems = append(elems, v.Index(i))
		}
	default:
		f, err := valueField(v)
		if err != nil {
			return codec.None, err
		}
		return codec.Scalar(f), nil
	}

	if len(elems) == 0 || len(elems) > codec.MaxFields {
		return codec.None, fmt.Errorf("tuple of %d values has no record form", len(elems))
	}
	fields := make([]codec.Field, len(elems))
	for i, e := range elems {
		f, err := valueField(e)
		if err != nil {
			return codec.None, fmt.Errorf("element %d: %w", i, err)
		}
		fields[i] = f
	}
	return codec.Tuple(fields...), nil
}

func valueField(v starlark.Value) (codec.Field, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return codec.Null(), nil
	case starlark.Bool:
		return codec.Bool(bool(v)), nil
	case starlark.Int:
		n, ok := v.Int64()
		if !ok {
			return codec.Field{}, fmt.Errorf("integer %s overflows a long", v)
		}
		return codec.Long(n), nil
	case starlark.Float:
		return codec.Double(float64(v)), nil
	case starlark.String:
		return codec.String(string(v)), nil
	case starlark.Bytes:
		return codec.Bytes([]byte(v)), nil
	default:
		return codec.Field{}, fmt.Errorf("%s value has no field form", v.Type())
	}
}
