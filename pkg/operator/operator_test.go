package operator

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/stream"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"concat", "count", "drop-nulls", "identity", "pair", "project", "starlark"}, r.Names())

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.New(config.Operator{Name: "nope"})
		assert.True(t, errors.Is(err, ErrUnknownOperator))
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := r.New(config.Operator{Name: "identity", Kind: "reduce"})
		assert.True(t, errors.Is(err, ErrKindMismatch))
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := r.New(config.Operator{Name: "identity", Kind: "shuffle"})
		assert.True(t, errors.Is(err, ErrKindMismatch))
	})

	t.Run("pair kinds", func(t *testing.T) {
		op, err := r.New(config.Operator{Name: "pair"})
		require.NoError(t, err)
		assert.Equal(t, KindJoin, op.Kind())

		op, err = r.New(config.Operator{Name: "pair", Kind: "cross"})
		require.NoError(t, err)
		assert.Equal(t, KindCross, op.Kind())

		_, err = r.New(config.Operator{Name: "pair", Kind: "map"})
		assert.True(t, errors.Is(err, ErrKindMismatch))
	})

	t.Run("custom constructor", func(t *testing.T) {
		r.Register("custom", newIdentity)
		op, err := r.New(config.Operator{Name: "custom"})
		require.NoError(t, err)
		assert.Equal(t, KindMap, op.Kind())
	})
}

func TestChain_RecordAtATime(t *testing.T) {
	data := newInput(t).group(0,
		codec.Tuple(codec.String("a"), codec.Long(1), codec.Null()),
		codec.Tuple(codec.Null(), codec.Long(2), codec.Bool(true)),
		codec.Tuple(codec.String("c"), codec.Long(3), codec.Double(0.5)),
	).bytes()

	out, err := runChain(t, data, nil,
		config.Operator{Name: "identity", Kind: "map"},
		config.Operator{Name: "project", Kind: "map", Params: map[string]string{"fields": "0, 1"}},
		config.Operator{Name: "drop-nulls", Kind: "filter"},
	)
	require.NoError(t, err)

	got := groups(t, out, 1)[0]
	requireRecords(t, []codec.Record{
		codec.Tuple(codec.String("a"), codec.Long(1)),
		codec.Tuple(codec.String("c"), codec.Long(3)),
	}, got)
}

func TestChain_EmptyInputFinishesOnce(t *testing.T) {
	out, err := runChain(t, newInput(t).end().bytes(), nil, config.Operator{Name: "identity"})
	require.NoError(t, err)
	assert.Equal(t, []byte{codec.Sentinel}, out)
}

func TestChain_RejectsNonRecordKindsAfterHead(t *testing.T) {
	_, err := NewRegistry().Build(
		config.Operator{Name: "identity"},
		[]config.Operator{{Name: "count"}},
	)
	assert.True(t, errors.Is(err, ErrKindMismatch))
}

func TestProject_Errors(t *testing.T) {
	op, err := NewRegistry().New(config.Operator{Name: "project"})
	require.NoError(t, err)
	assert.Error(t, op.Open(&Context{}))
	assert.Error(t, op.Open(&Context{Params: map[string]string{"fields": "0,x"}}))

	require.NoError(t, op.Open(&Context{Params: map[string]string{"fields": "2"}}))
	_, err = op.(Mapper).Map(codec.Tuple(codec.Long(1)))
	assert.Error(t, err)

	rec, err := op.(Mapper).Map(codec.Tuple(codec.Long(1), codec.Long(2), codec.String("z")))
	require.NoError(t, err)
	assert.True(t, str("z").Equal(rec), "single projected field is a scalar")
}

func TestRun_Reduce(t *testing.T) {
	data := newInput(t).
		marker().group(0, ints(1, 2, 3)...).
		marker().group(0).
		marker().group(0, ints(4)...).
		end().bytes()

	out, err := runChain(t, data, nil, config.Operator{Name: "count", Kind: "reduce"})
	require.NoError(t, err)

	got := groups(t, out, 3)
	requireRecords(t, ints(3), got[0])
	requireRecords(t, ints(0), got[1])
	requireRecords(t, ints(1), got[2])
}

func TestRun_ReduceScript(t *testing.T) {
	data := newInput(t).
		marker().group(0, ints(1, 2, 3)...).
		marker().group(0, ints(4, 5)...).
		end().bytes()

	script := "def reduce(values):\n    return values[0]\n"
	out, err := runChain(t, data, nil, config.Operator{Name: "starlark", Kind: "reduce", Script: script})
	require.NoError(t, err)

	got := groups(t, out, 2)
	requireRecords(t, ints(1), got[0])
	requireRecords(t, ints(4), got[1])
}

func TestRun_ReduceWireBytes(t *testing.T) {
	data := []byte{
		0x80,                               // batch marker
		0x00, 0x07, 0x00, 0x00, 0x00, 0x05, // scalar Integer 5
		0x20, 0x07, 0x00, 0x00, 0x00, 0x06, // scalar Integer 6, last
		0x80,                               // batch marker
		0x40,                               // empty batch
		0x40,                               // end of input
	}

	out, err := runChain(t, data, nil, config.Operator{Name: "count", Kind: "reduce"})
	require.NoError(t, err)

	got := groups(t, out, 2)
	requireRecords(t, ints(2), got[0])
	requireRecords(t, ints(0), got[1])
}

func TestRun_CoGroup(t *testing.T) {
	data := newInput(t).
		marker().group(1, str("x")).group(0, str("a"), str("b")).
		marker().group(0).group(1, str("y"), str("z")).
		end().bytes()

	out, err := runChain(t, data, nil, config.Operator{Name: "concat", Kind: "cogroup"})
	require.NoError(t, err)

	got := groups(t, out, 2)
	requireRecords(t, []codec.Record{str("a"), str("b"), str("x")}, got[0])
	requireRecords(t, []codec.Record{str("y"), str("z")}, got[1])
}

func TestRun_JoinAndCross(t *testing.T) {
	for _, kind := range []string{"join", "cross"} {
		t.Run(kind, func(t *testing.T) {
			data := newInput(t).group(0,
				str("l1"), codec.Scalar(codec.Long(1)),
				codec.Tuple(codec.String("l2"), codec.Bool(false)), str("r2"),
			).bytes()

			out, err := runChain(t, data, nil, config.Operator{Name: "pair", Kind: kind})
			require.NoError(t, err)

			requireRecords(t, []codec.Record{
				codec.Tuple(codec.String("l1"), codec.Long(1)),
				codec.Tuple(codec.String("l2"), codec.Bool(false), codec.String("r2")),
			}, groups(t, out, 1)[0])
		})
	}
}

func TestRun_ProtocolViolations(t *testing.T) {
	t.Run("unpaired record", func(t *testing.T) {
		data := newInput(t).group(0, str("l1"), str("r1"), str("l2")).bytes()
		_, err := runChain(t, data, nil, config.Operator{Name: "pair"})
		assert.True(t, errors.Is(err, codec.ErrProtocol))
	})

	t.Run("bad marker", func(t *testing.T) {
		data := newInput(t).group(0, str("not a marker")).bytes()
		_, err := runChain(t, data, nil, config.Operator{Name: "count"})
		assert.True(t, errors.Is(err, codec.ErrProtocol))
	})

	t.Run("input ends without sentinel", func(t *testing.T) {
		data := newInput(t).marker().group(0, str("a")).bytes()
		_, err := runChain(t, data, nil, config.Operator{Name: "count"})
		assert.True(t, errors.Is(err, channel.ErrChannelClosed))
	})

	t.Run("truncated input", func(t *testing.T) {
		data := newInput(t).group(0, ints(1, 2)...).bytes()
		_, err := runChain(t, data[:len(data)-2], nil, config.Operator{Name: "identity"})
		assert.True(t, errors.Is(err, channel.ErrChannelClosed))
	})
}

func TestRun_WithoutOutput(t *testing.T) {
	op, err := NewRegistry().New(config.Operator{Name: "identity"})
	require.NoError(t, err)
	err = Run(op, Input{Records: stream.NewCursor(channel.NewMemory(nil))})
	assert.Error(t, err)
}

type failingCoGroup struct {
	Base
	err error
}

func (o *failingCoGroup) CoGroup(left, right stream.Iterator, out stream.Collector) error {
	return o.err
}

func TestRun_CoGroupFailureReleasesReceiver(t *testing.T) {
	pr, pw := io.Pipe()
	ch := channel.NewStream(pr, io.Discard, pr)
	go func() { _, _ = pw.Write([]byte{codec.BatchMarker}) }()

	boom := errors.New("boom")
	op := &failingCoGroup{Base: NewBase(KindCoGroup), err: boom}
	op.EmitTo(stream.NewEmitter(channel.NewMemory(nil)))

	done := make(chan error, 1)
	go func() {
		done <- Run(op, Input{Records: stream.NewCursor(ch), Reader: ch, Closer: ch})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the co-group function failed")
	}

	_, err := pw.Write([]byte{0x00})
	assert.ErrorIs(t, err, io.ErrClosedPipe, "channel is closed")
}

func TestRun_CoGroupWithoutReader(t *testing.T) {
	op, err := NewRegistry().New(config.Operator{Name: "concat"})
	require.NoError(t, err)
	op.EmitTo(stream.NewEmitter(channel.NewMemory(nil)))
	err = Run(op, Input{Records: stream.NewCursor(channel.NewMemory(nil))})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	assert.True(t, KindFilter.RecordAtATime())
	assert.False(t, KindCoGroup.RecordAtATime())
}
