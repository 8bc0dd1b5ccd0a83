package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
)

func TestEmitter_HoldsBackOneRecord(t *testing.T) {
	out := channel.NewMemory(nil)
	e := NewEmitter(out)

	a := codec.Scalar(codec.Int(1))
	b := codec.Scalar(codec.Int(2))

	require.NoError(t, e.Emit(a))
	assert.Empty(t, out.Output(), "first record is held back")
	assert.True(t, e.Pending())

	require.NoError(t, e.Emit(b))
	assert.Equal(t, encodeRecord(t, a, false, 0), out.Output())

	require.NoError(t, e.Finish())
	assert.False(t, e.Pending())

	want := append(encodeRecord(t, a, false, 0), encodeRecord(t, b, true, 0)...)
	assert.Equal(t, want, out.Output())
}

func TestEmitter_LastFlagOnlyOnFinalRecord(t *testing.T) {
	recs := ints(10, 20, 30, 40)
	data := encodeGroup(t, 0, recs...)

	c := codec.NewRecordCodec()
	var lasts []bool
	for len(data) > 0 {
		h, rec, n, err := c.Decode(data)
		require.NoError(t, err)
		require.False(t, rec.IsNone())
		lasts = append(lasts, h.IsLast())
		data = data[n:]
	}
	assert.Equal(t, []bool{false, false, false, true}, lasts)
}

func TestEmitter_FinishWithoutRecordsWritesSentinel(t *testing.T) {
	for _, tc := range []struct {
		group uint8
		want  byte
	}{
		{0, 0x40},
		{1, 0xC0},
	} {
		out := channel.NewMemory(nil)
		e := NewEmitter(out, WithGroup(tc.group))
		require.NoError(t, e.Finish())
		assert.Equal(t, []byte{tc.want}, out.Output())
	}
}

func TestEmitter_GroupBit(t *testing.T) {
	data := encodeGroup(t, 1, codec.Scalar(codec.Bool(true)))
	require.NotEmpty(t, data)
	assert.Equal(t, byte(0x80|0x20), data[0])
}

func TestEmitter_ReusableAcrossGroups(t *testing.T) {
	out := channel.NewMemory(nil)
	e := NewEmitter(out)

	require.NoError(t, e.Emit(codec.Scalar(codec.Int(1))))
	require.NoError(t, e.Finish())
	require.NoError(t, e.Finish())
	require.NoError(t, e.Emit(codec.Scalar(codec.Int(2))))
	require.NoError(t, e.Finish())

	var want []byte
	want = append(want, encodeRecord(t, codec.Scalar(codec.Int(1)), true, 0)...)
	want = append(want, codec.Sentinel)
	want = append(want, encodeRecord(t, codec.Scalar(codec.Int(2)), true, 0)...)
	assert.Equal(t, want, out.Output())
}

func TestEmitter_RejectsRecordWithoutWireForm(t *testing.T) {
	out := channel.NewMemory(nil)
	e := NewEmitter(out)

	require.NoError(t, e.Emit(codec.Scalar(codec.Int(1))))
	require.Error(t, e.Emit(codec.None))
	require.Error(t, e.Emit(codec.Tuple()))

	require.NoError(t, e.Finish())
	assert.Equal(t, encodeRecord(t, codec.Scalar(codec.Int(1)), true, 0), out.Output())
}

func TestEmitter_WriteError(t *testing.T) {
	out := channel.NewMemory(nil)
	require.NoError(t, out.Close())
	e := NewEmitter(out)

	require.NoError(t, e.Emit(codec.Scalar(codec.Int(1))))
	err := e.Emit(codec.Scalar(codec.Int(2)))
	assert.ErrorIs(t, err, channel.ErrChannelClosed)
}

func TestEmitter_RoundTripThroughCursor(t *testing.T) {
	want := []codec.Record{
		codec.Tuple(codec.String("k"), codec.Long(-1), codec.Bytes([]byte{0, 1})),
		codec.Scalar(codec.Null()),
		codec.Tuple(codec.Float(0.25), codec.Short(-2), codec.Byte(3), codec.Bool(false)),
	}
	ch := channel.NewMemory(nil)
	e := NewEmitter(ch)
	for _, rec := range want {
		require.NoError(t, e.Emit(rec))
	}
	require.NoError(t, e.Finish())

	got, err := NewCursor(channel.NewMemory(ch.Output())).All()
	require.NoError(t, err)
	requireRecords(t, want, got)
}
