package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
)

func TestCursor_GroupTermination(t *testing.T) {
	for _, n := range []int{1, 2, 5, 100} {
		want := make([]codec.Record, n)
		for i := range want {
			want[i] = codec.Tuple(codec.Int(int32(i)), codec.String("v"))
		}
		ch := channel.NewMemory(encodeGroup(t, 0, want...))
		c := NewCursor(ch)

		for i := 0; i < n; i++ {
			ok, err := c.HasNext()
			require.NoError(t, err)
			require.True(t, ok, "record %d of %d", i, n)
			rec, err := c.Next()
			require.NoError(t, err)
			assert.True(t, want[i].Equal(rec))
		}
		ok, err := c.HasNext()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, c.Exhausted())
		assert.Equal(t, 0, ch.Remaining(), "no bytes past the last record are consumed")
	}
}

func TestCursor_EmptyGroup(t *testing.T) {
	ch := channel.NewMemory(encodeGroup(t, 0))
	c := NewCursor(ch)

	ok, err := c.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)

	recs, err := c.All()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCursor_NextAfterExhaustion(t *testing.T) {
	ch := channel.NewMemory(encodeGroup(t, 0, ints(7)...))
	c := NewCursor(ch)

	rec, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Value().Int64())

	for i := 0; i < 3; i++ {
		rec, err = c.Next()
		require.NoError(t, err)
		assert.True(t, rec.IsNone())
	}
}

func TestCursor_HasNextIsIdempotent(t *testing.T) {
	seg := encodeGroup(t, 0, ints(1, 2)...)
	ch := channel.NewMemory(seg)
	c := NewCursor(ch)

	for i := 0; i < 4; i++ {
		ok, err := c.HasNext()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, len(seg)-1, ch.Remaining(), "only one header byte is read")

	recs, err := c.All()
	require.NoError(t, err)
	requireRecords(t, ints(1, 2), recs)
}

func TestCursor_ResetReplaysSegment(t *testing.T) {
	want := []codec.Record{
		codec.Scalar(codec.String("first")),
		codec.Tuple(codec.Null(), codec.Double(1.5)),
	}
	ch := channel.NewMemory(encodeGroup(t, 0, want...))
	c := NewCursor(ch)

	first, err := c.All()
	require.NoError(t, err)
	requireRecords(t, want, first)

	require.NoError(t, ch.Reset())
	c.Reset()

	second, err := c.All()
	require.NoError(t, err)
	requireRecords(t, want, second)
}

func TestCursor_ResetPicksUpNextSegment(t *testing.T) {
	ch := channel.NewMemory(encodeGroup(t, 0, ints(1, 2)...))
	c := NewCursor(ch)

	recs, err := c.All()
	require.NoError(t, err)
	requireRecords(t, ints(1, 2), recs)

	ch.Publish(encodeGroup(t, 0, ints(3)...))
	require.NoError(t, ch.Reset())
	c.Reset()

	recs, err = c.All()
	require.NoError(t, err)
	requireRecords(t, ints(3), recs)
}

func TestCursor_ConsecutiveGroupsOnStream(t *testing.T) {
	var seg []byte
	seg = append(seg, encodeGroup(t, 0, ints(1, 2)...)...)
	seg = append(seg, encodeGroup(t, 0)...)
	seg = append(seg, encodeGroup(t, 0, ints(3)...)...)
	ch := channel.NewMemory(seg)
	c := NewCursor(ch)

	var batches [][]codec.Record
	for i := 0; i < 3; i++ {
		recs, err := c.All()
		require.NoError(t, err)
		batches = append(batches, recs)
		c.Reset()
	}
	requireRecords(t, ints(1, 2), batches[0])
	assert.Empty(t, batches[1])
	requireRecords(t, ints(3), batches[2])
}

func TestCursor_ChannelClosed(t *testing.T) {
	seg := encodeGroup(t, 0, codec.Scalar(codec.String("truncated")))
	ch := channel.NewMemory(seg[:len(seg)-3])
	c := NewCursor(ch)

	ok, err := c.HasNext()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, channel.ErrChannelClosed))
}

func TestCursor_ProtocolError(t *testing.T) {
	obs := &countingObserver{}
	ch := channel.NewMemory([]byte{0x41})
	c := NewCursor(ch, WithObserver(obs))

	_, err := c.HasNext()
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrProtocol))
	assert.Equal(t, 1, obs.protocolErrors)
}

func TestCursor_ObserverCounts(t *testing.T) {
	obs := &countingObserver{}
	ch := channel.NewMemory(encodeGroup(t, 0, ints(1, 2, 3)...))
	c := NewCursor(ch, WithObserver(obs))

	_, err := c.All()
	require.NoError(t, err)
	assert.Equal(t, 3, obs.read[0])
	assert.Equal(t, 1, obs.finished[0])
}

func TestCursor_NextBatch(t *testing.T) {
	var seg []byte
	seg = append(seg, codec.BatchMarker)
	seg = append(seg, encodeGroup(t, 0, ints(1, 2)...)...)
	seg = append(seg, codec.BatchMarker)
	seg = append(seg, encodeGroup(t, 0)...)
	seg = append(seg, codec.Sentinel)
	c := NewCursor(channel.NewMemory(seg))

	more, err := c.NextBatch()
	require.NoError(t, err)
	require.True(t, more)
	recs, err := c.All()
	require.NoError(t, err)
	requireRecords(t, ints(1, 2), recs)
	c.Reset()

	more, err = c.NextBatch()
	require.NoError(t, err)
	require.True(t, more)
	recs, err = c.All()
	require.NoError(t, err)
	assert.Empty(t, recs)
	c.Reset()

	more, err = c.NextBatch()
	require.NoError(t, err)
	assert.False(t, more, "sentinel ends the input")
	assert.True(t, c.Exhausted())
}

func TestCursor_NextBatchAfterHasNext(t *testing.T) {
	seg := append([]byte{codec.BatchMarker}, encodeGroup(t, 0, ints(7)...)...)
	c := NewCursor(channel.NewMemory(seg))

	ok, err := c.HasNext()
	require.NoError(t, err)
	require.True(t, ok)

	more, err := c.NextBatch()
	require.NoError(t, err)
	require.True(t, more)
	recs, err := c.All()
	require.NoError(t, err)
	requireRecords(t, ints(7), recs)
}

func TestCursor_NextBatchRejectsRecord(t *testing.T) {
	obs := &countingObserver{}
	c := NewCursor(channel.NewMemory(encodeGroup(t, 0, ints(1)...)), WithObserver(obs))

	_, err := c.NextBatch()
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrProtocol))
	assert.Equal(t, 1, obs.protocolErrors)
}
