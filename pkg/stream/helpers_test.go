package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
)

// encodeGroup returns the wire form of recs as one group, as an Emitter writes it
func encodeGroup(t *testing.T, group uint8, recs ...codec.Record) []byte {
	t.Helper()
	out := channel.NewMemory(nil)
	e := NewEmitter(out, WithGroup(group))
	for _, rec := range recs {
		require.NoError(t, e.Emit(rec))
	}
	require.NoError(t, e.Finish())
	return out.Output()
}

// encodeRecord returns the wire form of one record with explicit flags
func encodeRecord(t *testing.T, rec codec.Record, last bool, group uint8) []byte {
	t.Helper()
	b, err := codec.NewRecordCodec().Encode(rec, last, group)
	require.NoError(t, err)
	return b
}

func ints(vals ...int32) []codec.Record {
	out := make([]codec.Record, len(vals))
	for i, v := range vals {
		out[i] = codec.Scalar(codec.Int(v))
	}
	return out
}

func requireRecords(t *testing.T, want, got []codec.Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Truef(t, want[i].Equal(got[i]), "record %d: want %s, got %s", i, want[i], got[i])
	}
}

type countingObserver struct {
	read, written, finished [2]int
	protocolErrors          int
}

func (o *countingObserver) RecordRead(g uint8)    { o.read[g]++ }
func (o *countingObserver) RecordWritten(g uint8) { o.written[g]++ }
func (o *countingObserver) GroupFinished(g uint8) { o.finished[g]++ }
func (o *countingObserver) QueueDepth(uint8, int) {}
func (o *countingObserver) ProtocolError(error)   { o.protocolErrors++ }
