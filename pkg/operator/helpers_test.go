package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/stream"
)

// input accumulates the bytes a host would send
type input struct {
	t   *testing.T
	mem *channel.Memory
}

func newInput(t *testing.T) *input {
	return &input{t: t, mem: channel.NewMemory(nil)}
}

// group appends one complete group
func (in *input) group(group uint8, recs ...codec.Record) *input {
	e := stream.NewEmitter(in.mem, stream.WithGroup(group))
	for _, rec := range recs {
		require.NoError(in.t, e.Emit(rec))
	}
	require.NoError(in.t, e.Finish())
	return in
}

// marker appends a batch marker
func (in *input) marker() *input {
	require.NoError(in.t, in.mem.Write([]byte{codec.BatchMarker}))
	return in
}

// end appends the end-of-input sentinel
func (in *input) end() *input {
	return in.group(0)
}

func (in *input) bytes() []byte {
	return in.mem.Output()
}

// runChain runs a chain built from cfgs over data and returns what it wrote
func runChain(t *testing.T, data []byte, broadcast map[string][]codec.Record, cfgs ...config.Operator) ([]byte, error) {
	t.Helper()
	chain, err := NewRegistry().Build(cfgs[0], cfgs[1:])
	require.NoError(t, err)

	src := channel.NewMemory(data)
	out := channel.NewMemory(nil)
	require.NoError(t, chain.Connect(stream.NewEmitter(out)))
	require.NoError(t, chain.Open(broadcast, nil))
	runErr := chain.Run(Input{Records: stream.NewCursor(src), Reader: src})
	require.NoError(t, chain.Close())
	return out.Output(), runErr
}

// groups decodes n consecutive groups
func groups(t *testing.T, data []byte, n int) [][]codec.Record {
	t.Helper()
	c := stream.NewCursor(channel.NewMemory(data))
	out := make([][]codec.Record, n)
	for i := range out {
		recs, err := c.All()
		require.NoError(t, err)
		out[i] = recs
		c.Reset()
	}
	return out
}

func requireRecords(t *testing.T, want, got []codec.Record) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for i := range want {
		require.Truef(t, want[i].Equal(got[i]), "record %d: want %s, got %s", i, want[i], got[i])
	}
}

func ints(vals ...int64) []codec.Record {
	out := make([]codec.Record, len(vals))
	for i, v := range vals {
		out[i] = codec.Scalar(codec.Long(v))
	}
	return out
}

func str(s string) codec.Record { return codec.Scalar(codec.String(s)) }
