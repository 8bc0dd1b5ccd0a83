package channel

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_ReadAndReplay(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input")
	outputPath := filepath.Join(dir, "out", "output")
	require.NoError(t, os.WriteFile(inputPath, []byte{1, 2, 3}, 0600))

	f, err := OpenFile(FileConfig{InputPath: inputPath, OutputPath: outputPath})
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 3)
	require.NoError(t, f.ReadFull(buf))
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.ErrorIs(t, f.ReadFull(buf[:1]), ErrChannelClosed)

	// The host rewrites the buffer with the next segment
	require.NoError(t, os.WriteFile(inputPath, []byte{4, 5}, 0600))
	require.NoError(t, f.Reset())
	require.NoError(t, f.Reset())
	require.NoError(t, f.ReadFull(buf[:2]))
	assert.Equal(t, []byte{4, 5}, buf[:2])

	require.NoError(t, f.Write([]byte("out")))
	require.NoError(t, f.Flush())
	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "out", string(data))
}

func TestFile_WaitsForSignal(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input")
	require.NoError(t, os.WriteFile(inputPath, []byte{1}, 0600))

	f, err := OpenFile(FileConfig{
		InputPath:  inputPath,
		OutputPath: filepath.Join(dir, "output"),
		SignalAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	defer f.Close()

	b := make([]byte, 1)
	require.NoError(t, f.ReadFull(b))
	require.NoError(t, f.Reset())

	done := make(chan error, 1)
	go func() {
		done <- f.ReadFull(b)
	}()

	select {
	case <-done:
		t.Fatal("read after reset must wait for the host signal")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(inputPath, []byte{7}, 0600))
	conn, err := net.Dial("udp", f.SignalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{1})
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, byte(7), b[0])
	case <-time.After(5 * time.Second):
		t.Fatal("read did not resume after signal")
	}
}

func TestFile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenFile(FileConfig{
		InputPath:  filepath.Join(dir, "missing"),
		OutputPath: filepath.Join(dir, "output"),
	})
	assert.Error(t, err)
}
