package channel

import (
	"bufio"
	"io"
	"sync"
)

const defaultBufferSize = 64 * 1024

// Stream is a channel over a reader and a writer, typically a pipe pair or a
// socket. The host writes segments back to back, so the start of the current
// segment is always the current read position and Reset has nothing to rewind.
type Stream struct {
	reader *bufio.Reader
	writer *bufio.Writer
	closer io.Closer
	mutex  sync.Mutex // guards writer
}

// NewStream wraps r and w. closer, if not nil, is closed by Close.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	return &Stream{
		reader: bufio.NewReaderSize(r, defaultBufferSize),
		writer: bufio.NewWriterSize(w, defaultBufferSize),
		closer: closer,
	}
}

// ReadFull reads exactly len(p) bytes
func (s *Stream) ReadFull(p []byte) error {
	_, err := io.ReadFull(s.reader, p)
	return closedErr(err)
}

// Write buffers p for the host
func (s *Stream) Write(p []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := s.writer.Write(p)
	return closedErr(err)
}

// Flush pushes buffered writes to the transport
func (s *Stream) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return closedErr(s.writer.Flush())
}

// Reset is a no-op for streams
func (s *Stream) Reset() error {
	return nil
}

// Close flushes and closes the underlying transport
func (s *Stream) Close() error {
	flushErr := s.Flush()
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return err
		}
	}
	return flushErr
}
