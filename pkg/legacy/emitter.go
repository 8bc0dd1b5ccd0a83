package legacy

import (
	"encoding/binary"

	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/stream"
)

// endFrame is the length prefix -1
var endFrame = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// Emitter writes each record as a frame as soon as it is emitted
type Emitter struct {
	dst      stream.Writer
	buf      []byte
	observer stream.Observer
}

var _ stream.Collector = (*Emitter)(nil)

// NewEmitter creates a legacy emitter writing to dst
func NewEmitter(dst stream.Writer, observer stream.Observer) *Emitter {
	if observer == nil {
		observer = stream.NopObserver{}
	}
	return &Emitter{dst: dst, observer: observer}
}

// Emit writes rec as one frame
func (e *Emitter) Emit(rec codec.Record) error {
	buf, err := AppendTuple(append(e.buf[:0], 0, 0, 0, 0), rec)
	if err != nil {
		return err
	}
	size := len(buf) - 4
	if size > codec.MaxPayloadSize {
		return protocolError("encode frame", "frame of %d bytes exceeds limit", size)
	}
	binary.BigEndian.PutUint32(buf, uint32(size))
	e.buf = buf

	if err := e.dst.Write(buf); err != nil {
		return err
	}
	e.observer.RecordWritten(0)
	return nil
}

// Finish writes the end-of-group frame and flushes the channel
func (e *Emitter) Finish() error {
	if err := e.dst.Write(endFrame[:]); err != nil {
		return err
	}
	e.observer.GroupFinished(0)
	return e.dst.Flush()
}
