package codec

import (
	"errors"
	"fmt"
)

// ErrProtocol is the root of every wire format violation. A stream that
// produced it is desynchronized and cannot be resumed.
var ErrProtocol = errors.New("protocol error")

// ErrTruncated is returned when a byte slice ends in the middle of a record
var ErrTruncated = &ProtocolError{Op: "decode", Msg: "truncated record"}

// ProtocolError describes a malformed header, field tag or payload
type ProtocolError struct {
	Op  string
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrProtocol, e.Op, e.Msg)
}

// Unwrap lets errors.Is match ErrProtocol
func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

func protocolErrorf(op, format string, args ...any) error {
	return &ProtocolError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
