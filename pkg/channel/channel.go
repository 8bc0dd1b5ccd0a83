// Package channel provides the duplex byte transports a worker session runs
// over: standard pipes and sockets, an in-process buffer, and a pair of buffer
// files re-read on host signal.
package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// ErrChannelClosed is returned when the transport ends before a read or write
// could complete
var ErrChannelClosed = errors.New("channel closed")

// Channel is a duplex byte stream between the worker and its host.
//
// ReadFull blocks until exactly len(p) bytes were read. Write hands bytes to
// the transport; Flush pushes buffered writes out. Reset repositions the read
// cursor to the start of the current segment without affecting writes; calling
// it repeatedly has the same effect as calling it once.
type Channel interface {
	ReadFull(p []byte) error
	Write(p []byte) error
	Flush() error
	Reset() error
	Close() error
}

// Kind names a transport binding
type Kind string

const (
	KindStdio  Kind = "stdio"
	KindTCP    Kind = "tcp"
	KindUnix   Kind = "unix"
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
)

// Options selects and parameterizes a transport
type Options struct {
	Kind       Kind
	Address    string // tcp or unix endpoint
	InputPath  string // file transport input buffer
	OutputPath string // file transport output buffer
	SignalAddr string // optional UDP address for file transport readiness
	NotifyAddr string // optional UDP address notified after file transport flushes
}

// Open builds the channel described by opts
func Open(opts Options) (Channel, error) {
	switch opts.Kind {
	case KindStdio, "":
		return NewStream(os.Stdin, os.Stdout, os.Stdin), nil
	case KindTCP, KindUnix:
		return Dial(string(opts.Kind), opts.Address)
	case KindFile:
		f, err := OpenFile(FileConfig{
			InputPath:  opts.InputPath,
			OutputPath: opts.OutputPath,
			SignalAddr: opts.SignalAddr,
			NotifyAddr: opts.NotifyAddr,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindMemory:
		return NewMemory(nil), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Kind)
	}
}

// Dial connects to the host over a tcp or unix socket
func Dial(network, address string) (Channel, error) {
	if address == "" {
		return nil, fmt.Errorf("%s transport requires an address", network)
	}
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial host: %w", err)
	}
	return NewStream(conn, conn, conn), nil
}

// closedErr maps end-of-stream conditions to ErrChannelClosed
func closedErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed):
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	default:
		return err
	}
}
