package channel

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig holds configuration for the buffer-file transport
type FileConfig struct {
	InputPath  string // file the host writes each segment into
	OutputPath string // file the worker appends its records to
	SignalAddr string // UDP address to await a readiness datagram on before re-reading (optional)
	NotifyAddr string // UDP address notified after every flush (optional)
	BufferSize int    // read and write buffer size
}

// File is a channel over two buffer files. The host overwrites the input file
// with each self-contained segment and, when SignalAddr is set, sends one
// datagram once the segment is complete.
type File struct {
	input   *os.File
	output  *os.File
	reader  *bufio.Reader
	writer  *bufio.Writer
	signal  net.PacketConn
	notify  net.Conn
	rewound bool
	config  FileConfig
	mutex   sync.Mutex // guards writer and notify
}

// OpenFile opens the input and output buffer files
func OpenFile(config FileConfig) (*File, error) {
	if config.InputPath == "" || config.OutputPath == "" {
		return nil, fmt.Errorf("file transport requires input and output paths")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}

	input, err := os.Open(config.InputPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0750); err != nil {
		input.Close()
		return nil, err
	}
	output, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		input.Close()
		return nil, err
	}

	f := &File{
		input:  input,
		output: output,
		reader: bufio.NewReaderSize(input, config.BufferSize),
		writer: bufio.NewWriterSize(output, config.BufferSize),
		config: config,
	}

	if config.SignalAddr != "" {
		f.signal, err = net.ListenPacket("udp", config.SignalAddr)
		if err != nil {
			f.closeFiles()
			return nil, fmt.Errorf("failed to listen for host signal: %w", err)
		}
	}
	if config.NotifyAddr != "" {
		f.notify, err = net.Dial("udp", config.NotifyAddr)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to dial host notify address: %w", err)
		}
	}

	return f, nil
}

// SignalAddr returns the bound readiness address, useful when configured with port 0
func (f *File) SignalAddr() net.Addr {
	if f.signal == nil {
		return nil
	}
	return f.signal.LocalAddr()
}

// ReadFull reads exactly len(p) bytes from the input file
func (f *File) ReadFull(p []byte) error {
	if f.rewound {
		if err := f.rewind(); err != nil {
			return err
		}
	}
	_, err := io.ReadFull(f.reader, p)
	return closedErr(err)
}

// rewind waits for the host, then repositions to the start of the input file
func (f *File) rewind() error {
	if f.signal != nil {
		buf := make([]byte, 64)
		if _, _, err := f.signal.ReadFrom(buf); err != nil {
			return closedErr(err)
		}
	}
	if _, err := f.input.Seek(0, io.SeekStart); err != nil {
		return err
	}
	f.reader.Reset(f.input)
	f.rewound = false
	return nil
}

// Write buffers p for the output file
func (f *File) Write(p []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	_, err := f.writer.Write(p)
	return closedErr(err)
}

// Flush writes buffered output and notifies the host when configured
func (f *File) Flush() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.writer.Flush(); err != nil {
		return closedErr(err)
	}
	if f.notify != nil {
		if _, err := f.notify.Write([]byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// Reset rewinds to the start of the input file on the next read. The read
// position is restored lazily so repeated resets wait for a single signal.
func (f *File) Reset() error {
	f.rewound = true
	return nil
}

// Close flushes output and releases all handles
func (f *File) Close() error {
	flushErr := f.Flush()
	if f.signal != nil {
		f.signal.Close()
	}
	if f.notify != nil {
		f.notify.Close()
	}
	if err := f.closeFiles(); err != nil {
		return err
	}
	return flushErr
}

func (f *File) closeFiles() error {
	inErr := f.input.Close()
	if err := f.output.Close(); err != nil {
		return err
	}
	return inErr
}
