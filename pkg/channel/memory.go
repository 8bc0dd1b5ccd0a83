package channel

import (
	"fmt"
	"sync"
)

// Memory is an in-process buffer channel. The current segment plays the role
// of the shared buffer the host writes into: Publish queues the next segment,
// Reset rewinds, and the first read after a reset picks up the oldest queued
// segment or replays the current one when nothing new was published.
type Memory struct {
	mutex   sync.Mutex
	segment []byte
	pos     int
	pending [][]byte
	rewound bool
	output  []byte
	closed  bool
}

// NewMemory creates a channel whose first segment is segment
func NewMemory(segment []byte) *Memory {
	return &Memory{segment: segment}
}

// Publish queues a segment, as the host does after writing the shared buffer
func (m *Memory) Publish(segment []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pending = append(m.pending, segment)
}

// ReadFull copies len(p) bytes out of the current segment
func (m *Memory) ReadFull(p []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return ErrChannelClosed
	}
	if m.rewound {
		m.rewound = false
		if len(m.pending) > 0 {
			m.segment = m.pending[0]
			m.pending = m.pending[1:]
		}
	}
	if len(m.segment)-m.pos < len(p) {
		m.pos = len(m.segment)
		return fmt.Errorf("%w: segment exhausted", ErrChannelClosed)
	}
	copy(p, m.segment[m.pos:])
	m.pos += len(p)
	return nil
}

// Write appends p to the output buffer
func (m *Memory) Write(p []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrChannelClosed
	}
	m.output = append(m.output, p...)
	return nil
}

// Flush is a no-op
func (m *Memory) Flush() error {
	return nil
}

// Reset rewinds to the start of the current segment
func (m *Memory) Reset() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pos = 0
	m.rewound = true
	return nil
}

// Output returns a copy of everything written so far
func (m *Memory) Output() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]byte, len(m.output))
	copy(out, m.output)
	return out
}

// Remaining returns the number of unread bytes in the current segment
func (m *Memory) Remaining() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.segment) - m.pos
}

// Close marks the channel closed
func (m *Memory) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}
