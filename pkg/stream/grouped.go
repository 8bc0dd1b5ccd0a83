package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ssargent/tether/pkg/codec"
)

// GroupedCursor exposes the two groups of a co-group stream as independent
// blocking iterators.
//
// A background Receiver owns every read of the channel until both groups have
// ended. It pushes each record onto its group's queue and marks a group done
// on its last record or sentinel. Queues, done flags and the receive error are
// guarded by one mutex and condition variable.
//
// Queues are unbounded: a consumer that drains one group while the host keeps
// sending the other makes the other queue grow without limit. A host that
// never finishes a group blocks its consumer forever; there is no timeout.
type GroupedCursor struct {
	src      codec.Reader
	codec    *codec.RecordCodec
	mutex    sync.Mutex
	cond     *sync.Cond
	queues   [2]recordQueue
	done     [2]bool
	err      error
	finished chan struct{} // closed when the current receiver exits
	opts     options
}

// NewGroupedCursor creates a grouped cursor and starts its Receiver
func NewGroupedCursor(src codec.Reader, opts ...Option) *GroupedCursor {
	g := &GroupedCursor{
		src:   src,
		codec: codec.NewRecordCodec(),
		opts:  buildOptions(opts),
	}
	g.cond = sync.NewCond(&g.mutex)
	g.start()
	return g
}

func (g *GroupedCursor) start() {
	g.finished = make(chan struct{})
	go g.receive(g.finished)
}

// receive is the Receiver loop
func (g *GroupedCursor) receive(finished chan struct{}) {
	defer close(finished)

	for {
		g.mutex.Lock()
		complete := g.done[0] && g.done[1]
		g.mutex.Unlock()
		if complete {
			g.opts.logger.Debug("co-group batch received")
			return
		}

		h, err := g.codec.ReadHeader(g.src)
		if err != nil {
			g.abort(err)
			return
		}
		group := h.Group()

		g.mutex.Lock()
		alreadyDone := g.done[group]
		g.mutex.Unlock()
		if alreadyDone {
			g.abort(fmt.Errorf("%w: record for finished group %d", codec.ErrProtocol, group))
			return
		}

		if h.IsSentinel() {
			g.markDone(group)
			continue
		}

		rec, err := g.codec.ReadRecord(h, g.src)
		if err != nil {
			g.abort(err)
			return
		}
		g.opts.observer.RecordRead(group)

		g.mutex.Lock()
		g.queues[group].push(rec)
		depth := g.queues[group].len()
		if h.IsLast() {
			g.done[group] = true
		}
		g.cond.Broadcast()
		g.mutex.Unlock()

		g.opts.observer.QueueDepth(group, depth)
		if h.IsLast() {
			g.opts.observer.GroupFinished(group)
		}
	}
}

func (g *GroupedCursor) markDone(group uint8) {
	g.mutex.Lock()
	g.done[group] = true
	g.cond.Broadcast()
	g.mutex.Unlock()
	g.opts.observer.GroupFinished(group)
}

// abort records the first receive error and releases every waiter
func (g *GroupedCursor) abort(err error) {
	g.mutex.Lock()
	if g.err == nil {
		g.err = err
	}
	g.done[0], g.done[1] = true, true
	g.cond.Broadcast()
	g.mutex.Unlock()

	if errors.Is(err, codec.ErrProtocol) {
		g.opts.observer.ProtocolError(err)
	}
	g.opts.logger.Error("co-group receiver stopped", "error", err)
}

// waitLocked blocks until group has a record, has ended, or the receiver failed
func (g *GroupedCursor) waitLocked(group uint8) {
	for g.queues[group].len() == 0 && !g.done[group] {
		g.cond.Wait()
	}
}

// HasNext reports whether group has another record, blocking until known
func (g *GroupedCursor) HasNext(group uint8) (bool, error) {
	if err := checkGroup(group); err != nil {
		return false, err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.waitLocked(group)
	if g.err != nil {
		return false, g.err
	}
	return g.queues[group].len() > 0, nil
}

// Next pops the next record of group, or returns codec.None once it ended
func (g *GroupedCursor) Next(group uint8) (codec.Record, error) {
	if err := checkGroup(group); err != nil {
		return codec.None, err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.waitLocked(group)
	if g.err != nil {
		return codec.None, g.err
	}
	if g.queues[group].len() == 0 {
		return codec.None, nil
	}
	rec := g.queues[group].pop()
	g.cond.Broadcast()
	g.opts.observer.QueueDepth(group, g.queues[group].len())
	return rec, nil
}

// All drains the remaining records of group
func (g *GroupedCursor) All(group uint8) ([]codec.Record, error) {
	return drain(g.Group(group))
}

// Group returns an Iterator bound to one group
func (g *GroupedCursor) Group(group uint8) Iterator {
	return &groupIterator{cursor: g, group: group}
}

// Depth returns the number of queued records for group
func (g *GroupedCursor) Depth(group uint8) int {
	if checkGroup(group) != nil {
		return 0
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.queues[group].len()
}

// Wait joins the current Receiver and returns its error, if any
func (g *GroupedCursor) Wait() error {
	<-g.finished
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.err
}

// Reset joins the current Receiver, discards both queues and done flags, and
// starts a fresh Receiver for the next batch. A receive error is permanent: the
// stream is desynchronized and Reset returns it without restarting.
func (g *GroupedCursor) Reset() error {
	if err := g.Wait(); err != nil {
		return err
	}

	g.mutex.Lock()
	g.queues[0].clear()
	g.queues[1].clear()
	g.done[0], g.done[1] = false, false
	g.mutex.Unlock()

	g.start()
	return nil
}

func checkGroup(group uint8) error {
	if group > 1 {
		return fmt.Errorf("group %d out of range", group)
	}
	return nil
}

type groupIterator struct {
	cursor *GroupedCursor
	group  uint8
}

func (it *groupIterator) HasNext() (bool, error)       { return it.cursor.HasNext(it.group) }
func (it *groupIterator) Next() (codec.Record, error)  { return it.cursor.Next(it.group) }
func (it *groupIterator) All() ([]codec.Record, error) { return drain(it) }

// recordQueue is a FIFO of records
type recordQueue struct {
	items []codec.Record
	head  int
}

func (q *recordQueue) push(rec codec.Record) {
	q.items = append(q.items, rec)
}

func (q *recordQueue) pop() codec.Record {
	rec := q.items[q.head]
	q.items[q.head] = codec.None
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return rec
}

func (q *recordQueue) len() int {
	return len(q.items) - q.head
}

func (q *recordQueue) clear() {
	q.items = nil
	q.head = 0
}
