// Package worker drives one protocol session: it reads the broadcast
// variables, runs the configured operator chain over the host's records and
// flushes the results back over the same channel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/codec"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/legacy"
	"github.com/ssargent/tether/pkg/operator"
	"github.com/ssargent/tether/pkg/stream"
)

// Session states reported by Stats
const (
	StateIdle      = "idle"
	StateBroadcast = "broadcast"
	StateRunning   = "running"
	StateDone      = "done"
	StateFailed    = "failed"
)

// Stats is a snapshot of a worker session
type Stats struct {
	SessionID      string    `json:"session_id,omitempty"`
	State          string    `json:"state"`
	Operator       string    `json:"operator"`
	Protocol       string    `json:"protocol"`
	Broadcast      int       `json:"broadcast_variables"`
	RecordsIn      uint64    `json:"records_in"`
	RecordsOut     uint64    `json:"records_out"`
	GroupsFinished uint64    `json:"groups_finished"`
	ProtocolErrors uint64    `json:"protocol_errors"`
	StartedAt      time.Time `json:"started_at,omitempty"`
}

// sessionObserver is implemented by observers that time whole sessions
type sessionObserver interface {
	ObserveSession(d time.Duration)
}

// Worker runs sessions over one channel
type Worker struct {
	cfg      *config.Config
	ch       channel.Channel
	registry *operator.Registry
	observer stream.Observer
	logger   *slog.Logger

	mutex     sync.Mutex
	sessionID ksuid.KSUID
	state     string
	startedAt time.Time
	broadcast int

	recordsIn      atomic.Uint64
	recordsOut     atomic.Uint64
	groupsFinished atomic.Uint64
	protocolErrors atomic.Uint64
}

// New creates a worker. observer and logger may be nil.
func New(cfg *config.Config, ch channel.Channel, registry *operator.Registry, observer stream.Observer, logger *slog.Logger) *Worker {
	if observer == nil {
		observer = stream.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = operator.NewRegistry()
	}
	return &Worker{
		cfg:      cfg,
		ch:       ch,
		registry: registry,
		observer: observer,
		logger:   logger,
		state:    StateIdle,
	}
}

// Run executes one session. Cancelling ctx closes the channel and returns
// ctx.Err() right away: a read blocked on a transport that Close cannot
// interrupt, such as an inherited stdin pipe, is left to end with the process.
func (w *Worker) Run(ctx context.Context) (err error) {
	id := ksuid.New()
	logger := w.logger.With("session", id.String())
	started := time.Now()
	w.begin(id, started)

	defer func() {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(ctxErr, err)
		}
		if err != nil {
			w.finish(StateFailed)
			logger.Error("session failed", "error", err, "duration", time.Since(started))
		} else {
			w.finish(StateDone)
			logger.Info("session finished",
				"records_in", w.recordsIn.Load(),
				"records_out", w.recordsOut.Load(),
				"duration", time.Since(started))
		}
		if so, ok := w.observer.(sessionObserver); ok {
			so.ObserveSession(time.Since(started))
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- w.session(logger)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Warn("session cancelled, closing channel")
		_ = w.ch.Close()
		return ctx.Err()
	}
}

// session runs the broadcast phase and the operator chain
func (w *Worker) session(logger *slog.Logger) error {
	chain, err := w.registry.Build(w.cfg.Operator, w.cfg.Chain)
	if err != nil {
		return err
	}
	head := chain.Head().Kind()

	observer := &statsObserver{worker: w, next: w.observer}
	var (
		src  stream.Source
		sink stream.Collector
	)
	switch w.cfg.Protocol {
	case config.ProtocolLegacy:
		if head == operator.KindCoGroup {
			return fmt.Errorf("%w: legacy protocol cannot carry co-group input", operator.ErrKindMismatch)
		}
		src = legacy.NewCursor(w.ch, observer)
		sink = legacy.NewEmitter(w.ch, observer)
	case config.ProtocolBinary, "":
		opts := []stream.Option{stream.WithObserver(observer), stream.WithLogger(logger)}
		src = stream.NewCursor(w.ch, opts...)
		sink = stream.NewEmitter(w.ch, opts...)
	default:
		return fmt.Errorf("%w: unknown protocol %q", config.ErrInvalidConfig, w.cfg.Protocol)
	}
	logger.Info("session started", "operator", w.cfg.Operator.Name, "kind", head, "protocol", w.protocol(), "chain", chain.Len())

	var table map[string][]codec.Record
	if w.cfg.Broadcast {
		w.setState(StateBroadcast)
		table, err = stream.ReadBroadcastTable(src, w.ch)
		if err != nil {
			return fmt.Errorf("failed to read broadcast variables: %w", err)
		}
		w.mutex.Lock()
		w.broadcast = len(table)
		w.mutex.Unlock()
		logger.Debug("broadcast variables received", "count", len(table))
	}

	if err := chain.Connect(sink); err != nil {
		return err
	}
	if err := chain.Open(table, logger); err != nil {
		return err
	}
	w.setState(StateRunning)

	runErr := chain.Run(operator.Input{
		Records: src,
		Reader:  w.ch,
		Options: []stream.Option{stream.WithObserver(observer), stream.WithLogger(logger)},
		Closer:  w.ch,
	})
	closeErr := chain.Close()
	if runErr != nil {
		return fmt.Errorf("failed to run operator: %w", runErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if err := w.ch.Flush(); err != nil {
		return fmt.Errorf("failed to flush channel: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the current or last session
func (w *Worker) Stats() Stats {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	s := Stats{
		State:          w.state,
		Operator:       w.cfg.Operator.Name,
		Protocol:       w.protocol(),
		Broadcast:      w.broadcast,
		RecordsIn:      w.recordsIn.Load(),
		RecordsOut:     w.recordsOut.Load(),
		GroupsFinished: w.groupsFinished.Load(),
		ProtocolErrors: w.protocolErrors.Load(),
		StartedAt:      w.startedAt,
	}
	if w.sessionID != ksuid.Nil {
		s.SessionID = w.sessionID.String()
	}
	return s
}

func (w *Worker) protocol() string {
	if w.cfg.Protocol == "" {
		return config.ProtocolBinary
	}
	return w.cfg.Protocol
}

func (w *Worker) begin(id ksuid.KSUID, started time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.sessionID = id
	w.startedAt = started
	w.state = StateIdle
	w.broadcast = 0
	w.recordsIn.Store(0)
	w.recordsOut.Store(0)
	w.groupsFinished.Store(0)
	w.protocolErrors.Store(0)
}

// setState moves a running session forward. A session that already ended
// keeps its final state.
func (w *Worker) setState(state string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.state == StateDone || w.state == StateFailed {
		return
	}
	w.state = state
}

func (w *Worker) finish(state string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.state = state
}

// statsObserver counts events for Stats and forwards them
type statsObserver struct {
	worker *Worker
	next   stream.Observer
}

func (o *statsObserver) RecordRead(group uint8) {
	o.worker.recordsIn.Add(1)
	o.next.RecordRead(group)
}

func (o *statsObserver) RecordWritten(group uint8) {
	o.worker.recordsOut.Add(1)
	o.next.RecordWritten(group)
}

func (o *statsObserver) GroupFinished(group uint8) {
	o.worker.groupsFinished.Add(1)
	o.next.GroupFinished(group)
}

func (o *statsObserver) QueueDepth(group uint8, depth int) {
	o.next.QueueDepth(group, depth)
}

func (o *statsObserver) ProtocolError(err error) {
	o.worker.protocolErrors.Add(1)
	o.next.ProtocolError(err)
}
