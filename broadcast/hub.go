//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package broadcast fans planning events out to the sinks connected to each
// session. Every sink gets its own bounded queue and worker goroutine, so a
// slow or dead connection only ever loses its own events.
package broadcast

import (
	"context"
	"sync"
	"time"

	itelemetry "github.com/planloop/planloop-go/internal/telemetry"
	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/planning"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

// options is the configuration for the hub.
type options struct {
	queueSize   int
	sendTimeout time.Duration
}

// Option is the option for the hub.
type Option func(*options)

var defaultOptions = options{
	queueSize:   defaultQueueSize,
	sendTimeout: defaultSendTimeout,
}

// WithQueueSize sets the per-sink queue capacity. Events beyond a full
// queue are dropped for that sink only.
func WithQueueSize(size int) Option {
	return func(opts *options) {
		if size > 0 {
			opts.queueSize = size
		}
	}
}

// WithSendTimeout bounds one delivery to a sink.
func WithSendTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		if timeout > 0 {
			opts.sendTimeout = timeout
		}
	}
}

// sinkWorker owns the queue and delivery goroutine of one registered sink.
type sinkWorker struct {
	sessionID     string
	participantID string
	sink          planning.EventSink
	queue         chan *planning.Event
	stop          chan struct{}
	stopOnce      sync.Once
}

func (w *sinkWorker) halt() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Hub is the per-session event fan-out. It implements planning.EventHub.
type Hub struct {
	mu sync.RWMutex
	// sessions maps session ID → participant ID → worker.
	sessions map[string]map[string]*sinkWorker
	closed   bool
	opts     options
}

var _ planning.EventHub = (*Hub)(nil)

// New creates a hub.
func New(options ...Option) *Hub {
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}
	return &Hub{
		sessions: make(map[string]map[string]*sinkWorker),
		opts:     opts,
	}
}

// Register attaches a sink for a participant, replacing and closing any
// previous sink for the same pair. When initial is non-nil it is enqueued
// before the registration becomes visible to Broadcast, so the new sink
// always sees it first.
func (h *Hub) Register(ctx context.Context, sessionID, participantID string, sink planning.EventSink, initial *planning.Event) error {
	if sink == nil {
		return planning.NewError(planning.CodeValidation, "sink is required")
	}
	w := &sinkWorker{
		sessionID:     sessionID,
		participantID: participantID,
		sink:          sink,
		queue:         make(chan *planning.Event, h.opts.queueSize),
		stop:          make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return planning.NewError(planning.CodeInternal, "event hub is closed")
	}
	sinks, ok := h.sessions[sessionID]
	if !ok {
		sinks = make(map[string]*sinkWorker)
		h.sessions[sessionID] = sinks
	}
	old := sinks[participantID]
	sinks[participantID] = w
	if initial != nil {
		// The queue is fresh and buffered; this cannot block.
		w.queue <- initial
		itelemetry.IncEventDelivered(ctx, string(initial.Type))
	}
	h.mu.Unlock()

	if old != nil {
		// Closing the old sink may block on a network write; callers
		// register under their own locks, so it cannot happen inline.
		go h.teardown(context.Background(), old)
		log.Debugf("Replaced sink for participant %s in session %s", participantID, sessionID)
	}
	go h.runWorker(w)
	itelemetry.AddConnections(ctx, 1)
	return nil
}

// Unregister detaches and closes the participant's sink, if any. Detaching
// an unknown participant is a no-op.
func (h *Hub) Unregister(sessionID, participantID string) {
	w := h.detach(sessionID, participantID, nil)
	if w == nil {
		return
	}
	h.teardown(context.Background(), w)
}

// Broadcast enqueues the event to every sink of the event's session. The
// sink set is snapshotted under the read lock; enqueueing never blocks, a
// full queue drops the event for that sink only.
func (h *Hub) Broadcast(ctx context.Context, event *planning.Event) {
	if event == nil {
		return
	}
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	sinks := h.sessions[event.SessionID]
	workers := make([]*sinkWorker, 0, len(sinks))
	for _, w := range sinks {
		workers = append(workers, w)
	}
	h.mu.RUnlock()

	for _, w := range workers {
		h.enqueue(ctx, w, event)
	}
}

// SendTo enqueues the event to one participant's sink. A missing sink drops
// the event silently; reconnecting clients recover through the next state
// sync.
func (h *Hub) SendTo(ctx context.Context, sessionID, participantID string, event *planning.Event) {
	if event == nil {
		return
	}
	h.mu.RLock()
	var w *sinkWorker
	if !h.closed {
		w = h.sessions[sessionID][participantID]
	}
	h.mu.RUnlock()
	if w == nil {
		log.Debugf("No sink for participant %s in session %s, event %s dropped",
			participantID, sessionID, event.Type)
		return
	}
	h.enqueue(ctx, w, event)
}

// Close stops every worker and closes every sink. Further Register calls
// fail; Broadcast and SendTo become no-ops.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var workers []*sinkWorker
	for _, sinks := range h.sessions {
		for _, w := range sinks {
			workers = append(workers, w)
		}
	}
	h.sessions = make(map[string]map[string]*sinkWorker)
	h.mu.Unlock()

	for _, w := range workers {
		h.teardown(context.Background(), w)
	}
	return nil
}

// enqueue offers the event to one worker without blocking.
func (h *Hub) enqueue(ctx context.Context, w *sinkWorker, event *planning.Event) {
	select {
	case w.queue <- event:
		itelemetry.IncEventDelivered(ctx, string(event.Type))
	default:
		itelemetry.IncEventDropped(ctx, string(event.Type))
		log.Warnf("Sink %s queue full, dropped %s event in session %s",
			w.sink.ID(), event.Type, w.sessionID)
	}
}

// runWorker drains one sink's queue in FIFO order. A delivery error evicts
// the sink; other sinks are unaffected.
func (h *Hub) runWorker(w *sinkWorker) {
	for {
		select {
		case <-w.stop:
			return
		case event := <-w.queue:
			ctx, cancel := context.WithTimeout(context.Background(), h.opts.sendTimeout)
			err := w.sink.Send(ctx, event)
			cancel()
			if err == nil {
				continue
			}
			log.Errorf("Deliver %s event to sink %s in session %s: %v",
				event.Type, w.sink.ID(), w.sessionID, err)
			if h.detach(w.sessionID, w.participantID, w) != nil {
				h.teardown(ctx, w)
			}
			return
		}
	}
}

// detach removes a worker from the registry. When expect is non-nil the
// entry is only removed if it still holds that worker, so an evicting
// worker never tears down its replacement.
func (h *Hub) detach(sessionID, participantID string, expect *sinkWorker) *sinkWorker {
	h.mu.Lock()
	defer h.mu.Unlock()
	sinks := h.sessions[sessionID]
	current := sinks[participantID]
	if current == nil || (expect != nil && current != expect) {
		return nil
	}
	delete(sinks, participantID)
	if len(sinks) == 0 {
		delete(h.sessions, sessionID)
	}
	return current
}

// teardown stops a detached worker and closes its sink.
func (h *Hub) teardown(ctx context.Context, w *sinkWorker) {
	w.halt()
	if err := w.sink.Close(); err != nil {
		log.Debugf("Close sink %s: %v", w.sink.ID(), err)
	}
	itelemetry.AddConnections(ctx, -1)
}
