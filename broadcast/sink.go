//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/planloop/planloop-go/planning"
)

// ErrSinkClosed is returned by Send after the sink is closed.
var ErrSinkClosed = errors.New("broadcast: sink closed")

// ChanSink is an in-process planning.EventSink backed by a channel. It is
// the sink to use when embedding the coordination core: consume Events()
// from your own goroutine.
type ChanSink struct {
	id        string
	events    chan *planning.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ planning.EventSink = (*ChanSink)(nil)

// NewChanSink creates a channel sink. buffer bounds how many undelivered
// events the consumer may fall behind by before Send blocks.
func NewChanSink(id string, buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = defaultQueueSize
	}
	return &ChanSink{
		id:     id,
		events: make(chan *planning.Event, buffer),
		done:   make(chan struct{}),
	}
}

// ID identifies the sink.
func (s *ChanSink) ID() string {
	return s.id
}

// Events returns the channel delivered events arrive on.
func (s *ChanSink) Events() <-chan *planning.Event {
	return s.events
}

// Send delivers one event, blocking until the consumer keeps up, the sink
// closes or the context expires.
func (s *ChanSink) Send(ctx context.Context, event *planning.Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the sink. Pending Sends return ErrSinkClosed; the events
// channel is left open so late consumers drain without panics.
func (s *ChanSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// Done is closed when the sink closes.
func (s *ChanSink) Done() <-chan struct{} {
	return s.done
}
