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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop-go/planning"
)

func newEvent(id string, typ planning.EventType, sessionID string) *planning.Event {
	return &planning.Event{
		ID:        id,
		Type:      typ,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

func recvEvent(t *testing.T, sink *ChanSink) *planning.Event {
	t.Helper()
	select {
	case evt := <-sink.Events():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNoEvent(t *testing.T, sink *ChanSink) {
	t.Helper()
	select {
	case evt := <-sink.Events():
		t.Fatalf("unexpected event %s (%s)", evt.ID, evt.Type)
	default:
	}
}

func assertClosed(t *testing.T, sink *ChanSink) {
	t.Helper()
	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink to close")
	}
}

func TestRegisterDeliversInitialFirst(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	sink := NewChanSink("p-1", 4)
	initial := newEvent("evt-0", planning.EventStateSync, "sess-1")
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", sink, initial))

	live := newEvent("evt-1", planning.EventVenueAdded, "sess-1")
	h.Broadcast(ctx, live)

	assert.Equal(t, "evt-0", recvEvent(t, sink).ID, "initial snapshot arrives first")
	assert.Equal(t, "evt-1", recvEvent(t, sink).ID)
}

func TestRegisterNilSink(t *testing.T) {
	h := New()
	defer h.Close()

	err := h.Register(context.Background(), "sess-1", "p-1", nil, nil)
	assert.True(t, planning.IsCode(err, planning.CodeValidation), "got %v", err)
}

func TestBroadcastScopedToSession(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	sinkA1 := NewChanSink("a-1", 4)
	sinkA2 := NewChanSink("a-2", 4)
	sinkB := NewChanSink("b-1", 4)
	require.NoError(t, h.Register(ctx, "sess-a", "p-1", sinkA1, nil))
	require.NoError(t, h.Register(ctx, "sess-a", "p-2", sinkA2, nil))
	require.NoError(t, h.Register(ctx, "sess-b", "p-1", sinkB, nil))

	h.Broadcast(ctx, newEvent("evt-1", planning.EventVoteCast, "sess-a"))

	assert.Equal(t, "evt-1", recvEvent(t, sinkA1).ID)
	assert.Equal(t, "evt-1", recvEvent(t, sinkA2).ID)
	assertNoEvent(t, sinkB)

	// Nil events and unknown sessions are ignored.
	h.Broadcast(ctx, nil)
	h.Broadcast(ctx, newEvent("evt-2", planning.EventVoteCast, "sess-unknown"))
}

func TestBroadcastPerSinkFIFO(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	sink := NewChanSink("p-1", 16)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", sink, nil))

	const count = 10
	for i := 0; i < count; i++ {
		h.Broadcast(ctx, newEvent(fmt.Sprintf("evt-%02d", i), planning.EventCommentAdded, "sess-1"))
	}
	for i := 0; i < count; i++ {
		assert.Equal(t, fmt.Sprintf("evt-%02d", i), recvEvent(t, sink).ID)
	}
}

func TestRegisterReplacesPreviousSink(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	oldSink := NewChanSink("conn-1", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", oldSink, nil))

	newSink := NewChanSink("conn-2", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", newSink, nil))

	// The replaced sink is closed; the replacement gets the traffic.
	assertClosed(t, oldSink)
	h.Broadcast(ctx, newEvent("evt-1", planning.EventVenueAdded, "sess-1"))
	assert.Equal(t, "evt-1", recvEvent(t, newSink).ID)
}

// stuckCloseSink blocks inside Close until released, like a websocket peer
// that stops reading during the close handshake.
type stuckCloseSink struct {
	id        string
	closing   chan struct{}
	release   chan struct{}
	closeOnce sync.Once
}

func newStuckCloseSink(id string) *stuckCloseSink {
	return &stuckCloseSink{
		id:      id,
		closing: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *stuckCloseSink) ID() string { return s.id }

func (s *stuckCloseSink) Send(context.Context, *planning.Event) error { return nil }

func (s *stuckCloseSink) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	<-s.release
	return nil
}

func TestRegisterDoesNotWaitForReplacedSinkClose(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	stuck := newStuckCloseSink("conn-1")
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", stuck, nil))
	defer close(stuck.release)

	// Replacing the sink must return without waiting on the old Close;
	// callers hold their own locks while registering.
	done := make(chan error, 1)
	go func() {
		done <- h.Register(ctx, "sess-1", "p-1", NewChanSink("conn-2", 4), nil)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Register blocked on the replaced sink's Close")
	}

	// The old sink still gets torn down, just in the background.
	select {
	case <-stuck.closing:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced sink was never closed")
	}
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	sink := NewChanSink("p-1", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", sink, nil))

	h.Unregister("sess-1", "p-1")
	assertClosed(t, sink)

	// Unregistering twice, or an unknown participant, is a no-op.
	h.Unregister("sess-1", "p-1")
	h.Unregister("sess-1", "nobody")

	h.Broadcast(ctx, newEvent("evt-1", planning.EventVoteCast, "sess-1"))
	assertNoEvent(t, sink)
}

func TestSendTo(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	sink1 := NewChanSink("p-1", 4)
	sink2 := NewChanSink("p-2", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", sink1, nil))
	require.NoError(t, h.Register(ctx, "sess-1", "p-2", sink2, nil))

	h.SendTo(ctx, "sess-1", "p-2", newEvent("evt-1", planning.EventStateSync, "sess-1"))

	assert.Equal(t, "evt-1", recvEvent(t, sink2).ID)
	assertNoEvent(t, sink1)

	// Disconnected participants are dropped silently.
	h.SendTo(ctx, "sess-1", "nobody", newEvent("evt-2", planning.EventStateSync, "sess-1"))
	h.SendTo(ctx, "sess-1", "p-2", nil)
}

// blockingSink stalls its first delivery until release is closed, then
// records everything it receives.
type blockingSink struct {
	id        string
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once

	mu  sync.Mutex
	got []*planning.Event
}

func newBlockingSink(id string) *blockingSink {
	return &blockingSink{
		id:      id,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) ID() string { return s.id }

func (s *blockingSink) Send(_ context.Context, event *planning.Event) error {
	s.startOnce.Do(func() {
		close(s.started)
		<-s.release
	})
	s.mu.Lock()
	s.got = append(s.got, event)
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) Close() error { return nil }

func (s *blockingSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.got))
	for _, evt := range s.got {
		ids = append(ids, evt.ID)
	}
	return ids
}

func TestSlowSinkDropsOnlyItsOwnEvents(t *testing.T) {
	ctx := context.Background()
	h := New(WithQueueSize(1))
	defer h.Close()

	slow := newBlockingSink("slow")
	healthy := NewChanSink("healthy", 8)
	require.NoError(t, h.Register(ctx, "sess-1", "p-slow", slow, nil))
	require.NoError(t, h.Register(ctx, "sess-1", "p-ok", healthy, nil))

	// First event: the slow worker dequeues it and stalls inside Send,
	// leaving the queue empty.
	h.Broadcast(ctx, newEvent("evt-1", planning.EventVoteCast, "sess-1"))
	<-slow.started

	// Second event fills the queue; the third has nowhere to go.
	h.Broadcast(ctx, newEvent("evt-2", planning.EventVoteCast, "sess-1"))
	h.Broadcast(ctx, newEvent("evt-3", planning.EventVoteCast, "sess-1"))

	close(slow.release)

	assert.Eventually(t, func() bool {
		return len(slow.received()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"evt-1", "evt-2"}, slow.received(),
		"the overflow event is dropped, order is preserved")

	// The healthy sink saw everything.
	assert.Equal(t, "evt-1", recvEvent(t, healthy).ID)
	assert.Equal(t, "evt-2", recvEvent(t, healthy).ID)
	assert.Equal(t, "evt-3", recvEvent(t, healthy).ID)
}

// failingSink rejects every delivery and records whether it was closed.
type failingSink struct {
	id     string
	mu     sync.Mutex
	closed bool
}

func (s *failingSink) ID() string { return s.id }

func (s *failingSink) Send(context.Context, *planning.Event) error {
	return fmt.Errorf("connection reset")
}

func (s *failingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *failingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestFailingSinkEvicted(t *testing.T) {
	ctx := context.Background()
	h := New()
	defer h.Close()

	failing := &failingSink{id: "flaky"}
	healthy := NewChanSink("healthy", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-bad", failing, nil))
	require.NoError(t, h.Register(ctx, "sess-1", "p-ok", healthy, nil))

	h.Broadcast(ctx, newEvent("evt-1", planning.EventVenueAdded, "sess-1"))
	assert.Equal(t, "evt-1", recvEvent(t, healthy).ID)

	// The delivery failure evicts and closes the flaky sink.
	assert.Eventually(t, func() bool {
		if !failing.isClosed() {
			return false
		}
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, registered := h.sessions["sess-1"]["p-bad"]
		return !registered
	}, 2*time.Second, 10*time.Millisecond)

	// Later events still reach the surviving sink.
	h.Broadcast(ctx, newEvent("evt-2", planning.EventVoteCast, "sess-1"))
	assert.Equal(t, "evt-2", recvEvent(t, healthy).ID)
}

func TestHubClose(t *testing.T) {
	ctx := context.Background()
	h := New()

	sink1 := NewChanSink("p-1", 4)
	sink2 := NewChanSink("p-2", 4)
	require.NoError(t, h.Register(ctx, "sess-1", "p-1", sink1, nil))
	require.NoError(t, h.Register(ctx, "sess-2", "p-2", sink2, nil))

	require.NoError(t, h.Close())
	assertClosed(t, sink1)
	assertClosed(t, sink2)

	// Closed hubs refuse new sinks and swallow traffic.
	err := h.Register(ctx, "sess-1", "p-3", NewChanSink("p-3", 4), nil)
	assert.True(t, planning.IsCode(err, planning.CodeInternal), "got %v", err)
	h.Broadcast(ctx, newEvent("evt-1", planning.EventVoteCast, "sess-1"))
	h.SendTo(ctx, "sess-1", "p-1", newEvent("evt-2", planning.EventVoteCast, "sess-1"))

	assert.NoError(t, h.Close())
}

func TestChanSink(t *testing.T) {
	ctx := context.Background()

	sink := NewChanSink("p-1", 1)
	assert.Equal(t, "p-1", sink.ID())

	evt := newEvent("evt-1", planning.EventVoteCast, "sess-1")
	require.NoError(t, sink.Send(ctx, evt))
	assert.Equal(t, evt, <-sink.Events())

	// A full buffer respects context cancellation.
	require.NoError(t, sink.Send(ctx, evt))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, sink.Send(cancelled, evt), context.Canceled)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send(ctx, evt), ErrSinkClosed)

	// Default buffer kicks in for non-positive sizes.
	fallback := NewChanSink("p-2", 0)
	assert.Equal(t, defaultQueueSize, cap(fallback.events))
}
