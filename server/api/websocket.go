//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/planning"
)

// wsWriteTimeout bounds a single frame write to a client.
const wsWriteTimeout = 10 * time.Second

var errSinkClosed = errors.New("websocket sink closed")

// handleWebSocket upgrades the connection and attaches it to the session's
// event feed. The feed opens with a state_sync frame, then live events in
// order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	participantID := r.URL.Query().Get("participant_id")
	if participantID == "" {
		s.writeError(w, planning.NewError(planning.CodeValidation,
			"participant_id query parameter is required"))
		return
	}
	// Reject unknown sessions and non-members before upgrading so the
	// client still gets a meaningful HTTP status.
	sess, err := s.coordinator.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !sess.HasParticipant(participantID) {
		s.writeError(w, planning.Errorf(planning.CodeValidation,
			"participant %s is not a member of session %s", participantID, sessionID))
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		log.Debugf("Upgrade websocket for session %s: %v", sessionID, err)
		return
	}

	sink := newWSSink(participantID, conn)
	if err := s.coordinator.Connect(r.Context(), sessionID, participantID, sink); err != nil {
		log.Errorf("Connect participant %s to session %s: %v", participantID, sessionID, err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation,
			string(planning.CodeOf(err)))
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
		_ = conn.Close()
		return
	}
	log.Debugf("Participant %s connected to session %s feed", participantID, sessionID)

	done := make(chan struct{})
	go s.pingLoop(conn, sessionID, participantID, done)

	// Block reading until the peer goes away. Inbound frames carry no
	// meaning on this feed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	// The hub closes the sink when it evicts it, for example when the
	// participant reconnected and was re-registered. Unregistering here as
	// well would tear down the replacement.
	if !sink.closed() {
		s.coordinator.Disconnect(sessionID, participantID)
	}
	log.Debugf("Participant %s disconnected from session %s feed", participantID, sessionID)
}

// pingLoop keeps the connection alive and detects broken peers. On ping
// failure it closes the connection, which unblocks the read loop and lets
// the handler unregister the sink.
func (s *Server) pingLoop(conn *websocket.Conn, sessionID, participantID string, done <-chan struct{}) {
	ticker := time.NewTicker(s.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debugf("Ping participant %s in session %s: %v", participantID, sessionID, err)
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// wsSink adapts a websocket connection to the event sink interface. The hub
// serializes Send calls per sink, so the connection sees one writer;
// WriteControl and Close are safe concurrently with writes.
type wsSink struct {
	id        string
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

var _ planning.EventSink = (*wsSink)(nil)

func newWSSink(id string, conn *websocket.Conn) *wsSink {
	return &wsSink{
		id:   id,
		conn: conn,
		done: make(chan struct{}),
	}
}

// ID implements the EventSink interface.
func (s *wsSink) ID() string { return s.id }

// Send writes one event frame to the client.
func (s *wsSink) Send(ctx context.Context, event *planning.Event) error {
	select {
	case <-s.done:
		return errSinkClosed
	default:
	}
	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(event)
}

// Close sends a close frame on a best-effort basis and releases the
// connection. Safe to call more than once.
func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(wsWriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}

// closed reports whether Close has been called.
func (s *wsSink) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
