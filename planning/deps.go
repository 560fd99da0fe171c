//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package planning

import "context"

// deps bundles the collaborators shared by the component engines. The
// Coordinator owns one deps value and hands it to every engine so that all
// of them observe the same store, clock and ID source.
type deps struct {
	store  Store
	clock  Clock
	ids    IDGenerator
	tokens TokenSource
}

// newEvent assembles an event stamped with a fresh ID and the current time.
func (d deps) newEvent(eventType EventType, sessionID, participantID string, data any) *Event {
	return &Event{
		ID:            d.ids.NewID(),
		Type:          eventType,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Timestamp:     d.clock.Now(),
		Data:          data,
	}
}

// activeSession loads a session and verifies it still accepts mutations.
// Archived sessions are reported as missing; finalized sessions are frozen.
func (d deps) activeSession(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := d.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case StatusArchived:
		return nil, Errorf(CodeNotFound, "session %s not found", sessionID)
	case StatusFinalized:
		return nil, Errorf(CodeFinalized, "session %s is finalized", sessionID)
	}
	return sess, nil
}

// touch bumps the session's UpdatedAt and persists it. Every successful
// mutation routes through here so archival cutoffs see real activity.
func (d deps) touch(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = d.clock.Now()
	return d.store.UpdateSession(ctx, sess)
}
