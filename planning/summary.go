//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package planning

import (
	"context"
	"strings"
	"time"
)

// defaultShareURLTemplate is the share link pattern; {session_id} is
// replaced with the session's ID.
const defaultShareURLTemplate = "https://planloop.app/s/{session_id}"

// shareURLPlaceholder is the substring replaced in share URL templates.
const shareURLPlaceholder = "{session_id}"

// summaryBuilder assembles the frozen result of a finalized session. It
// only reads; the registry persists the status flip.
type summaryBuilder struct {
	deps
	shareURLTemplate string
}

// build copies the session's membership and itinerary into a summary as of
// finalizedAt. The itinerary copy is sorted canonically so the summary is
// stable regardless of store ordering.
func (s *summaryBuilder) build(ctx context.Context, sess *Session, finalizedAt time.Time) (*SessionSummary, error) {
	participants, err := s.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItinerary(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sortItinerary(items)
	return &SessionSummary{
		SessionID:    sess.ID,
		SessionName:  sess.Name,
		FinalizedAt:  finalizedAt,
		Participants: participants,
		Itinerary:    items,
		ShareURL:     s.shareURL(sess.ID),
	}, nil
}

func (s *summaryBuilder) shareURL(sessionID string) string {
	return strings.ReplaceAll(s.shareURLTemplate, shareURLPlaceholder, sessionID)
}
