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
)

// stateSyncer builds the point-in-time snapshot delivered to a sink when it
// connects or reconnects. The Coordinator calls it under the session lock so
// the snapshot is a single consistent read.
type stateSyncer struct {
	deps
	votes *voteEngine
}

// snapshot assembles the state_sync event for one participant.
func (s *stateSyncer) snapshot(ctx context.Context, sessionID, participantID string) (*Event, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.votes.rankVenues(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItinerary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sortItinerary(items)
	var byVenue map[string][]*Comment
	for _, rv := range ranked {
		comments, err := s.store.ListCommentsByVenue(ctx, sessionID, rv.Venue.ID)
		if err != nil {
			return nil, err
		}
		if len(comments) == 0 {
			continue
		}
		sortComments(comments)
		if byVenue == nil {
			byVenue = make(map[string][]*Comment)
		}
		byVenue[rv.Venue.ID] = comments
	}
	data := &StateSyncData{
		Session:         sess,
		Participants:    participants,
		Venues:          ranked,
		Itinerary:       items,
		CommentsByVenue: byVenue,
	}
	return s.newEvent(EventStateSync, sessionID, participantID, data), nil
}
