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
	"time"
)

// EventType identifies the kind of change an event describes.
type EventType string

const (
	// EventParticipantJoined fires when a participant joins the session.
	EventParticipantJoined EventType = "participant_joined"
	// EventVenueAdded fires when a venue option is suggested.
	EventVenueAdded EventType = "venue_added"
	// EventVoteCast fires when a vote is cast or changed.
	EventVoteCast EventType = "vote_cast"
	// EventItineraryItemAdded fires when an itinerary item is added.
	EventItineraryItemAdded EventType = "itinerary_item_added"
	// EventItineraryItemRemoved fires when an itinerary item is removed.
	EventItineraryItemRemoved EventType = "itinerary_item_removed"
	// EventCommentAdded fires when a comment is appended.
	EventCommentAdded EventType = "comment_added"
	// EventSessionFinalized fires once when the session is finalized.
	EventSessionFinalized EventType = "session_finalized"
	// EventStateSync carries the full session state to a single sink.
	EventStateSync EventType = "state_sync"
)

// Event is a change notification fanned out to the session's connected
// participants. Data holds the payload struct matching Type.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// Type identifies the payload carried in Data.
	Type EventType `json:"event_type"`
	// SessionID is the session the event belongs to.
	SessionID string `json:"session_id"`
	// ParticipantID is the participant who caused the event, if any.
	ParticipantID string `json:"participant_id,omitempty"`
	// Timestamp is the event creation time.
	Timestamp time.Time `json:"timestamp"`
	// Data is the type-specific payload.
	Data any `json:"data,omitempty"`
}

// ParticipantJoinedData is the payload of EventParticipantJoined.
type ParticipantJoinedData struct {
	Participant *Participant `json:"participant"`
}

// VenueAddedData is the payload of EventVenueAdded.
type VenueAddedData struct {
	Venue *VenueOption `json:"venue"`
}

// VoteCastData is the payload of EventVoteCast. Tally reflects the venue's
// counts immediately after the cast.
type VoteCastData struct {
	VenueID       string   `json:"venue_id"`
	ParticipantID string   `json:"participant_id"`
	VoteType      VoteType `json:"vote_type"`
	Tally         *Tally   `json:"tally"`
}

// ItineraryItemAddedData is the payload of EventItineraryItemAdded.
type ItineraryItemAddedData struct {
	Item *ItineraryItem `json:"item"`
}

// ItineraryItemRemovedData is the payload of EventItineraryItemRemoved.
type ItineraryItemRemovedData struct {
	ItemID  string `json:"item_id"`
	VenueID string `json:"venue_id"`
}

// CommentAddedData is the payload of EventCommentAdded.
type CommentAddedData struct {
	Comment *Comment `json:"comment"`
}

// SessionFinalizedData is the payload of EventSessionFinalized.
type SessionFinalizedData struct {
	Summary *SessionSummary `json:"summary"`
}

// StateSyncData is the payload of EventStateSync: a point-in-time snapshot
// of everything a reconnecting client needs to render the session.
type StateSyncData struct {
	Session         *Session              `json:"session"`
	Participants    []*Participant        `json:"participants"`
	Venues          []*RankedVenue        `json:"venues"`
	Itinerary       []*ItineraryItem      `json:"itinerary"`
	CommentsByVenue map[string][]*Comment `json:"comments_by_venue,omitempty"`
}

// EventSink receives events for a single connection. Send must not block
// indefinitely; slow sinks are isolated by the hub's per-sink queue.
type EventSink interface {
	// ID identifies the sink for logging.
	ID() string
	// Send delivers one event to the connected client.
	Send(ctx context.Context, event *Event) error
	// Close releases the underlying connection.
	Close() error
}

// EventHub fans events out to the sinks registered for a session.
// Implementations must preserve per-sink FIFO order and must not let one
// slow sink delay the others.
type EventHub interface {
	// Register attaches a sink for a participant, replacing any previous
	// sink for the same participant. When initial is non-nil it is
	// delivered to the new sink before any subsequent broadcast.
	Register(ctx context.Context, sessionID, participantID string, sink EventSink, initial *Event) error
	// Unregister detaches the participant's sink, if any.
	Unregister(sessionID, participantID string)
	// Broadcast delivers the event to every sink of the event's session.
	Broadcast(ctx context.Context, event *Event)
	// SendTo delivers the event to one participant's sink. The event is
	// dropped silently when the participant is not connected.
	SendTo(ctx context.Context, sessionID, participantID string, event *Event)
}
