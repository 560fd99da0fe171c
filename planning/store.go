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
	"errors"
	"time"
)

// ErrNilStore is returned when a component is constructed without a store.
var ErrNilStore = errors.New("planning: store is nil")

// SessionFilter selects sessions in Store.ListSessions. Zero-valued fields
// match any session; set fields combine with AND.
type SessionFilter struct {
	// Status matches sessions in this lifecycle state when non-empty.
	Status Status
	// UpdatedBefore matches sessions last updated strictly before this
	// instant when non-zero.
	UpdatedBefore time.Time
}

// Store is the persistence boundary of the coordination core. The core holds
// no state of its own; implementations keep records durable and internally
// consistent but perform no business validation.
//
// Implementations must return *Error values: CodeNotFound (CodeVenueNotFound
// and CodeItemNotFound for venue and itinerary lookups) when a record is
// missing, CodeDuplicate when a create collides with an existing record, and
// CodeStorageFailure wrapping the cause when the backend fails. Returned
// records are deep copies; callers may mutate them freely.
type Store interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *Session) error
	// GetSession returns the session with the given ID.
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// GetSessionByToken returns the session owning the invite token.
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	// UpdateSession replaces the stored session record.
	UpdateSession(ctx context.Context, session *Session) error
	// ListSessions returns sessions matching the filter in creation order.
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)

	// CreateParticipant persists a new participant.
	CreateParticipant(ctx context.Context, participant *Participant) error
	// GetParticipant returns one participant of a session.
	GetParticipant(ctx context.Context, sessionID, participantID string) (*Participant, error)
	// ListParticipants returns the session's participants in join order.
	ListParticipants(ctx context.Context, sessionID string) ([]*Participant, error)

	// CreateVenue persists a new venue option.
	CreateVenue(ctx context.Context, venue *VenueOption) error
	// GetVenue returns one venue option of a session.
	GetVenue(ctx context.Context, sessionID, venueID string) (*VenueOption, error)
	// ListVenues returns the session's venue options in suggestion order.
	ListVenues(ctx context.Context, sessionID string) ([]*VenueOption, error)

	// UpsertVote creates or replaces the vote keyed by
	// (venue, participant).
	UpsertVote(ctx context.Context, vote *Vote) error
	// GetVote returns the vote cast by a participant on a venue.
	GetVote(ctx context.Context, sessionID, venueID, participantID string) (*Vote, error)
	// ListVotesByVenue returns all votes on one venue.
	ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]*Vote, error)
	// ListVotesBySession returns all votes in the session.
	ListVotesBySession(ctx context.Context, sessionID string) ([]*Vote, error)

	// CreateItineraryItem persists a new itinerary item.
	CreateItineraryItem(ctx context.Context, item *ItineraryItem) error
	// DeleteItineraryItem removes one itinerary item.
	DeleteItineraryItem(ctx context.Context, sessionID, itemID string) error
	// UpdateItineraryOrders rewrites the Order values of the given items.
	UpdateItineraryOrders(ctx context.Context, sessionID string, items []*ItineraryItem) error
	// ListItinerary returns the session's itinerary items. Callers sort;
	// no order is guaranteed.
	ListItinerary(ctx context.Context, sessionID string) ([]*ItineraryItem, error)

	// CreateComment appends a comment.
	CreateComment(ctx context.Context, comment *Comment) error
	// ListCommentsByVenue returns a venue's comments in creation order.
	ListCommentsByVenue(ctx context.Context, sessionID, venueID string) ([]*Comment, error)
	// ListCommentsByParticipant returns a participant's comments in
	// creation order.
	ListCommentsByParticipant(ctx context.Context, sessionID, participantID string) ([]*Comment, error)

	// Close releases resources held by the store.
	Close() error
}
