//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package planning provides the group coordination core for collaborative
// event planning: sessions joined by invite token, venue suggestions and
// votes, a chronological itinerary, per-venue comments, and the events that
// fan out to connected participants.
package planning

import (
	"time"
)

// Status is the lifecycle state of a planning session.
type Status string

const (
	// StatusActive accepts joins, votes, venues, itinerary edits and comments.
	StatusActive Status = "active"
	// StatusFinalized is read-only; the itinerary is frozen into a summary.
	StatusFinalized Status = "finalized"
	// StatusArchived is retired from active use and hidden from joins.
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the defined session states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFinalized, StatusArchived:
		return true
	}
	return false
}

// VoteType is the stance a participant takes on a venue option.
type VoteType string

const (
	// VoteUp counts toward the venue's net score.
	VoteUp VoteType = "upvote"
	// VoteDown counts against the venue's net score.
	VoteDown VoteType = "downvote"
	// VoteNeutral registers participation without affecting the net score.
	VoteNeutral VoteType = "neutral"
)

// Valid reports whether v is one of the defined vote types.
func (v VoteType) Valid() bool {
	switch v {
	case VoteUp, VoteDown, VoteNeutral:
		return true
	}
	return false
}

// SuggestedByAgent marks a venue that was suggested by an automated
// assistant rather than a session participant.
const SuggestedByAgent = "agent"

// Field limits enforced on write operations.
const (
	// MaxSessionNameLen is the maximum length of a session name.
	MaxSessionNameLen = 200
	// MaxDisplayNameLen is the maximum length of a participant display name.
	MaxDisplayNameLen = 50
	// MaxCommentLen is the maximum length of a comment.
	MaxCommentLen = 500
	// MinInviteExpiryHours is the shortest allowed invite lifetime.
	MinInviteExpiryHours = 1
	// MaxInviteExpiryHours is the longest allowed invite lifetime (one week).
	MaxInviteExpiryHours = 168
	// DefaultInviteExpiryHours is used when no expiry is requested.
	DefaultInviteExpiryHours = 24
	// MinRating and MaxRating bound an optional venue rating.
	MinRating, MaxRating = 0, 5
	// MinPriceLevel and MaxPriceLevel bound an optional venue price level.
	MinPriceLevel, MaxPriceLevel = 0, 4
)

// Session is a group planning session. Participants join through the invite
// token; every mutation bumps UpdatedAt.
type Session struct {
	// ID is the unique identifier of the session.
	ID string `json:"id"`
	// Name is the human-readable session name.
	Name string `json:"name"`
	// OrganizerID identifies the participant with organizer privileges.
	OrganizerID string `json:"organizer_id"`
	// InviteToken is the URL-safe secret used to join the session.
	InviteToken string `json:"invite_token"`
	// InviteExpiresAt is the instant the invite token stops working.
	InviteExpiresAt time.Time `json:"invite_expires_at"`
	// InviteRevoked blocks new joins without touching session data.
	InviteRevoked bool `json:"invite_revoked"`
	// Status is the lifecycle state.
	Status Status `json:"status"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the time of the last mutation.
	UpdatedAt time.Time `json:"updated_at"`
	// ParticipantIDs lists members in join order, organizer first.
	ParticipantIDs []string `json:"participant_ids"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.ParticipantIDs = make([]string, len(s.ParticipantIDs))
	copy(cloned.ParticipantIDs, s.ParticipantIDs)
	return &cloned
}

// HasParticipant reports whether id is a member of the session.
func (s *Session) HasParticipant(id string) bool {
	for _, pid := range s.ParticipantIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// InviteExpired reports whether the invite token has expired at now. The
// expiry instant itself still admits joins.
func (s *Session) InviteExpired(now time.Time) bool {
	return now.After(s.InviteExpiresAt)
}

// Participant is a member of a planning session.
type Participant struct {
	// ID is the unique identifier of the participant.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// DisplayName is shown to other participants.
	DisplayName string `json:"display_name"`
	// JoinedAt is the join time.
	JoinedAt time.Time `json:"joined_at"`
	// IsOrganizer marks the session organizer.
	IsOrganizer bool `json:"is_organizer"`
}

// Clone returns a copy of the participant.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	cloned := *p
	return &cloned
}

// VenueOption is a suggested venue. Options are immutable once added;
// opinions about them are expressed through votes.
type VenueOption struct {
	// ID is the unique identifier of the option.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// PlaceID is the external place reference, if any.
	PlaceID string `json:"place_id,omitempty"`
	// Name is the venue name.
	Name string `json:"name"`
	// Address is the human-readable address.
	Address string `json:"address,omitempty"`
	// Rating is an optional quality rating in [0, 5].
	Rating *float64 `json:"rating,omitempty"`
	// PriceLevel is an optional price bucket in [0, 4].
	PriceLevel *int `json:"price_level,omitempty"`
	// PhotoURL is an optional photo reference.
	PhotoURL string `json:"photo_url,omitempty"`
	// SuggestedBy is a participant ID or SuggestedByAgent.
	SuggestedBy string `json:"suggested_by"`
	// SuggestedAt is the suggestion time.
	SuggestedAt time.Time `json:"suggested_at"`
}

// Clone returns a deep copy of the venue option.
func (v *VenueOption) Clone() *VenueOption {
	if v == nil {
		return nil
	}
	cloned := *v
	if v.Rating != nil {
		r := *v.Rating
		cloned.Rating = &r
	}
	if v.PriceLevel != nil {
		p := *v.PriceLevel
		cloned.PriceLevel = &p
	}
	return &cloned
}

// Vote is a participant's current stance on a venue. There is at most one
// vote per (venue, participant) pair; casting again replaces the stance in
// place, keeping the row's identity and first-cast time.
type Vote struct {
	// ID is the unique identifier of the vote row, stable across re-casts.
	ID string `json:"id"`
	// VenueID is the venue voted on.
	VenueID string `json:"venue_id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// ParticipantID is the voter.
	ParticipantID string `json:"participant_id"`
	// Type is the stance.
	Type VoteType `json:"vote_type"`
	// CreatedAt is the time of the first cast.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the time of the most recent cast.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of the vote.
func (v *Vote) Clone() *Vote {
	if v == nil {
		return nil
	}
	cloned := *v
	return &cloned
}

// ItineraryItem is a scheduled stop in the session's plan. Items are kept in
// chronological order with ties broken by AddedAt; Order is the item's
// position and is contiguous from zero.
type ItineraryItem struct {
	// ID is the unique identifier of the item.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// VenueID is the venue being visited.
	VenueID string `json:"venue_id"`
	// ScheduledTime is when the group plans to be there.
	ScheduledTime time.Time `json:"scheduled_time"`
	// AddedAt is the insertion time, used as the chronological tie-break.
	AddedAt time.Time `json:"added_at"`
	// AddedBy is the participant who added the item.
	AddedBy string `json:"added_by"`
	// Order is the item's position in the itinerary, contiguous from 0.
	Order int `json:"order"`
}

// Clone returns a copy of the itinerary item.
func (i *ItineraryItem) Clone() *ItineraryItem {
	if i == nil {
		return nil
	}
	cloned := *i
	return &cloned
}

// Comment is an append-only remark a participant leaves on a venue.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// VenueID is the venue commented on.
	VenueID string `json:"venue_id"`
	// ParticipantID is the author.
	ParticipantID string `json:"participant_id"`
	// Text is the comment body, 1 to MaxCommentLen characters.
	Text string `json:"text"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of the comment.
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	cloned := *c
	return &cloned
}

// Tally aggregates the current votes on a single venue.
type Tally struct {
	// VenueID is the venue the counts refer to.
	VenueID string `json:"venue_id"`
	// Upvotes is the number of upvotes.
	Upvotes int `json:"upvotes"`
	// Downvotes is the number of downvotes.
	Downvotes int `json:"downvotes"`
	// Neutral is the number of neutral votes.
	Neutral int `json:"neutral"`
	// Voters lists the distinct participants who have voted, sorted by ID.
	Voters []string `json:"voters"`
	// NetScore is Upvotes minus Downvotes.
	NetScore int `json:"net_score"`
	// Total is Upvotes plus Downvotes plus Neutral.
	Total int `json:"total"`
}

// RankedVenue pairs a venue with its tally and competition rank. Venues with
// equal standing share a rank and the following rank is skipped (1, 1, 3).
type RankedVenue struct {
	// Venue is the ranked option.
	Venue *VenueOption `json:"venue"`
	// Tally holds the vote counts the rank was computed from.
	Tally *Tally `json:"tally"`
	// Rank is the competition rank, starting at 1.
	Rank int `json:"rank"`
	// IsTied reports whether another venue shares this rank.
	IsTied bool `json:"is_tied"`
}

// SessionSummary is the frozen result of a finalized session.
type SessionSummary struct {
	// SessionID is the finalized session.
	SessionID string `json:"session_id"`
	// SessionName is the session name at finalization time.
	SessionName string `json:"session_name"`
	// FinalizedAt is the finalization time.
	FinalizedAt time.Time `json:"finalized_at"`
	// Participants are the members at finalization time, in join order.
	Participants []*Participant `json:"participants"`
	// Itinerary is a copy of the final itinerary in canonical order.
	Itinerary []*ItineraryItem `json:"itinerary"`
	// ShareURL is the stable link for sharing the summary.
	ShareURL string `json:"share_url"`
}

// Clone returns a deep copy of the summary.
func (s *SessionSummary) Clone() *SessionSummary {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.Participants = make([]*Participant, len(s.Participants))
	for i, p := range s.Participants {
		cloned.Participants[i] = p.Clone()
	}
	cloned.Itinerary = make([]*ItineraryItem, len(s.Itinerary))
	for i, item := range s.Itinerary {
		cloned.Itinerary[i] = item.Clone()
	}
	return &cloned
}
