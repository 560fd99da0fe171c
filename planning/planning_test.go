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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusFinalized.Valid())
	assert.True(t, StatusArchived.Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("paused").Valid())
}

func TestVoteTypeValid(t *testing.T) {
	assert.True(t, VoteUp.Valid())
	assert.True(t, VoteDown.Valid())
	assert.True(t, VoteNeutral.Valid())
	assert.False(t, VoteType("").Valid())
	assert.False(t, VoteType("maybe").Valid())
}

func TestSessionClone(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sess := &Session{
		ID:              "sess-1",
		Name:            "Brunch",
		OrganizerID:     "org-1",
		InviteToken:     "tok-1",
		InviteExpiresAt: now.Add(24 * time.Hour),
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		ParticipantIDs:  []string{"org-1", "p-2"},
	}

	cloned := sess.Clone()
	require.NotNil(t, cloned)
	assert.Equal(t, sess, cloned)

	// The participant list must not be shared.
	cloned.ParticipantIDs[0] = "mutated"
	cloned.ParticipantIDs = append(cloned.ParticipantIDs, "p-3")
	assert.Equal(t, []string{"org-1", "p-2"}, sess.ParticipantIDs)

	var nilSession *Session
	assert.Nil(t, nilSession.Clone())
}

func TestSessionHasParticipant(t *testing.T) {
	sess := &Session{ParticipantIDs: []string{"a", "b"}}
	assert.True(t, sess.HasParticipant("a"))
	assert.True(t, sess.HasParticipant("b"))
	assert.False(t, sess.HasParticipant("c"))
	assert.False(t, sess.HasParticipant(""))
}

func TestSessionInviteExpired(t *testing.T) {
	expiry := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sess := &Session{InviteExpiresAt: expiry}

	assert.False(t, sess.InviteExpired(expiry.Add(-time.Second)))
	// The boundary instant itself still admits joins.
	assert.False(t, sess.InviteExpired(expiry))
	assert.True(t, sess.InviteExpired(expiry.Add(time.Second)))
}

func TestVenueOptionClone(t *testing.T) {
	rating := 4.5
	price := 2
	venue := &VenueOption{
		ID:         "venue-1",
		SessionID:  "sess-1",
		Name:       "Cafe A",
		Rating:     &rating,
		PriceLevel: &price,
	}

	cloned := venue.Clone()
	require.NotNil(t, cloned)
	assert.Equal(t, venue, cloned)

	// Optional fields must not share pointers with the original.
	*cloned.Rating = 1.0
	*cloned.PriceLevel = 4
	assert.Equal(t, 4.5, *venue.Rating)
	assert.Equal(t, 2, *venue.PriceLevel)

	var nilVenue *VenueOption
	assert.Nil(t, nilVenue.Clone())
}

func TestSessionSummaryClone(t *testing.T) {
	summary := &SessionSummary{
		SessionID:   "sess-1",
		SessionName: "Brunch",
		Participants: []*Participant{
			{ID: "org-1", DisplayName: "Organizer"},
		},
		Itinerary: []*ItineraryItem{
			{ID: "item-1", VenueID: "venue-1"},
		},
		ShareURL: "https://planloop.app/s/sess-1",
	}

	cloned := summary.Clone()
	require.NotNil(t, cloned)
	assert.Equal(t, summary, cloned)

	cloned.Participants[0].DisplayName = "mutated"
	cloned.Itinerary[0].VenueID = "mutated"
	assert.Equal(t, "Organizer", summary.Participants[0].DisplayName)
	assert.Equal(t, "venue-1", summary.Itinerary[0].VenueID)

	var nilSummary *SessionSummary
	assert.Nil(t, nilSummary.Clone())
}

func TestShareURLTemplate(t *testing.T) {
	b := &summaryBuilder{shareURLTemplate: defaultShareURLTemplate}
	assert.Equal(t, "https://planloop.app/s/sess-9", b.shareURL("sess-9"))

	b.shareURLTemplate = "https://example.com/plans/{session_id}/view"
	assert.Equal(t, "https://example.com/plans/sess-9/view", b.shareURL("sess-9"))
}
