//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package planning_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop-go/planning"
)

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	c, hub, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")

	comment, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", "  great patio  ")
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, sess.ID, comment.SessionID)
	assert.Equal(t, venue.ID, comment.VenueID)
	assert.Equal(t, "org-1", comment.ParticipantID)
	assert.Equal(t, "great patio", comment.Text, "text should be trimmed")
	assert.False(t, comment.CreatedAt.IsZero())

	evt := hub.lastBroadcast()
	require.NotNil(t, evt)
	assert.Equal(t, planning.EventCommentAdded, evt.Type)
	assert.Equal(t, "org-1", evt.ParticipantID)
	data, ok := evt.Data.(*planning.CommentAddedData)
	require.True(t, ok)
	assert.Equal(t, comment.ID, data.Comment.ID)

	// The length limit is inclusive.
	atLimit, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", strings.Repeat("y", planning.MaxCommentLen))
	require.NoError(t, err)
	assert.Len(t, atLimit.Text, planning.MaxCommentLen)
}

func TestAddCommentFailures(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")

	tests := []struct {
		name          string
		venueID       string
		participantID string
		text          string
		wantCode      planning.Code
	}{
		{
			name:    "empty_text",
			venueID: venue.ID, participantID: "org-1", text: "   ",
			wantCode: planning.CodeValidation,
		},
		{
			name:    "text_too_long",
			venueID: venue.ID, participantID: "org-1",
			text:     strings.Repeat("x", 501),
			wantCode: planning.CodeTooLong,
		},
		{
			name:    "non_member",
			venueID: venue.ID, participantID: "stranger", text: "hi",
			wantCode: planning.CodeValidation,
		},
		{
			name:    "unknown_venue",
			venueID: "no-such-venue", participantID: "org-1", text: "hi",
			wantCode: planning.CodeVenueNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comment, err := c.AddComment(ctx, sess.ID, tt.venueID, tt.participantID, tt.text)
			assert.Nil(t, comment)
			assert.True(t, planning.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestAddCommentTooLongDetails(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")

	_, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", strings.Repeat("x", 501))
	var perr *planning.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, planning.CodeTooLong, perr.Code)
	assert.Equal(t, 501, perr.Details["length"])
	assert.Equal(t, planning.MaxCommentLen, perr.Details["max"])
}

func TestGetCommentsChronological(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	join(t, c, sess, "Pat", "p-2")
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")

	first, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", "first")
	require.NoError(t, err)
	second, err := c.AddComment(ctx, sess.ID, venue.ID, "p-2", "second")
	require.NoError(t, err)
	third, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", "third")
	require.NoError(t, err)

	comments, err := c.GetComments(ctx, sess.ID, venue.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
	assert.Equal(t, third.ID, comments[2].ID)

	_, err = c.GetComments(ctx, sess.ID, "no-such-venue")
	assert.True(t, planning.IsCode(err, planning.CodeVenueNotFound), "got %v", err)
}

func TestGetParticipantComments(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	join(t, c, sess, "Pat", "p-2")
	venueA := addVenue(t, c, sess.ID, "Cafe A", "org-1")
	venueB := addVenue(t, c, sess.ID, "Cafe B", "org-1")

	mine1, err := c.AddComment(ctx, sess.ID, venueA.ID, "p-2", "close to the station")
	require.NoError(t, err)
	_, err = c.AddComment(ctx, sess.ID, venueA.ID, "org-1", "noted")
	require.NoError(t, err)
	mine2, err := c.AddComment(ctx, sess.ID, venueB.ID, "p-2", "cheaper")
	require.NoError(t, err)

	// One participant's comments across venues, oldest first.
	comments, err := c.GetParticipantComments(ctx, sess.ID, "p-2")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, mine1.ID, comments[0].ID)
	assert.Equal(t, mine2.ID, comments[1].ID)

	comments, err = c.GetParticipantComments(ctx, sess.ID, "nobody")
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestCommentsReadableAfterFinalize(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")
	_, err := c.AddComment(ctx, sess.ID, venue.ID, "org-1", "keep this")
	require.NoError(t, err)

	_, err = c.FinalizeSession(ctx, sess.ID, "org-1")
	require.NoError(t, err)

	comments, err := c.GetComments(ctx, sess.ID, venue.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}
