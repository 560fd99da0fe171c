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
	"sort"
	"strings"
	"unicode/utf8"
)

// commentLog is the append-only record of per-venue remarks. Comments are
// never edited or deleted; reads return them in creation order.
type commentLog struct {
	deps
}

func (l *commentLog) add(ctx context.Context, sessionID, venueID, participantID, text string) (*Comment, *Event, error) {
	sess, err := l.activeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !sess.HasParticipant(participantID) {
		return nil, nil, Errorf(CodeValidation, "participant %s is not a member of session %s", participantID, sessionID)
	}
	if _, err := l.store.GetVenue(ctx, sessionID, venueID); err != nil {
		return nil, nil, err
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, nil, NewError(CodeValidation, "comment text is required")
	}
	if n := utf8.RuneCountInString(body); n > MaxCommentLen {
		return nil, nil, NewError(CodeTooLong, "comment text exceeds the allowed length").
			WithDetail("length", n).
			WithDetail("max", MaxCommentLen)
	}
	comment := &Comment{
		ID:            l.ids.NewID(),
		SessionID:     sessionID,
		VenueID:       venueID,
		ParticipantID: participantID,
		Text:          body,
		CreatedAt:     l.clock.Now(),
	}
	if err := l.store.CreateComment(ctx, comment); err != nil {
		return nil, nil, err
	}
	if err := l.touch(ctx, sess); err != nil {
		return nil, nil, err
	}
	evt := l.newEvent(EventCommentAdded, sessionID, participantID,
		&CommentAddedData{Comment: comment.Clone()})
	return comment, evt, nil
}

func (l *commentLog) byVenue(ctx context.Context, sessionID, venueID string) ([]*Comment, error) {
	if _, err := l.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := l.store.GetVenue(ctx, sessionID, venueID); err != nil {
		return nil, err
	}
	comments, err := l.store.ListCommentsByVenue(ctx, sessionID, venueID)
	if err != nil {
		return nil, err
	}
	sortComments(comments)
	return comments, nil
}

func (l *commentLog) byParticipant(ctx context.Context, sessionID, participantID string) ([]*Comment, error) {
	if _, err := l.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	comments, err := l.store.ListCommentsByParticipant(ctx, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	sortComments(comments)
	return comments, nil
}

// sortComments orders comments chronologically with an ID tie-break.
func sortComments(comments []*Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
