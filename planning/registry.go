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
	"unicode/utf8"
)

// defaultOrganizerName is used when the organizer does not provide one.
const defaultOrganizerName = "Organizer"

// sessionRegistry owns the session lifecycle: creation, invite-token joins,
// revocation, finalization and archival.
type sessionRegistry struct {
	deps
	summaries *summaryBuilder
}

// CreateSessionRequest carries the inputs of Coordinator.CreateSession.
type CreateSessionRequest struct {
	// OrganizerID identifies the organizer. Required.
	OrganizerID string
	// OrganizerName is the organizer's display name. Defaults to
	// "Organizer".
	OrganizerName string
	// Name is the session name. Required.
	Name string
	// ExpiryHours is the invite lifetime in hours, between 1 and 168.
	// Zero selects the default of 24.
	ExpiryHours int
}

func (r *sessionRegistry) createSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if req.OrganizerID == "" {
		return nil, NewError(CodeValidation, "organizer_id is required")
	}
	name, err := validSessionName(req.Name)
	if err != nil {
		return nil, err
	}
	organizerName := strings.TrimSpace(req.OrganizerName)
	if organizerName == "" {
		organizerName = defaultOrganizerName
	} else if utf8.RuneCountInString(organizerName) > MaxDisplayNameLen {
		return nil, NewError(CodeValidation, "organizer name exceeds the allowed length").
			WithDetail("max", MaxDisplayNameLen)
	}
	hours := req.ExpiryHours
	if hours == 0 {
		hours = DefaultInviteExpiryHours
	}
	if hours < MinInviteExpiryHours || hours > MaxInviteExpiryHours {
		return nil, NewError(CodeValidation, "invite expiry hours out of range").
			WithDetail("min", MinInviteExpiryHours).
			WithDetail("max", MaxInviteExpiryHours)
	}
	token, err := r.tokens.NewToken()
	if err != nil {
		return nil, WrapError(CodeInternal, err, "mint invite token")
	}

	now := r.clock.Now()
	sess := &Session{
		ID:              r.ids.NewID(),
		Name:            name,
		OrganizerID:     req.OrganizerID,
		InviteToken:     token,
		InviteExpiresAt: now.Add(time.Duration(hours) * time.Hour),
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		ParticipantIDs:  []string{req.OrganizerID},
	}
	if err := r.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	organizer := &Participant{
		ID:          req.OrganizerID,
		SessionID:   sess.ID,
		DisplayName: organizerName,
		JoinedAt:    now,
		IsOrganizer: true,
	}
	if err := r.store.CreateParticipant(ctx, organizer); err != nil {
		return nil, err
	}
	return sess, nil
}

// join admits a new participant through the invite token. The checks run in
// a fixed order so callers always see the most relevant failure: unknown
// token, expired, revoked, then frozen session.
func (r *sessionRegistry) join(ctx context.Context, token, displayName, participantID string) (*Participant, *Session, *Event, error) {
	sess, err := r.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess.Status == StatusArchived {
		return nil, nil, nil, Errorf(CodeNotFound, "session %s not found", sess.ID)
	}
	if sess.InviteExpired(r.clock.Now()) {
		return nil, nil, nil, NewError(CodeExpired, "invite token has expired")
	}
	if sess.InviteRevoked {
		return nil, nil, nil, NewError(CodeRevoked, "invite token has been revoked")
	}
	if sess.Status == StatusFinalized {
		return nil, nil, nil, Errorf(CodeFinalized, "session %s is finalized", sess.ID)
	}
	name, err := validDisplayName(displayName)
	if err != nil {
		return nil, nil, nil, err
	}
	if participantID == "" {
		participantID = r.ids.NewID()
	} else if sess.HasParticipant(participantID) {
		return nil, nil, nil, Errorf(CodeDuplicate, "participant %s already joined session %s", participantID, sess.ID)
	}

	now := r.clock.Now()
	participant := &Participant{
		ID:          participantID,
		SessionID:   sess.ID,
		DisplayName: name,
		JoinedAt:    now,
	}
	if err := r.store.CreateParticipant(ctx, participant); err != nil {
		return nil, nil, nil, err
	}
	sess.ParticipantIDs = append(sess.ParticipantIDs, participant.ID)
	if err := r.touch(ctx, sess); err != nil {
		return nil, nil, nil, err
	}
	evt := r.newEvent(EventParticipantJoined, sess.ID, participant.ID,
		&ParticipantJoinedData{Participant: participant.Clone()})
	return participant, sess, evt, nil
}

// revokeInvite blocks further joins. Revoking twice is a no-op; existing
// participants and session data are untouched.
func (r *sessionRegistry) revokeInvite(ctx context.Context, sessionID, requesterID string) (*Session, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusArchived {
		return nil, Errorf(CodeNotFound, "session %s not found", sessionID)
	}
	if sess.OrganizerID != requesterID {
		return nil, NewError(CodeNotOrganizer, "only the organizer can revoke the invite")
	}
	if sess.Status == StatusFinalized {
		return nil, Errorf(CodeFinalized, "session %s is finalized", sessionID)
	}
	if sess.InviteRevoked {
		return sess, nil
	}
	sess.InviteRevoked = true
	if err := r.touch(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// finalize freezes an active session and builds its summary. The summary is
// assembled before the status flips so a storage failure leaves the session
// active.
func (r *sessionRegistry) finalize(ctx context.Context, sessionID, requesterID string) (*SessionSummary, *Event, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status == StatusArchived {
		return nil, nil, Errorf(CodeNotFound, "session %s not found", sessionID)
	}
	if sess.OrganizerID != requesterID {
		return nil, nil, NewError(CodeNotOrganizer, "only the organizer can finalize the session")
	}
	if sess.Status == StatusFinalized {
		return nil, nil, Errorf(CodeFinalized, "session %s is already finalized", sessionID)
	}

	now := r.clock.Now()
	summary, err := r.summaries.build(ctx, sess, now)
	if err != nil {
		return nil, nil, err
	}
	sess.Status = StatusFinalized
	sess.UpdatedAt = now
	if err := r.store.UpdateSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	evt := r.newEvent(EventSessionFinalized, sess.ID, requesterID,
		&SessionFinalizedData{Summary: summary.Clone()})
	return summary, evt, nil
}

// inactiveSessions returns the IDs of non-archived sessions last updated
// strictly before cutoff, in creation order.
func (r *sessionRegistry) inactiveSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	sessions, err := r.store.ListSessions(ctx, SessionFilter{UpdatedBefore: cutoff})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Status == StatusArchived {
			continue
		}
		ids = append(ids, sess.ID)
	}
	return ids, nil
}

// archiveOne archives a session if it is still inactive at the time of the
// call. It re-checks the cutoff under the caller's lock so a session that
// saw activity between listing and archiving is left alone.
func (r *sessionRegistry) archiveOne(ctx context.Context, sessionID string, cutoff time.Time) (bool, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if IsCode(err, CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if sess.Status == StatusArchived || !sess.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	sess.Status = StatusArchived
	sess.UpdatedAt = r.clock.Now()
	if err := r.store.UpdateSession(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

func validSessionName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewError(CodeValidation, "session name is required")
	}
	if n := utf8.RuneCountInString(name); n > MaxSessionNameLen {
		return "", NewError(CodeValidation, "session name exceeds the allowed length").
			WithDetail("length", n).
			WithDetail("max", MaxSessionNameLen)
	}
	return name, nil
}

func validDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewError(CodeValidation, "display name is required")
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayNameLen {
		return "", NewError(CodeValidation, "display name exceeds the allowed length").
			WithDetail("length", n).
			WithDetail("max", MaxDisplayNameLen)
	}
	return name, nil
}
