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
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop-go/planning"
	"github.com/planloop/planloop-go/planning/inmemory"
)

// fakeClock hands out strictly increasing instants so every timestamp in a
// test is distinct and deterministic.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to the exact instant t, discarding any stepping that
// has accumulated from prior Now calls.
func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// seqIDs mints zero-padded sequential IDs so creation order and lexical
// order agree.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%04d", s.n)
}

// seqTokens mints predictable invite tokens.
type seqTokens struct {
	mu sync.Mutex
	n  int
}

func (s *seqTokens) NewToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("invite-token-%04d", s.n), nil
}

// captureHub records every hub interaction instead of fanning out.
type captureHub struct {
	mu           sync.Mutex
	broadcasts   []*planning.Event
	initials     map[string]*planning.Event
	sendTos      []*planning.Event
	unregistered []string
}

var _ planning.EventHub = (*captureHub)(nil)

func newCaptureHub() *captureHub {
	return &captureHub{initials: make(map[string]*planning.Event)}
}

func (h *captureHub) Register(_ context.Context, sessionID, participantID string, _ planning.EventSink, initial *planning.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initials[sessionID+"/"+participantID] = initial
	return nil
}

func (h *captureHub) Unregister(sessionID, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregistered = append(h.unregistered, sessionID+"/"+participantID)
}

func (h *captureHub) Broadcast(_ context.Context, event *planning.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, event)
}

func (h *captureHub) SendTo(_ context.Context, _, _ string, event *planning.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendTos = append(h.sendTos, event)
}

func (h *captureHub) broadcastTypes() []planning.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]planning.EventType, 0, len(h.broadcasts))
	for _, evt := range h.broadcasts {
		types = append(types, evt.Type)
	}
	return types
}

func (h *captureHub) lastBroadcast() *planning.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.broadcasts) == 0 {
		return nil
	}
	return h.broadcasts[len(h.broadcasts)-1]
}

func (h *captureHub) initialFor(sessionID, participantID string) *planning.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initials[sessionID+"/"+participantID]
}

// nopSink satisfies the sink interface for tests that only watch the hub.
type nopSink struct{ id string }

func (s nopSink) ID() string                                  { return s.id }
func (s nopSink) Send(context.Context, *planning.Event) error { return nil }
func (s nopSink) Close() error                                { return nil }

func newTestCoordinator(t *testing.T, opts ...planning.Option) (*planning.Coordinator, *captureHub, *fakeClock) {
	t.Helper()
	hub := newCaptureHub()
	clock := newFakeClock()
	base := []planning.Option{
		planning.WithClock(clock),
		planning.WithIDGenerator(&seqIDs{}),
		planning.WithTokenSource(&seqTokens{}),
		planning.WithHub(hub),
	}
	c, err := planning.NewCoordinator(inmemory.NewStore(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, hub, clock
}

// newSession creates a session with organizer "org-1" and returns it.
func newSession(t *testing.T, c *planning.Coordinator) *planning.Session {
	t.Helper()
	sess, err := c.CreateSession(context.Background(), planning.CreateSessionRequest{
		OrganizerID:   "org-1",
		OrganizerName: "Olive",
		Name:          "Brunch",
	})
	require.NoError(t, err)
	return sess
}

// join admits a participant through the session's invite token.
func join(t *testing.T, c *planning.Coordinator, sess *planning.Session, name, id string) *planning.Participant {
	t.Helper()
	p, err := c.JoinSession(context.Background(), sess.InviteToken, name, id)
	require.NoError(t, err)
	return p
}

// addVenue suggests a venue by the given participant.
func addVenue(t *testing.T, c *planning.Coordinator, sessionID, name, by string) *planning.VenueOption {
	t.Helper()
	venue, err := c.AddVenue(context.Background(), sessionID, planning.VenueInput{
		Name:        name,
		SuggestedBy: by,
	})
	require.NoError(t, err)
	return venue
}

func TestNewCoordinator(t *testing.T) {
	c, err := planning.NewCoordinator(nil)
	assert.ErrorIs(t, err, planning.ErrNilStore)
	assert.Nil(t, c)

	c, err = planning.NewCoordinator(inmemory.NewStore())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())
	// Close is idempotent.
	assert.NoError(t, c.Close())
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	c, hub, _ := newTestCoordinator(t)

	sess, err := c.CreateSession(ctx, planning.CreateSessionRequest{
		OrganizerID:   "org-1",
		OrganizerName: "Olive",
		Name:          "  Brunch  ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "Brunch", sess.Name, "name should be trimmed")
	assert.Equal(t, "org-1", sess.OrganizerID)
	assert.Equal(t, planning.StatusActive, sess.Status)
	assert.Equal(t, []string{"org-1"}, sess.ParticipantIDs)
	assert.False(t, sess.InviteRevoked)
	assert.NotEmpty(t, sess.InviteToken)
	assert.Equal(t, 24*time.Hour, sess.InviteExpiresAt.Sub(sess.CreatedAt),
		"default invite expiry is 24 hours")

	participants, err := c.GetParticipants(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "org-1", participants[0].ID)
	assert.Equal(t, "Olive", participants[0].DisplayName)
	assert.True(t, participants[0].IsOrganizer)

	// Creation has no audience yet, so nothing is broadcast.
	assert.Empty(t, hub.broadcastTypes())

	// The token resolves to the session without joining.
	byToken, err := c.GetSessionByToken(ctx, sess.InviteToken)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byToken.ID)
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		req  planning.CreateSessionRequest
	}{
		{
			name: "missing_organizer",
			req:  planning.CreateSessionRequest{Name: "Brunch"},
		},
		{
			name: "missing_name",
			req:  planning.CreateSessionRequest{OrganizerID: "org-1"},
		},
		{
			name: "name_too_long",
			req: planning.CreateSessionRequest{
				OrganizerID: "org-1",
				Name:        strings.Repeat("n", 201),
			},
		},
		{
			name: "organizer_name_too_long",
			req: planning.CreateSessionRequest{
				OrganizerID:   "org-1",
				OrganizerName: strings.Repeat("o", 51),
				Name:          "Brunch",
			},
		},
		{
			name: "expiry_too_short",
			req: planning.CreateSessionRequest{
				OrganizerID: "org-1",
				Name:        "Brunch",
				ExpiryHours: -1,
			},
		},
		{
			name: "expiry_too_long",
			req: planning.CreateSessionRequest{
				OrganizerID: "org-1",
				Name:        "Brunch",
				ExpiryHours: 169,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestCoordinator(t)
			sess, err := c.CreateSession(ctx, tt.req)
			assert.Nil(t, sess)
			assert.True(t, planning.IsCode(err, planning.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateSessionCustomExpiry(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	sess, err := c.CreateSession(context.Background(), planning.CreateSessionRequest{
		OrganizerID: "org-1",
		Name:        "Brunch",
		ExpiryHours: 48,
	})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, sess.InviteExpiresAt.Sub(sess.CreatedAt))
}

func TestCreateSessionDefaultOrganizerName(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess, err := c.CreateSession(ctx, planning.CreateSessionRequest{
		OrganizerID: "org-1",
		Name:        "Brunch",
	})
	require.NoError(t, err)

	participants, err := c.GetParticipants(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "Organizer", participants[0].DisplayName)
}

func TestJoinSession(t *testing.T) {
	ctx := context.Background()
	c, hub, _ := newTestCoordinator(t)
	sess := newSession(t, c)

	p, err := c.JoinSession(ctx, sess.InviteToken, "Pat", "p-2")
	require.NoError(t, err)
	assert.Equal(t, "p-2", p.ID)
	assert.Equal(t, sess.ID, p.SessionID)
	assert.Equal(t, "Pat", p.DisplayName)
	assert.False(t, p.IsOrganizer)

	got, err := c.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1", "p-2"}, got.ParticipantIDs)
	assert.True(t, got.UpdatedAt.After(sess.UpdatedAt), "join bumps updated_at")

	evt := hub.lastBroadcast()
	require.NotNil(t, evt)
	assert.Equal(t, planning.EventParticipantJoined, evt.Type)
	assert.Equal(t, sess.ID, evt.SessionID)
	assert.Equal(t, "p-2", evt.ParticipantID)
	data, ok := evt.Data.(*planning.ParticipantJoinedData)
	require.True(t, ok)
	assert.Equal(t, "Pat", data.Participant.DisplayName)
}

func TestJoinSessionGeneratedID(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)

	p, err := c.JoinSession(context.Background(), sess.InviteToken, "Quinn", "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "org-1", p.ID)
}

func TestJoinSessionAtExpiryInstant(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCoordinator(t)
	sess := newSession(t, c)

	// Exactly at the expiry instant the invite still works; one second
	// past it does not.
	clock.Set(sess.InviteExpiresAt)
	p, err := c.JoinSession(ctx, sess.InviteToken, "Pat", "p-2")
	require.NoError(t, err)
	assert.Equal(t, "p-2", p.ID)

	clock.Advance(time.Second)
	_, err = c.JoinSession(ctx, sess.InviteToken, "Quinn", "p-3")
	assert.True(t, planning.IsCode(err, planning.CodeExpired), "got %v", err)
}

func TestJoinSessionFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		token    string
		joinName string
		joinID   string
		setup    func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session)
		wantCode planning.Code
	}{
		{
			name:     "unknown_token",
			token:    "no-such-token",
			joinName: "Pat",
			wantCode: planning.CodeNotFound,
		},
		{
			name:     "expired_invite",
			joinName: "Pat",
			setup: func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session) {
				clock.Advance(25 * time.Hour)
			},
			wantCode: planning.CodeExpired,
		},
		{
			name:     "revoked_invite",
			joinName: "Pat",
			setup: func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session) {
				require.NoError(t, c.RevokeInvite(ctx, sess.ID, "org-1"))
			},
			wantCode: planning.CodeRevoked,
		},
		{
			name:     "finalized_session",
			joinName: "Pat",
			setup: func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session) {
				_, err := c.FinalizeSession(ctx, sess.ID, "org-1")
				require.NoError(t, err)
			},
			wantCode: planning.CodeFinalized,
		},
		{
			name:     "archived_session_token_hidden",
			joinName: "Pat",
			setup: func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session) {
				archived, err := c.ArchiveSession(ctx, sess.ID, clock.Now().Add(time.Hour))
				require.NoError(t, err)
				require.True(t, archived)
			},
			wantCode: planning.CodeNotFound,
		},
		{
			name:     "duplicate_participant",
			joinName: "Pat",
			joinID:   "p-2",
			setup: func(t *testing.T, c *planning.Coordinator, clock *fakeClock, sess *planning.Session) {
				join(t, c, sess, "Pat", "p-2")
			},
			wantCode: planning.CodeDuplicate,
		},
		{
			name:     "empty_display_name",
			joinName: "   ",
			wantCode: planning.CodeValidation,
		},
		{
			name:     "display_name_too_long",
			joinName: strings.Repeat("p", 51),
			wantCode: planning.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, clock := newTestCoordinator(t)
			sess := newSession(t, c)
			if tt.setup != nil {
				tt.setup(t, c, clock, sess)
			}
			token := sess.InviteToken
			if tt.token != "" {
				token = tt.token
			}
			p, err := c.JoinSession(ctx, token, tt.joinName, tt.joinID)
			assert.Nil(t, p)
			assert.True(t, planning.IsCode(err, tt.wantCode),
				"want %s, got %v", tt.wantCode, err)
		})
	}
}

func TestRevokeInvite(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	join(t, c, sess, "Pat", "p-2")

	// Only the organizer may revoke.
	err := c.RevokeInvite(ctx, sess.ID, "p-2")
	assert.True(t, planning.IsCode(err, planning.CodeNotOrganizer), "got %v", err)

	require.NoError(t, c.RevokeInvite(ctx, sess.ID, "org-1"))

	// Existing participants are untouched; new joins are blocked.
	participants, err := c.GetParticipants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	_, err = c.JoinSession(ctx, sess.InviteToken, "Late", "")
	assert.True(t, planning.IsCode(err, planning.CodeRevoked), "got %v", err)

	// Revoking twice is a no-op.
	assert.NoError(t, c.RevokeInvite(ctx, sess.ID, "org-1"))

	err = c.RevokeInvite(ctx, "no-such-session", "org-1")
	assert.True(t, planning.IsCode(err, planning.CodeNotFound), "got %v", err)
}

func TestFinalizeSession(t *testing.T) {
	ctx := context.Background()
	c, hub, _ := newTestCoordinator(t)
	sess := newSession(t, c)
	join(t, c, sess, "Pat", "p-2")
	venue := addVenue(t, c, sess.ID, "Cafe A", "org-1")
	item, err := c.AddToItinerary(ctx, sess.ID, venue.ID,
		time.Date(2025, 6, 7, 18, 0, 0, 0, time.UTC), "org-1")
	require.NoError(t, err)

	_, err = c.FinalizeSession(ctx, sess.ID, "p-2")
	assert.True(t, planning.IsCode(err, planning.CodeNotOrganizer), "got %v", err)

	summary, err := c.FinalizeSession(ctx, sess.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, summary.SessionID)
	assert.Equal(t, "Brunch", summary.SessionName)
	assert.False(t, summary.FinalizedAt.IsZero())
	require.Len(t, summary.Participants, 2)
	assert.Equal(t, "org-1", summary.Participants[0].ID)
	assert.Equal(t, "p-2", summary.Participants[1].ID)
	require.Len(t, summary.Itinerary, 1)
	assert.Equal(t, item.ID, summary.Itinerary[0].ID)
	assert.Equal(t, "https://planloop.app/s/"+sess.ID, summary.ShareURL)

	evt := hub.lastBroadcast()
	require.NotNil(t, evt)
	assert.Equal(t, planning.EventSessionFinalized, evt.Type)
	data, ok := evt.Data.(*planning.SessionFinalizedData)
	require.True(t, ok)
	assert.Equal(t, summary.SessionID, data.Summary.SessionID)

	// Finalization is terminal for mutations.
	_, err = c.FinalizeSession(ctx, sess.ID, "org-1")
	assert.True(t, planning.IsCode(err, planning.CodeFinalized), "got %v", err)

	_, err = c.AddVenue(ctx, sess.ID, planning.VenueInput{Name: "Cafe B", SuggestedBy: "org-1"})
	assert.True(t, planning.IsCode(err, planning.CodeFinalized), "got %v", err)

	_, err = c.CastVote(ctx, sess.ID, venue.ID, "org-1", planning.VoteUp)
	assert.True(t, planning.IsCode(err, planning.CodeFinalized), "got %v", err)

	err = c.RemoveFromItinerary(ctx, sess.ID, item.ID, "org-1")
	assert.True(t, planning.IsCode(err, planning.CodeFinalized), "got %v", err)

	_, err = c.AddComment(ctx, sess.ID, venue.ID, "org-1", "too late")
	assert.True(t, planning.IsCode(err, planning.CodeFinalized), "got %v", err)

	// Reads still work on a finalized session.
	venues, err := c.GetVenues(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, venues, 1)
	items, err := c.GetItinerary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFinalizeSessionCustomShareURL(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t,
		planning.WithShareURLTemplate("https://example.com/p/{session_id}"))
	sess := newSession(t, c)

	summary, err := c.FinalizeSession(ctx, sess.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p/"+sess.ID, summary.ShareURL)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCoordinator(t)
	sess := newSession(t, c)

	// Active sessions have no summary yet.
	_, err := c.Summary(ctx, sess.ID)
	assert.True(t, planning.IsCode(err, planning.CodeValidation), "got %v", err)

	finalized, err := c.FinalizeSession(ctx, sess.ID, "org-1")
	require.NoError(t, err)

	// The rebuilt summary matches the one finalization returned.
	rebuilt, err := c.Summary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, finalized, rebuilt)

	archived, err := c.ArchiveSession(ctx, sess.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, archived)

	_, err = c.Summary(ctx, sess.ID)
	assert.True(t, planning.IsCode(err, planning.CodeNotFound), "got %v", err)
}

func TestArchiveSession(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCoordinator(t)
	sess := newSession(t, c)

	// A cutoff older than the last update leaves the session alone.
	archived, err := c.ArchiveSession(ctx, sess.ID, sess.UpdatedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, archived)

	archived, err = c.ArchiveSession(ctx, sess.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, archived)

	// Archiving twice reports false.
	archived, err = c.ArchiveSession(ctx, sess.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, archived)

	// Unknown sessions are not an error for the sweep path.
	archived, err = c.ArchiveSession(ctx, "no-such-session", clock.Now())
	require.NoError(t, err)
	assert.False(t, archived)

	// Archived sessions read as archived but reject mutations as missing.
	got, err := c.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.StatusArchived, got.Status)

	_, err = c.AddVenue(ctx, sess.ID, planning.VenueInput{Name: "Cafe", SuggestedBy: "org-1"})
	assert.True(t, planning.IsCode(err, planning.CodeNotFound), "got %v", err)
}

func TestArchiveInactive(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCoordinator(t)

	stale := newSession(t, c)
	fresh, err := c.CreateSession(ctx, planning.CreateSessionRequest{
		OrganizerID: "org-2",
		Name:        "Dinner",
	})
	require.NoError(t, err)

	clock.Advance(31 * 24 * time.Hour)
	// Activity on one session keeps it out of the sweep.
	addVenue(t, c, fresh.ID, "Cafe B", "org-2")

	count, err := c.ArchiveInactive(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := c.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.StatusArchived, got.Status)

	got, err = c.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, planning.StatusActive, got.Status)

	// The sweep is idempotent: a second run archives nothing.
	count, err = c.ArchiveInactive(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInactiveSessions(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCoordinator(t)

	first := newSession(t, c)
	second, err := c.CreateSession(ctx, planning.CreateSessionRequest{
		OrganizerID: "org-2",
		Name:        "Dinner",
	})
	require.NoError(t, err)

	cutoff := clock.Now().Add(time.Hour)
	ids, err := c.InactiveSessions(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids, "creation order")

	// Archived sessions drop out of the listing.
	archived, err := c.ArchiveSession(ctx, first.ID, cutoff)
	require.NoError(t, err)
	require.True(t, archived)

	ids, err = c.InactiveSessions(ctx, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

func TestConcurrentJoins(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	sess := newSession(t, c)

	const joiners = 16
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.JoinSession(ctx, sess.InviteToken,
				fmt.Sprintf("Guest %d", n), fmt.Sprintf("guest-%02d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := c.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.ParticipantIDs, joiners+1)

	seen := make(map[string]struct{}, len(got.ParticipantIDs))
	for _, id := range got.ParticipantIDs {
		_, dup := seen[id]
		assert.False(t, dup, "participant %s appears twice", id)
		seen[id] = struct{}{}
	}

	participants, err := c.GetParticipants(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, participants, joiners+1)
}
