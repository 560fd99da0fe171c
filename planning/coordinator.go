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
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	itelemetry "github.com/planloop/planloop-go/internal/telemetry"
	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/telemetry/trace"
)

// Options holds the configuration of a Coordinator.
type Options struct {
	clock            Clock
	ids              IDGenerator
	tokens           TokenSource
	hub              EventHub
	shareURLTemplate string
}

// Option configures the Coordinator.
type Option func(*Options)

// WithClock sets the time source. Defaults to the system clock in UTC.
func WithClock(clock Clock) Option {
	return func(opts *Options) {
		opts.clock = clock
	}
}

// WithIDGenerator sets the identifier source. Defaults to random UUIDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(opts *Options) {
		opts.ids = ids
	}
}

// WithTokenSource sets the invite token source. Defaults to crypto/rand
// tokens of 256 bits.
func WithTokenSource(tokens TokenSource) Option {
	return func(opts *Options) {
		opts.tokens = tokens
	}
}

// WithHub sets the event hub mutations broadcast through. Without a hub the
// Coordinator still serves every operation except Connect; events are simply
// not fanned out.
func WithHub(hub EventHub) Option {
	return func(opts *Options) {
		opts.hub = hub
	}
}

// WithShareURLTemplate overrides the share link template of session
// summaries. The substring "{session_id}" is replaced with the session ID.
func WithShareURLTemplate(template string) Option {
	return func(opts *Options) {
		opts.shareURLTemplate = template
	}
}

// Coordinator is the single public entry point of the coordination core. It
// serializes mutations per session, drives the component engines, and hands
// every emitted event to the hub after the session lock is released.
type Coordinator struct {
	opts Options
	deps deps
	hub  EventHub

	registry  *sessionRegistry
	votes     *voteEngine
	itinerary *itineraryBook
	comments  *commentLog
	syncer    *stateSyncer
	summaries *summaryBuilder

	locks *keyedMutex

	closeOnce sync.Once
	closeErr  error
}

// NewCoordinator builds a Coordinator on top of the given store.
func NewCoordinator(store Store, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	options := Options{
		clock:            SystemClock(),
		ids:              UUIDGenerator(),
		tokens:           RandomTokenSource(),
		shareURLTemplate: defaultShareURLTemplate,
	}
	for _, opt := range opts {
		opt(&options)
	}

	d := deps{
		store:  store,
		clock:  options.clock,
		ids:    options.ids,
		tokens: options.tokens,
	}
	summaries := &summaryBuilder{deps: d, shareURLTemplate: options.shareURLTemplate}
	votes := &voteEngine{deps: d}
	c := &Coordinator{
		opts:      options,
		deps:      d,
		hub:       options.hub,
		registry:  &sessionRegistry{deps: d, summaries: summaries},
		votes:     votes,
		itinerary: &itineraryBook{deps: d},
		comments:  &commentLog{deps: d},
		syncer:    &stateSyncer{deps: d, votes: votes},
		summaries: summaries,
		locks:     newKeyedMutex(),
	}
	return c, nil
}

// Close releases the hub and the store. Safe to call more than once.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		if closer, ok := c.hub.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Errorf("Close event hub: %v", err)
			}
		}
		c.closeErr = c.deps.store.Close()
	})
	return c.closeErr
}

// begin opens the span and latency measurement of one operation. The
// returned func records the outcome and must be called exactly once.
func (c *Coordinator) begin(ctx context.Context, op, sessionID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := trace.Tracer.Start(ctx, op)
	span.SetAttributes(attribute.String(itelemetry.KeyOperation, op))
	if sessionID != "" {
		span.SetAttributes(attribute.String(itelemetry.KeySessionID, sessionID))
	}
	return ctx, func(err error) {
		code := ""
		if err != nil {
			code = string(CodeOf(err))
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(itelemetry.KeyErrorCode, code))
		}
		span.End()
		itelemetry.IncOperation(ctx, op, code)
		itelemetry.RecordOperationDuration(ctx, op, time.Since(start))
	}
}

// dispatch fans one event out through the hub. Mutations call it after the
// session lock is released so slow sinks never extend the critical section.
func (c *Coordinator) dispatch(ctx context.Context, event *Event) {
	if c.hub == nil || event == nil {
		return
	}
	c.hub.Broadcast(ctx, event)
}

// CreateSession creates a session and registers the organizer as its first
// participant. No event is emitted; the organizer is the only member.
func (c *Coordinator) CreateSession(ctx context.Context, req CreateSessionRequest) (sess *Session, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationCreateSession, "")
	defer func() { done(err) }()

	sess, err = c.registry.createSession(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Debugf("Created planning session %s (%q) for organizer %s", sess.ID, sess.Name, sess.OrganizerID)
	return sess, nil
}

// GetSession returns one session by ID.
func (c *Coordinator) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return c.deps.store.GetSession(ctx, sessionID)
}

// GetSessionByToken returns the session owning the invite token. Looking a
// token up has no join side effects.
func (c *Coordinator) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	return c.deps.store.GetSessionByToken(ctx, token)
}

// JoinSession admits a participant through an invite token and broadcasts
// ParticipantJoined. participantID is optional; when empty a fresh ID is
// assigned.
func (c *Coordinator) JoinSession(ctx context.Context, token, displayName, participantID string) (p *Participant, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationJoinSession, "")
	defer func() { done(err) }()

	// The session ID is only known once the token resolves; join re-runs
	// the lookup under the lock so the admission checks stay serialized.
	sess, err := c.deps.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.lock(sess.ID)
	p, _, evt, err := c.registry.join(ctx, token, displayName, participantID)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return p, nil
}

// GetParticipants returns the session's participants in join order.
func (c *Coordinator) GetParticipants(ctx context.Context, sessionID string) ([]*Participant, error) {
	if _, err := c.deps.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return c.deps.store.ListParticipants(ctx, sessionID)
}

// RevokeInvite blocks further joins through the session's invite token.
// Organizer only; revoking twice is a no-op.
func (c *Coordinator) RevokeInvite(ctx context.Context, sessionID, requesterID string) (err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationRevokeInvite, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	_, err = c.registry.revokeInvite(ctx, sessionID, requesterID)
	unlock()
	return err
}

// FinalizeSession freezes the session and returns its summary. Organizer
// only. Every later mutation on the session fails with CodeFinalized.
func (c *Coordinator) FinalizeSession(ctx context.Context, sessionID, requesterID string) (summary *SessionSummary, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationFinalizeSession, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	summary, evt, err := c.registry.finalize(ctx, sessionID, requesterID)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return summary, nil
}

// Summary rebuilds the summary of a finalized session. The result is
// deterministic: finalization froze the membership and itinerary, and
// FinalizedAt is the session's last update.
func (c *Coordinator) Summary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	sess, err := c.deps.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case StatusArchived:
		return nil, Errorf(CodeNotFound, "session %s not found", sessionID)
	case StatusFinalized:
		return c.summaries.build(ctx, sess, sess.UpdatedAt)
	default:
		return nil, Errorf(CodeValidation, "session %s is not finalized", sessionID)
	}
}

// InactiveSessions lists the IDs of non-archived sessions whose last update
// is before cutoff. The listing is advisory: ArchiveSession re-checks each
// candidate under its lock.
func (c *Coordinator) InactiveSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	return c.registry.inactiveSessions(ctx, cutoff)
}

// ArchiveSession archives one session if it is still inactive at cutoff.
// It reports whether the session was archived by this call.
func (c *Coordinator) ArchiveSession(ctx context.Context, sessionID string, cutoff time.Time) (archived bool, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationArchiveSession, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	archived, err = c.registry.archiveOne(ctx, sessionID, cutoff)
	unlock()
	return archived, err
}

// ArchiveInactive archives every session untouched for longer than
// cutoffAge and returns how many were archived. Already-archived sessions
// are skipped, so running the sweep twice archives nothing the second time.
// Per-session failures are logged and skipped; the sweep keeps going.
func (c *Coordinator) ArchiveInactive(ctx context.Context, cutoffAge time.Duration) (count int, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationArchiveInactive, "")
	defer func() { done(err) }()

	cutoff := c.deps.clock.Now().Add(-cutoffAge)
	ids, err := c.registry.inactiveSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		archived, archiveErr := c.ArchiveSession(ctx, id, cutoff)
		if archiveErr != nil {
			log.Errorf("Archive session %s: %v", id, archiveErr)
			continue
		}
		if archived {
			count++
		}
	}
	if count > 0 {
		log.Infof("Archived %d inactive planning sessions", count)
	}
	return count, nil
}

// AddVenue suggests a venue option and broadcasts VenueAdded.
func (c *Coordinator) AddVenue(ctx context.Context, sessionID string, input VenueInput) (venue *VenueOption, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationAddVenue, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	venue, evt, err := c.votes.addVenue(ctx, sessionID, input)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return venue, nil
}

// GetVenues returns the session's venue options in suggestion order.
func (c *Coordinator) GetVenues(ctx context.Context, sessionID string) ([]*VenueOption, error) {
	return c.votes.venues(ctx, sessionID)
}

// RankVenues returns every venue with its tally, ordered best-first under
// competition ranking: tied venues share a rank and the next rank is
// skipped.
func (c *Coordinator) RankVenues(ctx context.Context, sessionID string) ([]*RankedVenue, error) {
	return c.votes.rankVenues(ctx, sessionID)
}

// CastVote records a participant's stance on a venue and broadcasts
// VoteCast with the venue's new tally. Re-casting replaces the previous
// stance; one vote per (venue, participant).
func (c *Coordinator) CastVote(ctx context.Context, sessionID, venueID, participantID string, voteType VoteType) (tally *Tally, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationCastVote, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	tally, evt, err := c.votes.castVote(ctx, sessionID, venueID, participantID, voteType)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return tally, nil
}

// TallyVenue returns the current vote counts of one venue.
func (c *Coordinator) TallyVenue(ctx context.Context, sessionID, venueID string) (*Tally, error) {
	return c.votes.tally(ctx, sessionID, venueID)
}

// AddToItinerary schedules a venue and broadcasts ItineraryItemAdded. The
// itinerary is re-indexed so orders stay chronological and contiguous.
func (c *Coordinator) AddToItinerary(ctx context.Context, sessionID, venueID string, scheduledTime time.Time, addedBy string) (item *ItineraryItem, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationAddItineraryItem, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	item, evt, err := c.itinerary.add(ctx, sessionID, venueID, scheduledTime, addedBy)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return item, nil
}

// RemoveFromItinerary deletes one itinerary item and broadcasts
// ItineraryItemRemoved. removedBy is optional.
func (c *Coordinator) RemoveFromItinerary(ctx context.Context, sessionID, itemID, removedBy string) (err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationRemoveItinerary, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	evt, err := c.itinerary.remove(ctx, sessionID, itemID, removedBy)
	unlock()
	if err != nil {
		return err
	}
	c.dispatch(ctx, evt)
	return nil
}

// GetItinerary returns the itinerary in canonical chronological order.
func (c *Coordinator) GetItinerary(ctx context.Context, sessionID string) ([]*ItineraryItem, error) {
	return c.itinerary.list(ctx, sessionID)
}

// ReorderItinerary validates that itemIDs lists the current itinerary
// exactly once each, then re-applies canonical chronological ordering and
// returns the list clients should converge on. Manual orders that fight the
// chronology do not survive.
func (c *Coordinator) ReorderItinerary(ctx context.Context, sessionID string, itemIDs []string) (items []*ItineraryItem, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationReorderItinerary, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	items, err = c.itinerary.reorder(ctx, sessionID, itemIDs)
	unlock()
	return items, err
}

// AddComment appends a comment on a venue and broadcasts CommentAdded.
func (c *Coordinator) AddComment(ctx context.Context, sessionID, venueID, participantID, text string) (comment *Comment, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationAddComment, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	comment, evt, err := c.comments.add(ctx, sessionID, venueID, participantID, text)
	unlock()
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, evt)
	return comment, nil
}

// GetComments returns one venue's comments in chronological order.
func (c *Coordinator) GetComments(ctx context.Context, sessionID, venueID string) ([]*Comment, error) {
	return c.comments.byVenue(ctx, sessionID, venueID)
}

// GetParticipantComments returns one participant's comments across all
// venues in chronological order.
func (c *Coordinator) GetParticipantComments(ctx context.Context, sessionID, participantID string) ([]*Comment, error) {
	return c.comments.byParticipant(ctx, sessionID, participantID)
}

// Connect registers a participant's sink with the hub and delivers the
// initial StateSync before any subsequent broadcast. The snapshot and the
// registration happen under the session lock, so no mutation can slip
// between them: anything the snapshot misses is broadcast to the sink
// afterward.
func (c *Coordinator) Connect(ctx context.Context, sessionID, participantID string, sink EventSink) (err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationConnect, sessionID)
	defer func() { done(err) }()

	if c.hub == nil {
		return NewError(CodeInternal, "no event hub configured")
	}
	if sink == nil {
		return NewError(CodeValidation, "sink is required")
	}
	unlock := c.locks.lock(sessionID)
	defer unlock()
	evt, err := c.snapshotFor(ctx, sessionID, participantID)
	if err != nil {
		return err
	}
	return c.hub.Register(ctx, sessionID, participantID, sink, evt)
}

// Disconnect detaches the participant's sink, if any.
func (c *Coordinator) Disconnect(sessionID, participantID string) {
	if c.hub == nil {
		return
	}
	c.hub.Unregister(sessionID, participantID)
}

// SyncState composes a point-in-time snapshot of the session and, when the
// participant is connected, delivers it as a StateSync event. The snapshot
// is also returned so transports can serve it on request.
func (c *Coordinator) SyncState(ctx context.Context, sessionID, participantID string) (evt *Event, err error) {
	ctx, done := c.begin(ctx, itelemetry.OperationSyncState, sessionID)
	defer func() { done(err) }()

	unlock := c.locks.lock(sessionID)
	evt, err = c.snapshotFor(ctx, sessionID, participantID)
	unlock()
	if err != nil {
		return nil, err
	}
	if c.hub != nil {
		c.hub.SendTo(ctx, sessionID, participantID, evt)
	}
	return evt, nil
}

// snapshotFor builds the StateSync event for one session member. Must be
// called with the session lock held.
func (c *Coordinator) snapshotFor(ctx context.Context, sessionID, participantID string) (*Event, error) {
	sess, err := c.deps.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(participantID) {
		return nil, Errorf(CodeValidation, "participant %s is not a member of session %s", participantID, sessionID)
	}
	return c.syncer.snapshot(ctx, sessionID, participantID)
}
