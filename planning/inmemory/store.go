//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of planning.Store.
// Records live in nested maps behind one RWMutex; everything crossing the
// boundary is deep-copied so callers never alias stored state.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/planloop/planloop-go/planning"
)

// defaultArchivedRetention is how long archived sessions are kept before the
// janitor evicts them.
const defaultArchivedRetention = 24 * time.Hour

// options is the configuration for the in-memory store.
type options struct {
	cleanupInterval   time.Duration
	archivedRetention time.Duration
}

// Option is the option for the in-memory store.
type Option func(*options)

var defaultOptions = options{
	archivedRetention: defaultArchivedRetention,
}

// WithCleanupInterval starts a background janitor that evicts archived
// sessions every interval. Zero or negative disables the janitor.
func WithCleanupInterval(interval time.Duration) Option {
	return func(opts *options) {
		opts.cleanupInterval = interval
	}
}

// WithArchivedRetention sets how long archived sessions survive before the
// janitor evicts them. Only meaningful together with WithCleanupInterval.
func WithArchivedRetention(retention time.Duration) Option {
	return func(opts *options) {
		opts.archivedRetention = retention
	}
}

// record bundles one session with every child entity it owns. Eviction
// deletes the record as a whole, which is what gives session destruction
// its cascade semantics.
type record struct {
	session      *planning.Session
	participants []*planning.Participant
	venues       []*planning.VenueOption
	// votes is keyed venueID → participantID → vote.
	votes    map[string]map[string]*planning.Vote
	items    map[string]*planning.ItineraryItem
	comments []*planning.Comment
}

func newRecord(sess *planning.Session) *record {
	return &record{
		session: sess,
		votes:   make(map[string]map[string]*planning.Vote),
		items:   make(map[string]*planning.ItineraryItem),
	}
}

// Store is an in-memory planning.Store.
type Store struct {
	mu sync.RWMutex
	// sessions maps session ID to its record.
	sessions map[string]*record
	// tokens maps invite token to session ID.
	tokens map[string]string
	// order holds session IDs in creation order.
	order []string

	opts          options
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	cleanupOnce   sync.Once
	closeOnce     sync.Once
}

var _ planning.Store = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore(options ...Option) *Store {
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}
	s := &Store{
		sessions:    make(map[string]*record),
		tokens:      make(map[string]string),
		opts:        opts,
		cleanupDone: make(chan struct{}),
	}
	if opts.cleanupInterval > 0 {
		s.startCleanupRoutine()
	}
	return s
}

// CreateSession persists a new session. The session ID and invite token
// must both be unused.
func (s *Store) CreateSession(ctx context.Context, session *planning.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return planning.Errorf(planning.CodeDuplicate, "session %s already exists", session.ID)
	}
	if _, exists := s.tokens[session.InviteToken]; exists {
		return planning.NewError(planning.CodeDuplicate, "invite token already in use")
	}
	s.sessions[session.ID] = newRecord(session.Clone())
	s.tokens[session.InviteToken] = session.ID
	s.order = append(s.order, session.ID)
	return nil
}

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*planning.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.session.Clone(), nil
}

// GetSessionByToken returns the session owning the invite token.
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*planning.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.tokens[token]
	if !ok {
		return nil, planning.NewError(planning.CodeNotFound, "invite token not found")
	}
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.session.Clone(), nil
}

// UpdateSession replaces the stored session record.
func (s *Store) UpdateSession(ctx context.Context, session *planning.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(session.ID)
	if err != nil {
		return err
	}
	rec.session = session.Clone()
	return nil
}

// ListSessions returns sessions matching the filter in creation order.
func (s *Store) ListSessions(ctx context.Context, filter planning.SessionFilter) ([]*planning.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*planning.Session, 0, len(s.order))
	for _, id := range s.order {
		rec, ok := s.sessions[id]
		if !ok {
			continue
		}
		sess := rec.session
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !sess.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		sessions = append(sessions, sess.Clone())
	}
	return sessions, nil
}

// CreateParticipant persists a new participant.
func (s *Store) CreateParticipant(ctx context.Context, participant *planning.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(participant.SessionID)
	if err != nil {
		return err
	}
	for _, p := range rec.participants {
		if p.ID == participant.ID {
			return planning.Errorf(planning.CodeDuplicate,
				"participant %s already exists in session %s", participant.ID, participant.SessionID)
		}
	}
	rec.participants = append(rec.participants, participant.Clone())
	return nil
}

// GetParticipant returns one participant of a session.
func (s *Store) GetParticipant(ctx context.Context, sessionID, participantID string) (*planning.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	for _, p := range rec.participants {
		if p.ID == participantID {
			return p.Clone(), nil
		}
	}
	return nil, planning.Errorf(planning.CodeNotFound,
		"participant %s not found in session %s", participantID, sessionID)
}

// ListParticipants returns the session's participants in join order.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]*planning.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	participants := make([]*planning.Participant, 0, len(rec.participants))
	for _, p := range rec.participants {
		participants = append(participants, p.Clone())
	}
	return participants, nil
}

// CreateVenue persists a new venue option.
func (s *Store) CreateVenue(ctx context.Context, venue *planning.VenueOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(venue.SessionID)
	if err != nil {
		return err
	}
	for _, v := range rec.venues {
		if v.ID == venue.ID {
			return planning.Errorf(planning.CodeDuplicate,
				"venue %s already exists in session %s", venue.ID, venue.SessionID)
		}
	}
	rec.venues = append(rec.venues, venue.Clone())
	return nil
}

// GetVenue returns one venue option of a session.
func (s *Store) GetVenue(ctx context.Context, sessionID, venueID string) (*planning.VenueOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	for _, v := range rec.venues {
		if v.ID == venueID {
			return v.Clone(), nil
		}
	}
	return nil, planning.Errorf(planning.CodeVenueNotFound,
		"venue %s not found in session %s", venueID, sessionID)
}

// ListVenues returns the session's venue options in suggestion order.
func (s *Store) ListVenues(ctx context.Context, sessionID string) ([]*planning.VenueOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	venues := make([]*planning.VenueOption, 0, len(rec.venues))
	for _, v := range rec.venues {
		venues = append(venues, v.Clone())
	}
	return venues, nil
}

// UpsertVote creates or replaces the vote keyed by (venue, participant).
func (s *Store) UpsertVote(ctx context.Context, vote *planning.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(vote.SessionID)
	if err != nil {
		return err
	}
	byParticipant, ok := rec.votes[vote.VenueID]
	if !ok {
		byParticipant = make(map[string]*planning.Vote)
		rec.votes[vote.VenueID] = byParticipant
	}
	byParticipant[vote.ParticipantID] = vote.Clone()
	return nil
}

// GetVote returns the vote cast by a participant on a venue.
func (s *Store) GetVote(ctx context.Context, sessionID, venueID, participantID string) (*planning.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	vote, ok := rec.votes[venueID][participantID]
	if !ok {
		return nil, planning.Errorf(planning.CodeNotFound,
			"vote by %s on venue %s not found", participantID, venueID)
	}
	return vote.Clone(), nil
}

// ListVotesByVenue returns all votes on one venue, ordered by participant
// for determinism.
func (s *Store) ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]*planning.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	votes := make([]*planning.Vote, 0, len(rec.votes[venueID]))
	for _, vote := range rec.votes[venueID] {
		votes = append(votes, vote.Clone())
	}
	sortVotes(votes)
	return votes, nil
}

// ListVotesBySession returns all votes in the session.
func (s *Store) ListVotesBySession(ctx context.Context, sessionID string) ([]*planning.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	var votes []*planning.Vote
	for _, byParticipant := range rec.votes {
		for _, vote := range byParticipant {
			votes = append(votes, vote.Clone())
		}
	}
	sortVotes(votes)
	return votes, nil
}

// CreateItineraryItem persists a new itinerary item.
func (s *Store) CreateItineraryItem(ctx context.Context, item *planning.ItineraryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(item.SessionID)
	if err != nil {
		return err
	}
	if _, exists := rec.items[item.ID]; exists {
		return planning.Errorf(planning.CodeDuplicate,
			"itinerary item %s already exists in session %s", item.ID, item.SessionID)
	}
	rec.items[item.ID] = item.Clone()
	return nil
}

// DeleteItineraryItem removes one itinerary item.
func (s *Store) DeleteItineraryItem(ctx context.Context, sessionID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return err
	}
	if _, exists := rec.items[itemID]; !exists {
		return planning.Errorf(planning.CodeItemNotFound, "itinerary item %s not found", itemID)
	}
	delete(rec.items, itemID)
	return nil
}

// UpdateItineraryOrders rewrites the Order values of the given items.
func (s *Store) UpdateItineraryOrders(ctx context.Context, sessionID string, items []*planning.ItineraryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return err
	}
	for _, item := range items {
		stored, exists := rec.items[item.ID]
		if !exists {
			return planning.Errorf(planning.CodeItemNotFound, "itinerary item %s not found", item.ID)
		}
		stored.Order = item.Order
	}
	return nil
}

// ListItinerary returns the session's itinerary items without any order
// guarantee.
func (s *Store) ListItinerary(ctx context.Context, sessionID string) ([]*planning.ItineraryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]*planning.ItineraryItem, 0, len(rec.items))
	for _, item := range rec.items {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// CreateComment appends a comment.
func (s *Store) CreateComment(ctx context.Context, comment *planning.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(comment.SessionID)
	if err != nil {
		return err
	}
	for _, c := range rec.comments {
		if c.ID == comment.ID {
			return planning.Errorf(planning.CodeDuplicate,
				"comment %s already exists in session %s", comment.ID, comment.SessionID)
		}
	}
	rec.comments = append(rec.comments, comment.Clone())
	return nil
}

// ListCommentsByVenue returns a venue's comments in creation order.
func (s *Store) ListCommentsByVenue(ctx context.Context, sessionID, venueID string) ([]*planning.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	var comments []*planning.Comment
	for _, c := range rec.comments {
		if c.VenueID == venueID {
			comments = append(comments, c.Clone())
		}
	}
	return comments, nil
}

// ListCommentsByParticipant returns a participant's comments in creation
// order.
func (s *Store) ListCommentsByParticipant(ctx context.Context, sessionID, participantID string) ([]*planning.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(sessionID)
	if err != nil {
		return nil, err
	}
	var comments []*planning.Comment
	for _, c := range rec.comments {
		if c.ParticipantID == participantID {
			comments = append(comments, c.Clone())
		}
	}
	return comments, nil
}

// Close stops the janitor. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.stopCleanupRoutine()
	})
	return nil
}

// record returns the live record of a session. Callers must hold s.mu.
func (s *Store) record(sessionID string) (*record, error) {
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, planning.Errorf(planning.CodeNotFound, "session %s not found", sessionID)
	}
	return rec, nil
}

// startCleanupRoutine starts the background janitor.
func (s *Store) startCleanupRoutine() {
	s.cleanupTicker = time.NewTicker(s.opts.cleanupInterval)
	ticker := s.cleanupTicker // Capture ticker to avoid race condition
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evictArchived()
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

// stopCleanupRoutine stops the background janitor.
func (s *Store) stopCleanupRoutine() {
	s.cleanupOnce.Do(func() {
		if s.cleanupTicker != nil {
			close(s.cleanupDone)
			s.cleanupTicker = nil
		}
	})
}

// evictArchived drops archived sessions past the retention window, along
// with every child record and the token index entry.
func (s *Store) evictArchived() {
	cutoff := time.Now().UTC().Add(-s.opts.archivedRetention)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := false
	for id, rec := range s.sessions {
		if rec.session.Status != planning.StatusArchived {
			continue
		}
		if !rec.session.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(s.tokens, rec.session.InviteToken)
		delete(s.sessions, id)
		evicted = true
	}
	if !evicted {
		return
	}
	order := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.sessions[id]; ok {
			order = append(order, id)
		}
	}
	s.order = order
}

// sortVotes orders votes by venue then participant so listings are
// deterministic.
func sortVotes(votes []*planning.Vote) {
	sort.Slice(votes, func(i, j int) bool {
		a, b := votes[i], votes[j]
		if a.VenueID != b.VenueID {
			return a.VenueID < b.VenueID
		}
		return a.ParticipantID < b.ParticipantID
	})
}
