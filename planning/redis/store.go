//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a redis-backed implementation of planning.Store.
// Each session's keys share one hash tag so multi-key writes stay in a
// single cluster slot: session records and the token index are plain keys,
// participants, venues, votes and itinerary values live in hashes, and
// itinerary ordering and comments use sorted sets scored by time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/planning"
)

// Store is a redis-backed planning.Store.
type Store struct {
	client redis.UniversalClient
	keys   keyBuilder
	once   sync.Once
}

var _ planning.Store = (*Store)(nil)

// NewStore creates a redis store from the given options. A client must be
// supplied through WithRedisClientURL or WithRedisClient.
func NewStore(options ...Option) (*Store, error) {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	client := opts.client
	if opts.url != "" {
		redisOpts, err := redis.ParseURL(opts.url)
		if err != nil {
			return nil, fmt.Errorf("parse redis client url: %w", err)
		}
		client = redis.NewClient(redisOpts)
	}
	if client == nil {
		return nil, errors.New("redis planning store requires a client: use WithRedisClientURL or WithRedisClient")
	}
	return &Store{
		client: client,
		keys:   keyBuilder{prefix: opts.keyPrefix},
	}, nil
}

// keyBuilder derives the redis keys of one deployment. The session ID is
// wrapped in a hash tag so every key of a session lands in the same slot.
type keyBuilder struct {
	prefix string
}

func (k keyBuilder) apply(key string) string {
	if k.prefix == "" {
		return key
	}
	return k.prefix + ":" + key
}

func (k keyBuilder) session(sessionID string) string {
	return k.apply(fmt.Sprintf("sess:{%s}", sessionID))
}

func (k keyBuilder) token(token string) string {
	return k.apply("tok:" + token)
}

// sessionIndex is the creation-ordered sorted set of session IDs.
func (k keyBuilder) sessionIndex() string {
	return k.apply("sessions")
}

func (k keyBuilder) participants(sessionID string) string {
	return k.apply(fmt.Sprintf("part:{%s}", sessionID))
}

func (k keyBuilder) venues(sessionID string) string {
	return k.apply(fmt.Sprintf("venue:{%s}", sessionID))
}

func (k keyBuilder) votes(sessionID, venueID string) string {
	return k.apply(fmt.Sprintf("vote:{%s}:%s", sessionID, venueID))
}

// itineraryIndex is the time-ordered sorted set of itinerary item IDs.
func (k keyBuilder) itineraryIndex(sessionID string) string {
	return k.apply(fmt.Sprintf("itin:{%s}", sessionID))
}

func (k keyBuilder) itineraryValues(sessionID string) string {
	return k.apply(fmt.Sprintf("itinval:{%s}", sessionID))
}

func (k keyBuilder) comments(sessionID, venueID string) string {
	return k.apply(fmt.Sprintf("comment:{%s}:%s", sessionID, venueID))
}

// CreateSession persists a new session and claims its invite token.
func (s *Store) CreateSession(ctx context.Context, session *planning.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal session")
	}
	created, err := s.client.SetNX(ctx, s.keys.session(session.ID), payload, 0).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "create session")
	}
	if !created {
		return planning.Errorf(planning.CodeDuplicate, "session %s already exists", session.ID)
	}
	claimed, err := s.client.SetNX(ctx, s.keys.token(session.InviteToken), session.ID, 0).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "claim invite token")
	}
	if !claimed {
		// Roll the session key back so the half-created record is not
		// observable.
		s.client.Del(ctx, s.keys.session(session.ID))
		return planning.NewError(planning.CodeDuplicate, "invite token already in use")
	}
	err = s.client.ZAdd(ctx, s.keys.sessionIndex(), redis.Z{
		Score:  float64(session.CreatedAt.UnixNano()),
		Member: session.ID,
	}).Err()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "index session")
	}
	return nil
}

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*planning.Session, error) {
	payload, err := s.client.Get(ctx, s.keys.session(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, planning.Errorf(planning.CodeNotFound, "session %s not found", sessionID)
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "get session")
	}
	sess := &planning.Session{}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "unmarshal session")
	}
	return sess, nil
}

// GetSessionByToken returns the session owning the invite token.
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*planning.Session, error) {
	sessionID, err := s.client.Get(ctx, s.keys.token(token)).Result()
	if err == redis.Nil {
		return nil, planning.NewError(planning.CodeNotFound, "invite token not found")
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "get invite token")
	}
	return s.GetSession(ctx, sessionID)
}

// UpdateSession replaces the stored session record.
func (s *Store) UpdateSession(ctx context.Context, session *planning.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal session")
	}
	set, err := s.client.SetXX(ctx, s.keys.session(session.ID), payload, 0).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "update session")
	}
	if !set {
		return planning.Errorf(planning.CodeNotFound, "session %s not found", session.ID)
	}
	return nil
}

// ListSessions returns sessions matching the filter in creation order.
// Malformed records are logged and skipped.
func (s *Store) ListSessions(ctx context.Context, filter planning.SessionFilter) ([]*planning.Session, error) {
	ids, err := s.client.ZRange(ctx, s.keys.sessionIndex(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list sessions")
	}
	if len(ids) == 0 {
		return []*planning.Session{}, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.Get(ctx, s.keys.session(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list sessions")
	}
	sessions := make([]*planning.Session, 0, len(ids))
	for i, cmd := range cmds {
		payload, err := cmd.Bytes()
		if err == redis.Nil {
			continue // Index entry outlived the record.
		}
		if err != nil {
			return nil, planning.WrapError(planning.CodeStorageFailure, err, "list sessions")
		}
		sess := &planning.Session{}
		if err := json.Unmarshal(payload, sess); err != nil {
			log.Errorf("Skipping malformed session record %s: %v", ids[i], err)
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !sess.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// CreateParticipant persists a new participant.
func (s *Store) CreateParticipant(ctx context.Context, participant *planning.Participant) error {
	if err := s.requireSession(ctx, participant.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(participant)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal participant")
	}
	created, err := s.client.HSetNX(ctx, s.keys.participants(participant.SessionID), participant.ID, payload).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "create participant")
	}
	if !created {
		return planning.Errorf(planning.CodeDuplicate,
			"participant %s already exists in session %s", participant.ID, participant.SessionID)
	}
	return nil
}

// GetParticipant returns one participant of a session.
func (s *Store) GetParticipant(ctx context.Context, sessionID, participantID string) (*planning.Participant, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, s.keys.participants(sessionID), participantID).Bytes()
	if err == redis.Nil {
		return nil, planning.Errorf(planning.CodeNotFound,
			"participant %s not found in session %s", participantID, sessionID)
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "get participant")
	}
	p := &planning.Participant{}
	if err := json.Unmarshal(payload, p); err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "unmarshal participant")
	}
	return p, nil
}

// ListParticipants returns the session's participants in join order. The
// session's ParticipantIDs list is the order authority; participants
// missing from it sort by join time at the end.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]*planning.Participant, error) {
	pipe := s.client.Pipeline()
	sessCmd := pipe.Get(ctx, s.keys.session(sessionID))
	partCmd := pipe.HGetAll(ctx, s.keys.participants(sessionID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list participants")
	}
	payload, err := sessCmd.Bytes()
	if err == redis.Nil {
		return nil, planning.Errorf(planning.CodeNotFound, "session %s not found", sessionID)
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list participants")
	}
	sess := &planning.Session{}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "unmarshal session")
	}
	fields, err := partCmd.Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list participants")
	}
	participants := make([]*planning.Participant, 0, len(fields))
	for id, value := range fields {
		p := &planning.Participant{}
		if err := json.Unmarshal([]byte(value), p); err != nil {
			log.Errorf("Skipping malformed participant record %s in session %s: %v", id, sessionID, err)
			continue
		}
		participants = append(participants, p)
	}
	position := make(map[string]int, len(sess.ParticipantIDs))
	for i, id := range sess.ParticipantIDs {
		position[id] = i
	}
	sort.Slice(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		ai, aok := position[a.ID]
		bi, bok := position[b.ID]
		if aok && bok {
			return ai < bi
		}
		if aok != bok {
			return aok
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	return participants, nil
}

// CreateVenue persists a new venue option.
func (s *Store) CreateVenue(ctx context.Context, venue *planning.VenueOption) error {
	if err := s.requireSession(ctx, venue.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(venue)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal venue")
	}
	created, err := s.client.HSetNX(ctx, s.keys.venues(venue.SessionID), venue.ID, payload).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "create venue")
	}
	if !created {
		return planning.Errorf(planning.CodeDuplicate,
			"venue %s already exists in session %s", venue.ID, venue.SessionID)
	}
	return nil
}

// GetVenue returns one venue option of a session.
func (s *Store) GetVenue(ctx context.Context, sessionID, venueID string) (*planning.VenueOption, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, s.keys.venues(sessionID), venueID).Bytes()
	if err == redis.Nil {
		return nil, planning.Errorf(planning.CodeVenueNotFound,
			"venue %s not found in session %s", venueID, sessionID)
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "get venue")
	}
	venue := &planning.VenueOption{}
	if err := json.Unmarshal(payload, venue); err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "unmarshal venue")
	}
	return venue, nil
}

// ListVenues returns the session's venue options in suggestion order.
func (s *Store) ListVenues(ctx context.Context, sessionID string) ([]*planning.VenueOption, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.keys.venues(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list venues")
	}
	venues := make([]*planning.VenueOption, 0, len(fields))
	for id, value := range fields {
		venue := &planning.VenueOption{}
		if err := json.Unmarshal([]byte(value), venue); err != nil {
			log.Errorf("Skipping malformed venue record %s in session %s: %v", id, sessionID, err)
			continue
		}
		venues = append(venues, venue)
	}
	sort.Slice(venues, func(i, j int) bool {
		a, b := venues[i], venues[j]
		if !a.SuggestedAt.Equal(b.SuggestedAt) {
			return a.SuggestedAt.Before(b.SuggestedAt)
		}
		return a.ID < b.ID
	})
	return venues, nil
}

// UpsertVote creates or replaces the vote keyed by (venue, participant).
func (s *Store) UpsertVote(ctx context.Context, vote *planning.Vote) error {
	if err := s.requireSession(ctx, vote.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(vote)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal vote")
	}
	err = s.client.HSet(ctx, s.keys.votes(vote.SessionID, vote.VenueID), vote.ParticipantID, payload).Err()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "upsert vote")
	}
	return nil
}

// GetVote returns the vote cast by a participant on a venue.
func (s *Store) GetVote(ctx context.Context, sessionID, venueID, participantID string) (*planning.Vote, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, s.keys.votes(sessionID, venueID), participantID).Bytes()
	if err == redis.Nil {
		return nil, planning.Errorf(planning.CodeNotFound,
			"vote by %s on venue %s not found", participantID, venueID)
	}
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "get vote")
	}
	vote := &planning.Vote{}
	if err := json.Unmarshal(payload, vote); err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "unmarshal vote")
	}
	return vote, nil
}

// ListVotesByVenue returns all votes on one venue.
func (s *Store) ListVotesByVenue(ctx context.Context, sessionID, venueID string) ([]*planning.Vote, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.keys.votes(sessionID, venueID)).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list votes")
	}
	return s.decodeVotes(sessionID, fields), nil
}

// ListVotesBySession returns all votes in the session.
func (s *Store) ListVotesBySession(ctx context.Context, sessionID string) ([]*planning.Vote, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	venueIDs, err := s.client.HKeys(ctx, s.keys.venues(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list votes")
	}
	if len(venueIDs) == 0 {
		return []*planning.Vote{}, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(venueIDs))
	for _, venueID := range venueIDs {
		cmds = append(cmds, pipe.HGetAll(ctx, s.keys.votes(sessionID, venueID)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list votes")
	}
	var votes []*planning.Vote
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil && err != redis.Nil {
			return nil, planning.WrapError(planning.CodeStorageFailure, err, "list votes")
		}
		votes = append(votes, s.decodeVotes(sessionID, fields)...)
	}
	sortVotes(votes)
	return votes, nil
}

func (s *Store) decodeVotes(sessionID string, fields map[string]string) []*planning.Vote {
	votes := make([]*planning.Vote, 0, len(fields))
	for participantID, value := range fields {
		vote := &planning.Vote{}
		if err := json.Unmarshal([]byte(value), vote); err != nil {
			log.Errorf("Skipping malformed vote record by %s in session %s: %v", participantID, sessionID, err)
			continue
		}
		votes = append(votes, vote)
	}
	sortVotes(votes)
	return votes
}

// CreateItineraryItem persists a new itinerary item: the value hash holds
// the record, the index sorted set orders IDs by scheduled time.
func (s *Store) CreateItineraryItem(ctx context.Context, item *planning.ItineraryItem) error {
	if err := s.requireSession(ctx, item.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal itinerary item")
	}
	created, err := s.client.HSetNX(ctx, s.keys.itineraryValues(item.SessionID), item.ID, payload).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "create itinerary item")
	}
	if !created {
		return planning.Errorf(planning.CodeDuplicate,
			"itinerary item %s already exists in session %s", item.ID, item.SessionID)
	}
	err = s.client.ZAdd(ctx, s.keys.itineraryIndex(item.SessionID), redis.Z{
		Score:  float64(item.ScheduledTime.UnixNano()),
		Member: item.ID,
	}).Err()
	if err != nil {
		s.client.HDel(ctx, s.keys.itineraryValues(item.SessionID), item.ID)
		return planning.WrapError(planning.CodeStorageFailure, err, "index itinerary item")
	}
	return nil
}

// DeleteItineraryItem removes one itinerary item.
func (s *Store) DeleteItineraryItem(ctx context.Context, sessionID, itemID string) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	delCmd := pipe.HDel(ctx, s.keys.itineraryValues(sessionID), itemID)
	pipe.ZRem(ctx, s.keys.itineraryIndex(sessionID), itemID)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "delete itinerary item")
	}
	if delCmd.Val() == 0 {
		return planning.Errorf(planning.CodeItemNotFound, "itinerary item %s not found", itemID)
	}
	return nil
}

// UpdateItineraryOrders rewrites the Order values of the given items.
func (s *Store) UpdateItineraryOrders(ctx context.Context, sessionID string, items []*planning.ItineraryItem) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	stored, err := s.client.HMGet(ctx, s.keys.itineraryValues(sessionID), ids...).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "update itinerary orders")
	}
	for i, value := range stored {
		if value == nil {
			return planning.Errorf(planning.CodeItemNotFound, "itinerary item %s not found", ids[i])
		}
	}
	pipe := s.client.TxPipeline()
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return planning.WrapError(planning.CodeStorageFailure, err, "marshal itinerary item")
		}
		pipe.HSet(ctx, s.keys.itineraryValues(sessionID), item.ID, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "update itinerary orders")
	}
	return nil
}

// ListItinerary returns the session's itinerary items in scheduled order.
func (s *Store) ListItinerary(ctx context.Context, sessionID string) ([]*planning.ItineraryItem, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.keys.itineraryIndex(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list itinerary")
	}
	if len(ids) == 0 {
		return []*planning.ItineraryItem{}, nil
	}
	values, err := s.client.HMGet(ctx, s.keys.itineraryValues(sessionID), ids...).Result()
	if err != nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list itinerary")
	}
	items := make([]*planning.ItineraryItem, 0, len(values))
	for i, value := range values {
		text, ok := value.(string)
		if !ok {
			continue // Index entry outlived the record.
		}
		item := &planning.ItineraryItem{}
		if err := json.Unmarshal([]byte(text), item); err != nil {
			log.Errorf("Skipping malformed itinerary record %s in session %s: %v", ids[i], sessionID, err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateComment appends a comment to the venue's time-ordered set.
func (s *Store) CreateComment(ctx context.Context, comment *planning.Comment) error {
	if err := s.requireSession(ctx, comment.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(comment)
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "marshal comment")
	}
	err = s.client.ZAdd(ctx, s.keys.comments(comment.SessionID, comment.VenueID), redis.Z{
		Score:  float64(comment.CreatedAt.UnixNano()),
		Member: payload,
	}).Err()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "create comment")
	}
	return nil
}

// ListCommentsByVenue returns a venue's comments in creation order.
func (s *Store) ListCommentsByVenue(ctx context.Context, sessionID, venueID string) ([]*planning.Comment, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	values, err := s.client.ZRange(ctx, s.keys.comments(sessionID, venueID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list comments")
	}
	return s.decodeComments(sessionID, values), nil
}

// ListCommentsByParticipant returns a participant's comments across all
// venues in creation order.
func (s *Store) ListCommentsByParticipant(ctx context.Context, sessionID, participantID string) ([]*planning.Comment, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	venueIDs, err := s.client.HKeys(ctx, s.keys.venues(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list comments")
	}
	if len(venueIDs) == 0 {
		return []*planning.Comment{}, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, 0, len(venueIDs))
	for _, venueID := range venueIDs {
		cmds = append(cmds, pipe.ZRange(ctx, s.keys.comments(sessionID, venueID), 0, -1))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, planning.WrapError(planning.CodeStorageFailure, err, "list comments")
	}
	var comments []*planning.Comment
	for _, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil && err != redis.Nil {
			return nil, planning.WrapError(planning.CodeStorageFailure, err, "list comments")
		}
		for _, c := range s.decodeComments(sessionID, values) {
			if c.ParticipantID == participantID {
				comments = append(comments, c)
			}
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return comments, nil
}

func (s *Store) decodeComments(sessionID string, values []string) []*planning.Comment {
	comments := make([]*planning.Comment, 0, len(values))
	for _, value := range values {
		comment := &planning.Comment{}
		if err := json.Unmarshal([]byte(value), comment); err != nil {
			log.Errorf("Skipping malformed comment record in session %s: %v", sessionID, err)
			continue
		}
		comments = append(comments, comment)
	}
	return comments
}

// Close closes the redis client. Safe to call more than once.
func (s *Store) Close() error {
	s.once.Do(func() {
		if s.client != nil {
			s.client.Close()
		}
	})
	return nil
}

// requireSession fails with CodeNotFound when the session record is gone.
// Child reads and writes route through here so a dangling child key never
// resurrects an evicted session.
func (s *Store) requireSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Exists(ctx, s.keys.session(sessionID)).Result()
	if err != nil {
		return planning.WrapError(planning.CodeStorageFailure, err, "check session")
	}
	if n == 0 {
		return planning.Errorf(planning.CodeNotFound, "session %s not found", sessionID)
	}
	return nil
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
