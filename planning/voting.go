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
)

// voteEngine manages the venue catalog and its votes: suggestion, idempotent
// vote upserts, tallies and competition ranking.
type voteEngine struct {
	deps
}

// VenueInput carries the inputs of Coordinator.AddVenue.
type VenueInput struct {
	// PlaceID is an optional external place reference.
	PlaceID string
	// Name is the venue name. Required.
	Name string
	// Address is an optional human-readable address.
	Address string
	// Rating is an optional quality rating in [0, 5].
	Rating *float64
	// PriceLevel is an optional price bucket in [0, 4].
	PriceLevel *int
	// PhotoURL is an optional photo reference.
	PhotoURL string
	// SuggestedBy is the suggesting participant's ID, or
	// SuggestedByAgent. Required.
	SuggestedBy string
}

func (v *voteEngine) addVenue(ctx context.Context, sessionID string, input VenueInput) (*VenueOption, *Event, error) {
	sess, err := v.activeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, NewError(CodeValidation, "venue name is required")
	}
	if input.Rating != nil && (*input.Rating < MinRating || *input.Rating > MaxRating) {
		return nil, nil, NewError(CodeValidation, "rating out of range").
			WithDetail("min", MinRating).
			WithDetail("max", MaxRating)
	}
	if input.PriceLevel != nil && (*input.PriceLevel < MinPriceLevel || *input.PriceLevel > MaxPriceLevel) {
		return nil, nil, NewError(CodeValidation, "price level out of range").
			WithDetail("min", MinPriceLevel).
			WithDetail("max", MaxPriceLevel)
	}
	if input.SuggestedBy == "" {
		return nil, nil, NewError(CodeValidation, "suggested_by is required")
	}
	if input.SuggestedBy != SuggestedByAgent && !sess.HasParticipant(input.SuggestedBy) {
		return nil, nil, Errorf(CodeValidation, "suggested_by %s is not a session participant", input.SuggestedBy)
	}

	// Clone decouples the stored record from the caller's Rating and
	// PriceLevel pointers.
	venue := (&VenueOption{
		ID:          v.ids.NewID(),
		SessionID:   sessionID,
		PlaceID:     input.PlaceID,
		Name:        name,
		Address:     input.Address,
		Rating:      input.Rating,
		PriceLevel:  input.PriceLevel,
		PhotoURL:    input.PhotoURL,
		SuggestedBy: input.SuggestedBy,
		SuggestedAt: v.clock.Now(),
	}).Clone()
	if err := v.store.CreateVenue(ctx, venue); err != nil {
		return nil, nil, err
	}
	if err := v.touch(ctx, sess); err != nil {
		return nil, nil, err
	}
	participantID := ""
	if venue.SuggestedBy != SuggestedByAgent {
		participantID = venue.SuggestedBy
	}
	evt := v.newEvent(EventVenueAdded, sessionID, participantID,
		&VenueAddedData{Venue: venue.Clone()})
	return venue, evt, nil
}

func (v *voteEngine) venues(ctx context.Context, sessionID string) ([]*VenueOption, error) {
	if _, err := v.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return v.store.ListVenues(ctx, sessionID)
}

// castVote records a participant's stance on a venue. One vote per
// (venue, participant) pair: casting again replaces the previous stance, and
// re-casting the same stance leaves the counts unchanged.
func (v *voteEngine) castVote(ctx context.Context, sessionID, venueID, participantID string, voteType VoteType) (*Tally, *Event, error) {
	sess, err := v.activeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !voteType.Valid() {
		return nil, nil, Errorf(CodeValidation, "invalid vote type %q", voteType)
	}
	if !sess.HasParticipant(participantID) {
		return nil, nil, Errorf(CodeValidation, "participant %s is not a member of session %s", participantID, sessionID)
	}
	if _, err := v.store.GetVenue(ctx, sessionID, venueID); err != nil {
		return nil, nil, err
	}
	now := v.clock.Now()
	vote, err := v.store.GetVote(ctx, sessionID, venueID, participantID)
	switch {
	case err == nil:
		// Re-cast: the row keeps its identity and first-cast time.
		vote.Type = voteType
		vote.UpdatedAt = now
	case IsCode(err, CodeNotFound):
		vote = &Vote{
			ID:            v.ids.NewID(),
			VenueID:       venueID,
			SessionID:     sessionID,
			ParticipantID: participantID,
			Type:          voteType,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	default:
		return nil, nil, err
	}
	if err := v.store.UpsertVote(ctx, vote); err != nil {
		return nil, nil, err
	}
	tally, err := v.tallyVotes(ctx, sessionID, venueID)
	if err != nil {
		return nil, nil, err
	}
	if err := v.touch(ctx, sess); err != nil {
		return nil, nil, err
	}
	evt := v.newEvent(EventVoteCast, sessionID, participantID, &VoteCastData{
		VenueID:       venueID,
		ParticipantID: participantID,
		VoteType:      voteType,
		Tally:         tally,
	})
	return tally, evt, nil
}

// tally returns the current counts for one venue.
func (v *voteEngine) tally(ctx context.Context, sessionID, venueID string) (*Tally, error) {
	if _, err := v.store.GetVenue(ctx, sessionID, venueID); err != nil {
		return nil, err
	}
	return v.tallyVotes(ctx, sessionID, venueID)
}

func (v *voteEngine) tallyVotes(ctx context.Context, sessionID, venueID string) (*Tally, error) {
	votes, err := v.store.ListVotesByVenue(ctx, sessionID, venueID)
	if err != nil {
		return nil, err
	}
	return countVotes(venueID, votes), nil
}

// rankVenues tallies every venue and orders them by net score, then upvotes,
// then suggestion time. Ranks follow competition rules: tied venues share a
// rank and the next rank is skipped (1, 1, 3).
func (v *voteEngine) rankVenues(ctx context.Context, sessionID string) ([]*RankedVenue, error) {
	if _, err := v.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	venues, err := v.store.ListVenues(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	votes, err := v.store.ListVotesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byVenue := make(map[string][]*Vote, len(venues))
	for _, vote := range votes {
		byVenue[vote.VenueID] = append(byVenue[vote.VenueID], vote)
	}
	ranked := make([]*RankedVenue, 0, len(venues))
	for _, venue := range venues {
		ranked = append(ranked, &RankedVenue{
			Venue: venue,
			Tally: countVotes(venue.ID, byVenue[venue.ID]),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Tally.NetScore != b.Tally.NetScore {
			return a.Tally.NetScore > b.Tally.NetScore
		}
		if a.Tally.Upvotes != b.Tally.Upvotes {
			return a.Tally.Upvotes > b.Tally.Upvotes
		}
		if !a.Venue.SuggestedAt.Equal(b.Venue.SuggestedAt) {
			return a.Venue.SuggestedAt.Before(b.Venue.SuggestedAt)
		}
		return a.Venue.ID < b.Venue.ID
	})
	for i, rv := range ranked {
		if i > 0 && sameStanding(rv.Tally, ranked[i-1].Tally) {
			rv.Rank = ranked[i-1].Rank
			rv.IsTied = true
			ranked[i-1].IsTied = true
		} else {
			rv.Rank = i + 1
		}
	}
	return ranked, nil
}

// countVotes aggregates one venue's votes into a tally.
func countVotes(venueID string, votes []*Vote) *Tally {
	t := &Tally{VenueID: venueID, Voters: []string{}}
	seen := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		switch vote.Type {
		case VoteUp:
			t.Upvotes++
		case VoteDown:
			t.Downvotes++
		case VoteNeutral:
			t.Neutral++
		}
		if _, ok := seen[vote.ParticipantID]; !ok {
			seen[vote.ParticipantID] = struct{}{}
			t.Voters = append(t.Voters, vote.ParticipantID)
		}
	}
	sort.Strings(t.Voters)
	t.NetScore = t.Upvotes - t.Downvotes
	t.Total = t.Upvotes + t.Downvotes + t.Neutral
	return t
}

// sameStanding reports whether two tallies share a rank. Standing is the net
// score alone; upvotes only decide the display order among equal scores.
func sameStanding(a, b *Tally) bool {
	return a.NetScore == b.NetScore
}
