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
	"time"
)

// itineraryBook keeps the session's plan in canonical order: scheduled time
// ascending, ties broken by insertion time, Order values contiguous from
// zero. Every mutation re-indexes the whole list so the invariant holds no
// matter how adds and removes interleave.
type itineraryBook struct {
	deps
}

func (b *itineraryBook) add(ctx context.Context, sessionID, venueID string, scheduledTime time.Time, addedBy string) (*ItineraryItem, *Event, error) {
	sess, err := b.activeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if scheduledTime.IsZero() {
		return nil, nil, NewError(CodeValidation, "scheduled_time is required")
	}
	if addedBy == "" || !sess.HasParticipant(addedBy) {
		return nil, nil, Errorf(CodeValidation, "added_by %s is not a session participant", addedBy)
	}
	if _, err := b.store.GetVenue(ctx, sessionID, venueID); err != nil {
		return nil, nil, err
	}
	item := &ItineraryItem{
		ID:            b.ids.NewID(),
		SessionID:     sessionID,
		VenueID:       venueID,
		ScheduledTime: scheduledTime.UTC(),
		AddedAt:       b.clock.Now(),
		AddedBy:       addedBy,
	}
	if err := b.store.CreateItineraryItem(ctx, item); err != nil {
		return nil, nil, err
	}
	ordered, err := b.reindex(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	var stored *ItineraryItem
	for _, it := range ordered {
		if it.ID == item.ID {
			stored = it
			break
		}
	}
	if stored == nil {
		return nil, nil, Errorf(CodeInternal, "itinerary item %s missing after reindex", item.ID)
	}
	if err := b.touch(ctx, sess); err != nil {
		return nil, nil, err
	}
	evt := b.newEvent(EventItineraryItemAdded, sessionID, addedBy,
		&ItineraryItemAddedData{Item: stored.Clone()})
	return stored, evt, nil
}

// remove deletes one item and closes the gap its Order left behind.
// removedBy is optional; when set it must be a session participant and is
// carried on the emitted event.
func (b *itineraryBook) remove(ctx context.Context, sessionID, itemID, removedBy string) (*Event, error) {
	sess, err := b.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if removedBy != "" && !sess.HasParticipant(removedBy) {
		return nil, Errorf(CodeValidation, "participant %s is not a member of session %s", removedBy, sessionID)
	}
	items, err := b.store.ListItinerary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var removed *ItineraryItem
	for _, item := range items {
		if item.ID == itemID {
			removed = item
			break
		}
	}
	if removed == nil {
		return nil, Errorf(CodeItemNotFound, "itinerary item %s not found", itemID)
	}
	if err := b.store.DeleteItineraryItem(ctx, sessionID, itemID); err != nil {
		return nil, err
	}
	if _, err := b.reindex(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := b.touch(ctx, sess); err != nil {
		return nil, err
	}
	evt := b.newEvent(EventItineraryItemRemoved, sessionID, removedBy,
		&ItineraryItemRemovedData{ItemID: itemID, VenueID: removed.VenueID})
	return evt, nil
}

func (b *itineraryBook) list(ctx context.Context, sessionID string) ([]*ItineraryItem, error) {
	if _, err := b.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	items, err := b.store.ListItinerary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sortItinerary(items)
	return items, nil
}

// reorder validates that itemIDs is a permutation of the current itinerary
// and then re-applies canonical ordering. Chronology always wins: a manual
// order that fights the scheduled times does not survive. The returned list
// is the order clients should converge on.
func (b *itineraryBook) reorder(ctx context.Context, sessionID string, itemIDs []string) ([]*ItineraryItem, error) {
	sess, err := b.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items, err := b.store.ListItinerary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) != len(items) {
		return nil, NewError(CodeValidation, "reorder must list every itinerary item exactly once").
			WithDetail("expected", len(items)).
			WithDetail("got", len(itemIDs))
	}
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return nil, Errorf(CodeValidation, "duplicate itinerary item %s in reorder", id)
		}
		seen[id] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item.ID]; !ok {
			return nil, Errorf(CodeValidation, "itinerary item %s missing from reorder", item.ID)
		}
	}
	ordered, err := b.reindex(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := b.touch(ctx, sess); err != nil {
		return nil, err
	}
	return ordered, nil
}

// reindex loads the itinerary, sorts it canonically and persists any Order
// values that drifted. It returns the full list in canonical order.
func (b *itineraryBook) reindex(ctx context.Context, sessionID string) ([]*ItineraryItem, error) {
	items, err := b.store.ListItinerary(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sortItinerary(items)
	changed := make([]*ItineraryItem, 0, len(items))
	for i, item := range items {
		if item.Order != i {
			item.Order = i
			changed = append(changed, item)
		}
	}
	if len(changed) > 0 {
		if err := b.store.UpdateItineraryOrders(ctx, sessionID, changed); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// sortItinerary applies the canonical order: scheduled time ascending, then
// insertion time, then ID for full determinism.
func sortItinerary(items []*ItineraryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime)
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.ID < b.ID
	})
}
