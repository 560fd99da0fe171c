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
)

func TestSortItinerary(t *testing.T) {
	base := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		items []*ItineraryItem
		want  []string
	}{
		{
			name: "by_scheduled_time",
			items: []*ItineraryItem{
				{ID: "c", ScheduledTime: base.Add(2 * time.Hour)},
				{ID: "a", ScheduledTime: base},
				{ID: "b", ScheduledTime: base.Add(time.Hour)},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "ties_break_by_added_at",
			items: []*ItineraryItem{
				{ID: "late", ScheduledTime: base, AddedAt: base.Add(2 * time.Minute)},
				{ID: "early", ScheduledTime: base, AddedAt: base.Add(time.Minute)},
			},
			want: []string{"early", "late"},
		},
		{
			name: "full_ties_break_by_id",
			items: []*ItineraryItem{
				{ID: "b", ScheduledTime: base, AddedAt: base},
				{ID: "a", ScheduledTime: base, AddedAt: base},
			},
			want: []string{"a", "b"},
		},
		{
			name:  "empty",
			items: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sortItinerary(tt.items)
			got := make([]string, 0, len(tt.items))
			for _, item := range tt.items {
				got = append(got, item.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortComments(t *testing.T) {
	base := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	comments := []*Comment{
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}

	sortComments(comments)

	got := make([]string, 0, len(comments))
	for _, comment := range comments {
		got = append(got, comment.ID)
	}
	// Chronological, with the ID tie-break for identical timestamps.
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
