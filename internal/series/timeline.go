// Package series generates and partitions the instances of a recurring
// event series.
package series

import (
	"context"
	"time"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/store"
)

// DefaultPageSize bounds each store fetch while walking a series.
const DefaultPageSize = 200

// TimelineOptions tunes which siblings the timeline considers.
type TimelineOptions struct {
	// By default spiked, rescheduled, cancelled, and postponed siblings
	// are left out; each toggle re-includes one state.
	IncludeSpiked      bool
	IncludeRescheduled bool
	IncludeCancelled   bool
	IncludePostponed   bool

	PageSize int
}

// Timeline is a pivot event's series split into three buckets. A
// sibling starting at the exact same instant as the pivot falls into no
// bucket.
type Timeline struct {
	// Historic siblings ended before now.
	Historic []model.Event

	// Past siblings start before the pivot but have not ended yet.
	Past []model.Event

	// Future siblings start after the pivot.
	Future []model.Event
}

// All returns the concatenated buckets in chronological order.
func (t Timeline) All() []model.Event {
	out := make([]model.Event, 0, len(t.Historic)+len(t.Past)+len(t.Future))
	out = append(out, t.Historic...)
	out = append(out, t.Past...)
	out = append(out, t.Future...)
	return out
}

// PastAndFuture returns the non-historic buckets.
func (t Timeline) PastAndFuture() []model.Event {
	out := make([]model.Event, 0, len(t.Past)+len(t.Future))
	out = append(out, t.Past...)
	out = append(out, t.Future...)
	return out
}

// Recurring fetches the pivot's series siblings and partitions them
// around the pivot's start, relative to now. The pivot itself is never
// included.
func Recurring(ctx context.Context, events store.EventStore, pivot model.Event, now time.Time, opts TimelineOptions) (Timeline, error) {
	var timeline Timeline
	if pivot.RecurrenceID == "" {
		return timeline, nil
	}

	excluded := excludedStates(opts)
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pivotStart := pivot.Dates.Start
	if pivotStart.IsZero() {
		pivotStart = now
	}

	pivotID := pivot.ID
	recurrenceID := pivot.RecurrenceID
	offset := 0
	for {
		page, err := events.GetEvents(ctx, store.EventFilter{
			RecurrenceID:  &recurrenceID,
			ExcludeID:     &pivotID,
			ExcludeStates: excluded,
			SortBy:        "dates.start",
			Limit:         pageSize,
			Offset:        offset,
		})
		if err != nil {
			return Timeline{}, err
		}

		for _, sibling := range page {
			switch {
			case sibling.Dates.End.Before(now):
				timeline.Historic = append(timeline.Historic, sibling)
			case sibling.Dates.Start.Before(pivotStart):
				timeline.Past = append(timeline.Past, sibling)
			case sibling.Dates.Start.After(pivotStart):
				timeline.Future = append(timeline.Future, sibling)
			}
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	return timeline, nil
}

func excludedStates(opts TimelineOptions) []model.WorkflowState {
	var states []model.WorkflowState
	if !opts.IncludeSpiked {
		states = append(states, model.StateSpiked)
	}
	if !opts.IncludeRescheduled {
		states = append(states, model.StateRescheduled)
	}
	if !opts.IncludeCancelled {
		states = append(states, model.StateCancelled)
	}
	if !opts.IncludePostponed {
		states = append(states, model.StatePostponed)
	}
	return states
}
