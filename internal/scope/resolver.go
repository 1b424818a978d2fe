// Package scope propagates an event update across its recurring series
// according to the requested update method.
package scope

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/guard"
	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/series"
	"github.com/nhle/newsroom-planning/internal/store"
)

// Resolver expands an update method into the concrete sibling set and
// applies a translated copy of the update to each of them.
type Resolver struct {
	events store.EventStore
	cfg    model.Config
	log    *logrus.Logger
}

// NewResolver builds a Resolver on the given event store.
func NewResolver(events store.EventStore, cfg model.Config, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{events: events, cfg: cfg, log: log}
}

// Resolve returns the siblings an update with the given method touches,
// excluding the pivot itself. Single updates touch no siblings; future
// updates touch siblings starting after the pivot; all updates touch
// the entire series.
func (r *Resolver) Resolve(ctx context.Context, original model.Event, method model.UpdateMethod, now time.Time) ([]model.Event, error) {
	if method == "" {
		method = model.UpdateSingle
	}
	if method == model.UpdateSingle || original.RecurrenceID == "" {
		return nil, nil
	}

	timeline, err := series.Recurring(ctx, r.events, original, now, series.TimelineOptions{
		PageSize: r.cfg.SweepPageSize,
	})
	if err != nil {
		return nil, err
	}

	switch method {
	case model.UpdateFuture:
		return timeline.Future, nil
	case model.UpdateAll:
		return timeline.All(), nil
	default:
		return nil, model.Validationf("update_method", "unknown update method %q", method)
	}
}

// Apply validates updates against original, writes the updated pivot,
// then propagates a translated copy to every sibling in scope. The lock
// check runs before the first write so a lock held by another user
// aborts the whole operation with nothing modified. Sibling write
// failures after the pivot has been written are logged and skipped
// rather than re-raised.
func (r *Resolver) Apply(ctx context.Context, original, updates model.Event, userID string, now time.Time) (*model.Event, error) {
	if err := guard.Check(original.Lock, userID, original.ID); err != nil {
		return nil, err
	}
	if err := validate(updates); err != nil {
		return nil, err
	}

	method := updates.UpdateMethod
	siblings, err := r.Resolve(ctx, original, method, now)
	if err != nil {
		return nil, err
	}

	pivot := updates.Clone()
	pivot.ID = original.ID
	pivot.UpdateMethod = ""
	pivot.VersionCreator = userID
	finalize(&pivot, now, r.cfg)

	if err := r.events.UpdateEvent(ctx, pivot); err != nil {
		return nil, err
	}

	for _, sibling := range siblings {
		if sibling.HeldByOther(userID) {
			r.log.WithFields(logrus.Fields{
				"event":     sibling.ID,
				"lock_user": sibling.LockUser,
			}).Warn("skipping locked series sibling")
			continue
		}

		updated := translate(sibling, original, updates)
		updated.VersionCreator = userID
		finalize(&updated, now, r.cfg)

		if err := r.events.UpdateEvent(ctx, updated); err != nil {
			r.log.WithFields(logrus.Fields{
				"event": sibling.ID,
				"error": err,
			}).Error("updating series sibling failed")
		}
	}

	return &pivot, nil
}

// validate rejects documents a write must never persist.
func validate(updates model.Event) error {
	if updates.Dates.End.Before(updates.Dates.Start) {
		return model.Validationf("dates.end", "end date is before start date")
	}
	if rule := updates.Dates.RecurringRule; rule != nil {
		if rule.Count <= 0 && rule.Until == nil {
			return model.Validationf("dates.recurring_rule", "recurrence rule never terminates")
		}
	}
	return nil
}

// translate carries the update's content onto a sibling, shifting date
// fields by the same offset the update applied to the original. The
// sibling keeps its own identity, workflow state, publication state,
// and lock.
func translate(sibling, original, updates model.Event) model.Event {
	out := sibling.Clone()

	out.Dates.Start = sibling.Dates.Start.Add(updates.Dates.Start.Sub(original.Dates.Start))
	out.Dates.End = sibling.Dates.End.Add(updates.Dates.End.Sub(original.Dates.End))
	out.Dates.TZ = updates.Dates.TZ

	out.Name = updates.Name
	out.Slugline = updates.Slugline
	out.Description = updates.Description

	out.AdditionalProperties = nil
	if updates.AdditionalProperties != nil {
		out.AdditionalProperties = make(map[string]any, len(updates.AdditionalProperties))
		for k, v := range updates.AdditionalProperties {
			out.AdditionalProperties[k] = v
		}
	}

	return out
}

// finalize refreshes the derived fields every event write maintains.
func finalize(ev *model.Event, now time.Time, cfg model.Config) {
	scheduled := ev.Dates.Start
	ev.PlanningSchedule = []model.ScheduleEntry{{Scheduled: &scheduled}}

	if cfg.ExpiryMinutes > 0 {
		expiry := ev.Dates.End.Add(time.Duration(cfg.ExpiryMinutes) * time.Minute)
		ev.Expiry = &expiry
	}

	ts := now.UTC()
	ev.VersionCreated = &ts
	if ev.FirstCreated == nil {
		ev.FirstCreated = &ts
	}
}
