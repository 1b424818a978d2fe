package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/guard"
	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/notify"
	"github.com/nhle/newsroom-planning/internal/series"
)

// CreateEvent persists a new event. A recurring template is expanded
// into its full series and every instance is written in one atomic
// batch; the returned slice holds the created instances in
// chronological order. Embedded planning payloads produce linked
// planning items for the first instance.
func (s *Service) CreateEvent(ctx context.Context, ev model.Event, userID string) ([]model.Event, error) {
	now := s.now()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.GUID == "" {
		ev.GUID = ev.ID
	}
	if ev.State == "" {
		ev.State = model.StateDraft
	}
	if ev.Dates.TZ == "" && ev.IsRecurring() {
		ev.Dates.TZ = s.cfg.DefaultTimezone
	}
	if ev.Dates.End.Before(ev.Dates.Start) {
		return nil, model.Validationf("dates.end", "end date is before start date")
	}

	ts := now.UTC()
	ev.OriginalCreator = userID
	ev.VersionCreator = userID
	ev.FirstCreated = &ts
	ev.VersionCreated = &ts

	var created []model.Event
	if ev.IsRecurring() && !ev.Dates.RecurringRule.CreatedExternally {
		rule := ev.Dates.RecurringRule
		if rule.Count <= 0 && rule.Until == nil {
			return nil, model.Validationf("dates.recurring_rule", "recurrence rule never terminates")
		}
		instances, err := series.Generate(ev, ev.RecurrenceID, s.cfg)
		if err != nil {
			return nil, err
		}
		created = instances
	} else {
		scheduled := ev.Dates.Start
		ev.PlanningSchedule = []model.ScheduleEntry{{Scheduled: &scheduled}}
		if s.cfg.ExpiryMinutes > 0 {
			expiry := ev.Dates.End.Add(time.Duration(s.cfg.ExpiryMinutes) * time.Minute)
			ev.Expiry = &expiry
		}
		created = []model.Event{ev}
	}

	if err := s.store.CreateEvents(ctx, created); err != nil {
		return nil, err
	}

	for i := range created {
		if len(created[i].EmbeddedPlanning) == 0 {
			continue
		}
		if err := s.syncEmbeddedPlanning(ctx, &created[i], userID, now); err != nil {
			return nil, err
		}
	}

	s.pub.Publish(ctx, notify.EventsCreated, map[string]any{
		"event":     created[0].ID,
		"instances": len(created),
	})
	return created, nil
}

// UpdateEvent applies updates to the stored event. The update method on
// the updates document selects how much of a recurring series is
// touched. Adding a recurrence rule to a plain event converts it into a
// series.
func (s *Service) UpdateEvent(ctx context.Context, updates model.Event, userID string) (*model.Event, error) {
	original, err := s.store.GetEventByID(ctx, updates.ID)
	if err != nil {
		return nil, err
	}

	if !original.IsRecurring() && updates.IsRecurring() && !updates.Dates.RecurringRule.CreatedExternally {
		return s.convertToRecurring(ctx, *original, updates, userID)
	}

	now := s.now()
	updated, err := s.resolver.Apply(ctx, *original, updates, userID, now)
	if err != nil {
		return nil, err
	}

	if len(updated.EmbeddedPlanning) > 0 {
		if err := s.syncEmbeddedPlanning(ctx, updated, userID, now); err != nil {
			return nil, err
		}
	}

	s.pub.Publish(ctx, notify.EventsUpdated, map[string]any{"event": updated.ID})
	return updated, nil
}

// convertToRecurring expands a plain event into a recurring series.
// When the rule keeps the event's own start, the event becomes the
// series' first instance in place; when the rule moves the first
// occurrence, the event is marked rescheduled and a fresh series is
// created alongside it.
func (s *Service) convertToRecurring(ctx context.Context, original, updates model.Event, userID string) (*model.Event, error) {
	if err := guard.Check(original.Lock, userID, original.ID); err != nil {
		return nil, err
	}

	rule := updates.Dates.RecurringRule
	if rule.Count <= 0 && rule.Until == nil {
		return nil, model.Validationf("dates.recurring_rule", "recurrence rule never terminates")
	}

	now := s.now()
	template := updates.Clone()
	template.UpdateMethod = ""
	template.OriginalCreator = original.OriginalCreator
	template.FirstCreated = original.FirstCreated
	template.VersionCreator = userID

	instances, err := series.Generate(template, "", s.cfg)
	if err != nil {
		return nil, err
	}

	ts := now.UTC()
	for i := range instances {
		instances[i].VersionCreated = &ts
	}

	first := instances[0]
	if first.Dates.Start.Equal(updates.Dates.Start) {
		// The event itself becomes the first instance.
		recurrenceID := original.ID
		for i := range instances {
			instances[i].RecurrenceID = recurrenceID
		}
		instances[0].ID = original.ID
		instances[0].GUID = original.GUID
		instances[0].State = original.State
		instances[0].EmbeddedPlanning = original.EmbeddedPlanning

		if err := s.store.UpdateEvent(ctx, instances[0]); err != nil {
			return nil, err
		}
		if err := s.store.CreateEvents(ctx, instances[1:]); err != nil {
			return nil, err
		}
		s.backfillPlanningRecurrence(ctx, original.ID, recurrenceID, userID, now)

		s.pub.Publish(ctx, notify.EventsUpdated, map[string]any{
			"event":     original.ID,
			"instances": len(instances),
		})
		return &instances[0], nil
	}

	// The rule moved the first occurrence; the original is superseded.
	superseded := original.Clone()
	superseded.State = model.StateRescheduled
	superseded.VersionCreator = userID
	superseded.VersionCreated = &ts
	if err := s.store.UpdateEvent(ctx, superseded); err != nil {
		return nil, err
	}

	instances[0].RescheduleFrom = original.ID
	if err := s.store.CreateEvents(ctx, instances); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, notify.EventsCreated, map[string]any{
		"event":     instances[0].ID,
		"instances": len(instances),
	})
	return &instances[0], nil
}

// backfillPlanningRecurrence stamps the series id onto planning items
// already linked to the event. Failures are logged; the event write has
// already happened.
func (s *Service) backfillPlanningRecurrence(ctx context.Context, eventID, recurrenceID, userID string, now time.Time) {
	items, err := s.store.GetPlanningsForEvent(ctx, eventID)
	if err != nil {
		s.log.WithFields(logrus.Fields{"event": eventID, "error": err}).
			Error("loading linked planning items failed")
		return
	}

	ts := now.UTC()
	for _, item := range items {
		item.RecurrenceID = recurrenceID
		for i := range item.RelatedEvents {
			if item.RelatedEvents[i].ID == eventID {
				item.RelatedEvents[i].RecurrenceID = recurrenceID
			}
		}
		item.VersionCreator = userID
		item.VersionCreated = &ts
		if err := s.store.UpdatePlanning(ctx, item); err != nil {
			s.log.WithFields(logrus.Fields{"planning": item.ID, "error": err}).
				Error("backfilling planning recurrence failed")
		}
	}
}

// syncEmbeddedPlanning creates or updates the planning items described
// by the event's embedded planning payload, backfilling the planning
// ids onto the stored event.
func (s *Service) syncEmbeddedPlanning(ctx context.Context, ev *model.Event, userID string, now time.Time) error {
	changed := false

	for i := range ev.EmbeddedPlanning {
		ep := &ev.EmbeddedPlanning[i]

		if ep.PlanningID == "" {
			item, err := s.createPlanningFromEvent(ctx, *ev, *ep, userID, now)
			if err != nil {
				return err
			}
			ep.PlanningID = item.ID
			changed = true
			continue
		}

		if err := s.updatePlanningFromEvent(ctx, *ev, *ep, userID, now); err != nil {
			return err
		}
	}

	if changed {
		if err := s.store.UpdateEvent(ctx, *ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) createPlanningFromEvent(ctx context.Context, ev model.Event, ep model.EmbeddedPlanning, userID string, now time.Time) (*model.Planning, error) {
	ts := now.UTC()
	item := model.Planning{
		ID:              uuid.New().String(),
		Slugline:        ev.Slugline,
		Name:            ev.Name,
		DescriptionText: ev.Description,
		PlanningDate:    ev.Dates.Start,
		RecurrenceID:    ev.RecurrenceID,
		State:           model.StateDraft,
		RelatedEvents: []model.EventLink{{
			ID:           ev.ID,
			RecurrenceID: ev.RecurrenceID,
			LinkType:     model.LinkPrimary,
		}},
		OriginalCreator: userID,
		VersionCreator:  userID,
		FirstCreated:    &ts,
		VersionCreated:  &ts,
	}
	item.GUID = item.ID

	for _, cov := range ep.Coverages {
		item.Coverages = append(item.Coverages, model.Coverage{
			CoverageID: cov.CoverageID,
			Planning:   cov.Planning.Clone(),
			AssignedTo: cloneAssignedTo(cov.AssignedTo),
		})
	}

	if err := s.cascade.HandleCoverages(ctx, nil, &item, userID, now); err != nil {
		return nil, err
	}
	if err := s.store.CreatePlannings(ctx, []model.Planning{item}); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, notify.PlanningCreated, map[string]any{
		"planning": item.ID,
		"event":    ev.ID,
	})
	return &item, nil
}

func (s *Service) updatePlanningFromEvent(ctx context.Context, ev model.Event, ep model.EmbeddedPlanning, userID string, now time.Time) error {
	original, err := s.store.GetPlanningByID(ctx, ep.PlanningID)
	if err != nil {
		return err
	}
	if err := guard.Check(original.Lock, userID, original.ID); err != nil {
		return err
	}

	updated := original.Clone()
	for _, embedded := range ep.Coverages {
		cov := updated.CoverageByID(embedded.CoverageID)
		if cov == nil {
			updated.Coverages = append(updated.Coverages, model.Coverage{
				CoverageID: embedded.CoverageID,
				Planning:   embedded.Planning.Clone(),
				AssignedTo: cloneAssignedTo(embedded.AssignedTo),
			})
			continue
		}
		cov.Planning = embedded.Planning.Clone()
		if embedded.AssignedTo != nil {
			cov.AssignedTo = cloneAssignedTo(embedded.AssignedTo)
		}
	}

	if err := s.cascade.HandleCoverages(ctx, original, &updated, userID, now); err != nil {
		return err
	}

	ts := now.UTC()
	updated.VersionCreator = userID
	updated.VersionCreated = &ts

	if err := s.store.UpdatePlanning(ctx, updated); err != nil {
		return err
	}

	s.pub.Publish(ctx, notify.PlanningUpdated, map[string]any{
		"planning": updated.ID,
		"event":    ev.ID,
	})
	return nil
}

func cloneAssignedTo(at *model.AssignedTo) *model.AssignedTo {
	if at == nil {
		return nil
	}
	cp := *at
	return &cp
}
