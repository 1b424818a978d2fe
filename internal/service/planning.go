package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/newsroom-planning/internal/guard"
	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/notify"
	"github.com/nhle/newsroom-planning/internal/store"
)

// CreatePlanning persists a new planning item, running the coverage
// cascade over its initial coverages. The item's recurrence id is
// inherited from its primary linked event.
func (s *Service) CreatePlanning(ctx context.Context, item model.Planning, userID string) (*model.Planning, error) {
	now := s.now()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.GUID == "" {
		item.GUID = item.ID
	}
	if item.State == "" {
		item.State = model.StateDraft
	}
	if item.PlanningDate.IsZero() {
		item.PlanningDate = now.UTC()
	}

	if err := s.validateEventLinks(item); err != nil {
		return nil, err
	}
	if err := validateScheduledUpdateOrder(item); err != nil {
		return nil, err
	}

	for _, link := range item.RelatedEvents {
		if link.LinkType == model.LinkPrimary && link.RecurrenceID != "" {
			item.RecurrenceID = link.RecurrenceID
			break
		}
	}

	ts := now.UTC()
	item.OriginalCreator = userID
	item.VersionCreator = userID
	item.FirstCreated = &ts
	item.VersionCreated = &ts
	item.UpdateMethod = ""

	if err := s.cascade.HandleCoverages(ctx, nil, &item, userID, now); err != nil {
		return nil, err
	}
	if err := s.store.CreatePlannings(ctx, []model.Planning{item}); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, notify.PlanningCreated, map[string]any{"planning": item.ID})
	return &item, nil
}

// UpdatePlanning applies updates to the stored planning item. The lock
// check runs before any write; the coverage cascade reconciles the
// coverage list; the update method then decides whether the change
// propagates to the item's recurring siblings.
func (s *Service) UpdatePlanning(ctx context.Context, updates model.Planning, userID string) (*model.Planning, error) {
	original, err := s.store.GetPlanningByID(ctx, updates.ID)
	if err != nil {
		return nil, err
	}
	if err := guard.Check(original.Lock, userID, original.ID); err != nil {
		return nil, err
	}

	if err := s.validateEventLinks(updates); err != nil {
		return nil, err
	}
	if err := validateScheduledUpdateOrder(updates); err != nil {
		return nil, err
	}

	now := s.now()
	method := updates.UpdateMethod

	updated := updates.Clone()
	updated.PlanningRecurrenceID = original.PlanningRecurrenceID
	updated.OriginalCreator = original.OriginalCreator
	updated.FirstCreated = original.FirstCreated

	if err := s.cascade.HandleCoverages(ctx, original, &updated, userID, now); err != nil {
		return nil, err
	}

	ts := now.UTC()
	updated.VersionCreator = userID
	updated.VersionCreated = &ts
	updated.UpdateMethod = ""

	if err := s.store.UpdatePlanning(ctx, updated); err != nil {
		return nil, err
	}

	updated.UpdateMethod = method
	if err := s.cascade.PropagateRecurring(ctx, *original, updated, userID, now); err != nil {
		return nil, err
	}
	updated.UpdateMethod = ""

	s.publishCoverageDiff(ctx, original, &updated)
	s.pub.Publish(ctx, notify.PlanningUpdated, map[string]any{"planning": updated.ID})
	return &updated, nil
}

// publishCoverageDiff emits coverage add/delete notifications for the
// difference between the stored item and the written update.
func (s *Service) publishCoverageDiff(ctx context.Context, original, updated *model.Planning) {
	for i := range updated.Coverages {
		id := updated.Coverages[i].CoverageID
		if original.CoverageByID(id) == nil {
			s.pub.Publish(ctx, notify.CoverageAdded, map[string]any{
				"planning": updated.ID,
				"coverage": id,
			})
		}
	}
	for _, prev := range original.Coverages {
		if updated.CoverageByID(prev.CoverageID) == nil {
			s.pub.Publish(ctx, notify.CoverageDeleted, map[string]any{
				"planning": updated.ID,
				"coverage": prev.CoverageID,
			})
		}
	}
}

// AddPlanningToSeries clones a planning item onto every event of the
// recurring series its primary event belongs to. The clones share a
// planning recurrence id so later edits can propagate across them.
func (s *Service) AddPlanningToSeries(ctx context.Context, planningID, userID string) ([]model.Planning, error) {
	item, err := s.store.GetPlanningByID(ctx, planningID)
	if err != nil {
		return nil, err
	}
	if err := guard.Check(item.Lock, userID, item.ID); err != nil {
		return nil, err
	}

	primaryIDs := item.RelatedEventIDs(model.LinkPrimary)
	if len(primaryIDs) == 0 {
		return nil, model.Validationf("related_events", "planning item has no primary event link")
	}
	event, err := s.store.GetEventByID(ctx, primaryIDs[0])
	if err != nil {
		return nil, err
	}
	if event.RecurrenceID == "" {
		return nil, model.Validationf("related_events", "event %s is not part of a recurring series", event.ID)
	}

	now := s.now()
	planningRecurrenceID := uuid.New().String()

	ts := now.UTC()
	anchor := item.Clone()
	anchor.PlanningRecurrenceID = planningRecurrenceID
	anchor.VersionCreator = userID
	anchor.VersionCreated = &ts
	if err := s.store.UpdatePlanning(ctx, anchor); err != nil {
		return nil, err
	}

	siblings, err := s.seriesEvents(ctx, *event)
	if err != nil {
		return nil, err
	}

	created := []model.Planning{anchor}
	var clones []model.Planning
	for _, sibling := range siblings {
		clone := s.clonePlanningForEvent(*item, sibling, planningRecurrenceID, userID, now)
		if err := s.cascade.HandleCoverages(ctx, nil, &clone, userID, now); err != nil {
			return nil, err
		}
		clones = append(clones, clone)
	}
	if err := s.store.CreatePlannings(ctx, clones); err != nil {
		return nil, err
	}
	created = append(created, clones...)

	s.pub.Publish(ctx, notify.PlanningCreated, map[string]any{
		"planning":  item.ID,
		"instances": len(created),
	})
	return created, nil
}

// seriesEvents returns the series siblings of the given event, start
// ascending, excluding the event itself.
func (s *Service) seriesEvents(ctx context.Context, event model.Event) ([]model.Event, error) {
	var out []model.Event
	pageSize := s.cfg.SweepPageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	recurrenceID := event.RecurrenceID
	eventID := event.ID
	offset := 0
	for {
		page, err := s.store.GetEvents(ctx, store.EventFilter{
			RecurrenceID: &recurrenceID,
			ExcludeID:    &eventID,
			ExcludeStates: []model.WorkflowState{
				model.StateSpiked, model.StateRescheduled,
				model.StateCancelled, model.StatePostponed,
			},
			SortBy: "dates.start",
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		offset += pageSize
	}
}

// clonePlanningForEvent builds one series clone of a planning item,
// anchored to the given event. Coverages keep their original coverage
// id for cross-item correlation but get fresh identities.
func (s *Service) clonePlanningForEvent(item model.Planning, event model.Event, planningRecurrenceID, userID string, now time.Time) model.Planning {
	ts := now.UTC()

	clone := item.Clone()
	clone.ID = uuid.New().String()
	clone.GUID = clone.ID
	clone.State = model.StateDraft
	clone.Lock.Clear()
	clone.PlanningRecurrenceID = planningRecurrenceID
	clone.RecurrenceID = event.RecurrenceID
	clone.RelatedEvents = []model.EventLink{{
		ID:           event.ID,
		RecurrenceID: event.RecurrenceID,
		LinkType:     model.LinkPrimary,
	}}
	clone.OriginalCreator = userID
	clone.VersionCreator = userID
	clone.FirstCreated = &ts
	clone.VersionCreated = &ts

	delta := event.Dates.Start.Sub(item.PlanningDate)
	clone.PlanningDate = item.PlanningDate.Add(delta)

	for i := range clone.Coverages {
		cov := &clone.Coverages[i]
		originalID := cov.OriginalCoverageID
		if originalID == "" {
			originalID = cov.CoverageID
		}
		cov.CoverageID = ""
		cov.OriginalCoverageID = originalID
		cov.WorkflowStatus = model.StateDraft
		cov.AssignedTo = nil
		if cov.Planning.Scheduled != nil {
			scheduled := cov.Planning.Scheduled.Add(delta)
			cov.Planning.Scheduled = &scheduled
		}
		for j := range cov.ScheduledUpdates {
			su := &cov.ScheduledUpdates[j]
			su.ScheduledUpdateID = ""
			su.CoverageID = ""
			su.WorkflowStatus = model.StateDraft
			su.AssignedTo = nil
			if su.Planning.Scheduled != nil {
				scheduled := su.Planning.Scheduled.Add(delta)
				su.Planning.Scheduled = &scheduled
			}
		}
	}

	return clone
}

// validateEventLinks enforces the configured related-events policy.
func (s *Service) validateEventLinks(item model.Planning) error {
	var primary, secondary int
	for _, link := range item.RelatedEvents {
		switch link.LinkType {
		case model.LinkPrimary:
			primary++
		case model.LinkSecondary:
			secondary++
		default:
			return model.Validationf("related_events", "unknown link type %q", link.LinkType)
		}
	}

	switch s.cfg.EventLinkMethod {
	case model.LinkMethodOnePrimary:
		if primary > 1 {
			return model.Validationf("related_events", "at most one primary event link is allowed")
		}
		if secondary > 0 {
			return model.Validationf("related_events", "secondary event links are not allowed")
		}
	case model.LinkMethodManySecondary:
		if primary > 0 {
			return model.Validationf("related_events", "primary event links are not allowed")
		}
	default: // one_primary_many_secondary
		if primary > 1 {
			return model.Validationf("related_events", "at most one primary event link is allowed")
		}
	}
	return nil
}

// validateScheduledUpdateOrder rejects scheduled updates planned before
// their coverage or out of sequence with each other.
func validateScheduledUpdateOrder(item model.Planning) error {
	for _, cov := range item.Coverages {
		previous := cov.Planning.Scheduled
		for _, su := range cov.ScheduledUpdates {
			if su.Planning.Scheduled == nil {
				return model.Validationf("scheduled_updates", "scheduled update requires a schedule")
			}
			if previous != nil && !su.Planning.Scheduled.After(*previous) {
				return model.Validationf("scheduled_updates", "scheduled updates must be planned after the coverage and in order")
			}
			previous = su.Planning.Scheduled
		}
	}
	return nil
}
