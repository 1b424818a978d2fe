package series

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/recurrence"
)

// Generate expands a recurring event template into its concrete
// instances. Every instance keeps the template's content but gets its
// own id; the shared recurrence id is recurrenceID, or the first
// instance's id when recurrenceID is empty.
//
// Only the first instance keeps the embedded planning payload, so a
// series create produces one associated planning item per embedded
// definition rather than one per instance.
func Generate(template model.Event, recurrenceID string, cfg model.Config) ([]model.Event, error) {
	rule := template.Dates.RecurringRule
	if rule == nil {
		return nil, model.Validationf("dates.recurring_rule", "event is not recurring")
	}

	if template.Dates.End.Before(template.Dates.Start) {
		return nil, model.Validationf("dates.end", "end date is before start date")
	}

	loc, err := ruleLocation(template.Dates.TZ, cfg.DefaultTimezone)
	if err != nil {
		return nil, err
	}

	max := cfg.MaxRecurrentEvents
	if max <= 0 {
		max = recurrence.DefaultMaxInstances
	}

	dates, err := recurrence.Expand(recurrence.Options{
		Start:     template.Dates.Start,
		Frequency: rule.Frequency,
		Interval:  rule.Interval,
		Until:     rule.Until,
		Count:     rule.Count,
		ByDay:     rule.ByDay,
		Location:  loc,
		Max:       max,
	})
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, model.Validationf("dates.recurring_rule", "recurrence rule produces no instances")
	}

	duration := template.Dates.End.Sub(template.Dates.Start)

	events := make([]model.Event, 0, len(dates))
	for i, start := range dates {
		ev := template.Clone()

		ev.ID = uuid.New().String()
		ev.GUID = ev.ID
		ev.Dates.Start = start
		ev.Dates.End = start.Add(duration)

		ev.RecurrenceID = recurrenceID
		if ev.RecurrenceID == "" && i == 0 {
			recurrenceID = ev.ID
			ev.RecurrenceID = ev.ID
		}

		// Series instances start their own lifecycle.
		ev.Lock.Clear()
		ev.PubStatus = ""
		ev.RescheduleFrom = ""
		ev.UpdateMethod = ""

		scheduled := ev.Dates.Start
		ev.PlanningSchedule = []model.ScheduleEntry{{Scheduled: &scheduled}}

		if i > 0 {
			ev.EmbeddedPlanning = nil
		}

		ev.Expiry = nil
		if cfg.ExpiryMinutes > 0 {
			expiry := ev.Dates.End.Add(time.Duration(cfg.ExpiryMinutes) * time.Minute)
			ev.Expiry = &expiry
		}

		events = append(events, ev)
	}

	return events, nil
}

// ruleLocation resolves the zone recurrence arithmetic runs in.
func ruleLocation(tz, fallback string) (*time.Location, error) {
	name := tz
	if name == "" {
		name = fallback
	}
	if name == "" || name == "UTC" {
		return nil, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, model.Validationf("dates.tz", "unknown timezone %q", name)
	}
	return loc, nil
}
