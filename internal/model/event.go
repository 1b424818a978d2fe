package model

import (
	"encoding/json"
	"time"
)

// WorkflowState is the editorial lifecycle state shared by Events,
// Planning items, and Coverages.
type WorkflowState string

const (
	StateDraft       WorkflowState = "draft"
	StateActive      WorkflowState = "active"
	StateIngested    WorkflowState = "ingested"
	StateScheduled   WorkflowState = "scheduled"
	StateKilled      WorkflowState = "killed"
	StateCancelled   WorkflowState = "cancelled"
	StateRescheduled WorkflowState = "rescheduled"
	StatePostponed   WorkflowState = "postponed"
	StateSpiked      WorkflowState = "spiked"
)

// PostState tracks whether an item has been published to downstream systems.
type PostState string

const (
	PostStateUsable    PostState = "usable"
	PostStateCancelled PostState = "cancelled"
)

// UpdateMethod selects how many siblings of a recurring series an
// update touches.
type UpdateMethod string

const (
	UpdateSingle UpdateMethod = "single"
	UpdateFuture UpdateMethod = "future"
	UpdateAll    UpdateMethod = "all"
)

// Frequency is the repetition unit of a recurring rule.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// TempIDPrefix marks client-generated placeholder ids that must be
// replaced with real ids before persisting.
const TempIDPrefix = "tempId-"

// RecurringRule describes how an event repeats. Exactly one of Until or
// Count terminates the series; EndRepeatMode records which one the user
// chose so the other can be cleared before expansion.
type RecurringRule struct {
	// Frequency is DAILY, WEEKLY, MONTHLY, or YEARLY.
	Frequency Frequency `json:"frequency"`

	// Interval is how often the rule repeats (every N frequency units).
	Interval int `json:"interval"`

	// EndRepeatMode is "count" or "until".
	EndRepeatMode string `json:"end_repeat_mode,omitempty"`

	// Until is the datetime after which the rule expires.
	Until *time.Time `json:"until,omitempty"`

	// Count is the number of calendar events the rule produces.
	Count int `json:"count,omitempty"`

	// ByDay holds space-separated weekday tokens ("MO TU") for WEEKLY
	// rules, or a single ordinal weekday ("1FR", "-2MO") for
	// MONTHLY/YEARLY rules.
	ByDay string `json:"byday,omitempty"`

	// CreatedExternally suppresses re-expansion of rules that arrived
	// from an ingest feed with the instances already materialized.
	CreatedExternally bool `json:"_created_externally,omitempty"`
}

// UnmarshalJSON accepts until in any of the tolerated datetime layouts;
// ingest feeds ship offsets the standard decoder rejects.
func (r *RecurringRule) UnmarshalJSON(data []byte) error {
	type plain RecurringRule
	aux := struct {
		Until *string `json:"until,omitempty"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Until != nil && *aux.Until != "" {
		t, err := ParseTime(*aux.Until)
		if err != nil {
			return err
		}
		r.Until = &t
	}
	return nil
}

// EventDates groups the schedule of a single Event instance.
type EventDates struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// TZ is the IANA timezone name the recurrence rule is evaluated in.
	TZ string `json:"tz,omitempty"`

	RecurringRule *RecurringRule `json:"recurring_rule,omitempty"`
}

// ScheduleEntry is one entry of the derived planning_schedule /
// _updates_schedule lists used for cross-type sort and filter.
type ScheduleEntry struct {
	CoverageID        string     `json:"coverage_id,omitempty"`
	ScheduledUpdateID string     `json:"scheduled_update_id,omitempty"`
	Scheduled         *time.Time `json:"scheduled,omitempty"`
}

// Lock holds the cooperative edit-lock fields attached to every mutable
// entity. The engine only checks these; acquisition and release belong
// to the lock service above it.
type Lock struct {
	LockUser    string     `json:"lock_user,omitempty"`
	LockSession string     `json:"lock_session,omitempty"`
	LockTime    *time.Time `json:"lock_time,omitempty"`
	LockAction  string     `json:"lock_action,omitempty"`
}

// Clear removes all lock information.
func (l *Lock) Clear() {
	l.LockUser = ""
	l.LockSession = ""
	l.LockTime = nil
	l.LockAction = ""
}

// HeldByOther reports whether the lock is held by someone other than userID.
func (l Lock) HeldByOther(userID string) bool {
	return l.LockUser != "" && l.LockUser != userID
}

// EmbeddedCoverage is a coverage definition carried inside an Event's
// embedded planning payload.
type EmbeddedCoverage struct {
	CoverageID string           `json:"coverage_id,omitempty"`
	Planning   CoveragePlanning `json:"planning"`
	AssignedTo *AssignedTo      `json:"assigned_to,omitempty"`
}

// EmbeddedPlanning is the auxiliary payload on an Event instructing the
// engine to create (or sync) an associated Planning item.
type EmbeddedPlanning struct {
	PlanningID   string             `json:"planning_id,omitempty"`
	UpdateMethod UpdateMethod       `json:"update_method,omitempty"`
	Coverages    []EmbeddedCoverage `json:"coverages,omitempty"`
}

// Event is a schedulable happening, possibly one instance of a
// recurring series.
type Event struct {
	// ID is the unique identifier; for generated series instances it
	// equals GUID.
	ID string `json:"_id"`

	GUID string `json:"guid,omitempty"`

	Name        string `json:"name,omitempty"`
	Slugline    string `json:"slugline,omitempty"`
	Description string `json:"definition_short,omitempty"`

	Dates EventDates `json:"dates"`

	// RecurrenceID is shared by every instance of one series; empty for
	// non-recurring events.
	RecurrenceID string `json:"recurrence_id,omitempty"`

	// PreviousRecurrenceID is set when a series is split.
	PreviousRecurrenceID string `json:"previous_recurrence_id,omitempty"`

	State     WorkflowState `json:"state,omitempty"`
	PubStatus PostState     `json:"pubstatus,omitempty"`

	// Expiry is when the item becomes eligible for the expiry sweep.
	Expiry  *time.Time `json:"expiry,omitempty"`
	Expired bool       `json:"expired,omitempty"`

	Lock

	// PlanningSchedule is derived from Dates.Start after every write.
	PlanningSchedule []ScheduleEntry `json:"_planning_schedule,omitempty"`

	// EmbeddedPlanning instructs creation of associated Planning items;
	// only the primary instance of a generated series keeps it.
	EmbeddedPlanning []EmbeddedPlanning `json:"embedded_planning,omitempty"`

	// RescheduleFrom points at the event this one replaced.
	RescheduleFrom string `json:"reschedule_from,omitempty"`

	// UpdateMethod is a transient request field; never persisted.
	UpdateMethod UpdateMethod `json:"update_method,omitempty"`

	OriginalCreator string     `json:"original_creator,omitempty"`
	VersionCreator  string     `json:"version_creator,omitempty"`
	FirstCreated    *time.Time `json:"firstcreated,omitempty"`
	VersionCreated  *time.Time `json:"versioncreated,omitempty"`

	StateReason string `json:"state_reason,omitempty"`

	// AdditionalProperties carries vocabulary-driven custom fields.
	AdditionalProperties map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e

	if e.Dates.RecurringRule != nil {
		rule := *e.Dates.RecurringRule
		if e.Dates.RecurringRule.Until != nil {
			until := *e.Dates.RecurringRule.Until
			rule.Until = &until
		}
		out.Dates.RecurringRule = &rule
	}
	if e.Expiry != nil {
		t := *e.Expiry
		out.Expiry = &t
	}
	if e.LockTime != nil {
		t := *e.LockTime
		out.LockTime = &t
	}
	if e.FirstCreated != nil {
		t := *e.FirstCreated
		out.FirstCreated = &t
	}
	if e.VersionCreated != nil {
		t := *e.VersionCreated
		out.VersionCreated = &t
	}

	out.PlanningSchedule = cloneSchedule(e.PlanningSchedule)

	if e.EmbeddedPlanning != nil {
		out.EmbeddedPlanning = make([]EmbeddedPlanning, len(e.EmbeddedPlanning))
		for i, ep := range e.EmbeddedPlanning {
			cp := ep
			cp.Coverages = make([]EmbeddedCoverage, len(ep.Coverages))
			for j, cov := range ep.Coverages {
				cc := cov
				if cov.AssignedTo != nil {
					at := *cov.AssignedTo
					cc.AssignedTo = &at
				}
				cp.Coverages[j] = cc
			}
			out.EmbeddedPlanning[i] = cp
		}
	}

	if e.AdditionalProperties != nil {
		out.AdditionalProperties = make(map[string]any, len(e.AdditionalProperties))
		for k, v := range e.AdditionalProperties {
			out.AdditionalProperties[k] = v
		}
	}

	return out
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e Event) IsRecurring() bool {
	return e.Dates.RecurringRule != nil
}

func cloneSchedule(in []ScheduleEntry) []ScheduleEntry {
	if in == nil {
		return nil
	}
	out := make([]ScheduleEntry, len(in))
	for i, s := range in {
		cp := s
		if s.Scheduled != nil {
			t := *s.Scheduled
			cp.Scheduled = &t
		}
		out[i] = cp
	}
	return out
}
