package model

import "time"

// LinkType marks whether an event link is the planning item's main
// schedule anchor or an auxiliary reference.
type LinkType string

const (
	LinkPrimary   LinkType = "primary"
	LinkSecondary LinkType = "secondary"
)

// Event-link policy values for Config.EventLinkMethod.
const (
	LinkMethodOnePrimary              = "one_primary"
	LinkMethodManySecondary           = "many_secondary"
	LinkMethodOnePrimaryManySecondary = "one_primary_many_secondary"
)

// EventLink relates a Planning item to an Event.
type EventLink struct {
	ID           string   `json:"_id"`
	RecurrenceID string   `json:"recurrence_id,omitempty"`
	LinkType     LinkType `json:"link_type"`
}

// CoveragePlanning holds the editorial detail of one coverage.
type CoveragePlanning struct {
	// Scheduled is when the coverage is due.
	Scheduled *time.Time `json:"scheduled,omitempty"`

	G2ContentType string `json:"g2_content_type,omitempty"`
	Slugline      string `json:"slugline,omitempty"`
	Headline      string `json:"headline,omitempty"`
	InternalNote  string `json:"internal_note,omitempty"`
	Language      string `json:"language,omitempty"`

	// WorkflowStatusReason records why the coverage left its previous
	// workflow status.
	WorkflowStatusReason string `json:"workflow_status_reason,omitempty"`
}

// Clone returns a deep copy.
func (p CoveragePlanning) Clone() CoveragePlanning {
	out := p
	if p.Scheduled != nil {
		t := *p.Scheduled
		out.Scheduled = &t
	}
	return out
}

// AssignedTo binds a coverage (or scheduled update) to a desk/user via
// an Assignment record.
type AssignedTo struct {
	AssignmentID string `json:"assignment_id,omitempty"`
	User         string `json:"user,omitempty"`
	Desk         string `json:"desk,omitempty"`
	Contact      string `json:"contact,omitempty"`

	State    AssignmentState `json:"state,omitempty"`
	Priority int             `json:"priority,omitempty"`
}

// ScheduledUpdate is a follow-up unit of work inside a coverage. It runs
// the same add/update/remove cascade as its parent, with its own
// optional assignment.
type ScheduledUpdate struct {
	ScheduledUpdateID string `json:"scheduled_update_id,omitempty"`
	CoverageID        string `json:"coverage_id,omitempty"`

	WorkflowStatus WorkflowState    `json:"workflow_status,omitempty"`
	Planning       CoveragePlanning `json:"planning"`
	AssignedTo     *AssignedTo      `json:"assigned_to,omitempty"`
}

// Clone returns a deep copy.
func (s ScheduledUpdate) Clone() ScheduledUpdate {
	out := s
	out.Planning = s.Planning.Clone()
	if s.AssignedTo != nil {
		at := *s.AssignedTo
		out.AssignedTo = &at
	}
	return out
}

// NewsCoverageStatus is the vocabulary-driven intent status of a
// coverage ("coverage intended", "not intended", ...).
type NewsCoverageStatus struct {
	QCode string `json:"qcode,omitempty"`
	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`
}

// CoverageCancelledStatus is applied to a coverage when it is cancelled.
var CoverageCancelledStatus = NewsCoverageStatus{
	QCode: "ncostat:notint",
	Name:  "coverage not intended",
	Label: "Not planned",
}

// Coverage is one unit of planned editorial work on a Planning item.
type Coverage struct {
	CoverageID string `json:"coverage_id,omitempty"`

	// OriginalCoverageID correlates coverages across series-generated
	// planning clones; CoverageID differs per clone.
	OriginalCoverageID string `json:"original_coverage_id,omitempty"`

	WorkflowStatus     WorkflowState      `json:"workflow_status,omitempty"`
	NewsCoverageStatus NewsCoverageStatus `json:"news_coverage_status,omitempty"`

	// PreviousStatus is the workflow status before cancellation.
	PreviousStatus WorkflowState `json:"previous_status,omitempty"`

	Planning   CoveragePlanning `json:"planning"`
	AssignedTo *AssignedTo      `json:"assigned_to,omitempty"`

	ScheduledUpdates []ScheduledUpdate `json:"scheduled_updates,omitempty"`

	OriginalCreator string     `json:"original_creator,omitempty"`
	VersionCreator  string     `json:"version_creator,omitempty"`
	FirstCreated    *time.Time `json:"firstcreated,omitempty"`
	VersionCreated  *time.Time `json:"versioncreated,omitempty"`
}

// Clone returns a deep copy.
func (c Coverage) Clone() Coverage {
	out := c
	out.Planning = c.Planning.Clone()
	if c.AssignedTo != nil {
		at := *c.AssignedTo
		out.AssignedTo = &at
	}
	if c.FirstCreated != nil {
		t := *c.FirstCreated
		out.FirstCreated = &t
	}
	if c.VersionCreated != nil {
		t := *c.VersionCreated
		out.VersionCreated = &t
	}
	if c.ScheduledUpdates != nil {
		out.ScheduledUpdates = make([]ScheduledUpdate, len(c.ScheduledUpdates))
		for i, s := range c.ScheduledUpdates {
			out.ScheduledUpdates[i] = s.Clone()
		}
	}
	return out
}

// PlanningFlags holds per-item behavior toggles.
type PlanningFlags struct {
	// OverrideAutoAssignToWorkflow suppresses the
	// planning_auto_assign_to_workflow config for this item.
	OverrideAutoAssignToWorkflow bool `json:"overide_auto_assign_to_workflow,omitempty"`
}

// Planning is an editorial coverage plan, optionally linked to Events.
type Planning struct {
	ID   string `json:"_id"`
	GUID string `json:"guid,omitempty"`

	Headline        string `json:"headline,omitempty"`
	Slugline        string `json:"slugline,omitempty"`
	Name            string `json:"name,omitempty"`
	DescriptionText string `json:"description_text,omitempty"`
	InternalNote    string `json:"internal_note,omitempty"`

	// PlanningDate anchors the item in time; for items created from an
	// event it equals the event start.
	PlanningDate time.Time `json:"planning_date"`

	RelatedEvents []EventLink `json:"related_events,omitempty"`

	// RecurrenceID mirrors the primary linked event's series id.
	RecurrenceID string `json:"recurrence_id,omitempty"`

	// PlanningRecurrenceID groups planning items generated together
	// from one event-series expansion. Distinct from RecurrenceID.
	PlanningRecurrenceID string `json:"planning_recurrence_id,omitempty"`

	Coverages []Coverage `json:"coverages,omitempty"`

	State   WorkflowState `json:"state,omitempty"`
	Expired bool          `json:"expired,omitempty"`

	Lock

	Flags PlanningFlags `json:"flags,omitempty"`

	// PlanningSchedule and UpdatesSchedule are derived after every
	// write from the coverages and their scheduled updates.
	PlanningSchedule []ScheduleEntry `json:"_planning_schedule,omitempty"`
	UpdatesSchedule  []ScheduleEntry `json:"_updates_schedule,omitempty"`

	// UpdateMethod is a transient request field; never persisted.
	UpdateMethod UpdateMethod `json:"update_method,omitempty"`

	OriginalCreator string     `json:"original_creator,omitempty"`
	VersionCreator  string     `json:"version_creator,omitempty"`
	FirstCreated    *time.Time `json:"firstcreated,omitempty"`
	VersionCreated  *time.Time `json:"versioncreated,omitempty"`
}

// Clone returns a deep copy of the planning item.
func (p Planning) Clone() Planning {
	out := p
	if p.RelatedEvents != nil {
		out.RelatedEvents = make([]EventLink, len(p.RelatedEvents))
		copy(out.RelatedEvents, p.RelatedEvents)
	}
	if p.Coverages != nil {
		out.Coverages = make([]Coverage, len(p.Coverages))
		for i, c := range p.Coverages {
			out.Coverages[i] = c.Clone()
		}
	}
	if p.LockTime != nil {
		t := *p.LockTime
		out.LockTime = &t
	}
	if p.FirstCreated != nil {
		t := *p.FirstCreated
		out.FirstCreated = &t
	}
	if p.VersionCreated != nil {
		t := *p.VersionCreated
		out.VersionCreated = &t
	}
	out.PlanningSchedule = cloneSchedule(p.PlanningSchedule)
	out.UpdatesSchedule = cloneSchedule(p.UpdatesSchedule)
	return out
}

// CoverageByID finds a coverage by CoverageID. Returns nil if absent.
func (p Planning) CoverageByID(id string) *Coverage {
	for i := range p.Coverages {
		if p.Coverages[i].CoverageID == id {
			return &p.Coverages[i]
		}
	}
	return nil
}

// CoverageByOriginalID finds a coverage by OriginalCoverageID.
func (p Planning) CoverageByOriginalID(id string) *Coverage {
	for i := range p.Coverages {
		if p.Coverages[i].OriginalCoverageID == id {
			return &p.Coverages[i]
		}
	}
	return nil
}

// RelatedEventIDs returns ids of linked events, optionally filtered by
// link type ("" means all).
func (p Planning) RelatedEventIDs(linkType LinkType) []string {
	var ids []string
	for _, link := range p.RelatedEvents {
		if linkType == "" || link.LinkType == linkType {
			ids = append(ids, link.ID)
		}
	}
	return ids
}
