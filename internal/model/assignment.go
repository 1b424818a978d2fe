package model

import "time"

// AssignmentState is the lifecycle state of an Assignment.
type AssignmentState string

const (
	AssignmentDraft      AssignmentState = "draft"
	AssignmentAssigned   AssignmentState = "assigned"
	AssignmentInProgress AssignmentState = "in_progress"
	AssignmentCompleted  AssignmentState = "completed"
	AssignmentSubmitted  AssignmentState = "submitted"
	AssignmentCancelled  AssignmentState = "cancelled"
)

// DefaultAssignmentPriority is used when the coverage does not specify one.
const DefaultAssignmentPriority = 2

// Assignment binds one Coverage (or one of its scheduled updates) to a
// desk/user. Assignments are created and cancelled only as a side
// effect of coverage mutation, never standalone.
type Assignment struct {
	ID string `json:"_id"`

	// PlanningItem is the owning Planning item's id.
	PlanningItem string `json:"planning_item"`

	// CoverageItem is the owning coverage's id.
	CoverageItem string `json:"coverage_item"`

	// ScheduledUpdateID is set when the assignment belongs to a
	// scheduled update rather than the coverage itself.
	ScheduledUpdateID string `json:"scheduled_update_id,omitempty"`

	AssignedTo AssignedTo       `json:"assigned_to"`
	Planning   CoveragePlanning `json:"planning"`

	Priority        int    `json:"priority,omitempty"`
	Name            string `json:"name,omitempty"`
	DescriptionText string `json:"description_text,omitempty"`

	Lock

	FirstCreated   *time.Time `json:"firstcreated,omitempty"`
	VersionCreated *time.Time `json:"versioncreated,omitempty"`
}
