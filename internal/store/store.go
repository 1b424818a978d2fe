package store

import (
	"context"
	"time"

	"github.com/nhle/newsroom-planning/internal/model"
)

// EventFilter controls filtering, sorting, and pagination for event
// queries. Nil pointer fields are ignored.
type EventFilter struct {
	RecurrenceID  *string
	ExcludeID     *string
	States        []model.WorkflowState
	ExcludeStates []model.WorkflowState

	// EndBefore matches events whose end date is on or before the
	// given instant (expired-item discovery).
	EndBefore *time.Time

	// NotExpired excludes items already flagged as expired.
	NotExpired bool

	SortBy   string // "dates.start" (default), "dates.end"
	SortDesc bool
	Limit    int
	Offset   int
}

// PlanningFilter controls filtering, sorting, and pagination for
// planning queries.
type PlanningFilter struct {
	PlanningRecurrenceID *string
	RecurrenceID         *string
	ExcludeID            *string
	States               []model.WorkflowState
	ExcludeStates        []model.WorkflowState

	// EventID matches items linked to the given event.
	EventID *string

	// ScheduleBefore matches items whose planning date and latest
	// coverage schedule are both on or before the given instant.
	ScheduleBefore *time.Time

	// ExcludePrimaryLinked skips items with a primary event link,
	// whose expiry follows their event instead.
	ExcludePrimaryLinked bool

	NotExpired bool

	SortBy   string // "planning_date" (default)
	SortDesc bool
	Limit    int
	Offset   int
}

// EventStore is the persistence contract for events.
type EventStore interface {
	// CreateEvents inserts a batch atomically: either every event is
	// persisted or none are.
	CreateEvents(ctx context.Context, events []model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, event model.Event) error
	GetEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
	DeleteEvents(ctx context.Context, filter EventFilter) error
}

// PlanningStore is the persistence contract for planning items.
type PlanningStore interface {
	CreatePlannings(ctx context.Context, items []model.Planning) error
	GetPlanningByID(ctx context.Context, id string) (*model.Planning, error)
	UpdatePlanning(ctx context.Context, item model.Planning) error
	GetPlannings(ctx context.Context, filter PlanningFilter) ([]model.Planning, error)
	GetPlanningsForEvent(ctx context.Context, eventID string) ([]model.Planning, error)
	DeletePlannings(ctx context.Context, filter PlanningFilter) error
}

// AssignmentStore is the persistence contract for assignments.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a model.Assignment) error
	GetAssignmentByID(ctx context.Context, id string) (*model.Assignment, error)
	UpdateAssignment(ctx context.Context, a model.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
}

// Store is the full persistence contract consumed by the engine.
type Store interface {
	EventStore
	PlanningStore
	AssignmentStore

	Close() error
}
