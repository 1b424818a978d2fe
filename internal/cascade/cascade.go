// Package cascade keeps a planning item's coverages, their scheduled
// updates, and the backing assignment records consistent through every
// planning write, and propagates planning changes across recurring
// series siblings.
package cascade

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/store"
)

// Cascade applies coverage lifecycle rules during planning writes.
type Cascade struct {
	plannings   store.PlanningStore
	assignments store.AssignmentStore
	cfg         model.Config
	log         *logrus.Logger
}

// New builds a Cascade over the given stores.
func New(plannings store.PlanningStore, assignments store.AssignmentStore, cfg model.Config, log *logrus.Logger) *Cascade {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cascade{plannings: plannings, assignments: assignments, cfg: cfg, log: log}
}

// HandleCoverages reconciles updates.Coverages against the original
// item: removed coverages are validated and their draft assignments
// deleted, added coverages get real ids and optional assignments, and
// surviving coverages are updated in place. A coverage whose workflow
// status moves to cancelled is cancelled rather than removed.
//
// original is nil for a brand new planning item.
func (c *Cascade) HandleCoverages(ctx context.Context, original, updates *model.Planning, userID string, now time.Time) error {
	var originalCoverages []model.Coverage
	if original != nil {
		originalCoverages = original.Coverages
	}

	for _, prev := range originalCoverages {
		if coverageByID(updates.Coverages, prev.CoverageID) == nil {
			if err := c.removeCoverage(ctx, original, prev); err != nil {
				return err
			}
		}
	}

	for i := range updates.Coverages {
		cov := &updates.Coverages[i]

		prev := coverageByID(originalCoverages, cov.CoverageID)
		if prev == nil || isTempID(cov.CoverageID) {
			if err := c.addCoverage(ctx, updates, cov, userID, now); err != nil {
				return err
			}
			continue
		}
		if err := c.updateCoverage(ctx, updates, prev, cov, userID, now); err != nil {
			return err
		}
	}

	SetPlanningSchedule(updates)
	return nil
}

// removeCoverage validates a coverage deletion. Coverages cannot leave
// a cancelled planning item, a coverage already in workflow must be
// cancelled rather than deleted, and an assignment that has progressed
// past draft blocks the removal.
func (c *Cascade) removeCoverage(ctx context.Context, item *model.Planning, cov model.Coverage) error {
	if item.State == model.StateCancelled {
		return model.Validationf("coverages", "coverages cannot be removed from a cancelled planning item")
	}
	if cov.WorkflowStatus == model.StateActive {
		return model.Validationf("coverages", "coverage %s is in workflow and cannot be removed", cov.CoverageID)
	}

	// Scheduled updates go first, then the coverage's own assignment.
	for _, su := range cov.ScheduledUpdates {
		if su.AssignedTo != nil && su.AssignedTo.AssignmentID != "" {
			if err := c.deleteRemovableAssignment(ctx, su.AssignedTo.AssignmentID); err != nil {
				return err
			}
		}
	}
	if cov.AssignedTo != nil && cov.AssignedTo.AssignmentID != "" {
		if err := c.deleteRemovableAssignment(ctx, cov.AssignedTo.AssignmentID); err != nil {
			return err
		}
	}
	return nil
}

// deleteRemovableAssignment deletes an assignment record unless it has
// progressed past draft. A record that is already gone is not an error.
func (c *Cascade) deleteRemovableAssignment(ctx context.Context, id string) error {
	a, err := c.assignments.GetAssignmentByID(ctx, id)
	if err != nil {
		var nerr *model.NotFoundError
		if errors.As(err, &nerr) {
			return nil
		}
		return err
	}

	switch a.AssignedTo.State {
	case "", model.AssignmentDraft, model.AssignmentCancelled:
		return c.assignments.DeleteAssignment(ctx, id)
	default:
		return model.Validationf("coverages", "assignment %s is in workflow and cannot be removed", id)
	}
}

// addCoverage initialises a freshly added coverage: real ids replace
// client placeholders, the schedule falls back to the planning date,
// and an assignment record is created when a desk or user is assigned.
func (c *Cascade) addCoverage(ctx context.Context, item *model.Planning, cov *model.Coverage, userID string, now time.Time) error {
	cov.CoverageID = realID(cov.CoverageID)
	if cov.OriginalCoverageID == "" {
		cov.OriginalCoverageID = cov.CoverageID
	}

	if cov.Planning.Scheduled == nil {
		scheduled := item.PlanningDate
		cov.Planning.Scheduled = &scheduled
	}

	if cov.WorkflowStatus == "" {
		cov.WorkflowStatus = model.StateDraft
	}

	ts := now.UTC()
	cov.OriginalCreator = userID
	cov.VersionCreator = userID
	cov.FirstCreated = &ts
	cov.VersionCreated = &ts

	if err := c.syncAssignment(ctx, item, cov, nil, userID, now); err != nil {
		return err
	}

	return c.handleScheduledUpdates(ctx, item, nil, cov, userID, now)
}

// updateCoverage carries an in-place coverage edit, handling the
// cancel transition and keeping the assignment record in sync.
func (c *Cascade) updateCoverage(ctx context.Context, item *model.Planning, prev, cov *model.Coverage, userID string, now time.Time) error {
	cov.OriginalCoverageID = prev.OriginalCoverageID
	cov.OriginalCreator = prev.OriginalCreator
	cov.FirstCreated = prev.FirstCreated
	cov.PreviousStatus = prev.PreviousStatus

	if cov.WorkflowStatus == model.StateCancelled && prev.WorkflowStatus != model.StateCancelled {
		ts := now.UTC()
		cov.VersionCreator = userID
		cov.VersionCreated = &ts
		return c.cancelCoverage(ctx, prev, cov)
	}

	// A no-op edit leaves the audit trail and the assignment untouched.
	if !coverageChanged(prev, cov) {
		cov.VersionCreator = prev.VersionCreator
		cov.VersionCreated = prev.VersionCreated
		return nil
	}

	ts := now.UTC()
	cov.VersionCreator = userID
	cov.VersionCreated = &ts

	if err := c.syncAssignment(ctx, item, cov, prev, userID, now); err != nil {
		return err
	}

	return c.handleScheduledUpdates(ctx, item, prev, cov, userID, now)
}

// coverageChanged reports whether the edit carries a meaningful change
// to the coverage: its workflow status, news coverage status, planning
// details, assignment, or scheduled updates.
func coverageChanged(prev, cov *model.Coverage) bool {
	return cov.WorkflowStatus != prev.WorkflowStatus ||
		cov.NewsCoverageStatus != prev.NewsCoverageStatus ||
		!reflect.DeepEqual(cov.Planning, prev.Planning) ||
		!reflect.DeepEqual(cov.AssignedTo, prev.AssignedTo) ||
		!reflect.DeepEqual(cov.ScheduledUpdates, prev.ScheduledUpdates)
}

// cancelCoverage marks a coverage as not intended instead of deleting
// it, remembering the status it had so the cancellation can be
// reverted. Scheduled updates and the backing assignment are cancelled
// with it.
func (c *Cascade) cancelCoverage(ctx context.Context, prev, cov *model.Coverage) error {
	cov.PreviousStatus = prev.WorkflowStatus
	cov.WorkflowStatus = model.StateCancelled
	cov.NewsCoverageStatus = model.CoverageCancelledStatus

	if cov.AssignedTo != nil {
		cov.AssignedTo.State = model.AssignmentCancelled
	}
	for i := range cov.ScheduledUpdates {
		su := &cov.ScheduledUpdates[i]
		su.WorkflowStatus = model.StateCancelled
		if su.AssignedTo != nil {
			su.AssignedTo.State = model.AssignmentCancelled
		}
	}

	return c.cancelAssignments(ctx, cov)
}

// assignmentIDs collects the assignment ids of a coverage and its
// scheduled updates.
func assignmentIDs(cov *model.Coverage) []string {
	var ids []string
	if cov.AssignedTo != nil && cov.AssignedTo.AssignmentID != "" {
		ids = append(ids, cov.AssignedTo.AssignmentID)
	}
	for _, su := range cov.ScheduledUpdates {
		if su.AssignedTo != nil && su.AssignedTo.AssignmentID != "" {
			ids = append(ids, su.AssignedTo.AssignmentID)
		}
	}
	return ids
}

func (c *Cascade) cancelAssignments(ctx context.Context, cov *model.Coverage) error {
	ids := assignmentIDs(cov)
	for _, id := range ids {
		a, err := c.assignments.GetAssignmentByID(ctx, id)
		if err != nil {
			return err
		}
		a.AssignedTo.State = model.AssignmentCancelled
		if err := c.assignments.UpdateAssignment(ctx, *a); err != nil {
			return err
		}
	}
	return nil
}

// syncAssignment creates or updates the assignment record backing a
// coverage. A new assignment starts in draft unless auto-assignment is
// active, in which case it starts assigned and puts the coverage into
// workflow.
func (c *Cascade) syncAssignment(ctx context.Context, item *model.Planning, cov *model.Coverage, prev *model.Coverage, userID string, now time.Time) error {
	if cov.AssignedTo == nil || (cov.AssignedTo.Desk == "" && cov.AssignedTo.User == "") {
		return nil
	}

	if cov.AssignedTo.Priority == 0 {
		cov.AssignedTo.Priority = model.DefaultAssignmentPriority
	}

	if cov.AssignedTo.AssignmentID == "" {
		cov.AssignedTo.AssignmentID = uuid.New().String()
		cov.AssignedTo.State = model.AssignmentDraft

		if c.autoAssign(item) {
			cov.AssignedTo.State = model.AssignmentAssigned
			cov.WorkflowStatus = model.StateActive
		}

		return c.createAssignment(ctx, item, cov.CoverageID, "", cov.Planning, *cov.AssignedTo, now)
	}

	return c.refreshAssignment(ctx, item, cov.Planning, *cov.AssignedTo, now)
}

// refreshAssignment rewrites the stored assignment record from the
// current assignment and planning details.
func (c *Cascade) refreshAssignment(ctx context.Context, item *model.Planning, planning model.CoveragePlanning, assignedTo model.AssignedTo, now time.Time) error {
	a, err := c.assignments.GetAssignmentByID(ctx, assignedTo.AssignmentID)
	if err != nil {
		return err
	}
	a.AssignedTo = assignedTo
	a.Planning = planning.Clone()
	a.Name = item.Name
	a.DescriptionText = item.DescriptionText
	ts := now.UTC()
	a.VersionCreated = &ts
	return c.assignments.UpdateAssignment(ctx, *a)
}

func (c *Cascade) createAssignment(ctx context.Context, item *model.Planning, coverageID, scheduledUpdateID string, planning model.CoveragePlanning, assignedTo model.AssignedTo, now time.Time) error {
	ts := now.UTC()
	return c.assignments.CreateAssignment(ctx, model.Assignment{
		ID:                assignedTo.AssignmentID,
		PlanningItem:      item.ID,
		CoverageItem:      coverageID,
		ScheduledUpdateID: scheduledUpdateID,
		AssignedTo:        assignedTo,
		Planning:          planning.Clone(),
		Priority:          assignedTo.Priority,
		Name:              item.Name,
		DescriptionText:   item.DescriptionText,
		FirstCreated:      &ts,
		VersionCreated:    &ts,
	})
}

// handleScheduledUpdates runs the add/update/remove cascade for a
// coverage's scheduled updates. A scheduled update may not enter
// workflow before its parent coverage does, and a dropped update takes
// its assignment record with it.
func (c *Cascade) handleScheduledUpdates(ctx context.Context, item *model.Planning, prev, cov *model.Coverage, userID string, now time.Time) error {
	var prevUpdates []model.ScheduledUpdate
	if prev != nil {
		prevUpdates = prev.ScheduledUpdates
	}
	if len(cov.ScheduledUpdates) == 0 && len(prevUpdates) == 0 {
		return nil
	}
	if len(cov.ScheduledUpdates) > 0 && !c.cfg.AllowScheduledUpdates {
		return model.Validationf("scheduled_updates", "scheduled updates are not enabled")
	}

	for _, existing := range prevUpdates {
		if scheduledUpdateByID(cov.ScheduledUpdates, existing.ScheduledUpdateID) == nil {
			if err := c.removeScheduledUpdate(ctx, existing); err != nil {
				return err
			}
		}
	}

	for i := range cov.ScheduledUpdates {
		su := &cov.ScheduledUpdates[i]

		if su.WorkflowStatus == model.StateActive && cov.WorkflowStatus != model.StateActive {
			return model.Validationf("scheduled_updates", "scheduled update cannot enter workflow before its coverage")
		}

		existing := scheduledUpdateByID(prevUpdates, su.ScheduledUpdateID)
		if existing == nil || isTempID(su.ScheduledUpdateID) {
			su.ScheduledUpdateID = realID(su.ScheduledUpdateID)
			su.CoverageID = cov.CoverageID
			if su.WorkflowStatus == "" {
				su.WorkflowStatus = model.StateDraft
			}
		}

		if su.AssignedTo == nil || (su.AssignedTo.Desk == "" && su.AssignedTo.User == "") {
			continue
		}
		if su.AssignedTo.Priority == 0 {
			su.AssignedTo.Priority = model.DefaultAssignmentPriority
		}
		if su.AssignedTo.AssignmentID == "" {
			su.AssignedTo.AssignmentID = uuid.New().String()
			su.AssignedTo.State = model.AssignmentDraft
			if err := c.createAssignment(ctx, item, cov.CoverageID, su.ScheduledUpdateID, su.Planning, *su.AssignedTo, now); err != nil {
				return err
			}
			continue
		}
		if existing != nil {
			if err := c.refreshAssignment(ctx, item, su.Planning, *su.AssignedTo, now); err != nil {
				return err
			}
		}
	}

	return nil
}

// removeScheduledUpdate validates dropping one scheduled update and
// deletes its assignment record.
func (c *Cascade) removeScheduledUpdate(ctx context.Context, su model.ScheduledUpdate) error {
	if su.WorkflowStatus == model.StateActive {
		return model.Validationf("scheduled_updates", "scheduled update %s is in workflow and cannot be removed", su.ScheduledUpdateID)
	}
	if su.AssignedTo != nil && su.AssignedTo.AssignmentID != "" {
		return c.deleteRemovableAssignment(ctx, su.AssignedTo.AssignmentID)
	}
	return nil
}

// autoAssign reports whether new assignments go straight into workflow.
func (c *Cascade) autoAssign(item *model.Planning) bool {
	return c.cfg.AutoAssignToWorkflow && !item.Flags.OverrideAutoAssignToWorkflow
}

// SetPlanningSchedule rebuilds the derived schedule caches from the
// item's coverages and their scheduled updates.
func SetPlanningSchedule(item *model.Planning) {
	item.PlanningSchedule = nil
	item.UpdatesSchedule = nil

	for _, cov := range item.Coverages {
		item.PlanningSchedule = append(item.PlanningSchedule, model.ScheduleEntry{
			CoverageID: cov.CoverageID,
			Scheduled:  cov.Planning.Scheduled,
		})
		for _, su := range cov.ScheduledUpdates {
			item.UpdatesSchedule = append(item.UpdatesSchedule, model.ScheduleEntry{
				CoverageID:        cov.CoverageID,
				ScheduledUpdateID: su.ScheduledUpdateID,
				Scheduled:         su.Planning.Scheduled,
			})
		}
	}

	if item.PlanningSchedule == nil {
		item.PlanningSchedule = []model.ScheduleEntry{{Scheduled: &item.PlanningDate}}
	}
}

func coverageByID(coverages []model.Coverage, id string) *model.Coverage {
	if id == "" {
		return nil
	}
	for i := range coverages {
		if coverages[i].CoverageID == id {
			return &coverages[i]
		}
	}
	return nil
}

func scheduledUpdateByID(updates []model.ScheduledUpdate, id string) *model.ScheduledUpdate {
	if id == "" {
		return nil
	}
	for i := range updates {
		if updates[i].ScheduledUpdateID == id {
			return &updates[i]
		}
	}
	return nil
}

// isTempID reports whether the id is a client-generated placeholder.
func isTempID(id string) bool {
	return strings.HasPrefix(id, model.TempIDPrefix)
}

// realID replaces an empty or placeholder id with a fresh one.
func realID(id string) string {
	if id == "" || isTempID(id) {
		return uuid.New().String()
	}
	return id
}
