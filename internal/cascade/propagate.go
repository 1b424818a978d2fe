package cascade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/store"
)

// propagationExcludedStates are sibling states a recurring planning
// update never touches.
var propagationExcludedStates = []model.WorkflowState{
	model.StateSpiked,
	model.StateRescheduled,
	model.StateCancelled,
	model.StatePostponed,
}

// PropagateRecurring carries a planning update onto the other items of
// its recurring group, matched by planning recurrence id. Content
// fields are copied, date fields are shifted by the same offset the
// update applied, and coverages are correlated across items by their
// original coverage id. Sibling write failures are logged, not
// re-raised, since the primary item has already been written.
func (c *Cascade) PropagateRecurring(ctx context.Context, original, updated model.Planning, userID string, now time.Time) error {
	method := updated.UpdateMethod
	if method == "" || method == model.UpdateSingle {
		return nil
	}
	if updated.PlanningRecurrenceID == "" {
		return nil
	}

	siblings, err := c.plannings.GetPlannings(ctx, store.PlanningFilter{
		PlanningRecurrenceID: &updated.PlanningRecurrenceID,
		ExcludeID:            &updated.ID,
		ExcludeStates:        propagationExcludedStates,
	})
	if err != nil {
		return err
	}

	for _, sibling := range siblings {
		if method == model.UpdateFuture && !sibling.PlanningDate.After(original.PlanningDate) {
			continue
		}
		if sibling.HeldByOther(userID) {
			c.log.WithFields(logrus.Fields{
				"planning":  sibling.ID,
				"lock_user": sibling.LockUser,
			}).Warn("skipping locked recurring planning sibling")
			continue
		}

		out := c.translateSibling(sibling, original, updated, userID, now)
		SetPlanningSchedule(&out)

		if err := c.plannings.UpdatePlanning(ctx, out); err != nil {
			c.log.WithFields(logrus.Fields{
				"planning": sibling.ID,
				"error":    err,
			}).Error("updating recurring planning sibling failed")
		}
	}

	return nil
}

// translateSibling builds the sibling's updated document. The sibling
// keeps its identity, state, lock, event links, and audit trail.
func (c *Cascade) translateSibling(sibling, original, updated model.Planning, userID string, now time.Time) model.Planning {
	out := sibling.Clone()

	out.Headline = updated.Headline
	out.Slugline = updated.Slugline
	out.Name = updated.Name
	out.DescriptionText = updated.DescriptionText
	out.InternalNote = updated.InternalNote

	delta := updated.PlanningDate.Sub(original.PlanningDate)
	out.PlanningDate = sibling.PlanningDate.Add(delta)

	out.Coverages = c.translateCoverages(sibling, original, updated)

	ts := now.UTC()
	out.VersionCreator = userID
	out.VersionCreated = &ts
	out.UpdateMethod = ""

	return out
}

// translateCoverages reconciles the sibling's coverage list with the
// updated item's, correlating by original coverage id.
func (c *Cascade) translateCoverages(sibling, original, updated model.Planning) []model.Coverage {
	var out []model.Coverage

	for _, sibCov := range sibling.Coverages {
		updCov := coverageByOriginalID(updated.Coverages, sibCov.OriginalCoverageID)
		if updCov == nil {
			// Coverage was removed from the updated item; active
			// sibling coverages survive the removal.
			if sibCov.WorkflowStatus == model.StateActive {
				out = append(out, sibCov.Clone())
			}
			continue
		}

		merged := sibCov.Clone()
		origCov := coverageByOriginalID(original.Coverages, sibCov.OriginalCoverageID)
		mergeCoverageContent(&merged, *updCov, origCov, sibling.PlanningDate)
		out = append(out, merged)
	}

	// Coverages added to the updated item appear on every sibling with
	// fresh ids and a schedule anchored to the sibling's date.
	for _, updCov := range updated.Coverages {
		if updCov.OriginalCoverageID == "" {
			continue
		}
		if coverageByOriginalID(sibling.Coverages, updCov.OriginalCoverageID) != nil {
			continue
		}
		if coverageByOriginalID(original.Coverages, updCov.OriginalCoverageID) != nil {
			continue
		}

		clone := updCov.Clone()
		clone.CoverageID = uuid.New().String()
		clone.AssignedTo = nil
		clone.WorkflowStatus = model.StateDraft
		for i := range clone.ScheduledUpdates {
			clone.ScheduledUpdates[i].ScheduledUpdateID = uuid.New().String()
			clone.ScheduledUpdates[i].CoverageID = clone.CoverageID
			clone.ScheduledUpdates[i].AssignedTo = nil
			clone.ScheduledUpdates[i].WorkflowStatus = model.StateDraft
		}
		if clone.Planning.Scheduled != nil {
			shift := clone.Planning.Scheduled.Sub(updated.PlanningDate)
			scheduled := sibling.PlanningDate.Add(shift)
			clone.Planning.Scheduled = &scheduled
		}
		out = append(out, clone)
	}

	return out
}

// mergeCoverageContent copies the updated coverage's editorial content
// onto the sibling's coverage, shifting the schedule by the offset the
// update applied. Identity, assignment, and audit fields stay the
// sibling's own.
func mergeCoverageContent(dst *model.Coverage, src model.Coverage, origSrc *model.Coverage, siblingDate time.Time) {
	dst.Planning.G2ContentType = src.Planning.G2ContentType
	dst.Planning.Slugline = src.Planning.Slugline
	dst.Planning.Headline = src.Planning.Headline
	dst.Planning.InternalNote = src.Planning.InternalNote
	dst.Planning.Language = src.Planning.Language
	dst.NewsCoverageStatus = src.NewsCoverageStatus

	if src.Planning.Scheduled != nil && origSrc != nil && origSrc.Planning.Scheduled != nil && dst.Planning.Scheduled != nil {
		delta := src.Planning.Scheduled.Sub(*origSrc.Planning.Scheduled)
		scheduled := dst.Planning.Scheduled.Add(delta)
		dst.Planning.Scheduled = &scheduled
	}
}

func coverageByOriginalID(coverages []model.Coverage, id string) *model.Coverage {
	if id == "" {
		return nil
	}
	for i := range coverages {
		if coverages[i].OriginalCoverageID == id {
			return &coverages[i]
		}
	}
	return nil
}
