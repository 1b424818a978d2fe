package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/tests/testutil"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newCascade(t *testing.T, cfg model.Config) *Cascade {
	t.Helper()
	st := testutil.NewTestStore(t)
	return New(st, st, cfg, quietLogger())
}

func basePlanning() model.Planning {
	return model.Planning{
		ID:           "plan-1",
		Name:         "Budget coverage",
		Slugline:     "budget",
		State:        model.StateDraft,
		PlanningDate: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleCoveragesAssignsIDs(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	item := basePlanning()
	item.Coverages = []model.Coverage{
		{Planning: model.CoveragePlanning{G2ContentType: "text"}},
		{CoverageID: model.TempIDPrefix + "1", Planning: model.CoveragePlanning{G2ContentType: "picture"}},
	}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	for _, cov := range item.Coverages {
		assert.NotEmpty(t, cov.CoverageID)
		assert.NotContains(t, cov.CoverageID, model.TempIDPrefix)
		assert.Equal(t, cov.CoverageID, cov.OriginalCoverageID)
		assert.Equal(t, model.StateDraft, cov.WorkflowStatus)
	}
	assert.NotEqual(t, item.Coverages[0].CoverageID, item.Coverages[1].CoverageID)
}

func TestHandleCoveragesScheduleFallsBackToPlanningDate(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	item := basePlanning()
	item.Coverages = []model.Coverage{{Planning: model.CoveragePlanning{G2ContentType: "text"}}}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	require.NotNil(t, item.Coverages[0].Planning.Scheduled)
	assert.Equal(t, item.PlanningDate, *item.Coverages[0].Planning.Scheduled)
}

func TestHandleCoveragesRebuildsSchedules(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	scheduled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	later := scheduled.Add(2 * time.Hour)
	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning: model.CoveragePlanning{Scheduled: &scheduled},
		ScheduledUpdates: []model.ScheduledUpdate{{
			Planning: model.CoveragePlanning{Scheduled: &later},
		}},
	}}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	require.Len(t, item.PlanningSchedule, 1)
	assert.Equal(t, item.Coverages[0].CoverageID, item.PlanningSchedule[0].CoverageID)
	require.Len(t, item.UpdatesSchedule, 1)
	assert.Equal(t, item.Coverages[0].ScheduledUpdates[0].ScheduledUpdateID, item.UpdatesSchedule[0].ScheduledUpdateID)
}

func TestHandleCoveragesCreatesDraftAssignment(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{Desk: "sports-desk"},
	}}

	require.NoError(t, c.HandleCoverages(ctx, nil, &item, "editor", time.Now()))

	cov := item.Coverages[0]
	require.NotNil(t, cov.AssignedTo)
	require.NotEmpty(t, cov.AssignedTo.AssignmentID)
	assert.Equal(t, model.AssignmentDraft, cov.AssignedTo.State)
	assert.Equal(t, model.StateDraft, cov.WorkflowStatus)
	assert.Equal(t, model.DefaultAssignmentPriority, cov.AssignedTo.Priority)

	a, err := st.GetAssignmentByID(ctx, cov.AssignedTo.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, a.PlanningItem)
	assert.Equal(t, cov.CoverageID, a.CoverageItem)
	assert.Equal(t, "sports-desk", a.AssignedTo.Desk)
}

func TestHandleCoveragesAutoAssignActivates(t *testing.T) {
	st := testutil.NewTestStore(t)
	cfg := model.DefaultConfig()
	cfg.AutoAssignToWorkflow = true
	c := New(st, st, cfg, quietLogger())

	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{User: "reporter-1"},
	}}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	cov := item.Coverages[0]
	assert.Equal(t, model.AssignmentAssigned, cov.AssignedTo.State)
	assert.Equal(t, model.StateActive, cov.WorkflowStatus)
}

func TestHandleCoveragesAutoAssignOverride(t *testing.T) {
	st := testutil.NewTestStore(t)
	cfg := model.DefaultConfig()
	cfg.AutoAssignToWorkflow = true
	c := New(st, st, cfg, quietLogger())

	item := basePlanning()
	item.Flags.OverrideAutoAssignToWorkflow = true
	item.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{User: "reporter-1"},
	}}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	cov := item.Coverages[0]
	assert.Equal(t, model.AssignmentDraft, cov.AssignedTo.State)
	assert.Equal(t, model.StateDraft, cov.WorkflowStatus)
}

func TestHandleCoveragesRejectsRemovingActiveCoverage(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	original := basePlanning()
	original.Coverages = []model.Coverage{{
		CoverageID:         "cov-1",
		OriginalCoverageID: "cov-1",
		WorkflowStatus:     model.StateActive,
		Planning:           model.CoveragePlanning{G2ContentType: "text"},
	}}

	updates := original.Clone()
	updates.Coverages = nil

	err := c.HandleCoverages(context.Background(), &original, &updates, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coverages", verr.Field)
}

func TestHandleCoveragesAllowsRemovingDraftCoverage(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	original := basePlanning()
	original.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{Desk: "desk-1"},
	}}
	require.NoError(t, c.HandleCoverages(ctx, nil, &original, "editor", time.Now()))
	assignmentID := original.Coverages[0].AssignedTo.AssignmentID

	updates := original.Clone()
	updates.Coverages = nil
	require.NoError(t, c.HandleCoverages(ctx, &original, &updates, "editor", time.Now()))

	_, err := st.GetAssignmentByID(ctx, assignmentID)
	var nerr *model.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestHandleCoveragesRejectsRemovalFromCancelledPlanning(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	original := basePlanning()
	original.State = model.StateCancelled
	original.Coverages = []model.Coverage{{
		CoverageID:         "cov-1",
		OriginalCoverageID: "cov-1",
		WorkflowStatus:     model.StateDraft,
		Planning:           model.CoveragePlanning{G2ContentType: "text"},
	}}

	updates := original.Clone()
	updates.Coverages = nil

	err := c.HandleCoverages(context.Background(), &original, &updates, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coverages", verr.Field)
}

func TestHandleCoveragesRejectsRemovalWithAssignmentInWorkflow(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	original := basePlanning()
	original.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{Desk: "desk-1"},
	}}
	require.NoError(t, c.HandleCoverages(ctx, nil, &original, "editor", time.Now()))

	assignmentID := original.Coverages[0].AssignedTo.AssignmentID
	a, err := st.GetAssignmentByID(ctx, assignmentID)
	require.NoError(t, err)
	a.AssignedTo.State = model.AssignmentInProgress
	require.NoError(t, st.UpdateAssignment(ctx, *a))

	updates := original.Clone()
	updates.Coverages = nil

	err = c.HandleCoverages(ctx, &original, &updates, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coverages", verr.Field)

	// The assignment record survives the rejected removal.
	_, err = st.GetAssignmentByID(ctx, assignmentID)
	require.NoError(t, err)
}

func TestHandleCoveragesNoOpKeepsVersions(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	original := basePlanning()
	original.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{Desk: "desk-1"},
	}}
	require.NoError(t, c.HandleCoverages(ctx, nil, &original, "editor", created))

	updates := original.Clone()
	require.NoError(t, c.HandleCoverages(ctx, &original, &updates, "other-editor", created.Add(time.Hour)))

	cov := updates.Coverages[0]
	assert.Equal(t, "editor", cov.VersionCreator)
	require.NotNil(t, cov.VersionCreated)
	assert.Equal(t, created, *cov.VersionCreated)

	a, err := st.GetAssignmentByID(ctx, cov.AssignedTo.AssignmentID)
	require.NoError(t, err)
	require.NotNil(t, a.VersionCreated)
	assert.Equal(t, created, *a.VersionCreated)
}

func TestHandleCoveragesCancelTransition(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	original := basePlanning()
	original.Coverages = []model.Coverage{{
		Planning:   model.CoveragePlanning{G2ContentType: "text"},
		AssignedTo: &model.AssignedTo{Desk: "desk-1"},
	}}
	require.NoError(t, c.HandleCoverages(ctx, nil, &original, "editor", time.Now()))
	original.Coverages[0].WorkflowStatus = model.StateActive

	updates := original.Clone()
	updates.Coverages[0].WorkflowStatus = model.StateCancelled
	require.NoError(t, c.HandleCoverages(ctx, &original, &updates, "editor", time.Now()))

	cov := updates.Coverages[0]
	assert.Equal(t, model.StateCancelled, cov.WorkflowStatus)
	assert.Equal(t, model.StateActive, cov.PreviousStatus)
	assert.Equal(t, model.CoverageCancelledStatus.QCode, cov.NewsCoverageStatus.QCode)
	assert.Equal(t, model.AssignmentCancelled, cov.AssignedTo.State)

	a, err := st.GetAssignmentByID(ctx, cov.AssignedTo.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCancelled, a.AssignedTo.State)
}

func TestHandleCoveragesScheduledUpdatesDisabled(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.AllowScheduledUpdates = false
	c := newCascade(t, cfg)

	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning:         model.CoveragePlanning{G2ContentType: "text"},
		ScheduledUpdates: []model.ScheduledUpdate{{Planning: model.CoveragePlanning{}}},
	}}

	err := c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduled_updates", verr.Field)
}

func TestHandleCoveragesScheduledUpdateCannotLeadCoverage(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	item := basePlanning()
	item.Coverages = []model.Coverage{{
		WorkflowStatus: model.StateDraft,
		Planning:       model.CoveragePlanning{G2ContentType: "text"},
		ScheduledUpdates: []model.ScheduledUpdate{{
			WorkflowStatus: model.StateActive,
			Planning:       model.CoveragePlanning{},
		}},
	}}

	err := c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduled_updates", verr.Field)
}

func TestHandleCoveragesScheduledUpdateInherit(t *testing.T) {
	c := newCascade(t, model.DefaultConfig())

	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning: model.CoveragePlanning{G2ContentType: "text"},
		ScheduledUpdates: []model.ScheduledUpdate{{
			ScheduledUpdateID: model.TempIDPrefix + "su",
			Planning:          model.CoveragePlanning{},
		}},
	}}

	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))

	su := item.Coverages[0].ScheduledUpdates[0]
	assert.NotContains(t, su.ScheduledUpdateID, model.TempIDPrefix)
	assert.Equal(t, item.Coverages[0].CoverageID, su.CoverageID)
	assert.Equal(t, model.StateDraft, su.WorkflowStatus)
}

func scheduledUpdatePlanning(t *testing.T, c *Cascade) model.Planning {
	t.Helper()

	scheduled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	later := scheduled.Add(2 * time.Hour)
	item := basePlanning()
	item.Coverages = []model.Coverage{{
		Planning: model.CoveragePlanning{Scheduled: &scheduled},
		ScheduledUpdates: []model.ScheduledUpdate{{
			Planning:   model.CoveragePlanning{Scheduled: &later},
			AssignedTo: &model.AssignedTo{Desk: "desk-1"},
		}},
	}}
	require.NoError(t, c.HandleCoverages(context.Background(), nil, &item, "editor", time.Now()))
	return item
}

func TestHandleCoveragesRemovesDroppedScheduledUpdate(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	original := scheduledUpdatePlanning(t, c)
	assignmentID := original.Coverages[0].ScheduledUpdates[0].AssignedTo.AssignmentID
	require.NotEmpty(t, assignmentID)

	updates := original.Clone()
	updates.Coverages[0].ScheduledUpdates = nil
	require.NoError(t, c.HandleCoverages(ctx, &original, &updates, "editor", time.Now()))

	_, err := st.GetAssignmentByID(ctx, assignmentID)
	var nerr *model.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestHandleCoveragesRejectsDroppingActiveScheduledUpdate(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())

	original := scheduledUpdatePlanning(t, c)
	original.Coverages[0].WorkflowStatus = model.StateActive
	original.Coverages[0].ScheduledUpdates[0].WorkflowStatus = model.StateActive

	updates := original.Clone()
	updates.Coverages[0].ScheduledUpdates = nil

	err := c.HandleCoverages(context.Background(), &original, &updates, "editor", time.Now())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduled_updates", verr.Field)
}

func TestHandleCoveragesUpdatesScheduledUpdateAssignment(t *testing.T) {
	st := testutil.NewTestStore(t)
	c := New(st, st, model.DefaultConfig(), quietLogger())
	ctx := context.Background()

	original := scheduledUpdatePlanning(t, c)
	assignmentID := original.Coverages[0].ScheduledUpdates[0].AssignedTo.AssignmentID

	updates := original.Clone()
	updates.Coverages[0].ScheduledUpdates[0].AssignedTo.User = "reporter-2"
	require.NoError(t, c.HandleCoverages(ctx, &original, &updates, "editor", time.Now()))

	a, err := st.GetAssignmentByID(ctx, assignmentID)
	require.NoError(t, err)
	assert.Equal(t, "reporter-2", a.AssignedTo.User)
	assert.Equal(t, "desk-1", a.AssignedTo.Desk)
}

func TestSetPlanningScheduleFallsBackToPlanningDate(t *testing.T) {
	item := basePlanning()
	SetPlanningSchedule(&item)

	require.Len(t, item.PlanningSchedule, 1)
	require.NotNil(t, item.PlanningSchedule[0].Scheduled)
	assert.Equal(t, item.PlanningDate, *item.PlanningSchedule[0].Scheduled)
	assert.Empty(t, item.UpdatesSchedule)
}
