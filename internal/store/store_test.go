package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/store"
	"github.com/nhle/newsroom-planning/tests/testutil"
)

func sampleEvent(id string, start time.Time) model.Event {
	return model.Event{
		ID:       id,
		GUID:     id,
		Name:     "Sample event",
		Slugline: "sample",
		State:    model.StateDraft,
		Dates: model.EventDates{
			Start: start,
			End:   start.Add(time.Hour),
		},
	}
}

func TestEventRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	until := start.AddDate(0, 1, 0)
	scheduled := start

	ev := sampleEvent("ev-1", start)
	ev.Dates.TZ = "Europe/Berlin"
	ev.Dates.RecurringRule = &model.RecurringRule{
		Frequency:     model.FreqWeekly,
		Interval:      2,
		EndRepeatMode: "until",
		Until:         &until,
		ByDay:         "MO TH",
	}
	ev.RecurrenceID = "series-1"
	ev.PlanningSchedule = []model.ScheduleEntry{{Scheduled: &scheduled}}
	ev.AdditionalProperties = map[string]any{"venue": "Town hall"}

	require.NoError(t, st.CreateEvents(ctx, []model.Event{ev}))

	got, err := st.GetEventByID(ctx, "ev-1")
	require.NoError(t, err)

	assert.Equal(t, ev.Name, got.Name)
	assert.Equal(t, ev.Dates.Start, got.Dates.Start)
	assert.Equal(t, "Europe/Berlin", got.Dates.TZ)
	require.NotNil(t, got.Dates.RecurringRule)
	assert.Equal(t, model.FreqWeekly, got.Dates.RecurringRule.Frequency)
	assert.Equal(t, "MO TH", got.Dates.RecurringRule.ByDay)
	require.NotNil(t, got.Dates.RecurringRule.Until)
	assert.True(t, until.Equal(*got.Dates.RecurringRule.Until))
	require.Len(t, got.PlanningSchedule, 1)
	assert.Equal(t, "Town hall", got.AdditionalProperties["venue"])
}

func TestEventNotFound(t *testing.T) {
	st := testutil.NewTestStore(t)

	_, err := st.GetEventByID(context.Background(), "missing")
	var nerr *model.NotFoundError
	require.ErrorAs(t, err, &nerr)

	err = st.UpdateEvent(context.Background(), sampleEvent("missing", time.Now().UTC()))
	require.ErrorAs(t, err, &nerr)
}

func TestEventFilters(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	a := sampleEvent("ev-a", base)
	a.RecurrenceID = "series-1"
	b := sampleEvent("ev-b", base.AddDate(0, 0, 1))
	b.RecurrenceID = "series-1"
	b.State = model.StateSpiked
	c := sampleEvent("ev-c", base.AddDate(0, 0, 2))
	require.NoError(t, st.CreateEvents(ctx, []model.Event{a, b, c}))

	seriesID := "series-1"
	got, err := st.GetEvents(ctx, store.EventFilter{RecurrenceID: &seriesID})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.GetEvents(ctx, store.EventFilter{
		RecurrenceID:  &seriesID,
		ExcludeStates: []model.WorkflowState{model.StateSpiked},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-a", got[0].ID)

	cutoff := base.Add(2 * time.Hour)
	got, err = st.GetEvents(ctx, store.EventFilter{EndBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-a", got[0].ID)
}

func TestEventSortAndPagination(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	events := []model.Event{
		sampleEvent("ev-3", base.AddDate(0, 0, 2)),
		sampleEvent("ev-1", base),
		sampleEvent("ev-2", base.AddDate(0, 0, 1)),
	}
	require.NoError(t, st.CreateEvents(ctx, events))

	got, err := st.GetEvents(ctx, store.EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-1", got[0].ID)
	assert.Equal(t, "ev-2", got[1].ID)

	got, err = st.GetEvents(ctx, store.EventFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-3", got[0].ID)

	got, err = st.GetEvents(ctx, store.EventFilter{SortDesc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-3", got[0].ID)
}

func TestCreateEventsAtomic(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateEvents(ctx, []model.Event{sampleEvent("dup", start)}))

	err := st.CreateEvents(ctx, []model.Event{
		sampleEvent("fresh", start),
		sampleEvent("dup", start),
	})
	require.Error(t, err)

	_, err = st.GetEventByID(ctx, "fresh")
	var nerr *model.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func samplePlanning(id string, date time.Time) model.Planning {
	return model.Planning{
		ID:           id,
		GUID:         id,
		Slugline:     "sample",
		State:        model.StateDraft,
		PlanningDate: date,
	}
}

func TestPlanningRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	scheduled := date.Add(time.Hour)

	item := samplePlanning("plan-1", date)
	item.RelatedEvents = []model.EventLink{{ID: "ev-1", LinkType: model.LinkPrimary, RecurrenceID: "series-1"}}
	item.Coverages = []model.Coverage{{
		CoverageID:         "cov-1",
		OriginalCoverageID: "cov-1",
		WorkflowStatus:     model.StateDraft,
		Planning:           model.CoveragePlanning{G2ContentType: "text", Scheduled: &scheduled},
		AssignedTo:         &model.AssignedTo{Desk: "desk-1", State: model.AssignmentDraft},
	}}
	item.PlanningSchedule = []model.ScheduleEntry{{CoverageID: "cov-1", Scheduled: &scheduled}}
	item.Flags.OverrideAutoAssignToWorkflow = true

	require.NoError(t, st.CreatePlannings(ctx, []model.Planning{item}))

	got, err := st.GetPlanningByID(ctx, "plan-1")
	require.NoError(t, err)

	assert.Equal(t, item.PlanningDate, got.PlanningDate)
	require.Len(t, got.RelatedEvents, 1)
	assert.Equal(t, model.LinkPrimary, got.RelatedEvents[0].LinkType)
	require.Len(t, got.Coverages, 1)
	assert.Equal(t, "text", got.Coverages[0].Planning.G2ContentType)
	require.NotNil(t, got.Coverages[0].AssignedTo)
	assert.Equal(t, "desk-1", got.Coverages[0].AssignedTo.Desk)
	assert.True(t, got.Flags.OverrideAutoAssignToWorkflow)
}

func TestGetPlanningsForEvent(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	linked := samplePlanning("plan-1", date)
	linked.RelatedEvents = []model.EventLink{{ID: "ev-1", LinkType: model.LinkPrimary}}
	other := samplePlanning("plan-2", date)
	other.RelatedEvents = []model.EventLink{{ID: "ev-2", LinkType: model.LinkSecondary}}
	standalone := samplePlanning("plan-3", date)
	require.NoError(t, st.CreatePlannings(ctx, []model.Planning{linked, other, standalone}))

	got, err := st.GetPlanningsForEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "plan-1", got[0].ID)
}

func TestPlanningExcludePrimaryLinked(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	primary := samplePlanning("plan-1", date)
	primary.RelatedEvents = []model.EventLink{{ID: "ev-1", LinkType: model.LinkPrimary}}
	secondary := samplePlanning("plan-2", date)
	secondary.RelatedEvents = []model.EventLink{{ID: "ev-2", LinkType: model.LinkSecondary}}
	standalone := samplePlanning("plan-3", date)
	require.NoError(t, st.CreatePlannings(ctx, []model.Planning{primary, secondary, standalone}))

	got, err := st.GetPlannings(ctx, store.PlanningFilter{ExcludePrimaryLinked: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, item := range got {
		assert.NotEqual(t, "plan-1", item.ID)
	}
}

func TestPlanningScheduleBefore(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	past := samplePlanning("past", now.Add(-48*time.Hour))
	future := samplePlanning("future", now.Add(48*time.Hour))

	withFutureCoverage := samplePlanning("future-coverage", now.Add(-48*time.Hour))
	coverageTime := now.Add(24 * time.Hour)
	withFutureCoverage.PlanningSchedule = []model.ScheduleEntry{{CoverageID: "cov-1", Scheduled: &coverageTime}}

	require.NoError(t, st.CreatePlannings(ctx, []model.Planning{past, future, withFutureCoverage}))

	got, err := st.GetPlannings(ctx, store.PlanningFilter{ScheduleBefore: &now})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "past", got[0].ID)
}

func TestUpdatePlanningRewritesLinks(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	item := samplePlanning("plan-1", date)
	item.RelatedEvents = []model.EventLink{{ID: "ev-1", LinkType: model.LinkPrimary}}
	require.NoError(t, st.CreatePlannings(ctx, []model.Planning{item}))

	item.RelatedEvents = []model.EventLink{{ID: "ev-2", LinkType: model.LinkPrimary}}
	require.NoError(t, st.UpdatePlanning(ctx, item))

	got, err := st.GetPlanningsForEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = st.GetPlanningsForEvent(ctx, "ev-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "plan-1", got[0].ID)
}

func TestAssignmentRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	a := model.Assignment{
		ID:           "assign-1",
		PlanningItem: "plan-1",
		CoverageItem: "cov-1",
		AssignedTo:   model.AssignedTo{Desk: "desk-1", State: model.AssignmentDraft, Priority: 2},
		Planning:     model.CoveragePlanning{G2ContentType: "text"},
		Priority:     2,
		Name:         "Budget coverage",
	}
	require.NoError(t, st.CreateAssignment(ctx, a))

	got, err := st.GetAssignmentByID(ctx, "assign-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", got.PlanningItem)
	assert.Equal(t, model.AssignmentDraft, got.AssignedTo.State)

	got.AssignedTo.State = model.AssignmentCancelled
	require.NoError(t, st.UpdateAssignment(ctx, *got))

	got, err = st.GetAssignmentByID(ctx, "assign-1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCancelled, got.AssignedTo.State)

	require.NoError(t, st.DeleteAssignment(ctx, "assign-1"))
	_, err = st.GetAssignmentByID(ctx, "assign-1")
	var nerr *model.NotFoundError
	require.ErrorAs(t, err, &nerr)
}
