package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/newsroom-planning/internal/model"
)

func dailyTemplate(count int) model.Event {
	return model.Event{
		ID:       "template-id",
		Name:     "Morning briefing",
		Slugline: "briefing",
		State:    model.StateDraft,
		Dates: model.EventDates{
			Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
			RecurringRule: &model.RecurringRule{
				Frequency: model.FreqDaily,
				Interval:  1,
				Count:     count,
			},
		},
	}
}

func TestGenerateProducesDistinctInstances(t *testing.T) {
	events, err := Generate(dailyTemplate(4), "", model.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, events, 4)

	seen := make(map[string]bool)
	for _, ev := range events {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, seen[ev.ID], "instance ids must be unique")
		seen[ev.ID] = true
		assert.Equal(t, ev.ID, ev.GUID)
		assert.Equal(t, "Morning briefing", ev.Name)
	}
}

func TestGenerateSharedRecurrenceID(t *testing.T) {
	events, err := Generate(dailyTemplate(3), "", model.DefaultConfig())
	require.NoError(t, err)

	// Without a supplied series id the first instance's id is used.
	assert.Equal(t, events[0].ID, events[0].RecurrenceID)
	for _, ev := range events {
		assert.Equal(t, events[0].RecurrenceID, ev.RecurrenceID)
	}

	events, err = Generate(dailyTemplate(3), "series-42", model.DefaultConfig())
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, "series-42", ev.RecurrenceID)
	}
}

func TestGenerateKeepsDuration(t *testing.T) {
	events, err := Generate(dailyTemplate(3), "", model.DefaultConfig())
	require.NoError(t, err)

	for i, ev := range events {
		assert.Equal(t, 90*time.Minute, ev.Dates.End.Sub(ev.Dates.Start))
		expected := time.Date(2024, 1, 1+i, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, expected, ev.Dates.Start)
	}
}

func TestGenerateStripsInstanceState(t *testing.T) {
	now := time.Now()
	template := dailyTemplate(2)
	template.LockUser = "editor"
	template.LockSession = "session"
	template.LockTime = &now
	template.PubStatus = model.PostStateUsable
	template.RescheduleFrom = "old-event"
	template.UpdateMethod = model.UpdateAll

	events, err := Generate(template, "", model.DefaultConfig())
	require.NoError(t, err)

	for _, ev := range events {
		assert.Empty(t, ev.LockUser)
		assert.Nil(t, ev.LockTime)
		assert.Empty(t, ev.PubStatus)
		assert.Empty(t, ev.RescheduleFrom)
		assert.Empty(t, ev.UpdateMethod)
	}
}

func TestGenerateEmbeddedPlanningOnFirstOnly(t *testing.T) {
	template := dailyTemplate(3)
	template.EmbeddedPlanning = []model.EmbeddedPlanning{{
		Coverages: []model.EmbeddedCoverage{{Planning: model.CoveragePlanning{Slugline: "photos"}}},
	}}

	events, err := Generate(template, "", model.DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, events[0].EmbeddedPlanning, 1)
	for _, ev := range events[1:] {
		assert.Empty(t, ev.EmbeddedPlanning)
	}
}

func TestGenerateDerivedFields(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.ExpiryMinutes = 60

	events, err := Generate(dailyTemplate(2), "", cfg)
	require.NoError(t, err)

	for _, ev := range events {
		require.Len(t, ev.PlanningSchedule, 1)
		require.NotNil(t, ev.PlanningSchedule[0].Scheduled)
		assert.Equal(t, ev.Dates.Start, *ev.PlanningSchedule[0].Scheduled)

		require.NotNil(t, ev.Expiry)
		assert.Equal(t, ev.Dates.End.Add(time.Hour), *ev.Expiry)
	}
}

func TestGenerateHonorsInstanceCap(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.MaxRecurrentEvents = 5

	events, err := Generate(dailyTemplate(100), "", cfg)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestGenerateRejectsNonRecurring(t *testing.T) {
	template := dailyTemplate(3)
	template.Dates.RecurringRule = nil

	_, err := Generate(template, "", model.DefaultConfig())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}
