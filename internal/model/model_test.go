package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCloneIsDeep(t *testing.T) {
	until := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ev := Event{
		ID:   "ev-1",
		Name: "Original",
		Dates: EventDates{
			Start:         time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
			End:           time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			RecurringRule: &RecurringRule{Frequency: FreqWeekly, Interval: 1, Until: &until},
		},
		AdditionalProperties: map[string]any{"venue": "Hall A"},
	}

	clone := ev.Clone()
	clone.Name = "Changed"
	clone.Dates.RecurringRule.Interval = 2
	*clone.Dates.RecurringRule.Until = until.AddDate(1, 0, 0)
	clone.AdditionalProperties["venue"] = "Hall B"

	assert.Equal(t, "Original", ev.Name)
	assert.Equal(t, 1, ev.Dates.RecurringRule.Interval)
	assert.Equal(t, until, *ev.Dates.RecurringRule.Until)
	assert.Equal(t, "Hall A", ev.AdditionalProperties["venue"])
}

func TestPlanningCloneIsDeep(t *testing.T) {
	scheduled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Planning{
		ID: "plan-1",
		Coverages: []Coverage{{
			CoverageID: "cov-1",
			Planning:   CoveragePlanning{Scheduled: &scheduled},
			AssignedTo: &AssignedTo{Desk: "desk-1"},
		}},
		RelatedEvents: []EventLink{{ID: "ev-1", LinkType: LinkPrimary}},
	}

	clone := p.Clone()
	clone.Coverages[0].AssignedTo.Desk = "desk-2"
	*clone.Coverages[0].Planning.Scheduled = scheduled.Add(time.Hour)
	clone.RelatedEvents[0].ID = "ev-2"

	assert.Equal(t, "desk-1", p.Coverages[0].AssignedTo.Desk)
	assert.Equal(t, scheduled, *p.Coverages[0].Planning.Scheduled)
	assert.Equal(t, "ev-1", p.RelatedEvents[0].ID)
}

func TestLockHeldByOther(t *testing.T) {
	var lock Lock
	assert.False(t, lock.HeldByOther("editor"))

	lock.LockUser = "editor"
	assert.False(t, lock.HeldByOther("editor"))
	assert.True(t, lock.HeldByOther("someone-else"))

	lock.Clear()
	assert.False(t, lock.HeldByOther("someone-else"))
	assert.Empty(t, lock.LockUser)
}

func TestParseTimeFormats(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-05-01T09:30:00Z",
		"2024-05-01T09:30:00+0000",
		"2024-05-01T09:30:00",
		"2024-05-01 09:30:00",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseTime("not-a-time")
	require.Error(t, err)
}

func TestRecurringRuleDecodesLegacyUntil(t *testing.T) {
	var rule RecurringRule
	data := []byte(`{"frequency":"WEEKLY","interval":1,"until":"2016-11-17T23:00:00+0000"}`)
	require.NoError(t, json.Unmarshal(data, &rule))

	assert.Equal(t, FreqWeekly, rule.Frequency)
	require.NotNil(t, rule.Until)
	assert.True(t, time.Date(2016, 11, 17, 23, 0, 0, 0, time.UTC).Equal(*rule.Until))

	require.NoError(t, json.Unmarshal([]byte(`{"frequency":"DAILY","interval":1,"count":3}`), &rule))
	assert.Equal(t, 3, rule.Count)

	err := json.Unmarshal([]byte(`{"frequency":"DAILY","until":"not-a-time"}`), &rule)
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200, cfg.MaxRecurrentEvents)
	assert.Equal(t, LinkMethodOnePrimaryManySecondary, cfg.EventLinkMethod)
	assert.True(t, cfg.AllowScheduledUpdates)
	assert.False(t, cfg.AutoAssignToWorkflow)
}
