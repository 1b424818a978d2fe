package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/newsroom-planning/internal/model"
)

const eventColumns = `
	id, guid, name, slugline, description,
	dates_start, dates_end, dates_tz, recurring_rule,
	recurrence_id, previous_recurrence_id, state, pubstatus,
	expiry, expired,
	lock_user, lock_session, lock_time, lock_action,
	planning_schedule, embedded_planning,
	reschedule_from, state_reason,
	original_creator, version_creator, firstcreated, versioncreated,
	extra`

// CreateEvents inserts a batch of events in one transaction: either the
// whole batch is persisted or none of it is.
func (s *SQLiteStore) CreateEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (` + eventColumns + `) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?,
			?, ?, ?, ?,
			?, ?,
			?, ?,
			?, ?, ?, ?,
			?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		args, err := eventArgs(ev)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

// GetEventByID retrieves a single event by its ID.
func (s *SQLiteStore) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("event", id)
		}
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}

	return &ev, nil
}

// UpdateEvent replaces the stored document for the event's id.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, ev model.Event) error {
	args, err := eventArgs(ev)
	if err != nil {
		return err
	}

	// Shift id from the first insert position to the WHERE clause.
	args = append(args[1:], ev.ID)

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			guid = ?, name = ?, slugline = ?, description = ?,
			dates_start = ?, dates_end = ?, dates_tz = ?, recurring_rule = ?,
			recurrence_id = ?, previous_recurrence_id = ?, state = ?, pubstatus = ?,
			expiry = ?, expired = ?,
			lock_user = ?, lock_session = ?, lock_time = ?, lock_action = ?,
			planning_schedule = ?, embedded_planning = ?,
			reschedule_from = ?, state_reason = ?,
			original_creator = ?, version_creator = ?, firstcreated = ?, versioncreated = ?,
			extra = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", ev.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating event %s: %w", ev.ID, err)
	}
	if affected == 0 {
		return model.NotFound("event", ev.ID)
	}

	return nil
}

// GetEvents retrieves events matching the provided filter.
func (s *SQLiteStore) GetEvents(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	where, args := eventConditions(filter)

	query := "SELECT " + eventColumns + " FROM events"
	if where != "" {
		query += " WHERE " + where
	}

	sortBy := "dates_start"
	switch filter.SortBy {
	case "", "dates.start":
	case "dates.end":
		sortBy = "dates_end"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// DeleteEvents removes all events matching the filter.
func (s *SQLiteStore) DeleteEvents(ctx context.Context, filter EventFilter) error {
	where, args := eventConditions(filter)

	query := "DELETE FROM events"
	if where != "" {
		query += " WHERE " + where
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}
	return nil
}

// eventConditions builds the WHERE clause for an EventFilter.
func eventConditions(filter EventFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.RecurrenceID != nil {
		conditions = append(conditions, "recurrence_id = ?")
		args = append(args, *filter.RecurrenceID)
	}
	if filter.ExcludeID != nil {
		conditions = append(conditions, "id != ?")
		args = append(args, *filter.ExcludeID)
	}
	if len(filter.States) > 0 {
		conditions = append(conditions, "state IN ("+placeholders(len(filter.States))+")")
		for _, st := range filter.States {
			args = append(args, string(st))
		}
	}
	if len(filter.ExcludeStates) > 0 {
		conditions = append(conditions, "state NOT IN ("+placeholders(len(filter.ExcludeStates))+")")
		for _, st := range filter.ExcludeStates {
			args = append(args, string(st))
		}
	}
	if filter.EndBefore != nil {
		conditions = append(conditions, "dates_end <= ?")
		args = append(args, filter.EndBefore.UTC())
	}
	if filter.NotExpired {
		conditions = append(conditions, "expired = 0")
	}

	return strings.Join(conditions, " AND "), args
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// eventArgs flattens an event into the insert argument list, encoding
// nested documents as JSON.
func eventArgs(ev model.Event) ([]interface{}, error) {
	rule := ""
	if ev.Dates.RecurringRule != nil {
		b, err := json.Marshal(ev.Dates.RecurringRule)
		if err != nil {
			return nil, fmt.Errorf("marshaling recurring rule for event %s: %w", ev.ID, err)
		}
		rule = string(b)
	}

	schedule, err := json.Marshal(ev.PlanningSchedule)
	if err != nil {
		return nil, fmt.Errorf("marshaling planning schedule for event %s: %w", ev.ID, err)
	}

	embedded, err := json.Marshal(ev.EmbeddedPlanning)
	if err != nil {
		return nil, fmt.Errorf("marshaling embedded planning for event %s: %w", ev.ID, err)
	}

	extra, err := json.Marshal(ev.AdditionalProperties)
	if err != nil {
		return nil, fmt.Errorf("marshaling extra fields for event %s: %w", ev.ID, err)
	}

	return []interface{}{
		ev.ID, ev.GUID, ev.Name, ev.Slugline, ev.Description,
		ev.Dates.Start.UTC(), ev.Dates.End.UTC(), ev.Dates.TZ, rule,
		ev.RecurrenceID, ev.PreviousRecurrenceID, string(ev.State), string(ev.PubStatus),
		nullableTime(ev.Expiry), boolToInt(ev.Expired),
		ev.LockUser, ev.LockSession, nullableTime(ev.LockTime), ev.LockAction,
		string(schedule), string(embedded),
		ev.RescheduleFrom, ev.StateReason,
		ev.OriginalCreator, ev.VersionCreator,
		nullableTime(ev.FirstCreated), nullableTime(ev.VersionCreated),
		string(extra),
	}, nil
}

// rowScanner is satisfied by both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEvent reads one event row, decoding the JSON-encoded nested
// documents back into the typed model.
func scanEvent(row rowScanner) (model.Event, error) {
	var (
		ev         model.Event
		state      string
		pubstatus  string
		rule       string
		schedule   string
		embedded   string
		extra      string
		expired    int
		expiry     sql.NullTime
		lockTime   sql.NullTime
		firstMade  sql.NullTime
		verCreated sql.NullTime
	)

	err := row.Scan(
		&ev.ID, &ev.GUID, &ev.Name, &ev.Slugline, &ev.Description,
		&ev.Dates.Start, &ev.Dates.End, &ev.Dates.TZ, &rule,
		&ev.RecurrenceID, &ev.PreviousRecurrenceID, &state, &pubstatus,
		&expiry, &expired,
		&ev.LockUser, &ev.LockSession, &lockTime, &ev.LockAction,
		&schedule, &embedded,
		&ev.RescheduleFrom, &ev.StateReason,
		&ev.OriginalCreator, &ev.VersionCreator, &firstMade, &verCreated,
		&extra,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, err
		}
		return model.Event{}, fmt.Errorf("scanning event row: %w", err)
	}

	ev.State = model.WorkflowState(state)
	ev.PubStatus = model.PostState(pubstatus)
	ev.Expired = expired != 0
	ev.Expiry = timePtr(expiry)
	ev.LockTime = timePtr(lockTime)
	ev.FirstCreated = timePtr(firstMade)
	ev.VersionCreated = timePtr(verCreated)
	ev.Dates.Start = ev.Dates.Start.UTC()
	ev.Dates.End = ev.Dates.End.UTC()

	if rule != "" {
		var r model.RecurringRule
		if err := json.Unmarshal([]byte(rule), &r); err != nil {
			return model.Event{}, fmt.Errorf("unmarshaling recurring rule: %w", err)
		}
		ev.Dates.RecurringRule = &r
	}
	if schedule != "" {
		if err := json.Unmarshal([]byte(schedule), &ev.PlanningSchedule); err != nil {
			return model.Event{}, fmt.Errorf("unmarshaling planning schedule: %w", err)
		}
	}
	if embedded != "" {
		if err := json.Unmarshal([]byte(embedded), &ev.EmbeddedPlanning); err != nil {
			return model.Event{}, fmt.Errorf("unmarshaling embedded planning: %w", err)
		}
	}
	if extra != "" && extra != "null" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &ev.AdditionalProperties); err != nil {
			return model.Event{}, fmt.Errorf("unmarshaling extra fields: %w", err)
		}
	}

	return ev, nil
}

// nullableTime converts an optional time for SQLite storage.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// timePtr converts a scanned nullable time back to an optional field.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
