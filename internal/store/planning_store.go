package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/newsroom-planning/internal/model"
)

const planningColumns = `
	id, guid, headline, slugline, name, description_text, internal_note,
	planning_date, recurrence_id, planning_recurrence_id,
	related_events, coverages, state, expired,
	lock_user, lock_session, lock_time, lock_action,
	flags, planning_schedule, updates_schedule, max_scheduled,
	original_creator, version_creator, firstcreated, versioncreated`

// CreatePlannings inserts a batch of planning items in one transaction.
func (s *SQLiteStore) CreatePlannings(ctx context.Context, items []model.Planning) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO planning (` + planningColumns + `) VALUES (
			?, ?, ?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing planning insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		args, err := planningArgs(item)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting planning %s: %w", item.ID, err)
		}
		if err := syncEventLinks(ctx, tx, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPlanningByID retrieves a single planning item by its ID.
func (s *SQLiteStore) GetPlanningByID(ctx context.Context, id string) (*model.Planning, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+planningColumns+" FROM planning WHERE id = ?", id)

	item, err := scanPlanning(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("planning", id)
		}
		return nil, fmt.Errorf("getting planning %s: %w", id, err)
	}

	return &item, nil
}

// UpdatePlanning replaces the stored document for the item's id and
// keeps the event-link table in sync.
func (s *SQLiteStore) UpdatePlanning(ctx context.Context, item model.Planning) error {
	args, err := planningArgs(item)
	if err != nil {
		return err
	}
	args = append(args[1:], item.ID)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE planning SET
			guid = ?, headline = ?, slugline = ?, name = ?,
			description_text = ?, internal_note = ?,
			planning_date = ?, recurrence_id = ?, planning_recurrence_id = ?,
			related_events = ?, coverages = ?, state = ?, expired = ?,
			lock_user = ?, lock_session = ?, lock_time = ?, lock_action = ?,
			flags = ?, planning_schedule = ?, updates_schedule = ?, max_scheduled = ?,
			original_creator = ?, version_creator = ?, firstcreated = ?, versioncreated = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating planning %s: %w", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating planning %s: %w", item.ID, err)
	}
	if affected == 0 {
		return model.NotFound("planning", item.ID)
	}

	if err := syncEventLinks(ctx, tx, item); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPlannings retrieves planning items matching the provided filter.
func (s *SQLiteStore) GetPlannings(ctx context.Context, filter PlanningFilter) ([]model.Planning, error) {
	where, args := planningConditions(filter)

	query := "SELECT " + planningColumns + " FROM planning"
	if where != "" {
		query += " WHERE " + where
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY planning_date %s, id ASC", direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying planning items: %w", err)
	}
	defer rows.Close()

	var items []model.Planning
	for rows.Next() {
		item, err := scanPlanning(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetPlanningsForEvent retrieves planning items linked to the event.
func (s *SQLiteStore) GetPlanningsForEvent(ctx context.Context, eventID string) ([]model.Planning, error) {
	return s.GetPlannings(ctx, PlanningFilter{EventID: &eventID})
}

// DeletePlannings removes all planning items matching the filter.
func (s *SQLiteStore) DeletePlannings(ctx context.Context, filter PlanningFilter) error {
	where, args := planningConditions(filter)

	query := "DELETE FROM planning"
	if where != "" {
		query += " WHERE " + where
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting planning items: %w", err)
	}
	return nil
}

// syncEventLinks rewrites the planning_event_links rows for one item.
func syncEventLinks(ctx context.Context, tx *sqlx.Tx, item model.Planning) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM planning_event_links WHERE planning_id = ?", item.ID); err != nil {
		return fmt.Errorf("clearing event links for planning %s: %w", item.ID, err)
	}

	for _, link := range item.RelatedEvents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO planning_event_links (planning_id, event_id, link_type, recurrence_id)
			VALUES (?, ?, ?, ?)`,
			item.ID, link.ID, string(link.LinkType), link.RecurrenceID,
		)
		if err != nil {
			return fmt.Errorf("linking planning %s to event %s: %w", item.ID, link.ID, err)
		}
	}

	return nil
}

// planningConditions builds the WHERE clause for a PlanningFilter.
func planningConditions(filter PlanningFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.PlanningRecurrenceID != nil {
		conditions = append(conditions, "planning_recurrence_id = ?")
		args = append(args, *filter.PlanningRecurrenceID)
	}
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
	if filter.EventID != nil {
		conditions = append(conditions,
			"id IN (SELECT planning_id FROM planning_event_links WHERE event_id = ?)")
		args = append(args, *filter.EventID)
	}
	if filter.ExcludePrimaryLinked {
		conditions = append(conditions,
			"id NOT IN (SELECT planning_id FROM planning_event_links WHERE link_type = 'primary')")
	}
	if filter.ScheduleBefore != nil {
		conditions = append(conditions, "planning_date <= ?")
		conditions = append(conditions, "(max_scheduled IS NULL OR max_scheduled <= ?)")
		args = append(args, filter.ScheduleBefore.UTC(), filter.ScheduleBefore.UTC())
	}
	if filter.NotExpired {
		conditions = append(conditions, "expired = 0")
	}

	return strings.Join(conditions, " AND "), args
}

// planningArgs flattens a planning item into the insert argument list.
func planningArgs(item model.Planning) ([]interface{}, error) {
	related, err := json.Marshal(item.RelatedEvents)
	if err != nil {
		return nil, fmt.Errorf("marshaling related events for planning %s: %w", item.ID, err)
	}
	coverages, err := json.Marshal(item.Coverages)
	if err != nil {
		return nil, fmt.Errorf("marshaling coverages for planning %s: %w", item.ID, err)
	}
	flags, err := json.Marshal(item.Flags)
	if err != nil {
		return nil, fmt.Errorf("marshaling flags for planning %s: %w", item.ID, err)
	}
	schedule, err := json.Marshal(item.PlanningSchedule)
	if err != nil {
		return nil, fmt.Errorf("marshaling planning schedule for planning %s: %w", item.ID, err)
	}
	updatesSchedule, err := json.Marshal(item.UpdatesSchedule)
	if err != nil {
		return nil, fmt.Errorf("marshaling updates schedule for planning %s: %w", item.ID, err)
	}

	return []interface{}{
		item.ID, item.GUID, item.Headline, item.Slugline, item.Name,
		item.DescriptionText, item.InternalNote,
		item.PlanningDate.UTC(), item.RecurrenceID, item.PlanningRecurrenceID,
		string(related), string(coverages), string(item.State), boolToInt(item.Expired),
		item.LockUser, item.LockSession, nullableTime(item.LockTime), item.LockAction,
		string(flags), string(schedule), string(updatesSchedule),
		nullableTime(maxScheduled(item)),
		item.OriginalCreator, item.VersionCreator,
		nullableTime(item.FirstCreated), nullableTime(item.VersionCreated),
	}, nil
}

// maxScheduled derives the latest scheduled instant across the item's
// schedule caches; used by the expired-item query so that items with a
// future coverage never expire early.
func maxScheduled(item model.Planning) *time.Time {
	var max *time.Time
	for _, entries := range [][]model.ScheduleEntry{item.PlanningSchedule, item.UpdatesSchedule} {
		for _, entry := range entries {
			if entry.Scheduled == nil {
				continue
			}
			if max == nil || entry.Scheduled.After(*max) {
				t := entry.Scheduled.UTC()
				max = &t
			}
		}
	}
	return max
}

// scanPlanning reads one planning row back into the typed model.
func scanPlanning(row rowScanner) (model.Planning, error) {
	var (
		item            model.Planning
		state           string
		expired         int
		related         string
		coverages       string
		flags           string
		schedule        string
		updatesSchedule string
		maxSched        sql.NullTime
		lockTime        sql.NullTime
		firstMade       sql.NullTime
		verCreated      sql.NullTime
	)

	err := row.Scan(
		&item.ID, &item.GUID, &item.Headline, &item.Slugline, &item.Name,
		&item.DescriptionText, &item.InternalNote,
		&item.PlanningDate, &item.RecurrenceID, &item.PlanningRecurrenceID,
		&related, &coverages, &state, &expired,
		&item.LockUser, &item.LockSession, &lockTime, &item.LockAction,
		&flags, &schedule, &updatesSchedule, &maxSched,
		&item.OriginalCreator, &item.VersionCreator, &firstMade, &verCreated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Planning{}, err
		}
		return model.Planning{}, fmt.Errorf("scanning planning row: %w", err)
	}

	item.State = model.WorkflowState(state)
	item.Expired = expired != 0
	item.PlanningDate = item.PlanningDate.UTC()
	item.LockTime = timePtr(lockTime)
	item.FirstCreated = timePtr(firstMade)
	item.VersionCreated = timePtr(verCreated)

	if related != "" {
		if err := json.Unmarshal([]byte(related), &item.RelatedEvents); err != nil {
			return model.Planning{}, fmt.Errorf("unmarshaling related events: %w", err)
		}
	}
	if coverages != "" {
		if err := json.Unmarshal([]byte(coverages), &item.Coverages); err != nil {
			return model.Planning{}, fmt.Errorf("unmarshaling coverages: %w", err)
		}
	}
	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &item.Flags); err != nil {
			return model.Planning{}, fmt.Errorf("unmarshaling flags: %w", err)
		}
	}
	if schedule != "" {
		if err := json.Unmarshal([]byte(schedule), &item.PlanningSchedule); err != nil {
			return model.Planning{}, fmt.Errorf("unmarshaling planning schedule: %w", err)
		}
	}
	if updatesSchedule != "" {
		if err := json.Unmarshal([]byte(updatesSchedule), &item.UpdatesSchedule); err != nil {
			return model.Planning{}, fmt.Errorf("unmarshaling updates schedule: %w", err)
		}
	}

	return item, nil
}
