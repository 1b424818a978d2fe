package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/newsroom-planning/internal/model"
)

const assignmentColumns = `
	id, planning_item, coverage_item, scheduled_update_id,
	assigned_to, planning, priority, name, description_text,
	lock_user, lock_session, lock_time, lock_action,
	firstcreated, versioncreated`

// CreateAssignment inserts a single assignment.
func (s *SQLiteStore) CreateAssignment(ctx context.Context, a model.Assignment) error {
	args, err := assignmentArgs(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)`, args...)
	if err != nil {
		return fmt.Errorf("inserting assignment %s: %w", a.ID, err)
	}
	return nil
}

// GetAssignmentByID retrieves a single assignment by its ID.
func (s *SQLiteStore) GetAssignmentByID(ctx context.Context, id string) (*model.Assignment, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)

	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("assignment", id)
		}
		return nil, fmt.Errorf("getting assignment %s: %w", id, err)
	}

	return &a, nil
}

// UpdateAssignment replaces the stored document for the assignment's id.
func (s *SQLiteStore) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	args, err := assignmentArgs(a)
	if err != nil {
		return err
	}
	args = append(args[1:], a.ID)

	res, err := s.db.ExecContext(ctx, `
		UPDATE assignments SET
			planning_item = ?, coverage_item = ?, scheduled_update_id = ?,
			assigned_to = ?, planning = ?, priority = ?, name = ?, description_text = ?,
			lock_user = ?, lock_session = ?, lock_time = ?, lock_action = ?,
			firstcreated = ?, versioncreated = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating assignment %s: %w", a.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating assignment %s: %w", a.ID, err)
	}
	if affected == 0 {
		return model.NotFound("assignment", a.ID)
	}

	return nil
}

// DeleteAssignment removes an assignment by its ID.
func (s *SQLiteStore) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting assignment %s: %w", id, err)
	}
	return nil
}

func assignmentArgs(a model.Assignment) ([]interface{}, error) {
	assignedTo, err := json.Marshal(a.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("marshaling assigned_to for assignment %s: %w", a.ID, err)
	}
	planning, err := json.Marshal(a.Planning)
	if err != nil {
		return nil, fmt.Errorf("marshaling planning details for assignment %s: %w", a.ID, err)
	}

	return []interface{}{
		a.ID, a.PlanningItem, a.CoverageItem, a.ScheduledUpdateID,
		string(assignedTo), string(planning), a.Priority, a.Name, a.DescriptionText,
		a.LockUser, a.LockSession, nullableTime(a.LockTime), a.LockAction,
		nullableTime(a.FirstCreated), nullableTime(a.VersionCreated),
	}, nil
}

func scanAssignment(row rowScanner) (model.Assignment, error) {
	var (
		a          model.Assignment
		assignedTo string
		planning   string
		lockTime   sql.NullTime
		firstMade  sql.NullTime
		verCreated sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.PlanningItem, &a.CoverageItem, &a.ScheduledUpdateID,
		&assignedTo, &planning, &a.Priority, &a.Name, &a.DescriptionText,
		&a.LockUser, &a.LockSession, &lockTime, &a.LockAction,
		&firstMade, &verCreated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, err
		}
		return model.Assignment{}, fmt.Errorf("scanning assignment row: %w", err)
	}

	a.LockTime = timePtr(lockTime)
	a.FirstCreated = timePtr(firstMade)
	a.VersionCreated = timePtr(verCreated)

	if assignedTo != "" {
		if err := json.Unmarshal([]byte(assignedTo), &a.AssignedTo); err != nil {
			return model.Assignment{}, fmt.Errorf("unmarshaling assigned_to: %w", err)
		}
	}
	if planning != "" {
		if err := json.Unmarshal([]byte(planning), &a.Planning); err != nil {
			return model.Assignment{}, fmt.Errorf("unmarshaling planning details: %w", err)
		}
	}

	return a, nil
}
