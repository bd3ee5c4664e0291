package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

var _ models.Repository[*models.ActivityRecord] = (*ActivityRepository)(nil)

// ErrActivityNotFound is returned when no live record matches.
var ErrActivityNotFound = errors.New("activity not found")

const activityColumns = `
	id, sequence, kind, task_ids, requested, processed, applied, failed, skipped, needs_review,
	error_message, started_at, finished_at, created_at, updated_at, deleted_at`

// ActivityRepository implements models.Repository[*models.ActivityRecord] for the run history.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new ActivityRepository with the given database connection
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts a new [models.ActivityRecord] with generated ID and sequence
func (r *ActivityRepository) Create(record *models.ActivityRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "activity")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	record.SetID(id)
	record.SetSequence(sequence)

	query := `
		INSERT INTO activity (
			id, sequence, kind, task_ids, requested, processed, applied, failed, skipped, needs_review,
			error_message, started_at, finished_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(record.Kind()),
		record.JoinedTaskIDs(),
		record.Requested(),
		record.Processed(),
		record.Applied(),
		record.Failed(),
		record.Skipped(),
		record.NeedsReview(),
		nullString(record.ErrorMessage()),
		record.StartedAt(),
		record.FinishedAt(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records
func (r *ActivityRepository) Get(id string) (*models.ActivityRecord, error) {
	query := `SELECT ` + activityColumns + ` FROM activity WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Update rewrites the counts and error message of an existing record
func (r *ActivityRepository) Update(record *models.ActivityRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE activity
		SET task_ids = ?, requested = ?, processed = ?, applied = ?, failed = ?, skipped = ?, needs_review = ?,
			error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		record.JoinedTaskIDs(),
		record.Requested(),
		record.Processed(),
		record.Applied(),
		record.Failed(),
		record.Skipped(),
		record.NeedsReview(),
		nullString(record.ErrorMessage()),
		record.FinishedAt(),
		now,
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return expectRow(result, record.ID())
}

// Delete soft-deletes a record by ID
func (r *ActivityRepository) Delete(id string) error {
	query := `UPDATE activity SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves records in sequence order.
//
// Supported criteria: "kind" (string or [models.ActivityKind]), "newest" (bool, reverse order)
// and "limit" (int).
func (r *ActivityRepository) List(criteria map[string]any) ([]*models.ActivityRecord, error) {
	query := `SELECT ` + activityColumns + ` FROM activity WHERE deleted_at IS NULL`
	args := []any{}

	switch kind := criteria["kind"].(type) {
	case string:
		if kind != "" {
			query += " AND kind = ?"
			args = append(args, kind)
		}
	case models.ActivityKind:
		if kind != "" {
			query += " AND kind = ?"
			args = append(args, string(kind))
		}
	}

	if newest, _ := criteria["newest"].(bool); newest {
		query += " ORDER BY sequence DESC"
	} else {
		query += " ORDER BY sequence ASC"
	}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var records []*models.ActivityRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Recent returns up to limit records, newest first.
func (r *ActivityRepository) Recent(limit int) ([]*models.ActivityRecord, error) {
	return r.List(map[string]any{"newest": true, "limit": limit})
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row in activityColumns order into a [models.ActivityRecord]
func (r *ActivityRepository) scan(row scanner) (*models.ActivityRecord, error) {
	var (
		id, kind, taskIDs  string
		sequence           int
		summary            models.ActivitySummary
		errorMessage       sql.NullString
		createdAt, updated time.Time
		deletedAt          sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &kind, &taskIDs,
		&summary.Requested, &summary.Processed, &summary.Applied, &summary.Failed, &summary.Skipped, &summary.NeedsReview,
		&errorMessage, &summary.StartedAt, &summary.FinishedAt, &createdAt, &updated, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	summary.Kind = models.ActivityKind(kind)
	summary.TaskIDs = models.SplitTaskIDs(taskIDs)

	record := models.NewActivityRecord(sequence, summary)
	record.SetID(id)
	record.SetErrorMessage(errorMessage.String)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updated)
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}
	return record, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrActivityNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
