package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const entryColumns = `id, version_id, day_of_week, period_number, branch_id, year_section_id, subject_id, faculty_id, classroom_id, labroom_id, session_type, locked, created_at`

const entryInsert = `INSERT INTO timetable_entries (id, version_id, day_of_week, period_number, branch_id, year_section_id, subject_id, faculty_id, classroom_id, labroom_id, session_type, locked, created_at)
VALUES (:id, :version_id, :day_of_week, :period_number, :branch_id, :year_section_id, :subject_id, :faculty_id, :classroom_id, :labroom_id, :session_type, :locked, :created_at)`

// EntryRepository provides persistence for timetable entries. Batched
// mutations run inside one transaction so edits either fully commit or
// leave the version untouched.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new entry repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// ListByVersion returns all entries of a version ordered by (day, period).
func (r *EntryRepository) ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_entries WHERE version_id = $1 ORDER BY CASE day_of_week WHEN 'MONDAY' THEN 1 WHEN 'TUESDAY' THEN 2 WHEN 'WEDNESDAY' THEN 3 WHEN 'THURSDAY' THEN 4 WHEN 'FRIDAY' THEN 5 WHEN 'SATURDAY' THEN 6 END, period_number ASC`, entryColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, versionID); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListByCohort returns one cohort's entries within a version.
func (r *EntryRepository) ListByCohort(ctx context.Context, versionID, yearSectionID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_entries WHERE version_id = $1 AND year_section_id = $2 ORDER BY day_of_week ASC, period_number ASC`, entryColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, versionID, yearSectionID); err != nil {
		return nil, fmt.Errorf("list cohort entries: %w", err)
	}
	return entries, nil
}

// FindByID loads an entry by id.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_entries WHERE id = $1`, entryColumns)
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return &entry, nil
}

// Insert stores the given entries atomically.
func (r *EntryRepository) Insert(ctx context.Context, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert entries: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert entries: %w", err)
	}
	return nil
}

// BulkInsert is Insert under a name the generator shares; placer runs
// commit their whole batch in one transaction.
func (r *EntryRepository) BulkInsert(ctx context.Context, entries []models.TimetableEntry) error {
	return r.Insert(ctx, entries)
}

func (r *EntryRepository) insertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	now := time.Now().UTC()
	for i := range entries {
		payload := entries[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, entryInsert, &payload); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		entries[i] = payload
	}
	return nil
}

// UpdateSlots relocates the given entries atomically.
func (r *EntryRepository) UpdateSlots(ctx context.Context, updates []models.EntrySlotUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update slots: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, update := range updates {
		var result sql.Result
		result, err = tx.ExecContext(ctx, `UPDATE timetable_entries SET day_of_week = $1, period_number = $2 WHERE id = $3`, update.Day, update.Period, update.EntryID)
		if err != nil {
			return fmt.Errorf("update entry slot: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			err = sql.ErrNoRows
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update slots: %w", err)
	}
	return nil
}

// SetLocked flips the lock flag on an entry.
func (r *EntryRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetable_entries SET locked = $1 WHERE id = $2`, locked, id)
	if err != nil {
		return fmt.Errorf("set entry lock: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUnlocked removes every non-locked entry of the version.
func (r *EntryRepository) DeleteUnlocked(ctx context.Context, versionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetable_entries WHERE version_id = $1 AND locked = FALSE`, versionID); err != nil {
		return fmt.Errorf("delete unlocked entries: %w", err)
	}
	return nil
}
