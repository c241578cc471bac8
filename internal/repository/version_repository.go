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

// VersionRepository provides persistence for timetable versions. Creation
// and activation are two-step writes in one transaction so the single
// active flag invariant holds at all times.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// CreateActive inserts the version as the active one, clearing every other
// active flag first.
func (r *VersionRepository) CreateActive(ctx context.Context, version *models.TimetableVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	version.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE timetable_versions SET active = FALSE WHERE active = TRUE`); err != nil {
		return fmt.Errorf("clear active versions: %w", err)
	}
	const insert = `INSERT INTO timetable_versions (id, name, active, source, created_at) VALUES (:id, :name, :active, :source, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insert, version); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create version: %w", err)
	}
	return nil
}

// FindByID loads a version by id.
func (r *VersionRepository) FindByID(ctx context.Context, id string) (*models.TimetableVersion, error) {
	const query = `SELECT id, name, active, source, created_at FROM timetable_versions WHERE id = $1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find version: %w", err)
	}
	return &version, nil
}

// FindActive returns the active version, or nil when none is active.
func (r *VersionRepository) FindActive(ctx context.Context) (*models.TimetableVersion, error) {
	const query = `SELECT id, name, active, source, created_at FROM timetable_versions WHERE active = TRUE ORDER BY created_at DESC LIMIT 1`
	var version models.TimetableVersion
	if err := r.db.GetContext(ctx, &version, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active version: %w", err)
	}
	return &version, nil
}

// Activate flips the active flag to the given version. Idempotent.
func (r *VersionRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE timetable_versions SET active = FALSE WHERE active = TRUE AND id <> $1`, id); err != nil {
		return fmt.Errorf("clear active versions: %w", err)
	}
	var result sql.Result
	if result, err = tx.ExecContext(ctx, `UPDATE timetable_versions SET active = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("activate version: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate version: %w", err)
	}
	return nil
}

// Delete removes the version and cascades to its entries.
func (r *VersionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_entries WHERE version_id = $1`, id); err != nil {
		return fmt.Errorf("delete version entries: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_versions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete version: %w", err)
	}
	return nil
}

// ListWithCounts lists versions newest-first with their entry counts.
func (r *VersionRepository) ListWithCounts(ctx context.Context) ([]models.VersionSummary, error) {
	const query = `SELECT v.id, v.name, v.active, v.source, v.created_at, COUNT(e.id) AS entry_count
FROM timetable_versions v LEFT JOIN timetable_entries e ON e.version_id = v.id
GROUP BY v.id, v.name, v.active, v.source, v.created_at
ORDER BY v.created_at DESC`
	var versions []models.VersionSummary
	if err := r.db.SelectContext(ctx, &versions, query); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// DeleteAll removes every version and entry.
func (r *VersionRepository) DeleteAll(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear versions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_versions`); err != nil {
		return fmt.Errorf("clear versions: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clear versions: %w", err)
	}
	return nil
}
