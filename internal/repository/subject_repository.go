package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const subjectColumns = `id, code, name, branch_id, year_section_id, year, section, faculty_id, classroom_id, labroom_id,
lectures_per_week, tutorials_per_week, lab_periods_per_week, seminar_periods_per_week, active, created_at`

// SubjectRepository provides persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListActive returns active subjects in stable catalogue order. The order
// is the decomposer's tie-break, so it must not change between runs.
func (r *SubjectRepository) ListActive(ctx context.Context) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE active = TRUE ORDER BY created_at ASC, id ASC`, subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID loads a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE id = $1`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// FindByNameAndSection loads a subject scoped to one cohort.
func (r *SubjectRepository) FindByNameAndSection(ctx context.Context, name, yearSectionID string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE name = $1 AND year_section_id = $2`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, name, yearSectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find subject by name: %w", err)
	}
	return &subject, nil
}

// Create stores a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	const query = `INSERT INTO subjects (id, code, name, branch_id, year_section_id, year, section, faculty_id, classroom_id, labroom_id,
lectures_per_week, tutorials_per_week, lab_periods_per_week, seminar_periods_per_week, active, created_at)
VALUES (:id, :code, :name, :branch_id, :year_section_id, :year, :section, :faculty_id, :classroom_id, :labroom_id,
:lectures_per_week, :tutorials_per_week, :lab_periods_per_week, :seminar_periods_per_week, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject record.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	const query = `UPDATE subjects SET code = :code, name = :name, faculty_id = :faculty_id, classroom_id = :classroom_id, labroom_id = :labroom_id,
lectures_per_week = :lectures_per_week, tutorials_per_week = :tutorials_per_week, lab_periods_per_week = :lab_periods_per_week,
seminar_periods_per_week = :seminar_periods_per_week, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}
