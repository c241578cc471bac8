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

// FacultyRepository provides persistence for faculty members.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns active faculty ordered by name.
func (r *FacultyRepository) List(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, employee_id, full_name, department, email, active, created_at FROM faculty WHERE active = TRUE ORDER BY full_name ASC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// FindByEmployeeID loads a faculty member by the unique employee id.
func (r *FacultyRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Faculty, error) {
	const query = `SELECT id, employee_id, full_name, department, email, active, created_at FROM faculty WHERE employee_id = $1`
	var fac models.Faculty
	if err := r.db.GetContext(ctx, &fac, query, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find faculty: %w", err)
	}
	return &fac, nil
}

// Create stores a new faculty member.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	const query = `INSERT INTO faculty (id, employee_id, full_name, department, email, active, created_at) VALUES (:id, :employee_id, :full_name, :department, :email, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}
