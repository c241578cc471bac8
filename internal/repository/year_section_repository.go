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

// YearSectionRepository provides persistence for cohorts.
type YearSectionRepository struct {
	db *sqlx.DB
}

// NewYearSectionRepository creates a new year-section repository.
func NewYearSectionRepository(db *sqlx.DB) *YearSectionRepository {
	return &YearSectionRepository{db: db}
}

// List returns every cohort ordered by branch, year and section.
func (r *YearSectionRepository) List(ctx context.Context) ([]models.YearSection, error) {
	const query = `SELECT id, branch_id, year, section, created_at FROM year_sections ORDER BY branch_id ASC, year ASC, section ASC`
	var sections []models.YearSection
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list year sections: %w", err)
	}
	return sections, nil
}

// FindByBranchYearSection loads a cohort by its owning branch id.
func (r *YearSectionRepository) FindByBranchYearSection(ctx context.Context, branchID string, year int, section string) (*models.YearSection, error) {
	const query = `SELECT id, branch_id, year, section, created_at FROM year_sections WHERE branch_id = $1 AND year = $2 AND section = $3`
	var ys models.YearSection
	if err := r.db.GetContext(ctx, &ys, query, branchID, year, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find year section: %w", err)
	}
	return &ys, nil
}

// FindByCohort resolves a cohort from the public (branch code, year,
// section) triple.
func (r *YearSectionRepository) FindByCohort(ctx context.Context, branchCode string, year int, section string) (*models.YearSection, error) {
	const query = `SELECT ys.id, ys.branch_id, ys.year, ys.section, ys.created_at
FROM year_sections ys JOIN branches b ON b.id = ys.branch_id
WHERE b.code = $1 AND ys.year = $2 AND ys.section = $3`
	var ys models.YearSection
	if err := r.db.GetContext(ctx, &ys, query, branchCode, year, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find cohort: %w", err)
	}
	return &ys, nil
}

// Create stores a new cohort.
func (r *YearSectionRepository) Create(ctx context.Context, section *models.YearSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	const query = `INSERT INTO year_sections (id, branch_id, year, section, created_at) VALUES (:id, :branch_id, :year, :section, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create year section: %w", err)
	}
	return nil
}
