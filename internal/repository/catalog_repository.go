package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// CatalogRepository answers aggregate queries across the entity catalogue.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalogue repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ActiveCounts counts the active entities feeding statistics.
func (r *CatalogRepository) ActiveCounts(ctx context.Context) (models.CatalogCounts, error) {
	var counts models.CatalogCounts
	queries := []struct {
		dest  *int
		query string
	}{
		{&counts.Branches, `SELECT COUNT(*) FROM branches`},
		{&counts.YearSections, `SELECT COUNT(*) FROM year_sections`},
		{&counts.Faculty, `SELECT COUNT(*) FROM faculty WHERE active = TRUE`},
		{&counts.Classrooms, `SELECT COUNT(*) FROM classrooms WHERE active = TRUE`},
		{&counts.LabRooms, `SELECT COUNT(*) FROM lab_rooms WHERE active = TRUE`},
		{&counts.Subjects, `SELECT COUNT(*) FROM subjects WHERE active = TRUE`},
	}
	for _, q := range queries {
		if err := r.db.GetContext(ctx, q.dest, q.query); err != nil {
			return models.CatalogCounts{}, fmt.Errorf("count catalogue entities: %w", err)
		}
	}
	return counts, nil
}
