package service

import (
	"context"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

// CatalogService exposes read-only catalogue listings.
type CatalogService struct {
	branches   exportBranchCatalog
	faculty    exportFacultyCatalog
	classrooms exportClassroomCatalog
	labrooms   exportLabRoomCatalog
	subjects   reportSubjectCatalog
}

// NewCatalogService wires the catalogue repositories.
func NewCatalogService(
	branches exportBranchCatalog,
	faculty exportFacultyCatalog,
	classrooms exportClassroomCatalog,
	labrooms exportLabRoomCatalog,
	subjects reportSubjectCatalog,
) *CatalogService {
	return &CatalogService{
		branches:   branches,
		faculty:    faculty,
		classrooms: classrooms,
		labrooms:   labrooms,
		subjects:   subjects,
	}
}

// ListBranches returns all branches.
func (s *CatalogService) ListBranches(ctx context.Context) ([]models.Branch, error) {
	branches, err := s.branches.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list branches")
	}
	return branches, nil
}

// ListFaculty returns active faculty.
func (s *CatalogService) ListFaculty(ctx context.Context) ([]models.Faculty, error) {
	faculty, err := s.faculty.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	return faculty, nil
}

// ListClassrooms returns active classrooms.
func (s *CatalogService) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	rooms, err := s.classrooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return rooms, nil
}

// ListLabRooms returns active lab rooms.
func (s *CatalogService) ListLabRooms(ctx context.Context) ([]models.LabRoom, error) {
	rooms, err := s.labrooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lab rooms")
	}
	return rooms, nil
}

// ListSubjects returns active subjects.
func (s *CatalogService) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}
