package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type versionRepository interface {
	CreateActive(ctx context.Context, version *models.TimetableVersion) error
	FindByID(ctx context.Context, id string) (*models.TimetableVersion, error)
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListWithCounts(ctx context.Context) ([]models.VersionSummary, error)
	DeleteAll(ctx context.Context) error
}

// VersionService owns the timetable version lifecycle. Creation and
// activation are two-step writes inside one transaction so at most one
// version is ever active.
type VersionService struct {
	repo   versionRepository
	logger *zap.Logger
}

// NewVersionService constructs the service.
func NewVersionService(repo versionRepository, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{repo: repo, logger: logger}
}

// Create stores a new version and makes it the active one.
func (s *VersionService) Create(ctx context.Context, name string, source models.VersionSource) (*models.TimetableVersion, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version name is required")
	}
	version := &models.TimetableVersion{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateActive(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}
	return version, nil
}

// GetActive returns the uniquely active version or a typed error.
func (s *VersionService) GetActive(ctx context.Context) (*models.TimetableVersion, error) {
	version, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveVersion, "")
	}
	return version, nil
}

// Activate switches the active flag to the given version. Idempotent.
func (s *VersionService) Activate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	if err := s.repo.Activate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate version")
	}
	return nil
}

// Delete removes a version and cascades to its entries. Deleting the
// active version leaves no version active until an explicit activation.
func (s *VersionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete version")
	}
	return nil
}

// List returns every version with its entry count, newest first.
func (s *VersionService) List(ctx context.Context) ([]models.VersionSummary, error) {
	versions, err := s.repo.ListWithCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// Clear removes every version and entry. Used by the destructive reset
// endpoint.
func (s *VersionService) Clear(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear versions")
	}
	s.logger.Warn("all timetable versions removed")
	return nil
}
