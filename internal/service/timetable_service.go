package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

const timetableCacheKey = "timetable:active"

type timetableVersionStore interface {
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
}

type timetableEntryStore interface {
	ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error)
	ListByCohort(ctx context.Context, versionID, yearSectionID string) ([]models.TimetableEntry, error)
}

type timetableSectionResolver interface {
	FindByCohort(ctx context.Context, branchCode string, year int, section string) (*models.YearSection, error)
}

// TimetableService serves read queries over the active version, with the
// grouped week cached in Redis and invalidated on every write.
type TimetableService struct {
	versions timetableVersionStore
	entries  timetableEntryStore
	sections timetableSectionResolver
	cache    *CacheService
	logger   *zap.Logger
}

// NewTimetableService wires the read-side dependencies.
func NewTimetableService(
	versions timetableVersionStore,
	entries timetableEntryStore,
	sections timetableSectionResolver,
	cache *CacheService,
	logger *zap.Logger,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		versions: versions,
		entries:  entries,
		sections: sections,
		cache:    cache,
		logger:   logger,
	}
}

// GetActive returns the active version's entries grouped by day.
func (s *TimetableService) GetActive(ctx context.Context) (*dto.TimetableResponse, error) {
	if s.cache != nil {
		var cached dto.TimetableResponse
		if s.cache.Get(ctx, timetableCacheKey, &cached) {
			return &cached, nil
		}
	}

	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version entries")
	}

	byDay := make(map[models.DayOfWeek][]models.TimetableEntry)
	for _, entry := range entries {
		byDay[entry.DayOfWeek] = append(byDay[entry.DayOfWeek], entry)
	}

	days := make([]dto.DaySchedule, 0, len(models.Days))
	for _, day := range models.Days {
		dayEntries := byDay[day]
		sort.Slice(dayEntries, func(i, j int) bool {
			if dayEntries[i].Period != dayEntries[j].Period {
				return dayEntries[i].Period < dayEntries[j].Period
			}
			return dayEntries[i].YearSectionID < dayEntries[j].YearSectionID
		})
		days = append(days, dto.DaySchedule{Day: day, Entries: dayEntries})
	}

	resp := &dto.TimetableResponse{
		VersionID:   version.ID,
		VersionName: version.Name,
		GeneratedAt: version.CreatedAt,
		Days:        days,
	}
	if s.cache != nil {
		s.cache.Set(ctx, timetableCacheKey, resp)
	}
	return resp, nil
}

// GetCohort returns one cohort's entries ordered by (day, period).
func (s *TimetableService) GetCohort(ctx context.Context, branch string, year int, section string) (*dto.CohortTimetableResponse, error) {
	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}
	ys, err := s.sections.FindByCohort(ctx, branch, year, section)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("cohort %s/%d/%s not found", branch, year, section))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve cohort")
	}
	entries, err := s.entries.ListByCohort(ctx, version.ID, ys.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort entries")
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DayOfWeek != entries[j].DayOfWeek {
			return entries[i].DayOfWeek.Index() < entries[j].DayOfWeek.Index()
		}
		return entries[i].Period < entries[j].Period
	})
	return &dto.CohortTimetableResponse{
		VersionID: version.ID,
		Branch:    branch,
		Year:      year,
		Section:   section,
		Entries:   entries,
	}, nil
}

// InvalidateTimetable drops the cached grouped week. Called after any
// mutation of the active version.
func (s *TimetableService) InvalidateTimetable(ctx context.Context) {
	if s.cache != nil {
		s.cache.Delete(ctx, timetableCacheKey)
	}
}

func (s *TimetableService) activeVersion(ctx context.Context) (*models.TimetableVersion, error) {
	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveVersion, "")
	}
	return version, nil
}
