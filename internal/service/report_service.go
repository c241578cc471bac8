package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type reportVersionStore interface {
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
}

type reportEntryStore interface {
	ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error)
}

type reportSubjectCatalog interface {
	ListActive(ctx context.Context) ([]models.Subject, error)
}

type reportCatalogCounter interface {
	ActiveCounts(ctx context.Context) (models.CatalogCounts, error)
}

// ReportService produces validation reports and utilization statistics for
// the active timetable version.
type ReportService struct {
	versions reportVersionStore
	entries  reportEntryStore
	subjects reportSubjectCatalog
	catalog  reportCatalogCounter
	policy   models.SchedulingPolicy
	logger   *zap.Logger
}

// NewReportService wires the reporting dependencies.
func NewReportService(
	versions reportVersionStore,
	entries reportEntryStore,
	subjects reportSubjectCatalog,
	catalog reportCatalogCounter,
	policy models.SchedulingPolicy,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		versions: versions,
		entries:  entries,
		subjects: subjects,
		catalog:  catalog,
		policy:   policy,
		logger:   logger,
	}
}

// Validate sweeps the active version and reports conflicts grouped by kind
// together with subjects whose allocation ratio is below one.
func (s *ReportService) Validate(ctx context.Context) (*dto.ValidationReport, error) {
	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version entries")
	}
	subjects, err := s.subjects.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	conflicts := NewConstraintValidator(s.policy, entries).ValidateSchedule()
	grouped := make(map[models.ConflictKind][]models.ScheduleConflict)
	for _, conflict := range conflicts {
		grouped[conflict.Kind] = append(grouped[conflict.Kind], conflict)
	}

	scheduled := make(map[string]int)
	for _, entry := range entries {
		if entry.SubjectID != nil && entry.SessionType.Academic() {
			scheduled[*entry.SubjectID]++
		}
	}

	unallocated := make([]dto.SubjectAllocation, 0)
	for _, subject := range subjects {
		required := subject.LecturesPerWeek + subject.TutorialsPerWeek + subject.LabPeriodsPerWeek + subject.SeminarPeriodsPerWeek
		if required == 0 {
			continue
		}
		got := scheduled[subject.ID]
		if got >= required {
			continue
		}
		unallocated = append(unallocated, dto.SubjectAllocation{
			SubjectID:   subject.ID,
			SubjectCode: subject.Code,
			Required:    required,
			Scheduled:   got,
			Ratio:       float64(got) / float64(required),
		})
	}
	sort.Slice(unallocated, func(i, j int) bool {
		return unallocated[i].SubjectCode < unallocated[j].SubjectCode
	})

	return &dto.ValidationReport{
		VersionID:     version.ID,
		Valid:         len(conflicts) == 0,
		ConflictCount: len(conflicts),
		Conflicts:     grouped,
		Unallocated:   unallocated,
	}, nil
}

// Statistics counts entries by session type and computes utilization per
// resource class, capped at 100%.
func (s *ReportService) Statistics(ctx context.Context) (*dto.StatisticsResponse, error) {
	counts, err := s.catalog.ActiveCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count catalogue entities")
	}

	resp := &dto.StatisticsResponse{
		EntriesByType: make(map[models.SessionType]int),
		Branches:      counts.Branches,
		Cohorts:       counts.YearSections,
		Faculty:       counts.Faculty,
		Classrooms:    counts.Classrooms,
		LabRooms:      counts.LabRooms,
		Subjects:      counts.Subjects,
	}

	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		// No active timetable yet; entity counts alone are still useful.
		return resp, nil
	}

	entries, err := s.entries.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version entries")
	}

	var facultySlots, classroomSlots, labroomSlots int
	for _, entry := range entries {
		resp.EntriesByType[entry.SessionType]++
		if entry.FacultyID != nil {
			facultySlots++
		}
		if entry.ClassroomID != nil && entry.SessionType != models.SessionClub && entry.SessionType != models.SessionBreak {
			classroomSlots++
		}
		if entry.LabRoomID != nil {
			labroomSlots++
		}
	}
	resp.VersionID = version.ID
	resp.TotalEntries = len(entries)
	resp.FacultyUsage = utilization(counts.Faculty, facultySlots)
	resp.ClassroomUsage = utilization(counts.Classrooms, classroomSlots)
	resp.LabRoomUsage = utilization(counts.LabRooms, labroomSlots)
	return resp, nil
}

func (s *ReportService) activeVersion(ctx context.Context) (*models.TimetableVersion, error) {
	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveVersion, "")
	}
	return version, nil
}

func utilization(resourceCount, usedSlots int) dto.ResourceUtilization {
	result := dto.ResourceUtilization{ResourceCount: resourceCount, UsedSlots: usedSlots}
	if resourceCount == 0 {
		return result
	}
	ratio := float64(usedSlots) / float64(resourceCount*models.SlotsPerWeek)
	if ratio > 1 {
		ratio = 1
	}
	result.Utilization = ratio
	return result
}
