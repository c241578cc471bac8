package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func newReportFixture(t *testing.T, subjects []models.Subject, entries ...models.TimetableEntry) (*ReportService, *versionStoreStub) {
	t.Helper()
	versions := newVersionStoreStub()
	store := newEntryStoreStub()
	require.NoError(t, versions.CreateActive(context.Background(), &models.TimetableVersion{ID: "v1", Name: "test"}))
	store.seed(entries...)

	svc := NewReportService(
		versions,
		store,
		subjectCatalogStub{subjects: subjects},
		catalogCounterStub{counts: models.CatalogCounts{
			Branches: 1, YearSections: 1, Faculty: 1, Classrooms: 2, LabRooms: 1, Subjects: len(subjects),
		}},
		models.DefaultPolicy(),
		zap.NewNop(),
	)
	return svc, versions
}

func TestReportValidateFlagsUnallocatedSubjects(t *testing.T) {
	subject := testSubject("s1", "CD")
	subject.LecturesPerWeek = 4

	entries := []models.TimetableEntry{
		academicEntry("e1", "v1", "sec-1", models.Monday, 2, models.SessionLecture),
	}
	entries[0].SubjectID = strPtr("s1")

	svc, _ := newReportFixture(t, []models.Subject{subject}, entries...)

	report, err := svc.Validate(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Zero(t, report.ConflictCount)
	require.Len(t, report.Unallocated, 1)
	assert.Equal(t, "CD", report.Unallocated[0].SubjectCode)
	assert.Equal(t, 4, report.Unallocated[0].Required)
	assert.Equal(t, 1, report.Unallocated[0].Scheduled)
	assert.InDelta(t, 0.25, report.Unallocated[0].Ratio, 1e-9)
}

func TestReportValidateGroupsConflicts(t *testing.T) {
	subject := testSubject("s1", "CD")
	subject.LecturesPerWeek = 2

	first := academicEntry("e1", "v1", "sec-1", models.Monday, 2, models.SessionLecture)
	second := academicEntry("e2", "v1", "sec-1", models.Monday, 2, models.SessionLecture)
	second.FacultyID = strPtr("fac-2")
	second.ClassroomID = strPtr("room-2")

	svc, _ := newReportFixture(t, []models.Subject{subject}, first, second)

	report, err := svc.Validate(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.ConflictCount)
	assert.Len(t, report.Conflicts[models.ConflictCohort], 1)
}

func TestReportStatistics(t *testing.T) {
	entries := []models.TimetableEntry{
		academicEntry("e1", "v1", "sec-1", models.Monday, 2, models.SessionLecture),
		academicEntry("e2", "v1", "sec-1", models.Tuesday, 2, models.SessionTutorial),
		labEntry("l1", "sec-1", models.Wednesday, 3),
		labEntry("l2", "sec-1", models.Wednesday, 4),
		{ID: "c1", VersionID: "v1", DayOfWeek: models.Thursday, Period: 7, BranchID: "branch-1", YearSectionID: "sec-1", SessionType: models.SessionClub},
	}
	svc, _ := newReportFixture(t, nil, entries...)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalEntries)
	assert.Equal(t, 1, stats.EntriesByType[models.SessionLecture])
	assert.Equal(t, 1, stats.EntriesByType[models.SessionTutorial])
	assert.Equal(t, 2, stats.EntriesByType[models.SessionLab])
	assert.Equal(t, 1, stats.EntriesByType[models.SessionClub])

	// One faculty occupies 4 slots out of 42.
	assert.Equal(t, 4, stats.FacultyUsage.UsedSlots)
	assert.InDelta(t, 4.0/42.0, stats.FacultyUsage.Utilization, 1e-9)

	// Two classrooms, 2 used slots out of 84 (clubs do not count).
	assert.Equal(t, 2, stats.ClassroomUsage.UsedSlots)
	assert.InDelta(t, 2.0/84.0, stats.ClassroomUsage.Utilization, 1e-9)

	assert.Equal(t, 2, stats.LabRoomUsage.UsedSlots)
}

func TestReportStatisticsWithoutActiveVersion(t *testing.T) {
	svc := NewReportService(
		newVersionStoreStub(),
		newEntryStoreStub(),
		subjectCatalogStub{},
		catalogCounterStub{counts: models.CatalogCounts{Faculty: 3}},
		models.DefaultPolicy(),
		zap.NewNop(),
	)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats.VersionID)
	assert.Equal(t, 3, stats.Faculty)
	assert.Zero(t, stats.TotalEntries)
}

func TestReportValidateRequiresActiveVersion(t *testing.T) {
	svc := NewReportService(
		newVersionStoreStub(),
		newEntryStoreStub(),
		subjectCatalogStub{},
		catalogCounterStub{},
		models.DefaultPolicy(),
		zap.NewNop(),
	)

	_, err := svc.Validate(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveVersion.Code, appErrors.FromError(err).Code)
}
