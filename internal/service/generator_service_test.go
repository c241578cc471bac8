package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type generatorFixture struct {
	subjects subjectCatalogStub
	sections sectionCatalogStub
	versions *versionStoreStub
	entries  *entryStoreStub
	service  *GeneratorService
}

func newGeneratorFixture(subjects []models.Subject, sections []models.YearSection) *generatorFixture {
	branches := map[string]models.Branch{
		"branch-1": {ID: "branch-1", Code: "CSE", Name: "CSE"},
	}
	fixture := &generatorFixture{
		subjects: subjectCatalogStub{subjects: subjects},
		sections: sectionCatalogStub{sections: sections, branches: branches},
		versions: newVersionStoreStub(),
		entries:  newEntryStoreStub(),
	}
	fixture.service = NewGeneratorService(
		fixture.subjects,
		fixture.sections,
		fixture.versions,
		fixture.entries,
		nil,
		zap.NewNop(),
		GeneratorConfig{Timeout: 10 * time.Second, Policy: models.DefaultPolicy()},
	)
	return fixture
}

func seedPtr(v int64) *int64 { return &v }

func defaultSection() models.YearSection {
	return models.YearSection{ID: "sec-1", BranchID: "branch-1", Year: 2, Section: "A"}
}

// assertInvariants checks the testable properties that must hold for every
// generated version.
func assertInvariants(t *testing.T, entries []models.TimetableEntry, policy models.SchedulingPolicy) {
	t.Helper()

	type slot struct {
		owner  string
		day    models.DayOfWeek
		period int
	}
	seen := make(map[slot]string)
	claim := func(owner string, e models.TimetableEntry) {
		key := slot{owner: owner, day: e.DayOfWeek, period: e.Period}
		if prev, ok := seen[key]; ok {
			t.Fatalf("double booking of %s on %s P%d (entries %s and %s)", owner, e.DayOfWeek, e.Period, prev, e.ID)
		}
		seen[key] = e.ID
	}

	labsByCohortDay := make(map[string][]models.TimetableEntry)
	for _, e := range entries {
		claim("cohort:"+e.YearSectionID, e)
		if e.FacultyID != nil {
			claim("faculty:"+*e.FacultyID, e)
		}
		if e.ClassroomID != nil && e.SessionType != models.SessionClub && e.SessionType != models.SessionBreak {
			claim("classroom:"+*e.ClassroomID, e)
		}
		if e.LabRoomID != nil {
			claim("labroom:"+*e.LabRoomID, e)
		}

		if policy.PeriodReserved(e.DayOfWeek, e.Period) {
			assert.Equal(t, models.SessionClub, e.SessionType,
				"only clubs may occupy %s P%d", e.DayOfWeek, e.Period)
		}
		if e.SessionType == models.SessionLab {
			key := fmt.Sprintf("%s|%s", e.YearSectionID, e.DayOfWeek)
			labsByCohortDay[key] = append(labsByCohortDay[key], e)
		}
	}

	for key, labs := range labsByCohortDay {
		require.Len(t, labs, models.LabBlockPeriods, "one two-period block per cohort-day (%s)", key)
		sort.Slice(labs, func(i, j int) bool { return labs[i].Period < labs[j].Period })
		start, end := labs[0], labs[1]
		assert.Equal(t, start.Period+1, end.Period, "lab periods must be consecutive")
		assert.GreaterOrEqual(t, start.Period, 3, "labs never start before P3")
		assert.LessOrEqual(t, end.Period, policy.LabEndLimit(start.DayOfWeek))
		assert.Equal(t, *start.SubjectID, *end.SubjectID)
		assert.Equal(t, *start.FacultyID, *end.FacultyID)
		assert.Equal(t, *start.LabRoomID, *end.LabRoomID)
	}
}

func TestGenerateMinimalFeasible(t *testing.T) {
	subject := testSubject("s1", "MATH")
	subject.LecturesPerWeek = 3
	subject.LabRoomID = nil

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})
	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(42)})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.FailedSubjects)
	assert.Zero(t, resp.ConflictCount)
	assert.Equal(t, 3, resp.EntryCount)

	entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	slots := make(map[string]struct{})
	for _, entry := range entries {
		assert.Equal(t, models.SessionLecture, entry.SessionType)
		if entry.DayOfWeek == models.Thursday {
			assert.NotContains(t, []int{1, 7}, entry.Period)
		}
		slots[fmt.Sprintf("%s-%d", entry.DayOfWeek, entry.Period)] = struct{}{}
	}
	assert.Len(t, slots, 3, "three distinct slots")
	assertInvariants(t, entries, models.DefaultPolicy())
}

func TestGenerateLabContiguity(t *testing.T) {
	subject := testSubject("s1", "DSA-LAB")
	subject.LabPeriodsPerWeek = 2

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})
	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(7)})
	require.NoError(t, err)
	require.True(t, resp.Success)

	entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assertInvariants(t, entries, models.DefaultPolicy())
}

func TestGenerateSharedFacultyHasNoConflicts(t *testing.T) {
	// Two cohorts, one instructor, 5 lectures each: the placer must thread
	// ten placements through the shared faculty without a collision.
	first := testSubject("s1", "ALGO")
	first.LecturesPerWeek = 5
	first.LabRoomID = nil

	second := testSubject("s2", "ALGO-B")
	second.LecturesPerWeek = 5
	second.YearSectionID = "sec-2"
	second.ClassroomID = strPtr("room-2")
	second.LabRoomID = nil

	sections := []models.YearSection{
		defaultSection(),
		{ID: "sec-2", BranchID: "branch-1", Year: 2, Section: "B"},
	}
	fixture := newGeneratorFixture([]models.Subject{first, second}, sections)

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(11)})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Zero(t, resp.ConflictCount)

	entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	assertInvariants(t, entries, models.DefaultPolicy())
}

func TestGenerateSingleLabPerDayReportsFailure(t *testing.T) {
	subject := testSubject("s1", "CN-LAB")
	subject.LabPeriodsPerWeek = 4 // two blocks

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})

	// Seed an initial active version whose cohort already holds a lab
	// block on every day but Monday, leaving a single eligible day.
	version := &models.TimetableVersion{ID: "v-seed", Name: "seed", Source: models.VersionSourceManual}
	require.NoError(t, fixture.versions.CreateActive(context.Background(), version))
	blocker := 0
	for _, day := range []models.DayOfWeek{models.Tuesday, models.Wednesday, models.Thursday, models.Friday, models.Saturday} {
		for offset := 0; offset < models.LabBlockPeriods; offset++ {
			blocker++
			fixture.entries.seed(models.TimetableEntry{
				ID:            fmt.Sprintf("blk-%d", blocker),
				VersionID:     version.ID,
				DayOfWeek:     day,
				Period:        3 + offset,
				BranchID:      "branch-1",
				YearSectionID: "sec-1",
				SubjectID:     strPtr("other"),
				FacultyID:     strPtr("fac-9"),
				LabRoomID:     strPtr("lab-9"),
				SessionType:   models.SessionLab,
				Locked:        true,
			})
		}
	}

	resp, err := fixture.service.Reshuffle(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(3)})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.FailedSubjects, 1)
	assert.Equal(t, "CN-LAB", resp.FailedSubjects[0].SubjectCode)
	assert.Contains(t, resp.FailedSubjects[0].Reason, RejectSingleLabPerDay)
	assert.Equal(t, 2, resp.EntryCount, "only one block fits on the single open day")
}

func TestGenerateMissingRoomsFailFast(t *testing.T) {
	noLabRoom := testSubject("s1", "PH-LAB")
	noLabRoom.LabPeriodsPerWeek = 2
	noLabRoom.LabRoomID = nil

	noClassroom := testSubject("s2", "PH")
	noClassroom.LecturesPerWeek = 2
	noClassroom.ClassroomID = nil

	fixture := newGeneratorFixture([]models.Subject{noLabRoom, noClassroom}, []models.YearSection{defaultSection()})
	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(1)})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.FailedSubjects, 2)
	reasons := []string{resp.FailedSubjects[0].Reason, resp.FailedSubjects[1].Reason}
	assert.Contains(t, reasons, "no lab room assigned")
	assert.Contains(t, reasons, "no classroom assigned")
	assert.Zero(t, resp.EntryCount)
}

func TestGenerateClubsAndExtracurricularFill(t *testing.T) {
	subject := testSubject("s1", "SE")
	subject.LecturesPerWeek = 2
	subject.LabRoomID = nil

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})
	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{
		Seed:                seedPtr(5),
		IncludeClubs:        true,
		FillExtracurricular: true,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
	require.NoError(t, err)

	clubs := 0
	for _, entry := range entries {
		switch entry.SessionType {
		case models.SessionClub:
			clubs++
			assert.Equal(t, models.Thursday, entry.DayOfWeek)
			assert.Contains(t, []int{1, 7}, entry.Period)
			assert.Nil(t, entry.FacultyID)
		case models.SessionExtracurricular:
			assert.NotEqual(t, 1, entry.Period, "period 1 stays free for academic sessions")
		}
	}
	assert.Equal(t, 2, clubs)
	assertInvariants(t, entries, models.DefaultPolicy())

	// Every non-first period of the cohort week is now occupied.
	occupied := make(map[string]struct{})
	for _, entry := range entries {
		occupied[fmt.Sprintf("%s-%d", entry.DayOfWeek, entry.Period)] = struct{}{}
	}
	for _, day := range models.Days {
		for period := 2; period <= models.LastPeriod; period++ {
			_, ok := occupied[fmt.Sprintf("%s-%d", day, period)]
			assert.True(t, ok, "expected %s P%d to be filled", day, period)
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	build := func() []models.Subject {
		lecture := testSubject("s1", "TOC")
		lecture.LecturesPerWeek = 4
		lecture.TutorialsPerWeek = 1
		lab := testSubject("s2", "TOC-LAB")
		lab.LabPeriodsPerWeek = 2
		return []models.Subject{lecture, lab}
	}

	run := func() []string {
		fixture := newGeneratorFixture(build(), []models.YearSection{defaultSection()})
		resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(99)})
		require.NoError(t, err)
		entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
		require.NoError(t, err)
		keys := make([]string, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, fmt.Sprintf("%s|%d|%s|%s", e.DayOfWeek, e.Period, *e.SubjectID, e.SessionType))
		}
		sort.Strings(keys)
		return keys
	}

	assert.Equal(t, run(), run(), "identical seeds yield identical placements")
}

func TestReshufflePreservesLockedEntries(t *testing.T) {
	subject := testSubject("s1", "DM")
	subject.LecturesPerWeek = 3
	subject.LabRoomID = nil

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})
	resp, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(21)})
	require.NoError(t, err)

	// Pin one placement to Wednesday P4 and lock it.
	locked := models.TimetableEntry{
		ID:            "locked-1",
		VersionID:     resp.VersionID,
		DayOfWeek:     models.Wednesday,
		Period:        4,
		BranchID:      "branch-1",
		YearSectionID: "sec-1",
		SubjectID:     strPtr("s1"),
		FacultyID:     strPtr("fac-1"),
		ClassroomID:   strPtr("room-1"),
		SessionType:   models.SessionLecture,
		Locked:        true,
	}
	fixture.entries.seed(locked)

	reshuffled, err := fixture.service.Reshuffle(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(22)})
	require.NoError(t, err)
	assert.Equal(t, resp.VersionID, reshuffled.VersionID, "reshuffle reuses the active version")

	entries, err := fixture.entries.ListByVersion(context.Background(), resp.VersionID)
	require.NoError(t, err)

	var found bool
	for _, entry := range entries {
		if entry.ID == "locked-1" {
			found = true
			assert.Equal(t, models.Wednesday, entry.DayOfWeek)
			assert.Equal(t, 4, entry.Period)
			assert.True(t, entry.Locked)
		}
	}
	assert.True(t, found, "locked entry survives the reshuffle in place")
}

func TestGenerateHonorsCancellation(t *testing.T) {
	subject := testSubject("s1", "NT")
	subject.LecturesPerWeek = 3
	subject.LabRoomID = nil

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixture.service.Generate(ctx, dto.GenerateTimetableRequest{Seed: seedPtr(1)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationCanceled.Code, appErr.Code)

	// The partially built version is rolled back.
	active, err := fixture.versions.FindActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGenerateTimeoutDiscardsVersion(t *testing.T) {
	subject := testSubject("s1", "CC")
	subject.LecturesPerWeek = 3
	subject.LabRoomID = nil

	fixture := newGeneratorFixture([]models.Subject{subject}, []models.YearSection{defaultSection()})
	fixture.service.cfg.Timeout = -1 * time.Second // already elapsed

	_, err := fixture.service.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: seedPtr(1)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationTimeout.Code, appErr.Code)

	active, err := fixture.versions.FindActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestReshuffleWithoutActiveVersion(t *testing.T) {
	fixture := newGeneratorFixture(nil, nil)
	_, err := fixture.service.Reshuffle(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveVersion.Code, appErrors.FromError(err).Code)
}
