package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func testSubject(id, code string) models.Subject {
	return models.Subject{
		ID:            id,
		Code:          code,
		Name:          code,
		BranchID:      "branch-1",
		YearSectionID: "sec-1",
		FacultyID:     "fac-1",
		ClassroomID:   strPtr("room-1"),
		LabRoomID:     strPtr("lab-1"),
		Active:        true,
	}
}

func TestBuildPlacementTasksPriorityOrder(t *testing.T) {
	first := testSubject("s1", "DSA")
	first.LecturesPerWeek = 3
	first.TutorialsPerWeek = 1
	first.LabPeriodsPerWeek = 2
	first.SeminarPeriodsPerWeek = 1

	second := testSubject("s2", "DBMS")
	second.LecturesPerWeek = 2
	second.LabPeriodsPerWeek = 2

	tasks := buildPlacementTasks([]models.Subject{first, second}, nil)
	require.Len(t, tasks, 6)

	kinds := make([]models.SessionType, 0, len(tasks))
	for _, task := range tasks {
		kinds = append(kinds, task.Kind)
	}
	assert.Equal(t, []models.SessionType{
		models.SessionLab, models.SessionLab,
		models.SessionLecture, models.SessionLecture,
		models.SessionTutorial,
		models.SessionSeminar,
	}, kinds)

	// Ties break by catalogue order.
	assert.Equal(t, "s1", tasks[0].Subject.ID)
	assert.Equal(t, "s2", tasks[1].Subject.ID)
}

func TestBuildPlacementTasksLabBlocks(t *testing.T) {
	subject := testSubject("s1", "CN")
	subject.LabPeriodsPerWeek = 4

	tasks := buildPlacementTasks([]models.Subject{subject}, nil)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.SessionLab, tasks[0].Kind)
	assert.Equal(t, 2, tasks[0].Remaining, "4 lab periods are 2 blocks")
	assert.Equal(t, 2, tasks[0].Duration)
}

func TestBuildPlacementTasksResumesFromExisting(t *testing.T) {
	subject := testSubject("s1", "OS")
	subject.LecturesPerWeek = 3
	subject.LabPeriodsPerWeek = 2

	existing := []models.TimetableEntry{
		{ID: "e1", VersionID: "v1", DayOfWeek: models.Monday, Period: 2, YearSectionID: "sec-1", SubjectID: strPtr("s1"), SessionType: models.SessionLecture},
		{ID: "e2", VersionID: "v1", DayOfWeek: models.Tuesday, Period: 3, YearSectionID: "sec-1", SubjectID: strPtr("s1"), SessionType: models.SessionLab},
		{ID: "e3", VersionID: "v1", DayOfWeek: models.Tuesday, Period: 4, YearSectionID: "sec-1", SubjectID: strPtr("s1"), SessionType: models.SessionLab},
	}

	tasks := buildPlacementTasks([]models.Subject{subject}, existing)
	require.Len(t, tasks, 1, "lab demand is already met")
	assert.Equal(t, models.SessionLecture, tasks[0].Kind)
	assert.Equal(t, 2, tasks[0].Remaining)
}

func TestBuildPlacementTasksSkipsInactiveAndZeroDemand(t *testing.T) {
	inactive := testSubject("s1", "ML")
	inactive.LecturesPerWeek = 3
	inactive.Active = false

	zero := testSubject("s2", "AI")

	tasks := buildPlacementTasks([]models.Subject{inactive, zero}, nil)
	assert.Empty(t, tasks)
}

func TestBuildPlacementTasksRoundsPartialLabBlocksUp(t *testing.T) {
	subject := testSubject("s1", "CA")
	subject.LabPeriodsPerWeek = 4

	// One stray lab period already present counts as a full block, so the
	// placer never tries to complete a half block.
	existing := []models.TimetableEntry{
		{ID: "e1", VersionID: "v1", DayOfWeek: models.Monday, Period: 3, YearSectionID: "sec-1", SubjectID: strPtr("s1"), SessionType: models.SessionLab},
	}
	tasks := buildPlacementTasks([]models.Subject{subject}, existing)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Remaining)
}
