package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
)

type catalogStoreStub struct {
	branches   map[string]*models.Branch      // by code
	sections   map[string]*models.YearSection // by branchID|year|section
	faculty    map[string]*models.Faculty     // by employee id
	classrooms map[string]*models.Classroom   // by room number
	labrooms   map[string]*models.LabRoom     // by room number
	subjects   map[string]*models.Subject     // by name|yearSectionID
}

func newCatalogStoreStub() *catalogStoreStub {
	return &catalogStoreStub{
		branches:   make(map[string]*models.Branch),
		sections:   make(map[string]*models.YearSection),
		faculty:    make(map[string]*models.Faculty),
		classrooms: make(map[string]*models.Classroom),
		labrooms:   make(map[string]*models.LabRoom),
		subjects:   make(map[string]*models.Subject),
	}
}

func (s *catalogStoreStub) FindByCode(ctx context.Context, code string) (*models.Branch, error) {
	if branch, ok := s.branches[code]; ok {
		return branch, nil
	}
	return nil, sql.ErrNoRows
}

func (s *catalogStoreStub) Create(ctx context.Context, branch *models.Branch) error {
	s.branches[branch.Code] = branch
	return nil
}

type sectionStoreStub struct{ catalog *catalogStoreStub }

func sectionKey(branchID string, year int, section string) string {
	return fmt.Sprintf("%s|%d|%s", branchID, year, section)
}

func (s sectionStoreStub) FindByBranchYearSection(ctx context.Context, branchID string, year int, section string) (*models.YearSection, error) {
	if ys, ok := s.catalog.sections[sectionKey(branchID, year, section)]; ok {
		return ys, nil
	}
	return nil, sql.ErrNoRows
}

func (s sectionStoreStub) Create(ctx context.Context, ys *models.YearSection) error {
	s.catalog.sections[sectionKey(ys.BranchID, ys.Year, ys.Section)] = ys
	return nil
}

type facultyStoreStub struct{ catalog *catalogStoreStub }

func (s facultyStoreStub) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Faculty, error) {
	if fac, ok := s.catalog.faculty[employeeID]; ok {
		return fac, nil
	}
	return nil, sql.ErrNoRows
}

func (s facultyStoreStub) Create(ctx context.Context, fac *models.Faculty) error {
	s.catalog.faculty[fac.EmployeeID] = fac
	return nil
}

type classroomStoreStub struct{ catalog *catalogStoreStub }

func (s classroomStoreStub) FindByRoomNumber(ctx context.Context, roomNumber string) (*models.Classroom, error) {
	if room, ok := s.catalog.classrooms[roomNumber]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

func (s classroomStoreStub) Create(ctx context.Context, room *models.Classroom) error {
	s.catalog.classrooms[room.RoomNumber] = room
	return nil
}

type labroomStoreStub struct{ catalog *catalogStoreStub }

func (s labroomStoreStub) FindByRoomNumber(ctx context.Context, roomNumber string) (*models.LabRoom, error) {
	if room, ok := s.catalog.labrooms[roomNumber]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

func (s labroomStoreStub) Create(ctx context.Context, room *models.LabRoom) error {
	s.catalog.labrooms[room.RoomNumber] = room
	return nil
}

type subjectStoreStub struct{ catalog *catalogStoreStub }

func (s subjectStoreStub) FindByNameAndSection(ctx context.Context, name, yearSectionID string) (*models.Subject, error) {
	if subject, ok := s.catalog.subjects[name+"|"+yearSectionID]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func (s subjectStoreStub) Create(ctx context.Context, subject *models.Subject) error {
	s.catalog.subjects[subject.Name+"|"+subject.YearSectionID] = subject
	return nil
}

func (s subjectStoreStub) Update(ctx context.Context, subject *models.Subject) error {
	s.catalog.subjects[subject.Name+"|"+subject.YearSectionID] = subject
	return nil
}

func newIngestFixture() (*IngestService, *catalogStoreStub) {
	catalog := newCatalogStoreStub()
	svc := NewIngestService(
		catalog,
		sectionStoreStub{catalog: catalog},
		facultyStoreStub{catalog: catalog},
		classroomStoreStub{catalog: catalog},
		labroomStoreStub{catalog: catalog},
		subjectStoreStub{catalog: catalog},
		zap.NewNop(),
	)
	return svc, catalog
}

func TestIngestMasterCreatesCatalogue(t *testing.T) {
	svc, catalog := newIngestFixture()

	report, err := svc.IngestMaster(context.Background(), []dto.MasterRow{
		{Teacher: "Dr. Rao", Subject: "Data Structures", Year: "2nd Year", Branch: "cs", Classroom: "R101"},
		{Teacher: "Dr. Rao", Subject: "DSA Lab", Year: "2", Branch: "CSE", Classroom: "CC-2", Section: "a"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.RowsParsed)
	assert.Equal(t, 1, report.BranchesCreated, "cs and CSE fold onto one branch")
	assert.Equal(t, 2, report.SubjectsCreated)
	assert.Equal(t, 1, report.FacultyCreated)
	assert.Equal(t, 2, report.RoomsCreated)

	require.Contains(t, catalog.branches, "CSE")
	branch := catalog.branches["CSE"]

	ys, err := sectionStoreStub{catalog: catalog}.FindByBranchYearSection(context.Background(), branch.ID, 2, "A")
	require.NoError(t, err)

	lecture, err := subjectStoreStub{catalog: catalog}.FindByNameAndSection(context.Background(), "Data Structures", ys.ID)
	require.NoError(t, err)
	require.NotNil(t, lecture.ClassroomID)
	assert.Nil(t, lecture.LabRoomID)

	lab, err := subjectStoreStub{catalog: catalog}.FindByNameAndSection(context.Background(), "DSA Lab", ys.ID)
	require.NoError(t, err)
	require.NotNil(t, lab.LabRoomID, "CC-prefixed rooms are lab rooms")
	assert.Nil(t, lab.ClassroomID)
}

func TestIngestAssignmentRoutesDemandByKeyword(t *testing.T) {
	svc, catalog := newIngestFixture()

	_, err := svc.IngestAssignment(context.Background(), []dto.AssignmentRow{
		{Teacher: "Dr. Rao", Subject: "Operating Systems", Year: "3", Branch: "CSE", LecturesPerWeek: 4},
		{Teacher: "Dr. Rao", Subject: "OS Lab", Year: "3", Branch: "CSE", LecturesPerWeek: 2},
		{Teacher: "Dr. Iyer", Subject: "Maths Tutorial", Year: "3", Branch: "CSE", LecturesPerWeek: 1},
		{Teacher: "Dr. Iyer", Subject: "Research Seminar", Year: "3", Branch: "CSE", LecturesPerWeek: 1},
	})
	require.NoError(t, err)

	branch := catalog.branches["CSE"]
	ys, err := sectionStoreStub{catalog: catalog}.FindByBranchYearSection(context.Background(), branch.ID, 3, "A")
	require.NoError(t, err)

	subjects := subjectStoreStub{catalog: catalog}

	os, err := subjects.FindByNameAndSection(context.Background(), "Operating Systems", ys.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, os.LecturesPerWeek)

	lab, err := subjects.FindByNameAndSection(context.Background(), "OS Lab", ys.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, lab.LabPeriodsPerWeek)
	assert.Zero(t, lab.LecturesPerWeek)

	tutorial, err := subjects.FindByNameAndSection(context.Background(), "Maths Tutorial", ys.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tutorial.TutorialsPerWeek)

	seminar, err := subjects.FindByNameAndSection(context.Background(), "Research Seminar", ys.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, seminar.SeminarPeriodsPerWeek)
}

func TestIngestAssignmentValidatesRows(t *testing.T) {
	svc, _ := newIngestFixture()

	_, err := svc.IngestAssignment(context.Background(), []dto.AssignmentRow{
		{Teacher: "Dr. Rao", Subject: "OS", Year: "3", Branch: "CSE", LecturesPerWeek: 25},
	})
	require.Error(t, err)

	_, err = svc.IngestAssignment(context.Background(), []dto.AssignmentRow{
		{Teacher: "", Subject: "OS", Year: "3", Branch: "CSE", LecturesPerWeek: 3},
	})
	require.Error(t, err)

	_, err = svc.IngestAssignment(context.Background(), nil)
	require.Error(t, err)
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, "CSE", NormalizeBranch(" cs "))
	assert.Equal(t, "CSE", NormalizeBranch("Computer Science"))
	assert.Equal(t, "ECE", NormalizeBranch("ece"))
	assert.Equal(t, "GEN", NormalizeBranch(""))

	assert.Equal(t, 2, ParseYear("2nd Year"))
	assert.Equal(t, 3, ParseYear("Year 3"))
	assert.Equal(t, 1, ParseYear("freshman"))
	assert.Equal(t, 1, ParseYear("9"))

	assert.Equal(t, "A", NormalizeSection(""))
	assert.Equal(t, "B", NormalizeSection(" b "))

	assert.Equal(t, models.SessionLab, ClassifySession("Physics Lab"))
	assert.Equal(t, models.SessionTutorial, ClassifySession("Maths Tutorial"))
	assert.Equal(t, models.SessionSeminar, ClassifySession("Ethics Seminar"))
	assert.Equal(t, models.SessionLecture, ClassifySession("Compiler Design"))

	assert.True(t, IsLabRoom("DSA LAB"))
	assert.True(t, IsLabRoom("cc-101"))
	assert.False(t, IsLabRoom("R204"))
}
