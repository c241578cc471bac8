package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type ingestBranchStore interface {
	FindByCode(ctx context.Context, code string) (*models.Branch, error)
	Create(ctx context.Context, branch *models.Branch) error
}

type ingestSectionStore interface {
	FindByBranchYearSection(ctx context.Context, branchID string, year int, section string) (*models.YearSection, error)
	Create(ctx context.Context, section *models.YearSection) error
}

type ingestFacultyStore interface {
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
}

type ingestClassroomStore interface {
	FindByRoomNumber(ctx context.Context, roomNumber string) (*models.Classroom, error)
	Create(ctx context.Context, room *models.Classroom) error
}

type ingestLabRoomStore interface {
	FindByRoomNumber(ctx context.Context, roomNumber string) (*models.LabRoom, error)
	Create(ctx context.Context, room *models.LabRoom) error
}

type ingestSubjectStore interface {
	FindByNameAndSection(ctx context.Context, name, yearSectionID string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
}

// branchAliases folds common spellings onto canonical branch codes.
var branchAliases = map[string]string{
	"CS":               "CSE",
	"C.S.":             "CSE",
	"COMPUTER SCIENCE": "CSE",
}

var yearDigits = regexp.MustCompile(`\d+`)

// IngestService loads tabular master and assignment uploads into the
// entity catalogue. It only touches catalogue repositories; the placer is
// never involved.
type IngestService struct {
	branches   ingestBranchStore
	sections   ingestSectionStore
	faculty    ingestFacultyStore
	classrooms ingestClassroomStore
	labrooms   ingestLabRoomStore
	subjects   ingestSubjectStore
	logger     *zap.Logger
}

// NewIngestService wires the catalogue repositories.
func NewIngestService(
	branches ingestBranchStore,
	sections ingestSectionStore,
	faculty ingestFacultyStore,
	classrooms ingestClassroomStore,
	labrooms ingestLabRoomStore,
	subjects ingestSubjectStore,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		branches:   branches,
		sections:   sections,
		faculty:    faculty,
		classrooms: classrooms,
		labrooms:   labrooms,
		subjects:   subjects,
		logger:     logger,
	}
}

// IngestMaster upserts teaching assignments with their rooms.
func (s *IngestService) IngestMaster(ctx context.Context, rows []dto.MasterRow) (*dto.UploadReport, error) {
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload contains no data rows")
	}
	report := &dto.UploadReport{}

	for idx, row := range rows {
		rowNum := idx + 2 // header is row 1
		if strings.TrimSpace(row.Teacher) == "" || strings.TrimSpace(row.Subject) == "" ||
			strings.TrimSpace(row.Branch) == "" || strings.TrimSpace(row.Classroom) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: Teacher, Subject, Branch and Classroom must not be empty", rowNum))
		}

		subject, created, err := s.resolveSubject(ctx, report, row.Teacher, row.Subject, row.Branch, row.Year, row.Section)
		if err != nil {
			return nil, err
		}

		if err := s.stampRoom(ctx, report, subject, row.Classroom); err != nil {
			return nil, err
		}
		if err := s.subjects.Update(ctx, subject); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
		}
		if !created {
			report.SubjectsUpdated++
		}
		report.RowsParsed++
	}
	return report, nil
}

// IngestAssignment upserts weekly demand rows. The demand lands on the
// counter matching the subject's keyword classification.
func (s *IngestService) IngestAssignment(ctx context.Context, rows []dto.AssignmentRow) (*dto.UploadReport, error) {
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload contains no data rows")
	}
	report := &dto.UploadReport{}

	for idx, row := range rows {
		rowNum := idx + 2
		if strings.TrimSpace(row.Teacher) == "" || strings.TrimSpace(row.Subject) == "" || strings.TrimSpace(row.Branch) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: Teacher, Subject and Branch must not be empty", rowNum))
		}
		if row.LecturesPerWeek < 1 || row.LecturesPerWeek > 20 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d: LecturesPerWeek must be 1-20, got %d", rowNum, row.LecturesPerWeek))
		}

		subject, created, err := s.resolveSubject(ctx, report, row.Teacher, row.Subject, row.Branch, row.Year, row.Section)
		if err != nil {
			return nil, err
		}

		switch ClassifySession(row.Subject) {
		case models.SessionLab:
			subject.LabPeriodsPerWeek = row.LecturesPerWeek
		case models.SessionTutorial:
			subject.TutorialsPerWeek = row.LecturesPerWeek
		case models.SessionSeminar:
			subject.SeminarPeriodsPerWeek = row.LecturesPerWeek
		default:
			subject.LecturesPerWeek = row.LecturesPerWeek
		}

		if err := s.subjects.Update(ctx, subject); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
		}
		if !created {
			report.SubjectsUpdated++
		}
		report.RowsParsed++
	}
	return report, nil
}

func (s *IngestService) resolveSubject(ctx context.Context, report *dto.UploadReport, teacher, subjectName, branchRaw, yearRaw, sectionRaw string) (*models.Subject, bool, error) {
	branch, err := s.getOrCreateBranch(ctx, report, branchRaw)
	if err != nil {
		return nil, false, err
	}
	year := ParseYear(yearRaw)
	section, err := s.getOrCreateSection(ctx, branch, year, NormalizeSection(sectionRaw))
	if err != nil {
		return nil, false, err
	}
	fac, err := s.getOrCreateFaculty(ctx, report, teacher)
	if err != nil {
		return nil, false, err
	}

	name := strings.TrimSpace(subjectName)
	subject, err := s.subjects.FindByNameAndSection(ctx, name, section.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up subject")
	}
	if subject != nil {
		subject.FacultyID = fac.ID
		return subject, false, nil
	}

	subject = &models.Subject{
		ID:            uuid.NewString(),
		Code:          subjectCode(name),
		Name:          name,
		BranchID:      branch.ID,
		YearSectionID: section.ID,
		Year:          section.Year,
		Section:       section.Section,
		FacultyID:     fac.ID,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	report.SubjectsCreated++
	return subject, true, nil
}

func (s *IngestService) getOrCreateBranch(ctx context.Context, report *dto.UploadReport, raw string) (*models.Branch, error) {
	code := NormalizeBranch(raw)
	branch, err := s.branches.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up branch")
	}
	if branch != nil {
		return branch, nil
	}
	branch = &models.Branch{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      code,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.branches.Create(ctx, branch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create branch")
	}
	report.BranchesCreated++
	return branch, nil
}

func (s *IngestService) getOrCreateSection(ctx context.Context, branch *models.Branch, year int, section string) (*models.YearSection, error) {
	ys, err := s.sections.FindByBranchYearSection(ctx, branch.ID, year, section)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up year section")
	}
	if ys != nil {
		return ys, nil
	}
	ys = &models.YearSection{
		ID:        uuid.NewString(),
		BranchID:  branch.ID,
		Year:      year,
		Section:   section,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sections.Create(ctx, ys); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create year section")
	}
	return ys, nil
}

func (s *IngestService) getOrCreateFaculty(ctx context.Context, report *dto.UploadReport, name string) (*models.Faculty, error) {
	employeeID := facultySlug(name)
	fac, err := s.faculty.FindByEmployeeID(ctx, employeeID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up faculty")
	}
	if fac != nil {
		return fac, nil
	}
	fac = &models.Faculty{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		FullName:   strings.TrimSpace(name),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.faculty.Create(ctx, fac); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty")
	}
	report.FacultyCreated++
	return fac, nil
}

// stampRoom attaches the row's room to the subject, creating the room
// record on first sight. Lab-looking identifiers become lab rooms.
func (s *IngestService) stampRoom(ctx context.Context, report *dto.UploadReport, subject *models.Subject, roomRaw string) error {
	room := strings.TrimSpace(roomRaw)
	if room == "" {
		return nil
	}
	if IsLabRoom(room) {
		lab, err := s.labrooms.FindByRoomNumber(ctx, room)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up lab room")
		}
		if lab == nil {
			lab = &models.LabRoom{
				ID:         uuid.NewString(),
				RoomNumber: room,
				LabType:    "GENERAL",
				Capacity:   60,
				Active:     true,
				CreatedAt:  time.Now().UTC(),
			}
			if err := s.labrooms.Create(ctx, lab); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lab room")
			}
			report.RoomsCreated++
		}
		subject.LabRoomID = &lab.ID
		return nil
	}

	classroom, err := s.classrooms.FindByRoomNumber(ctx, room)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up classroom")
	}
	if classroom == nil {
		classroom = &models.Classroom{
			ID:         uuid.NewString(),
			RoomNumber: room,
			Capacity:   60,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.classrooms.Create(ctx, classroom); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
		}
		report.RoomsCreated++
	}
	subject.ClassroomID = &classroom.ID
	return nil
}

// NormalizeBranch folds aliases and casing onto a canonical branch code.
func NormalizeBranch(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "GEN"
	}
	if canonical, ok := branchAliases[code]; ok {
		return canonical
	}
	return code
}

// ParseYear extracts the numeric year from free text ("2nd Year" -> 2).
func ParseYear(raw string) int {
	match := yearDigits.FindString(raw)
	if match == "" {
		return 1
	}
	year := 0
	for _, r := range match {
		year = year*10 + int(r-'0')
	}
	if year < 1 || year > 4 {
		return 1
	}
	return year
}

// NormalizeSection upper-cases and defaults the section letter to "A".
func NormalizeSection(raw string) string {
	section := strings.ToUpper(strings.TrimSpace(raw))
	if section == "" {
		return "A"
	}
	return section
}

// ClassifySession infers the session kind from a subject name.
func ClassifySession(subjectName string) models.SessionType {
	name := strings.ToLower(subjectName)
	switch {
	case strings.Contains(name, "lab"):
		return models.SessionLab
	case strings.Contains(name, "tutorial"):
		return models.SessionTutorial
	case strings.Contains(name, "seminar"):
		return models.SessionSeminar
	default:
		return models.SessionLecture
	}
}

// IsLabRoom reports whether the room identifier names a laboratory.
func IsLabRoom(roomNumber string) bool {
	upper := strings.ToUpper(strings.TrimSpace(roomNumber))
	return strings.Contains(upper, "LAB") || strings.HasPrefix(upper, "CC")
}

func facultySlug(name string) string {
	slug := strings.ToUpper(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "_")
	return slug
}

func subjectCode(name string) string {
	fields := strings.Fields(strings.ToUpper(name))
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.Map(func(r rune) rune {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, field)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	code := strings.Join(parts, "-")
	if len(code) > 20 {
		code = code[:20]
	}
	if code == "" {
		code = "SUBJ"
	}
	return code
}
