package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type editVersionStore interface {
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
}

type editEntryStore interface {
	ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	Insert(ctx context.Context, entries []models.TimetableEntry) error
	UpdateSlots(ctx context.Context, updates []models.EntrySlotUpdate) error
	SetLocked(ctx context.Context, id string, locked bool) error
	DeleteUnlocked(ctx context.Context, versionID string) error
}

type editSectionResolver interface {
	FindByCohort(ctx context.Context, branchCode string, year int, section string) (*models.YearSection, error)
}

type editSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type timetableCacheInvalidator interface {
	InvalidateTimetable(ctx context.Context)
}

// EditService applies incremental edits to the active version. Every
// operation consults the constraint validator before mutating and either
// fully commits or leaves the version unchanged.
type EditService struct {
	versions  editVersionStore
	entries   editEntryStore
	sections  editSectionResolver
	subjects  editSubjectReader
	cache     timetableCacheInvalidator
	policy    models.SchedulingPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEditService wires the edit dependencies.
func NewEditService(
	versions editVersionStore,
	entries editEntryStore,
	sections editSectionResolver,
	subjects editSubjectReader,
	cache timetableCacheInvalidator,
	policy models.SchedulingPolicy,
	validate *validator.Validate,
	logger *zap.Logger,
) *EditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditService{
		versions:  versions,
		entries:   entries,
		sections:  sections,
		subjects:  subjects,
		cache:     cache,
		policy:    policy,
		validator: validate,
		logger:    logger,
	}
}

// Lock flips the lock flag on an entry. The entry never moves.
func (s *EditService) Lock(ctx context.Context, req dto.LockEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload")
	}
	_, entry, err := s.activeEntry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if err := s.entries.SetLocked(ctx, entry.ID, req.Locked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lock flag")
	}
	entry.Locked = req.Locked
	s.invalidate(ctx)
	return entry, nil
}

// Move relocates a non-lab entry within the active version.
func (s *EditService) Move(ctx context.Context, req dto.MoveEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	version, entry, err := s.activeEntry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Locked {
		return nil, appErrors.Clone(appErrors.ErrEntryLocked, "")
	}
	if entry.SessionType == models.SessionLab {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lab blocks cannot be moved; re-assign the block instead")
	}
	if !req.Day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}

	cv, err := s.loadValidator(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	if rejection := s.checkSlot(cv, *entry, req.Day, req.Period, entry.ID); rejection != nil {
		return nil, placementError(rejection)
	}

	update := []models.EntrySlotUpdate{{EntryID: entry.ID, Day: req.Day, Period: req.Period}}
	if err := s.entries.UpdateSlots(ctx, update); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move entry")
	}
	entry.DayOfWeek = req.Day
	entry.Period = req.Period
	s.invalidate(ctx)
	return entry, nil
}

// Swap exchanges the slots of two non-lab, unlocked entries atomically.
func (s *EditService) Swap(ctx context.Context, req dto.SwapEntriesRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	if req.FirstID == req.SecondID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot swap an entry with itself")
	}
	version, first, err := s.activeEntry(ctx, req.FirstID)
	if err != nil {
		return err
	}
	_, second, err := s.activeEntry(ctx, req.SecondID)
	if err != nil {
		return err
	}
	if first.Locked || second.Locked {
		return appErrors.Clone(appErrors.ErrEntryLocked, "")
	}
	if first.SessionType == models.SessionLab || second.SessionType == models.SessionLab {
		return appErrors.Clone(appErrors.ErrValidation, "lab blocks cannot be swapped")
	}

	cv, err := s.loadValidator(ctx, version.ID)
	if err != nil {
		return err
	}
	// Each entry must fit the other's slot with the counterpart excluded.
	if rejection := s.checkSlotExcluding(cv, *first, second.DayOfWeek, second.Period, first.ID, second.ID); rejection != nil {
		return placementError(rejection)
	}
	if rejection := s.checkSlotExcluding(cv, *second, first.DayOfWeek, first.Period, second.ID, first.ID); rejection != nil {
		return placementError(rejection)
	}

	updates := []models.EntrySlotUpdate{
		{EntryID: first.ID, Day: second.DayOfWeek, Period: second.Period},
		{EntryID: second.ID, Day: first.DayOfWeek, Period: first.Period},
	}
	if err := s.entries.UpdateSlots(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to swap entries")
	}
	s.invalidate(ctx)
	return nil
}

// Assign creates a new entry in the active version. Lab blocks create both
// periods in one atomic insert.
func (s *EditService) Assign(ctx context.Context, req dto.AssignEntryRequest) ([]models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
	}
	if !req.Day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}
	section, err := s.sections.FindByCohort(ctx, req.Branch, req.Year, req.Section)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMissingResource, fmt.Sprintf("cohort %s/%d/%s does not exist", req.Branch, req.Year, req.Section))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve cohort")
	}
	cohort := models.Cohort{BranchID: section.BranchID, YearSectionID: section.ID}

	cv, err := s.loadValidator(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	var created []models.TimetableEntry
	switch req.SessionType {
	case models.SessionLab:
		subject, err := s.requireSubject(ctx, req.SubjectID)
		if err != nil {
			return nil, err
		}
		if subject.LabRoomID == nil {
			return nil, appErrors.Clone(appErrors.ErrMissingResource, fmt.Sprintf("subject %s has no lab room assigned", subject.Code))
		}
		ok, rejection := cv.CanPlaceLab(cohort, subject.FacultyID, *subject.LabRoomID, req.Day, req.Period)
		if !ok {
			return nil, placementError(rejection)
		}
		for offset := 0; offset < models.LabBlockPeriods; offset++ {
			created = append(created, models.TimetableEntry{
				ID:            uuid.NewString(),
				VersionID:     version.ID,
				DayOfWeek:     req.Day,
				Period:        req.Period + offset,
				BranchID:      section.BranchID,
				YearSectionID: section.ID,
				SubjectID:     &subject.ID,
				FacultyID:     &subject.FacultyID,
				LabRoomID:     subject.LabRoomID,
				SessionType:   models.SessionLab,
				Locked:        req.Locked,
				CreatedAt:     time.Now().UTC(),
			})
		}

	case models.SessionLecture, models.SessionTutorial, models.SessionSeminar:
		subject, err := s.requireSubject(ctx, req.SubjectID)
		if err != nil {
			return nil, err
		}
		if subject.ClassroomID == nil {
			return nil, appErrors.Clone(appErrors.ErrMissingResource, fmt.Sprintf("subject %s has no classroom assigned", subject.Code))
		}
		ok, rejection := cv.CanPlaceSingle(cohort, subject.FacultyID, *subject.ClassroomID, req.Day, req.Period, req.SessionType, "")
		if !ok {
			return nil, placementError(rejection)
		}
		created = append(created, models.TimetableEntry{
			ID:            uuid.NewString(),
			VersionID:     version.ID,
			DayOfWeek:     req.Day,
			Period:        req.Period,
			BranchID:      section.BranchID,
			YearSectionID: section.ID,
			SubjectID:     &subject.ID,
			FacultyID:     &subject.FacultyID,
			ClassroomID:   subject.ClassroomID,
			SessionType:   req.SessionType,
			Locked:        req.Locked,
			CreatedAt:     time.Now().UTC(),
		})

	case models.SessionClub:
		if !s.policy.PeriodReserved(req.Day, req.Period) {
			return nil, placementError(reject(RejectInvalidSlot, req.Day, req.Period, "club sessions belong in the reserved Thursday periods"))
		}
		if !cv.CohortSlotFree(cohort, req.Day, req.Period, "") {
			return nil, placementError(reject(RejectCohortOccupied, req.Day, req.Period, "section already has a session on %s P%d", req.Day, req.Period))
		}
		created = append(created, models.TimetableEntry{
			ID:            uuid.NewString(),
			VersionID:     version.ID,
			DayOfWeek:     req.Day,
			Period:        req.Period,
			BranchID:      section.BranchID,
			YearSectionID: section.ID,
			SessionType:   models.SessionClub,
			Locked:        req.Locked,
			CreatedAt:     time.Now().UTC(),
		})

	case models.SessionBreak, models.SessionExtracurricular:
		if s.policy.PeriodReserved(req.Day, req.Period) {
			return nil, placementError(reject(RejectReservedSlot, req.Day, req.Period, "%s P%d is reserved for clubs", req.Day, req.Period))
		}
		if !cv.CohortSlotFree(cohort, req.Day, req.Period, "") {
			return nil, placementError(reject(RejectCohortOccupied, req.Day, req.Period, "section already has a session on %s P%d", req.Day, req.Period))
		}
		created = append(created, models.TimetableEntry{
			ID:            uuid.NewString(),
			VersionID:     version.ID,
			DayOfWeek:     req.Day,
			Period:        req.Period,
			BranchID:      section.BranchID,
			YearSectionID: section.ID,
			SessionType:   req.SessionType,
			Locked:        req.Locked,
			CreatedAt:     time.Now().UTC(),
		})

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session type %q", req.SessionType))
	}

	if err := s.entries.Insert(ctx, created); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create entries")
	}
	s.invalidate(ctx)
	return created, nil
}

// ClearUnlocked removes every non-locked entry from the active version,
// enabling a reshuffle that preserves locked placements.
func (s *EditService) ClearUnlocked(ctx context.Context) error {
	version, err := s.activeVersion(ctx)
	if err != nil {
		return err
	}
	if err := s.entries.DeleteUnlocked(ctx, version.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear unlocked entries")
	}
	s.invalidate(ctx)
	return nil
}

func (s *EditService) activeVersion(ctx context.Context) (*models.TimetableVersion, error) {
	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveVersion, "")
	}
	return version, nil
}

func (s *EditService) activeEntry(ctx context.Context, entryID string) (*models.TimetableVersion, *models.TimetableEntry, error) {
	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry")
	}
	if entry.VersionID != version.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "entry does not belong to the active version")
	}
	return version, entry, nil
}

func (s *EditService) loadValidator(ctx context.Context, versionID string) (*ConstraintValidator, error) {
	entries, err := s.entries.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version entries")
	}
	return NewConstraintValidator(s.policy, entries), nil
}

// checkSlot validates moving the entry to (day, period) with itself
// excluded from the occupancy index.
func (s *EditService) checkSlot(cv *ConstraintValidator, entry models.TimetableEntry, day models.DayOfWeek, period int, excludeID string) *PlacementRejection {
	return s.checkSlotExcluding(cv, entry, day, period, excludeID, "")
}

func (s *EditService) checkSlotExcluding(cv *ConstraintValidator, entry models.TimetableEntry, day models.DayOfWeek, period int, selfID, otherID string) *PlacementRejection {
	if entry.SessionType.Academic() {
		// Temporarily drop the counterpart so its old slot does not block.
		var removed *models.TimetableEntry
		if otherID != "" {
			if other, ok := cv.Entry(otherID); ok {
				removed = &other
				cv.Remove(otherID)
			}
		}
		ok, rejection := cv.CanPlaceSingle(entry.Cohort(), derefOr(entry.FacultyID), derefOr(entry.ClassroomID), day, period, entry.SessionType, selfID)
		if removed != nil {
			cv.Add(*removed)
		}
		if !ok {
			return rejection
		}
		return nil
	}

	if s.policy.PeriodReserved(day, period) && entry.SessionType != models.SessionClub {
		return reject(RejectReservedSlot, day, period, "%s P%d is reserved for clubs", day, period)
	}
	if entry.SessionType == models.SessionClub && !s.policy.PeriodReserved(day, period) {
		return reject(RejectInvalidSlot, day, period, "club sessions belong in the reserved Thursday periods")
	}
	if period < models.FirstPeriod || period > models.LastPeriod {
		return reject(RejectInvalidSlot, day, period, "slot %s P%d is outside the grid", day, period)
	}
	var removed *models.TimetableEntry
	if otherID != "" {
		if other, ok := cv.Entry(otherID); ok {
			removed = &other
			cv.Remove(otherID)
		}
	}
	free := cv.CohortSlotFree(entry.Cohort(), day, period, selfID)
	if removed != nil {
		cv.Add(*removed)
	}
	if !free {
		return reject(RejectCohortOccupied, day, period, "section already has a session on %s P%d", day, period)
	}
	return nil
}

func (s *EditService) requireSubject(ctx context.Context, subjectID *string) (*models.Subject, error) {
	if subjectID == nil || *subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id is required for academic sessions")
	}
	subject, err := s.subjects.FindByID(ctx, *subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

func (s *EditService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateTimetable(ctx)
	}
}

func placementError(rejection *PlacementRejection) error {
	if rejection == nil {
		return appErrors.Clone(appErrors.ErrPlacementRejected, "")
	}
	return appErrors.Wrap(
		fmt.Errorf("%s on %s P%d", rejection.Code, rejection.Day, rejection.Period),
		appErrors.ErrPlacementRejected.Code,
		appErrors.ErrPlacementRejected.Status,
		rejection.Message,
	)
}

func derefOr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
