package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type generatorSubjectCatalog interface {
	ListActive(ctx context.Context) ([]models.Subject, error)
}

type generatorSectionCatalog interface {
	List(ctx context.Context) ([]models.YearSection, error)
}

type generatorVersionStore interface {
	CreateActive(ctx context.Context, version *models.TimetableVersion) error
	FindActive(ctx context.Context) (*models.TimetableVersion, error)
	Delete(ctx context.Context, id string) error
}

type generatorEntryStore interface {
	ListByVersion(ctx context.Context, versionID string) ([]models.TimetableEntry, error)
	BulkInsert(ctx context.Context, entries []models.TimetableEntry) error
	DeleteUnlocked(ctx context.Context, versionID string) error
}

// GeneratorConfig bounds a generation run.
type GeneratorConfig struct {
	Timeout      time.Duration
	AttemptLimit int
	Policy       models.SchedulingPolicy
}

// GeneratorService turns subject weekly demand into a populated timetable
// version using a randomized backtracking search. One generation runs on a
// single control thread; the entity catalogue is treated as read-only for
// the duration of the run.
type GeneratorService struct {
	subjects generatorSubjectCatalog
	sections generatorSectionCatalog
	versions generatorVersionStore
	entries  generatorEntryStore
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      GeneratorConfig
}

// NewGeneratorService wires the generator dependencies.
func NewGeneratorService(
	subjects generatorSubjectCatalog,
	sections generatorSectionCatalog,
	versions generatorVersionStore,
	entries generatorEntryStore,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg GeneratorConfig,
) *GeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AttemptLimit <= 0 {
		cfg.AttemptLimit = len(models.Days) * models.PeriodsPerDay * 4
	}
	return &GeneratorService{
		subjects: subjects,
		sections: sections,
		versions: versions,
		entries:  entries,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate creates a fresh active version and populates it.
func (s *GeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	seed := resolveSeed(req.Seed)

	version := &models.TimetableVersion{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04:05")),
		Source:    models.VersionSourceGenerated,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.versions.CreateActive(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable version")
	}

	resp, err := s.run(ctx, version, seed, req)
	if err != nil {
		// Partial work is discarded with the in-progress version.
		if delErr := s.versions.Delete(ctx, version.ID); delErr != nil {
			s.logger.Warn("failed to roll back in-progress version", zap.String("version_id", version.ID), zap.Error(delErr))
		}
		return nil, err
	}
	return resp, nil
}

// Reshuffle clears every unlocked entry of the active version and re-runs
// the placer around the surviving locked entries.
func (s *GeneratorService) Reshuffle(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	version, err := s.versions.FindActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	if version == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveVersion, "")
	}

	if err := s.entries.DeleteUnlocked(ctx, version.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear unlocked entries")
	}

	seed := resolveSeed(req.Seed)
	// The active version is kept on abort; only the uncommitted batch is lost.
	return s.run(ctx, version, seed, req)
}

func (s *GeneratorService) run(ctx context.Context, version *models.TimetableVersion, seed int64, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	start := time.Now()
	deadline := start.Add(s.cfg.Timeout)

	subjects, err := s.subjects.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	sections, err := s.sections.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year sections")
	}
	existing, err := s.entries.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version entries")
	}

	validator := NewConstraintValidator(s.cfg.Policy, existing)
	tasks := buildPlacementTasks(subjects, existing)
	rng := rand.New(rand.NewSource(seed))

	state := &placementRun{
		version:   version,
		validator: validator,
		rng:       rng,
	}

	for _, task := range tasks {
		if err := checkAbort(ctx, deadline); err != nil {
			return nil, err
		}
		s.placeTask(state, task)
	}

	if req.IncludeClubs {
		if err := checkAbort(ctx, deadline); err != nil {
			return nil, err
		}
		s.insertClubs(state, sections)
	}
	if req.FillExtracurricular {
		if err := checkAbort(ctx, deadline); err != nil {
			return nil, err
		}
		s.fillExtracurricular(state, sections)
	}

	if len(state.created) > 0 {
		if err := s.entries.BulkInsert(ctx, state.created); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable entries")
		}
	}

	conflicts := validator.ValidateSchedule()
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveGeneration(elapsed, len(state.created), state.backtracks, len(state.failed))
	}
	s.logger.Info("timetable generation finished",
		zap.String("version_id", version.ID),
		zap.Int64("seed", seed),
		zap.Int("placed", len(state.created)),
		zap.Int("failed_subjects", len(state.failed)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("backtracks", state.backtracks),
		zap.Duration("elapsed", elapsed),
	)

	return &dto.GenerateTimetableResponse{
		VersionID:        version.ID,
		Success:          len(state.failed) == 0,
		Seed:             seed,
		ConflictCount:    len(conflicts),
		UnallocatedCount: len(state.failed),
		GenerationTimeMS: elapsed.Milliseconds(),
		BacktrackCount:   state.backtracks,
		EntryCount:       len(state.created),
		FailedSubjects:   state.failed,
	}, nil
}

type placementRun struct {
	version    *models.TimetableVersion
	validator  *ConstraintValidator
	rng        *rand.Rand
	created    []models.TimetableEntry
	failed     []dto.FailedSubject
	backtracks int
}

func (s *GeneratorService) placeTask(state *placementRun, task placementTask) {
	subject := task.Subject

	if task.Kind == models.SessionLab && subject.LabRoomID == nil {
		state.failed = append(state.failed, dto.FailedSubject{
			SubjectCode: subject.Code,
			Kind:        string(task.Kind),
			Reason:      "no lab room assigned",
		})
		return
	}
	if task.Kind != models.SessionLab && subject.ClassroomID == nil {
		state.failed = append(state.failed, dto.FailedSubject{
			SubjectCode: subject.Code,
			Kind:        string(task.Kind),
			Reason:      "no classroom assigned",
		})
		return
	}

	need := task.Remaining
	attempts := 0
	var lastRejection *PlacementRejection

	for need > 0 && attempts < s.cfg.AttemptLimit {
		attempts++
		placed := false

		for _, day := range shuffledDays(state.rng) {
			periods := s.candidateOrder(state.rng, day, task.Kind)
			for _, period := range periods {
				ok, rejection := s.tryPlace(state, subject, task.Kind, day, period)
				if ok {
					need--
					placed = true
					break
				}
				lastRejection = rejection
			}
			if placed {
				break
			}
		}

		// A full pass over every day without a placement counts as a
		// backtrack; commits are kept and the search simply resumes.
		if !placed {
			state.backtracks++
		}
	}

	if need > 0 {
		reason := "no feasible slot"
		if lastRejection != nil {
			reason = fmt.Sprintf("%s: %s", lastRejection.Code, lastRejection.Message)
		}
		state.failed = append(state.failed, dto.FailedSubject{
			SubjectCode: subject.Code,
			Kind:        string(task.Kind),
			Reason:      reason,
		})
	}
}

func (s *GeneratorService) tryPlace(state *placementRun, subject models.Subject, kind models.SessionType, day models.DayOfWeek, period int) (bool, *PlacementRejection) {
	cohort := subject.Cohort()

	if kind == models.SessionLab {
		ok, rejection := state.validator.CanPlaceLab(cohort, subject.FacultyID, *subject.LabRoomID, day, period)
		if !ok {
			return false, rejection
		}
		for offset := 0; offset < models.LabBlockPeriods; offset++ {
			state.commit(models.TimetableEntry{
				ID:            uuid.NewString(),
				VersionID:     state.version.ID,
				DayOfWeek:     day,
				Period:        period + offset,
				BranchID:      subject.BranchID,
				YearSectionID: subject.YearSectionID,
				SubjectID:     &subject.ID,
				FacultyID:     &subject.FacultyID,
				LabRoomID:     subject.LabRoomID,
				SessionType:   models.SessionLab,
				CreatedAt:     time.Now().UTC(),
			})
		}
		return true, nil
	}

	ok, rejection := state.validator.CanPlaceSingle(cohort, subject.FacultyID, *subject.ClassroomID, day, period, kind, "")
	if !ok {
		return false, rejection
	}
	state.commit(models.TimetableEntry{
		ID:            uuid.NewString(),
		VersionID:     state.version.ID,
		DayOfWeek:     day,
		Period:        period,
		BranchID:      subject.BranchID,
		YearSectionID: subject.YearSectionID,
		SubjectID:     &subject.ID,
		FacultyID:     &subject.FacultyID,
		ClassroomID:   subject.ClassroomID,
		SessionType:   kind,
		CreatedAt:     time.Now().UTC(),
	})
	return true, nil
}

func (r *placementRun) commit(entry models.TimetableEntry) {
	r.validator.Add(entry)
	r.created = append(r.created, entry)
}

// insertClubs fills the reserved Thursday slots of every cohort that still
// has them free. Club periods carry no subject, faculty or room.
func (s *GeneratorService) insertClubs(state *placementRun, sections []models.YearSection) {
	reserved := s.cfg.Policy.ReservedClubPeriods(models.Thursday)
	for _, section := range sections {
		cohort := models.Cohort{BranchID: section.BranchID, YearSectionID: section.ID}
		for _, period := range reserved {
			if !state.validator.CohortSlotFree(cohort, models.Thursday, period, "") {
				continue
			}
			state.commit(models.TimetableEntry{
				ID:            uuid.NewString(),
				VersionID:     state.version.ID,
				DayOfWeek:     models.Thursday,
				Period:        period,
				BranchID:      section.BranchID,
				YearSectionID: section.ID,
				SessionType:   models.SessionClub,
				CreatedAt:     time.Now().UTC(),
			})
		}
	}
}

// fillExtracurricular marks every remaining free slot except period 1,
// which stays open for first-period academic placements.
func (s *GeneratorService) fillExtracurricular(state *placementRun, sections []models.YearSection) {
	for _, section := range sections {
		cohort := models.Cohort{BranchID: section.BranchID, YearSectionID: section.ID}
		for _, day := range models.Days {
			for _, period := range s.cfg.Policy.CandidatePeriods(day, models.SessionExtracurricular) {
				if !state.validator.CohortSlotFree(cohort, day, period, "") {
					continue
				}
				state.commit(models.TimetableEntry{
					ID:            uuid.NewString(),
					VersionID:     state.version.ID,
					DayOfWeek:     day,
					Period:        period,
					BranchID:      section.BranchID,
					YearSectionID: section.ID,
					SessionType:   models.SessionExtracurricular,
					CreatedAt:     time.Now().UTC(),
				})
			}
		}
	}
}

// candidateOrder shuffles the legal periods for the kind. Lectures get a
// light head-bias toward period 1 so every cohort tends to receive at
// least one first-period session.
func (s *GeneratorService) candidateOrder(rng *rand.Rand, day models.DayOfWeek, kind models.SessionType) []int {
	periods := s.cfg.Policy.CandidatePeriods(day, kind)
	shuffled := make([]int, len(periods))
	copy(shuffled, periods)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if kind == models.SessionLecture && rng.Intn(3) == 0 {
		for i, period := range shuffled {
			if period == models.FirstPeriod {
				copy(shuffled[1:i+1], shuffled[:i])
				shuffled[0] = models.FirstPeriod
				break
			}
		}
	}
	return shuffled
}

func shuffledDays(rng *rand.Rand) []models.DayOfWeek {
	days := make([]models.DayOfWeek, len(models.Days))
	copy(days, models.Days)
	rng.Shuffle(len(days), func(i, j int) {
		days[i], days[j] = days[j], days[i]
	})
	return days
}

func checkAbort(ctx context.Context, deadline time.Time) error {
	select {
	case <-ctx.Done():
		return appErrors.Clone(appErrors.ErrGenerationCanceled, "")
	default:
	}
	if time.Now().After(deadline) {
		return appErrors.Clone(appErrors.ErrGenerationTimeout, "")
	}
	return nil
}

func resolveSeed(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	return time.Now().UnixNano()
}
