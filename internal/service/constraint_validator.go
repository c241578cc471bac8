package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// Rejection codes returned by placement checks.
const (
	RejectInvalidSlot     = "invalid-slot"
	RejectReservedSlot    = "reserved-slot"
	RejectCohortOccupied  = "cohort-occupied"
	RejectFacultyBusy     = "faculty-busy"
	RejectClassroomBusy   = "classroom-busy"
	RejectLabRoomBusy     = "labroom-busy"
	RejectLabPeriodPolicy = "lab-period-policy"
	RejectSingleLabPerDay = "single-lab-per-day"
	RejectMissingResource = "missing-resource"
)

// PlacementRejection explains why a placement was refused.
type PlacementRejection struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Day     models.DayOfWeek `json:"day"`
	Period  int              `json:"period"`
}

func reject(code string, day models.DayOfWeek, period int, format string, args ...interface{}) *PlacementRejection {
	return &PlacementRejection{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Day:     day,
		Period:  period,
	}
}

type slotKey struct {
	owner  string
	day    models.DayOfWeek
	period int
}

type cohortDayKey struct {
	yearSectionID string
	day           models.DayOfWeek
}

// ConstraintValidator answers slot-level and schedule-level feasibility
// queries against an in-memory index of one version's entries. Queries are
// total and side-effect-free; mutations go through Add/Remove so the placer
// and edit operations can keep the index in step with their commits.
type ConstraintValidator struct {
	policy  models.SchedulingPolicy
	entries map[string]models.TimetableEntry
	slots   map[slotKey]map[string]struct{}
	labDays map[cohortDayKey]map[string]struct{}
}

// NewConstraintValidator indexes the given entries under the policy.
func NewConstraintValidator(policy models.SchedulingPolicy, entries []models.TimetableEntry) *ConstraintValidator {
	v := &ConstraintValidator{
		policy:  policy,
		entries: make(map[string]models.TimetableEntry, len(entries)),
		slots:   make(map[slotKey]map[string]struct{}),
		labDays: make(map[cohortDayKey]map[string]struct{}),
	}
	for _, entry := range entries {
		v.Add(entry)
	}
	return v
}

// Policy exposes the slot policy the validator enforces.
func (v *ConstraintValidator) Policy() models.SchedulingPolicy {
	return v.policy
}

// Entry returns an indexed entry by id.
func (v *ConstraintValidator) Entry(id string) (models.TimetableEntry, bool) {
	entry, ok := v.entries[id]
	return entry, ok
}

// Entries returns all indexed entries in deterministic (day, period) order.
func (v *ConstraintValidator) Entries() []models.TimetableEntry {
	result := make([]models.TimetableEntry, 0, len(v.entries))
	for _, entry := range v.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek.Index() < result[j].DayOfWeek.Index()
		}
		if result[i].Period != result[j].Period {
			return result[i].Period < result[j].Period
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Add indexes an entry. Entries with duplicate ids replace the old record.
func (v *ConstraintValidator) Add(entry models.TimetableEntry) {
	if _, ok := v.entries[entry.ID]; ok {
		v.Remove(entry.ID)
	}
	v.entries[entry.ID] = entry
	for _, key := range v.keysOf(entry) {
		set := v.slots[key]
		if set == nil {
			set = make(map[string]struct{})
			v.slots[key] = set
		}
		set[entry.ID] = struct{}{}
	}
	if entry.SessionType == models.SessionLab {
		key := cohortDayKey{yearSectionID: entry.YearSectionID, day: entry.DayOfWeek}
		set := v.labDays[key]
		if set == nil {
			set = make(map[string]struct{})
			v.labDays[key] = set
		}
		set[entry.ID] = struct{}{}
	}
}

// Remove drops an entry from the index.
func (v *ConstraintValidator) Remove(id string) {
	entry, ok := v.entries[id]
	if !ok {
		return
	}
	delete(v.entries, id)
	for _, key := range v.keysOf(entry) {
		if set := v.slots[key]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(v.slots, key)
			}
		}
	}
	if entry.SessionType == models.SessionLab {
		key := cohortDayKey{yearSectionID: entry.YearSectionID, day: entry.DayOfWeek}
		if set := v.labDays[key]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(v.labDays, key)
			}
		}
	}
}

func (v *ConstraintValidator) keysOf(entry models.TimetableEntry) []slotKey {
	keys := make([]slotKey, 0, 4)
	keys = append(keys, slotKey{owner: "cohort:" + entry.YearSectionID, day: entry.DayOfWeek, period: entry.Period})
	if entry.FacultyID != nil {
		keys = append(keys, slotKey{owner: "faculty:" + *entry.FacultyID, day: entry.DayOfWeek, period: entry.Period})
	}
	// Club and break sessions do not occupy a classroom for exclusivity.
	if entry.ClassroomID != nil && entry.SessionType != models.SessionClub && entry.SessionType != models.SessionBreak {
		keys = append(keys, slotKey{owner: "classroom:" + *entry.ClassroomID, day: entry.DayOfWeek, period: entry.Period})
	}
	if entry.LabRoomID != nil {
		keys = append(keys, slotKey{owner: "labroom:" + *entry.LabRoomID, day: entry.DayOfWeek, period: entry.Period})
	}
	return keys
}

func (v *ConstraintValidator) slotFree(owner string, day models.DayOfWeek, period int, excludeID string) bool {
	set := v.slots[slotKey{owner: owner, day: day, period: period}]
	for id := range set {
		if id != excludeID {
			return false
		}
	}
	return true
}

// CohortSlotFree reports whether the cohort has no entry at (day, period).
func (v *ConstraintValidator) CohortSlotFree(cohort models.Cohort, day models.DayOfWeek, period int, excludeID string) bool {
	return v.slotFree("cohort:"+cohort.YearSectionID, day, period, excludeID)
}

// FacultyFree reports whether the faculty member is unoccupied at the slot.
func (v *ConstraintValidator) FacultyFree(facultyID string, day models.DayOfWeek, period int, excludeID string) bool {
	return v.slotFree("faculty:"+facultyID, day, period, excludeID)
}

// ClassroomFree reports whether the classroom is unoccupied at the slot.
// CLUB and BREAK sessions never occupy classrooms.
func (v *ConstraintValidator) ClassroomFree(classroomID string, day models.DayOfWeek, period int, excludeID string) bool {
	return v.slotFree("classroom:"+classroomID, day, period, excludeID)
}

// LabRoomFree reports whether the lab room is unoccupied at the slot.
func (v *ConstraintValidator) LabRoomFree(labroomID string, day models.DayOfWeek, period int, excludeID string) bool {
	return v.slotFree("labroom:"+labroomID, day, period, excludeID)
}

// HasLabOnDay reports whether the cohort already has a lab block that day.
func (v *ConstraintValidator) HasLabOnDay(cohort models.Cohort, day models.DayOfWeek, excludeIDs ...string) bool {
	set := v.labDays[cohortDayKey{yearSectionID: cohort.YearSectionID, day: day}]
	for id := range set {
		excluded := false
		for _, skip := range excludeIDs {
			if id == skip {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

// CanPlaceSingle checks a one-period lecture, tutorial or seminar placement.
func (v *ConstraintValidator) CanPlaceSingle(
	cohort models.Cohort,
	facultyID string,
	classroomID string,
	day models.DayOfWeek,
	period int,
	kind models.SessionType,
	excludeID string,
) (bool, *PlacementRejection) {
	if !day.Valid() || period < models.FirstPeriod || period > models.LastPeriod {
		return false, reject(RejectInvalidSlot, day, period, "slot %s P%d is outside the grid", day, period)
	}
	switch kind {
	case models.SessionLecture, models.SessionTutorial, models.SessionSeminar:
	default:
		return false, reject(RejectInvalidSlot, day, period, "session type %s is not a single-period academic session", kind)
	}
	if !containsPeriod(v.policy.CandidatePeriods(day, kind), period) {
		if v.policy.PeriodReserved(day, period) {
			return false, reject(RejectReservedSlot, day, period, "%s P%d is reserved for clubs", day, period)
		}
		return false, reject(RejectInvalidSlot, day, period, "%s P%d is not a legal %s period", day, period, kind)
	}
	if !v.CohortSlotFree(cohort, day, period, excludeID) {
		return false, reject(RejectCohortOccupied, day, period, "section already has a session on %s P%d", day, period)
	}
	if !v.FacultyFree(facultyID, day, period, excludeID) {
		return false, reject(RejectFacultyBusy, day, period, "faculty not available on %s P%d", day, period)
	}
	if !v.ClassroomFree(classroomID, day, period, excludeID) {
		return false, reject(RejectClassroomBusy, day, period, "classroom not available on %s P%d", day, period)
	}
	return true, nil
}

// CanPlaceLab checks a full two-period lab block starting at startPeriod.
func (v *ConstraintValidator) CanPlaceLab(
	cohort models.Cohort,
	facultyID string,
	labroomID string,
	day models.DayOfWeek,
	startPeriod int,
	excludeIDs ...string,
) (bool, *PlacementRejection) {
	if !day.Valid() || startPeriod < models.FirstPeriod || startPeriod > models.LastPeriod {
		return false, reject(RejectInvalidSlot, day, startPeriod, "slot %s P%d is outside the grid", day, startPeriod)
	}
	endPeriod := startPeriod + models.LabBlockPeriods - 1
	if startPeriod < 3 {
		return false, reject(RejectLabPeriodPolicy, day, startPeriod, "labs cannot start in P%d", startPeriod)
	}
	if endPeriod > v.policy.LabEndLimit(day) {
		if day == models.Thursday {
			return false, reject(RejectLabPeriodPolicy, day, startPeriod, "Thursday labs must end by P6 (got P%d-P%d)", startPeriod, endPeriod)
		}
		return false, reject(RejectLabPeriodPolicy, day, startPeriod, "lab exceeds the period limit (P%d-P%d)", startPeriod, endPeriod)
	}
	if v.HasLabOnDay(cohort, day, excludeIDs...) {
		return false, reject(RejectSingleLabPerDay, day, startPeriod, "section already has a lab block on %s", day)
	}
	for period := startPeriod; period <= endPeriod; period++ {
		if !v.cohortSlotFreeMulti(cohort, day, period, excludeIDs) {
			return false, reject(RejectCohortOccupied, day, period, "section already has a session on %s P%d", day, period)
		}
		if !v.slotFreeMulti("faculty:"+facultyID, day, period, excludeIDs) {
			return false, reject(RejectFacultyBusy, day, period, "faculty not available on %s P%d", day, period)
		}
		if !v.slotFreeMulti("labroom:"+labroomID, day, period, excludeIDs) {
			return false, reject(RejectLabRoomBusy, day, period, "lab room not available on %s P%d", day, period)
		}
	}
	return true, nil
}

func (v *ConstraintValidator) cohortSlotFreeMulti(cohort models.Cohort, day models.DayOfWeek, period int, excludeIDs []string) bool {
	return v.slotFreeMulti("cohort:"+cohort.YearSectionID, day, period, excludeIDs)
}

func (v *ConstraintValidator) slotFreeMulti(owner string, day models.DayOfWeek, period int, excludeIDs []string) bool {
	set := v.slots[slotKey{owner: owner, day: day, period: period}]
	for id := range set {
		excluded := false
		for _, skip := range excludeIDs {
			if id == skip {
				excluded = true
				break
			}
		}
		if !excluded {
			return false
		}
	}
	return true
}

// ValidateSchedule sweeps the whole version and returns every invariant
// violation it can describe. The sweep never mutates the index.
func (v *ConstraintValidator) ValidateSchedule() []models.ScheduleConflict {
	conflicts := make([]models.ScheduleConflict, 0)

	// Resource exclusivity: any slot key held by more than one entry.
	for key, set := range v.slots {
		if len(set) < 2 {
			continue
		}
		kind, resource := conflictKindOf(key.owner)
		conflicts = append(conflicts, models.ScheduleConflict{
			Kind:     kind,
			Resource: resource,
			Day:      key.day,
			Period:   key.period,
			Message:  fmt.Sprintf("%d entries share %s on %s P%d", len(set), key.owner, key.day, key.period),
		})
	}

	// Reserved club slots admit only CLUB sessions.
	for _, entry := range v.entries {
		if v.policy.PeriodReserved(entry.DayOfWeek, entry.Period) && entry.SessionType != models.SessionClub {
			conflicts = append(conflicts, models.ScheduleConflict{
				Kind:     models.ConflictReserved,
				Resource: entry.YearSectionID,
				Day:      entry.DayOfWeek,
				Period:   entry.Period,
				Message:  fmt.Sprintf("%s session occupies reserved club slot %s P%d", entry.SessionType, entry.DayOfWeek, entry.Period),
			})
		}
	}

	conflicts = append(conflicts, v.validateLabShapes()...)

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Day != conflicts[j].Day {
			return conflicts[i].Day.Index() < conflicts[j].Day.Index()
		}
		if conflicts[i].Period != conflicts[j].Period {
			return conflicts[i].Period < conflicts[j].Period
		}
		if conflicts[i].Kind != conflicts[j].Kind {
			return conflicts[i].Kind < conflicts[j].Kind
		}
		return conflicts[i].Resource < conflicts[j].Resource
	})
	return conflicts
}

// validateLabShapes checks contiguity, the start/end policy and the
// one-block-per-day cap for every (cohort, day) group of lab entries.
func (v *ConstraintValidator) validateLabShapes() []models.ScheduleConflict {
	conflicts := make([]models.ScheduleConflict, 0)
	for key, set := range v.labDays {
		periods := make([]int, 0, len(set))
		for id := range set {
			periods = append(periods, v.entries[id].Period)
		}
		sort.Ints(periods)

		if len(periods) > models.LabBlockPeriods {
			conflicts = append(conflicts, models.ScheduleConflict{
				Kind:     models.ConflictLabShape,
				Resource: key.yearSectionID,
				Day:      key.day,
				Period:   periods[0],
				Message:  fmt.Sprintf("section has %d lab periods on %s; one two-period block is allowed", len(periods), key.day),
			})
			continue
		}
		if len(periods)%models.LabBlockPeriods != 0 {
			conflicts = append(conflicts, models.ScheduleConflict{
				Kind:     models.ConflictLabShape,
				Resource: key.yearSectionID,
				Day:      key.day,
				Period:   periods[0],
				Message:  fmt.Sprintf("orphan lab period on %s P%d", key.day, periods[0]),
			})
			continue
		}
		start, end := periods[0], periods[len(periods)-1]
		if end != start+models.LabBlockPeriods-1 {
			conflicts = append(conflicts, models.ScheduleConflict{
				Kind:     models.ConflictLabShape,
				Resource: key.yearSectionID,
				Day:      key.day,
				Period:   start,
				Message:  fmt.Sprintf("lab periods P%d and P%d are not consecutive on %s", start, end, key.day),
			})
			continue
		}
		if start < 3 || end > v.policy.LabEndLimit(key.day) {
			conflicts = append(conflicts, models.ScheduleConflict{
				Kind:     models.ConflictLabShape,
				Resource: key.yearSectionID,
				Day:      key.day,
				Period:   start,
				Message:  fmt.Sprintf("lab block P%d-P%d violates the period policy on %s", start, end, key.day),
			})
		}
	}
	return conflicts
}

func conflictKindOf(owner string) (models.ConflictKind, string) {
	prefix, resource, _ := strings.Cut(owner, ":")
	switch prefix {
	case "faculty":
		return models.ConflictFaculty, resource
	case "classroom":
		return models.ConflictClassroom, resource
	case "labroom":
		return models.ConflictLabRoom, resource
	default:
		return models.ConflictCohort, resource
	}
}

func containsPeriod(periods []int, period int) bool {
	for _, p := range periods {
		if p == period {
			return true
		}
	}
	return false
}
