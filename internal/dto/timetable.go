package dto

import (
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// GenerateTimetableRequest triggers a full generation run.
type GenerateTimetableRequest struct {
	Seed                *int64 `json:"seed"`
	IncludeClubs        bool   `json:"include_clubs"`
	FillExtracurricular bool   `json:"fill_extracurricular"`
}

// FailedSubject records a subject the placer could not fully schedule.
type FailedSubject struct {
	SubjectCode string `json:"subject_code"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason"`
}

// GenerateTimetableResponse summarises a generation run.
type GenerateTimetableResponse struct {
	VersionID        string          `json:"version_id"`
	Success          bool            `json:"success"`
	Seed             int64           `json:"seed"`
	ConflictCount    int             `json:"conflict_count"`
	UnallocatedCount int             `json:"unallocated_count"`
	GenerationTimeMS int64           `json:"generation_time_ms"`
	BacktrackCount   int             `json:"backtrack_count"`
	EntryCount       int             `json:"entry_count"`
	FailedSubjects   []FailedSubject `json:"failed_subjects"`
}

// DaySchedule groups entries for a single day ordered by period.
type DaySchedule struct {
	Day     models.DayOfWeek         `json:"day"`
	Entries []models.TimetableEntry  `json:"entries"`
}

// TimetableResponse returns the active version's entries grouped by day.
type TimetableResponse struct {
	VersionID   string        `json:"version_id"`
	VersionName string        `json:"version_name"`
	GeneratedAt time.Time     `json:"generated_at"`
	Days        []DaySchedule `json:"days"`
}

// CohortTimetableResponse returns one cohort's week ordered by (day, period).
type CohortTimetableResponse struct {
	VersionID string                  `json:"version_id"`
	Branch    string                  `json:"branch"`
	Year      int                     `json:"year"`
	Section   string                  `json:"section"`
	Entries   []models.TimetableEntry `json:"entries"`
}

// SubjectAllocation reports scheduled coverage against weekly demand.
type SubjectAllocation struct {
	SubjectID   string  `json:"subject_id"`
	SubjectCode string  `json:"subject_code"`
	Required    int     `json:"required"`
	Scheduled   int     `json:"scheduled"`
	Ratio       float64 `json:"ratio"`
}

// ValidationReport is the result of a whole-version conflict sweep.
type ValidationReport struct {
	VersionID     string                                          `json:"version_id"`
	Valid         bool                                            `json:"valid"`
	ConflictCount int                                             `json:"conflict_count"`
	Conflicts     map[models.ConflictKind][]models.ScheduleConflict `json:"conflicts"`
	Unallocated   []SubjectAllocation                             `json:"unallocated"`
}

// ResourceUtilization reports used slot share for one resource class.
type ResourceUtilization struct {
	ResourceCount int     `json:"resource_count"`
	UsedSlots     int     `json:"used_slots"`
	Utilization   float64 `json:"utilization"`
}

// StatisticsResponse aggregates entry and entity counts for dashboards.
type StatisticsResponse struct {
	VersionID      string                         `json:"version_id,omitempty"`
	EntriesByType  map[models.SessionType]int     `json:"entries_by_type"`
	TotalEntries   int                            `json:"total_entries"`
	Branches       int                            `json:"branches"`
	Cohorts        int                            `json:"cohorts"`
	Faculty        int                            `json:"faculty"`
	Classrooms     int                            `json:"classrooms"`
	LabRooms       int                            `json:"lab_rooms"`
	Subjects       int                            `json:"subjects"`
	FacultyUsage   ResourceUtilization            `json:"faculty_usage"`
	ClassroomUsage ResourceUtilization            `json:"classroom_usage"`
	LabRoomUsage   ResourceUtilization            `json:"labroom_usage"`
}
