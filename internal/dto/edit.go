package dto

import "github.com/noah-isme/college-timetable-api/internal/models"

// LockEntryRequest flips the lock flag on an entry of the active version.
type LockEntryRequest struct {
	EntryID string `json:"entry_id" validate:"required"`
	Locked  bool   `json:"locked"`
}

// MoveEntryRequest relocates a non-lab entry to another slot.
type MoveEntryRequest struct {
	EntryID string           `json:"entry_id" validate:"required"`
	Day     models.DayOfWeek `json:"day" validate:"required"`
	Period  int              `json:"period" validate:"required,min=1,max=7"`
}

// SwapEntriesRequest exchanges the slots of two non-lab entries.
type SwapEntriesRequest struct {
	FirstID  string `json:"first_id" validate:"required"`
	SecondID string `json:"second_id" validate:"required"`
}

// AssignEntryRequest creates a new entry in the active version. For LAB the
// period is the block start and both periods are created atomically.
type AssignEntryRequest struct {
	Branch      string             `json:"branch" validate:"required"`
	Year        int                `json:"year" validate:"required,min=1,max=4"`
	Section     string             `json:"section" validate:"required"`
	Day         models.DayOfWeek   `json:"day" validate:"required"`
	Period      int                `json:"period" validate:"required,min=1,max=7"`
	SessionType models.SessionType `json:"session_type" validate:"required"`
	SubjectID   *string            `json:"subject_id"`
	Locked      bool               `json:"locked"`
}
