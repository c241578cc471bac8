package models

import "time"

// Branch represents an academic branch (CSE, ECE, ME, ...).
type Branch struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// YearSection identifies a cohort within a branch: (branch, year, section).
type YearSection struct {
	ID        string    `db:"id" json:"id"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	Year      int       `db:"year" json:"year"`
	Section   string    `db:"section" json:"section"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Cohort is the (branch, year, section) triple sharing one timetable.
type Cohort struct {
	BranchID      string `json:"branch_id"`
	YearSectionID string `json:"year_section_id"`
}
