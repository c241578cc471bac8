package service

import (
	"sort"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// placementTask is one atomic unit of scheduling work: place Remaining
// sessions of Kind for Subject. For labs Remaining counts two-period
// blocks, not individual periods.
type placementTask struct {
	Subject   models.Subject
	Kind      models.SessionType
	Remaining int
	Duration  int
	order     int
}

// taskPriority ranks session kinds; higher places first. Labs go first
// because their contiguity and room requirements make them the hardest to
// fit into a partially filled grid.
func taskPriority(kind models.SessionType) int {
	switch kind {
	case models.SessionLab:
		return 3
	case models.SessionLecture:
		return 2
	case models.SessionTutorial:
		return 1
	case models.SessionSeminar:
		return 0
	default:
		return -1
	}
}

// buildPlacementTasks expands subject weekly demand into prioritized tasks,
// subtracting entries already present in the target version so a partial
// rerun resumes instead of double-scheduling. Ties are broken by subject
// catalogue order to keep seeded runs reproducible.
func buildPlacementTasks(subjects []models.Subject, existing []models.TimetableEntry) []placementTask {
	type subjectKindKey struct {
		subjectID string
		kind      models.SessionType
	}
	present := make(map[subjectKindKey]int)
	for _, entry := range existing {
		if entry.SubjectID == nil || !entry.SessionType.Academic() {
			continue
		}
		present[subjectKindKey{subjectID: *entry.SubjectID, kind: entry.SessionType}]++
	}

	kinds := []models.SessionType{
		models.SessionLab,
		models.SessionLecture,
		models.SessionTutorial,
		models.SessionSeminar,
	}

	tasks := make([]placementTask, 0, len(subjects))
	for idx, subject := range subjects {
		if !subject.Active {
			continue
		}
		for _, kind := range kinds {
			demand := subject.WeeklyDemand(kind)
			if demand <= 0 {
				continue
			}
			have := present[subjectKindKey{subjectID: subject.ID, kind: kind}]

			remaining := demand - have
			duration := 1
			if kind == models.SessionLab {
				// Labs are counted in blocks; partially present blocks
				// round up so the placer never splits one.
				demandBlocks := (demand + models.LabBlockPeriods - 1) / models.LabBlockPeriods
				haveBlocks := (have + models.LabBlockPeriods - 1) / models.LabBlockPeriods
				remaining = demandBlocks - haveBlocks
				duration = models.LabBlockPeriods
			}
			if remaining <= 0 {
				continue
			}
			tasks = append(tasks, placementTask{
				Subject:   subject,
				Kind:      kind,
				Remaining: remaining,
				Duration:  duration,
				order:     idx,
			})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := taskPriority(tasks[i].Kind), taskPriority(tasks[j].Kind)
		if pi != pj {
			return pi > pj
		}
		return tasks[i].order < tasks[j].order
	})
	return tasks
}
