package models

// Grid dimensions. Every cohort owns a 6-day by 7-period week.
const (
	PeriodsPerDay = 7
	FirstPeriod   = 1
	LastPeriod    = 7
	SlotsPerWeek  = 6 * PeriodsPerDay

	// LabBlockPeriods is the fixed lab block length in consecutive periods.
	LabBlockPeriods = 2

	// Lab blocks never start in the first two periods.
	labEarliestStart = 3
)

// SchedulingPolicy carries the slot rules that vary by operator choice.
// The zero value reserves only Thursday P7 and leaves tutorials free;
// DefaultPolicy also reserves Thursday P1.
type SchedulingPolicy struct {
	// ReserveThursdayFirst reserves Thursday P1 for clubs in addition to
	// the always-reserved Thursday P7.
	ReserveThursdayFirst bool
	// RestrictTutorials confines tutorial placements to P3-P6.
	RestrictTutorials bool
}

// DefaultPolicy reserves Thursday P1 and P7 and leaves tutorials free.
func DefaultPolicy() SchedulingPolicy {
	return SchedulingPolicy{ReserveThursdayFirst: true}
}

// ReservedClubPeriods lists the periods on the given day that only admit
// CLUB sessions.
func (p SchedulingPolicy) ReservedClubPeriods(day DayOfWeek) []int {
	if day != Thursday {
		return nil
	}
	if p.ReserveThursdayFirst {
		return []int{1, 7}
	}
	return []int{7}
}

// PeriodReserved reports whether (day, period) is a reserved club slot.
func (p SchedulingPolicy) PeriodReserved(day DayOfWeek, period int) bool {
	for _, reserved := range p.ReservedClubPeriods(day) {
		if reserved == period {
			return true
		}
	}
	return false
}

// LabEndLimit is the latest period a lab block may end on the given day.
func (p SchedulingPolicy) LabEndLimit(day DayOfWeek) int {
	if day == Thursday {
		return 6
	}
	return LastPeriod
}

// CandidatePeriods enumerates the legal starting periods for the session
// kind on the given day, in ascending order. Callers must not place a
// session outside this set.
func (p SchedulingPolicy) CandidatePeriods(day DayOfWeek, kind SessionType) []int {
	switch kind {
	case SessionLab:
		latest := p.LabEndLimit(day) - LabBlockPeriods + 1
		periods := make([]int, 0, latest-labEarliestStart+1)
		for start := labEarliestStart; start <= latest; start++ {
			periods = append(periods, start)
		}
		return periods
	case SessionClub:
		return p.ReservedClubPeriods(day)
	case SessionTutorial:
		if p.RestrictTutorials {
			return p.openPeriods(day, 3, 6)
		}
		return p.openPeriods(day, FirstPeriod, LastPeriod)
	case SessionLecture, SessionSeminar:
		return p.openPeriods(day, FirstPeriod, LastPeriod)
	case SessionExtracurricular:
		// Period 1 stays free so academic sessions keep first-period priority.
		return p.openPeriods(day, FirstPeriod+1, LastPeriod)
	default:
		return nil
	}
}

func (p SchedulingPolicy) openPeriods(day DayOfWeek, from, to int) []int {
	periods := make([]int, 0, to-from+1)
	for period := from; period <= to; period++ {
		if p.PeriodReserved(day, period) {
			continue
		}
		periods = append(periods, period)
	}
	return periods
}
