package generic

// =============================================================================
// PERIOD - Inclusive span of calendar days
// =============================================================================

// Period is an inclusive [Start, End] span of days. Sickness episodes,
// RTW attribution windows and rule date windows are all Periods.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns all days in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len is the number of days in the period (0 for an inverted period).
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Extend returns the period with End pushed forward by n days.
func (p Period) Extend(n int) Period {
	return Period{Start: p.Start, End: p.End.AddDays(n)}
}

// Adjoins reports whether d starts no later than one day after the period ends.
func (p Period) Adjoins(d Date) bool {
	return d.BeforeOrEqual(p.End.AddDays(1))
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// TrailingDays is the window [today-(n-1), today].
func TrailingDays(today Date, n int) Period {
	return Period{Start: today.AddDays(-(n - 1)), End: today}
}

// LeadingDays is the window [today, today+n].
func LeadingDays(today Date, n int) Period {
	return Period{Start: today, End: today.AddDays(n)}
}
