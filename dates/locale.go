/*
Package dates resolves ambiguous date cells into canonical calendar dates.

PURPOSE:
  Roster exports mix DD/MM/YYYY and MM/DD/YYYY with no metadata saying which.
  This package decides a locale per file from the unambiguous evidence in
  the file itself, and parses any date-like cell given a locale.

KEY CONCEPTS:
  - Detection: Votes cast by slashed dates whose day part exceeds 12
  - Thresholds: Day-first wins at 0.5, month-first needs 0.75
  - Parse tiers: ISO, numeric per locale, opposite locale, month names,
    generic layouts

DESIGN PRINCIPLES:
  1. Never fail: Parse returns (Date{}, false) instead of an error
  2. Bias: When evidence is thin, day-first is the safer reading
  3. Canonical output: Normalized rows carry YYYY-MM-DD strings

SEE ALSO:
  - parse.go: Parse tiers
  - format.go: Display forms used by the rule engine
  - normalize.go: Row normalization
*/
package dates

import (
	"regexp"
	"strconv"

	"github.com/warp/roster-engine/generic"
)

// =============================================================================
// THRESHOLDS
// =============================================================================

// Thresholds are the confidence levels a side needs to win.
type Thresholds struct {
	DayFirst   float64
	MonthFirst float64
}

const (
	DefaultDayFirstThreshold   = 0.5
	DefaultMonthFirstThreshold = 0.75
)

func DefaultThresholds() Thresholds {
	return Thresholds{DayFirst: DefaultDayFirstThreshold, MonthFirst: DefaultMonthFirstThreshold}
}

// =============================================================================
// DETECTION
// =============================================================================

// Detection is the outcome of a locale vote over a corpus of rows.
type Detection struct {
	Locale     generic.Locale `json:"locale"`
	Confidence float64        `json:"confidence"`
	DayVotes   int            `json:"day_votes"`
	MonthVotes int            `json:"month_votes"`
	Ambiguous  int            `json:"ambiguous"`
}

var slashedRe = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})\s*$`)

// ResolveLocale scans every string cell for slashed numeric dates A/B/Y.
// A>12 votes day-first, B>12 votes month-first, both <=12 is ambiguous
// and casts no vote.
func ResolveLocale(rows []generic.Row, th Thresholds) Detection {
	var det Detection
	for _, row := range rows {
		for _, v := range row.Cells {
			if v.Kind != generic.KindString {
				continue
			}
			m := slashedRe.FindStringSubmatch(v.Str)
			if m == nil {
				continue
			}
			a, _ := strconv.Atoi(m[1])
			b, _ := strconv.Atoi(m[2])
			switch {
			case a > 12 && b <= 12:
				det.DayVotes++
			case b > 12 && a <= 12:
				det.MonthVotes++
			case a <= 12 && b <= 12:
				det.Ambiguous++
			}
		}
	}
	return decide(det, th)
}

func decide(det Detection, th Thresholds) Detection {
	total := det.DayVotes + det.MonthVotes
	if total == 0 {
		det.Locale = generic.LocaleUnknown
		det.Confidence = 0
		return det
	}
	top := det.DayVotes
	if det.MonthVotes > top {
		top = det.MonthVotes
	}
	det.Confidence = float64(top) / float64(total)

	switch {
	case det.DayVotes >= det.MonthVotes && det.Confidence >= th.DayFirst:
		det.Locale = generic.LocaleDayFirst
	case det.MonthVotes > det.DayVotes && det.Confidence >= th.MonthFirst:
		det.Locale = generic.LocaleMonthFirst
	default:
		det.Locale = generic.LocaleUnknown
	}
	return det
}

// EffectiveLocale picks the locale used to read a file: an explicit locale
// from ingestion wins, then a confident detection, then the fallback.
func EffectiveLocale(file generic.SourceFile, th Thresholds, fallback generic.Locale) (generic.Locale, Detection) {
	det := ResolveLocale(file.Rows, th)
	if file.Locale != generic.LocaleUnknown {
		return file.Locale, det
	}
	if det.Locale != generic.LocaleUnknown {
		return det.Locale, det
	}
	if fallback == generic.LocaleUnknown {
		fallback = generic.LocaleDayFirst
	}
	return fallback, det
}
