package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/warp/roster-engine/generic"
)

var (
	isoRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:T.*)?$`)
	numericRe = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d{2}|\d{4})$`)
	// 12 Jan 2025, 12-Jan-2025, 12th January, 2025
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?[\s\-]+([A-Za-z]{3,})\.?,?[\s\-]+(\d{2}|\d{4})$`)
	// Jan 12, 2025 / January 12th 2025
	monthDayRe = regexp.MustCompile(`^([A-Za-z]{3,})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{2}|\d{4})$`)
)

var monthTable = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// genericLayouts is the last-resort tier. Numeric-only layouts without
// separators are deliberately absent so staff numbers never parse as dates.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"Monday, 2 January 2006",
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
	"January 2 2006",
	"2 January 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.ANSIC,
}

// ExpandYear applies the two-digit pivot: >50 is 19yy, otherwise 20yy.
func ExpandYear(y int) int {
	if y > 50 {
		return 1900 + y
	}
	return 2000 + y
}

// Parse reads a date-like string. Unknown locale reads as day-first.
func Parse(s string, loc generic.Locale) (generic.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return generic.Date{}, false
	}
	if loc == generic.LocaleUnknown {
		loc = generic.LocaleDayFirst
	}

	// (1) already canonical
	if m := isoRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if date, ok := generic.ValidDate(y, mo, d); ok {
			return date, true
		}
	}

	// (2)+(3) numeric per locale, then the opposite locale
	if m := numericRe.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[5])
		if len(m[5]) == 2 {
			y = ExpandYear(y)
		}
		if date, ok := numericAs(a, b, y, loc); ok {
			return date, true
		}
		if date, ok := numericAs(a, b, y, loc.Opposite()); ok {
			return date, true
		}
		return generic.Date{}, false
	}

	// (4) named months
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if date, ok := named(m[1], m[2], m[3]); ok {
			return date, true
		}
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if date, ok := named(m[2], m[1], m[3]); ok {
			return date, true
		}
	}

	// (5) generic layouts
	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return generic.DateOf(t), true
		}
	}
	return generic.Date{}, false
}

func numericAs(a, b, y int, loc generic.Locale) (generic.Date, bool) {
	if loc == generic.LocaleMonthFirst {
		return generic.ValidDate(y, a, b)
	}
	return generic.ValidDate(y, b, a)
}

func named(dayText, monthText, yearText string) (generic.Date, bool) {
	mon, ok := monthTable[strings.ToLower(monthText[:3])]
	if !ok {
		return generic.Date{}, false
	}
	day, _ := strconv.Atoi(dayText)
	year, _ := strconv.Atoi(yearText)
	if len(yearText) == 2 {
		year = ExpandYear(year)
	}
	return generic.ValidDate(year, mon, day)
}

// ParseValue reads a cell. Date cells pass through; numbers never parse
// because spreadsheets use them for identifiers far more than for dates.
func ParseValue(v generic.Value, loc generic.Locale) (generic.Date, bool) {
	switch v.Kind {
	case generic.KindDate:
		return v.Date, !v.Date.IsZero()
	case generic.KindString:
		return Parse(v.Str, loc)
	default:
		return generic.Date{}, false
	}
}
