package dates

import (
	"fmt"

	"github.com/warp/roster-engine/generic"
)

// Format renders a date the way a user of the locale reads it:
// DD/MM/YYYY for day-first (and unknown), MM/DD/YYYY for month-first.
func Format(d generic.Date, loc generic.Locale) string {
	if loc == generic.LocaleMonthFirst {
		return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
	}
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// Display is the on-screen form of a cell: dates in the locale's slashed
// form, everything else as plain text.
func Display(v generic.Value, loc generic.Locale) string {
	if d, ok := ParseValue(v, loc); ok {
		return Format(d, loc)
	}
	return v.Text()
}

// Representations lists every textual form a user might type to find this
// cell: the raw text, the locale display form, canonical ISO and the
// alternate slashed form. Duplicates are removed; order is stable.
func Representations(v generic.Value, loc generic.Locale) []string {
	if v.IsNull() {
		return []string{""}
	}
	out := []string{v.Text()}
	d, ok := ParseValue(v, loc)
	if !ok {
		return out
	}
	if loc == generic.LocaleUnknown {
		loc = generic.LocaleDayFirst
	}
	for _, s := range []string{Format(d, loc), d.String(), Format(d, loc.Opposite())} {
		if !containsString(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
