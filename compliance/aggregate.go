package compliance

import (
	"sort"
	"strings"

	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/roster"
)

// affirmative are the RTW tokens that confirm an interview took place.
var affirmative = map[string]bool{"y": true, "yes": true, "true": true, "1": true}

// IsAffirmative reports whether an RTW cell confirms an interview.
func IsAffirmative(raw string) bool {
	return affirmative[strings.ToLower(strings.TrimSpace(raw))]
}

// evidence is everything collected for one person before facts are derived.
type evidence struct {
	sickness []SicknessRange
	duty     map[generic.Date]DutyRecord
	flags    []RTWFlag
}

type aggregator struct {
	opts     Options
	identity roster.IdentityResolver
	people   map[string]*evidence
	diags    []generic.Diagnostic
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate builds a ComplianceFact for every identity with any evidence.
// Rows are read in order; later rows win same-date, same-priority ties.
func Aggregate(rows []generic.Row, opts Options) Result {
	if opts.Fields == (Fields{}) {
		opts.Fields = DefaultFields()
	}
	if opts.PostWindowDays < 0 {
		opts.PostWindowDays = 0
	}
	a := &aggregator{
		opts:     opts,
		identity: roster.NewIdentityResolver(opts.Table, opts.IdentityFields),
		people:   make(map[string]*evidence),
	}
	for _, row := range rows {
		a.collect(row)
	}

	facts := make(map[string]ComplianceFact, len(a.people))
	for staff, ev := range a.people {
		facts[staff] = a.derive(staff, ev)
	}
	if a.diags == nil {
		a.diags = []generic.Diagnostic{}
	}
	return Result{Facts: facts, Diagnostics: a.diags}
}

// NeedsRTW lists identities with an episode, a shift after it and no
// confirmed RTW, sorted.
func NeedsRTW(facts map[string]ComplianceFact) []string {
	out := []string{}
	for staff, f := range facts {
		if f.NeedsRTW() {
			out = append(out, staff)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// COLLECTION
// =============================================================================

func (a *aggregator) collect(row generic.Row) {
	f := a.opts.Fields
	startKey, startRaw, hasStart := a.text(row, f.SicknessStart)
	endKey, endRaw, hasEnd := a.text(row, f.SicknessEnd)
	rtwRaw, hasRTW, rtwDateKey, rtwDateRaw, hasRTWDate := a.rtwText(row)
	if !hasRTW {
		// An RTW date on its own is not a flag.
		rtwDateRaw, hasRTWDate = "", false
	}
	dutyKey, dutyRaw, hasDuty := a.text(row, f.DutyDate)
	if hasDuty && ((hasStart && dutyKey == startKey) || (hasEnd && dutyKey == endKey) || (hasRTWDate && dutyKey == rtwDateKey)) {
		// The tolerant tier put the duty date on a column another field owns.
		hasDuty = false
	}

	if !hasStart && !hasEnd && !hasDuty && !hasRTW {
		return
	}

	staff := a.identity.Extract(row)
	if staff == "" {
		a.diag(row, generic.ReasonNoIdentity, firstNonEmpty(startRaw, endRaw, dutyRaw, rtwRaw), "", "")
		return
	}
	ev := a.person(staff)
	loc := row.Locale
	if loc == generic.LocaleUnknown {
		loc = a.opts.DefaultLocale
	}

	if hasStart || hasEnd {
		if r, ok := a.sickness(row, staff, loc, startRaw, hasStart, endRaw, hasEnd); ok {
			ev.sickness = append(ev.sickness, r)
		}
	}
	if hasDuty {
		a.duty(row, staff, loc, dutyRaw, ev)
	}
	if hasRTW {
		flag := RTWFlag{Raw: rtwRaw, Affirmative: IsAffirmative(rtwRaw), Source: row.Ref}
		if hasRTWDate {
			if d, ok := dates.Parse(rtwDateRaw, loc); ok {
				flag.Date = &d
			} else {
				a.diag(row, generic.ReasonDateUnparsable, rtwDateRaw, f.RTWDate, staff)
			}
		}
		ev.flags = append(ev.flags, flag)
	}
}

func (a *aggregator) sickness(row generic.Row, staff string, loc generic.Locale, startRaw string, hasStart bool, endRaw string, hasEnd bool) (SicknessRange, bool) {
	f := a.opts.Fields
	var start, end generic.Date
	var startOK, endOK bool
	if hasStart {
		if start, startOK = dates.Parse(startRaw, loc); !startOK {
			a.diag(row, generic.ReasonDateUnparsable, startRaw, f.SicknessStart, staff)
		}
	}
	if hasEnd {
		if end, endOK = dates.Parse(endRaw, loc); !endOK {
			a.diag(row, generic.ReasonDateUnparsable, endRaw, f.SicknessEnd, staff)
		}
	}

	r := SicknessRange{Count: 1, Sources: []generic.RowRef{row.Ref}}
	if v, ok := a.opts.Table.Resolve(row, f.SicknessReason); ok {
		r.Reason = strings.TrimSpace(v.Text())
	}
	switch {
	case startOK && endOK:
		if end.Before(start) {
			a.diag(row, generic.ReasonRangeReversed, startRaw+" > "+endRaw, f.SicknessEnd, staff)
			start, end = end, start
		}
		r.Start, r.End = start, end
	case startOK:
		// Open-ended absence: ongoing until today.
		r.Start, r.End, r.OpenEnded = start, start, true
		if a.opts.Today.After(start) {
			r.End = a.opts.Today
		}
	case endOK:
		r.Start, r.End = end, end
	default:
		return SicknessRange{}, false
	}
	return r, true
}

func (a *aggregator) duty(row generic.Row, staff string, loc generic.Locale, raw string, ev *evidence) {
	d, ok := dates.Parse(raw, loc)
	if !ok {
		a.diag(row, generic.ReasonDateUnparsable, raw, a.opts.Fields.DutyDate, staff)
		return
	}
	shift := a.opts.Classifier.ClassifyRow(row, a.opts.Table, a.opts.Fields.ShiftType)
	if !shift.Counted() {
		a.diag(row, shift.ExclusionReason(), shift.Raw, a.opts.Fields.ShiftType, staff)
		return
	}
	rec := DutyRecord{Staff: staff, Date: d, Priority: shift.Priority, Source: row.Ref, Shift: shift}
	if existing, ok := ev.duty[d]; ok && existing.Priority > rec.Priority {
		return
	}
	ev.duty[d] = rec
}

// text resolves a field to its header and trimmed text; absent and blank
// cells report false.
func (a *aggregator) text(row generic.Row, field string) (string, string, bool) {
	if field == "" {
		return "", "", false
	}
	key, ok := a.opts.Table.Key(row, field)
	s, ok := cellText(row, key, ok)
	return key, s, ok
}

// rtwText resolves the RTW flag and RTW date columns. When the tolerant
// tier lands both on one header, a header naming a date keeps the date and
// the flag is looked up again without it, and vice versa.
func (a *aggregator) rtwText(row generic.Row) (flag string, hasFlag bool, dateKey, date string, hasDate bool) {
	f := a.opts.Fields
	flagKey, flagOK := a.opts.Table.Key(row, f.RTW)
	dateKey, dateOK := a.opts.Table.Key(row, f.RTWDate)
	if flagOK && dateOK && flagKey == dateKey {
		rest := row.Clone()
		delete(rest.Cells, flagKey)
		if strings.Contains(columns.Normalize(flagKey), "date") {
			flagKey, flagOK = a.opts.Table.Key(rest, f.RTW)
		} else {
			dateKey, dateOK = a.opts.Table.Key(rest, f.RTWDate)
		}
	}
	flag, hasFlag = cellText(row, flagKey, flagOK && f.RTW != "")
	date, hasDate = cellText(row, dateKey, dateOK && f.RTWDate != "")
	return flag, hasFlag, dateKey, date, hasDate
}

func cellText(row generic.Row, key string, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	v := row.Cells[key]
	if v.IsNull() {
		return "", false
	}
	s := strings.TrimSpace(v.Text())
	return s, s != ""
}

func (a *aggregator) person(staff string) *evidence {
	ev, ok := a.people[staff]
	if !ok {
		ev = &evidence{duty: make(map[generic.Date]DutyRecord)}
		a.people[staff] = ev
	}
	return ev
}

func (a *aggregator) diag(row generic.Row, reason generic.DiagnosticReason, raw, field, staff string) {
	a.diags = append(a.diags, generic.Diagnostic{
		Source:   row.Ref,
		Reason:   reason,
		RawValue: raw,
		Field:    field,
		Staff:    staff,
	})
}

// =============================================================================
// DERIVED FACTS
// =============================================================================

func (a *aggregator) derive(staff string, ev *evidence) ComplianceFact {
	today := a.opts.Today
	fact := ComplianceFact{Staff: staff, RawSicknessRanges: len(ev.sickness)}

	for d, rec := range ev.duty {
		fact.Duties = append(fact.Duties, rec)
		if d.AfterOrEqual(today) && (fact.NextDuty == nil || d.Before(*fact.NextDuty)) {
			fact.NextDuty = &d
		}
		if d.BeforeOrEqual(today) && (fact.LastDuty == nil || d.After(*fact.LastDuty)) {
			fact.LastDuty = &d
		}
	}

	sort.Slice(fact.Duties, func(i, j int) bool { return fact.Duties[i].Date.Before(fact.Duties[j].Date) })

	episodes := MergeSickness(ev.sickness, a.opts.MergeOnReason)
	if len(episodes) == 0 {
		return fact
	}
	fact.Episodes = episodes
	current := episodes[len(episodes)-1]
	fact.CurrentSicknessEpisode = &current

	window := current.Period().Extend(a.opts.PostWindowDays)
	for _, flag := range ev.flags {
		attributed := false
		if flag.Date != nil {
			attributed = window.Contains(*flag.Date)
		} else {
			attributed = current.hasSource(flag.Source)
		}
		if !attributed {
			continue
		}
		fact.Flags = append(fact.Flags, flag)
		if flag.Affirmative {
			fact.RTWConfirmed = true
		}
	}

	fact.HadShiftAfterSickness = fact.LastDuty != nil && fact.LastDuty.AfterOrEqual(current.End)
	fact.OngoingSickness = current.OpenEnded || current.End.AfterOrEqual(today)
	fact.RecurringSickness = len(ev.sickness) > 1
	fact.ContinuingSickness = fact.OngoingSickness || fact.RecurringSickness
	return fact
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
