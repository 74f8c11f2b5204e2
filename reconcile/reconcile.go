/*
Package reconcile runs the full engine over one snapshot of files and rules.

PURPOSE:
  Hosts (HTTP server, CLI) hold files, the alias table and alert rules. This
  package takes an immutable snapshot of them and produces one Report: per
  file locale decisions, compliance facts, the needs-RTW list, rule matches
  per rule set, expiry buckets and the diagnostic trail.

DATA FLOW:
  files -> locale per file -> normalized rows
        -> compliance.Aggregate         -> facts, needs RTW, diagnostics
        -> rules.Evaluator per rule set -> matches
        -> rules.ExpiryScanner          -> expiry buckets

DESIGN PRINCIPLES:
  1. Pure: Inputs are never modified; the same Input gives the same Report
  2. Independent: Rule sets do not see each other; order is irrelevant

SEE ALSO:
  - api/report.go: Cached report refreshed by the server
  - cmd/roster/check.go: One-shot CLI run
*/
package reconcile

import (
	"sort"

	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/rules"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the tunables of a run.
type Settings struct {
	Thresholds       dates.Thresholds
	DefaultLocale    generic.Locale
	PostWindowDays   int
	MergeOnReason    bool
	IdentityFields   []string
	Fields           compliance.Fields
	NonWorkingCodes  []string
	DayNightSynonyms []string
	NameField        string
	ExpiryField      string
	ExpiryHorizons   []int
}

func DefaultSettings() Settings {
	return Settings{
		Thresholds:       dates.DefaultThresholds(),
		DefaultLocale:    generic.LocaleDayFirst,
		PostWindowDays:   compliance.DefaultPostWindowDays,
		IdentityFields:   append([]string(nil), roster.DefaultIdentityFields...),
		Fields:           compliance.DefaultFields(),
		NonWorkingCodes:  append([]string(nil), roster.DefaultNonWorkingCodes...),
		DayNightSynonyms: append([]string(nil), roster.DefaultDayNightSynonyms...),
		NameField:        rules.DefaultNameField,
		ExpiryField:      rules.DefaultExpiryField,
		ExpiryHorizons:   append([]int(nil), rules.DefaultHorizons...),
	}
}

// =============================================================================
// INPUT / REPORT
// =============================================================================

// Input is one immutable snapshot.
type Input struct {
	Files    []generic.SourceFile
	Aliases  []generic.AliasRule
	Rules    []generic.AlertRule
	Today    generic.Date
	Settings Settings
}

// FromSnapshot builds an Input from a store snapshot.
func FromSnapshot(snap generic.Snapshot, today generic.Date, settings Settings) Input {
	return Input{Files: snap.Files, Aliases: snap.Aliases, Rules: snap.Rules, Today: today, Settings: settings}
}

// FileSummary is the locale decision for one file.
type FileSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Rows      int             `json:"rows"`
	Locale    generic.Locale  `json:"locale"`
	Explicit  bool            `json:"explicit"`
	Detection dates.Detection `json:"detection"`
}

// Report is the full output of a run.
type Report struct {
	Today          generic.Date                         `json:"today"`
	Files          []FileSummary                        `json:"files"`
	Facts          map[string]compliance.ComplianceFact `json:"facts"`
	NeedsRTW       []string                             `json:"needs_rtw"`
	Matches        map[string][]rules.MatchResult       `json:"matches"`
	Expiry         []rules.HorizonBucket                `json:"expiry"`
	Diagnostics    []generic.Diagnostic                 `json:"diagnostics"`
	AliasConflicts []string                             `json:"alias_conflicts,omitempty"`
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the engine over in.
func Run(in Input) Report {
	s := in.Settings
	table := columns.NewTable(in.Aliases)
	identity := roster.NewIdentityResolver(table, s.IdentityFields)

	report := Report{
		Today:   in.Today,
		Files:   make([]FileSummary, 0, len(in.Files)),
		Matches: make(map[string][]rules.MatchResult),
	}
	for _, c := range table.Conflicts() {
		report.AliasConflicts = append(report.AliasConflicts, c.Error())
	}

	var rows []generic.Row
	for _, f := range in.Files {
		normalized, loc, det := dates.NormalizeFile(f, s.Thresholds, s.DefaultLocale)
		report.Files = append(report.Files, FileSummary{
			ID:        f.ID,
			Name:      f.Name,
			Rows:      len(f.Rows),
			Locale:    loc,
			Explicit:  f.Locale != generic.LocaleUnknown,
			Detection: det,
		})
		rows = append(rows, normalized...)
	}

	agg := compliance.Aggregate(rows, compliance.Options{
		Table:          table,
		IdentityFields: s.IdentityFields,
		Classifier:     roster.ShiftClassifier{NonWorkingCodes: s.NonWorkingCodes, DayNightSynonyms: s.DayNightSynonyms},
		Fields:         s.Fields,
		PostWindowDays: s.PostWindowDays,
		MergeOnReason:  s.MergeOnReason,
		DefaultLocale:  s.DefaultLocale,
		Today:          in.Today,
	})
	report.Facts = agg.Facts
	report.NeedsRTW = compliance.NeedsRTW(agg.Facts)
	report.Diagnostics = agg.Diagnostics

	eval := rules.Evaluator{Table: table, Identity: identity, Today: in.Today, DefaultLocale: s.DefaultLocale}
	for set, list := range rules.GroupBySet(in.Rules) {
		report.Matches[set] = eval.MatchAll(rows, list)
	}

	scanner := rules.ExpiryScanner{
		Table:         table,
		Identity:      identity,
		NameField:     s.NameField,
		ExpiryField:   s.ExpiryField,
		Today:         in.Today,
		DefaultLocale: s.DefaultLocale,
	}
	report.Expiry = scanner.ScanHorizons(rows, s.ExpiryHorizons)
	return report
}

// RuleSets returns the names of the evaluated rule sets, sorted.
func (r Report) RuleSets() []string {
	out := make([]string, 0, len(r.Matches))
	for set := range r.Matches {
		out = append(out, set)
	}
	sort.Strings(out)
	return out
}

// Fact returns the compliance fact for a raw or normalized staff identity.
func (r Report) Fact(staff string) (compliance.ComplianceFact, bool) {
	f, ok := r.Facts[roster.NormalizeIdentity(staff)]
	return f, ok
}

// DiagnosticsFor filters the diagnostic trail to one staff identity.
func (r Report) DiagnosticsFor(staff string) []generic.Diagnostic {
	id := roster.NormalizeIdentity(staff)
	out := []generic.Diagnostic{}
	for _, d := range r.Diagnostics {
		if d.Staff == id {
			out = append(out, d)
		}
	}
	return out
}
