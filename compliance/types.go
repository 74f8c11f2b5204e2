/*
Package compliance reconciles sickness, duty and RTW evidence per person.

PURPOSE:
  Sickness logs, rosters and RTW interview records arrive as separate files
  with overlapping, sometimes contradictory rows. This package groups every
  row by staff identity and answers, per person: what is the current sickness
  episode, has the person worked since it ended, and has a return-to-work
  interview been recorded for it.

KEY CONCEPTS:
  - SicknessRange: Raw start/end evidence, merged into episodes
  - Duty timeline: Counted shift dates, one record per date (highest priority)
  - RTW attribution: Dated flags inside [start, end+post window], undated
    flags only from rows that built the episode
  - ComplianceFact: The per-person answer, recomputed from scratch every run

DESIGN PRINCIPLES:
  1. Pure: Aggregate reads rows and options, returns a fresh Result
  2. Fail soft: A bad field becomes a Diagnostic, never an error
  3. Conservative: Evidence that cannot be attributed is never attributed

SEE ALSO:
  - sickness.go: Episode merging
  - aggregate.go: Evidence collection and derived facts
  - roster/: Identity extraction and shift classification
*/
package compliance

import (
	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// OPTIONS
// =============================================================================

const (
	DefaultPostWindowDays = 7
	MaxPostWindowDays     = 30
)

// Fields names the canonical columns read by the aggregator.
type Fields struct {
	SicknessStart  string `yaml:"sickness_start" json:"sickness_start"`
	SicknessEnd    string `yaml:"sickness_end" json:"sickness_end"`
	SicknessReason string `yaml:"sickness_reason" json:"sickness_reason"`
	DutyDate       string `yaml:"duty_date" json:"duty_date"`
	ShiftType      string `yaml:"shift_type" json:"shift_type"`
	RTW            string `yaml:"rtw" json:"rtw"`
	RTWDate        string `yaml:"rtw_date" json:"rtw_date"`
}

func DefaultFields() Fields {
	return Fields{
		SicknessStart:  "Sickness Start",
		SicknessEnd:    "Sickness End",
		SicknessReason: "Sickness Reason",
		DutyDate:       "Shift Date",
		ShiftType:      roster.DefaultShiftField,
		RTW:            "RTW",
		RTWDate:        "RTW Date",
	}
}

// Options configures one aggregation pass.
type Options struct {
	Table          *columns.Table
	IdentityFields []string
	Classifier     roster.ShiftClassifier
	Fields         Fields

	// PostWindowDays extends an episode's end for dated RTW flags.
	PostWindowDays int

	// MergeOnReason only merges adjacent ranges whose reasons match.
	MergeOnReason bool

	// DefaultLocale reads rows whose own locale is unknown.
	DefaultLocale generic.Locale

	Today generic.Date
}

func DefaultOptions(today generic.Date) Options {
	return Options{
		Classifier:     roster.NewShiftClassifier(),
		Fields:         DefaultFields(),
		PostWindowDays: DefaultPostWindowDays,
		DefaultLocale:  generic.LocaleDayFirst,
		Today:          today,
	}
}

// =============================================================================
// EVIDENCE
// =============================================================================

// SicknessRange is one sickness span. Raw ranges have Count 1; merged
// episodes accumulate the counts and sources of their parts.
type SicknessRange struct {
	Start     generic.Date     `json:"start"`
	End       generic.Date     `json:"end"`
	Reason    string           `json:"reason,omitempty"`
	Count     int              `json:"count"`
	Sources   []generic.RowRef `json:"sources"`
	OpenEnded bool             `json:"open_ended,omitempty"`
}

// Period is the inclusive calendar span of the range.
func (s SicknessRange) Period() generic.Period {
	return generic.Period{Start: s.Start, End: s.End}
}

func (s SicknessRange) hasSource(ref generic.RowRef) bool {
	for _, src := range s.Sources {
		if src == ref {
			return true
		}
	}
	return false
}

// DutyRecord is one counted duty on one date.
type DutyRecord struct {
	Staff    string                `json:"staff"`
	Date     generic.Date          `json:"date"`
	Priority roster.ShiftPriority  `json:"priority"`
	Source   generic.RowRef        `json:"source"`
	Shift    roster.Classification `json:"shift"`
}

// RTWFlag is a return-to-work record. Date is nil when the row carried no
// usable RTW date.
type RTWFlag struct {
	Raw         string         `json:"raw"`
	Affirmative bool           `json:"affirmative"`
	Date        *generic.Date  `json:"date,omitempty"`
	Source      generic.RowRef `json:"source"`
}

// =============================================================================
// RESULT
// =============================================================================

// ComplianceFact is the per-person outcome.
//
// ContinuingSickness is OngoingSickness OR RecurringSickness; the two
// underlying signals are exposed separately.
type ComplianceFact struct {
	Staff                  string          `json:"staff"`
	CurrentSicknessEpisode *SicknessRange  `json:"current_sickness_episode,omitempty"`
	Episodes               []SicknessRange `json:"episodes,omitempty"`
	NextDuty               *generic.Date   `json:"next_duty,omitempty"`
	LastDuty               *generic.Date   `json:"last_duty,omitempty"`
	HadShiftAfterSickness  bool            `json:"had_shift_after_sickness"`
	RTWConfirmed           bool            `json:"rtw_confirmed"`
	ContinuingSickness     bool            `json:"continuing_sickness"`
	OngoingSickness        bool            `json:"ongoing_sickness"`
	RecurringSickness      bool            `json:"recurring_sickness"`
	RawSicknessRanges      int             `json:"raw_sickness_ranges"`
	Duties                 []DutyRecord    `json:"duties,omitempty"`
	Flags                  []RTWFlag       `json:"rtw_flags,omitempty"`
}

// NeedsRTW reports an episode followed by a shift with no confirmed RTW.
func (f ComplianceFact) NeedsRTW() bool {
	return f.CurrentSicknessEpisode != nil && f.HadShiftAfterSickness && !f.RTWConfirmed
}

// Result is the output of Aggregate.
type Result struct {
	Facts       map[string]ComplianceFact `json:"facts"`
	Diagnostics []generic.Diagnostic      `json:"diagnostics"`
}
