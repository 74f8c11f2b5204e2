package roster

import (
	"strings"
	"unicode"

	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/generic"
)

// =============================================================================
// SHIFT PRIORITY
// =============================================================================

// ShiftPriority orders duty records that land on the same date.
type ShiftPriority int

const (
	PriorityUnrecognized ShiftPriority = -1
	PriorityRest         ShiftPriority = 0
	PriorityStandard     ShiftPriority = 2
	PriorityCombined     ShiftPriority = 3
)

func (p ShiftPriority) String() string {
	switch p {
	case PriorityRest:
		return "rest"
	case PriorityStandard:
		return "standard"
	case PriorityCombined:
		return "combined"
	default:
		return "unrecognized"
	}
}

// DefaultShiftField is the canonical shift-type column.
const DefaultShiftField = "Shift Type"

// ClassificationSource says how a priority was obtained.
type ClassificationSource string

const (
	SourceColumn ClassificationSource = "column"
	SourceScan   ClassificationSource = "scan"
)

// Classification is the result of classifying one row.
type Classification struct {
	Priority ShiftPriority        `json:"priority"`
	Source   ClassificationSource `json:"source"`
	Raw      string               `json:"raw"`
}

// Counted reports whether the record belongs on a duty timeline.
func (c Classification) Counted() bool { return c.Priority > PriorityRest }

// ExclusionReason is the diagnostic reason for an uncounted record.
func (c Classification) ExclusionReason() generic.DiagnosticReason {
	if c.Priority == PriorityRest {
		return generic.ReasonRestShift
	}
	return generic.ReasonNotCounted
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// ShiftClassifier maps shift-type text to a priority. Codes and synonyms
// are matched as whole lower-case tokens.
type ShiftClassifier struct {
	NonWorkingCodes  []string
	DayNightSynonyms []string
}

// DefaultNonWorkingCodes are rota codes for days that are not worked.
var DefaultNonWorkingCodes = []string{"off", "leave", "al", "hol", "holiday", "sick", "absent"}

// DefaultDayNightSynonyms are additional tokens that mean a worked shift.
var DefaultDayNightSynonyms = []string{"early", "late", "long", "ld", "nights", "days", "twilight"}

func NewShiftClassifier() ShiftClassifier {
	return ShiftClassifier{
		NonWorkingCodes:  append([]string(nil), DefaultNonWorkingCodes...),
		DayNightSynonyms: append([]string(nil), DefaultDayNightSynonyms...),
	}
}

// Classify ranks shift-type text. Rest wins over every other token so a
// cell like "Rest Day" is never counted as a day shift.
func (c ShiftClassifier) Classify(text string) ShiftPriority {
	toks := tokens(text)
	if len(toks) == 0 {
		return PriorityUnrecognized
	}
	has := func(words ...string) bool {
		for _, t := range toks {
			for _, w := range words {
				if t == strings.ToLower(w) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("rest") || has(c.NonWorkingCodes...):
		return PriorityRest
	case has("combined"):
		return PriorityCombined
	case has("day", "night") || has(c.DayNightSynonyms...):
		return PriorityStandard
	default:
		return PriorityUnrecognized
	}
}

// ClassifyRow classifies a row using the shift-type column when it
// resolves. Without the column every cell is scanned for a whole-word
// "rest"; a row with neither is unrecognized and never counts as a duty,
// so a stray date column in an HR or registration export adds no shifts.
func (c ShiftClassifier) ClassifyRow(row generic.Row, table *columns.Table, field string) Classification {
	if field == "" {
		field = DefaultShiftField
	}
	if v, ok := table.Resolve(row, field); ok {
		raw := v.Text()
		return Classification{Priority: c.Classify(raw), Source: SourceColumn, Raw: raw}
	}
	for _, k := range row.Keys() {
		raw := row.Cells[k].Text()
		for _, t := range tokens(raw) {
			if t == "rest" {
				return Classification{Priority: PriorityRest, Source: SourceScan, Raw: raw}
			}
		}
	}
	return Classification{Priority: PriorityUnrecognized, Source: SourceScan}
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
