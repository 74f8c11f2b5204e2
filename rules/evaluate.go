/*
Package rules evaluates user-authored alert rules against roster rows.

PURPOSE:
  Users describe what they want flagged ("Valid To within the next 30 days",
  "Ward contains ICU") as a list of predicates. A list is an implicit AND;
  independent lists are kept in named rule sets and evaluated separately.

KEY CONCEPTS:
  - Multi-representation matching: Text operators test the raw cell, its
    locale display form, canonical ISO and the alternate slashed form
  - Calendar windows: within_days N is [today-(N-1), today],
    within_next_days N is [today, today+N]
  - Strict numbers: Numeric operators never coerce text

DESIGN PRINCIPLES:
  1. A rule whose column does not resolve never matches
  2. An empty rule list matches every row
  3. Text rules with an empty operand are unset and pass

SEE ALSO:
  - expiry.go: Registration expiry scanning
  - generic/types.go: AlertRule, Operator
*/
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/roster"
)

var numericRe = regexp.MustCompile(`^\s*-?\d+(?:\.\d+)?\s*$`)

// blankTokens are compared lower-case with trailing dots stripped.
var blankTokens = map[string]bool{"": true, "-": true, "n/a": true, "na": true, "none": true}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator evaluates rules as of Today.
type Evaluator struct {
	Table         *columns.Table
	Identity      roster.IdentityResolver
	Today         generic.Date
	DefaultLocale generic.Locale
}

// MatchResult is a row that satisfied every rule of a list.
type MatchResult struct {
	Row           generic.Row         `json:"row"`
	MatchedRules  []generic.AlertRule `json:"matched_rules"`
	StaffIdentity string              `json:"staff_identity"`
}

// Evaluate reports whether row satisfies every rule.
func (e Evaluator) Evaluate(row generic.Row, list []generic.AlertRule, loc generic.Locale) bool {
	_, ok := e.Matches(row, list, loc)
	return ok
}

// Matches is Evaluate returning the rules that held.
func (e Evaluator) Matches(row generic.Row, list []generic.AlertRule, loc generic.Locale) ([]generic.AlertRule, bool) {
	loc = e.locale(row, loc)
	matched := make([]generic.AlertRule, 0, len(list))
	for _, r := range list {
		if !e.holds(row, r, loc) {
			return nil, false
		}
		matched = append(matched, r)
	}
	return matched, true
}

// MatchAll evaluates list against each row using the row's own locale.
func (e Evaluator) MatchAll(rows []generic.Row, list []generic.AlertRule) []MatchResult {
	out := []MatchResult{}
	for _, row := range rows {
		matched, ok := e.Matches(row, list, row.Locale)
		if !ok {
			continue
		}
		out = append(out, MatchResult{Row: row, MatchedRules: matched, StaffIdentity: e.Identity.Extract(row)})
	}
	return out
}

func (e Evaluator) locale(row generic.Row, loc generic.Locale) generic.Locale {
	switch {
	case loc != generic.LocaleUnknown:
		return loc
	case row.Locale != generic.LocaleUnknown:
		return row.Locale
	case e.DefaultLocale != generic.LocaleUnknown:
		return e.DefaultLocale
	default:
		return generic.LocaleDayFirst
	}
}

// =============================================================================
// PREDICATES
// =============================================================================

func (e Evaluator) holds(row generic.Row, r generic.AlertRule, loc generic.Locale) bool {
	v, ok := e.Table.Resolve(row, r.Column)
	if !ok {
		return false
	}
	operand := strings.TrimSpace(r.Operand)

	switch r.Operator {
	case generic.OpContains, generic.OpNotContains:
		if operand == "" {
			return true
		}
		found := anyRepresentation(v, loc, func(rep string) bool {
			return strings.Contains(strings.ToLower(rep), strings.ToLower(operand))
		})
		return found == (r.Operator == generic.OpContains)

	case generic.OpEquals:
		if operand == "" {
			return true
		}
		if anyRepresentation(v, loc, func(rep string) bool { return strings.EqualFold(strings.TrimSpace(rep), operand) }) {
			return true
		}
		want, okWant := dates.Parse(operand, loc)
		got, okGot := dates.ParseValue(v, loc)
		return okWant && okGot && want.Equal(got)

	case generic.OpIsBlank:
		return IsBlank(v)
	case generic.OpIsNotBlank:
		return !IsBlank(v)

	case generic.OpWithinDays, generic.OpWithinNextDays:
		n, err := strconv.Atoi(operand)
		if err != nil || n < 0 {
			return false
		}
		d, ok := dates.ParseValue(v, loc)
		if !ok {
			return false
		}
		if r.Operator == generic.OpWithinDays {
			return generic.TrailingDays(e.Today, n).Contains(d)
		}
		return generic.LeadingDays(e.Today, n).Contains(d)

	case generic.OpNumericGT, generic.OpNumericGTE, generic.OpNumericLT, generic.OpNumericLTE:
		cell, ok := strictDecimal(v.Text())
		if !ok {
			return false
		}
		want, ok := strictDecimal(operand)
		if !ok {
			return false
		}
		c := cell.Cmp(want)
		switch r.Operator {
		case generic.OpNumericGT:
			return c > 0
		case generic.OpNumericGTE:
			return c >= 0
		case generic.OpNumericLT:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func anyRepresentation(v generic.Value, loc generic.Locale, pred func(string) bool) bool {
	for _, rep := range dates.Representations(v, loc) {
		if pred(rep) {
			return true
		}
	}
	return false
}

// IsBlank reports whether a cell is null or holds a blank token.
func IsBlank(v generic.Value) bool {
	if v.IsNull() {
		return true
	}
	s := strings.ToLower(strings.TrimSpace(v.Text()))
	s = strings.TrimRight(s, ".")
	return blankTokens[s]
}

func strictDecimal(s string) (decimal.Decimal, bool) {
	if !numericRe.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate rejects rules the evaluator could never satisfy meaningfully.
func Validate(r generic.AlertRule) error {
	fail := func(reason string) error {
		return &generic.RuleValidationError{Rule: r, Reason: reason}
	}
	if strings.TrimSpace(r.Column) == "" {
		return fail("column is required")
	}
	operand := strings.TrimSpace(r.Operand)
	switch r.Operator {
	case generic.OpContains, generic.OpNotContains, generic.OpEquals,
		generic.OpIsBlank, generic.OpIsNotBlank:
		return nil
	case generic.OpWithinDays, generic.OpWithinNextDays:
		if n, err := strconv.Atoi(operand); err != nil || n < 0 {
			return fail("operand must be a whole number of days")
		}
		return nil
	case generic.OpNumericGT, generic.OpNumericGTE, generic.OpNumericLT, generic.OpNumericLTE:
		if _, ok := strictDecimal(operand); !ok {
			return fail("operand must be a number")
		}
		return nil
	default:
		return fail("unknown operator")
	}
}

// ValidateAll validates every rule, returning the first failure.
func ValidateAll(list []generic.AlertRule) error {
	for _, r := range list {
		if err := Validate(r); err != nil {
			return err
		}
	}
	return nil
}

// GroupBySet splits rules into their named sets, keeping rule order.
func GroupBySet(list []generic.AlertRule) map[string][]generic.AlertRule {
	out := make(map[string][]generic.AlertRule)
	for _, r := range list {
		set := r.Set
		if set == "" {
			set = generic.DefaultRuleSet
		}
		out[set] = append(out[set], r)
	}
	return out
}
