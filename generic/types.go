/*
Package generic provides the shared data model of the roster engine.

PURPOSE:
  This package contains the domain-agnostic types every other package speaks:
  raw rows as they arrive from ingestion, calendar dates, alias and alert rule
  definitions, and the diagnostic trail. It has no behaviour beyond small
  value helpers and holds no state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Value: A scalar cell (string, number, date or null)
  - Row: One ingested record, header -> Value, with its origin
  - SourceFile: A logical file handed over by ingestion, with optional locale
  - AliasRule / AlertRule: User-authored configuration, persisted externally
  - Diagnostic: Why a row was excluded or a field was dropped

DESIGN PRINCIPLES:
  1. Immutability: Rows are never modified; normalization produces copies
  2. Explicit absence: Value has a null kind, lookups return (Value, bool)
  3. Fail soft: Nothing here returns an error for malformed data

SEE ALSO:
  - time.go: Date and Clock
  - period.go: Inclusive day spans
  - errors.go: Host-level sentinel errors
  - store.go: Persistence interfaces
*/
package generic

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// VALUE - Scalar cell content
// =============================================================================

type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindDate
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is one cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Date Date
}

func Null() Value              { return Value{} }
func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Number(f float64) Value   { return Value{Kind: KindNumber, Num: f} }
func DateValue(d Date) Value   { return Value{Kind: KindDate, Date: d} }
func (v Value) IsNull() bool   { return v.Kind == KindNull }
func (v Value) IsString() bool { return v.Kind == KindString }

// Text is the plain textual form: dates render as ISO, null as "".
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Date.String()
	default:
		return ""
	}
}

func (v Value) String() string { return v.Text() }

// MarshalJSON stores dates as their ISO string, matching what normalization
// produces, so a stored row parses back identically.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindDate:
		return json.Marshal(v.Date.String())
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = String(strconv.FormatBool(t))
	default:
		return fmt.Errorf("unsupported cell value %s", string(b))
	}
	return nil
}

// =============================================================================
// ROW - One ingested record
// =============================================================================

// RowRef identifies where a row came from.
type RowRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	Index    int    `json:"index"`
}

func (r RowRef) String() string {
	name := r.FileName
	if name == "" {
		name = r.FileID
	}
	return fmt.Sprintf("%s#%d", name, r.Index)
}

// Row maps header -> value. Header order is irrelevant.
type Row struct {
	Ref    RowRef           `json:"ref"`
	Locale Locale           `json:"locale,omitempty"` // locale of the originating file, "" when undecided
	Cells  map[string]Value `json:"cells"`
}

// NewRow builds a row from string cells; empty strings become null.
func NewRow(ref RowRef, cells map[string]string) Row {
	out := Row{Ref: ref, Cells: make(map[string]Value, len(cells))}
	for k, s := range cells {
		if strings.TrimSpace(s) == "" {
			out.Cells[k] = Null()
			continue
		}
		out.Cells[k] = String(s)
	}
	return out
}

// Get returns the value stored under the exact header.
func (r Row) Get(header string) (Value, bool) {
	v, ok := r.Cells[header]
	return v, ok
}

// Keys returns the headers in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r.Cells))
	for k := range r.Cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone copies the row; the cell map is not shared.
func (r Row) Clone() Row {
	cells := make(map[string]Value, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{Ref: r.Ref, Locale: r.Locale, Cells: cells}
}

// =============================================================================
// SOURCE FILE - Ingestion boundary
// =============================================================================

type Locale string

const (
	LocaleUnknown    Locale = ""
	LocaleDayFirst   Locale = "day-first"
	LocaleMonthFirst Locale = "month-first"
)

// ParseLocale accepts the canonical names plus the "uk"/"us" spellings
// used by older exports.
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LocaleUnknown, nil
	case "day-first", "dayfirst", "dmy", "uk":
		return LocaleDayFirst, nil
	case "month-first", "monthfirst", "mdy", "us":
		return LocaleMonthFirst, nil
	default:
		return LocaleUnknown, fmt.Errorf("%w: %q", ErrInvalidLocale, s)
	}
}

// Opposite flips day-first and month-first. Unknown stays unknown.
func (l Locale) Opposite() Locale {
	switch l {
	case LocaleDayFirst:
		return LocaleMonthFirst
	case LocaleMonthFirst:
		return LocaleDayFirst
	default:
		return LocaleUnknown
	}
}

// SourceFile is a logical file: {rows, locale}. Locale may be unknown.
type SourceFile struct {
	ID        string
	Name      string
	Locale    Locale
	Headers   []string
	Rows      []Row
	CreatedAt time.Time
}

// =============================================================================
// ALIAS AND ALERT RULES - User configuration
// =============================================================================

// AliasRule maps spelling variants to a canonical column name.
type AliasRule struct {
	ID        string   `json:"id,omitempty"`
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
}

type Operator string

const (
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpEquals         Operator = "equals"
	OpIsBlank        Operator = "is_blank"
	OpIsNotBlank     Operator = "is_not_blank"
	OpWithinDays     Operator = "within_days"
	OpWithinNextDays Operator = "within_next_days"
	OpNumericGT      Operator = "numeric_gt"
	OpNumericGTE     Operator = "numeric_gte"
	OpNumericLT      Operator = "numeric_lt"
	OpNumericLTE     Operator = "numeric_lte"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpContains, OpNotContains, OpEquals, OpIsBlank, OpIsNotBlank,
	OpWithinDays, OpWithinNextDays,
	OpNumericGT, OpNumericGTE, OpNumericLT, OpNumericLTE,
}

// DefaultRuleSet is the set name used when a rule does not name one.
const DefaultRuleSet = "default"

// AlertRule is one predicate. A list of rules is an implicit AND.
type AlertRule struct {
	ID       string   `json:"id,omitempty"`
	Set      string   `json:"set,omitempty"`
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Operand  string   `json:"operand,omitempty"`
}

// =============================================================================
// DIAGNOSTICS - Fail soft, keep a trail
// =============================================================================

type DiagnosticReason string

const (
	ReasonDateUnparsable DiagnosticReason = "date unparsable"
	ReasonNotCounted     DiagnosticReason = "not counted"
	ReasonRestShift      DiagnosticReason = "rest shift"
	ReasonNoIdentity     DiagnosticReason = "no identity"
	ReasonRangeReversed  DiagnosticReason = "range reversed"
)

// Diagnostic records a row (or a single field of it) that did not
// contribute to person-keyed computation.
type Diagnostic struct {
	Source   RowRef           `json:"source"`
	Reason   DiagnosticReason `json:"reason"`
	RawValue string           `json:"raw_value"`
	Field    string           `json:"field,omitempty"`
	Staff    string           `json:"staff,omitempty"`
}
