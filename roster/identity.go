/*
Package roster turns raw roster rows into person-keyed duty evidence.

PURPOSE:
  Rows carry no authoritative person identifier and no fixed shift vocabulary.
  This package derives a normalized staff identity from whichever identifier
  column a file happens to have, and ranks shift-type text so same-day
  conflicts and non-working days are handled the same way everywhere.

KEY CONCEPTS:
  - Identity: Digits of the first identifier field, cut at the first hyphen
    ("00123-2" is "00123"; "00123/1" has no hyphen and is "001231")
  - ShiftPriority: -1 unrecognized, 0 rest, 2 day/night, 3 combined
  - Classification: A priority plus where it came from (column or scan)

SEE ALSO:
  - columns/resolver.go: Field lookup used by both resolvers
  - compliance/aggregate.go: Consumer of identities and classifications
*/
package roster

import (
	"strings"

	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/generic"
)

// DefaultIdentityFields are tried in order.
var DefaultIdentityFields = []string{
	"Staff Number",
	"Employee Number",
	"Assignment Number",
	"Staff",
	"ID",
}

// identityHints select fallback headers when no identity field resolves.
var identityHints = []string{"staff", "assign", "employee"}

// =============================================================================
// IDENTITY RESOLVER
// =============================================================================

// IdentityResolver extracts a StaffIdentity from a row.
type IdentityResolver struct {
	Table  *columns.Table
	Fields []string
}

func NewIdentityResolver(table *columns.Table, fields []string) IdentityResolver {
	if len(fields) == 0 {
		fields = DefaultIdentityFields
	}
	return IdentityResolver{Table: table, Fields: append([]string(nil), fields...)}
}

// Extract returns the normalized identity, or "" when the row has none.
func (r IdentityResolver) Extract(row generic.Row) string {
	fields := r.Fields
	if len(fields) == 0 {
		fields = DefaultIdentityFields
	}
	for _, f := range fields {
		if v, ok := r.Table.Resolve(row, f); ok {
			if id := NormalizeIdentity(v.Text()); id != "" {
				return id
			}
		}
	}
	for _, k := range row.Keys() {
		lk := strings.ToLower(k)
		for _, hint := range identityHints {
			if strings.Contains(lk, hint) {
				if id := NormalizeIdentity(row.Cells[k].Text()); id != "" {
					return id
				}
				break
			}
		}
	}
	return ""
}

// NormalizeIdentity keeps the digits before the first hyphen.
func NormalizeIdentity(raw string) string {
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		raw = raw[:i]
	}
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
