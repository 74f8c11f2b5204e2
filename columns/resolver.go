/*
Package columns maps user-supplied header spellings onto canonical field names.

PURPOSE:
  Source files are exported by hand from different systems, so the same field
  arrives as "Staff Number", "staff no.", "Assignment No" or "Emp #". Engine
  code asks for canonical names only; this package finds the matching cell.

KEY CONCEPTS:
  - Table: Alias table compiled from AliasRules (alias -> canonical, inverted)
  - Exact tier: The canonical name, then every alias, as literal row keys
  - Tolerant tier: Normalized names compared for equality, then containment

DESIGN PRINCIPLES:
  1. Explicit: Resolve returns (value, ok); a miss never reads as a blank cell
  2. Deterministic: Row keys are visited in sorted order
  3. Last write wins: An alias claimed twice belongs to the later canonical

SEE ALSO:
  - generic/types.go: AliasRule
  - factory/aliases.go: JSON alias tables and presets
*/
package columns

import (
	"strings"
	"unicode"

	"github.com/warp/roster-engine/generic"
)

// minContained is the shortest normalized name allowed to satisfy a
// substring match. Shorter names ("id", "no") would match almost anything.
const minContained = 3

// =============================================================================
// TABLE
// =============================================================================

// Table is a compiled alias table. The zero value and nil are both usable
// and resolve canonical names with the tolerant tier only.
type Table struct {
	toCanonical map[string]string   // alias -> canonical
	aliases     map[string][]string // canonical -> aliases, in table order
	canonicals  []string            // in first-seen order
	conflicts   []*generic.AliasConflictError
}

// NewTable compiles rules. Duplicate canonical entries merge; an alias
// claimed by a later canonical moves there and is recorded as a conflict.
func NewTable(rules []generic.AliasRule) *Table {
	t := &Table{
		toCanonical: make(map[string]string),
		aliases:     make(map[string][]string),
	}
	for _, r := range rules {
		canonical := strings.TrimSpace(r.Canonical)
		if canonical == "" {
			continue
		}
		if _, seen := t.aliases[canonical]; !seen {
			t.canonicals = append(t.canonicals, canonical)
			t.aliases[canonical] = nil
		}
		for _, a := range r.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || a == canonical {
				continue
			}
			if prev, ok := t.toCanonical[a]; ok && prev != canonical {
				t.conflicts = append(t.conflicts, &generic.AliasConflictError{Alias: a, Previous: prev, Canonical: canonical})
			}
			t.toCanonical[a] = canonical
		}
	}
	// Invert after all writes so moved aliases only appear under their winner.
	for _, r := range rules {
		canonical := strings.TrimSpace(r.Canonical)
		for _, a := range r.Aliases {
			a = strings.TrimSpace(a)
			if t.toCanonical[a] == canonical && !contains(t.aliases[canonical], a) {
				t.aliases[canonical] = append(t.aliases[canonical], a)
			}
		}
	}
	return t
}

// Conflicts lists aliases that moved between canonical names while compiling.
func (t *Table) Conflicts() []*generic.AliasConflictError {
	if t == nil {
		return nil
	}
	return t.conflicts
}

// Aliases returns the aliases of canonical, in table order.
func (t *Table) Aliases(canonical string) []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.aliases[canonical]...)
}

// Canonicals returns the canonical names in the order they were first seen.
func (t *Table) Canonicals() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.canonicals...)
}

// Rules rebuilds the effective alias rules after conflicts were resolved.
func (t *Table) Rules() []generic.AliasRule {
	if t == nil {
		return nil
	}
	out := make([]generic.AliasRule, 0, len(t.canonicals))
	for _, c := range t.canonicals {
		out = append(out, generic.AliasRule{Canonical: c, Aliases: t.Aliases(c)})
	}
	return out
}

// Canonical returns the canonical name a header belongs to, or the header
// itself when nothing claims it.
func (t *Table) Canonical(header string) string {
	h := strings.TrimSpace(header)
	if t == nil {
		return h
	}
	if c, ok := t.toCanonical[h]; ok {
		return c
	}
	if _, ok := t.aliases[h]; ok {
		return h
	}
	n := Normalize(h)
	for _, c := range t.canonicals {
		if Normalize(c) == n {
			return c
		}
		for _, a := range t.aliases[c] {
			if Normalize(a) == n {
				return c
			}
		}
	}
	return h
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve finds the cell for canonical in row. ok is false when no key
// matches under either tier; a matched cell may still hold null.
func (t *Table) Resolve(row generic.Row, canonical string) (generic.Value, bool) {
	key, ok := t.Key(row, canonical)
	if !ok {
		return generic.Null(), false
	}
	return row.Cells[key], true
}

// Key is Resolve returning the matched row header instead of its value.
func (t *Table) Key(row generic.Row, canonical string) (string, bool) {
	names := append([]string{canonical}, t.Aliases(canonical)...)

	for _, n := range names {
		if _, ok := row.Cells[n]; ok {
			return n, true
		}
	}

	keys := row.Keys()
	normKeys := make([]string, len(keys))
	for i, k := range keys {
		normKeys[i] = Normalize(k)
	}

	for _, n := range names {
		want := Normalize(n)
		if want == "" {
			continue
		}
		for i, nk := range normKeys {
			if nk == want {
				return keys[i], true
			}
		}
	}

	for _, n := range names {
		want := Normalize(n)
		if want == "" {
			continue
		}
		for i, nk := range normKeys {
			if nk == "" {
				continue
			}
			if (len(want) >= minContained && strings.Contains(nk, want)) ||
				(len(nk) >= minContained && strings.Contains(want, nk)) {
				return keys[i], true
			}
		}
	}
	return "", false
}

// Normalize lower-cases name, strips everything but letters and digits
// and drops one trailing plural "s".
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 1 && strings.HasSuffix(s, "s") {
		s = s[:len(s)-1]
	}
	return s
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
