package columns_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/generic"
)

func row(cells map[string]string) generic.Row {
	return generic.NewRow(generic.RowRef{FileID: "f"}, cells)
}

func TestResolve_TolerantMatchWithoutAlias(t *testing.T) {
	// GIVEN: No alias table and a header with different case and punctuation
	var table *columns.Table
	r := row(map[string]string{"assignment no.": "00123-1"})

	// WHEN: Resolving the canonical name
	v, ok := table.Resolve(r, "Assignment No")

	// THEN: The tolerant tier finds it
	require.True(t, ok)
	assert.Equal(t, "00123-1", v.Str)
}

func TestResolve_ExactBeforeTolerant(t *testing.T) {
	table := columns.NewTable([]generic.AliasRule{
		{Canonical: "Staff Number", Aliases: []string{"Emp #"}},
	})
	r := row(map[string]string{
		"Emp #":           "111",
		"staff numbers":   "222",
		"Staff Number ID": "333",
	})

	v, ok := table.Resolve(r, "Staff Number")
	require.True(t, ok)
	assert.Equal(t, "111", v.Str, "alias key is an exact hit")

	delete(r.Cells, "Emp #")
	v, ok = table.Resolve(r, "Staff Number")
	require.True(t, ok)
	assert.Equal(t, "222", v.Str, "normalized equality beats containment")
}

func TestResolve_SubstringEitherDirection(t *testing.T) {
	var table *columns.Table

	v, ok := table.Resolve(row(map[string]string{"Shift Type (Roster)": "Night"}), "Shift Type")
	require.True(t, ok)
	assert.Equal(t, "Night", v.Str)

	v, ok = table.Resolve(row(map[string]string{"Reason": "Flu"}), "Sickness Reason")
	require.True(t, ok)
	assert.Equal(t, "Flu", v.Str)
}

func TestResolve_ShortNamesDoNotMatchBySubstring(t *testing.T) {
	var table *columns.Table
	_, ok := table.Resolve(row(map[string]string{"Valid To": "2025-01-01"}), "ID")
	assert.False(t, ok)
}

func TestResolve_Miss(t *testing.T) {
	table := columns.NewTable(nil)
	v, ok := table.Resolve(row(map[string]string{"Name": "Ann"}), "RTW Date")
	assert.False(t, ok)
	assert.True(t, v.IsNull())
}

func TestResolve_NullCellIsStillAHit(t *testing.T) {
	var table *columns.Table
	v, ok := table.Resolve(row(map[string]string{"RTW": ""}), "RTW")
	assert.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestNewTable_LastWriteWins(t *testing.T) {
	table := columns.NewTable([]generic.AliasRule{
		{Canonical: "Staff Number", Aliases: []string{"No", "Emp #"}},
		{Canonical: "Assignment Number", Aliases: []string{"No"}},
		{Canonical: "Staff Number", Aliases: []string{"Personnel"}},
	})

	assert.Equal(t, "Assignment Number", table.Canonical("No"))
	assert.Equal(t, []string{"Emp #", "Personnel"}, table.Aliases("Staff Number"))
	assert.Equal(t, []string{"Staff Number", "Assignment Number"}, table.Canonicals())

	conflicts := table.Conflicts()
	require.Len(t, conflicts, 1)
	assert.True(t, errors.Is(conflicts[0], generic.ErrInvalidAlias))
	assert.Equal(t, "Staff Number", conflicts[0].Previous)
}

func TestCanonical(t *testing.T) {
	table := columns.NewTable([]generic.AliasRule{{Canonical: "Valid To", Aliases: []string{"Expiry"}}})
	assert.Equal(t, "Valid To", table.Canonical("Expiry"))
	assert.Equal(t, "Valid To", table.Canonical("valid-to"))
	assert.Equal(t, "Ward", table.Canonical(" Ward "))
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Assignment No.": "assignmentno",
		"Staff Numbers":  "staffnumber",
		"RTW Date":       "rtwdate",
		"  valid_to ":    "validto",
		"s":              "s",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, columns.Normalize(in), in)
	}
}
