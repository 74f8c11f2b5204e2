package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/generic/store"
)

var _ generic.Store = (*store.Memory)(nil)

func TestMemory_FilesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// GIVEN: A stored file
	f := generic.SourceFile{ID: "rota", Name: "rota.csv", CreatedAt: time.Now()}
	f.Rows = []generic.Row{generic.NewRow(generic.RowRef{FileID: "rota"}, map[string]string{"Shift": "Day"})}
	require.NoError(t, m.SaveFile(ctx, f))

	// WHEN: The caller mutates both its copy and a fetched copy
	f.Rows[0].Cells["Shift"] = generic.String("Night")
	got, err := m.GetFile(ctx, "rota")
	require.NoError(t, err)
	got.Rows[0].Cells["Shift"] = generic.String("Rest")

	// THEN: Stored state is unaffected
	again, err := m.GetFile(ctx, "rota")
	require.NoError(t, err)
	assert.Equal(t, "Day", again.Rows[0].Cells["Shift"].Str)
}

func TestMemory_LocaleAndOrdering(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.SaveFile(ctx, generic.SourceFile{ID: "b", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, m.SaveFile(ctx, generic.SourceFile{ID: "a", CreatedAt: base, Rows: []generic.Row{{Cells: map[string]generic.Value{}}}}))

	require.NoError(t, m.SetFileLocale(ctx, "a", generic.LocaleMonthFirst))
	files, err := m.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, generic.LocaleMonthFirst, files[0].Rows[0].Locale)

	assert.True(t, errors.Is(m.SetFileLocale(ctx, "zzz", generic.LocaleDayFirst), generic.ErrFileNotFound))
	require.NoError(t, m.DeleteFile(ctx, "a"))
	assert.True(t, errors.Is(m.DeleteFile(ctx, "a"), generic.ErrFileNotFound))
}

func TestMemory_AliasesKeepOrder(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveAlias(ctx, generic.AliasRule{Canonical: "Shift Date", Aliases: []string{"Date"}}))
	require.NoError(t, m.SaveAlias(ctx, generic.AliasRule{Canonical: "RTW Date", Aliases: []string{"Date"}}))
	require.NoError(t, m.SaveAlias(ctx, generic.AliasRule{Canonical: "Shift Date", Aliases: []string{"Duty Date"}}))

	aliases, err := m.ListAliases(ctx)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "Shift Date", aliases[0].Canonical)
	assert.Equal(t, []string{"Duty Date"}, aliases[0].Aliases)

	require.NoError(t, m.DeleteAlias(ctx, aliases[1].ID))
	assert.True(t, errors.Is(m.DeleteAlias(ctx, aliases[1].ID), generic.ErrAliasNotFound))
}

func TestMemory_SaveRulesAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// GIVEN: A valid batch saved in one call
	require.NoError(t, m.SaveRules(ctx, []generic.AlertRule{
		{ID: "r1", Column: "Ward", Operator: generic.OpIsBlank},
		{ID: "r2", Column: "Name", Operator: generic.OpIsNotBlank},
	}))
	assert.Equal(t, uint64(1), m.Revision())

	// WHEN: A batch with a bad rule is saved
	err := m.SaveRules(ctx, []generic.AlertRule{
		{ID: "r3", Column: "Ward", Operator: generic.OpIsBlank},
		{ID: "r4", Column: "", Operator: generic.OpIsBlank},
	})

	// THEN: Nothing from it is kept
	assert.True(t, errors.Is(err, generic.ErrInvalidRule))
	all, err := m.ListRules(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, uint64(1), m.Revision())
}

func TestMemory_RulesAndRevision(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveRule(ctx, generic.AlertRule{ID: "r1", Column: "Ward", Operator: generic.OpIsBlank}))
	require.NoError(t, m.SaveRule(ctx, generic.AlertRule{ID: "r2", Set: "expiry", Column: "Valid To", Operator: generic.OpWithinNextDays, Operand: "30"}))
	assert.Equal(t, uint64(2), m.Revision())

	defaults, err := m.ListRules(ctx, generic.DefaultRuleSet)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "r1", defaults[0].ID)

	assert.True(t, errors.Is(m.DeleteRule(ctx, "nope"), generic.ErrRuleNotFound))
	assert.Equal(t, uint64(2), m.Revision())

	require.NoError(t, m.Reset(ctx))
	snap, err := generic.LoadSnapshot(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, snap.Rules)
	assert.Equal(t, uint64(3), snap.Revision)
}
