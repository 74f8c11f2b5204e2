package reconcile_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/reconcile"
)

func file(id string, loc generic.Locale, cells ...map[string]string) generic.SourceFile {
	f := generic.SourceFile{ID: id, Name: id + ".csv", Locale: loc}
	for i, c := range cells {
		f.Rows = append(f.Rows, generic.NewRow(generic.RowRef{FileID: id, FileName: f.Name, Index: i}, c))
	}
	return f
}

func input(t *testing.T) reconcile.Input {
	t.Helper()
	aliases, err := factory.ParseAliasTable(factory.DefaultAliasTableJSON())
	require.NoError(t, err)
	expiry, err := factory.ParseRuleSet(factory.RegistrationExpiryRuleJSON(30))
	require.NoError(t, err)

	sickness := file("sickness", generic.LocaleUnknown,
		map[string]string{"Staff No": "00123-1", "Absence From": "01/01/2025", "Absence To": "10/01/2025", "Reason": "Flu"},
		map[string]string{"Staff No": "00456", "Absence From": "20/12/2024", "Absence To": "28/12/2024", "Reason": "Cold"},
	)
	rota := file("rota", generic.LocaleUnknown,
		map[string]string{"Assignment No": "00123-2", "Duty Date": "15/01/2025", "Shift": "Day"},
		map[string]string{"Assignment No": "00123-2", "Duty Date": "16/01/2025", "Shift": "REST"},
		map[string]string{"Assignment No": "00456", "Duty Date": "30/12/2024", "Shift": "Night"},
	)
	rtw := file("rtw", generic.LocaleUnknown,
		map[string]string{"Staff No": "00456", "RTW Completed": "Yes", "RTW Interview Date": "29/12/2024"},
	)
	register := file("register", generic.LocaleMonthFirst,
		map[string]string{"Staff No": "00123", "Full Name": "Ann Example", "PIN Expiry": "02/03/2025"},
		map[string]string{"Staff No": "00789", "Full Name": "Bo Example", "PIN Expiry": "12/31/2025"},
	)

	return reconcile.Input{
		Files:    []generic.SourceFile{sickness, rota, rtw, register},
		Aliases:  aliases,
		Rules:    expiry.Rules,
		Today:    generic.NewDate(2025, time.February, 1),
		Settings: reconcile.DefaultSettings(),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	// GIVEN: Four files with aliased headers and mixed locales
	in := input(t)

	// WHEN: Running the engine
	report := reconcile.Run(in)

	// THEN: Locales are resolved per file
	require.Len(t, report.Files, 4)
	assert.Equal(t, generic.LocaleDayFirst, report.Files[0].Locale)
	assert.Equal(t, 2, report.Files[0].Detection.DayVotes)
	assert.Equal(t, generic.LocaleMonthFirst, report.Files[3].Locale)
	assert.True(t, report.Files[3].Explicit)

	// AND: Sub-assignments reconcile into one person who needs an RTW
	ann, ok := report.Fact("00123-9")
	require.True(t, ok)
	assert.True(t, ann.HadShiftAfterSickness)
	assert.False(t, ann.RTWConfirmed)
	assert.Equal(t, "Flu", ann.CurrentSicknessEpisode.Reason)

	// AND: A dated RTW inside the post window clears the other person
	bo, ok := report.Fact("00456")
	require.True(t, ok)
	assert.True(t, bo.RTWConfirmed)

	assert.Equal(t, []string{"00123"}, report.NeedsRTW)

	// AND: The rest day is on the diagnostic trail
	diags := report.DiagnosticsFor("00123")
	require.Len(t, diags, 1)
	assert.Equal(t, generic.ReasonRestShift, diags[0].Reason)

	// AND: The registration rule matches only the expiring PIN
	assert.Equal(t, []string{"registration-expiry"}, report.RuleSets())
	matches := report.Matches["registration-expiry"]
	require.Len(t, matches, 1)
	assert.Equal(t, "00123", matches[0].StaffIdentity)

	// AND: Expiry buckets agree
	require.Len(t, report.Expiry, 3)
	require.Len(t, report.Expiry[0].Entries, 1)
	assert.Equal(t, 2, report.Expiry[0].Entries[0].DaysUntil)
}

func TestRun_InputsUntouchedAndRepeatable(t *testing.T) {
	in := input(t)
	before := make([]generic.SourceFile, len(in.Files))
	for i, f := range in.Files {
		before[i] = f
		before[i].Rows = make([]generic.Row, len(f.Rows))
		for j, r := range f.Rows {
			before[i].Rows[j] = r.Clone()
		}
	}

	first := reconcile.Run(in)

	// Concurrent runs over the same snapshot agree with the first.
	var wg sync.WaitGroup
	results := make([]reconcile.Report, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reconcile.Run(in)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if diff := cmp.Diff(first, r); diff != "" {
			t.Errorf("report differs (-first +again):\n%s", diff)
		}
	}
	if diff := cmp.Diff(before, in.Files); diff != "" {
		t.Errorf("input files mutated (-before +after):\n%s", diff)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	report := reconcile.Run(reconcile.Input{Today: generic.NewDate(2025, 1, 1), Settings: reconcile.DefaultSettings()})
	assert.Empty(t, report.Facts)
	assert.Empty(t, report.NeedsRTW)
	assert.Empty(t, report.Matches)
	assert.Len(t, report.Expiry, 3)
}

func TestRun_HRExportDatesAreNotDuties(t *testing.T) {
	// GIVEN: A sickness log and an HR export with no shift column, whose
	// "Expiry Date" and "Date of Birth" headers reach the duty-date alias
	aliases, err := factory.ParseAliasTable(factory.DefaultAliasTableJSON())
	require.NoError(t, err)
	sickness := file("sickness", generic.LocaleDayFirst,
		map[string]string{"Staff No": "00123", "Absence From": "01/01/2025", "Absence To": "10/01/2025"},
	)
	hr := file("hr", generic.LocaleDayFirst,
		map[string]string{"Staff Number": "00123", "Name": "Ann", "Expiry Date": "20/01/2025"},
		map[string]string{"Staff Number": "00456", "Date of Birth": "14/03/1990"},
	)

	// WHEN: Running the engine
	report := reconcile.Run(reconcile.Input{
		Files:    []generic.SourceFile{sickness, hr},
		Aliases:  aliases,
		Today:    generic.NewDate(2025, time.February, 1),
		Settings: reconcile.DefaultSettings(),
	})

	// THEN: No duty is fabricated, so nobody owes an RTW
	assert.Empty(t, report.NeedsRTW)
	ann, ok := report.Fact("00123")
	require.True(t, ok)
	assert.Nil(t, ann.LastDuty)
	assert.Empty(t, ann.Duties)
	assert.False(t, ann.HadShiftAfterSickness)

	if bo, ok := report.Fact("00456"); ok {
		assert.Empty(t, bo.Duties)
		assert.Nil(t, bo.LastDuty)
	}

	// AND: The skipped HR rows are on the diagnostic trail
	for _, d := range report.DiagnosticsFor("00456") {
		assert.Equal(t, generic.ReasonNotCounted, d.Reason)
	}
}
