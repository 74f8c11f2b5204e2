package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/ingest"
	"github.com/xuri/excelize/v2"
)

const rosterCSV = "\xEF\xBB\xBFStaff Number, Shift Date ,Shift Type,\n" +
	"00123-1,15/01/2025,Day\n" +
	",,,\n" +
	"00456,16/01/2025,REST,extra\n"

func TestReadCSV(t *testing.T) {
	// GIVEN: A CSV with a BOM, a blank header, a blank line and a ragged row
	f, err := ingest.ReadCSV(strings.NewReader(rosterCSV), "rota.csv", ingest.Options{})

	// THEN: Headers are cleaned and blank lines dropped
	require.NoError(t, err)
	assert.Equal(t, []string{"Staff Number", "Shift Date", "Shift Type", "Column 4"}, f.Headers)
	require.Len(t, f.Rows, 2)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, generic.LocaleUnknown, f.Locale)

	first := f.Rows[0]
	assert.Equal(t, "00123-1", first.Cells["Staff Number"].Str)
	assert.True(t, first.Cells["Column 4"].IsNull())
	assert.Equal(t, generic.RowRef{FileID: f.ID, FileName: "rota.csv", Index: 0}, first.Ref)

	second := f.Rows[1]
	assert.Equal(t, 1, second.Ref.Index)
	assert.Equal(t, "extra", second.Cells["Column 4"].Str)
}

func TestReadCSV_ExplicitLocale(t *testing.T) {
	f, err := ingest.ReadCSV(strings.NewReader("Date\n01/02/2025\n"), "us.csv", ingest.Options{Locale: generic.LocaleMonthFirst})
	require.NoError(t, err)
	assert.Equal(t, generic.LocaleMonthFirst, f.Locale)
	assert.Equal(t, generic.LocaleMonthFirst, f.Rows[0].Locale)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ingest.ReadCSV(strings.NewReader("\n , \n"), "empty.csv", ingest.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrEmptyFile))
	assert.True(t, ingest.IsInputError(err))
}

func TestHeaders_Duplicates(t *testing.T) {
	assert.Equal(t, []string{"Date", "Date (2)", "Column 3", "Date (3)"}, ingest.Headers([]string{"Date", "Date", " ", "Date"}))
}

func TestHeaders_SuffixAlreadyTaken(t *testing.T) {
	// GIVEN: A header line that already spells out the first suffix
	got := ingest.Headers([]string{"A", "A", "A (2)"})

	// THEN: Every column keeps its own name
	assert.Equal(t, []string{"A", "A (2)", "A (2) (2)"}, got)

	got = ingest.Headers([]string{"A (2)", "A", "A"})
	assert.Equal(t, []string{"A (2)", "A", "A (3)"}, got)
}

func TestReadXLSX(t *testing.T) {
	// GIVEN: A workbook with a header row and two data rows
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]interface{}{"Staff Number", "Name", "Valid To"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]interface{}{"00123", "Ann", "2025-03-01"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]interface{}{"00456", "Bo", "2025-04-01"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	// WHEN: Reading it
	f, err := ingest.ReadXLSX(bytes.NewReader(buf.Bytes()), "register.xlsx", ingest.Options{})

	// THEN: Rows come back as strings keyed by header
	require.NoError(t, err)
	assert.Equal(t, []string{"Staff Number", "Name", "Valid To"}, f.Headers)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, "Bo", f.Rows[1].Cells["Name"].Str)
	assert.Equal(t, "2025-04-01", f.Rows[1].Cells["Valid To"].Str)
}

func TestReadXLSX_DateCells(t *testing.T) {
	// GIVEN: Real date cells, one in excelize's default m/d/yy style and one
	// in a custom day-first style, next to a plain number
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]interface{}{"Staff Number", "Duty Date", "Valid To", "Hours"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]interface{}{"00123", time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), 45720, 42}))
	custom := "dd/mm/yyyy"
	style, err := wb.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	require.NoError(t, err)
	require.NoError(t, wb.SetCellStyle(sheet, "C2", "C2", style))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	// WHEN: Reading it
	f, err := ingest.ReadXLSX(bytes.NewReader(buf.Bytes()), "rota.xlsx", ingest.Options{})

	// THEN: Date cells carry their calendar date, not the display text
	require.NoError(t, err)
	require.Len(t, f.Rows, 1)
	row := f.Rows[0]
	assert.Equal(t, generic.DateValue(generic.NewDate(2025, time.March, 4)), row.Cells["Duty Date"])
	assert.Equal(t, generic.DateValue(generic.NewDate(2025, time.March, 4)), row.Cells["Valid To"])

	// AND: Unstyled numbers stay as text
	assert.Equal(t, generic.String("42"), row.Cells["Hours"])
	assert.Equal(t, generic.String("00123"), row.Cells["Staff Number"])
}

func TestRead_UnsupportedFormat(t *testing.T) {
	_, err := ingest.Read(strings.NewReader("x"), "notes.pdf", ingest.Options{})
	assert.True(t, errors.Is(err, generic.ErrUnsupportedFormat))
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("Staff Number\n1\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("Staff Number\n2\n3\n"), 0o600))

	files, err := ingest.LoadFiles(context.Background(), []string{a, b}, ingest.Options{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.csv", files[0].Name)
	assert.Len(t, files[1].Rows, 2)

	_, err = ingest.LoadFiles(context.Background(), []string{a, filepath.Join(dir, "missing.csv")}, ingest.Options{})
	assert.Error(t, err)
}
