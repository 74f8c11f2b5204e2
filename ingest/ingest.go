/*
Package ingest reads spreadsheet exports into SourceFiles.

PURPOSE:
  The engine only sees rows. This package is the boundary that turns CSV and
  XLSX bytes into generic.SourceFile values: first non-empty row as headers,
  one generic.Row per remaining non-empty line. Cells are strings, except
  XLSX cells carrying a date number format, which arrive as dates.

KEY CONCEPTS:
  - Headers: Trimmed; blanks become "Column N"; duplicates get " (2)", " (3)"
  - Locale: Passed through from the caller; detection happens in the engine
  - LoadFiles: Reads many paths concurrently, fails on the first error

SEE ALSO:
  - dates/locale.go: Locale detection over the rows produced here
  - api/handlers.go: Upload endpoint
*/
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/roster-engine/generic"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// Options control how a file is read.
type Options struct {
	// Locale is stored on the file as its explicit locale; leave unknown
	// to let the engine detect it.
	Locale generic.Locale

	// Sheet selects an XLSX worksheet; empty means the first sheet.
	Sheet string
}

// Format is a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf picks the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", generic.ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Read dispatches on the file name's extension.
func Read(r io.Reader, name string, opts Options) (generic.SourceFile, error) {
	format, err := FormatOf(name)
	if err != nil {
		return generic.SourceFile{}, err
	}
	if format == FormatXLSX {
		return ReadXLSX(r, name, opts)
	}
	return ReadCSV(r, name, opts)
}

// =============================================================================
// CSV
// =============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a comma-separated export. Ragged lines are allowed.
func ReadCSV(r io.Reader, name string, opts Options) (generic.SourceFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return generic.SourceFile{}, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return generic.SourceFile{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return build(name, records, opts, nil)
}

// =============================================================================
// XLSX
// =============================================================================

// ReadXLSX reads one worksheet. Text cells come back as excelize formats
// them. Numeric cells styled as dates are read from their serial value, so
// the workbook's display format never decides day and month order.
func ReadXLSX(r io.Reader, name string, opts Options) (generic.SourceFile, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return generic.SourceFile{}, fmt.Errorf("failed to open excel %s: %w", name, err)
	}
	defer wb.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return generic.SourceFile{}, fmt.Errorf("%s: %w", name, generic.ErrEmptyFile)
		}
		sheet = sheets[0]
	}
	records, err := wb.GetRows(sheet)
	if err != nil {
		return generic.SourceFile{}, fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
	}
	raw, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return generic.SourceFile{}, fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
	}
	date1904 := false
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	cell := func(ri, ci int, text string) generic.Value {
		if ri >= len(raw) || ci >= len(raw[ri]) {
			return textValue(text)
		}
		serial, err := strconv.ParseFloat(strings.TrimSpace(raw[ri][ci]), 64)
		if err != nil || serial < 1 {
			return textValue(text)
		}
		ref, err := excelize.CoordinatesToCellName(ci+1, ri+1)
		if err != nil || !dateStyled(wb, sheet, ref) {
			return textValue(text)
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return textValue(text)
		}
		return generic.DateValue(generic.DateOf(t))
	}
	return build(name, records, opts, cell)
}

// Built-in number formats that render a date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// dateStyled reports whether the cell's number format shows a calendar date.
func dateStyled(wb *excelize.File, sheet, ref string) bool {
	idx, err := wb.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	style, err := wb.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return customDateFormat(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// customDateFormat looks for day, month or year tokens outside quoted text
// and bracketed sections such as [Red] or [$-409].
func customDateFormat(format string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(format); i++ {
		ch := format[i]
		switch {
		case ch == '\\':
			i++
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == 'd' || ch == 'D' || ch == 'y' || ch == 'Y' || ch == 'm' || ch == 'M':
			return true
		}
	}
	return false
}

// =============================================================================
// SHARED
// =============================================================================

// build turns records into a SourceFile. cell, when set, types a data cell
// given its record index, column and trimmed text.
func build(name string, records [][]string, opts Options, cell func(r, c int, text string) generic.Value) (generic.SourceFile, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return generic.SourceFile{}, fmt.Errorf("%s: %w", name, generic.ErrEmptyFile)
	}

	file := generic.SourceFile{
		ID:        uuid.NewString(),
		Name:      name,
		Locale:    opts.Locale,
		Headers:   Headers(records[start]),
		CreatedAt: time.Now().UTC(),
	}
	for r := start + 1; r < len(records); r++ {
		rec := records[r]
		if blank(rec) {
			continue
		}
		ref := generic.RowRef{FileID: file.ID, FileName: name, Index: len(file.Rows)}
		row := generic.Row{Ref: ref, Locale: opts.Locale, Cells: make(map[string]generic.Value, len(file.Headers))}
		for i, h := range file.Headers {
			text := ""
			if i < len(rec) {
				text = strings.TrimSpace(rec[i])
			}
			if cell != nil && text != "" {
				row.Cells[h] = cell(r, i, text)
			} else {
				row.Cells[h] = textValue(text)
			}
		}
		file.Rows = append(file.Rows, row)
	}
	return file, nil
}

// Headers cleans a header line so every column has a unique, non-empty name.
func Headers(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		seen[h]++
		name := h
		// A literal "A (2)" may already be taken; keep counting until free.
		for n := max(seen[h], 2); used[name]; n++ {
			name = fmt.Sprintf("%s (%d)", h, n)
			seen[h] = n
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// textValue stores blank text as null.
func textValue(s string) generic.Value {
	if s == "" {
		return generic.Null()
	}
	return generic.String(s)
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// LOAD FILES
// =============================================================================

// LoadFiles reads paths concurrently and returns files in path order.
func LoadFiles(ctx context.Context, paths []string, opts Options) ([]generic.SourceFile, error) {
	files := make([]generic.SourceFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("open %s: %w", p, err)
			}
			defer f.Close()
			sf, err := Read(f, filepath.Base(p), opts)
			if err != nil {
				return err
			}
			files[i] = sf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// IsInputError reports errors caused by the file content rather than I/O.
func IsInputError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr) || generic.IsClientError(err)
}
