package dates

import "github.com/warp/roster-engine/generic"

// NormalizeRows returns copies of rows where every date-bearing cell holds
// its canonical YYYY-MM-DD string. Inputs are not modified. Cells that do
// not parse are kept as they are; a non-date cell is not an error.
func NormalizeRows(rows []generic.Row, loc generic.Locale) []generic.Row {
	out := make([]generic.Row, len(rows))
	for i, row := range rows {
		out[i] = NormalizeRow(row, loc)
	}
	return out
}

// NormalizeRow normalizes a single row and stamps it with loc.
func NormalizeRow(row generic.Row, loc generic.Locale) generic.Row {
	n := row.Clone()
	n.Locale = loc
	for k, v := range n.Cells {
		switch v.Kind {
		case generic.KindDate:
			n.Cells[k] = generic.String(v.Date.String())
		case generic.KindString:
			if d, ok := Parse(v.Str, loc); ok {
				n.Cells[k] = generic.String(d.String())
			}
		}
	}
	return n
}

// NormalizeFile resolves the file's locale and normalizes its rows.
func NormalizeFile(file generic.SourceFile, th Thresholds, fallback generic.Locale) ([]generic.Row, generic.Locale, Detection) {
	loc, det := EffectiveLocale(file, th, fallback)
	return NormalizeRows(file.Rows, loc), loc, det
}
