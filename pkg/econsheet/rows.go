package econsheet

import (
	"fmt"
)

// Row mutators keep range columns of a tabular section contiguous. They never
// modify their input: each returns a new rows slice whose untouched rows are
// shared with the old one.

// deriveRows fills autoOrder and autoSum columns. autoOrder is the 1-based row
// number; autoSum is the running total of the column named by sumOf.
func deriveRows(columns Fields, headers map[string]any, rows []any) []any {
	var auto Fields
	for _, col := range columns {
		if col != nil && col.FieldType.IsAuto() {
			auto = append(auto, col)
		}
	}
	if len(auto) == 0 {
		return rows
	}
	out := make([]any, len(rows))
	totals := make(map[string]float64, len(auto))
	for i, r := range rows {
		rm, ok := asMap(r)
		if !ok {
			out[i] = r
			continue
		}
		row := cloneMap(rm)
		for _, col := range auto {
			switch col.FieldType {
			case FieldAutoOrder:
				row[col.Key] = float64(i + 1)
			case FieldAutoSum:
				totals[col.Key] += summand(row[col.SumOf])
				row[col.Key] = totals[col.Key]
			}
		}
		out[i] = row
	}
	return out
}

// summand is the contribution of one cell to a running total. Range cells
// contribute their period.
func summand(v any) float64 {
	if m, ok := asMap(v); ok {
		if p, ok := m["period"]; ok {
			v = p
		} else {
			v = selectionValue(m)
		}
	}
	n, _ := toFloat(v)
	return n
}

// ApplyDerived returns a copy of state with every computed column recomputed.
func ApplyDerived(fields Fields, state map[string]any) map[string]any {
	out := cloneMap(state)
	for _, f := range fields {
		if f == nil {
			continue
		}
		v, ok := out[f.Key]
		if !ok {
			continue
		}
		switch {
		case f.IsTable():
			tbl, ok := asMap(v)
			if !ok {
				continue
			}
			rows, _ := asSlice(tbl["rows"])
			headers, _ := asMap(tbl["headers"])
			t := cloneMap(tbl)
			t["rows"] = deriveRows(f.Columns, headers, rows)
			out[f.Key] = t
		case f.FieldType == FieldHeader || f.FieldType == FieldFlexibleHeader:
			if sub, ok := asMap(v); ok {
				out[f.Key] = ApplyDerived(f.SubItems, sub)
			}
		}
	}
	return out
}

// rowCell returns a copy of the map stored in column key of row i.
func rowCell(rows []any, i int, key string) (map[string]any, error) {
	if i < 0 || i >= len(rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrBadPath, i, len(rows))
	}
	rm, ok := asMap(rows[i])
	if !ok {
		return nil, fmt.Errorf("%w: row %d is a %T", ErrBadPath, i, rows[i])
	}
	cell, _ := asMap(rm[key])
	return cloneMap(cell), nil
}

// withCell returns rows with column key of row i replaced. rows must already
// be a private copy.
func withCell(rows []any, i int, key string, cell map[string]any) {
	rm, _ := asMap(rows[i])
	row := cloneMap(rm)
	row[key] = cell
	rows[i] = row
}

func copyRows(rows []any) []any {
	out := make([]any, len(rows))
	copy(out, rows)
	return out
}

// SetDateRangeStart sets the start date of row i and back-fills the previous
// row's end date to the day before. The last row's end stays open.
func SetDateRangeStart(rows []any, i int, key string, start any) ([]any, error) {
	cell, err := rowCell(rows, i, key)
	if err != nil {
		return nil, err
	}
	if !isBlank(start) {
		t, ok := ParseDate(start)
		if !ok {
			return nil, fmt.Errorf("set start of row %d: %q is not a date", i, fmt.Sprint(start))
		}
		start = FormatUIDate(t)
	}
	out := copyRows(rows)
	cell["start_date"] = start
	withCell(out, i, key, cell)
	return NormalizeDateRanges(out, key), nil
}

// NormalizeDateRanges makes every row's end date the day before the next row's
// start and pins the last row's end to EconLimit.
func NormalizeDateRanges(rows []any, key string) []any {
	out := copyRows(rows)
	for i := range out {
		cell, err := rowCell(out, i, key)
		if err != nil {
			continue
		}
		end := any("")
		if i == len(out)-1 {
			end = EconLimit
		} else if next, err := rowCell(out, i+1, key); err == nil {
			if d, ok := addDays(next["start_date"], -1); ok {
				end = d
			}
		}
		if !valuesEqual(cell["end_date"], end) {
			cell["end_date"] = end
			withCell(out, i, key, cell)
		}
	}
	return out
}

// SetNumberRangePeriod sets the period of row i and recomputes the bounds of
// that row and every row after it.
func SetNumberRangePeriod(rows []any, i int, key string, period any) ([]any, error) {
	cell, err := rowCell(rows, i, key)
	if err != nil {
		return nil, err
	}
	if !isBlank(period) {
		n, ok := toFloat(period)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("set period of row %d: %q is not a positive number", i, fmt.Sprint(period))
		}
		period = n
	}
	out := copyRows(rows)
	cell["period"] = period
	withCell(out, i, key, cell)
	return NormalizeNumberRanges(out, key), nil
}

// NormalizeNumberRanges recomputes {start, end} from each row's period: row
// i+1 starts one past row i's end and the last row ends at InfSentinel. The
// first row's start is kept, defaulting to 1. Recomputation stops at the
// first row whose bounds cannot be derived.
func NormalizeNumberRanges(rows []any, key string) []any {
	out := copyRows(rows)
	next := 1.0
	for i := range out {
		cell, err := rowCell(out, i, key)
		if err != nil {
			break
		}
		start := next
		if i == 0 {
			if s, ok := toFloat(cell["start"]); ok {
				start = s
			}
		}
		cell["start"] = start
		if i == len(out)-1 {
			cell["end"] = InfSentinel
			withCell(out, i, key, cell)
			break
		}
		p, ok := toFloat(cell["period"])
		if !ok || p <= 0 {
			cell["end"] = ""
			withCell(out, i, key, cell)
			break
		}
		cell["end"] = start + p - 1
		withCell(out, i, key, cell)
		next = start + p
	}
	return out
}

// SetRateRangeEnd sets the end of row i; the next row starts where it ends.
func SetRateRangeEnd(rows []any, i int, key string, end any) ([]any, error) {
	cell, err := rowCell(rows, i, key)
	if err != nil {
		return nil, err
	}
	if !isBlank(end) && !isOpenEnd(end) {
		n, ok := toFloat(end)
		if !ok {
			return nil, fmt.Errorf("set end of row %d: %q is not a number", i, fmt.Sprint(end))
		}
		end = n
	}
	out := copyRows(rows)
	cell["end"] = end
	withCell(out, i, key, cell)
	return NormalizeRateRanges(out, key), nil
}

// NormalizeRateRanges makes each row start at the previous row's end and
// leaves the last row open. A row that is no longer last loses its open end
// until one is entered.
func NormalizeRateRanges(rows []any, key string) []any {
	out := copyRows(rows)
	for i := range out {
		cell, err := rowCell(out, i, key)
		if err != nil {
			continue
		}
		if i > 0 {
			if prev, err := rowCell(out, i-1, key); err == nil {
				cell["start"] = prev["end"]
			}
		}
		switch {
		case i == len(out)-1:
			cell["end"] = InfSentinel
		case isOpenEnd(cell["end"]):
			cell["end"] = ""
		}
		withCell(out, i, key, cell)
	}
	return out
}

// normalizeRanges runs the matching normalizer for every range column.
func normalizeRanges(columns Fields, headers map[string]any, rows []any) []any {
	for _, col := range columns {
		if col == nil {
			continue
		}
		switch effectiveColumn(col, headers).FieldType {
		case FieldDateRange:
			rows = NormalizeDateRanges(rows, col.Key)
		case FieldNumberRange:
			rows = NormalizeNumberRanges(rows, col.Key)
		case FieldNumberRangeRate:
			rows = NormalizeRateRanges(rows, col.Key)
		}
	}
	return rows
}

// CreateNewRow builds a row from the column defaults. A header selection's own
// default overrides the column's.
func CreateNewRow(columns Fields, headers map[string]any, opts ...Option) map[string]any {
	s := &synth{o: newOptions(opts)}
	return s.row(columns, headers)
}

// AddRow returns a copy of the tabular state tbl with a default row appended
// and range columns re-linked. A new date-range row starts blank until its
// start date is entered.
func AddRow(f *Field, tbl map[string]any, opts ...Option) map[string]any {
	headers, _ := asMap(tbl["headers"])
	rows, _ := asSlice(tbl["rows"])
	row := CreateNewRow(f.Columns, headers, opts...)
	for _, col := range f.Columns {
		if col != nil && effectiveColumn(col, headers).FieldType == FieldDateRange {
			row[col.Key] = map[string]any{"start_date": "", "end_date": ""}
		}
	}
	out := cloneMap(tbl)
	rows = append(copyRows(rows), row)
	out["rows"] = deriveRows(f.Columns, headers, normalizeRanges(f.Columns, headers, rows))
	return out
}

// RemoveRow returns a copy of tbl without row i. The only remaining row cannot
// be removed.
func RemoveRow(f *Field, tbl map[string]any, i int) (map[string]any, error) {
	headers, _ := asMap(tbl["headers"])
	rows, _ := asSlice(tbl["rows"])
	if i < 0 || i >= len(rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrBadPath, i, len(rows))
	}
	if len(rows) == 1 {
		return nil, fmt.Errorf("remove row: %s must keep at least one row", f.Key)
	}
	kept := make([]any, 0, len(rows)-1)
	kept = append(kept, rows[:i]...)
	kept = append(kept, rows[i+1:]...)
	out := cloneMap(tbl)
	out["rows"] = deriveRows(f.Columns, headers, normalizeRanges(f.Columns, headers, kept))
	return out, nil
}
