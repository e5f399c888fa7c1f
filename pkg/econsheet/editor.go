package econsheet

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Editor is a ready-made host for the grid: it owns a State Tree and applies
// edits dispatched from cells. Every edit replaces the state with an updated
// copy; earlier states returned by State are never modified.
type Editor struct {
	fields Fields
	state  map[string]any
	o      *options
	opts   []Option
}

// NewEditor starts editing state. A nil state is replaced by the schema's
// defaults.
func NewEditor(fields Fields, state map[string]any, opts ...Option) *Editor {
	e := &Editor{fields: fields, o: newOptions(opts), opts: opts}
	if state == nil {
		state = GenerateDefaults(fields, opts...)
	}
	e.state = ApplyDerived(fields, normalizeValue(state).(map[string]any))
	return e
}

// State returns the current State Tree.
func (e *Editor) State() map[string]any { return e.state }

// Grid renders the current state.
func (e *Editor) Grid() [][]Cell { return GenData(e.fields, e.state, e.opts...) }

// Valid reports whether the current state passes validation.
func (e *Editor) Valid() bool { return IsValid(e.fields, e.state, e.opts...) }

// Issues lists every validation failure of the current state.
func (e *Editor) Issues() []Issue { return Validate(e.fields, e.state, e.opts...) }

// Apply dispatches an edit of cell c.
func (e *Editor) Apply(c Cell, value any) error {
	return Dispatch(e.Handlers(), c, value)
}

// Edit applies value to the editable cell addressed by path, as if the host
// had dispatched it from the rendered grid.
func (e *Editor) Edit(path Path, value any) error {
	for _, row := range e.Grid() {
		for _, c := range row {
			if c.ReadOnly || c.SheetItemData == nil || c.ClassName == classLabel {
				continue
			}
			if c.Meta.Path.Equal(path) {
				return e.Apply(c, value)
			}
		}
	}
	return fmt.Errorf("%w: no editable cell at %s", ErrBadPath, path)
}

// Set writes value at path without any coercion.
func (e *Editor) Set(path Path, value any) error {
	next, err := SetState(e.state, path, normalizeValue(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	e.state = next
	return nil
}

// Handlers returns callbacks for every handler kind the grid emits.
func (e *Editor) Handlers() Handlers {
	return Handlers{
		HandlerValue:        e.handleValue,
		HandlerCriteria:     e.handleCriteria,
		HandlerSecondary:    e.handleValue,
		HandlerHeaderSelect: e.handleHeaderSelect,
		HandlerRow:          e.handleRow,
		HandlerRowHeader:    e.handleRowHeader,
		HandlerDateRange:    e.handleDateRange,
		HandlerNumberRange:  e.handleNumberRange,
	}
}

// coerce converts edited text to the stored form of a field kind.
func coerce(ed Edit) any {
	if ed.FullMenuItem != nil {
		return ed.FullMenuItem.Selection()
	}
	switch ed.FieldType {
	case FieldSelect:
		return map[string]any{"label": "", "value": ""}
	case FieldNumber:
		if n, ok := toFloat(ed.Value); ok {
			return n
		}
	case FieldDate:
		if t, ok := ParseDate(ed.Value); ok {
			return FormatUIDate(t)
		}
	}
	return normalizeValue(ed.Value)
}

func (e *Editor) handleValue(ed Edit) error {
	return e.Set(ed.Path, coerce(ed))
}

// handleCriteria stores the chosen criteria and resets the value to the
// chosen criteria's default.
func (e *Editor) handleCriteria(ed Edit) error {
	parent, err := parentPath(ed.Path)
	if err != nil {
		return err
	}
	next := map[string]any{"criteria": coerce(ed), "value": ""}
	if ed.FullMenuItem != nil {
		syn := &synth{o: e.o}
		next["value"] = syn.field(ed.FullMenuItem.asField(&Field{Key: ed.Key}))
	}
	return e.Set(parent, next)
}

func (e *Editor) handleHeaderSelect(ed Edit) error {
	parent, err := parentPath(ed.Path)
	if err != nil {
		return err
	}
	syn := &synth{o: e.o}
	return e.Set(parent, map[string]any{
		"criteria": coerce(ed),
		"value":    syn.option(&Field{Key: ed.Key}, ed.FullMenuItem),
	})
}

func (e *Editor) handleRow(ed Edit) error {
	tablePath, i, err := splitRowPath(ed.Path)
	if err != nil {
		return err
	}
	return e.updateTable(tablePath, func(f *Field, tbl map[string]any) (map[string]any, error) {
		out, err := SetIn(tbl, Path{"rows", indexKey(i), ed.SubKey}, coerce(ed))
		if err != nil {
			return nil, err
		}
		return out.(map[string]any), nil
	})
}

// handleRowHeader stores a column's header selection and resets that column
// in every row to the newly selected option's default.
func (e *Editor) handleRowHeader(ed Edit) error {
	if len(ed.Path) < 2 {
		return fmt.Errorf("%w: %s is not a header path", ErrBadPath, ed.Path)
	}
	tablePath := ed.Path[:len(ed.Path)-2]
	col := ed.Path[len(ed.Path)-1]
	return e.updateTable(tablePath, func(f *Field, tbl map[string]any) (map[string]any, error) {
		out := cloneMap(tbl)
		headers, _ := asMap(tbl["headers"])
		headers = cloneMap(headers)
		headers[col] = coerce(ed)
		out["headers"] = headers

		column := f.Columns.Get(col)
		if column == nil {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrBadPath, f.Key, col)
		}
		syn := &synth{o: e.o}
		rows, _ := asSlice(tbl["rows"])
		reset := make([]any, len(rows))
		for i, r := range rows {
			rm, _ := asMap(r)
			row := cloneMap(rm)
			row[col] = syn.field(effectiveColumn(column, headers))
			reset[i] = row
		}
		out["rows"] = normalizeRanges(f.Columns, headers, reset)
		return out, nil
	})
}

func (e *Editor) handleDateRange(ed Edit) error {
	if ed.Index < 0 {
		return e.setRange(ed, "start_date")
	}
	tablePath, i, err := splitRowPath(ed.Path)
	if err != nil {
		return err
	}
	start := ed.Value
	if m, ok := asMap(ed.Value); ok {
		start = m["start_date"]
	}
	return e.updateRows(tablePath, func(rows []any) ([]any, error) {
		return SetDateRangeStart(rows, i, ed.SubKey, start)
	})
}

func (e *Editor) handleNumberRange(ed Edit) error {
	if ed.Index < 0 {
		return e.setRange(ed, "start")
	}
	tablePath, i, err := splitRowPath(ed.Path)
	if err != nil {
		return err
	}
	if ed.FieldType == FieldNumberRangeRate {
		end := ed.Value
		if m, ok := asMap(ed.Value); ok {
			end = m["end"]
		}
		return e.updateRows(tablePath, func(rows []any) ([]any, error) {
			return SetRateRangeEnd(rows, i, ed.SubKey, end)
		})
	}
	period := ed.Value
	if m, ok := asMap(ed.Value); ok {
		period = m["period"]
	}
	return e.updateRows(tablePath, func(rows []any) ([]any, error) {
		return SetNumberRangePeriod(rows, i, ed.SubKey, period)
	})
}

// setRange stores a standalone range. A whole {start, end} object replaces
// the stored one; a bare value sets the start bound.
func (e *Editor) setRange(ed Edit, startKey string) error {
	if m, ok := asMap(normalizeValue(ed.Value)); ok {
		return e.Set(ed.Path, m)
	}
	return e.Set(ed.Path.Append(startKey), normalizeValue(ed.Value))
}

// AddRow appends a default row to the tabular section at path.
func (e *Editor) AddRow(path Path) error {
	return e.updateTable(path, func(f *Field, tbl map[string]any) (map[string]any, error) {
		return AddRow(f, tbl, e.opts...), nil
	})
}

// RemoveRow deletes row i of the tabular section at path.
func (e *Editor) RemoveRow(path Path, i int) error {
	return e.updateTable(path, func(f *Field, tbl map[string]any) (map[string]any, error) {
		return RemoveRow(f, tbl, i)
	})
}

func (e *Editor) updateRows(tablePath Path, fn func([]any) ([]any, error)) error {
	return e.updateTable(tablePath, func(f *Field, tbl map[string]any) (map[string]any, error) {
		rows, _ := asSlice(tbl["rows"])
		next, err := fn(rows)
		if err != nil {
			return nil, err
		}
		out := cloneMap(tbl)
		out["rows"] = next
		return out, nil
	})
}

// updateTable replaces the tabular state at path with fn's result and
// recomputes its derived columns.
func (e *Editor) updateTable(path Path, fn func(*Field, map[string]any) (map[string]any, error)) error {
	f := fieldAt(e.fields, e.state, path)
	if f == nil || !f.IsTable() {
		return fmt.Errorf("%w: %s is not a table", ErrBadPath, path)
	}
	v, _ := GetIn(e.state, path)
	tbl, ok := asMap(v)
	if !ok {
		e.o.logger.Debug("replacing malformed table state", zap.Stringer("path", path))
		tbl = (&synth{o: e.o}).table(f)
	}
	next, err := fn(f, tbl)
	if err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}
	headers, _ := asMap(next["headers"])
	rows, _ := asSlice(next["rows"])
	next["rows"] = deriveRows(f.Columns, headers, rows)
	return e.Set(path, next)
}

func parentPath(p Path) (Path, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("%w: %s has no parent", ErrBadPath, p)
	}
	return p[:len(p)-1], nil
}

// splitRowPath splits <table>.rows.<i>.<column> into the table path and i.
func splitRowPath(p Path) (Path, int, error) {
	n := len(p)
	if n < 3 || p[n-3] != "rows" {
		return nil, 0, fmt.Errorf("%w: %s is not a row cell", ErrBadPath, p)
	}
	i, err := strconv.Atoi(p[n-2])
	if err != nil || i < 0 {
		return nil, 0, fmt.Errorf("%w: %s: bad row index", ErrBadPath, p)
	}
	return p[:n-3], i, nil
}

// fieldAt finds the schema node addressed by a state path. A headerSelect's
// "value" step descends into the sub-schema of the option chosen in state.
func fieldAt(fs Fields, state any, path Path) *Field {
	var f *Field
	cur := state
	for _, key := range path {
		if f != nil {
			switch {
			case f.FieldType == FieldHeaderSelect && key == "value":
				m, _ := asMap(cur)
				item := findMenuItem(f.MenuItems, selectionValue(m["criteria"]))
				if item == nil {
					return nil
				}
				fs, f = item.SubItems, nil
				cur = m["value"]
				continue
			case f.FieldType == FieldHeader || f.FieldType == FieldFlexibleHeader:
				fs = f.SubItems
			default:
				return nil
			}
		}
		f = fs.Get(key)
		if f == nil {
			return nil
		}
		cur, _ = GetIn(cur, Path{key})
	}
	return f
}
