package econsheet

import (
	"go.uber.org/zap"
)

// walker interprets a Field Schema against a State Tree and accumulates grid
// rows. It never mutates the state it is given.
type walker struct {
	o    *options
	fmt  *formatter
	syn  *synth
	rows [][]Cell
}

func newWalker(o *options) *walker {
	return &walker{o: o, fmt: newFormatter(o.locale), syn: &synth{o: o}}
}

// slot records where a field's cells landed, by role, so later siblings can
// attach to the same row without relying on cell positions.
type slot struct {
	row          int
	criteriaCell int
	valueCell    int
	resolved     any
}

// walkFields renders each field of one level whose reliance holds.
func (w *walker) walkFields(fields Fields, state map[string]any, path Path, parent *scope) {
	sc := parent.child(state)
	slots := make(map[string]*slot)
	for _, f := range fields {
		if f == nil || !relianceHolds(f.Reliance, sc) {
			continue
		}
		v, ok := state[f.Key]
		if !ok {
			v = w.syn.field(f)
			w.o.logger.Debug("synthesized missing state", zap.Stringer("path", path.Append(f.Key)))
		}
		w.walkField(f, v, path.Append(f.Key), sc, slots)
	}
}

func (w *walker) walkField(f *Field, v any, path Path, sc *scope, slots map[string]*slot) {
	if f.IsTable() {
		w.walkTable(f, v, path, sc)
		return
	}
	if f.SwitchOn != "" {
		w.walkSwitch(f, v, path, sc, slots)
		return
	}
	switch f.FieldType {
	case FieldSelect, FieldDate, FieldNumber, FieldText, FieldStatic, FieldAutoOrder, FieldAutoSum,
		FieldDateRange, FieldNumberRange, FieldNumberRangeRate:
		if f.FieldType == FieldSelect {
			v = w.resolveSelect(f, v, path)
		}
		row := w.handle(f, v, cellInput{path: path, key: f.Key, index: -1, addHeader: true}, nil)
		w.rows = append(w.rows, row)
		slots[f.Key] = &slot{row: len(w.rows) - 1, criteriaCell: -1, valueCell: len(row) - 1, resolved: v}

	case FieldCriteriaSelect, FieldHeadersScheduleCriteriaSelect:
		row, s, next := w.criteriaRow(f, v, path, []Cell{labelCell(f)})
		w.rows = append(w.rows, row)
		s.row = len(w.rows) - 1
		slots[f.Key] = s
		if next != nil {
			w.walkField(next.field, next.value, next.path, sc, slots)
		}

	case FieldHeaderSelect:
		w.walkHeaderSelect(f, v, path, sc, slots)

	case FieldHeader:
		w.rows = append(w.rows, []Cell{sectionCell(f)})
		w.walkFields(f.SubItems, w.subState(f, v, path), path, sc)

	case FieldFlexibleHeader:
		w.walkFlexible(f, v, path, sc)

	default:
		w.o.logger.Warn("unknown field type", zap.String("fieldType", string(f.FieldType)), zap.Stringer("path", path))
		w.rows = append(w.rows, []Cell{labelCell(f), staticCell("Unsupported field type "+string(f.FieldType), path)})
	}
}

// subState returns the map a composite field recurses into, synthesizing it
// when stored state predates the schema.
func (w *walker) subState(f *Field, v any, path Path) map[string]any {
	if m, ok := asMap(v); ok {
		return m
	}
	w.o.logger.Debug("replacing malformed section state", zap.Stringer("path", path))
	m, _ := w.syn.field(f).(map[string]any)
	return m
}

// pendingField is a nested field a criteria choice recurses into below the
// criteria row.
type pendingField struct {
	field *Field
	value any
	path  Path
}

// criteriaRow renders the criteria selector and, if a criteria is chosen, the
// value cell of the chosen criteria's own field. Composite criteria fields
// are returned for the caller to walk on their own rows.
func (w *walker) criteriaRow(f *Field, v any, path Path, row []Cell) ([]Cell, *slot, *pendingField) {
	m, ok := asMap(v)
	if !ok {
		w.o.logger.Debug("replacing malformed criteria state", zap.Stringer("path", path))
		m = w.syn.criteria(f)
	}
	s := &slot{criteriaCell: -1, valueCell: -1}

	var critDefault any
	if d, ok := asMap(f.Default); ok {
		critDefault = d["criteria"]
	}
	critField := &Field{
		Key:       f.Key,
		FieldType: FieldSelect,
		Label:     f.Label,
		Required:  f.Required,
		Default:   critDefault,
		MenuItems: f.MenuItems,
		ReadOnly:  f.ReadOnly,
	}
	crit := w.resolveSelect(critField, m["criteria"], path.Append("criteria"))
	row = w.handle(critField, crit, cellInput{path: path.Append("criteria"), key: f.Key, index: -1, handler: HandlerCriteria}, row)
	s.criteriaCell = len(row) - 1
	s.resolved = crit

	item := findMenuItem(f.MenuItems, selectionValue(crit))
	if item != nil && f.FieldType == FieldHeadersScheduleCriteriaSelect {
		if key, items := alternateSource(f, item); key != "" {
			alt := &Field{Key: f.Key, FieldType: FieldSelect, Label: f.Label, Required: f.Required, MenuItems: items}
			sel := w.resolveSelect(alt, m[key], path.Append(key))
			row = w.handle(alt, sel, cellInput{path: path.Append(key), key: f.Key, index: -1, handler: HandlerSecondary}, row)
			item = findMenuItem(items, selectionValue(sel))
		}
	}
	if item == nil {
		return row, s, nil
	}

	target := item.asField(f)
	valuePath := path.Append("value")
	if target.FieldType.IsScalar() {
		row = w.handle(target, m["value"], cellInput{path: valuePath, key: f.Key, index: -1}, row)
		s.valueCell = len(row) - 1
		return row, s, nil
	}
	return row, s, &pendingField{field: target, value: m["value"], path: valuePath}
}

// alternateSource returns the state key and menu of the second selector a
// headersScheduleCriteriaSelect shows for its schedule or headers sources.
func alternateSource(f *Field, item *MenuItem) (string, []MenuItem) {
	switch keyString(item.Value) {
	case CriteriaFromSchedule:
		return "fromSchedule", f.FromScheduleMenuItems
	case CriteriaFromHeaders:
		return "fromHeaders", f.FromHeadersMenuItems
	}
	return "", nil
}

// walkHeaderSelect renders the option selector and then the sub-schema of
// the chosen option below it.
func (w *walker) walkHeaderSelect(f *Field, v any, path Path, sc *scope, slots map[string]*slot) {
	m, ok := asMap(v)
	if !ok {
		m = w.syn.headerSelect(f)
	}
	selField := &Field{
		Key:       f.Key,
		FieldType: FieldSelect,
		Label:     f.Label,
		Required:  f.Required,
		Default:   f.Default,
		MenuItems: f.MenuItems,
		ReadOnly:  f.ReadOnly,
	}
	sel := w.resolveSelect(selField, m["criteria"], path.Append("criteria"))
	row := w.handle(selField, sel, cellInput{path: path.Append("criteria"), key: f.Key, index: -1, handler: HandlerHeaderSelect, addHeader: true}, nil)
	item := findMenuItem(f.MenuItems, selectionValue(sel))
	valuePath := path.Append("value")
	s := &slot{criteriaCell: len(row) - 1, valueCell: -1, resolved: sel}

	if item != nil && len(item.SubItems) == 0 && item.FieldType.IsScalar() {
		row = w.handle(item.asField(f), m["value"], cellInput{path: valuePath, key: f.Key, index: -1}, row)
		s.valueCell = len(row) - 1
	}
	w.rows = append(w.rows, row)
	s.row = len(w.rows) - 1
	slots[f.Key] = s

	if item == nil || len(item.SubItems) == 0 {
		return
	}
	sub, ok := asMap(m["value"])
	if !ok {
		sub, _ = w.syn.option(f, item).(map[string]any)
	}
	w.walkFields(item.SubItems, sub, valuePath, sc)
}

// walkFlexible renders a header and all of its sub-items on one row.
func (w *walker) walkFlexible(f *Field, v any, path Path, sc *scope) {
	sub := w.subState(f, v, path)
	fsc := sc.child(sub)
	row := []Cell{labelCell(f)}
	var below []pendingField
	for _, sf := range f.SubItems {
		if sf == nil || !relianceHolds(sf.Reliance, fsc) {
			continue
		}
		sv, ok := sub[sf.Key]
		if !ok {
			sv = w.syn.field(sf)
		}
		sp := path.Append(sf.Key)
		switch {
		case sf.FieldType.IsScalar() && !sf.IsTable() && sf.SwitchOn == "":
			row = w.handle(sf, sv, cellInput{path: sp, key: sf.Key, index: -1, addHeader: true}, row)
		case sf.FieldType == FieldCriteriaSelect || sf.FieldType == FieldHeadersScheduleCriteriaSelect:
			var next *pendingField
			row, _, next = w.criteriaRow(sf, sv, sp, append(row, labelCell(sf)))
			if next != nil {
				below = append(below, *next)
			}
		default:
			below = append(below, pendingField{field: sf, value: sv, path: sp})
		}
	}
	w.rows = append(w.rows, row)
	slots := make(map[string]*slot)
	for _, p := range below {
		w.walkField(p.field, p.value, p.path, fsc, slots)
	}
}

// walkSwitch renders a field whose kind is chosen by a sibling selection. An
// inline switch field is appended to the row of the selection it depends on.
func (w *walker) walkSwitch(f *Field, v any, path Path, sc *scope, slots map[string]*slot) {
	var sel any
	dep, placed := slots[f.SwitchOn]
	if placed {
		sel = dep.resolved
	} else {
		sel, _ = sc.lookup(f.SwitchOn)
	}
	inline := f.Inline && placed
	in := cellInput{path: path, key: f.Key, index: -1, addHeader: !inline}

	var cells []Cell
	target := f.switchCase(sel)
	switch {
	case target == nil:
		cells = appendLabel(cells, f, in)
		cells = append(cells, staticCell("N/A", path))
	case target.FieldType.IsScalar():
		cells = w.handle(target, v, in, cells)
	default:
		w.walkField(target, v, path, sc, slots)
		return
	}

	if inline {
		w.rows[dep.row] = append(w.rows[dep.row], cells...)
		dep.valueCell = len(w.rows[dep.row]) - 1
		return
	}
	w.rows = append(w.rows, cells)
	slots[f.Key] = &slot{row: len(w.rows) - 1, criteriaCell: -1, valueCell: len(cells) - 1, resolved: v}
}

// switchCase returns the field f renders as for the given selection, or nil.
func (f *Field) switchCase(sel any) *Field {
	c, ok := f.Cases[keyString(selectionValue(sel))]
	if !ok || c == nil {
		return nil
	}
	t := *c
	t.Key = f.Key
	if t.Label == "" {
		t.Label = f.Label
	}
	t.Required = t.Required || f.Required
	t.SwitchOn = ""
	return &t
}

// walkTable renders a tabular section: one header row built from the
// columns, then one row per state row. Computed columns are derived on a copy
// of the rows before rendering.
func (w *walker) walkTable(f *Field, v any, path Path, sc *scope) {
	tbl, ok := asMap(v)
	if !ok {
		w.o.logger.Debug("replacing malformed table state", zap.Stringer("path", path))
		tbl = w.syn.table(f)
	}
	stored, _ := asMap(tbl["headers"])
	headers := tableHeaders(f, stored)
	rows, _ := asSlice(tbl["rows"])
	if len(rows) == 0 {
		rows = []any{w.syn.row(f.Columns, headers)}
	}
	rows = deriveRows(f.Columns, headers, rows)
	cols := visibleColumns(f.Columns, headers)

	if f.Key != RowViewKey && f.Key != VerticalRowViewKey && f.Label != "" {
		w.rows = append(w.rows, []Cell{sectionCell(f)})
	}

	grid := [][]Cell{w.columnHeaderRow(f, cols, headers, path)}
	for i, r := range rows {
		rm, ok := asMap(r)
		if !ok {
			rm = w.syn.row(f.Columns, headers)
		}
		rsc := sc.child(rm)
		rp := path.Append("rows", indexKey(i))
		cells := make([]Cell, 0, len(cols))
		for _, col := range cols {
			if !relianceHolds(col.Reliance, rsc) {
				cells = append(cells, fillerCell())
				continue
			}
			eff := effectiveColumn(col, headers)
			cv, ok := rm[col.Key]
			if !ok {
				cv = w.syn.field(eff)
			}
			in := cellInput{
				path:    rp.Append(col.Key),
				key:     f.Key,
				index:   i,
				subKey:  col.Key,
				handler: columnHandler(eff),
				inTable: true,
				lastRow: i == len(rows)-1,
			}
			if !eff.FieldType.IsScalar() {
				cells = append(cells, staticCell("Unsupported column type "+string(eff.FieldType), in.path))
				continue
			}
			cells = w.handle(eff, cv, in, cells)
		}
		grid = append(grid, cells)
	}
	if f.IsVertical() {
		grid = transpose(grid)
	}
	w.rows = append(w.rows, grid...)
}

func (w *walker) columnHeaderRow(f *Field, cols Fields, headers map[string]any, path Path) []Cell {
	row := make([]Cell, 0, len(cols))
	for _, col := range cols {
		hp := path.Append("headers", col.Key)
		if len(col.HeaderMenuItems) > 0 {
			hf := &Field{
				Key:       col.Key,
				FieldType: FieldSelect,
				Label:     col.Label,
				Default:   col.HeaderDefault,
				MenuItems: col.HeaderMenuItems,
			}
			sel := w.resolveSelect(hf, headers[col.Key], hp)
			row = w.handle(hf, sel, cellInput{path: hp, key: f.Key, index: -1, subKey: col.Key, handler: HandlerRowHeader}, row)
			row[len(row)-1].ClassName = classColumnHeader
			continue
		}
		label := col.displayLabel()
		if h, ok := headers[col.Key]; ok && !isBlank(selectionValue(h)) {
			label = selectionLabel(h, nil)
		}
		c := staticCell(label, hp)
		c.ClassName = classColumnHeader
		c.SheetItemData = &SheetItemData{Key: col.Key, Index: -1, Description: col.Description}
		row = append(row, c)
	}
	return row
}

func columnHandler(col *Field) HandlerKind {
	switch col.FieldType {
	case FieldDateRange:
		return HandlerDateRange
	case FieldNumberRange, FieldNumberRangeRate:
		return HandlerNumberRange
	}
	return HandlerRow
}

// transpose turns header-row-first tables into header-column-first ones.
func transpose(grid [][]Cell) [][]Cell {
	width := 0
	for _, r := range grid {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]Cell, width)
	for c := 0; c < width; c++ {
		out[c] = make([]Cell, len(grid))
		for r := range grid {
			if c < len(grid[r]) {
				out[c][r] = grid[r][c]
			} else {
				out[c][r] = fillerCell()
			}
		}
	}
	return out
}
