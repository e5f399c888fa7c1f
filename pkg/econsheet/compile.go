package econsheet

// IgnoreList maps a top-level assumption key to the sub-keys that are dropped
// from its payload at any depth.
type IgnoreList map[string][]string

// CompileOptions select and filter what Compile serializes.
type CompileOptions struct {
	// Keys limits compilation to these top-level keys. Empty means all.
	Keys   []string
	Ignore IgnoreList
}

// Compile serializes state into the evaluator payload. Fields hidden by
// reliance are omitted; selections collapse to their values, criteria fields
// flatten to {criteria: value}, dates become YYYY-MM-DD, and tabular sections
// are re-keyed by their header selections.
func Compile(fields Fields, state map[string]any, opts CompileOptions) map[string]any {
	want := make(map[string]bool, len(opts.Keys))
	for _, k := range opts.Keys {
		want[k] = true
	}
	c := &compiler{}
	sc := (*scope)(nil).child(state)
	out := make(map[string]any)
	for _, f := range fields {
		if f == nil || (len(want) > 0 && !want[f.Key]) {
			continue
		}
		if !emitted(f, sc) {
			continue
		}
		v, ok := state[f.Key]
		if !ok {
			continue
		}
		compiled := c.field(f, v, sc)
		out[f.Key] = finish(compiled, ignoreSet(opts.Ignore[f.Key]))
	}
	return out
}

type compiler struct{}

// emitted reports whether f has a payload entry: its reliance holds and, for
// a switched field, the selection has a case.
func emitted(f *Field, sc *scope) bool {
	if !relianceHolds(f.Reliance, sc) {
		return false
	}
	if f.SwitchOn == "" {
		return true
	}
	sel, _ := sc.lookup(f.SwitchOn)
	return f.switchCase(sel) != nil
}

func (c *compiler) fields(fs Fields, state map[string]any, parent *scope) map[string]any {
	sc := parent.child(state)
	out := make(map[string]any, len(fs))
	for _, f := range fs {
		if f == nil || !emitted(f, sc) {
			continue
		}
		v, ok := state[f.Key]
		if !ok {
			continue
		}
		compiled := c.field(f, v, sc)
		if f.Key == RowViewKey || f.Key == VerticalRowViewKey {
			if m, ok := asMap(compiled); ok {
				out["rows"] = m["rows"]
				continue
			}
		}
		out[f.Key] = compiled
	}
	return out
}

func (c *compiler) field(f *Field, v any, sc *scope) any {
	if f.IsTable() {
		return c.table(f, v, sc)
	}
	if f.SwitchOn != "" {
		sel, _ := sc.lookup(f.SwitchOn)
		target := f.switchCase(sel)
		if target == nil {
			return nil
		}
		return c.field(target, v, sc)
	}
	switch f.FieldType {
	case FieldSelect:
		v, _ = fallbackSelection(f, v)
		return selectionValue(v)
	case FieldDate:
		return NormalizeDate(v)
	case FieldNumber, FieldAutoOrder, FieldAutoSum:
		if n, ok := toFloat(selectionValue(v)); ok {
			return n
		}
		return selectionValue(v)
	case FieldText, FieldStatic:
		return v
	case FieldDateRange:
		m, _ := asMap(v)
		return map[string]any{
			"start_date": NormalizeDate(m["start_date"]),
			"end_date":   NormalizeDate(m["end_date"]),
		}
	case FieldNumberRange, FieldNumberRangeRate:
		m, _ := asMap(v)
		out := make(map[string]any, len(m))
		for k, x := range m {
			if n, ok := toFloat(x); ok {
				out[k] = n
			} else {
				out[k] = x
			}
		}
		return out
	case FieldCriteriaSelect, FieldHeadersScheduleCriteriaSelect:
		return c.criteria(f, v, sc)
	case FieldHeaderSelect:
		return c.headerSelect(f, v, sc)
	case FieldHeader, FieldFlexibleHeader:
		sub, _ := asMap(v)
		return c.fields(f.SubItems, sub, sc)
	}
	return DeepCopy(v)
}

// criteria flattens {criteria, value} to {criteriaValue: value}. A field
// flagged criteriaHeader nests that object under its own key. When a
// schedule or headers source is chosen the value is keyed by the secondary
// selection.
func (c *compiler) criteria(f *Field, v any, sc *scope) any {
	m, _ := asMap(v)
	critField := &Field{Key: f.Key, FieldType: FieldSelect, MenuItems: f.MenuItems}
	if d, ok := asMap(f.Default); ok {
		critField.Default = d["criteria"]
	}
	sel, _ := fallbackSelection(critField, m["criteria"])
	crit := selectionValue(sel)
	if isBlank(crit) {
		return map[string]any{}
	}
	item := findMenuItem(f.MenuItems, crit)
	var value any
	if key, items := alternateSourceFor(f, item); key != "" {
		alt, _ := fallbackSelection(&Field{Key: f.Key, FieldType: FieldSelect, MenuItems: items}, m[key])
		value = map[string]any{keyString(selectionValue(alt)): c.criteriaValue(f, item, m["value"], sc)}
	} else {
		value = c.criteriaValue(f, item, m["value"], sc)
	}
	out := map[string]any{keyString(crit): value}
	if f.CriteriaHeader {
		return map[string]any{f.Key: out}
	}
	return out
}

func alternateSourceFor(f *Field, item *MenuItem) (string, []MenuItem) {
	if item == nil || f.FieldType != FieldHeadersScheduleCriteriaSelect {
		return "", nil
	}
	return alternateSource(f, item)
}

func (c *compiler) criteriaValue(f *Field, item *MenuItem, v any, sc *scope) any {
	if item == nil {
		return DeepCopy(v)
	}
	return c.field(item.asField(f), v, sc)
}

func (c *compiler) headerSelect(f *Field, v any, sc *scope) any {
	m, _ := asMap(v)
	sel, _ := fallbackSelection(&Field{Key: f.Key, FieldType: FieldSelect, Default: f.Default, MenuItems: f.MenuItems}, m["criteria"])
	crit := selectionValue(sel)
	if isBlank(crit) {
		return map[string]any{}
	}
	item := findMenuItem(f.MenuItems, crit)
	var value any
	switch {
	case item == nil:
		value = DeepCopy(m["value"])
	case len(item.SubItems) > 0:
		sub, _ := asMap(m["value"])
		value = c.fields(item.SubItems, sub, sc)
	case item.FieldType != "":
		value = c.field(item.asField(f), m["value"], sc)
	default:
		value = DeepCopy(m["value"])
	}
	return map[string]any{keyString(crit): value}
}

// table transposes {headers, rows} into {rows: [{headerValue: cell}]}. A
// column whose header is a selection is keyed by the selected value.
func (c *compiler) table(f *Field, v any, sc *scope) any {
	tbl, _ := asMap(v)
	stored, _ := asMap(tbl["headers"])
	headers := tableHeaders(f, stored)
	rows, _ := asSlice(tbl["rows"])
	rows = deriveRows(f.Columns, headers, rows)
	cols := visibleColumns(f.Columns, headers)

	out := make([]any, 0, len(rows))
	for _, r := range rows {
		rm, ok := asMap(r)
		if !ok {
			continue
		}
		rsc := sc.child(rm)
		row := make(map[string]any, len(cols))
		for _, col := range cols {
			if !relianceHolds(col.Reliance, rsc) {
				continue
			}
			cv, ok := rm[col.Key]
			if !ok {
				continue
			}
			row[columnKey(col, headers)] = c.field(effectiveColumn(col, headers), cv, rsc)
		}
		out = append(out, row)
	}
	return map[string]any{"rows": out}
}

// tableHeaders lays the stored header selections over the schema's header
// defaults. A selection no longer in its column's header menu falls back to
// the column's header default.
func tableHeaders(f *Field, stored map[string]any) map[string]any {
	headers := (&synth{}).headers(f)
	if headers == nil && len(stored) > 0 {
		headers = make(map[string]any, len(stored))
	}
	for k, h := range stored {
		headers[k] = h
	}
	for _, col := range f.Columns {
		if col == nil || len(col.HeaderMenuItems) == 0 {
			continue
		}
		if h, ok := headers[col.Key]; ok {
			hf := &Field{Key: col.Key, FieldType: FieldSelect, Default: col.HeaderDefault, MenuItems: col.HeaderMenuItems}
			headers[col.Key], _ = fallbackSelection(hf, h)
		}
	}
	return headers
}

func columnKey(col *Field, headers map[string]any) string {
	if h, ok := headers[col.Key]; ok {
		if k := keyString(selectionValue(h)); k != "" {
			return k
		}
	}
	return col.Key
}

func ignoreSet(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	s := make(map[string]bool, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}

// finish drops ignored keys and normalizes every value stored under a key
// that names a date.
func finish(v any, ignore map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			if ignore[k] {
				continue
			}
			x = finish(x, ignore)
			if isDateKey(k) {
				if _, isStr := x.(string); isStr {
					x = NormalizeDate(x)
				}
			}
			out[k] = x
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = finish(x, ignore)
		}
		return out
	}
	return v
}
