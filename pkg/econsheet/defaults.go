package econsheet

// GenerateDefaults synthesizes a State Tree for fields from the schema alone.
// Each field takes its declared default or an empty value of the right shape;
// tabular sections get one default row unless the schema lists defaultRows.
func GenerateDefaults(fields Fields, opts ...Option) map[string]any {
	s := &synth{o: newOptions(opts)}
	return s.fields(fields)
}

type synth struct {
	o *options
}

func (s *synth) fields(fs Fields) map[string]any {
	out := make(map[string]any, len(fs))
	for _, f := range fs {
		if f != nil {
			out[f.Key] = s.field(f)
		}
	}
	return out
}

func (s *synth) field(f *Field) any {
	if f.IsTable() {
		return s.table(f)
	}
	if f.SwitchOn != "" {
		return scalarDefault(f.Default)
	}
	switch f.FieldType {
	case FieldSelect:
		return defaultSelection(f.MenuItems, f.Default)
	case FieldDate:
		if !isBlank(f.Default) {
			return DeepCopy(f.Default)
		}
		return firstOfNextMonth(s.o.now())
	case FieldNumber, FieldText, FieldStatic, FieldAutoOrder, FieldAutoSum:
		return scalarDefault(f.Default)
	case FieldCriteriaSelect, FieldHeadersScheduleCriteriaSelect:
		return s.criteria(f)
	case FieldHeaderSelect:
		return s.headerSelect(f)
	case FieldDateRange:
		return rangeDefault(f.Default, "start_date", "end_date")
	case FieldNumberRange:
		return rangeDefault(f.Default, "start", "end", "period")
	case FieldNumberRangeRate:
		return rangeDefault(f.Default, "start", "end")
	case FieldHeader, FieldFlexibleHeader:
		return s.fields(f.SubItems)
	}
	return scalarDefault(f.Default)
}

func scalarDefault(def any) any {
	if def == nil {
		return ""
	}
	return DeepCopy(def)
}

func rangeDefault(def any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	d, _ := asMap(def)
	for _, k := range keys {
		if v, ok := d[k]; ok {
			out[k] = DeepCopy(v)
		} else {
			out[k] = ""
		}
	}
	return out
}

// defaultSelection resolves a declared default to a {label, value} selection.
func defaultSelection(items []MenuItem, def any) map[string]any {
	if isBlank(selectionValue(def)) {
		return map[string]any{"label": "", "value": ""}
	}
	if m, ok := asMap(def); ok {
		if item := findMenuItem(items, m["value"]); item != nil {
			return item.Selection()
		}
		return map[string]any{"label": selectionLabel(m, nil), "value": DeepCopy(m["value"])}
	}
	if item := findMenuItem(items, def); item != nil {
		return item.Selection()
	}
	return map[string]any{"label": keyString(def), "value": def}
}

func (s *synth) criteria(f *Field) map[string]any {
	out := map[string]any{"criteria": map[string]any{}, "value": ""}
	d, _ := asMap(f.Default)
	if d == nil {
		return out
	}
	if c, ok := d["criteria"]; ok && !isBlank(selectionValue(c)) {
		out["criteria"] = defaultSelection(f.MenuItems, c)
	}
	for _, k := range []string{"fromSchedule", "fromHeaders"} {
		if v, ok := d[k]; ok {
			out[k] = DeepCopy(v)
		}
	}
	if v, ok := d["value"]; ok {
		out["value"] = DeepCopy(v)
	} else if item := findMenuItem(f.MenuItems, selectionValue(out["criteria"])); item != nil {
		out["value"] = s.field(item.asField(f))
	}
	return out
}

func (s *synth) headerSelect(f *Field) map[string]any {
	sel := defaultSelection(f.MenuItems, f.Default)
	return map[string]any{
		"criteria": sel,
		"value":    s.option(f, findMenuItem(f.MenuItems, sel["value"])),
	}
}

// option synthesizes the sub-state a chosen headerSelect option recurses into.
func (s *synth) option(f *Field, item *MenuItem) any {
	switch {
	case item == nil:
		return map[string]any{}
	case len(item.SubItems) > 0:
		return s.fields(item.SubItems)
	case item.FieldType != "":
		return s.field(item.asField(f))
	}
	return map[string]any{}
}

func (s *synth) table(f *Field) map[string]any {
	headers := s.headers(f)
	out := map[string]any{}
	if headers != nil {
		out["headers"] = headers
	}
	if len(f.DefaultRows) > 0 {
		rows := make([]any, len(f.DefaultRows))
		for i, r := range f.DefaultRows {
			rows[i] = DeepCopy(r)
		}
		out["rows"] = rows
		return out
	}
	out["rows"] = []any{s.row(f.Columns, headers)}
	return out
}

// headers returns the default header selections, or nil when no column
// declares one.
func (s *synth) headers(f *Field) map[string]any {
	var h map[string]any
	for k, v := range f.Headers {
		if h == nil {
			h = make(map[string]any)
		}
		h[k] = DeepCopy(v)
	}
	for _, col := range f.Columns {
		if col == nil {
			continue
		}
		if _, set := h[col.Key]; set {
			continue
		}
		if len(col.HeaderMenuItems) == 0 && col.HeaderDefault == nil {
			continue
		}
		if h == nil {
			h = make(map[string]any)
		}
		if len(col.HeaderMenuItems) > 0 {
			h[col.Key] = defaultSelection(col.HeaderMenuItems, col.HeaderDefault)
		} else {
			h[col.Key] = DeepCopy(col.HeaderDefault)
		}
	}
	return h
}

// row builds one default row. A header-selected option's default overrides
// the column's own.
func (s *synth) row(columns Fields, headers map[string]any) map[string]any {
	row := make(map[string]any, len(columns))
	for _, col := range columns {
		if col != nil {
			row[col.Key] = s.field(effectiveColumn(col, headers))
		}
	}
	return row
}
