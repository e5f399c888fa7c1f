package econsheet

import "fmt"

// OmitSectionKey marks a section state the user opted out of; it always
// validates.
const OmitSectionKey = "omitSection"

// Issue is one validation failure.
type Issue struct {
	Path    Path   `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// IsValid reports whether state is complete and in range for fields. Fields
// hidden by reliance are not checked. It stops at the first failure.
func IsValid(fields Fields, state map[string]any, opts ...Option) bool {
	v := &validator{o: newOptions(opts), stopEarly: true}
	v.fields(fields, state, nil, nil)
	return len(v.issues) == 0
}

// Validate returns every validation failure in schema order.
func Validate(fields Fields, state map[string]any, opts ...Option) []Issue {
	v := &validator{o: newOptions(opts)}
	v.fields(fields, state, nil, nil)
	return v.issues
}

type validator struct {
	o         *options
	stopEarly bool
	issues    []Issue
}

func (v *validator) done() bool {
	return v.stopEarly && len(v.issues) > 0
}

func (v *validator) fail(path Path, msg string) {
	if msg != "" {
		v.issues = append(v.issues, Issue{Path: path, Message: msg})
	}
}

func (v *validator) fields(fs Fields, state map[string]any, path Path, parent *scope) {
	if omitted(state) {
		return
	}
	sc := parent.child(state)
	syn := &synth{o: v.o}
	for _, f := range fs {
		if v.done() {
			return
		}
		if f == nil || !relianceHolds(f.Reliance, sc) {
			continue
		}
		val, ok := state[f.Key]
		if !ok {
			val = syn.field(f)
		}
		v.field(f, val, path.Append(f.Key), sc)
	}
}

func omitted(state map[string]any) bool {
	b, _ := state[OmitSectionKey].(bool)
	return b
}

func (v *validator) field(f *Field, val any, path Path, sc *scope) {
	if f.IsTable() {
		v.table(f, val, path, sc)
		return
	}
	if f.SwitchOn != "" {
		sel, _ := sc.lookup(f.SwitchOn)
		if target := f.switchCase(sel); target != nil {
			v.field(target, val, path, sc)
		}
		return
	}
	switch f.FieldType {
	case FieldSelect:
		sel, _ := fallbackSelection(f, val)
		v.fail(path, checkValue(f, sel))
	case FieldCriteriaSelect, FieldHeadersScheduleCriteriaSelect:
		v.criteria(f, val, path, sc)
	case FieldHeaderSelect:
		v.headerSelect(f, val, path, sc)
	case FieldHeader, FieldFlexibleHeader:
		sub, _ := asMap(val)
		v.fields(f.SubItems, sub, path, sc)
	default:
		v.fail(path, checkValue(f, val))
	}
}

func (v *validator) criteria(f *Field, val any, path Path, sc *scope) {
	m, _ := asMap(val)
	critField := &Field{Key: f.Key, FieldType: FieldSelect, Required: f.Required, MenuItems: f.MenuItems}
	if d, ok := asMap(f.Default); ok {
		critField.Default = d["criteria"]
	}
	crit, _ := fallbackSelection(critField, m["criteria"])
	if msg := checkValue(critField, crit); msg != "" {
		v.fail(path.Append("criteria"), msg)
		return
	}
	item := findMenuItem(f.MenuItems, selectionValue(crit))
	if item == nil {
		return
	}
	if key, items := alternateSourceFor(f, item); key != "" {
		alt := &Field{Key: f.Key, FieldType: FieldSelect, Required: true, MenuItems: items}
		sel, _ := fallbackSelection(alt, m[key])
		v.fail(path.Append(key), checkValue(alt, sel))
		if v.done() {
			return
		}
		item = findMenuItem(items, selectionValue(sel))
		if item == nil {
			return
		}
	}
	v.field(item.asField(f), m["value"], path.Append("value"), sc)
}

func (v *validator) headerSelect(f *Field, val any, path Path, sc *scope) {
	m, _ := asMap(val)
	selField := &Field{Key: f.Key, FieldType: FieldSelect, Required: f.Required, Default: f.Default, MenuItems: f.MenuItems}
	sel, _ := fallbackSelection(selField, m["criteria"])
	if msg := checkValue(selField, sel); msg != "" {
		v.fail(path.Append("criteria"), msg)
		return
	}
	item := findMenuItem(f.MenuItems, selectionValue(sel))
	switch {
	case item == nil:
	case len(item.SubItems) > 0:
		sub, _ := asMap(m["value"])
		v.fields(item.SubItems, sub, path.Append("value"), sc)
	case item.FieldType != "":
		v.field(item.asField(f), m["value"], path.Append("value"), sc)
	}
}

func (v *validator) table(f *Field, val any, path Path, sc *scope) {
	tbl, _ := asMap(val)
	if omitted(tbl) {
		return
	}
	stored, _ := asMap(tbl["headers"])
	headers := tableHeaders(f, stored)
	rows, _ := asSlice(tbl["rows"])
	cols := visibleColumns(f.Columns, headers)
	for i, r := range rows {
		rm, ok := asMap(r)
		if !ok {
			v.fail(path.Append("rows", indexKey(i)), "Malformed row")
			continue
		}
		rsc := sc.child(rm)
		for _, col := range cols {
			if v.done() {
				return
			}
			if !relianceHolds(col.Reliance, rsc) {
				continue
			}
			eff := effectiveColumn(col, headers)
			cp := path.Append("rows", indexKey(i), col.Key)
			cv := rm[col.Key]
			if eff.FieldType == FieldSelect {
				cv, _ = fallbackSelection(eff, cv)
			}
			if eff.FieldType.IsRange() {
				v.fail(cp, checkRowRange(eff, cv, i == len(rows)-1))
				continue
			}
			v.fail(cp, checkValue(eff, cv))
		}
	}
}

// openLastRow treats the last row's end as open regardless of what is stored,
// matching how the grid displays it.
func openLastRow(v any) any {
	m, ok := asMap(v)
	if !ok {
		return v
	}
	out := cloneMap(m)
	if _, isDate := m["start_date"]; isDate {
		out["end_date"] = EconLimit
	} else {
		out["end"] = InfSentinel
	}
	return out
}
