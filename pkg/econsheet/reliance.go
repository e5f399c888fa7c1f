package econsheet

// scope resolves reliance keys against the state of the current level first,
// then its ancestors.
type scope struct {
	values map[string]any
	parent *scope
}

func (s *scope) child(values map[string]any) *scope {
	return &scope{values: values, parent: s}
}

func (s *scope) lookup(key string) (any, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// relianceHolds reports whether every dependee resolves to an allowed value.
// A dependee that cannot be found fails the check.
func relianceHolds(r Reliance, sc *scope) bool {
	for key, allowed := range r {
		v, ok := sc.lookup(key)
		if !ok || !allows(allowed, v) {
			return false
		}
	}
	return true
}

// anyRelianceHolds is true when the list is empty or any entry holds.
func anyRelianceHolds(rs []Reliance, sc *scope) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if relianceHolds(r, sc) {
			return true
		}
	}
	return false
}

func allows(allowed []any, v any) bool {
	actual := selectionValue(v)
	for _, a := range allowed {
		if valuesEqual(normalizeValue(a), actual) {
			return true
		}
	}
	return false
}

// columnVisible applies rowHeaderReliance and multiRowHeaderReliance against
// the table's header selections.
func columnVisible(col *Field, headers map[string]any) bool {
	hs := &scope{values: headers}
	return relianceHolds(col.RowHeaderReliance, hs) && anyRelianceHolds(col.MultiRowHeaderReliance, hs)
}

func visibleColumns(columns Fields, headers map[string]any) Fields {
	out := make(Fields, 0, len(columns))
	for _, col := range columns {
		if col != nil && columnVisible(col, headers) {
			out = append(out, col)
		}
	}
	return out
}

// effectiveColumn resolves a column whose header is a selection to the field
// its chosen header option describes.
func effectiveColumn(col *Field, headers map[string]any) *Field {
	if len(col.HeaderMenuItems) == 0 {
		return col
	}
	sel, ok := headers[col.Key]
	if !ok || isBlank(selectionValue(sel)) {
		sel = col.HeaderDefault
	}
	item := findMenuItem(col.HeaderMenuItems, selectionValue(sel))
	if item == nil || item.FieldType == "" {
		return col
	}
	eff := item.asField(col)
	eff.Reliance = col.Reliance
	eff.SumOf = col.SumOf
	eff.Description = col.Description
	eff.ReadOnly = col.ReadOnly
	return eff
}
