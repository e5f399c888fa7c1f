// Package econsheet renders economic-assumption models as editable cell grids and
// compiles the edited state into the payload consumed by the economics evaluator.
//
// A model is described by a Field Schema (Fields) and carried in a State Tree
// (plain JSON-like Go values). The package walks both together to build grids,
// synthesize defaults, validate, and serialize.
package econsheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the discriminant of a Field Schema node.
type FieldType string

const (
	FieldSelect    FieldType = "select"
	FieldDate      FieldType = "date"
	FieldNumber    FieldType = "number"
	FieldText      FieldType = "text"
	FieldStatic    FieldType = "static"
	FieldAutoOrder FieldType = "autoOrder"
	FieldAutoSum   FieldType = "autoSum"

	FieldCriteriaSelect                FieldType = "criteriaSelect"
	FieldHeaderSelect                  FieldType = "headerSelect"
	FieldHeadersScheduleCriteriaSelect FieldType = "headersScheduleCriteriaSelect"
	FieldDateRange                     FieldType = "dateRange"
	FieldNumberRange                   FieldType = "numberRange"
	FieldNumberRangeRate               FieldType = "numberRangeRate"
	FieldHeader                        FieldType = "header"
	FieldFlexibleHeader                FieldType = "flexibleHeader"
)

// Criteria values that switch a headersScheduleCriteriaSelect to an alternate source.
const (
	CriteriaFromSchedule = "from_schedule"
	CriteriaFromHeaders  = "from_headers"
)

// Keys that mark a tabular section in the State Tree.
const (
	RowViewKey         = "row_view"
	VerticalRowViewKey = "vertical_row_view"
)

// IsAuto reports whether values of this kind are computed rather than entered.
func (t FieldType) IsAuto() bool {
	return strings.Contains(strings.ToLower(string(t)), "auto")
}

// IsRange reports whether the kind holds a {start,end} style pair.
func (t FieldType) IsRange() bool {
	switch t {
	case FieldDateRange, FieldNumberRange, FieldNumberRangeRate:
		return true
	}
	return false
}

// IsScalar reports whether the kind renders as a single value cell.
// Range kinds count as scalar here: they occupy one cell even though their
// state is a pair.
func (t FieldType) IsScalar() bool {
	switch t {
	case FieldSelect, FieldDate, FieldNumber, FieldText, FieldStatic, FieldAutoOrder, FieldAutoSum,
		FieldDateRange, FieldNumberRange, FieldNumberRangeRate:
		return true
	}
	return false
}

// Known reports whether the kind is part of the schema language.
func (t FieldType) Known() bool {
	if t.IsScalar() {
		return true
	}
	switch t {
	case FieldCriteriaSelect, FieldHeaderSelect, FieldHeadersScheduleCriteriaSelect, FieldHeader, FieldFlexibleHeader:
		return true
	}
	return false
}

// ValueType selects how a value is displayed.
type ValueType string

const (
	ValueNumber     ValueType = "number"
	ValueDollar     ValueType = "dollar"
	ValuePercentage ValueType = "percentage"
	ValueDays       ValueType = "days"
	ValueMonths     ValueType = "months"
	ValueYears      ValueType = "years"
	ValueText       ValueType = "text"
	ValueDate       ValueType = "date"
)

// Reliance gates a field on the values of other fields: every listed key must
// resolve to one of its allowed values.
type Reliance map[string][]any

// MenuItem is one option of a select, criteria or header menu. A criteria option
// carries its own field attributes so the chosen criteria decides how the value
// is edited.
type MenuItem struct {
	Label     string     `yaml:"label" json:"label"`
	Value     any        `yaml:"value" json:"value"`
	FieldType FieldType  `yaml:"fieldType,omitempty" json:"fieldType,omitempty"`
	ValueType ValueType  `yaml:"valueType,omitempty" json:"valueType,omitempty"`
	Unit      string     `yaml:"unit,omitempty" json:"unit,omitempty"`
	Min       *float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64   `yaml:"max,omitempty" json:"max,omitempty"`
	Required  bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Default   any        `yaml:"Default,omitempty" json:"Default,omitempty"`
	MenuItems []MenuItem `yaml:"menuItems,omitempty" json:"menuItems,omitempty"`
	SubItems  Fields     `yaml:"subItems,omitempty" json:"subItems,omitempty"`
}

// Selection returns the {label, value} state stored when the item is chosen.
func (m MenuItem) Selection() map[string]any {
	return map[string]any{"label": m.Label, "value": normalizeValue(m.Value)}
}

// asField derives the nested field a chosen option stands for. Attributes the
// option leaves unset are inherited from base.
func (m *MenuItem) asField(base *Field) *Field {
	f := &Field{
		Key:       base.Key,
		FieldType: m.FieldType,
		Label:     base.Label,
		Required:  base.Required || m.Required,
		Default:   m.Default,
		Min:       m.Min,
		Max:       m.Max,
		Unit:      m.Unit,
		ValueType: m.ValueType,
		MenuItems: m.MenuItems,
		SubItems:  m.SubItems,
	}
	if f.FieldType == "" {
		f.FieldType = FieldNumber
	}
	if f.ValueType == "" {
		f.ValueType = base.ValueType
	}
	if f.Unit == "" {
		f.Unit = base.Unit
	}
	return f
}

// Field is one node of a Field Schema.
type Field struct {
	Key         string    `yaml:"-" json:"-"`
	FieldType   FieldType `yaml:"fieldType,omitempty" json:"fieldType,omitempty"`
	Label       string    `yaml:"label,omitempty" json:"label,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Placeholder string    `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly    bool      `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`
	Default     any       `yaml:"Default,omitempty" json:"Default,omitempty"`

	Min       *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	MaxLength *int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Unit      string    `yaml:"unit,omitempty" json:"unit,omitempty"`
	ValueType ValueType `yaml:"valueType,omitempty" json:"valueType,omitempty"`

	MenuItems             []MenuItem `yaml:"menuItems,omitempty" json:"menuItems,omitempty"`
	FromScheduleMenuItems []MenuItem `yaml:"fromScheduleMenuItems,omitempty" json:"fromScheduleMenuItems,omitempty"`
	FromHeadersMenuItems  []MenuItem `yaml:"fromHeadersMenuItems,omitempty" json:"fromHeadersMenuItems,omitempty"`

	Reliance               Reliance   `yaml:"reliance,omitempty" json:"reliance,omitempty"`
	RowHeaderReliance      Reliance   `yaml:"rowHeaderReliance,omitempty" json:"rowHeaderReliance,omitempty"`
	MultiRowHeaderReliance []Reliance `yaml:"multiRowHeaderReliance,omitempty" json:"multiRowHeaderReliance,omitempty"`

	SubItems Fields `yaml:"subItems,omitempty" json:"subItems,omitempty"`

	// Tabular sections.
	Columns         Fields           `yaml:"columns,omitempty" json:"columns,omitempty"`
	Headers         map[string]any   `yaml:"headers,omitempty" json:"headers,omitempty"`
	DefaultRows     []map[string]any `yaml:"defaultRows,omitempty" json:"defaultRows,omitempty"`
	Vertical        bool             `yaml:"vertical,omitempty" json:"vertical,omitempty"`
	HeaderMenuItems []MenuItem       `yaml:"headerMenuItems,omitempty" json:"headerMenuItems,omitempty"`
	HeaderDefault   any              `yaml:"headerDefault,omitempty" json:"headerDefault,omitempty"`
	SumOf           string           `yaml:"sumOf,omitempty" json:"sumOf,omitempty"`

	CriteriaHeader bool `yaml:"criteriaHeader,omitempty" json:"criteriaHeader,omitempty"`

	// SwitchOn names a sibling selection whose value picks the case this field
	// renders as. A selection with no case renders a static N/A cell.
	SwitchOn string            `yaml:"switchOn,omitempty" json:"switchOn,omitempty"`
	Cases    map[string]*Field `yaml:"cases,omitempty" json:"cases,omitempty"`
	Inline   bool              `yaml:"inline,omitempty" json:"inline,omitempty"`
}

// IsTable reports whether the field is a tabular section.
func (f *Field) IsTable() bool {
	return f.Key == RowViewKey || f.Key == VerticalRowViewKey || len(f.Columns) > 0
}

// IsVertical reports whether a tabular section renders transposed.
func (f *Field) IsVertical() bool {
	return f.Key == VerticalRowViewKey || f.Vertical
}

func (f *Field) displayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}

// findMenuItem returns the option whose value matches v.
func findMenuItem(items []MenuItem, v any) *MenuItem {
	if isBlank(v) {
		return nil
	}
	for i := range items {
		if valuesEqual(items[i].Value, v) {
			return &items[i]
		}
	}
	return nil
}

// Fields is an ordered Field Schema. Order is the grid's row order.
type Fields []*Field

// Get returns the field with the given key, or nil.
func (fs Fields) Get(key string) *Field {
	for _, f := range fs {
		if f != nil && f.Key == key {
			return f
		}
	}
	return nil
}

// Keys returns the field keys in schema order.
func (fs Fields) Keys() []string {
	keys := make([]string, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// UnmarshalYAML decodes a mapping node while keeping key order.
func (fs *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields: expected mapping, got %v at line %d", node.Tag, node.Line)
	}
	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var f Field
		if err := node.Content[i+1].Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		f.Key = key
		f.normalize()
		out = append(out, &f)
	}
	*fs = out
	return nil
}

// UnmarshalJSON decodes a JSON object while keeping key order.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	if tok == nil {
		*fs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}
	var out Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		var f Field
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		f.Key = key
		f.normalize()
		out = append(out, &f)
	}
	*fs = out
	return nil
}

// MarshalJSON encodes the fields as an object in schema order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// normalize converts decoded literals to the JSON-like shapes used in state.
func (f *Field) normalize() {
	f.Default = normalizeValue(f.Default)
	f.HeaderDefault = normalizeValue(f.HeaderDefault)
	for k, v := range f.Headers {
		f.Headers[k] = normalizeValue(v)
	}
	for i, row := range f.DefaultRows {
		f.DefaultRows[i] = normalizeValue(row).(map[string]any)
	}
	for key, c := range f.Cases {
		if c != nil {
			c.Key = key
			c.normalize()
		}
	}
}

// WithMenuItems returns a copy of the schema where the field at path has extra
// menu items appended. It is used to borrow option lists from a related
// assumption, such as escalation models from the pricing schema.
func (fs Fields) WithMenuItems(path Path, items []MenuItem) (Fields, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrBadPath)
	}
	out := make(Fields, len(fs))
	copy(out, fs)
	for i, f := range out {
		if f == nil || f.Key != path[0] {
			continue
		}
		cp := *f
		if len(path) == 1 {
			cp.MenuItems = append(append([]MenuItem(nil), f.MenuItems...), items...)
			out[i] = &cp
			return out, nil
		}
		var err error
		if sub := f.SubItems.Get(path[1]); sub != nil {
			cp.SubItems, err = f.SubItems.WithMenuItems(path[1:], items)
		} else {
			cp.Columns, err = f.Columns.WithMenuItems(path[1:], items)
		}
		if err != nil {
			return nil, err
		}
		out[i] = &cp
		return out, nil
	}
	return nil, fmt.Errorf("%w: no field %q", ErrBadPath, path[0])
}

// Schema is a Field Schema document for one assumption kind.
type Schema struct {
	Kind    string `yaml:"kind" json:"kind"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Fields  Fields `yaml:"fields" json:"fields"`
}

// ParseSchema decodes a schema document. JSON input is detected by its leading
// brace; anything else is read as YAML.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	trimmed := bytes.TrimSpace(data)
	var err error
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &s)
	} else {
		err = yaml.Unmarshal(trimmed, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("parse schema: no fields")
	}
	return &s, nil
}

// LoadSchema reads and parses a schema document from disk.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema %q: %w", path, err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("load schema %q: %w", path, err)
	}
	if s.Kind == "" {
		s.Kind = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}
