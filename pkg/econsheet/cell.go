package econsheet

import (
	"fmt"
	"strconv"
)

// EditorKind tells the grid host which editor widget a cell uses.
type EditorKind string

const (
	EditorNone        EditorKind = ""
	EditorText        EditorKind = "text"
	EditorNumber      EditorKind = "number"
	EditorSelect      EditorKind = "select"
	EditorDate        EditorKind = "date"
	EditorDateRange   EditorKind = "date-range"
	EditorNumberRange EditorKind = "number-range"
)

// HandlerKind names the host callback that receives an edit of a cell.
type HandlerKind string

const (
	HandlerValue        HandlerKind = "value"
	HandlerCriteria     HandlerKind = "criteria"
	HandlerSecondary    HandlerKind = "secondary"
	HandlerHeaderSelect HandlerKind = "header-select"
	HandlerRow          HandlerKind = "row"
	HandlerRowHeader    HandlerKind = "rowHeader"
	HandlerDateRange    HandlerKind = "date-range"
	HandlerNumberRange  HandlerKind = "number-range"
)

// Cell class names.
const (
	classLabel        = "label"
	classSection      = "section"
	classColumnHeader = "column-header"
	classValue        = "value"
	classStatic       = "static"
	classFiller       = "filler"
	classError        = "error"
)

// SheetItemData is the edit-time context the host needs to dispatch an edit
// back into state.
type SheetItemData struct {
	Key         string      `json:"key"`
	Path        Path        `json:"path"`
	Handler     HandlerKind `json:"handler,omitempty"`
	FieldType   FieldType   `json:"fieldType,omitempty"`
	ValueType   ValueType   `json:"valueType,omitempty"`
	Unit        string      `json:"unit,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	MaxLength   *int        `json:"maxLength,omitempty"`
	Required    bool        `json:"required,omitempty"`
	MenuItems   []MenuItem  `json:"menuItems,omitempty"`
	Index       int         `json:"index"`
	SubKey      string      `json:"subKey,omitempty"`
	Description string      `json:"description,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
}

// Meta carries the write-back path and the grid position of a cell.
type Meta struct {
	Path     Path `json:"path,omitempty"`
	Row      int  `json:"row"`
	Col      int  `json:"col"`
	FirstRow bool `json:"firstRow,omitempty"`
	LastRow  bool `json:"lastRow,omitempty"`
	FirstCol bool `json:"firstCol,omitempty"`
	LastCol  bool `json:"lastCol,omitempty"`
	Filler   bool `json:"filler,omitempty"`
}

// Cell is one unit of the rendered grid.
type Cell struct {
	Value         string         `json:"value"`
	ReadOnly      bool           `json:"readOnly"`
	ClassName     string         `json:"className,omitempty"`
	DataEditor    EditorKind     `json:"dataEditor,omitempty"`
	Error         bool           `json:"error,omitempty"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	SheetItemData *SheetItemData `json:"sheetItemData,omitempty"`
	Meta          Meta           `json:"meta"`
}

// Edit is the argument passed to a host handler.
type Edit struct {
	Value        any
	Key          string
	Path         Path
	Index        int
	SubKey       string
	FieldType    FieldType
	FullMenuItem *MenuItem
}

// HandlerFunc applies one edit.
type HandlerFunc func(Edit) error

// Handlers maps handler kinds to host callbacks.
type Handlers map[HandlerKind]HandlerFunc

// Dispatch routes an edit of cell to the matching handler. For menu cells the
// chosen option is resolved from value, which may be the option's value or
// its label.
func Dispatch(h Handlers, c Cell, value any) error {
	d := c.SheetItemData
	if c.ReadOnly || d == nil {
		return fmt.Errorf("%w: %s", ErrReadOnly, c.Meta.Path)
	}
	fn := h[d.Handler]
	if fn == nil {
		return fmt.Errorf("%w %q for %s", ErrNoHandler, d.Handler, d.Path)
	}
	edit := Edit{
		Value:     value,
		Key:       d.Key,
		Path:      d.Path,
		Index:     d.Index,
		SubKey:    d.SubKey,
		FieldType: d.FieldType,
	}
	if len(d.MenuItems) > 0 {
		edit.FullMenuItem = matchMenuItem(d.MenuItems, value)
		if edit.FullMenuItem == nil && !isBlank(value) {
			return fmt.Errorf("%w: %v is not an option of %s", ErrBadPath, value, d.Path)
		}
	}
	return fn(edit)
}

func matchMenuItem(items []MenuItem, v any) *MenuItem {
	if m, ok := asMap(v); ok {
		v = m["value"]
	}
	if item := findMenuItem(items, v); item != nil {
		return item
	}
	if s, ok := v.(string); ok {
		for i := range items {
			if items[i].Label == s {
				return &items[i]
			}
		}
	}
	return nil
}

func indexKey(i int) string {
	return strconv.Itoa(i)
}
