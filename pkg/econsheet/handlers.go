package econsheet

import (
	"go.uber.org/zap"
)

// cellInput is the placement context a type handler renders into.
type cellInput struct {
	path      Path
	key       string
	index     int
	subKey    string
	handler   HandlerKind
	addHeader bool
	inTable   bool
	lastRow   bool
	omitted   bool
}

// typeHandler appends the cells for one value of a scalar field kind.
type typeHandler func(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell

var typeHandlers = map[FieldType]typeHandler{
	FieldSelect:          handleSelect,
	FieldDate:            handleDate,
	FieldNumber:          handleNumber,
	FieldText:            handleText,
	FieldStatic:          handleStatic,
	FieldAutoOrder:       handleAuto,
	FieldAutoSum:         handleAuto,
	FieldDateRange:       handleDateRange,
	FieldNumberRange:     handleNumberRange,
	FieldNumberRangeRate: handleNumberRange,
}

// handle dispatches a scalar field to its type handler.
func (w *walker) handle(f *Field, v any, in cellInput, out []Cell) []Cell {
	h, ok := typeHandlers[f.FieldType]
	if !ok {
		w.o.logger.Warn("no type handler", zap.String("fieldType", string(f.FieldType)), zap.Stringer("path", in.path))
		out = appendLabel(out, f, in)
		return append(out, staticCell("Unsupported field type "+string(f.FieldType), in.path))
	}
	return h(w, f, v, in, out)
}

func handleSelect(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	value = w.resolveSelect(f, value, in.path)
	c := w.valueCell(f, value, in, EditorSelect, false)
	if !in.omitted {
		c.Value = selectionLabel(value, f.MenuItems)
		if c.Value == "" && c.Error {
			c.Value = c.ErrorMessage
		}
	}
	return append(out, c)
}

func handleDate(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	return append(out, w.valueCell(f, value, in, EditorDate, false))
}

func handleNumber(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	return append(out, w.valueCell(f, value, in, EditorNumber, false))
}

func handleText(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	return append(out, w.valueCell(f, value, in, EditorText, false))
}

func handleStatic(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	if isBlank(value) {
		value = f.Default
	}
	c := w.valueCell(f, value, in, EditorNone, false)
	c.ClassName = classStatic
	return append(out, c)
}

// handleAuto renders computed columns. Their values are written by
// deriveRows before rendering and never accept edits.
func handleAuto(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	c := w.valueCell(f, value, in, EditorNone, false)
	c.ClassName = classStatic
	return append(out, c)
}

func handleDateRange(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	return append(out, w.valueCell(f, value, in, EditorDateRange, true))
}

func handleNumberRange(w *walker, f *Field, value any, in cellInput, out []Cell) []Cell {
	out = appendLabel(out, f, in)
	return append(out, w.valueCell(f, value, in, EditorNumberRange, true))
}

// valueCell builds the value cell shared by all handlers.
func (w *walker) valueCell(f *Field, value any, in cellInput, editor EditorKind, isRange bool) Cell {
	var msg string
	if !in.omitted {
		if isRange && in.inTable {
			msg = checkRowRange(f, value, in.lastRow)
		} else {
			msg = checkValue(f, value)
		}
	}
	text := w.fmt.formatDisplayValue(value, displayOptions{
		kind:     valueKind(f),
		unit:     f.Unit,
		omitted:  in.omitted,
		isRange:  isRange,
		lastRow:  in.lastRow,
		hasError: msg != "",
		errorMsg: msg,
	})
	readOnly := f.ReadOnly || editor == EditorNone || in.omitted
	c := Cell{
		Value:        text,
		ReadOnly:     readOnly,
		ClassName:    classValue,
		DataEditor:   editor,
		Error:        msg != "",
		ErrorMessage: msg,
		Meta:         Meta{Path: in.path},
	}
	if !readOnly {
		c.SheetItemData = itemData(f, in)
	}
	return c
}

func itemData(f *Field, in cellInput) *SheetItemData {
	handler := in.handler
	if handler == "" {
		handler = HandlerValue
	}
	return &SheetItemData{
		Key:         in.key,
		Path:        in.path,
		Handler:     handler,
		FieldType:   f.FieldType,
		ValueType:   valueKind(f),
		Unit:        f.Unit,
		Min:         f.Min,
		Max:         f.Max,
		MaxLength:   f.MaxLength,
		Required:    f.Required,
		MenuItems:   f.MenuItems,
		Index:       in.index,
		SubKey:      in.subKey,
		Description: f.Description,
		Placeholder: f.Placeholder,
	}
}

// resolveSelect falls back to the field's default when the current selection
// is not among the menu's options, e.g. when a referenced model was deleted.
func (w *walker) resolveSelect(f *Field, value any, path Path) any {
	def, replaced := fallbackSelection(f, value)
	if replaced {
		w.o.logger.Debug("select value not in menu, using default",
			zap.Stringer("path", path),
			zap.Any("value", selectionValue(value)),
			zap.Any("default", selectionValue(def)))
	}
	return def
}

func fallbackSelection(f *Field, value any) (any, bool) {
	if len(f.MenuItems) == 0 || findMenuItem(f.MenuItems, selectionValue(value)) != nil {
		return value, false
	}
	def := defaultSelection(f.MenuItems, f.Default)
	if isBlank(selectionValue(value)) && isBlank(selectionValue(def)) {
		return value, false
	}
	return def, true
}

func appendLabel(out []Cell, f *Field, in cellInput) []Cell {
	if !in.addHeader {
		return out
	}
	return append(out, labelCell(f))
}

func labelCell(f *Field) Cell {
	return Cell{
		Value:     f.displayLabel(),
		ReadOnly:  true,
		ClassName: classLabel,
		SheetItemData: &SheetItemData{
			Key:         f.Key,
			Index:       -1,
			Description: f.Description,
		},
	}
}

func sectionCell(f *Field) Cell {
	c := labelCell(f)
	c.ClassName = classSection
	return c
}

func staticCell(text string, path Path) Cell {
	return Cell{Value: text, ReadOnly: true, ClassName: classStatic, Meta: Meta{Path: path}}
}

func fillerCell() Cell {
	return Cell{ReadOnly: true, ClassName: classFiller, Meta: Meta{Filler: true}}
}
