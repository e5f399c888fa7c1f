package econsheet

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// displayOptions are the inputs of formatDisplayValue besides the value.
type displayOptions struct {
	kind     ValueType
	unit     string
	omitted  bool
	isRange  bool
	lastRow  bool
	hasError bool
	errorMsg string
}

type formatter struct {
	p *message.Printer
}

func newFormatter(tag language.Tag) *formatter {
	return &formatter{p: message.NewPrinter(tag)}
}

// formatDisplayValue renders a state value as cell text.
func (f *formatter) formatDisplayValue(value any, o displayOptions) string {
	if o.omitted {
		return ""
	}
	var out string
	if o.isRange {
		out = f.formatRange(value, o)
	} else {
		out = f.formatScalar(value, o.kind, o.unit)
	}
	if out == "" && o.hasError {
		return o.errorMsg
	}
	return out
}

func (f *formatter) formatScalar(value any, kind ValueType, unit string) string {
	if m, ok := asMap(value); ok {
		if isSelection(m) {
			return selectionLabel(m, nil)
		}
		return ""
	}
	if isBlank(value) {
		return ""
	}
	if kind == ValueDate {
		return displayDate(value)
	}
	if kind == ValueText {
		return fmt.Sprint(value)
	}
	n, ok := toFloat(value)
	if !ok {
		return fmt.Sprint(value)
	}
	switch kind {
	case ValueDollar:
		s := f.p.Sprint(number.Decimal(math.Abs(n), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
		if n < 0 {
			return "-$" + s
		}
		return "$" + s
	case ValuePercentage:
		return f.decimal(n) + "%"
	case ValueDays:
		return f.decimal(n) + " days"
	case ValueMonths:
		return f.decimal(n) + " months"
	case ValueYears:
		return f.decimal(n) + " years"
	}
	if unit != "" {
		return f.decimal(n) + " " + unit
	}
	return f.decimal(n)
}

func (f *formatter) decimal(n float64) string {
	return f.p.Sprint(number.Decimal(n, number.MaxFractionDigits(6)))
}

// formatRange renders {start_date,end_date} or {start,end} as "a - b". The
// last row's end is always shown as Econ Limit.
func (f *formatter) formatRange(value any, o displayOptions) string {
	m, ok := asMap(value)
	if !ok {
		return ""
	}
	if _, isDate := m["start_date"]; isDate {
		start := displayDate(m["start_date"])
		if start == "" {
			return ""
		}
		end := displayDate(m["end_date"])
		if o.lastRow || isOpenEnd(m["end_date"]) {
			end = EconLimit
		}
		return start + " - " + end
	}
	start := f.rangeBound(m["start"])
	if start == "" {
		return ""
	}
	if o.lastRow || isOpenEnd(m["end"]) {
		if o.unit != "" {
			return start + " " + o.unit + " - " + EconLimit
		}
		return start + " - " + EconLimit
	}
	return start + " - " + f.rangeBound(m["end"])
}

func (f *formatter) rangeBound(v any) string {
	if n, ok := toFloat(v); ok {
		return f.decimal(n)
	}
	if isBlank(v) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// valueKind picks the display kind of a field.
func valueKind(f *Field) ValueType {
	if f.ValueType != "" {
		return f.ValueType
	}
	switch f.FieldType {
	case FieldDate:
		return ValueDate
	case FieldText, FieldStatic:
		return ValueText
	}
	return ValueNumber
}
