package econsheet

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Cell error messages.
const (
	msgRequired       = "Required"
	msgNotNumber      = "Must be a number"
	msgInvalidDate    = "Invalid date"
	msgRangeOrder     = "Start must not be after end"
	msgDateRangeOrder = "Start date must be before end date"
	msgInvalidOption  = "Not a valid option"
	msgOpenEnd        = "Only the last row may be open-ended"
)

// checkValue returns the validation message for a single value of f, or "".
// Auto and static kinds never fail.
func checkValue(f *Field, v any) string {
	if f.FieldType.IsAuto() || f.FieldType == FieldStatic {
		return ""
	}
	switch f.FieldType {
	case FieldDateRange:
		return checkDateRange(f, v)
	case FieldNumberRange, FieldNumberRangeRate:
		return checkNumberRange(f, v)
	case FieldSelect:
		if isBlank(selectionValue(v)) {
			if f.Required {
				return msgRequired
			}
			return ""
		}
		if len(f.MenuItems) > 0 && findMenuItem(f.MenuItems, selectionValue(v)) == nil {
			return msgInvalidOption
		}
		return ""
	}

	if isBlank(v) {
		if f.Required {
			return msgRequired
		}
		return ""
	}
	switch f.FieldType {
	case FieldNumber:
		n, ok := toFloat(v)
		if !ok {
			return msgNotNumber
		}
		return checkBounds(f, n)
	case FieldDate:
		if _, ok := ParseDate(v); !ok {
			return msgInvalidDate
		}
	case FieldText:
		if f.MaxLength != nil && utf8.RuneCountInString(fmt.Sprint(v)) > *f.MaxLength {
			return fmt.Sprintf("Must be at most %d characters", *f.MaxLength)
		}
	}
	return ""
}

func checkBounds(f *Field, n float64) string {
	switch {
	case f.Min != nil && f.Max != nil && (n < *f.Min || n > *f.Max):
		return fmt.Sprintf("Must be between %s and %s", trimFloat(*f.Min), trimFloat(*f.Max))
	case f.Min != nil && n < *f.Min:
		return fmt.Sprintf("Must be at least %s", trimFloat(*f.Min))
	case f.Max != nil && n > *f.Max:
		return fmt.Sprintf("Must be at most %s", trimFloat(*f.Max))
	}
	return ""
}

// checkRowRange checks a range cell of a table row. The last row's end is
// always open; any other row must have a closed end.
func checkRowRange(f *Field, v any, last bool) string {
	if last {
		return checkValue(f, openLastRow(v))
	}
	if m, ok := asMap(v); ok && (isOpenEnd(m["end_date"]) || isOpenEnd(m["end"])) {
		return msgOpenEnd
	}
	return checkValue(f, v)
}

func checkDateRange(f *Field, v any) string {
	m, _ := asMap(v)
	start, end := m["start_date"], m["end_date"]
	if isBlank(start) || isBlank(end) {
		if f.Required {
			return msgRequired
		}
		if isBlank(start) {
			return ""
		}
	}
	s, ok := ParseDate(start)
	if !ok {
		return msgInvalidDate
	}
	if isOpenEnd(end) || isBlank(end) {
		return ""
	}
	e, ok := ParseDate(end)
	if !ok {
		return msgInvalidDate
	}
	if s.After(e) {
		return msgDateRangeOrder
	}
	return ""
}

func checkNumberRange(f *Field, v any) string {
	m, _ := asMap(v)
	start, end := m["start"], m["end"]
	if isBlank(start) || isBlank(end) {
		if f.Required {
			return msgRequired
		}
		if isBlank(start) {
			return ""
		}
	}
	s, ok := toFloat(start)
	if !ok {
		return msgNotNumber
	}
	if isOpenEnd(end) || isBlank(end) {
		return checkBounds(f, s)
	}
	e, ok := toFloat(end)
	if !ok {
		return msgNotNumber
	}
	if s > e {
		return msgRangeOrder
	}
	if msg := checkBounds(f, s); msg != "" {
		return msg
	}
	return checkBounds(f, e)
}

func trimFloat(n float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", n), "0"), ".")
}
