package econsheet

import (
	"strings"
	"time"
)

// Open-ended range sentinels.
const (
	EconLimit   = "Econ Limit"
	InfSentinel = "inf"
)

const (
	uiDateLayout      = "01/02/2006"
	payloadDateLayout = "2006-01-02"
)

// zoned layouts carry an offset; their calendar date is taken in UTC.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

// local layouts are read as written, including browser Date strings whose
// offset is the editor's own zone.
var localLayouts = []string{
	payloadDateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	uiDateLayout,
	"1/2/2006",
	"2006/01/02",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	time.RFC1123Z,
}

// ParseDate parses a date value (time.Time or string) to a UTC midnight.
// Zoned ISO timestamps are corrected to their UTC calendar date; local strings
// keep the calendar date they spell.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
	case string:
		s := strings.TrimSpace(d)
		if i := strings.Index(s, " ("); i > 0 {
			s = s[:i]
		}
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
		for _, layout := range localLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeDate renders any accepted date form as a zero-padded YYYY-MM-DD
// string. Values that are not dates (sentinels, blanks) are returned unchanged.
func NormalizeDate(v any) any {
	t, ok := ParseDate(v)
	if !ok {
		return v
	}
	return t.Format(payloadDateLayout)
}

// FormatUIDate renders a date the way the sheet displays it.
func FormatUIDate(t time.Time) string {
	return t.Format(uiDateLayout)
}

func displayDate(v any) string {
	if t, ok := ParseDate(v); ok {
		return FormatUIDate(t)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func firstOfNextMonth(now time.Time) string {
	y, m, _ := now.Date()
	return FormatUIDate(time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC))
}

func addDays(v any, n int) (string, bool) {
	t, ok := ParseDate(v)
	if !ok {
		return "", false
	}
	return FormatUIDate(t.AddDate(0, 0, n)), true
}

func isDateKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "date")
}

func isOpenEnd(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, EconLimit) || strings.EqualFold(s, InfSentinel)
}
