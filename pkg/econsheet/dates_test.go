package econsheet

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"2024-01-05", "2024-01-05"},
		{"01/05/2024", "2024-01-05"},
		{"1/5/2024", "2024-01-05"},
		{"2024/01/05", "2024-01-05"},
		{"2024-01-05T23:30:00", "2024-01-05"},
		{"2024-01-05T23:30:00Z", "2024-01-05"},
		{"2024-01-05T23:30:00-05:00", "2024-01-06"},
		{"2024-01-05T00:30:00+02:00", "2024-01-04"},
		{"Fri Jan 05 2024 00:00:00 GMT-0600 (Central Standard Time)", "2024-01-05"},
		{time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC), "2024-01-05"},
		{EconLimit, EconLimit},
		{"", ""},
		{nil, nil},
		{12.0, 12.0},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDateRejects(t *testing.T) {
	for _, in := range []any{"13/45/2024", "soon", "inf", time.Time{}, 3} {
		if _, ok := ParseDate(in); ok {
			t.Errorf("ParseDate(%v) accepted", in)
		}
	}
}

func TestFirstOfNextMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "04/01/2024"},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), "01/01/2025"},
	}
	for _, tt := range tests {
		if got := firstOfNextMonth(tt.now); got != tt.want {
			t.Errorf("firstOfNextMonth(%v) = %q, want %q", tt.now, got, tt.want)
		}
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	layouts := []string{
		payloadDateLayout,
		uiDateLayout,
		"1/2/2006",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"Mon Jan 02 2006 15:04:05 GMT-0700",
	}
	base := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	zones := []*time.Location{time.UTC, time.FixedZone("cst", -6*3600), time.FixedZone("ist", 5*3600+1800)}

	properties.Property("normalizeDate(normalizeDate(x)) == normalizeDate(x)", prop.ForAll(
		func(minutes int, layout int, zone int) bool {
			ts := base.Add(time.Duration(minutes) * time.Minute).In(zones[zone])
			in := ts.Format(layouts[layout])
			once := NormalizeDate(in)
			return NormalizeDate(once) == once && NormalizeDate(ts) == NormalizeDate(NormalizeDate(ts))
		},
		gen.IntRange(0, 60*24*365*60),
		gen.IntRange(0, len(layouts)-1),
		gen.IntRange(0, len(zones)-1),
	))

	properties.TestingRun(t)
}
