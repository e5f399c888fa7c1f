package econsheet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenDataEmptyState(t *testing.T) {
	fields := loadFields(t, "example.yaml")
	assert.Nil(t, GenData(fields, nil))
	assert.Nil(t, GenData(fields, map[string]any{}))
}

func TestGenDataExample(t *testing.T) {
	fields := loadFields(t, "example.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	grid := GenData(fields, state, testOptions()...)
	require.Len(t, grid, 4)

	want := [][]string{
		{"Number", "10"},
		{"Ranges"},
		{"Range"},
		{""},
	}
	got := make([][]string, len(grid))
	for i, row := range grid {
		got[i] = rowValues(row)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}

	num := mustCell(t, grid, "num")
	assert.False(t, num.ReadOnly)
	assert.Equal(t, EditorNumber, num.DataEditor)
	require.NotNil(t, num.SheetItemData)
	assert.Equal(t, HandlerValue, num.SheetItemData.Handler)
	assert.Equal(t, 100.0, *num.SheetItemData.Max)

	r := mustCell(t, grid, "ranges", "rows", "0", "r")
	assert.Equal(t, EditorDateRange, r.DataEditor)
	require.NotNil(t, r.SheetItemData)
	assert.Equal(t, HandlerDateRange, r.SheetItemData.Handler)
	assert.Equal(t, 0, r.SheetItemData.Index)
	assert.Equal(t, "r", r.SheetItemData.SubKey)
	assert.Equal(t, "ranges", r.SheetItemData.Key)
}

func TestGenDataLayout(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	grid := GenData(fields, GenerateDefaults(fields, testOptions()...), testOptions()...)
	require.NotEmpty(t, grid)

	width := len(grid[0])
	for i, row := range grid {
		require.Len(t, row, width, "row %d", i)
		for j, c := range row {
			assert.Equal(t, i, c.Meta.Row)
			assert.Equal(t, j, c.Meta.Col)
			assert.Equal(t, i == 0, c.Meta.FirstRow)
			assert.Equal(t, i == len(grid)-1, c.Meta.LastRow)
			assert.Equal(t, j == 0, c.Meta.FirstCol)
			assert.Equal(t, j == width-1, c.Meta.LastCol)
		}
	}
	assert.Equal(t, classLabel, grid[0][0].ClassName)
	assert.False(t, grid[0][0].ReadOnly, "origin cell is always editable")
}

func TestGenDataPricingDefaults(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	grid := GenData(fields, GenerateDefaults(fields, testOptions()...), testOptions()...)

	want := [][]string{
		{"Model Type", "Flat"},
		{"Flat Price", "$50.00"},
		{"Cap", "None", ""},
		{"End", "None", "N/A"},
		{"Notes"},
		{"Comment", ""},
	}
	got := make([][]string, len(grid))
	for i, row := range grid {
		got[i] = rowValues(row)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}

	crit := mustCell(t, grid, "cap", "criteria")
	require.NotNil(t, crit.SheetItemData)
	assert.Equal(t, HandlerCriteria, crit.SheetItemData.Handler)
	assert.Len(t, crit.SheetItemData.MenuItems, 3)

	static := mustCell(t, grid, "cap", "value")
	assert.True(t, static.ReadOnly)
	assert.Nil(t, static.SheetItemData)

	assert.False(t, hasPathPrefix(grid, "schedule"))
}

func TestGenDataScheduleTable(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["model_type"] = map[string]any{"label": "Schedule", "value": "schedule"}
	state["schedule"] = map[string]any{
		"headers": map[string]any{"period": map[string]any{"label": "Months", "value": "months"}},
		"rows": []any{
			map[string]any{"period": map[string]any{"start": 1.0, "end": 12.0, "period": 12.0}, "price": 10.0},
			map[string]any{"period": map[string]any{"start": 13.0, "end": InfSentinel, "period": 6.0}, "price": 20.0},
		},
	}
	grid := GenData(fields, state, testOptions()...)

	assert.False(t, hasPathPrefix(grid, "flat_price"))

	header := mustCell(t, grid, "schedule", "headers", "period")
	assert.Equal(t, "Months", header.Value)
	assert.Equal(t, classColumnHeader, header.ClassName)
	require.NotNil(t, header.SheetItemData)
	assert.Equal(t, HandlerRowHeader, header.SheetItemData.Handler)

	assert.Equal(t, "1", mustCell(t, grid, "schedule", "rows", "0", "order").Value)
	assert.Equal(t, "2", mustCell(t, grid, "schedule", "rows", "1", "order").Value)
	assert.Equal(t, "$30.00", mustCell(t, grid, "schedule", "rows", "1", "total").Value)
	assert.True(t, mustCell(t, grid, "schedule", "rows", "1", "total").ReadOnly)

	first := mustCell(t, grid, "schedule", "rows", "0", "period")
	assert.Equal(t, "1 - 12", first.Value)
	require.NotNil(t, first.SheetItemData)
	assert.Equal(t, HandlerNumberRange, first.SheetItemData.Handler)
	assert.Equal(t, FieldNumberRange, first.SheetItemData.FieldType)
	assert.Equal(t, "13 months - Econ Limit", mustCell(t, grid, "schedule", "rows", "1", "period").Value)

	price := mustCell(t, grid, "schedule", "rows", "0", "price")
	assert.Equal(t, HandlerRow, price.SheetItemData.Handler)
	assert.Equal(t, "$10.00", price.Value)
}

func TestGenDataSelectFallsBackToDefault(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["end"] = map[string]any{"label": "Deleted model", "value": "gone"}

	grid := GenData(fields, state, testOptions()...)
	c := mustCell(t, grid, "end")
	assert.Equal(t, "None", c.Value)
	assert.False(t, c.Error)
}

func TestGenDataInlineSwitch(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["end"] = map[string]any{"label": "Months", "value": "months"}
	state["end_value"] = 0.0

	grid := GenData(fields, state, testOptions()...)
	endRow := grid[3]
	assert.Equal(t, []string{"End", "Months", "0 months"}, rowValues(endRow))

	c := mustCell(t, grid, "end_value")
	assert.Equal(t, EditorNumber, c.DataEditor)
	assert.True(t, c.Error)
	assert.Equal(t, "Must be at least 1", c.ErrorMessage)
	assert.Contains(t, c.ClassName, classError)
}

func TestGenDataHeadersScheduleCriteria(t *testing.T) {
	fields := Fields{
		{
			Key:       "escalation",
			FieldType: FieldHeadersScheduleCriteriaSelect,
			Label:     "Escalation",
			MenuItems: []MenuItem{
				{Label: "Fixed", Value: "fixed", FieldType: FieldNumber},
				{Label: "From Schedule", Value: CriteriaFromSchedule},
			},
			FromScheduleMenuItems: []MenuItem{
				{Label: "Schedule A", Value: "sched_a", FieldType: FieldNumber, ValueType: ValuePercentage},
			},
		},
	}
	state := map[string]any{
		"escalation": map[string]any{
			"criteria":     map[string]any{"label": "From Schedule", "value": CriteriaFromSchedule},
			"fromSchedule": map[string]any{"label": "Schedule A", "value": "sched_a"},
			"value":        3.0,
		},
	}
	grid := GenData(fields, state, testOptions()...)
	require.Len(t, grid, 1)
	assert.Equal(t, []string{"Escalation", "From Schedule", "Schedule A", "3%"}, rowValues(grid[0]))

	sec := mustCell(t, grid, "escalation", "fromSchedule")
	assert.Equal(t, HandlerSecondary, sec.SheetItemData.Handler)
}

func TestGenDataHeaderSelect(t *testing.T) {
	fields := Fields{
		{
			Key:       "basis",
			FieldType: FieldHeaderSelect,
			Label:     "Basis",
			MenuItems: []MenuItem{
				{Label: "Gross", Value: "gross", SubItems: Fields{
					{Key: "rate", FieldType: FieldNumber, Label: "Rate", ValueType: ValuePercentage, Default: 5.0},
				}},
				{Label: "Net", Value: "net", SubItems: Fields{
					{Key: "deduct", FieldType: FieldNumber, Label: "Deduction", ValueType: ValueDollar},
				}},
			},
			Default: "gross",
		},
	}
	state := GenerateDefaults(fields, testOptions()...)
	grid := GenData(fields, state, testOptions()...)
	require.Len(t, grid, 2)
	assert.Equal(t, []string{"Basis", "Gross"}, rowValues(grid[0]))
	assert.Equal(t, []string{"Rate", "5%"}, rowValues(grid[1]))
	assert.Equal(t, HandlerHeaderSelect, mustCell(t, grid, "basis", "criteria").SheetItemData.Handler)
	mustCell(t, grid, "basis", "value", "rate")
}

func TestGenDataVerticalTable(t *testing.T) {
	fields := Fields{
		{
			Key: VerticalRowViewKey,
			Columns: Fields{
				{Key: "oil", FieldType: FieldNumber, Label: "Oil"},
				{Key: "gas", FieldType: FieldNumber, Label: "Gas"},
			},
		},
	}
	state := map[string]any{
		VerticalRowViewKey: map[string]any{"rows": []any{map[string]any{"oil": 1.0, "gas": 2.0}}},
	}
	grid := GenData(fields, state, testOptions()...)
	require.Len(t, grid, 2)
	assert.Equal(t, []string{"Oil", "1"}, rowValues(grid[0]))
	assert.Equal(t, []string{"Gas", "2"}, rowValues(grid[1]))
}

func TestGenDataFlexibleHeader(t *testing.T) {
	fields := Fields{
		{
			Key:       "volumes",
			FieldType: FieldFlexibleHeader,
			Label:     "Volumes",
			SubItems: Fields{
				{Key: "oil", FieldType: FieldNumber, Label: "Oil", Default: 1.0},
				{Key: "gas", FieldType: FieldNumber, Label: "Gas", Default: 2.0},
			},
		},
	}
	grid := GenData(fields, GenerateDefaults(fields), testOptions()...)
	require.Len(t, grid, 1)
	assert.Equal(t, []string{"Volumes", "Oil", "1", "Gas", "2"}, rowValues(grid[0]))
}

func TestGenDataColumnReliance(t *testing.T) {
	fields := Fields{
		{
			Key: RowViewKey,
			Columns: Fields{
				{Key: "kind", FieldType: FieldSelect, Label: "Kind", MenuItems: []MenuItem{
					{Label: "Oil", Value: "oil"}, {Label: "Gas", Value: "gas"},
				}},
				{Key: "api", FieldType: FieldNumber, Label: "API", Reliance: Reliance{"kind": {"oil"}}},
				{Key: "btu", FieldType: FieldNumber, Label: "BTU", RowHeaderReliance: Reliance{"unit": {"mcf"}}},
			},
			Headers: map[string]any{"unit": map[string]any{"label": "BBL", "value": "bbl"}},
		},
	}
	state := map[string]any{
		RowViewKey: map[string]any{
			"headers": map[string]any{"unit": map[string]any{"label": "BBL", "value": "bbl"}},
			"rows": []any{
				map[string]any{"kind": map[string]any{"label": "Oil", "value": "oil"}, "api": 40.0},
				map[string]any{"kind": map[string]any{"label": "Gas", "value": "gas"}, "api": 35.0},
			},
		},
	}
	grid := GenData(fields, state, testOptions()...)
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Kind", "API"}, rowValues(grid[0]))
	assert.Equal(t, []string{"Oil", "40"}, rowValues(grid[1]))
	assert.Equal(t, []string{"Gas"}, rowValues(grid[2]))
	assert.True(t, grid[2][1].Meta.Filler)
	_, ok := findCell(grid, RowViewKey, "rows", "0", "btu")
	assert.False(t, ok)
}

func TestGenDataUnknownFieldType(t *testing.T) {
	fields := Fields{{Key: "odd", FieldType: FieldType("slider"), Label: "Odd"}}
	grid := GenData(fields, map[string]any{"odd": 1.0}, testOptions()...)
	require.Len(t, grid, 1)
	assert.Equal(t, []string{"Odd", "Unsupported field type slider"}, rowValues(grid[0]))
}

func TestGenDataRepairsMalformedState(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["cap"] = "legacy"
	delete(state, "notes")

	grid := GenData(fields, state, testOptions()...)
	assert.Equal(t, "None", mustCell(t, grid, "cap", "criteria").Value)
	mustCell(t, grid, "notes", "comment")
}

func TestMultiRowHeaderReliance(t *testing.T) {
	lo := 0.0
	fields := Fields{
		{
			Key:     "volumes",
			Headers: map[string]any{"unit": map[string]any{"label": "BBL", "value": "bbl"}},
			Columns: Fields{
				{Key: "oil", FieldType: FieldNumber, Label: "Oil"},
				{Key: "gas", FieldType: FieldNumber, Label: "Gas", Min: &lo, MultiRowHeaderReliance: []Reliance{
					{"unit": {"mcf"}},
					{"unit": {"boe"}},
				}},
			},
		},
	}

	tests := []struct {
		name    string
		unit    string
		visible bool
	}{
		{"no entry holds", "bbl", false},
		{"first entry holds", "mcf", true},
		{"second entry holds", "boe", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := map[string]any{"volumes": map[string]any{
				"headers": map[string]any{"unit": map[string]any{"label": tt.unit, "value": tt.unit}},
				"rows":    []any{map[string]any{"oil": 10.0, "gas": -1.0}},
			}}

			grid := GenData(fields, state, testOptions()...)
			_, shown := findCell(grid, "volumes", "rows", "0", "gas")
			assert.Equal(t, tt.visible, shown)

			issues := Validate(fields, state, testOptions()...)
			if tt.visible {
				require.Len(t, issues, 1)
				assert.Equal(t, Path{"volumes", "rows", "0", "gas"}, issues[0].Path)
			} else {
				assert.Empty(t, issues)
			}

			rows := Compile(fields, state, CompileOptions{})["volumes"].(map[string]any)["rows"].([]any)
			require.Len(t, rows, 1)
			_, compiled := rows[0].(map[string]any)["gas"]
			assert.Equal(t, tt.visible, compiled)
			assert.Equal(t, 10.0, rows[0].(map[string]any)["oil"])
		})
	}
}
