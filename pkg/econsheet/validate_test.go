package econsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidExample(t *testing.T) {
	fields := loadFields(t, "example.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	assert.True(t, IsValid(fields, state))

	state["num"] = 150.0
	assert.False(t, IsValid(fields, state))
	issues := Validate(fields, state)
	require.Len(t, issues, 1)
	assert.Equal(t, Path{"num"}, issues[0].Path)
	assert.Equal(t, "num: Must be between 0 and 100", issues[0].String())

	state["num"] = 50.0
	assert.True(t, IsValid(fields, state))
}

func TestValidatorMonotonicity(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	require.True(t, IsValid(fields, state))

	extended := append(Fields{}, fields...)
	extended = append(extended, &Field{
		Key:       "operator",
		FieldType: FieldText,
		Required:  true,
		Reliance:  Reliance{"model_type": {"flat"}},
	})
	state["operator"] = ""
	assert.False(t, IsValid(extended, state), "required empty field must fail")

	state["model_type"] = map[string]any{"label": "Schedule", "value": "schedule"}
	state["schedule"].(map[string]any)["rows"] = []any{
		map[string]any{"period": map[string]any{"start": 1.0, "end": "", "period": 12.0}, "price": 5.0},
	}
	assert.True(t, IsValid(extended, state), "field hidden by reliance must not fail")

	state["model_type"] = map[string]any{"label": "Flat", "value": "flat"}
	state["operator"] = "ACME"
	assert.True(t, IsValid(extended, state))
}

func TestValidateCollectsAllIssues(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["model_type"] = map[string]any{"label": "Schedule", "value": "schedule"}
	state["cap"] = map[string]any{
		"criteria": map[string]any{"label": "Dollar Cap", "value": "dollar_cap"},
		"value":    -1.0,
	}
	state["notes"] = map[string]any{"comment": "this comment is far too long"}
	state["schedule"] = map[string]any{
		"headers": map[string]any{"period": map[string]any{"label": "Months", "value": "months"}},
		"rows": []any{
			map[string]any{"period": map[string]any{"start": 1.0, "end": 12.0, "period": 12.0}, "price": 10.0},
			map[string]any{"period": map[string]any{"start": 13.0, "end": "", "period": ""}, "price": ""},
		},
	}

	issues := Validate(fields, state, testOptions()...)
	got := make(map[string]string, len(issues))
	for _, is := range issues {
		got[is.Path.String()] = is.Message
	}
	assert.Equal(t, map[string]string{
		"cap.value":             "Must be at least 0",
		"schedule.rows.1.price": msgRequired,
		"notes.comment":         "Must be at most 20 characters",
	}, got)
	assert.False(t, IsValid(fields, state))
}

func TestValidateCriteriaRequired(t *testing.T) {
	fields := Fields{{
		Key:       "cap",
		FieldType: FieldCriteriaSelect,
		Required:  true,
		MenuItems: []MenuItem{{Label: "Dollar", Value: "dollar"}},
	}}
	state := GenerateDefaults(fields)
	issues := Validate(fields, state)
	require.Len(t, issues, 1)
	assert.Equal(t, Path{"cap", "criteria"}, issues[0].Path)
	assert.Equal(t, msgRequired, issues[0].Message)

	state["cap"] = map[string]any{"criteria": map[string]any{"label": "Dollar", "value": "dollar"}, "value": ""}
	issues = Validate(fields, state)
	require.Len(t, issues, 1)
	assert.Equal(t, Path{"cap", "value"}, issues[0].Path)

	state["cap"] = map[string]any{"criteria": map[string]any{"label": "Dollar", "value": "dollar"}, "value": 10.0}
	assert.Empty(t, Validate(fields, state))
}

func TestValidateOmitSection(t *testing.T) {
	fields := Fields{{
		Key:       "royalty",
		FieldType: FieldHeader,
		SubItems: Fields{
			{Key: "rate", FieldType: FieldNumber, Required: true},
		},
	}}
	state := map[string]any{"royalty": map[string]any{"rate": ""}}
	assert.False(t, IsValid(fields, state))

	state["royalty"] = map[string]any{"rate": "", OmitSectionKey: true}
	assert.True(t, IsValid(fields, state))
}

func TestValidateSelectFallback(t *testing.T) {
	fields := loadFields(t, "pricing.yaml")
	state := GenerateDefaults(fields, testOptions()...)
	state["end"] = map[string]any{"label": "Gone", "value": "gone"}
	assert.True(t, IsValid(fields, state), "stale selections validate as their default")
}
