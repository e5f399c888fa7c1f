package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlovans/econsheet/pkg/econsheet"
)

func loadPricing(t *testing.T) *econsheet.Schema {
	t.Helper()
	s, err := econsheet.LoadSchema("../econsheet/testdata/pricing.yaml")
	require.NoError(t, err)
	return s
}

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(`{"kind": "pricing", "name": "Base", "options": {"flat_price": 20}}`))
	require.NoError(t, err)
	assert.Equal(t, "pricing", doc.Kind)
	assert.Equal(t, 20.0, doc.Options["flat_price"])

	for name, data := range map[string]string{
		"not json":        `{"kind":`,
		"missing options": `{"kind": "pricing"}`,
		"empty kind":      `{"kind": "", "options": {}}`,
		"bad fingerprint": `{"kind": "pricing", "options": {}, "fingerprint": "xyz"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			assert.True(t, errors.Is(err, ErrEnvelope), "got %v", err)
		})
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		saved, current string
		want           bool
	}{
		{"1.0.0", "1.2.0", true},
		{"1.2.0", "1.2.0", true},
		{"1.2.0", "1.0.0", false},
		{"1.0.0", "2.0.0", false},
		{"", "1.0.0", true},
		{"1.0.0", "", true},
	}
	for _, tt := range tests {
		got, err := Compatible(tt.saved, tt.current)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.saved, tt.current)
	}

	_, err := Compatible("one", "1.0.0")
	assert.Error(t, err)
}

func TestPrepareDefaults(t *testing.T) {
	schema := loadPricing(t)
	doc := &Document{Name: "Base"}
	require.NoError(t, Prepare(doc, schema, PrepareOptions{}))

	assert.Equal(t, "pricing", doc.Kind)
	assert.Equal(t, "1.2.0", doc.SchemaVersion)
	want := map[string]any{
		"model_type": "flat",
		"flat_price": 50.0,
		"cap":        map[string]any{"none": ""},
		"end":        "none",
		"notes":      map[string]any{"comment": ""},
	}
	if diff := cmp.Diff(want, doc.EconFunction); diff != "" {
		t.Errorf("econ_function mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, doc.Fingerprint, 64)
	assert.False(t, doc.Stale())

	doc.EconFunction["flat_price"] = 60.0
	assert.True(t, doc.Stale())
}

func TestPrepareRoundTrip(t *testing.T) {
	schema := loadPricing(t)
	doc := &Document{}
	require.NoError(t, Prepare(doc, schema, PrepareOptions{}))

	data, err := doc.Encode()
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, back.Stale())

	first := back.Fingerprint
	require.NoError(t, Prepare(back, schema, PrepareOptions{}))
	assert.Equal(t, first, back.Fingerprint, "re-preparing a stored document is stable")
}

func TestPrepareRejects(t *testing.T) {
	schema := loadPricing(t)

	doc := &Document{Kind: "pricing", Options: econsheet.GenerateDefaults(schema.Fields)}
	doc.Options["flat_price"] = -5.0
	err := Prepare(doc, schema, PrepareOptions{})
	var invalid *InvalidError
	require.True(t, errors.As(err, &invalid), "got %v", err)
	require.Len(t, invalid.Issues, 1)
	assert.Equal(t, econsheet.Path{"flat_price"}, invalid.Issues[0].Path)
	assert.Empty(t, doc.Fingerprint, "a rejected document is not stamped")

	err = Prepare(&Document{Kind: "tax"}, schema, PrepareOptions{})
	assert.True(t, errors.Is(err, ErrKind))

	err = Prepare(&Document{SchemaVersion: "2.0.0"}, schema, PrepareOptions{})
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestFingerprintIsCanonical(t *testing.T) {
	a, err := Fingerprint(map[string]any{"a": 1, "b": map[string]any{"y": "x", "c": 2.5}})
	require.NoError(t, err)
	b, err := Fingerprint(json.RawMessage(`{"b": {"c": 2.50, "y": "x"}, "a": 1.0}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
