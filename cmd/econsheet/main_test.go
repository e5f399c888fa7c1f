package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup writes a config whose schema dir holds the pricing fixture and
// returns the config path.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	schemas := filepath.Join(dir, "schemas")
	require.NoError(t, os.MkdirAll(schemas, 0o755))
	data, err := os.ReadFile("../../pkg/econsheet/testdata/pricing.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(schemas, "pricing.yaml"), data, 0o644))

	cfg := filepath.Join(dir, "econsheet.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: error\nstore_path: docs.db\n"), 0o644))
	return cfg
}

func run(t *testing.T, cfg string, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeObject(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestDefaultsAndValidate(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "", "defaults", "pricing")
	require.NoError(t, err)
	state := decodeObject(t, out)
	assert.Equal(t, map[string]any{"label": "Flat", "value": "flat"}, state["model_type"])

	out, err = run(t, cfg, out, "validate", "pricing", "--state", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ State is valid")

	state["flat_price"] = -1
	bad, err := json.Marshal(state)
	require.NoError(t, err)
	out, err = run(t, cfg, string(bad), "validate", "pricing", "-s", "-")
	assert.Error(t, err)
	assert.Contains(t, out, "✗ flat_price: Must be at least 0")
}

func TestEditAndCompile(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "", "edit", "pricing",
		"--set", "model_type=schedule",
		"--set", "schedule.rows.0.period=12",
		"--set", "schedule.rows.0.price=1,000",
	)
	require.NoError(t, err)
	state := decodeObject(t, out)
	assert.Equal(t, "schedule", state["model_type"].(map[string]any)["value"])

	out, err = run(t, cfg, out, "compile", "pricing", "-s", "-", "--keys", "schedule")
	require.NoError(t, err)
	payload := decodeObject(t, out)
	rows := payload["schedule"].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, rows[0].(map[string]any)["price"])

	_, err = run(t, cfg, "", "edit", "pricing", "--set", "nowhere=1")
	assert.Error(t, err)
}

func TestGridTable(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, cfg, "", "grid", "pricing")
	require.NoError(t, err)
	assert.Contains(t, out, "Model Type")
	assert.Contains(t, out, "Flat")

	out, err = run(t, cfg, "", "grid", "pricing", "--format", "json")
	require.NoError(t, err)
	var grid [][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &grid))
	assert.NotEmpty(t, grid)
}

func TestSaveListShowDelete(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "", "save", "pricing", "--name", "Base case")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, cfg, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Base case")

	out, err = run(t, cfg, "", "show", id)
	require.NoError(t, err)
	doc := decodeObject(t, out)
	assert.Equal(t, "pricing", doc["kind"])
	assert.Equal(t, "1.2.0", doc["schemaVersion"])
	assert.Len(t, doc["fingerprint"], 64)

	_, err = run(t, cfg, "", "delete", id)
	require.NoError(t, err)
	_, err = run(t, cfg, "", "show", id)
	assert.Error(t, err)

	out, err = run(t, cfg, "", "defaults", "pricing")
	require.NoError(t, err)
	state := decodeObject(t, out)
	state["flat_price"] = -1
	bad, err := json.Marshal(state)
	require.NoError(t, err)
	out, err = run(t, cfg, string(bad), "save", "pricing", "-s", "-")
	assert.Error(t, err, "invalid state is not stored")
	assert.Contains(t, out, "✗ flat_price")
}

func TestLintCommand(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, cfg, "", "lint", "../../pkg/econsheet/testdata/pricing.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ No issues found")

	out, err = run(t, cfg, "version: 1.0.0\nfields:\n  a: {fieldType: select}\n", "lint")
	assert.Error(t, err)
	assert.Contains(t, out, "✗ error [field: a] [rule: menu]")
}
