//go:build js && wasm

// Package main provides WASM bindings for the econsheet engine.
// This allows a browser grid host to render, validate and compile sheets
// without a server round trip.
package main

import (
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/dlovans/econsheet/pkg/econsheet"
	"github.com/dlovans/econsheet/pkg/lint"
)

func main() {
	js.Global().Set("EconsheetDefaults", js.FuncOf(defaults))
	js.Global().Set("EconsheetGrid", js.FuncOf(grid))
	js.Global().Set("EconsheetValidate", js.FuncOf(validate))
	js.Global().Set("EconsheetCompile", js.FuncOf(compile))
	js.Global().Set("EconsheetEdit", js.FuncOf(edit))
	js.Global().Set("EconsheetLint", js.FuncOf(lintSchema))

	// Keep the Go runtime alive
	select {}
}

// defaults is the JS-callable wrapper for GenerateDefaults.
// Usage: EconsheetDefaults(schemaText, isoDate?) -> { result: state, error?: string }
func defaults(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("EconsheetDefaults requires 1 argument: schemaText")
	}
	schema, err := econsheet.ParseSchema([]byte(args[0].String()))
	if err != nil {
		return makeError(err.Error())
	}
	opts, err := clockOption(args, 1)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(econsheet.GenerateDefaults(schema.Fields, opts...))
}

// grid is the JS-callable wrapper for GenData.
// Usage: EconsheetGrid(schemaText, stateJson, isoDate?) -> { result: Cell[][], error?: string }
func grid(this js.Value, args []js.Value) any {
	schema, state, errResp := schemaAndState("EconsheetGrid", args)
	if errResp != nil {
		return errResp
	}
	opts, err := clockOption(args, 2)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(econsheet.NewEditor(schema.Fields, state, opts...).Grid())
}

// validate is the JS-callable wrapper for Validate.
// Usage: EconsheetValidate(schemaText, stateJson) -> { valid: boolean, issues: [...], error?: string }
func validate(this js.Value, args []js.Value) any {
	schema, state, errResp := schemaAndState("EconsheetValidate", args)
	if errResp != nil {
		return errResp
	}
	issues := econsheet.Validate(schema.Fields, state)
	list := make([]any, 0, len(issues))
	for _, is := range issues {
		list = append(list, map[string]any{"path": is.Path.String(), "message": is.Message})
	}
	return map[string]any{
		"valid":  len(issues) == 0,
		"issues": list,
	}
}

// compile is the JS-callable wrapper for Compile.
// Usage: EconsheetCompile(schemaText, stateJson) -> { result: econFunction, error?: string }
func compile(this js.Value, args []js.Value) any {
	schema, state, errResp := schemaAndState("EconsheetCompile", args)
	if errResp != nil {
		return errResp
	}
	state = econsheet.ApplyDerived(schema.Fields, state)
	return makeResult(econsheet.Compile(schema.Fields, state, econsheet.CompileOptions{}))
}

// edit applies one cell edit addressed by key path.
// Usage: EconsheetEdit(schemaText, stateJson, path, value) -> { result: state, error?: string }
func edit(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return makeError("EconsheetEdit requires 4 arguments: schemaText, stateJson, path, value")
	}
	schema, state, errResp := schemaAndState("EconsheetEdit", args)
	if errResp != nil {
		return errResp
	}
	e := econsheet.NewEditor(schema.Fields, state)
	if err := e.Edit(econsheet.ParsePath(args[2].String()), args[3].String()); err != nil {
		return makeError(err.Error())
	}
	return makeResult(e.State())
}

// lintSchema is the JS-callable wrapper for lint.Run.
// Usage: EconsheetLint(schemaText) -> { result: { valid, issues }, error?: string }
func lintSchema(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("EconsheetLint requires 1 argument: schemaText")
	}
	result, err := lint.Run([]byte(args[0].String()))
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(result)
}

func schemaAndState(name string, args []js.Value) (*econsheet.Schema, map[string]any, map[string]any) {
	if len(args) < 2 {
		return nil, nil, makeError(name + " requires 2 arguments: schemaText, stateJson")
	}
	schema, err := econsheet.ParseSchema([]byte(args[0].String()))
	if err != nil {
		return nil, nil, makeError(err.Error())
	}
	var state map[string]any
	if text := args[1].String(); text != "" && text != "null" {
		if err := json.Unmarshal([]byte(text), &state); err != nil {
			return nil, nil, makeError("Invalid state JSON: " + err.Error())
		}
	}
	return schema, state, nil
}

func clockOption(args []js.Value, i int) ([]econsheet.Option, error) {
	if len(args) <= i || args[i].IsUndefined() || args[i].String() == "" {
		return nil, nil
	}
	dateStr := args[i].String()
	day, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		// Try simpler date format
		day, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, err
		}
	}
	return []econsheet.Option{econsheet.WithClock(func() time.Time { return day })}, nil
}

// makeError creates a JS-friendly error response
func makeError(msg string) map[string]any {
	return map[string]any{
		"error": msg,
	}
}

// makeResult converts v to plain JS values through JSON, since js.ValueOf
// only accepts maps, slices and scalars.
func makeResult(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return makeError(err.Error())
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{
			"result": string(data),
		}
	}
	return map[string]any{
		"result": result,
	}
}
