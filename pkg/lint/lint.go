// Package lint provides static analysis for econsheet field schemas.
// It detects problems a schema author would otherwise only notice when a
// grid renders wrong: dangling reliance keys, menus without options, bad
// computed columns.
package lint

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/dlovans/econsheet/pkg/econsheet"
)

// Issue represents a problem found during static analysis.
type Issue struct {
	Severity string `json:"severity"` // "error", "warning"
	Field    string `json:"field,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Message  string `json:"message"`
}

// Result contains all issues found by the linter.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Rule names.
const (
	RuleMetaSchema = "meta-schema"
	RuleVersion    = "version"
	RuleFieldType  = "field-type"
	RuleMenu       = "menu"
	RuleReliance   = "reliance"
	RuleTable      = "table"
	RuleAutoSum    = "auto-sum"
	RuleSwitch     = "switch"
	RuleBounds     = "bounds"
)

//go:embed fieldschema.json
var metaSchemaJSON string

const metaSchemaURL = "https://econsheet.schemas.local/field-schema.json"

var metaSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(metaSchemaURL, strings.NewReader(metaSchemaJSON)); err != nil {
		return nil, fmt.Errorf("meta-schema load failed: %w", err)
	}
	return c.Compile(metaSchemaURL)
})

// RunFile lints the schema document at path.
func RunFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return Run(data)
}

// Run performs static analysis on a YAML or JSON schema document.
// It returns an error only when the document cannot be decoded at all.
func Run(data []byte) (*Result, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	result := &Result{
		Valid:  true,
		Issues: make([]Issue, 0),
	}

	// Check 1: document shape
	ms, err := metaSchema()
	if err != nil {
		return nil, err
	}
	if err := ms.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		for _, leaf := range leaves(ve) {
			result.addError(pointerPath(leaf.InstanceLocation), RuleMetaSchema, leaf.Message)
		}
	}

	s, err := econsheet.ParseSchema(data)
	if err != nil {
		result.addError("", RuleMetaSchema, err.Error())
		return result, nil
	}

	// Check 2: version
	if s.Version == "" {
		result.addWarning("", RuleVersion, "schema has no version")
	} else if _, err := semver.NewVersion(s.Version); err != nil {
		result.addError("", RuleVersion, fmt.Sprintf("version %q is not a semantic version: %v", s.Version, err))
	}

	// Check 3: fields
	l := &linter{result: result}
	l.fields(s.Fields, "", nil)

	sort.SliceStable(result.Issues, func(i, j int) bool {
		return result.Issues[i].Field < result.Issues[j].Field
	})
	return result, nil
}

// decode reads YAML or JSON into JSON-decoded values, the form the
// meta-schema validator expects.
func decode(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// pointerPath turns a JSON pointer into a dotted field path.
func pointerPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	ptr = strings.TrimPrefix(ptr, "fields")
	ptr = strings.TrimPrefix(ptr, "/")
	return strings.ReplaceAll(ptr, "/", ".")
}

type linter struct {
	result *Result
}

// keySet is the set of keys a reliance clause may reference at one level:
// the level's own keys and every ancestor's.
type keySet struct {
	keys   map[string]bool
	parent *keySet
}

func (k *keySet) has(key string) bool {
	for s := k; s != nil; s = s.parent {
		if s.keys[key] {
			return true
		}
	}
	return false
}

func (l *linter) fields(fs econsheet.Fields, prefix string, parent *keySet) {
	level := &keySet{keys: make(map[string]bool, len(fs)), parent: parent}
	for _, f := range fs {
		if f != nil {
			level.keys[f.Key] = true
		}
	}
	for _, f := range fs {
		if f == nil {
			continue
		}
		l.field(f, join(prefix, f.Key), level)
	}
}

func (l *linter) field(f *econsheet.Field, path string, scope *keySet) {
	l.reliance(f.Reliance, path, "reliance", scope)

	if f.IsTable() {
		l.table(f, path, scope)
		return
	}
	if f.SwitchOn != "" {
		if !scope.has(f.SwitchOn) {
			l.result.addError(path, RuleSwitch, fmt.Sprintf("switchOn names unknown field '%s'", f.SwitchOn))
		}
		if len(f.Cases) == 0 {
			l.result.addWarning(path, RuleSwitch, "switch field has no cases and always renders N/A")
		}
		for _, key := range sortedCaseKeys(f.Cases) {
			if c := f.Cases[key]; c != nil && !c.FieldType.IsScalar() {
				l.result.addError(join(path, key), RuleSwitch, fmt.Sprintf("case '%s' must be a single-cell kind, got '%s'", key, c.FieldType))
			}
		}
		return
	}
	if !f.FieldType.Known() {
		l.result.addError(path, RuleFieldType, fmt.Sprintf("unknown fieldType '%s'", f.FieldType))
		return
	}
	l.bounds(f.Min, f.Max, path)

	switch f.FieldType {
	case econsheet.FieldSelect, econsheet.FieldCriteriaSelect, econsheet.FieldHeaderSelect, econsheet.FieldHeadersScheduleCriteriaSelect:
		if len(f.MenuItems) == 0 {
			l.result.addError(path, RuleMenu, fmt.Sprintf("%s field has no menuItems", f.FieldType))
		}
		l.menu(f.MenuItems, path, scope)
	case econsheet.FieldHeader, econsheet.FieldFlexibleHeader:
		if len(f.SubItems) == 0 {
			l.result.addWarning(path, RuleTable, "header has no subItems")
		}
		l.fields(f.SubItems, path, scope)
	case econsheet.FieldAutoSum:
		l.result.addError(path, RuleAutoSum, "autoSum is only computed inside a table")
	}

	if f.FieldType == econsheet.FieldHeadersScheduleCriteriaSelect {
		for _, item := range f.MenuItems {
			switch item.Value {
			case econsheet.CriteriaFromSchedule:
				if len(f.FromScheduleMenuItems) == 0 {
					l.result.addError(path, RuleMenu, "from_schedule option without fromScheduleMenuItems")
				}
			case econsheet.CriteriaFromHeaders:
				if len(f.FromHeadersMenuItems) == 0 {
					l.result.addError(path, RuleMenu, "from_headers option without fromHeadersMenuItems")
				}
			}
		}
	}
}

func (l *linter) menu(items []econsheet.MenuItem, path string, scope *keySet) {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		v := fmt.Sprint(item.Value)
		if seen[v] {
			l.result.addWarning(path, RuleMenu, fmt.Sprintf("duplicate menu value '%s'", v))
		}
		seen[v] = true
		l.bounds(item.Min, item.Max, join(path, v))
		if len(item.SubItems) > 0 {
			l.fields(item.SubItems, join(path, v), scope)
		}
	}
}

func (l *linter) table(f *econsheet.Field, path string, scope *keySet) {
	if len(f.Columns) == 0 {
		l.result.addError(path, RuleTable, "table has no columns")
		return
	}
	cols := &keySet{keys: make(map[string]bool, len(f.Columns)), parent: scope}
	headerKeys := &keySet{keys: make(map[string]bool)}
	for k := range f.Headers {
		headerKeys.keys[k] = true
	}
	for _, col := range f.Columns {
		if col == nil {
			continue
		}
		cols.keys[col.Key] = true
		if len(col.HeaderMenuItems) > 0 || col.HeaderDefault != nil {
			headerKeys.keys[col.Key] = true
		}
	}

	for _, col := range f.Columns {
		if col == nil {
			continue
		}
		cp := join(path, col.Key)
		l.reliance(col.Reliance, cp, "reliance", cols)
		l.reliance(col.RowHeaderReliance, cp, "rowHeaderReliance", headerKeys)
		for _, r := range col.MultiRowHeaderReliance {
			l.reliance(r, cp, "multiRowHeaderReliance", headerKeys)
		}
		l.bounds(col.Min, col.Max, cp)

		if len(col.HeaderMenuItems) > 0 {
			for _, item := range col.HeaderMenuItems {
				if item.FieldType != "" && !item.FieldType.IsScalar() {
					l.result.addError(cp, RuleTable, fmt.Sprintf("header option '%v' must be a single-cell kind", item.Value))
				}
			}
			continue
		}
		switch {
		case col.FieldType == econsheet.FieldAutoSum:
			switch {
			case col.SumOf == "":
				l.result.addError(cp, RuleAutoSum, "autoSum column has no sumOf")
			case !cols.keys[col.SumOf]:
				l.result.addError(cp, RuleAutoSum, fmt.Sprintf("sumOf names unknown column '%s'", col.SumOf))
			}
		case !col.FieldType.IsScalar():
			l.result.addError(cp, RuleTable, fmt.Sprintf("column kind '%s' cannot render in a table cell", col.FieldType))
		case col.FieldType == econsheet.FieldSelect && len(col.MenuItems) == 0:
			l.result.addError(cp, RuleMenu, "select column has no menuItems")
		}
	}
}

func (l *linter) reliance(r econsheet.Reliance, path, attr string, scope *keySet) {
	for _, key := range sortedRelianceKeys(r) {
		if !scope.has(key) {
			l.result.addError(path, RuleReliance, fmt.Sprintf("%s references unknown field '%s'", attr, key))
		}
		if len(r[key]) == 0 {
			l.result.addWarning(path, RuleReliance, fmt.Sprintf("%s on '%s' allows no values; field never renders", attr, key))
		}
	}
}

func (l *linter) bounds(lo, hi *float64, path string) {
	if lo != nil && hi != nil && *lo > *hi {
		l.result.addError(path, RuleBounds, fmt.Sprintf("min %v is greater than max %v", *lo, *hi))
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedRelianceKeys(r econsheet.Reliance) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCaseKeys(m map[string]*econsheet.Field) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Result) addError(field, rule, message string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{
		Severity: "error",
		Field:    field,
		Rule:     rule,
		Message:  message,
	})
}

func (r *Result) addWarning(field, rule, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity: "warning",
		Field:    field,
		Rule:     rule,
		Message:  message,
	})
}
