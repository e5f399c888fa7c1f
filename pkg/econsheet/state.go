package econsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrBadPath is returned when a key path does not address a node.
	ErrBadPath = errors.New("econsheet: bad key path")
	// ErrNoHandler is returned when a cell names a handler the host did not supply.
	ErrNoHandler = errors.New("econsheet: no handler")
	// ErrReadOnly is returned when an edit targets a read-only cell.
	ErrReadOnly = errors.New("econsheet: cell is read-only")
)

// Path addresses a node in the State Tree. Row indices are decimal strings.
type Path []string

// Append returns a new path with keys added.
func (p Path) Append(keys ...string) Path {
	out := make(Path, 0, len(p)+len(keys))
	out = append(out, p...)
	return append(out, keys...)
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// ParsePath splits a dotted path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

// Equal reports whether two paths address the same node.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// GetIn reads the node at path. Missing nodes yield (nil, false).
func GetIn(tree any, path Path) (any, bool) {
	cur := tree
	for _, key := range path {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// SetIn returns a copy of tree with value stored at path. Only the maps and
// slices along the path are copied; every other node is shared with the input.
// Missing intermediate maps are created.
func SetIn(tree any, path Path, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	key := path[0]
	switch v := tree.(type) {
	case nil:
		child, err := SetIn(nil, path[1:], value)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: child}, nil
	case map[string]any:
		child, err := SetIn(v[key], path[1:], value)
		if err != nil {
			return nil, err
		}
		out := cloneMap(v)
		out[key] = child
		return out, nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(v) {
			return nil, fmt.Errorf("%w: index %q out of range", ErrBadPath, key)
		}
		child, err := SetIn(v[i], path[1:], value)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(v))
		copy(out, v)
		out[i] = child
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q addresses into a %T", ErrBadPath, key, tree)
	}
}

// SetState is SetIn for a top-level state map.
func SetState(state map[string]any, path Path, value any) (map[string]any, error) {
	out, err := SetIn(state, path, value)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root replaced by %T", ErrBadPath, out)
	}
	return m, nil
}

// DeepCopy clones maps and slices recursively.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = DeepCopy(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = DeepCopy(x)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// normalizeValue converts decoded YAML/JSON literals into the shapes used in
// state: float64 numbers, map[string]any objects and []any arrays.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalizeValue(x)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[fmt.Sprint(k)] = normalizeValue(x)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalizeValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalizeValue(x)
		}
		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// toFloat converts a value to float64 if possible. Sheet edits arrive as text,
// so numeric strings are accepted.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" || strings.EqualFold(s, InfSentinel) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// isBlank reports whether a value counts as "not entered".
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		if len(t) == 0 {
			return true
		}
		if sel, ok := t["value"]; ok {
			if _, isCriteria := t["criteria"]; !isCriteria {
				return isBlank(sel)
			}
		}
		return false
	}
	return false
}

// isSelection reports whether m has the {label, value} shape of a select.
func isSelection(m map[string]any) bool {
	_, hasLabel := m["label"]
	_, hasValue := m["value"]
	_, hasCriteria := m["criteria"]
	return hasLabel && hasValue && !hasCriteria
}

// selectionValue unwraps {label, value} selections and {criteria, value}
// conditioned values to the value that reliance and serialization compare on.
func selectionValue(v any) any {
	m, ok := asMap(v)
	if !ok {
		return v
	}
	if c, ok := m["criteria"]; ok {
		return selectionValue(c)
	}
	if sel, ok := m["value"]; ok {
		return sel
	}
	return nil
}

// selectionLabel returns the display label of a selection.
func selectionLabel(v any, items []MenuItem) string {
	if m, ok := asMap(v); ok {
		if l, ok := m["label"].(string); ok && l != "" {
			return l
		}
		v = m["value"]
	}
	if item := findMenuItem(items, v); item != nil {
		return item.Label
	}
	if isBlank(v) {
		return ""
	}
	return fmt.Sprint(v)
}

// valuesEqual compares JSON-like scalars, treating numbers by value.
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// keyString renders a selection value as a payload key.
func keyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
