package network

import (
	"fmt"
	"strconv"
)

// The generic block representation surfaces fields as string-when-numeric,
// scalar-when-list, and string-when-bool depending on how the source was
// written. These accessors centralize the defensive reads so every provider
// normalizer interprets fields the same way.

// intOrNil coerces a numeric or numeric-string value to *int.
// Unparseable or absent values yield nil, never an error.
func intOrNil(v any) *int {
	switch t := v.(type) {
	case int:
		return &t
	case int64:
		n := int(t)
		return &n
	case float64:
		n := int(t)
		return &n
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return &n
		}
	}
	return nil
}

// coerceBool accepts bool values and the strings "true"/"false"
// (case-insensitive "true" only); anything else is false.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "True" || t == "TRUE"
	}
	return false
}

// coerceString renders scalars as strings; absent values become fallback.
func coerceString(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerceStringList accepts a list of scalars or a bare scalar (treated as a
// single-element list). Non-string elements are rendered as strings; nil
// elements are dropped.
func coerceStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, coerceString(item, ""))
		}
		return out
	case []string:
		return t
	default:
		return []string{coerceString(t, "")}
	}
}

// blockList normalizes a nested-block field that may be a single mapping or
// a sequence of mappings into a slice of mappings. Non-mapping entries are
// dropped.
func blockList(v any) []map[string]any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case []map[string]any:
		return t
	default:
		return nil
	}
}
