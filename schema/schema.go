// Package schema checks decoded JSON documents against a JSON Schema subset.
//
// It is used to prove that a persisted document is well-formed before it is
// decoded into typed records, so that truncated or hand-edited data is
// reported instead of silently producing zero-valued fields.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sync"
)

// Error describes the first violation found, located by a JSONPath-like path.
type Error struct {
	Path string
	Msg  string
}

func (e *Error) Error() string {
	return e.Path + ": " + e.Msg
}

// Validate checks a decoded document against a JSON Schema (draft-07 subset).
// Returns nil if validation passes or the schema is nil.
//
// Supported JSON Schema keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required
//   - items (for arrays)
//   - minimum
//   - minLength, pattern
func Validate(schema map[string]any, doc any) error {
	if schema == nil {
		return nil
	}
	return validateValue(schema, doc, "$")
}

func fail(path, format string, args ...any) error {
	return &Error{Path: path, Msg: fmt.Sprintf(format, args...)}
}

func validateValue(schema map[string]any, value any, path string) error {
	if ts, ok := schema["type"].(string); ok {
		if err := checkType(ts, value, path); err != nil {
			return err
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		return validateArray(schema, v, path)
	case string:
		return validateString(schema, v, path)
	case float64:
		return validateNumber(schema, v, path)
	case json.Number:
		f, _ := v.Float64()
		return validateNumber(schema, f, path)
	}
	return nil
}

func checkType(expected string, value any, path string) error {
	actual := jsonType(value)
	if expected == "integer" {
		// Accept float64 values that are whole numbers
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			return nil
		}
		if n, ok := value.(json.Number); ok {
			if _, err := n.Int64(); err == nil {
				return nil
			}
		}
		if actual != "integer" {
			return fail(path, "expected type %q, got %q", expected, actual)
		}
		return nil
	}
	if actual != expected {
		if expected == "number" && actual == "integer" {
			return nil
		}
		return fail(path, "expected type %q, got %q", expected, actual)
	}
	return nil
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case int, int64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	for _, r := range stringList(schema["required"]) {
		if _, exists := obj[r]; !exists {
			return fail(path, "missing required field %q", r)
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for field, propSchema := range props {
		val, exists := obj[field]
		if !exists {
			continue
		}
		ps, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(ps, val, path+"."+field); err != nil {
			return err
		}
	}
	return nil
}

// stringList accepts both []any (decoded JSON) and []string (Go literals).
func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateArray(schema map[string]any, arr []any, path string) error {
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, elem := range arr {
			if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateString(schema map[string]any, s string, path string) error {
	if v, ok := toFloat(schema["minLength"]); ok && float64(len(s)) < v {
		return fail(path, "string length %d is less than minLength %v", len(s), v)
	}
	if p, ok := schema["pattern"].(string); ok {
		re, err := compile(p)
		if err != nil {
			return fail(path, "invalid pattern %q: %v", p, err)
		}
		if !re.MatchString(s) {
			return fail(path, "string does not match pattern %q", p)
		}
	}
	return nil
}

func validateNumber(schema map[string]any, n float64, path string) error {
	if v, ok := toFloat(schema["minimum"]); ok && n < v {
		return fail(path, "%v is less than minimum %v", n, v)
	}
	return nil
}

var patterns sync.Map // string -> *regexp.Regexp

func compile(p string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patterns.Store(p, re)
	return re, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
