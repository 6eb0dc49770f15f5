// Package wirecase converts JSON key naming at the network boundary. The
// client speaks camelCase internally while the wire uses snake_case; the
// conversion is recursive over objects and arrays and leaves values alone.
package wirecase

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CamelKeys rewrites every map key in v from snake_case (or kebab-case) to
// camelCase, recursing through nested maps and slices.
func CamelKeys(v any) any {
	return mapKeys(v, ToCamel)
}

// SnakeKeys rewrites every map key in v from camelCase to snake_case,
// recursing through nested maps and slices.
func SnakeKeys(v any) any {
	return mapKeys(v, ToSnake)
}

func mapKeys(v any, convert func(string) string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[convert(k)] = mapKeys(child, convert)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = mapKeys(child, convert)
		}
		return out
	default:
		return v
	}
}

// CamelJSON rewrites all keys of a JSON document to camelCase. Numbers pass
// through verbatim so the conversion is lossless.
func CamelJSON(raw []byte) ([]byte, error) {
	return convertJSON(raw, ToCamel)
}

// SnakeJSON rewrites all keys of a JSON document to snake_case.
func SnakeJSON(raw []byte) ([]byte, error) {
	return convertJSON(raw, ToSnake)
}

func convertJSON(raw []byte, convert func(string) string) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(mapKeys(v, convert))
}

// ToCamel converts snake_case or kebab-case to camelCase. Keys already in
// camelCase come back unchanged.
func ToCamel(s string) string {
	if !strings.ContainsAny(s, "-_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c == '-' {
			// Only a separator followed by a letter folds away; trailing
			// or doubled separators are kept so ToSnake can restore them.
			if i+1 < len(s) && isLowerAlpha(s[i+1]) {
				upper = true
				continue
			}
			b.WriteByte(c)
			continue
		}
		if upper {
			b.WriteByte(c - ('a' - 'A'))
			upper = false
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ToSnake converts camelCase to snake_case. Keys with no upper-case letters
// come back unchanged.
func ToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('_')
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isLowerAlpha(c byte) bool {
	return c >= 'a' && c <= 'z'
}
