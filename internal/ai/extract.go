package ai

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when a model reply carries no parseable JSON.
var ErrNoJSON = errors.New("model response contains no JSON")

// parseObjects decodes a model reply into a list of JSON objects. The reply
// may be fenced in a ```json block or bare, and may be an array, a single
// object, or an object wrapping a "recommendations" array.
func parseObjects(raw string) ([]map[string]any, error) {
	cleaned := stripFence(raw)
	if out, ok := decodeObjects(cleaned); ok {
		return out, nil
	}
	// Chatty replies: take the first balanced value found in the text.
	if value, ok := extractFirstJSON(cleaned); ok {
		if out, ok := decodeObjects(value); ok {
			return out, nil
		}
	}
	return nil, ErrNoJSON
}

func stripFence(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "```")
	if start == -1 {
		return raw
	}
	body := raw[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		// Drop the language tag line.
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func decodeObjects(s string) ([]map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	switch s[0] {
	case '[':
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, false
		}
		return objectsOf(list), true
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, false
		}
		for _, key := range []string{"recommendations", "추천"} {
			if list, ok := obj[key].([]any); ok {
				return objectsOf(list), true
			}
		}
		return []map[string]any{obj}, true
	}
	return nil, false
}

func objectsOf(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// extractFirstJSON finds the first outermost balanced {...} or [...].
func extractFirstJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return "", false
	}
	open, closing := s[start], byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		char := s[i]
		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch char {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// field returns the first present value among keys.
func field(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "점")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
