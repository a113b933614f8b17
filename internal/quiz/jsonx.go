package quiz

import (
	"encoding/json"
	"fmt"
)

// decodeLenient unmarshals content into out. When the content is not
// valid JSON on its own, the outermost balanced object is tried instead.
func decodeLenient(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	obj := extractJSON(content)
	if obj == "" {
		return ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("decode extracted object: %w", err)
	}
	return nil
}

// extractJSON finds the first balanced JSON object in s, skipping braces
// inside quoted strings. It returns "" when none closes.
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"' && start != -1:
			inString = !inString
		case inString:
		case ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case ch == '}' && depth > 0:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
