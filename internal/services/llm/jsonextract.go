package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/secsignal/internal/common"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSONObject finds a JSON object in a model reply. It tries, in order:
// the whole reply, the contents of code fences, then every balanced {...} span.
// When anchorKeys are given only an object holding one of them is accepted.
func ExtractJSONObject(text string, anchorKeys ...string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, common.Malformed("empty reply")
	}

	accept := func(obj map[string]interface{}) bool {
		return len(anchorKeys) == 0 || hasAnyKey(obj, anchorKeys)
	}

	if obj, ok := decodeObject(trimmed); ok && accept(obj) {
		return obj, nil
	}

	for _, m := range codeFencePattern.FindAllStringSubmatch(trimmed, -1) {
		if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok && accept(obj) {
			return obj, nil
		}
	}

	var first map[string]interface{}
	for _, span := range balancedObjects(trimmed) {
		obj, ok := decodeObject(span)
		if !ok {
			continue
		}
		if hasAnyKey(obj, anchorKeys) {
			return obj, nil
		}
		if first == nil {
			first = obj
		}
	}
	if first != nil && len(anchorKeys) == 0 {
		return first, nil
	}

	return nil, common.Malformed("no JSON object found in reply")
}

func decodeObject(s string) (map[string]interface{}, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// balancedObjects returns every brace-balanced span starting at a '{', outermost first.
// Braces inside JSON strings are ignored.
func balancedObjects(s string) []string {
	var spans []string
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end := matchBrace(s, start); end > start {
			spans = append(spans, s[start:end+1])
		}
	}
	return spans
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func hasAnyKey(obj map[string]interface{}, keys []string) bool {
	for _, k := range keys {
		if _, ok := lookup(obj, k); ok {
			return true
		}
	}
	return false
}

// lookup finds a key case-insensitively
func lookup(obj map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// StringField returns the first of keys present in obj as a trimmed string
func StringField(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			return strings.TrimSpace(val), true
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(val), true
		}
	}
	return "", false
}

// FloatField returns the first of keys present in obj as a number; numeric strings are accepted
func FloatField(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := lookup(obj, key)
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
