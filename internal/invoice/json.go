package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern    = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*?\\})\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*}`)
)

// ErrNoJSONObject is returned when oracle output holds no decodable object.
var ErrNoJSONObject = errors.New("no JSON object in oracle output")

// ExtractJSON decodes the JSON object embedded in free-form oracle output.
// A ```json fence wins; otherwise the first balanced {...} is used. Trailing
// commas before a closing brace are tolerated.
func ExtractJSON(text string) (map[string]any, error) {
	candidate := strings.TrimSpace(text)
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else if obj := balancedObject(text); obj != "" {
		candidate = obj
	}
	candidate = trailingCommaPattern.ReplaceAllString(candidate, "}")

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONObject, err)
	}
	if out == nil {
		return nil, ErrNoJSONObject
	}
	return out, nil
}

// balancedObject returns the first brace-balanced object in content, or the
// span from the first '{' to the last '}' when braces never balance.
func balancedObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	if end := strings.LastIndexByte(content, '}'); end > start {
		return content[start : end+1]
	}
	return ""
}
