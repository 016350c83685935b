package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseStructuredJSON extracts a JSON document from model output. Models
// frequently wrap JSON in markdown code fences or prepend prose even when a
// structured response format was requested, so this strips fences and
// trims to the outermost object or array before validating.
func ParseStructuredJSON(content string) (json.RawMessage, error) {
	cleaned := StripCodeFences(content)

	// Trim to the outermost JSON value if there is surrounding prose.
	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object or array found in content")
	}
	var end int
	if cleaned[start] == '{' {
		end = strings.LastIndex(cleaned, "}")
	} else {
		end = strings.LastIndex(cleaned, "]")
	}
	if end < start {
		return nil, fmt.Errorf("unterminated JSON value in content")
	}
	candidate := cleaned[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("content is not valid JSON")
	}
	return json.RawMessage(candidate), nil
}

// StripCodeFences removes a surrounding markdown code fence (```json ... ```
// or plain ``` ... ```) if present. Content without fences passes through
// unchanged apart from whitespace trimming.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line including any language tag.
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
