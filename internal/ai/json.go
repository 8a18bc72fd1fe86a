package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a model response holds no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

// DecodeJSON decodes the JSON object in a model response into v. Markdown
// code fences and text around the outermost braces are ignored.
func DecodeJSON(text string, v interface{}) error {
	candidate := strings.TrimSpace(text)

	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		if end := strings.LastIndex(candidate, "```"); end >= 0 {
			candidate = candidate[:end]
		}
		candidate = strings.TrimSpace(candidate)
	}

	if err := json.Unmarshal([]byte(candidate), v); err == nil {
		return nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(candidate[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return nil
}
