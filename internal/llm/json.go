package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONResponse parses a JSON object from an LLM reply, tolerating
// markdown code fences and prose around the object. Returns nil when no
// object can be decoded.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		end := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				end = i
				break
			}
		}
		text = strings.Join(lines[1:end], "\n")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	start, stop := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || stop <= start {
		return nil
	}
	if err := json.Unmarshal([]byte(text[start:stop+1]), &result); err != nil {
		return nil
	}
	return result
}
