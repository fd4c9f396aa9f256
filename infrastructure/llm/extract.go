package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// ExtractJSON locates the JSON object in a completion. A ```json fence wins,
// then a bare ``` fence, then the outermost braces. rest is the text that
// follows the located object.
func ExtractJSON(content string) (object, rest string, err error) {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(content, fence)
		if start < 0 {
			continue
		}
		body := content[start+len(fence):]
		end := strings.Index(body, "```")
		if end < 0 {
			return strings.TrimSpace(body), "", nil
		}
		return strings.TrimSpace(body[:end]), strings.TrimSpace(body[end+3:]), nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", strings.TrimSpace(content), ErrNoJSON
	}
	return content[start : end+1], strings.TrimSpace(content[end+1:]), nil
}

// decodeJSON extracts and unmarshals the JSON object in content.
func decodeJSON(content string, out any) (rest string, err error) {
	object, rest, err := ExtractJSON(content)
	if err != nil {
		return rest, err
	}
	if err := json.Unmarshal([]byte(object), out); err != nil {
		return rest, err
	}
	return rest, nil
}

// lastUserLine returns the text after prefix on the last matching line of
// the final user message.
func lastUserLine(req CompletionRequest, prefix string) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		lines := strings.Split(req.Messages[i].Content, "\n")
		for j := len(lines) - 1; j >= 0; j-- {
			if strings.HasPrefix(lines[j], prefix) {
				return strings.TrimSpace(strings.TrimPrefix(lines[j], prefix))
			}
		}
		return ""
	}
	return ""
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
