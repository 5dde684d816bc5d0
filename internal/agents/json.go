package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// decodeReply normalizes a producer reply and unmarshals it into out.
// Producers are told to emit bare JSON but routinely wrap it in code
// fences or prose; both are tolerated. Any failure here is a
// malformed-output error, the retryable class.
func decodeReply(reply string, out any) error {
	text := normalizeModelJSON(reply)
	if text == "" {
		return pipeline.Malformed(fmt.Errorf("no JSON object in reply"))
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return pipeline.Malformed(fmt.Errorf("decode reply: %w", err))
	}
	return nil
}

// normalizeModelJSON strips markdown fences and, failing that, digs the
// first balanced JSON object out of surrounding prose.
func normalizeModelJSON(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		// drop a language hint like ```json
		if idx := strings.IndexByte(t, '\n'); idx != -1 {
			t = t[idx+1:]
		}
		if j := strings.LastIndex(t, "```"); j != -1 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	if !strings.HasPrefix(t, "{") {
		if obj := extractJSONObject(t); obj != "" {
			return obj
		}
	}
	return t
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// ignoring braces inside string literals.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
