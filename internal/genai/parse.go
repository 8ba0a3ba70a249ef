package genai

import (
	"encoding/json"
	"strings"

	"harpoon/internal/gate"
)

type replyPayload struct {
	Reply   string          `json:"reply"`
	Context string          `json:"context"`
	Score   json.RawMessage `json:"score"`
}

// parseReply extracts the generation payload from a raw model response.
// Models wrap JSON in code fences, emit scores as strings, or ignore the
// format entirely. None of that is fatal: an unparsable response becomes a
// reply with the default score, for a human reviewer to judge.
func parseReply(raw string) Reply {
	cleaned := stripCodeFence(raw)

	var payload replyPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil || payload.Reply == "" {
		if obj := extractJSONObject(cleaned); obj != "" {
			if err := json.Unmarshal([]byte(obj), &payload); err != nil {
				payload = replyPayload{}
			}
		}
	}

	if payload.Reply == "" {
		return Reply{
			Text:  strings.TrimSpace(raw),
			Score: gate.ParseScore(""),
		}
	}
	return Reply{
		Text:    strings.TrimSpace(payload.Reply),
		Context: strings.TrimSpace(payload.Context),
		Score:   gate.ParseScore(strings.Trim(string(payload.Score), `"`)),
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSONObject pulls the first balanced top-level object out of text
// that surrounds JSON with prose.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
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
				return s[start : i+1]
			}
		}
	}
	return ""
}
