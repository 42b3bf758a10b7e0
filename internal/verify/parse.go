package verify

import (
	"encoding/json"
	"strings"
)

type scorePayload struct {
	Score *float64 `json:"score"`
}

// ParseScore tolerantly extracts a score in [0,1] from a model reply:
// strip optional code fences, try the whole string as JSON, then fall back
// to the first embedded JSON object. Any failure yields nil, not an error.
func ParseScore(raw string) *float64 {
	s := stripFences(strings.TrimSpace(raw))

	if score := tryParse(s); score != nil {
		return score
	}

	// Fall back to the first {...} substring.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if score := tryParse(s[start : end+1]); score != nil {
			return score
		}
	}

	return nil
}

func tryParse(s string) *float64 {
	var payload scorePayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil
	}
	if payload.Score == nil {
		return nil
	}
	score := *payload.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &score
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
