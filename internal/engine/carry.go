package engine

import (
	"strings"
)

// ExtractCarryContext derives a bounded continuity snippet from an accepted
// span's text: the last few heading lines, the last few table lines, and the
// trailing lines overall, deduplicated in first-occurrence order. The result
// never exceeds budget characters (runes). The snippet seeds the next span's
// prompt for continuity only; it is never appended to output.
func ExtractCarryContext(text string, budget int) string {
	if budget <= 0 {
		return ""
	}

	normalized := strings.ReplaceAll(text, "\r", "")
	var lines []string
	for _, ln := range strings.Split(normalized, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	var headings, tables []string
	for _, ln := range lines {
		if strings.HasPrefix(ln, "#") {
			headings = append(headings, ln)
		}
		if strings.Contains(ln, "|") {
			tables = append(tables, ln)
		}
	}

	var picked []string
	picked = append(picked, lastN(headings, 3)...)
	picked = append(picked, lastN(tables, 3)...)
	picked = append(picked, lastN(lines, 4)...)

	seen := make(map[string]bool, len(picked))
	var out []string
	for _, ln := range picked {
		if !seen[ln] {
			seen[ln] = true
			out = append(out, ln)
		}
	}

	joined := strings.Join(out, "\n")
	runes := []rune(joined)
	if len(runes) > budget {
		joined = string(runes[len(runes)-budget:])
	}
	return joined
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
