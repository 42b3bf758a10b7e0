package engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractCarryContextPrefersStructure(t *testing.T) {
	text := `# Title

Some opening prose.

## Section A

| Name | Value |
|------|-------|
| foo  | 1     |

Closing paragraph of the page.`

	got := ExtractCarryContext(text, 400)

	assert.Contains(t, got, "# Title")
	assert.Contains(t, got, "## Section A")
	assert.Contains(t, got, "| foo  | 1     |")
	assert.Contains(t, got, "Closing paragraph of the page.")
}

func TestExtractCarryContextBudget(t *testing.T) {
	text := strings.Repeat("a fairly long line of transcribed prose content\n", 50)

	for _, budget := range []int{0, 10, 80, 280, 10000} {
		got := ExtractCarryContext(text, budget)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), max(budget, 0))
	}
}

func TestExtractCarryContextDeduplicates(t *testing.T) {
	// The same trailing line qualifies as both a table line and a final line.
	text := "## Heading\n| a | b |"

	got := ExtractCarryContext(text, 400)

	assert.Equal(t, 1, strings.Count(got, "| a | b |"))
	assert.Equal(t, 1, strings.Count(got, "## Heading"))
}

func TestExtractCarryContextEmpty(t *testing.T) {
	assert.Empty(t, ExtractCarryContext("", 300))
	assert.Empty(t, ExtractCarryContext("text", 0))
	assert.Empty(t, ExtractCarryContext("text", -1))
	assert.Empty(t, ExtractCarryContext("\n\n  \n", 300))
}

func TestExtractCarryContextTruncatesFromFront(t *testing.T) {
	text := "early content that should be dropped\nfinal line to keep"

	got := ExtractCarryContext(text, 18)

	assert.Equal(t, "final line to keep", got)
}
