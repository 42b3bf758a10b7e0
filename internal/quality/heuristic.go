// Package quality scores transcribed text with a pure local heuristic.
// Same text always yields the same score and reasons.
package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/transcribe-cli/internal/model"
)

// Kind selects the weight set: whole PDFs tolerate slightly more noise than
// single page spans.
type Kind int

const (
	KindPDF Kind = iota
	KindSpan
)

const (
	// UnreadableRune is the decoder replacement character produced by
	// broken recognitions.
	UnreadableRune = '�'

	// PlaceholderRune is the fixed glyph the output contract uses for
	// characters the model could not read.
	PlaceholderRune = '□'
)

var (
	punctBlobRe = regexp.MustCompile(`[^\w\s]{5,}`)
	headingRe   = regexp.MustCompile(`^#{1,6}\s`)
)

type weights struct {
	unreadable     float64
	fragmentation  float64
	minLength      int
	structureLines int
}

func weightsFor(kind Kind) weights {
	if kind == KindSpan {
		return weights{unreadable: 2.3, fragmentation: 0.45, minLength: 80, structureLines: 30}
	}
	return weights{unreadable: 2.2, fragmentation: 0.40, minLength: 120, structureLines: 40}
}

// Assess scores one attempt's transcribed text in [0,1] with human-readable
// reasons for every triggered penalty.
func Assess(text string, kind Kind) model.QualityAssessment {
	w := weightsFor(kind)
	normalized := norm.NFC.String(strings.ReplaceAll(text, "\r", ""))
	total := utf8.RuneCountInString(normalized)

	score := 1.0
	var reasons []string

	// Unreadable and placeholder glyph rates.
	if total > 0 {
		unreadable := strings.Count(normalized, string(UnreadableRune))
		placeholder := strings.Count(normalized, string(PlaceholderRune))
		unreadableRate := float64(unreadable) / float64(total)
		placeholderRate := float64(placeholder) / float64(total)

		if unreadable > 0 {
			score -= unreadableRate * w.unreadable
			reasons = append(reasons, fmt.Sprintf("unreadable replacement characters: %d (%.1f%%)", unreadable, unreadableRate*100))
		}
		if placeholder > 0 {
			score -= min(placeholderRate*1.6, 0.25)
			reasons = append(reasons, fmt.Sprintf("unreadable placeholder glyphs: %d", placeholder))
		}
	}

	// Fragmented lines.
	lines := nonEmptyLines(normalized)
	if len(lines) > 0 {
		fragmented := 0
		for _, ln := range lines {
			if utf8.RuneCountInString(ln) <= 2 {
				fragmented++
			}
		}
		fragRate := float64(fragmented) / float64(len(lines))
		if fragRate > 0.2 {
			score -= fragRate * w.fragmentation
			reasons = append(reasons, fmt.Sprintf("fragmented lines: %.0f%%", fragRate*100))
		}
	}

	// Garbage-pattern counts, each with a capped contribution.
	if blobs := len(punctBlobRe.FindAllString(normalized, -1)); blobs > 0 {
		score -= min(float64(blobs)*0.02, 0.15)
		reasons = append(reasons, fmt.Sprintf("punctuation blobs: %d", blobs))
	}
	if long := countLongTokens(normalized, 35); long > 0 {
		score -= min(float64(long)*0.03, 0.15)
		reasons = append(reasons, fmt.Sprintf("overlong tokens: %d", long))
	}
	if bursts := countGlyphBursts(normalized, 8); bursts > 0 {
		score -= min(float64(bursts)*0.04, 0.20)
		reasons = append(reasons, fmt.Sprintf("repeated glyph bursts: %d", bursts))
	}

	// Substantial documents with no Markdown structure at all are a weak
	// warning sign.
	if structureSignals(lines) == 0 && len(lines) > w.structureLines {
		score -= 0.05
		reasons = append(reasons, "no headings or tables in a long document")
	}

	// Length floor.
	if utf8.RuneCountInString(strings.TrimSpace(normalized)) < w.minLength {
		score -= 0.35
		reasons = append(reasons, "transcribed text is too short")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if len(reasons) == 0 {
		reasons = []string{"transcription stable"}
	}

	return model.QualityAssessment{Score: score, Reasons: reasons}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func countLongTokens(s string, minLen int) int {
	count := 0
	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) >= minLen {
			count++
		}
	}
	return count
}

// countGlyphBursts counts runs of the same rune repeated at least minRun
// times. RE2 has no backreferences, so this is a manual scan.
func countGlyphBursts(s string, minRun int) int {
	count := 0
	var prev rune
	run := 0
	counted := false
	for _, r := range s {
		if r == prev {
			run++
			if run >= minRun && !counted {
				count++
				counted = true
			}
		} else {
			prev = r
			run = 1
			counted = false
		}
	}
	return count
}

// structureSignals counts Markdown heading lines and table delimiter lines.
func structureSignals(lines []string) int {
	count := 0
	for _, ln := range lines {
		if headingRe.MatchString(ln) || strings.Contains(ln, "|") {
			count++
		}
	}
	return count
}
