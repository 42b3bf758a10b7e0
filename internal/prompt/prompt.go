// Package prompt holds the transcription and verification prompt contracts.
// The output contract text participates in the cache policy hash: editing it
// invalidates every prior cache entry.
package prompt

import (
	"fmt"
	"strings"
)

// OutputContract is the Markdown output contract sent with every
// transcription request.
const OutputContract = `You are a meticulous document transcriber.
Transcribe the provided scanned document into Markdown. Rules:
- Reproduce prose exactly; preserve headings, lists, and tables as Markdown.
- Render any character you cannot read as the placeholder □.
- Prefix figure or image descriptions with the marker [figure].
- Do not summarize, annotate, or add commentary. Output the transcription only.`

// pageHeadingRule is appended in image-sequence mode.
const pageHeadingRule = `- Begin each page's content with a heading of the form "## page<N>" using the absolute page number given for that page.`

// verifierContract instructs the secondary model to score a transcription
// excerpt as a minimal structured response.
const verifierContract = `You are a transcription quality auditor.
Given an excerpt of a machine transcription of a scanned document, estimate how
faithful and well-formed it is. Respond with exactly one JSON object of the
form {"score": <number between 0 and 1>} and nothing else.`

// System returns the system prompt for a transcription request.
func System(imageMode bool) string {
	if imageMode {
		return OutputContract + "\n" + pageHeadingRule
	}
	return OutputContract
}

// Transcribe builds the user turn for a document or span request.
// carryContext, when non-empty, is injected purely for continuity and is
// never part of the expected output.
func Transcribe(carryContext string, firstPage, pageCount int) string {
	var sb strings.Builder
	if pageCount > 0 {
		if pageCount == 1 {
			fmt.Fprintf(&sb, "Transcribe page %d of the document.\n", firstPage)
		} else {
			fmt.Fprintf(&sb, "Transcribe pages %d through %d of the document.\n", firstPage, firstPage+pageCount-1)
		}
	} else {
		sb.WriteString("Transcribe the attached document.\n")
	}
	if carryContext != "" {
		sb.WriteString("\nThe previous page ended as follows; use it only to keep headings and open tables consistent, do not repeat it:\n")
		sb.WriteString(carryContext)
		sb.WriteString("\n")
	}
	return sb.String()
}

// VerifySystem returns the verifier's system prompt.
func VerifySystem() string {
	return verifierContract
}

// Verify builds the verifier's user turn around a sampled excerpt.
func Verify(excerpt string) string {
	return "Transcription excerpt:\n\n" + excerpt
}
