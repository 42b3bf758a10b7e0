package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem(t *testing.T) {
	pdf := System(false)
	assert.Equal(t, OutputContract, pdf)
	assert.NotContains(t, pdf, "## page<N>")

	images := System(true)
	assert.True(t, strings.HasPrefix(images, OutputContract))
	assert.Contains(t, images, `"## page<N>"`)
}

func TestTranscribe(t *testing.T) {
	assert.Contains(t, Transcribe("", 0, 0), "Transcribe the attached document")
	assert.Contains(t, Transcribe("", 3, 1), "Transcribe page 3")
	assert.Contains(t, Transcribe("", 3, 2), "Transcribe pages 3 through 4")
}

func TestTranscribeCarryContext(t *testing.T) {
	carry := "## Chapter 2\n| a | b |"
	got := Transcribe(carry, 5, 1)

	assert.Contains(t, got, carry)
	assert.Contains(t, got, "do not repeat it")

	assert.NotContains(t, Transcribe("", 5, 1), "previous page ended")
}

func TestVerifyPrompts(t *testing.T) {
	assert.Contains(t, VerifySystem(), `{"score":`)
	assert.Contains(t, Verify("sample excerpt"), "sample excerpt")
}
