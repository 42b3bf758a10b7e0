package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/quality"
	"github.com/sells-group/transcribe-cli/pkg/anthropic"
)

// stubClient returns a canned response for CreateMessage.
type stubClient struct {
	response string
	err      error
	calls    int
}

func (c *stubClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest, onFragment func(string)) (*anthropic.MessageResponse, error) {
	panic("not used")
}

func (c *stubClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.MessageResponse{Text: c.response}, nil
}

func testVerifier(client anthropic.Client) *Verifier {
	return New(client, "claude-haiku-4-5-20251001", config.VerifyConfig{
		Enabled:         true,
		SampleChars:     4000,
		HeuristicWeight: 0.78,
	})
}

func TestShouldVerify(t *testing.T) {
	v := testVerifier(&stubClient{})

	tests := []struct {
		name      string
		heuristic float64
		required  float64
		kind      quality.Kind
		want      bool
	}{
		{name: "clearly above passes without opinion", heuristic: 0.80, required: 0.72, kind: quality.KindPDF, want: false},
		{name: "exactly at requirement", heuristic: 0.72, required: 0.72, kind: quality.KindPDF, want: false},
		{name: "just below within pdf margin", heuristic: 0.65, required: 0.72, kind: quality.KindPDF, want: true},
		{name: "below pdf margin", heuristic: 0.55, required: 0.72, kind: quality.KindPDF, want: false},
		{name: "span margin is narrower", heuristic: 0.61, required: 0.72, kind: quality.KindSpan, want: false},
		{name: "within span margin", heuristic: 0.63, required: 0.72, kind: quality.KindSpan, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ShouldVerify(tt.heuristic, tt.required, tt.kind))
		})
	}
}

func TestShouldVerifyDisabled(t *testing.T) {
	v := New(nil, "", config.VerifyConfig{Enabled: true})
	assert.False(t, v.ShouldVerify(0.65, 0.72, quality.KindPDF))

	v = New(&stubClient{}, "m", config.VerifyConfig{Enabled: false})
	assert.False(t, v.ShouldVerify(0.65, 0.72, quality.KindPDF))
}

func TestScoreTrivialTextShortCircuits(t *testing.T) {
	client := &stubClient{response: `{"score": 0.9}`}
	v := testVerifier(client)

	got := v.Score(context.Background(), "   tiny   ")

	require.NotNil(t, got)
	assert.Zero(t, *got)
	assert.Zero(t, client.calls, "trivial text must not spend a verification call")
}

func TestScoreParsesResponse(t *testing.T) {
	client := &stubClient{response: `{"score": 0.41}`}
	v := testVerifier(client)

	got := v.Score(context.Background(), strings.Repeat("plausible transcription text ", 10))

	require.NotNil(t, got)
	assert.InDelta(t, 0.41, *got, 1e-9)
	assert.Equal(t, 1, client.calls)
}

func TestScoreUnparseableResponse(t *testing.T) {
	client := &stubClient{response: "I would rate this quite highly."}
	v := testVerifier(client)

	assert.Nil(t, v.Score(context.Background(), strings.Repeat("plausible transcription text ", 10)))
}

func TestBlend(t *testing.T) {
	v := testVerifier(&stubClient{})

	assert.InDelta(t, 0.70, v.Blend(0.70, nil), 1e-9)

	opinion := 0.30
	// 0.78*0.70 + 0.22*0.30
	assert.InDelta(t, 0.612, v.Blend(0.70, &opinion), 1e-9)
}

func TestSampleHeadTail(t *testing.T) {
	v := New(&stubClient{}, "m", config.VerifyConfig{Enabled: true, SampleChars: 100, HeuristicWeight: 0.78})

	text := strings.Repeat("a", 200) + strings.Repeat("z", 200)
	sampled := v.sample(text)

	assert.True(t, strings.HasPrefix(sampled, strings.Repeat("a", 60)))
	assert.True(t, strings.HasSuffix(sampled, strings.Repeat("z", 40)))
	assert.Contains(t, sampled, "…")

	short := "short enough"
	assert.Equal(t, short, v.sample(short))
}
