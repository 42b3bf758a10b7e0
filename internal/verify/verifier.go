// Package verify cross-checks the local quality heuristic with a secondary
// inference call on a sampled excerpt. Verifier failures of any kind
// degrade to "no opinion"; they never abort an attempt.
package verify

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/prompt"
	"github.com/sells-group/transcribe-cli/internal/quality"
	"github.com/sells-group/transcribe-cli/pkg/anthropic"
)

// Margins under which the verifier is consulted: a heuristic score clearly
// above the requirement passes without a second opinion, and one clearly
// below fails without spending on one.
const (
	MarginPDF  = 0.12
	MarginSpan = 0.10
)

// Text shorter than this is scored 0 without calling the service.
const trivialChars = 60

// Verifier issues secondary scoring calls against the fast model tier.
type Verifier struct {
	client          anthropic.Client
	modelID         string
	sampleChars     int
	heuristicWeight float64
	enabled         bool
}

// New creates a Verifier. A nil client disables verification.
func New(client anthropic.Client, modelID string, cfg config.VerifyConfig) *Verifier {
	sample := cfg.SampleChars
	if sample <= 0 {
		sample = 4000
	}
	hw := cfg.HeuristicWeight
	if hw <= 0 || hw > 1 {
		hw = 0.78
	}
	return &Verifier{
		client:          client,
		modelID:         modelID,
		sampleChars:     sample,
		heuristicWeight: hw,
		enabled:         cfg.Enabled && client != nil,
	}
}

// ShouldVerify reports whether the heuristic score is close enough below the
// required score to warrant a second opinion.
func (v *Verifier) ShouldVerify(heuristic, required float64, kind quality.Kind) bool {
	if !v.enabled {
		return false
	}
	margin := MarginPDF
	if kind == quality.KindSpan {
		margin = MarginSpan
	}
	return heuristic < required && heuristic >= required-margin
}

// Score asks the secondary model to score the text in [0,1]. Returns nil
// when the verifier has no usable opinion.
func (v *Verifier) Score(ctx context.Context, text string) *float64 {
	if !v.enabled {
		return nil
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < trivialChars {
		zero := 0.0
		return &zero
	}

	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.modelID,
		MaxTokens: 64,
		System:    prompt.VerifySystem(),
		Parts:     []anthropic.ContentPart{anthropic.TextPart(prompt.Verify(v.sample(trimmed)))},
	})
	if err != nil {
		zap.L().Warn("verify: scoring call failed", zap.Error(err))
		return nil
	}

	score := ParseScore(resp.Text)
	if score == nil {
		zap.L().Warn("verify: unparseable verifier response",
			zap.String("response", truncate(resp.Text, 200)),
		)
	}
	return score
}

// Blend folds a verifier opinion into the heuristic score with a fixed
// weighting. A nil verifier score leaves the heuristic score unchanged.
func (v *Verifier) Blend(heuristic float64, verifier *float64) float64 {
	if verifier == nil {
		return heuristic
	}
	return v.heuristicWeight*heuristic + (1-v.heuristicWeight)*(*verifier)
}

// sample keeps the head 60% and tail 40% of the character budget, joined
// with an ellipsis marker, when text exceeds the budget.
func (v *Verifier) sample(text string) string {
	runes := []rune(text)
	if len(runes) <= v.sampleChars {
		return text
	}
	head := v.sampleChars * 6 / 10
	tail := v.sampleChars - head
	return string(runes[:head]) + "\n…\n" + string(runes[len(runes)-tail:])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
