package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transcribe-cli/internal/cost"
	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/preprocess"
	"github.com/sells-group/transcribe-cli/internal/profile"
	"github.com/sells-group/transcribe-cli/internal/prompt"
	"github.com/sells-group/transcribe-cli/internal/quality"
	"github.com/sells-group/transcribe-cli/pkg/anthropic"
)

// requiredDocScore is the acceptance bar for a whole-document attempt. The
// accuracy profile is terminal, so its result is always accepted; lower
// profiles must clear the escalation threshold with a small allowance under
// the profile's own floor.
func (e *Engine) requiredDocScore(pol profile.Policy) float64 {
	if pol.Profile == model.ProfileAccuracy {
		return 0
	}
	return max(e.cfg.EscalationThreshold, pol.MinQualityScore-0.1)
}

// resolveDocument runs the escalation loop over the candidate profiles for a
// single document. The last candidate's result is accepted unconditionally.
func (e *Engine) resolveDocument(ctx context.Context, doc model.Document, candidates []profile.Policy, obs model.Observer) (*model.AttemptResult, error) {
	system := prompt.System(false)
	user := prompt.Transcribe("", 0, 0)
	parts := []anthropic.ContentPart{
		anthropic.MediaPart(doc.MimeType, doc.Encoded),
		anthropic.TextPart(user),
	}
	inTokens := cost.Tokens(len(doc.Encoded) + len(system) + len(user))

	for i, pol := range candidates {
		last := i == len(candidates)-1
		modelID := e.table.ModelID(pol.ModelTier)

		e.emitStart(obs, pol.Profile, inTokens)

		text, err := e.generate(ctx, modelID, system, parts)
		if err != nil {
			if last {
				return nil, eris.Wrapf(err, "engine: transcription failed on profile %s", pol.Profile)
			}
			e.emitTransportEscalation(obs, pol.Profile, err)
			continue
		}

		res := e.assess(ctx, text, pol, quality.KindPDF, e.requiredDocScore(pol))
		e.est.LogAttempt(modelID, "transcribe", inTokens, cost.Tokens(len(text)))

		if res.accepted || last {
			e.emitAccepted(obs, res)
			return &res.AttemptResult, nil
		}
		e.emitEscalated(obs, res)
	}
	return nil, eris.New("engine: no candidate profiles")
}

// resolveSpan runs the escalation loop for one page span of an image
// sequence. firstPage is the 1-based absolute page number of the span's
// first image.
func (e *Engine) resolveSpan(ctx context.Context, span []model.ImageInput, firstPage, spanIndex int, candidates []profile.Policy, carry string, obs model.Observer) (model.SpanResolution, error) {
	system := prompt.System(true)
	user := prompt.Transcribe(carry, firstPage, len(span))

	for i, pol := range candidates {
		last := i == len(candidates)-1
		modelID := e.table.ModelID(pol.ModelTier)

		prepped, err := preprocess.Batch(ctx, span, pol, e.cfg.PreprocessConcurrency)
		if err != nil {
			if last {
				return model.SpanResolution{}, eris.Wrapf(err, "engine: could not resolve span %d", spanIndex)
			}
			zap.L().Warn("engine: preprocessing failed, escalating",
				zap.Int("span", spanIndex),
				zap.String("profile", string(pol.Profile)),
				zap.Error(err),
			)
			e.emitTransportEscalation(obs, pol.Profile, err)
			continue
		}

		parts := make([]anthropic.ContentPart, 0, len(prepped)+1)
		inChars := len(system) + len(user)
		for _, p := range prepped {
			parts = append(parts, anthropic.MediaPart(p.MimeType, p.Encoded))
			inChars += len(p.Encoded)
		}
		parts = append(parts, anthropic.TextPart(user))
		inTokens := cost.Tokens(inChars)

		e.emitStart(obs, pol.Profile, inTokens)

		text, err := e.generate(ctx, modelID, system, parts)
		if err != nil {
			if last {
				return model.SpanResolution{}, eris.Wrapf(err, "engine: could not resolve span %d", spanIndex)
			}
			e.emitTransportEscalation(obs, pol.Profile, err)
			continue
		}

		res := e.assess(ctx, text, pol, quality.KindSpan, pol.MinQualityScore)
		e.est.LogAttempt(modelID, "transcribe", inTokens, cost.Tokens(len(text)))

		if res.accepted || last {
			e.emitAccepted(obs, res)
			return model.SpanResolution{AttemptResult: res.AttemptResult, Consumed: len(span)}, nil
		}
		e.emitEscalated(obs, res)
	}
	return model.SpanResolution{}, eris.Errorf("engine: could not resolve span %d: no candidate profiles", spanIndex)
}

// attempt is one scored escalation iteration.
type attempt struct {
	model.AttemptResult
	accepted bool
}

// assess scores an attempt with the local heuristic and, when the score
// lands in the consultation margin, blends in a verifier opinion.
func (e *Engine) assess(ctx context.Context, text string, pol profile.Policy, kind quality.Kind, required float64) attempt {
	assessment := quality.Assess(text, kind)
	effective := assessment.Score

	var verification *float64
	if e.verifier != nil && e.verifier.ShouldVerify(assessment.Score, required, kind) {
		verification = e.verifier.Score(ctx, text)
		effective = e.verifier.Blend(assessment.Score, verification)
	}

	return attempt{
		AttemptResult: model.AttemptResult{
			Text:              text,
			Profile:           pol.Profile,
			Assessment:        assessment,
			QualityScore:      effective,
			VerificationScore: verification,
		},
		accepted: effective >= required,
	}
}

func (e *Engine) emitStart(obs model.Observer, p model.Profile, inTokens int) {
	e.emit(obs, model.AnalysisEvent{
		Type:                 model.EventProfileStart,
		Profile:              p,
		Message:              "starting transcription attempt",
		EstimatedInputTokens: &inTokens,
	})
}

func (e *Engine) emitAccepted(obs model.Observer, res attempt) {
	score := res.QualityScore
	outTokens := cost.Tokens(len(res.Text))
	e.emit(obs, model.AnalysisEvent{
		Type:                  model.EventProfileAccepted,
		Profile:               res.Profile,
		Message:               "attempt accepted",
		QualityScore:          &score,
		Reasons:               res.Assessment.Reasons,
		EstimatedOutputTokens: &outTokens,
		VerificationScore:     res.VerificationScore,
	})
}

func (e *Engine) emitEscalated(obs model.Observer, res attempt) {
	score := res.QualityScore
	e.emit(obs, model.AnalysisEvent{
		Type:              model.EventProfileEscalated,
		Profile:           res.Profile,
		Message:           "quality below requirement, escalating",
		QualityScore:      &score,
		Reasons:           res.Assessment.Reasons,
		VerificationScore: res.VerificationScore,
	})
}

// emitTransportEscalation reports an escalation caused by a transport or
// preprocessing failure rather than a quality rejection; it carries no
// quality fields.
func (e *Engine) emitTransportEscalation(obs model.Observer, p model.Profile, err error) {
	zap.L().Warn("engine: attempt failed, escalating",
		zap.String("profile", string(p)),
		zap.Error(err),
	)
	e.emit(obs, model.AnalysisEvent{
		Type:    model.EventProfileEscalated,
		Profile: p,
		Message: "attempt failed, escalating",
	})
}
