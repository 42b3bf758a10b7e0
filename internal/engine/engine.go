// Package engine drives the adaptive quality-cost optimization loop: pick a
// profile, transcribe, score, then accept or escalate. Accepted results are
// persisted in a content-addressed cache so identical requests never spend
// twice.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transcribe-cli/internal/cache"
	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/cost"
	"github.com/sells-group/transcribe-cli/internal/fingerprint"
	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/profile"
	"github.com/sells-group/transcribe-cli/internal/prompt"
	"github.com/sells-group/transcribe-cli/internal/resilience"
	"github.com/sells-group/transcribe-cli/internal/verify"
	"github.com/sells-group/transcribe-cli/pkg/anthropic"
)

// Engine orchestrates transcription attempts across profiles.
type Engine struct {
	table     *profile.Table
	client    anthropic.Client
	store     cache.Store
	verifier  *verify.Verifier
	est       *cost.Estimator
	cfg       config.EngineConfig
	maxTokens int64
}

// Options configures one analysis request.
type Options struct {
	// TierOverride pins the candidate list to profiles served by this tier.
	TierOverride model.Tier

	// Observer receives lifecycle events in emission order. Optional.
	Observer model.Observer
}

// New creates an Engine. store may be nil to disable caching.
func New(table *profile.Table, client anthropic.Client, store cache.Store, verifier *verify.Verifier, est *cost.Estimator, cfg config.EngineConfig, maxTokens int64) *Engine {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Engine{
		table:     table,
		client:    client,
		store:     store,
		verifier:  verifier,
		est:       est,
		cfg:       cfg,
		maxTokens: maxTokens,
	}
}

// AnalyzeDocument transcribes a single document (PDF mode), returning a
// chunked output stream. The escalation run is lazy: no inference happens
// until the first chunk is pulled.
func (e *Engine) AnalyzeDocument(ctx context.Context, doc model.Document, opts Options) (*Stream, error) {
	system := prompt.System(false)
	user := prompt.Transcribe("", 0, 0)

	key, err := e.cacheKey(system+"\n"+user, fingerprint.Document(doc))
	if err != nil {
		return nil, err
	}

	if entry := e.lookup(ctx, key); entry != nil {
		e.emitCacheHit(opts.Observer, entry)
		return newTextStream(ctx, e.cfg.ChunkSize, entry.Text), nil
	}

	candidates := e.table.CandidatesForDocument(doc.ByteSize, e.cfg.LargeDocBytes, e.cfg.SmallDocBytes, opts.TierOverride)
	if len(candidates) == 0 {
		return nil, eris.Errorf("engine: no candidate profiles for tier override %q", opts.TierOverride)
	}

	delivered := false
	return newStream(ctx, e.cfg.ChunkSize, func(ctx context.Context) (string, bool, error) {
		if delivered {
			return "", false, nil
		}
		delivered = true

		accepted, err := e.resolveDocument(ctx, doc, candidates, opts.Observer)
		if err != nil {
			return "", false, err
		}

		e.persist(ctx, key, model.CacheEntry{
			CreatedAt: time.Now().UTC(),
			Text:      accepted.Text,
			Profile:   accepted.Profile,
			Quality:   accepted.QualityScore,
		})
		e.emit(opts.Observer, model.AnalysisEvent{
			Type:    model.EventCompleted,
			Profile: accepted.Profile,
			Message: "analysis complete",
		})
		return accepted.Text, false, nil
	}), nil
}

// AnalyzeImages transcribes an ordered image sequence. The escalation state
// machine runs per page span; spans resolve lazily as the consumer pulls
// chunks, and the whole sequence is cached as one unit only after every span
// has been accepted.
func (e *Engine) AnalyzeImages(ctx context.Context, images []model.ImageInput, opts Options) (*Stream, error) {
	if len(images) == 0 {
		return nil, eris.New("engine: no images supplied")
	}

	system := prompt.System(true)

	key, err := e.cacheKey(system, fingerprint.Images(images))
	if err != nil {
		return nil, err
	}

	if entry := e.lookup(ctx, key); entry != nil {
		e.emitCacheHit(opts.Observer, entry)
		return newTextStream(ctx, e.cfg.ChunkSize, entry.Text), nil
	}

	candidates := e.table.CandidatesForImages(opts.TierOverride)
	if len(candidates) == 0 {
		return nil, eris.Errorf("engine: could not resolve span 1: no candidate profiles for tier override %q", opts.TierOverride)
	}

	spanSize := candidates[0].SpanSize
	if spanSize <= 0 {
		spanSize = 1
	}

	run := &sequenceRun{
		highest:    candidates[0].Profile,
		minQuality: 1.0,
	}
	cursor := 0
	spanIndex := 0

	return newStream(ctx, e.cfg.ChunkSize, func(ctx context.Context) (string, bool, error) {
		if cursor >= len(images) {
			return "", false, nil
		}
		spanIndex++

		end := min(cursor+spanSize, len(images))
		span := images[cursor:end]

		res, err := e.resolveSpan(ctx, span, cursor+1, spanIndex, candidates, run.carry, opts.Observer)
		if err != nil {
			return "", false, err
		}

		cursor += res.Consumed
		run.fold(res, e.table)

		more := cursor < len(images)
		if !more {
			e.persist(ctx, key, model.CacheEntry{
				CreatedAt: time.Now().UTC(),
				Text:      run.join(),
				Profile:   run.highest,
				Quality:   run.minQuality,
			})
			e.emit(opts.Observer, model.AnalysisEvent{
				Type:    model.EventCompleted,
				Profile: run.highest,
				Message: "analysis complete",
			})
		}
		return res.Text, more, nil
	}), nil
}

// sequenceRun accumulates per-request state across spans: the running
// quality floor, the highest profile used, and the continuity snippet.
// The sequence's reported quality is its weakest accepted span.
type sequenceRun struct {
	texts      []string
	highest    model.Profile
	minQuality float64
	carry      string
}

func (r *sequenceRun) fold(res model.SpanResolution, table *profile.Table) {
	r.texts = append(r.texts, res.Text)
	r.highest = model.MaxProfile(r.highest, res.Profile)
	if res.QualityScore < r.minQuality {
		r.minQuality = res.QualityScore
	}
	r.carry = ExtractCarryContext(res.Text, table.Policy(res.Profile).CarryContextChars)
}

func (r *sequenceRun) join() string {
	var nonEmpty []string
	for _, t := range r.texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func (e *Engine) cacheKey(effectivePrompt, contentFP string) (string, error) {
	policyHash, err := fingerprint.PolicyHash(e.table.Policies(), prompt.OutputContract)
	if err != nil {
		return "", err
	}
	return fingerprint.Key(policyHash, effectivePrompt, contentFP), nil
}

// lookup reads the cache, treating any store failure as a miss.
func (e *Engine) lookup(ctx context.Context, key string) *model.CacheEntry {
	if e.store == nil {
		return nil
	}
	entry, err := e.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("engine: cache read failed", zap.Error(err))
		return nil
	}
	return entry
}

// persist writes an accepted result to the cache. Best effort: the cache is
// an optimization, not a correctness dependency.
func (e *Engine) persist(ctx context.Context, key string, entry model.CacheEntry) {
	if e.store == nil {
		return
	}
	if err := e.store.Put(ctx, key, entry); err != nil {
		zap.L().Warn("engine: cache write failed", zap.Error(err))
	}
}

func (e *Engine) emitCacheHit(obs model.Observer, entry *model.CacheEntry) {
	score := entry.Quality
	e.emit(obs, model.AnalysisEvent{
		Type:         model.EventCacheHit,
		Profile:      entry.Profile,
		Message:      "serving cached transcription",
		QualityScore: &score,
	})
	e.emit(obs, model.AnalysisEvent{
		Type:    model.EventCompleted,
		Profile: entry.Profile,
		Message: "analysis complete",
	})
}

func (e *Engine) emit(obs model.Observer, ev model.AnalysisEvent) {
	if obs != nil {
		obs(ev)
	}
}

// generate runs one streamed inference call, retrying transient transport
// failures, and returns the concatenated attempt text.
func (e *Engine) generate(ctx context.Context, modelID, system string, parts []anthropic.ContentPart) (string, error) {
	retryCfg := resilience.DefaultRetryConfig(e.cfg.RetryAttempts)
	retryCfg.OnRetry = resilience.RetryLogger("anthropic stream")

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		var sb strings.Builder
		resp, err := e.client.StreamMessage(ctx, anthropic.MessageRequest{
			Model:     modelID,
			MaxTokens: e.maxTokens,
			System:    system,
			Parts:     parts,
		}, func(fragment string) {
			sb.WriteString(fragment)
		})
		if err != nil {
			return "", err
		}
		if resp != nil && resp.Text != "" {
			return resp.Text, nil
		}
		return sb.String(), nil
	})
}
