// Package cost estimates token counts and attributes spend per attempt.
package cost

import "go.uber.org/zap"

// Rate holds per-model token pricing (USD per million tokens).
type Rate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// DefaultRates returns the default per-model pricing table.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	}
}

// Estimator converts character counts to rough token estimates and costs.
type Estimator struct {
	rates map[string]Rate
}

// NewEstimator creates an Estimator. Nil rates fall back to the defaults.
func NewEstimator(rates map[string]Rate) *Estimator {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Estimator{rates: rates}
}

// Tokens approximates the token count of a text payload. Four characters per
// token is the usual rule of thumb for mixed prose.
func Tokens(chars int) int {
	return chars / 4
}

// Estimate computes an estimated USD cost for a call. Unknown models cost 0.
func (e *Estimator) Estimate(model string, inputTokens, outputTokens int) float64 {
	rate, ok := e.rates[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// LogAttempt logs token usage and estimated cost for one attempt with
// structured fields.
func (e *Estimator) LogAttempt(model, phase string, inputTokens, outputTokens int) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int("estimated_input_tokens", inputTokens),
		zap.Int("estimated_output_tokens", outputTokens),
		zap.Float64("estimated_cost_usd", e.Estimate(model, inputTokens, outputTokens)),
	)
}
