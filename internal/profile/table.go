package profile

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/transcribe-cli/internal/config"
	"github.com/sells-group/transcribe-cli/internal/model"
)

// Policy is the read-only cost/quality configuration for one profile.
type Policy struct {
	Profile           model.Profile `yaml:"profile"`
	ModelTier         model.Tier    `yaml:"model_tier"`
	MaxImageDim       int           `yaml:"max_image_dim"`
	SpanSize          int           `yaml:"span_size"`
	MinQualityScore   float64       `yaml:"min_quality_score"`
	CarryContextChars int           `yaml:"carry_context_chars"`
}

// Table maps each profile to its policy. Built once at process start and
// read-only afterwards.
type Table struct {
	policies map[model.Profile]Policy
	models   map[model.Tier]string
}

// NewTable builds the policy table from configuration. Only the economy
// and balanced profiles run on the fast tier; accuracy runs on the
// accurate tier.
func NewTable(profiles config.ProfilesConfig, anthropic config.AnthropicConfig) *Table {
	build := func(p model.Profile, tier model.Tier, pc config.ProfileConfig) Policy {
		return Policy{
			Profile:           p,
			ModelTier:         tier,
			MaxImageDim:       pc.MaxImageDim,
			SpanSize:          pc.SpanSize,
			MinQualityScore:   pc.MinQualityScore,
			CarryContextChars: pc.CarryContextChars,
		}
	}
	return &Table{
		policies: map[model.Profile]Policy{
			model.ProfileEconomy:  build(model.ProfileEconomy, model.TierFast, profiles.Economy),
			model.ProfileBalanced: build(model.ProfileBalanced, model.TierFast, profiles.Balanced),
			model.ProfileAccuracy: build(model.ProfileAccuracy, model.TierAccurate, profiles.Accuracy),
		},
		models: map[model.Tier]string{
			model.TierFast:     anthropic.FastModel,
			model.TierAccurate: anthropic.AccurateModel,
		},
	}
}

// Policy returns the policy for a profile.
func (t *Table) Policy(p model.Profile) Policy {
	return t.policies[p]
}

// ModelID resolves a tier to its configured model identifier.
func (t *Table) ModelID(tier model.Tier) string {
	return t.models[tier]
}

// Policies returns every policy in escalation order.
func (t *Table) Policies() []Policy {
	out := make([]Policy, 0, len(model.Profiles))
	for _, p := range model.Profiles {
		out = append(out, t.policies[p])
	}
	return out
}

// ParseTier parses a caller-supplied tier override. Empty means no override.
func ParseTier(s string) (model.Tier, error) {
	switch s {
	case "":
		return "", nil
	case string(model.TierFast):
		return model.TierFast, nil
	case string(model.TierAccurate):
		return model.TierAccurate, nil
	default:
		return "", eris.Errorf("profile: unknown model tier %q", s)
	}
}
