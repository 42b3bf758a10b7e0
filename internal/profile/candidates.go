package profile

import (
	"go.uber.org/zap"

	"github.com/sells-group/transcribe-cli/internal/model"
)

// CandidatesForDocument selects the ordered candidate profile list for a
// single-document (PDF) request.
//
// Large documents start at economy; small ones can afford to start at
// balanced; everything in between defaults to economy. The list then runs
// from the initial profile through accuracy. A tier override collapses the
// list to the profiles served by that tier.
func (t *Table) CandidatesForDocument(byteSize int64, largeBytes, smallBytes int64, override model.Tier) []Policy {
	initial := model.ProfileEconomy
	sizeClass := "medium"
	switch {
	case byteSize >= largeBytes:
		sizeClass = "large"
	case byteSize <= smallBytes:
		sizeClass = "small"
		initial = model.ProfileBalanced
	}
	zap.L().Debug("profile: document size class",
		zap.Int64("bytes", byteSize),
		zap.String("class", sizeClass),
		zap.String("initial", string(initial)),
	)

	var out []Policy
	for _, p := range model.Profiles {
		if p.Rank() < initial.Rank() {
			continue
		}
		pol := t.policies[p]
		if override != "" && pol.ModelTier != override {
			continue
		}
		out = append(out, pol)
	}
	return out
}

// CandidatesForImages selects the ordered candidate profile list for an
// image-sequence request. Every profile is a candidate regardless of how
// many pages there are; only a tier override narrows the list.
func (t *Table) CandidatesForImages(override model.Tier) []Policy {
	var out []Policy
	for _, p := range model.Profiles {
		pol := t.policies[p]
		if override != "" && pol.ModelTier != override {
			continue
		}
		out = append(out, pol)
	}
	return out
}
