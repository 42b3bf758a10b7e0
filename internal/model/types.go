package model

import "time"

// Profile is a named cost/fidelity tradeoff tier. Profiles are totally
// ordered: economy < balanced < accuracy.
type Profile string

const (
	ProfileEconomy  Profile = "economy"
	ProfileBalanced Profile = "balanced"
	ProfileAccuracy Profile = "accuracy"
)

// Profiles lists every profile in escalation order.
var Profiles = []Profile{ProfileEconomy, ProfileBalanced, ProfileAccuracy}

// Rank returns the profile's position in the escalation order.
// Unknown profiles rank below economy.
func (p Profile) Rank() int {
	switch p {
	case ProfileEconomy:
		return 0
	case ProfileBalanced:
		return 1
	case ProfileAccuracy:
		return 2
	default:
		return -1
	}
}

// MaxProfile returns the higher-ranked of a and b.
func MaxProfile(a, b Profile) Profile {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Tier selects which model a profile is served by.
type Tier string

const (
	TierFast     Tier = "fast"
	TierAccurate Tier = "accurate"
)

// QualityAssessment is the output of the local quality heuristic for one
// attempt. Never mutated after creation.
type QualityAssessment struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// CacheEntry is an accepted transcription persisted under a fingerprint key.
type CacheEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
	Profile   Profile   `json:"profile"`
	Quality   float64   `json:"quality"`
}

// AttemptResult is the transient outcome of one escalation iteration.
type AttemptResult struct {
	Text              string
	Profile           Profile
	Assessment        QualityAssessment
	QualityScore      float64
	VerificationScore *float64
}

// SpanResolution is an accepted attempt for one page span plus how many
// source pages the span covered.
type SpanResolution struct {
	AttemptResult
	Consumed int
}

// Document describes a single encoded source document (PDF mode).
type Document struct {
	Name     string
	MimeType string
	ByteSize int64
	Encoded  string
}

// ImageInput describes one page image of an ordered sequence.
type ImageInput struct {
	Name     string
	MimeType string
	ByteSize int64
	ModTime  time.Time
	Encoded  string
}
