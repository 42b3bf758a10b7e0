package model

// EventType discriminates analysis lifecycle notifications.
type EventType string

const (
	EventCacheHit         EventType = "cache-hit"
	EventProfileStart     EventType = "profile-start"
	EventProfileAccepted  EventType = "profile-accepted"
	EventProfileEscalated EventType = "profile-escalated"
	EventCompleted        EventType = "completed"
)

// AnalysisEvent is a purely informational lifecycle notification emitted to
// an observer. It never affects control flow.
type AnalysisEvent struct {
	Type                  EventType `json:"type"`
	Profile               Profile   `json:"profile,omitempty"`
	Message               string    `json:"message,omitempty"`
	QualityScore          *float64  `json:"quality_score,omitempty"`
	Reasons               []string  `json:"reasons,omitempty"`
	EstimatedInputTokens  *int      `json:"estimated_input_tokens,omitempty"`
	EstimatedOutputTokens *int      `json:"estimated_output_tokens,omitempty"`
	VerificationScore     *float64  `json:"verification_score,omitempty"`
}

// Observer receives analysis events in emission order. Optional; the engine
// functions with no observer attached.
type Observer func(AnalysisEvent)
