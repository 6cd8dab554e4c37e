package ai

import "context"

// ClusterContext describes one speaker cluster for the naming assist: who we
// currently think they are and how they talked.
type ClusterContext struct {
	SpeakerID    string   // diarization cluster id
	CurrentName  string   // name assigned so far ("Speaker 2" for fallbacks)
	SpeakingTime float64  // total seconds attributed to this cluster
	SampleLines  []string // a few transcript lines spoken during this cluster's segments
}

// Provider defines the interface for LLM naming-assist backends.
type Provider interface {
	Name() string
	SuggestNames(
		ctx context.Context,
		introText string,
		clusters []ClusterContext,
	) ([]NameSuggestion, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"` // in USD
}

// NameSuggestion is the LLM's guess for one cluster. Confidence is the
// model's own estimate and is advisory only; pattern-extracted names always
// take precedence over suggestions.
type NameSuggestion struct {
	SpeakerID  string  `json:"speaker_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// suggestionResponse is the JSON document every provider asks the model for.
type suggestionResponse struct {
	Suggestions []NameSuggestion `json:"suggestions"`
}
