// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum video upload size in bytes (2GB)
	MaxUploadSize = 2 << 30
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100
)

// AI provider constants
const (
	// ProviderOpenAI is the default naming assist provider
	ProviderOpenAI = "openai"

	// ProviderGemini is the Google Gemini naming assist provider
	ProviderGemini = "gemini"

	// ProviderOllama is the local Ollama naming assist provider
	ProviderOllama = "ollama"
)

// Naming assist constants
const (
	// MinSuggestionConfidence is the minimum confidence for an LLM name
	// suggestion to be applied
	MinSuggestionConfidence = 0.5
)
