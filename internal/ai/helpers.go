package ai

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/name_suggestion.txt
var nameSuggestionPrompt string

func buildSuggestionPrompt() string {
	return nameSuggestionPrompt
}

// buildSuggestionContent renders the transcript excerpt and cluster context
// into the user message shared by all providers.
func buildSuggestionContent(introText string, clusters []ClusterContext) string {
	var b strings.Builder

	b.WriteString("Speaker clusters:\n")
	for _, c := range clusters {
		fmt.Fprintf(&b, "- %s (currently %q, spoke %.0fs)\n", c.SpeakerID, c.CurrentName, c.SpeakingTime)
		for _, line := range c.SampleLines {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	b.WriteString("\nTranscript opening:\n")
	b.WriteString(introText)

	return b.String()
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	// Try to find JSON object boundaries
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	// Find matching closing brace
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	// If no matching brace found, return from start
	return content[start:]
}
