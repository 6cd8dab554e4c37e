// Package transcript parses meeting transcripts from SRT, WebVTT and JSON
// sources and can produce one locally through a faster-whisper server.
package transcript

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Segment is one timed utterance from a transcript source. Speaker is the
// label embedded by the source ("Maria: hello" in subtitles, a speaker field
// in JSON) and is empty when the source carries none.
type Segment struct {
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// ParseFile parses a transcript file, dispatching on its extension.
// Supported: .srt, .vtt, .json.
func ParseFile(path string, data []byte) ([]Segment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return ParseSRT(data)
	case ".vtt":
		return ParseVTT(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported transcript format: %s", filepath.Ext(path))
	}
}

// splitSpeaker separates a leading "Name:" label from subtitle text. The
// label must be short and must not look like a timestamp or URL, otherwise
// the whole line is treated as plain text.
func splitSpeaker(text string) (speaker, rest string) {
	idx := strings.Index(text, ":")
	if idx <= 0 || idx > 40 {
		return "", text
	}
	label := strings.TrimSpace(text[:idx])
	if label == "" || strings.ContainsAny(label, "0123456789/") {
		return "", text
	}
	return label, strings.TrimSpace(text[idx+1:])
}
