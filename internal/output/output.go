// Package output renders processing results: a JSON document with the full
// attribution data and an SRT subtitle file with speaker names attached.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/fusion"
	"github.com/kozaktomas/speaker-labeler/internal/naming"
	"github.com/kozaktomas/speaker-labeler/internal/stats"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

// Document is the complete result of one recording, serialized as JSON.
type Document struct {
	Video        string                  `json:"video"`
	Duration     float64                 `json:"duration"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Speakers     []naming.NamedSpeaker   `json:"speakers"`
	SpeakerFaces map[string]string       `json:"speaker_faces"`
	Segments     []fusion.SpeakerSegment `json:"segments"`
	Summary      fusion.Summary          `json:"summary"`
	AudioStats   map[string]stats.Entity `json:"audio_statistics"`
	VideoStats   map[string]stats.Entity `json:"video_statistics"`
}

// WriteJSON writes the document next to the other outputs, pretty-printed
// for human inspection.
func WriteJSON(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// LabeledSRT renders the transcript as SRT with each cue prefixed by the
// attributed speaker's name. A cue is attributed to the fused segment it
// overlaps the most; cues overlapping nothing keep their text unlabeled.
func LabeledSRT(segments []transcript.Segment, fused []fusion.SpeakerSegment, named []naming.NamedSpeaker) string {
	names := make(map[string]string, len(named))
	for _, n := range named {
		names[n.SpeakerID] = n.Name
	}

	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTime(seg.Start), formatSRTTime(seg.End))

		if name := names[bestCluster(seg, fused)]; name != "" {
			fmt.Fprintf(&b, "%s: %s\n\n", name, seg.Text)
		} else {
			fmt.Fprintf(&b, "%s\n\n", seg.Text)
		}
	}
	return b.String()
}

// WriteSRT writes the labeled subtitle file.
func WriteSRT(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	return nil
}

// RenameInSRT rewrites the speaker prefix of every cue attributed to
// oldName. Used when a speaker is renamed after the subtitle file was
// written; only "Name: text" prefixes are touched, cue text is left alone.
func RenameInSRT(content, oldName, newName string) string {
	lines := strings.Split(content, "\n")
	prefix := oldName + ": "
	for i, line := range lines {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			lines[i] = newName + ": " + rest
		}
	}
	return strings.Join(lines, "\n")
}

// bestCluster returns the cluster id of the fused segment overlapping the
// transcript cue the most, or "" when nothing overlaps.
func bestCluster(seg transcript.Segment, fused []fusion.SpeakerSegment) string {
	best := ""
	bestOverlap := 0.0
	for _, f := range fused {
		if f.End < seg.Start || f.Start > seg.End {
			continue
		}
		overlap := min(f.End, seg.End) - max(f.Start, seg.Start)
		if overlap > bestOverlap {
			best = f.SpeakerID
			bestOverlap = overlap
		}
	}
	return best
}

// formatSRTTime renders seconds as HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
