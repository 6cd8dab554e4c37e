package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/fusion"
	"github.com/kozaktomas/speaker-labeler/internal/naming"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

func TestFormatSRTTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.042, "00:01:01,042"},
		{3661.999, "01:01:01,999"},
		{-5, "00:00:00,000"},
	}

	for _, tc := range tests {
		if got := formatSRTTime(tc.seconds); got != tc.want {
			t.Errorf("formatSRTTime(%f) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestLabeledSRT(t *testing.T) {
	segments := []transcript.Segment{
		{Start: 1.0, End: 4.0, Text: "Hi, I'm Maria Lopez"},
		{Start: 5.0, End: 8.0, Text: "Good to see you all"},
		{Start: 100.0, End: 102.0, Text: "Unattributed line"},
	}
	fused := []fusion.SpeakerSegment{
		{SpeakerID: "speaker_0", Start: 0.5, End: 4.5},
		{SpeakerID: "speaker_1", Start: 4.8, End: 9.0},
	}
	named := []naming.NamedSpeaker{
		{SpeakerID: "speaker_0", Name: "Maria Lopez", Confidence: 0.8},
		{SpeakerID: "speaker_1", Name: "Speaker 2", Confidence: 0.0},
	}

	srt := LabeledSRT(segments, fused, named)

	if !strings.Contains(srt, "Maria Lopez: Hi, I'm Maria Lopez") {
		t.Errorf("first cue not labeled:\n%s", srt)
	}
	if !strings.Contains(srt, "Speaker 2: Good to see you all") {
		t.Errorf("second cue not labeled:\n%s", srt)
	}
	if !strings.Contains(srt, "00:00:01,000 --> 00:00:04,000") {
		t.Errorf("timestamps malformed:\n%s", srt)
	}
	// cue with no overlapping fused segment stays unlabeled
	if strings.Contains(srt, ": Unattributed line") {
		t.Errorf("unattributed cue received a label:\n%s", srt)
	}

	// round trip through our own parser
	parsed, err := transcript.ParseSRT([]byte(srt))
	if err != nil {
		t.Fatalf("generated SRT does not parse: %v", err)
	}
	if len(parsed) != 3 {
		t.Errorf("round trip produced %d cues, want 3", len(parsed))
	}
	if parsed[0].Speaker != "Maria Lopez" {
		t.Errorf("round trip speaker = %q", parsed[0].Speaker)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "meeting.json")

	doc := &Document{
		Video:       "meeting.mp4",
		Duration:    120.5,
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Speakers: []naming.NamedSpeaker{
			{SpeakerID: "speaker_0", Name: "Maria Lopez", Confidence: 0.8, FaceID: "face_0"},
		},
		SpeakerFaces: map[string]string{"speaker_0": "face_0"},
	}

	if err := WriteJSON(path, doc); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("written document does not parse: %v", err)
	}
	if got.Video != "meeting.mp4" || got.Speakers[0].Name != "Maria Lopez" {
		t.Errorf("document round trip mismatch: %+v", got)
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "meeting.srt")
	if err := WriteSRT(path, "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n"); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("subtitle file missing: %v", err)
	}
}

func TestRenameInSRT(t *testing.T) {
	srt := "1\n00:00:00,000 --> 00:00:05,000\nMaria Lopez: welcome everyone\n\n" +
		"2\n00:00:05,000 --> 00:00:09,000\nSpeaker 2: thanks Maria Lopez\n\n"

	got := RenameInSRT(srt, "Speaker 2", "John Smith")

	if !strings.Contains(got, "John Smith: thanks Maria Lopez") {
		t.Errorf("cue prefix not renamed:\n%s", got)
	}
	if strings.Contains(got, "Speaker 2:") {
		t.Errorf("old speaker prefix still present:\n%s", got)
	}
	if !strings.Contains(got, "Maria Lopez: welcome everyone") {
		t.Errorf("unrelated cue changed:\n%s", got)
	}
}
