package transcript

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,500
Maria: Hi everyone, I'm Maria Lopez

2
00:00:05,000 --> 00:00:08,250
Thanks for joining
the weekly sync
`

const sampleVTT = `WEBVTT

NOTE generated by recorder

00:01.000 --> 00:04.500 align:start
Maria: Hi everyone, I'm Maria Lopez

01:00:05.000 --> 01:00:08.250
Thanks for joining
`

func TestParseSRT(t *testing.T) {
	segments, err := ParseSRT([]byte(sampleSRT))
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}

	first := segments[0]
	if first.Start != 1.0 || first.End != 4.5 {
		t.Errorf("first cue times = [%f, %f], want [1, 4.5]", first.Start, first.End)
	}
	if first.Speaker != "Maria" {
		t.Errorf("speaker = %q, want Maria", first.Speaker)
	}
	if first.Text != "Hi everyone, I'm Maria Lopez" {
		t.Errorf("text = %q", first.Text)
	}

	second := segments[1]
	if second.Speaker != "" {
		t.Errorf("unlabeled cue got speaker %q", second.Speaker)
	}
	if second.Text != "Thanks for joining the weekly sync" {
		t.Errorf("multiline text = %q", second.Text)
	}
}

func TestParseSRTWithByteOrderMark(t *testing.T) {
	segments, err := ParseSRT([]byte("\ufeff" + sampleSRT))
	if err != nil {
		t.Fatalf("ParseSRT failed on BOM-prefixed input: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Speaker != "Maria" {
		t.Errorf("speaker = %q, want Maria", segments[0].Speaker)
	}
}

func TestParseVTT(t *testing.T) {
	segments, err := ParseVTT([]byte(sampleVTT))
	if err != nil {
		t.Fatalf("ParseVTT failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Start != 1.0 || segments[0].End != 4.5 {
		t.Errorf("short timestamp parsed as [%f, %f]", segments[0].Start, segments[0].End)
	}
	if segments[1].Start != 3605.0 {
		t.Errorf("hour timestamp parsed as %f, want 3605", segments[1].Start)
	}
	if segments[0].Speaker != "Maria" {
		t.Errorf("speaker = %q, want Maria", segments[0].Speaker)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{"segments": [
		{"start": 0.5, "end": 3.2, "text": " Hello there ", "speaker": "spk_0"},
		{"start": 3.5, "end": 6.0, "text": "My name is John Smith"}
	]}`)

	segments, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "Hello there" {
		t.Errorf("text not trimmed: %q", segments[0].Text)
	}
	if segments[0].Speaker != "spk_0" {
		t.Errorf("speaker = %q", segments[0].Speaker)
	}
}

func TestParseFileUnsupported(t *testing.T) {
	if _, err := ParseFile("notes.txt", []byte("hello")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestSplitSpeaker(t *testing.T) {
	tests := []struct {
		text        string
		wantSpeaker string
		wantRest    string
	}{
		{"Maria: hello", "Maria", "hello"},
		{"no label here", "", "no label here"},
		{"12:30 is the time", "", "12:30 is the time"},
		{"https://example.com", "", "https://example.com"},
		{": empty label", "", ": empty label"},
	}

	for _, tc := range tests {
		speaker, rest := splitSpeaker(tc.text)
		if speaker != tc.wantSpeaker || rest != tc.wantRest {
			t.Errorf("splitSpeaker(%q) = (%q, %q), want (%q, %q)",
				tc.text, speaker, rest, tc.wantSpeaker, tc.wantRest)
		}
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "small" {
			t.Errorf("model = %q, want small", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"language": "en",
			"duration": 12.5,
			"segments": [
				{"start": 0.0, "end": 4.1, "text": " Hi, I'm Maria Lopez "},
				{"start": 4.5, "end": 9.0, "text": "Welcome to the meeting"}
			]
		}`))
	}))
	defer server.Close()

	audioPath := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := NewASRClient(server.URL, "small")
	segments, err := client.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "Hi, I'm Maria Lopez" {
		t.Errorf("text = %q", segments[0].Text)
	}
	if math.Abs(segments[1].End-9.0) > 1e-9 {
		t.Errorf("end = %f, want 9.0", segments[1].End)
	}
}
