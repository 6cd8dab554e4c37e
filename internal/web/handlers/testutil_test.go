package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/fusion"
	"github.com/kozaktomas/speaker-labeler/internal/naming"
	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/stats"
	"github.com/kozaktomas/speaker-labeler/internal/store"
)

// testConfig creates a minimal config for testing with throwaway directories.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Processing: config.ProcessingConfig{
			UploadDir: filepath.Join(dir, "uploads"),
			OutputDir: filepath.Join(dir, "output"),
			TempDir:   filepath.Join(dir, "temp"),
		},
	}
}

// testLogger returns a logger that stays quiet unless something breaks.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStore creates a file-backed store in a temp directory.
func testStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return st
}

// testDocument builds a small result document with one fallback-named speaker.
func testDocument() *output.Document {
	return &output.Document{
		Video:    "meeting.mp4",
		Duration: 60,
		Speakers: []naming.NamedSpeaker{
			{SpeakerID: "speaker_0", Name: "Maria Lopez", Confidence: 0.8, FaceID: "face_0"},
			{SpeakerID: "speaker_1", Name: "Speaker 2", Confidence: 0.0},
		},
		SpeakerFaces: map[string]string{"speaker_0": "face_0"},
		Segments: []fusion.SpeakerSegment{
			{SpeakerID: "speaker_0", FaceID: "face_0", Start: 0, End: 30},
			{SpeakerID: "speaker_1", Start: 30, End: 60},
		},
		Summary: fusion.Summary{TotalSegments: 2},
		AudioStats: map[string]stats.Entity{
			"speaker_0": {TotalDuration: 30, SegmentCount: 1},
			"speaker_1": {TotalDuration: 30, SegmentCount: 1},
		},
	}
}

// createRecording inserts a pending recording and returns it.
func createRecording(t *testing.T, st store.Store, id string) *store.Recording {
	t.Helper()
	rec := &store.Recording{
		ID:        id,
		FileName:  "meeting.mp4",
		VideoPath: filepath.Join(t.TempDir(), "meeting.mp4"),
		Status:    store.StatusPending,
	}
	if err := st.CreateRecording(context.Background(), rec); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}
	return rec
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// waitForJob polls until the job reaches a terminal state or the deadline hits.
func waitForJob(t *testing.T, job *ProcessJob) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status := job.GetStatus(); isJobTerminal(status) {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job did not finish, status %q", job.GetStatus())
	return ""
}
