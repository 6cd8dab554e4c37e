package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/diarize"
	"github.com/kozaktomas/speaker-labeler/internal/media"
	"github.com/kozaktomas/speaker-labeler/internal/track"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

type fakeExtractor struct {
	t        *testing.T
	dir      string
	frames   int
	duration float64
}

func (f *fakeExtractor) Probe(ctx context.Context, videoPath string) (*media.Info, error) {
	return &media.Info{Width: 1920, Height: 1080, Duration: f.duration}, nil
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error) {
	path := filepath.Join(f.dir, "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeExtractor) ExtractFrames(ctx context.Context, videoPath, tmpDir string, frameRate int) ([]media.Frame, error) {
	frames := make([]media.Frame, 0, f.frames)
	for i := 0; i < f.frames; i++ {
		path := filepath.Join(f.dir, "frame_"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		frames = append(frames, media.Frame{Path: path, Number: i, Timestamp: float64(i) / float64(frameRate)})
	}
	return frames, nil
}

type fakeDiarizer struct {
	segments []diarize.Segment
	err      error
}

func (f *fakeDiarizer) Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]diarize.Segment, error) {
	return f.segments, f.err
}

type fakeTranscriber struct {
	segments []transcript.Segment
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	return f.segments, nil
}

// fakeDetector reports one face whose mouth opens over time, enough for the
// fusion engine to attribute it.
type fakeDetector struct {
	calls int
}

func (f *fakeDetector) DetectFaces(ctx context.Context, frameData []byte) ([]track.Detection, error) {
	f.calls++

	dist := 10.0
	if f.calls > 1 {
		dist = 30.0
	}
	landmarks := make([]track.Point, 300)
	for _, i := range []int{61, 62, 63} {
		landmarks[i] = track.Point{X: 500, Y: 400}
	}
	for _, i := range []int{291, 292, 293} {
		landmarks[i] = track.Point{X: 500, Y: 400 + dist}
	}

	return []track.Detection{
		{
			BBox:       track.BoundingBox{X: 400, Y: 300, W: 400, H: 400},
			Confidence: 0.95,
			Landmarks:  landmarks,
		},
	}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	dir := t.TempDir()
	cfg.Processing.TempDir = filepath.Join(dir, "temp")
	cfg.Processing.OutputDir = filepath.Join(dir, "output")
	cfg.Processing.CleanupTemp = false
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProcessor(t *testing.T, cfg *config.Config, diarizer Diarizer, transcriber Transcriber) *Processor {
	t.Helper()

	p, err := New(cfg, testLogger(), diarizer, transcriber, &fakeDetector{}, nil)
	if err != nil {
		t.Fatalf("failed to build processor: %v", err)
	}
	p.extractor = &fakeExtractor{t: t, dir: t.TempDir(), frames: 10, duration: 60}
	return p
}

func TestRunFullPipeline(t *testing.T) {
	cfg := testConfig(t)

	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{SpeakerID: "speaker_0", Start: 0.5, End: 3.0, Confidence: 1.0},
		{SpeakerID: "speaker_1", Start: 3.5, End: 6.0, Confidence: 0.9},
	}}
	transcriber := &fakeTranscriber{segments: []transcript.Segment{
		{Start: 0.5, End: 3.0, Text: "Hi, I'm Maria Lopez"},
		{Start: 3.5, End: 6.0, Text: "Thanks Maria, let's begin"},
	}}

	p := newTestProcessor(t, cfg, diarizer, transcriber)

	doc, err := p.Run(context.Background(), Request{VideoPath: "/videos/standup.mp4"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if doc.Summary.TotalSegments != 2 {
		t.Errorf("fused segments = %d, want 2", doc.Summary.TotalSegments)
	}
	if len(doc.Speakers) != 2 {
		t.Fatalf("speakers = %d, want 2", len(doc.Speakers))
	}

	found := false
	for _, s := range doc.Speakers {
		if s.Name == "Maria Lopez" && s.Confidence == 0.8 {
			found = true
		}
	}
	if !found {
		t.Errorf("introduction not extracted: %+v", doc.Speakers)
	}

	// the single visible face should dominate attribution once its mouth moves
	if len(doc.VideoStats) != 1 {
		t.Errorf("video stats = %+v, want one face track", doc.VideoStats)
	}

	// outputs on disk
	if _, err := os.Stat(filepath.Join(cfg.Processing.OutputDir, "standup.json")); err != nil {
		t.Errorf("result document not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Processing.OutputDir, "standup.srt")); err != nil {
		t.Errorf("labeled subtitles not written: %v", err)
	}

	if got := p.Progress(); got.Stage != StageDone || got.Percent != 100 {
		t.Errorf("final progress = %+v", got)
	}
}

func TestRunWithoutTranscript(t *testing.T) {
	cfg := testConfig(t)

	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{SpeakerID: "speaker_0", Start: 0.0, End: 5.0, Confidence: 1.0},
	}}

	p := newTestProcessor(t, cfg, diarizer, nil)

	doc, err := p.Run(context.Background(), Request{VideoPath: "/videos/silent.mp4"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(doc.Speakers) != 1 || doc.Speakers[0].Name != "Speaker 1" {
		t.Errorf("speakers = %+v, want one fallback", doc.Speakers)
	}
	if doc.Speakers[0].Confidence != 0.0 {
		t.Errorf("fallback confidence = %f", doc.Speakers[0].Confidence)
	}

	// no transcript means no subtitle output
	if _, err := os.Stat(filepath.Join(cfg.Processing.OutputDir, "silent.srt")); !os.IsNotExist(err) {
		t.Error("subtitles written despite missing transcript")
	}
}

func TestRunDiarizationFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)

	diarizer := &fakeDiarizer{err: errors.New("connection refused")}
	p := newTestProcessor(t, cfg, diarizer, nil)

	if _, err := p.Run(context.Background(), Request{VideoPath: "/videos/x.mp4"}); err == nil {
		t.Fatal("expected error when diarization fails")
	}
	if got := p.Progress(); got.Stage != StageFailed {
		t.Errorf("progress stage = %q, want failed", got.Stage)
	}
}

func TestRunCancellation(t *testing.T) {
	cfg := testConfig(t)

	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{SpeakerID: "speaker_0", Start: 0.0, End: 5.0, Confidence: 1.0},
	}}
	p := newTestProcessor(t, cfg, diarizer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, Request{VideoPath: "/videos/x.mp4"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunExternalTranscriptFile(t *testing.T) {
	cfg := testConfig(t)

	srtPath := filepath.Join(t.TempDir(), "meeting.srt")
	srt := "1\n00:00:00,500 --> 00:00:03,000\nHi, I'm John Smith\n\n"
	if err := os.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
		t.Fatal(err)
	}

	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{SpeakerID: "speaker_0", Start: 0.5, End: 3.0, Confidence: 1.0},
	}}
	p := newTestProcessor(t, cfg, diarizer, nil)

	doc, err := p.Run(context.Background(), Request{
		VideoPath:      "/videos/meeting.mp4",
		TranscriptPath: srtPath,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if doc.Speakers[0].Name != "John Smith" {
		t.Errorf("speaker = %+v", doc.Speakers[0])
	}
}

func TestProgressSnapshots(t *testing.T) {
	cfg := testConfig(t)

	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{SpeakerID: "speaker_0", Start: 0.0, End: 5.0, Confidence: 1.0},
	}}
	p := newTestProcessor(t, cfg, diarizer, nil)

	var stages []string
	p.OnProgress(func(pr Progress) {
		stages = append(stages, pr.Stage)
	})

	if _, err := p.Run(context.Background(), Request{VideoPath: "/videos/x.mp4"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// every stage must have been announced, in order
	want := []string{StageExtractAudio, StageDiarization, StageTranscription, StageFaceTracking, StageFusion, StageNaming, StageOutput, StageDone}
	idx := 0
	for _, stage := range stages {
		if idx < len(want) && stage == want[idx] {
			idx++
		}
	}
	if idx != len(want) {
		t.Errorf("stage sequence incomplete: %v", stages)
	}
}
