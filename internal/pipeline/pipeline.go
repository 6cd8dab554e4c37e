// Package pipeline sequences the processing stages for one recording:
// audio extraction, diarization, transcription, face detection and tracking,
// audio-visual fusion, naming, and output rendering. Stages run strictly in
// order; each consumes the complete result of the one before.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/ai"
	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/constants"
	"github.com/kozaktomas/speaker-labeler/internal/diarize"
	"github.com/kozaktomas/speaker-labeler/internal/fusion"
	"github.com/kozaktomas/speaker-labeler/internal/media"
	"github.com/kozaktomas/speaker-labeler/internal/naming"
	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/stats"
	"github.com/kozaktomas/speaker-labeler/internal/track"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

// Diarizer produces speaker-cluster segments from an audio file.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]diarize.Segment, error)
}

// Transcriber produces timed transcript segments from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// Detector finds faces in one frame image.
type Detector interface {
	DetectFaces(ctx context.Context, frameData []byte) ([]track.Detection, error)
}

// Extractor shells media operations out; swapped for a fake in tests.
type Extractor interface {
	Probe(ctx context.Context, videoPath string) (*media.Info, error)
	ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error)
	ExtractFrames(ctx context.Context, videoPath, tmpDir string, frameRate int) ([]media.Frame, error)
}

// ffmpegExtractor is the production Extractor.
type ffmpegExtractor struct{}

func (ffmpegExtractor) Probe(ctx context.Context, videoPath string) (*media.Info, error) {
	return media.Probe(ctx, videoPath)
}

func (ffmpegExtractor) ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error) {
	return media.ExtractAudio(ctx, videoPath, tmpDir)
}

func (ffmpegExtractor) ExtractFrames(ctx context.Context, videoPath, tmpDir string, frameRate int) ([]media.Frame, error) {
	return media.ExtractFrames(ctx, videoPath, tmpDir, frameRate)
}

// Request describes one processing run.
type Request struct {
	VideoPath string
	// TranscriptPath points at an existing SRT/VTT/JSON transcript. When
	// empty and a Transcriber is configured, a transcript is produced from
	// the audio; otherwise naming falls back entirely to synthetic names.
	TranscriptPath string
	// NumSpeakers hints the diarizer; zero lets it estimate.
	NumSpeakers int
	// OutputName overrides the basename of the written output files.
	OutputName string
}

// Processor runs the pipeline. One Processor may process recordings
// sequentially; progress state is safe to read concurrently while a run is
// active.
type Processor struct {
	cfg         *config.Config
	log         *slog.Logger
	diarizer    Diarizer
	transcriber Transcriber
	detector    Detector
	extractor   Extractor
	assist      ai.Provider // optional
	namer       *naming.Namer

	progress progressState
}

// New wires a Processor from its collaborators. transcriber and assist may
// be nil; diarizer, detector and log must not be.
func New(cfg *config.Config, log *slog.Logger, diarizer Diarizer, transcriber Transcriber, detector Detector, assist ai.Provider) (*Processor, error) {
	namer, err := naming.New(cfg.Naming)
	if err != nil {
		return nil, err
	}

	return &Processor{
		cfg:         cfg,
		log:         log,
		diarizer:    diarizer,
		transcriber: transcriber,
		detector:    detector,
		extractor:   ffmpegExtractor{},
		assist:      assist,
		namer:       namer,
	}, nil
}

// Run executes all stages for one recording and returns the result document.
// Output files are written under the configured output directory. The
// context is checked between stages; cancellation inside a stage only takes
// effect at its next external call.
func (p *Processor) Run(ctx context.Context, req Request) (*output.Document, error) {
	started := time.Now()
	p.resetProgress()

	info, err := p.extractor.Probe(ctx, req.VideoPath)
	if err != nil {
		return nil, p.fail(fmt.Errorf("probing video: %w", err))
	}
	p.log.Info("processing recording",
		"video", req.VideoPath,
		"duration", info.Duration,
		"resolution", fmt.Sprintf("%dx%d", info.Width, info.Height))

	if err := os.MkdirAll(p.cfg.Processing.TempDir, 0o755); err != nil {
		return nil, p.fail(fmt.Errorf("creating temp directory: %w", err))
	}
	if p.cfg.Processing.CleanupTemp {
		defer media.Cleanup(req.VideoPath, p.cfg.Processing.TempDir)
	}

	// stage 1: audio extraction
	p.setStage(StageExtractAudio, "extracting audio track")
	audioPath, err := p.extractor.ExtractAudio(ctx, req.VideoPath, p.cfg.Processing.TempDir)
	if err != nil {
		return nil, p.fail(fmt.Errorf("extracting audio: %w", err))
	}

	// stage 2: diarization
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageDiarization, "diarizing speakers")
	numSpeakers := req.NumSpeakers
	if numSpeakers == 0 {
		numSpeakers = p.cfg.Diarize.MaxSpeakers
	}
	segments, err := p.diarizer.Diarize(ctx, audioPath, numSpeakers)
	if err != nil {
		return nil, p.fail(fmt.Errorf("diarization: %w", err))
	}
	p.log.Info("diarization complete", "segments", len(segments))

	// stage 3: transcript
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageTranscription, "obtaining transcript")
	transcriptSegs, err := p.obtainTranscript(ctx, req, audioPath)
	if err != nil {
		return nil, p.fail(err)
	}
	p.log.Info("transcript ready", "segments", len(transcriptSegs))

	// stage 4: face detection and tracking
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageFaceTracking, "detecting and tracking faces")
	tracker := track.NewTracker(track.Options{
		IoUThreshold: p.cfg.Tracking.IoUThreshold,
		ActiveWindow: p.cfg.Tracking.ActiveWindow,
		MinFaceSize:  p.cfg.Tracking.MinFaceSize,
		LipWindow:    p.cfg.Tracking.LipWindowSize,
	})
	frames, err := p.trackFaces(ctx, req.VideoPath, info.Height, tracker)
	if err != nil {
		return nil, p.fail(err)
	}

	// stage 5: fusion
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageFusion, "fusing audio and video")
	engine := fusion.NewEngine(fusion.Options{
		Tolerance:          p.cfg.Fusion.AlignmentTolerance,
		AlignmentThreshold: p.cfg.Fusion.AVAlignmentThreshold,
		ScoreDivisor:       p.cfg.Fusion.ScoreDivisor,
	})
	fused := engine.Fuse(segments, frames)

	// stage 6: naming
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageNaming, "naming speakers")
	named := p.namer.ExtractNames(transcriptSegs, fused)
	named = p.assistNames(ctx, named, transcriptSegs, fused)

	// stage 7: output
	if err := p.checkpoint(ctx); err != nil {
		return nil, err
	}
	p.setStage(StageOutput, "writing results")
	doc := p.buildDocument(req, info, fused, named, tracker)
	if err := p.writeOutputs(req, doc, transcriptSegs, fused, named); err != nil {
		return nil, p.fail(err)
	}

	p.finishProgress()
	p.log.Info("processing finished",
		"video", req.VideoPath,
		"speakers", len(named),
		"took", time.Since(started).Round(time.Second))
	return doc, nil
}

// obtainTranscript resolves the transcript source in priority order: an
// explicit file, then the ASR server, then nothing. A missing transcript is
// a sparsity condition, not a failure.
func (p *Processor) obtainTranscript(ctx context.Context, req Request, audioPath string) ([]transcript.Segment, error) {
	if req.TranscriptPath != "" {
		data, err := os.ReadFile(req.TranscriptPath)
		if err != nil {
			return nil, fmt.Errorf("reading transcript: %w", err)
		}
		segs, err := transcript.ParseFile(req.TranscriptPath, data)
		if err != nil {
			return nil, fmt.Errorf("parsing transcript: %w", err)
		}
		return segs, nil
	}

	if p.transcriber != nil {
		segs, err := p.transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			// degraded run: naming falls back to synthetic names
			p.log.Warn("transcription failed, continuing without transcript", "error", err)
			return nil, nil
		}
		return segs, nil
	}

	return nil, nil
}

// trackFaces samples frames and feeds detections through the tracker. A
// frame the detector cannot process is skipped with a warning; a recording
// with zero detectable faces still yields a valid (audio-only) result.
func (p *Processor) trackFaces(ctx context.Context, videoPath string, frameHeight int, tracker *track.Tracker) ([]track.FrameData, error) {
	sampled, err := p.extractor.ExtractFrames(ctx, videoPath, p.cfg.Processing.TempDir, p.cfg.Processing.FrameRate)
	if err != nil {
		return nil, fmt.Errorf("extracting frames: %w", err)
	}

	frames := make([]track.FrameData, 0, len(sampled))
	for i, frame := range sampled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(frame.Path)
		if err != nil {
			p.log.Warn("skipping unreadable frame", "path", frame.Path, "error", err)
			continue
		}

		detections, err := p.detector.DetectFaces(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("face detection on frame %d: %w", frame.Number, err)
		}

		frames = append(frames, tracker.Observe(frame.Number, frame.Timestamp, frameHeight, detections))

		if i%50 == 0 && len(sampled) > 0 {
			p.setStageProgress(float64(i) / float64(len(sampled)))
		}
	}
	return frames, nil
}

// assistNames lets the optional LLM backend fill in fallback names. Pattern
// extracted and manually set names are never overridden.
func (p *Processor) assistNames(ctx context.Context, named []naming.NamedSpeaker, transcriptSegs []transcript.Segment, fused []fusion.SpeakerSegment) []naming.NamedSpeaker {
	if p.assist == nil || len(transcriptSegs) == 0 {
		return named
	}

	clusters := make([]ai.ClusterContext, 0, len(named))
	needsName := make(map[string]int)
	speaking := stats.Aggregate(fusion.ClusterSpans(fused))
	for i, n := range named {
		if n.Confidence > 0 {
			continue
		}
		needsName[n.SpeakerID] = i
		clusters = append(clusters, ai.ClusterContext{
			SpeakerID:    n.SpeakerID,
			CurrentName:  n.Name,
			SpeakingTime: speaking[n.SpeakerID].TotalDuration,
			SampleLines:  sampleLines(n.SpeakerID, transcriptSegs, fused),
		})
	}
	if len(clusters) == 0 {
		return named
	}

	suggestions, err := p.assist.SuggestNames(ctx, introExcerpt(transcriptSegs, p.cfg.Naming.MaxIntroTime), clusters)
	if err != nil {
		p.log.Warn("naming assist failed", "provider", p.assist.Name(), "error", err)
		return named
	}

	for _, s := range suggestions {
		idx, ok := needsName[s.SpeakerID]
		if !ok || s.Name == "" || s.Confidence < constants.MinSuggestionConfidence {
			continue
		}
		named[idx].Name = s.Name
		named[idx].Confidence = s.Confidence
		p.log.Info("speaker named by assist", "speaker", s.SpeakerID, "name", s.Name, "confidence", s.Confidence)
	}
	return named
}

// sampleLines collects up to three transcript lines spoken during a
// cluster's segments, as context for the naming assist.
func sampleLines(clusterID string, transcriptSegs []transcript.Segment, fused []fusion.SpeakerSegment) []string {
	var lines []string
	for _, ts := range transcriptSegs {
		for _, f := range fused {
			if f.SpeakerID != clusterID || f.End < ts.Start || f.Start > ts.End {
				continue
			}
			lines = append(lines, ts.Text)
			break
		}
		if len(lines) == 3 {
			break
		}
	}
	return lines
}

// introExcerpt joins transcript text inside the intro window.
func introExcerpt(segs []transcript.Segment, maxIntroTime float64) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Start > maxIntroTime {
			break
		}
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (p *Processor) buildDocument(req Request, info *media.Info, fused []fusion.SpeakerSegment, named []naming.NamedSpeaker, tracker *track.Tracker) *output.Document {
	return &output.Document{
		Video:        filepath.Base(req.VideoPath),
		Duration:     info.Duration,
		GeneratedAt:  time.Now().UTC(),
		Speakers:     named,
		SpeakerFaces: fusion.BuildSpeakerFaceMapping(fused),
		Segments:     fused,
		Summary:      fusion.Summarize(fused),
		AudioStats:   stats.Aggregate(fusion.ClusterSpans(fused)),
		VideoStats:   stats.Aggregate(tracker.Spans()),
	}
}

func (p *Processor) writeOutputs(req Request, doc *output.Document, transcriptSegs []transcript.Segment, fused []fusion.SpeakerSegment, named []naming.NamedSpeaker) error {
	name := req.OutputName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(req.VideoPath), filepath.Ext(req.VideoPath))
	}

	jsonPath := filepath.Join(p.cfg.Processing.OutputDir, name+".json")
	if err := output.WriteJSON(jsonPath, doc); err != nil {
		return err
	}

	if len(transcriptSegs) > 0 {
		srtPath := filepath.Join(p.cfg.Processing.OutputDir, name+".srt")
		if err := output.WriteSRT(srtPath, output.LabeledSRT(transcriptSegs, fused, named)); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint is the between-stage cancellation point.
func (p *Processor) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		p.failProgress("cancelled")
		return err
	}
	return nil
}

func (p *Processor) fail(err error) error {
	p.failProgress(err.Error())
	p.log.Error("processing failed", "error", err)
	return err
}
