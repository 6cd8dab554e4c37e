package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/speaker-labeler/internal/ai"
	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/detect"
	"github.com/kozaktomas/speaker-labeler/internal/diarize"
	"github.com/kozaktomas/speaker-labeler/internal/logger"
	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/pipeline"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

var processCmd = &cobra.Command{
	Use:   "process [video-file]",
	Short: "Process one recording into a named speaker timeline",
	Long: `Process a meeting recording: extract the audio track, diarize the
speakers, track faces across sampled frames, fuse both timelines and name
the speakers from their introductions. Writes a JSON result document and,
when a transcript is available, a labeled SRT subtitle file.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("transcript", "", "Existing transcript file (SRT, VTT or JSON) instead of ASR")
	processCmd.Flags().Int("speakers", 0, "Expected number of speakers (0 = let the diarizer estimate)")
	processCmd.Flags().String("output", "", "Basename for output files (defaults to the video name)")
	processCmd.Flags().String("provider", "", "LLM naming assist: openai, gemini, ollama (empty = disabled)")
	processCmd.Flags().Bool("json", false, "Print the result document to stdout")
}

func runProcess(cmd *cobra.Command, args []string) error {
	videoPath := args[0]
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	transcriptPath := mustGetString(cmd, "transcript")
	numSpeakers := mustGetInt(cmd, "speakers")
	outputName := mustGetString(cmd, "output")
	providerName := mustGetString(cmd, "provider")
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	diarizer := diarize.NewClient(cfg.Diarize.URL, cfg.Diarize.MinSegmentDuration)
	if !diarizer.IsAvailable(ctx) {
		return fmt.Errorf("diarization server unreachable at %s", cfg.Diarize.URL)
	}

	detector := detect.NewClient(cfg.Detect.URL, cfg.Detect.MinConfidence, cfg.Detect.MaxFaces)
	if !detector.IsAvailable(ctx) {
		return fmt.Errorf("face detection server unreachable at %s", cfg.Detect.URL)
	}

	var transcriber pipeline.Transcriber
	if transcriptPath == "" {
		asr := transcript.NewASRClient(cfg.ASR.URL, cfg.ASR.Model)
		if asr.IsAvailable(ctx) {
			transcriber = asr
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ASR server unreachable at %s, speakers get fallback names\n", cfg.ASR.URL)
		}
	}

	assist, err := ai.NewProvider(ctx, providerName, cfg)
	if err != nil {
		return err
	}

	processor, err := pipeline.New(cfg, log, diarizer, transcriber, detector, assist)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		processor.OnProgress(func(p pipeline.Progress) {
			_ = bar.Set(int(p.Percent))
			bar.Describe(p.Message)
		})
	}

	doc, err := processor.Run(ctx, pipeline.Request{
		VideoPath:      videoPath,
		TranscriptPath: transcriptPath,
		NumSpeakers:    numSpeakers,
		OutputName:     outputName,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("processing cancelled")
		}
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	printResultSummary(doc, assist)
	return nil
}

// printResultSummary writes a human-readable run summary to stdout.
func printResultSummary(doc *output.Document, assist ai.Provider) {
	fmt.Printf("\nSpeakers (%d):\n", len(doc.Speakers))
	for _, s := range doc.Speakers {
		face := doc.SpeakerFaces[s.SpeakerID]
		if face == "" {
			face = "-"
		}
		speaking := doc.AudioStats[s.SpeakerID].TotalDuration
		fmt.Printf("  %-24s %-10s face: %-8s %.0fs speaking (confidence %.2f)\n",
			s.Name, s.SpeakerID, face, speaking, s.Confidence)
	}

	coverage := 0.0
	if doc.Summary.TotalSegments > 0 {
		coverage = float64(doc.Summary.SegmentsWithFace) / float64(doc.Summary.TotalSegments) * 100
	}
	fmt.Printf("\nSegments: %d total, %d with a face attributed (%.0f%%)\n",
		doc.Summary.TotalSegments, doc.Summary.SegmentsWithFace, coverage)

	if assist != nil {
		usage := assist.GetUsage()
		fmt.Printf("Assist usage: %d input + %d output tokens ($%.4f)\n",
			usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	}
}
