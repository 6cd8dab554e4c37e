// Package media shells out to ffmpeg/ffprobe for audio extraction and frame
// sampling. ffmpeg must be on PATH; a missing binary is a fatal setup error,
// not something the pipeline can degrade around.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ExtractAudio extracts mono 16kHz WAV from a video, the input format the
// diarization and ASR servers expect. Returns the path to the audio file.
func ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error) {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(tmpDir, base+"_audio_16k.wav")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", videoPath,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg audio extraction: %w: %s", err, string(output))
	}
	return out, nil
}

// Frame is one sampled frame on disk, with the timestamp it was taken at.
type Frame struct {
	Path      string
	Number    int
	Timestamp float64
}

// ExtractFrames samples the video at frameRate frames per second into JPEG
// files under tmpDir, returned in chronological order. Timestamps are derived
// from the sampling rate, which is exact for constant-rate output.
func ExtractFrames(ctx context.Context, videoPath, tmpDir string, frameRate int) ([]Frame, error) {
	if frameRate <= 0 {
		frameRate = 3
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDir := filepath.Join(tmpDir, base+"_frames")
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	pattern := filepath.Join(frameDir, "frame_%06d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", frameRate),
		"-q:v", "3",
		pattern,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction: %w: %s", err, string(output))
	}

	paths, err := filepath.Glob(filepath.Join(frameDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	sort.Strings(paths)

	frames := make([]Frame, 0, len(paths))
	for i, path := range paths {
		frames = append(frames, Frame{
			Path:      path,
			Number:    i,
			Timestamp: float64(i) / float64(frameRate),
		})
	}
	return frames, nil
}

// probeOutput represents the ffprobe JSON document, reduced to what we read.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Info is the subset of video metadata the pipeline needs.
type Info struct {
	Width    int
	Height   int
	Duration float64
}

// Probe reads video dimensions and duration via ffprobe.
func Probe(ctx context.Context, videoPath string) (*Info, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	return parseProbe(output, videoPath)
}

func parseProbe(output []byte, videoPath string) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}
	for _, s := range probe.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	if info.Height == 0 {
		return nil, fmt.Errorf("no video stream found in %s", videoPath)
	}
	return info, nil
}

// Cleanup removes the scratch files a processing run produced for videoPath.
func Cleanup(videoPath, tmpDir string) {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	_ = os.Remove(filepath.Join(tmpDir, base+"_audio_16k.wav"))
	_ = os.RemoveAll(filepath.Join(tmpDir, base+"_frames"))
}
