package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultDiarizeURL = "http://localhost:8200"

// Client calls the diarization server, which wraps a pyannote pipeline
// behind a small HTTP API.
type Client struct {
	baseURL     string
	minDuration float64
	client      *http.Client
}

// NewClient creates a diarization client. minDuration is forwarded to
// Normalize when parsing responses.
func NewClient(baseURL string, minDuration float64) *Client {
	if baseURL == "" {
		baseURL = defaultDiarizeURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		minDuration: minDuration,
		client:      &http.Client{}, // diarization of long audio can take minutes; rely on ctx for deadlines
	}
}

// diarizeResponse represents the response from the diarization server
type diarizeResponse struct {
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Speaker    string  `json:"speaker"`
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
	NumSpeakers int `json:"num_speakers"`
}

// Diarize uploads a mono 16kHz WAV file and returns normalized speaker
// segments. numSpeakers is a hint for the server; zero lets it estimate.
func (c *Client) Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]Segment, error) {
	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if numSpeakers > 0 {
		if err := writer.WriteField("num_speakers", strconv.Itoa(numSpeakers)); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diarize", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var diarResp diarizeResponse
	if err := json.Unmarshal(body, &diarResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	segments := make([]Segment, 0, len(diarResp.Segments))
	for _, s := range diarResp.Segments {
		segments = append(segments, Segment{
			Start:      s.Start,
			End:        s.End,
			SpeakerID:  s.Speaker,
			Confidence: s.Confidence,
		})
	}

	return Normalize(segments, c.minDuration), nil
}

// IsAvailable checks whether the diarization server responds to a health probe.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
