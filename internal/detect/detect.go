// Package detect talks to the face detection server. Frames are downscaled
// before upload and detection coordinates are mapped back to the original
// frame space, so the rest of the pipeline only ever sees source pixels.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/track"
)

const (
	defaultDetectURL = "http://localhost:8100"

	// maxUploadSize bounds the longer edge of uploaded frames. Detection
	// quality is stable down to roughly this resolution and uploads shrink
	// by an order of magnitude for 4K sources.
	maxUploadSize = 1280
)

// Client calls the face detection server (an InsightFace model behind a
// small HTTP API).
type Client struct {
	baseURL       string
	minConfidence float64
	maxFaces      int
	client        *http.Client
}

// NewClient creates a face detection client. Detections below minConfidence
// are dropped; at most maxFaces are returned per frame (0 = no cap).
func NewClient(baseURL string, minConfidence float64, maxFaces int) *Client {
	if baseURL == "" {
		baseURL = defaultDetectURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		minConfidence: minConfidence,
		maxFaces:      maxFaces,
		client:        &http.Client{},
	}
}

// detectResponse represents the response from the detection server
type detectResponse struct {
	FacesCount int `json:"faces_count"`
	Faces      []struct {
		BBox      []float64   `json:"bbox"` // [x1, y1, x2, y2]
		DetScore  float64     `json:"det_score"`
		Landmarks [][]float64 `json:"landmarks"` // [[x, y], ...] full mesh
	} `json:"faces"`
}

// DetectFaces uploads one frame and returns raw detections in original frame
// coordinates. Zero faces is a valid result, not an error.
func (c *Client) DetectFaces(ctx context.Context, frameData []byte) ([]track.Detection, error) {
	upload, scale, err := downscale(frameData, maxUploadSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(upload); err != nil {
		return nil, fmt.Errorf("failed to write frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
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

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]track.Detection, 0, len(detResp.Faces))
	for _, face := range detResp.Faces {
		if face.DetScore < c.minConfidence {
			continue
		}
		if len(face.BBox) != 4 {
			continue
		}
		if c.maxFaces > 0 && len(detections) >= c.maxFaces {
			break
		}

		det := track.Detection{
			BBox: track.BoundingBox{
				X: face.BBox[0] * scale,
				Y: face.BBox[1] * scale,
				W: (face.BBox[2] - face.BBox[0]) * scale,
				H: (face.BBox[3] - face.BBox[1]) * scale,
			},
			Confidence: face.DetScore,
		}
		for _, lm := range face.Landmarks {
			if len(lm) == 2 {
				det.Landmarks = append(det.Landmarks, track.Point{X: lm[0] * scale, Y: lm[1] * scale})
			}
		}
		detections = append(detections, det)
	}

	return detections, nil
}

// IsAvailable checks whether the detection server responds to a health probe.
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
