// Package fusion matches diarized audio segments against tracked face
// observations to decide which visible face was speaking during each segment.
package fusion

import (
	"math"

	"github.com/kozaktomas/speaker-labeler/internal/diarize"
	"github.com/kozaktomas/speaker-labeler/internal/stats"
	"github.com/kozaktomas/speaker-labeler/internal/track"
)

// Scoring weights. Lip movement is weighted double because it is the
// strongest signal of who is actually speaking; box area rewards larger,
// closer faces.
const (
	lipMovementWeight = 2.0
	boxAreaWeight     = 0.5
	boxAreaDivisor    = 1_000_000.0
	confidenceWeight  = 0.5

	// idealScore is a fixed calibration constant: movement around 1, a
	// large central face and detector confidence around 1 sum to roughly 3.
	idealScore = 3.0
)

// ConfidenceScores breaks a fused attribution into its contributing signals.
type ConfidenceScores struct {
	Diarization   float64 `json:"diarization"`
	AVAlignment   float64 `json:"av_alignment"`
	FaceDetection float64 `json:"face_detection"`
}

// SpeakerSegment is the fused result for one diarization segment. FaceID is
// empty when no face could be attributed with enough confidence.
type SpeakerSegment struct {
	SpeakerID  string           `json:"speaker_id"`
	FaceID     string           `json:"face_id,omitempty"`
	Start      float64          `json:"start_time"`
	End        float64          `json:"end_time"`
	Confidence ConfidenceScores `json:"confidence_scores"`
}

// Duration returns the segment length in seconds.
func (s SpeakerSegment) Duration() float64 {
	return s.End - s.Start
}

// Options tunes the fusion engine. Zero values are replaced by defaults.
type Options struct {
	// Tolerance widens each segment's frame collection window on both sides
	// (seconds). Compensates for detector sampling gaps and diarization
	// boundary jitter.
	Tolerance float64
	// AlignmentThreshold is the minimum normalized score for a face to be
	// kept as the attributed speaker.
	AlignmentThreshold float64
	// ScoreDivisor maps raw mean scores onto [0,1]; see idealScore.
	ScoreDivisor float64
}

func (o *Options) fill() {
	if o.Tolerance == 0 {
		o.Tolerance = 0.5
	}
	if o.AlignmentThreshold == 0 {
		o.AlignmentThreshold = 0.5
	}
	if o.ScoreDivisor == 0 {
		o.ScoreDivisor = idealScore
	}
}

// Engine fuses diarization output with face tracking output. Stateless
// between calls; safe to reuse across recordings.
type Engine struct {
	opts Options
}

// NewEngine creates a fusion engine.
func NewEngine(opts Options) *Engine {
	opts.fill()
	return &Engine{opts: opts}
}

// Fuse produces exactly one SpeakerSegment per diarization segment, in input
// order. An empty frame list is valid: every segment then comes out
// audio-only with zero alignment confidence.
func (e *Engine) Fuse(segments []diarize.Segment, frames []track.FrameData) []SpeakerSegment {
	fused := make([]SpeakerSegment, 0, len(segments))
	for _, seg := range segments {
		fused = append(fused, e.fuseOne(seg, frames))
	}
	return fused
}

func (e *Engine) fuseOne(seg diarize.Segment, frames []track.FrameData) SpeakerSegment {
	out := SpeakerSegment{
		SpeakerID: seg.SpeakerID,
		Start:     seg.Start,
		End:       seg.End,
		Confidence: ConfidenceScores{
			Diarization: seg.Confidence,
		},
	}

	scores := make(map[string]float64)
	counts := make(map[string]int)
	order := []string{} // face ids in first-seen order, for deterministic ties

	lo := seg.Start - e.opts.Tolerance
	hi := seg.End + e.opts.Tolerance
	for _, frame := range frames {
		if frame.Timestamp < lo || frame.Timestamp > hi {
			continue
		}
		for _, face := range frame.Faces {
			if _, seen := scores[face.ID]; !seen {
				order = append(order, face.ID)
			}
			scores[face.ID] += face.LipMovement*lipMovementWeight +
				(face.BBox.Area()/boxAreaDivisor)*boxAreaWeight +
				face.Confidence*confidenceWeight
			counts[face.ID]++
		}
	}

	if len(scores) == 0 {
		// audio-only attribution, a first-class outcome
		return out
	}

	bestID := ""
	bestMean := math.Inf(-1)
	for _, id := range order {
		if mean := scores[id] / float64(counts[id]); mean > bestMean {
			bestID = id
			bestMean = mean
		}
	}

	confidence := math.Min(1.0, bestMean/e.opts.ScoreDivisor)
	out.Confidence.AVAlignment = confidence
	if confidence >= e.opts.AlignmentThreshold {
		out.FaceID = bestID
		out.Confidence.FaceDetection = 1.0
	}
	// below the threshold the candidate is dropped but its confidence stays
	// visible, so near-misses remain observable downstream

	return out
}

// BuildSpeakerFaceMapping answers "which single face is this speaker,
// overall": each segment's face is weighted by alignment confidence times
// segment duration and the heaviest face wins per cluster.
func BuildSpeakerFaceMapping(fused []SpeakerSegment) map[string]string {
	weights := make(map[string]map[string]float64)
	for _, seg := range fused {
		if seg.FaceID == "" {
			continue
		}
		if weights[seg.SpeakerID] == nil {
			weights[seg.SpeakerID] = make(map[string]float64)
		}
		weights[seg.SpeakerID][seg.FaceID] += seg.Confidence.AVAlignment * seg.Duration()
	}

	mapping := make(map[string]string, len(weights))
	for cluster, faces := range weights {
		best := ""
		bestWeight := 0.0
		for face, w := range faces {
			if w > bestWeight || (w == bestWeight && (best == "" || face < best)) {
				best = face
				bestWeight = w
			}
		}
		mapping[cluster] = best
	}

	return mapping
}

// Summary aggregates a fused segment list in a single pass.
type Summary struct {
	TotalSegments     int     `json:"total_segments"`
	SegmentsWithFace  int     `json:"segments_with_face"`
	UniqueClusters    int     `json:"unique_clusters"`
	UniqueFaces       int     `json:"unique_faces"`
	TotalDuration     float64 `json:"total_duration"`
	MeanDiarization   float64 `json:"mean_diarization_confidence"`
	MeanAVAlignment   float64 `json:"mean_av_alignment_confidence"`
	MeanFaceDetection float64 `json:"mean_face_detection_confidence"`
}

// Summarize computes summary statistics over fused segments.
func Summarize(fused []SpeakerSegment) Summary {
	var s Summary
	s.TotalSegments = len(fused)
	if len(fused) == 0 {
		return s
	}

	clusters := make(map[string]bool)
	faces := make(map[string]bool)
	for _, seg := range fused {
		clusters[seg.SpeakerID] = true
		if seg.FaceID != "" {
			faces[seg.FaceID] = true
			s.SegmentsWithFace++
		}
		s.TotalDuration += seg.Duration()
		s.MeanDiarization += seg.Confidence.Diarization
		s.MeanAVAlignment += seg.Confidence.AVAlignment
		s.MeanFaceDetection += seg.Confidence.FaceDetection
	}

	n := float64(len(fused))
	s.UniqueClusters = len(clusters)
	s.UniqueFaces = len(faces)
	s.MeanDiarization /= n
	s.MeanAVAlignment /= n
	s.MeanFaceDetection /= n

	return s
}

// ClusterSpans converts fused segments into spans for the shared statistics
// aggregator, keyed by audio cluster id.
func ClusterSpans(fused []SpeakerSegment) []stats.Span {
	spans := make([]stats.Span, 0, len(fused))
	for _, seg := range fused {
		spans = append(spans, stats.Span{ID: seg.SpeakerID, Duration: seg.Duration()})
	}
	return spans
}
