// Package diarize talks to the speaker diarization server and normalizes its
// output into the segment shape the rest of the pipeline consumes.
package diarize

import "sort"

// Segment is one contiguous stretch of speech attributed to an anonymous
// speaker cluster (speaker_0, speaker_1, ...).
type Segment struct {
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	SpeakerID  string  `json:"speaker_id"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Normalize sanitizes raw diarization output: segments shorter than
// minDuration or with a non-positive span are dropped, missing confidences
// default to 1.0, and the result is sorted chronologically. The input slice
// is not modified.
func Normalize(segments []Segment, minDuration float64) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.End <= seg.Start {
			continue
		}
		if seg.Duration() < minDuration {
			continue
		}
		if seg.Confidence <= 0 {
			seg.Confidence = 1.0
		}
		out = append(out, seg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	return out
}
