package track

import (
	"fmt"
	"math"

	"github.com/kozaktomas/speaker-labeler/internal/stats"
)

// Options tunes the tracker. Zero values are replaced by defaults.
type Options struct {
	// IoUThreshold is the strict lower bound for matching a detection to an
	// existing track. A detection matches only when IoU is strictly greater.
	IoUThreshold float64
	// ActiveWindow is how long (seconds) a track stays matchable after its
	// last observation.
	ActiveWindow float64
	// MinFaceSize is the minimum face box size as a fraction of frame height.
	// Smaller detections are discarded before matching.
	MinFaceSize float64
	// LipWindow is the number of recent lip distances kept per track for
	// movement normalization.
	LipWindow int
}

func (o *Options) fill() {
	if o.IoUThreshold == 0 {
		o.IoUThreshold = 0.3
	}
	if o.ActiveWindow == 0 {
		o.ActiveWindow = 1.0
	}
	if o.MinFaceSize == 0 {
		o.MinFaceSize = 0.05
	}
	if o.LipWindow == 0 {
		o.LipWindow = 5
	}
}

type trackState struct {
	id         string
	lastBox    BoundingBox
	firstSeen  float64
	lastSeen   float64
	frameCount int
	lipDists   []float64
}

// Tracker matches detections across frames into identity tracks. Track ids
// are face_N with N assigned in order of first appearance and never reused.
// Not safe for concurrent use; each video gets its own Tracker.
type Tracker struct {
	opts   Options
	nextID int
	tracks map[string]*trackState
	order  []string // track ids in creation order
}

// NewTracker creates an empty tracker.
func NewTracker(opts Options) *Tracker {
	opts.fill()
	return &Tracker{
		opts:   opts,
		tracks: make(map[string]*trackState),
	}
}

// Observe ingests one frame worth of detections and returns the tracked
// frame. frameHeight is the source frame height in pixels, used for the
// minimum face size filter. Detections below the size floor are dropped.
func (t *Tracker) Observe(frameNumber int, timestamp float64, frameHeight int, detections []Detection) FrameData {
	frame := FrameData{
		Timestamp:   timestamp,
		FrameNumber: frameNumber,
		Faces:       []Face{},
	}

	minPx := t.opts.MinFaceSize * float64(frameHeight)
	claimed := make(map[string]bool)

	for _, det := range detections {
		if det.BBox.W < minPx || det.BBox.H < minPx {
			continue
		}

		id := t.match(det.BBox, timestamp, claimed)
		if id == "" {
			id = fmt.Sprintf("face_%d", t.nextID)
			t.nextID++
			t.tracks[id] = &trackState{id: id, firstSeen: timestamp}
			t.order = append(t.order, id)
		}
		claimed[id] = true

		st := t.tracks[id]
		movement := t.lipMovement(st, det.Landmarks)
		st.lastBox = det.BBox
		st.lastSeen = timestamp
		st.frameCount++

		frame.Faces = append(frame.Faces, Face{
			ID:          id,
			BBox:        det.BBox,
			Confidence:  det.Confidence,
			LipMovement: movement,
		})
	}

	return frame
}

// match returns the id of the best active unclaimed track whose last box
// overlaps the detection strictly above the IoU threshold, or "" when none
// qualifies. Tracks are scanned in creation order, so on equal overlap the
// older (lower numbered) track wins.
func (t *Tracker) match(box BoundingBox, timestamp float64, claimed map[string]bool) string {
	best := ""
	bestIoU := t.opts.IoUThreshold

	for _, id := range t.order {
		if claimed[id] {
			continue
		}
		st := t.tracks[id]
		if timestamp-st.lastSeen > t.opts.ActiveWindow {
			continue
		}
		if iou := IoU(box, st.lastBox); iou > bestIoU {
			best = id
			bestIoU = iou
		}
	}

	return best
}

// lipMovement scores mouth activity relative to the track's own recent
// history: distance / avg(history) - 1, floored at zero. The first
// observation of a track always scores zero because there is no baseline yet.
// Detections without lip landmarks score zero and leave the history
// untouched, so a sparse frame cannot drag the baseline down.
func (t *Tracker) lipMovement(st *trackState, landmarks []Point) float64 {
	dist, ok := lipDistance(landmarks)
	if !ok {
		return 0
	}

	movement := 0.0
	if len(st.lipDists) > 0 {
		var sum float64
		for _, d := range st.lipDists {
			sum += d
		}
		if avg := sum / float64(len(st.lipDists)); avg > 0 {
			movement = math.Max(0, dist/avg-1)
		}
	}

	st.lipDists = append(st.lipDists, dist)
	if len(st.lipDists) > t.opts.LipWindow {
		st.lipDists = st.lipDists[len(st.lipDists)-t.opts.LipWindow:]
	}

	return movement
}

// TrackStats summarizes one identity track over the whole video.
type TrackStats struct {
	FirstSeen  float64 `json:"first_seen"`
	LastSeen   float64 `json:"last_seen"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
}

// Stats returns per-track summaries keyed by track id.
func (t *Tracker) Stats() map[string]TrackStats {
	out := make(map[string]TrackStats, len(t.tracks))
	for id, st := range t.tracks {
		out[id] = TrackStats{
			FirstSeen:  st.firstSeen,
			LastSeen:   st.lastSeen,
			Duration:   st.lastSeen - st.firstSeen,
			FrameCount: st.frameCount,
		}
	}
	return out
}

// Spans returns one span per track for the shared statistics aggregator,
// in track creation order.
func (t *Tracker) Spans() []stats.Span {
	spans := make([]stats.Span, 0, len(t.order))
	for _, id := range t.order {
		st := t.tracks[id]
		spans = append(spans, stats.Span{ID: id, Duration: st.lastSeen - st.firstSeen})
	}
	return spans
}
