package track

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want float64
	}{
		{
			name: "identical",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{0, 0, 10, 10},
			want: 1.0,
		},
		{
			name: "majority overlap",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{3, 0, 10, 10},
			want: 70.0 / 130.0,
		},
		{
			name: "minority overlap",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{7, 0, 10, 10},
			want: 30.0 / 170.0,
		},
		{
			name: "disjoint",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{20, 20, 10, 10},
			want: 0,
		},
		{
			name: "touching edges",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{10, 0, 10, 10},
			want: 0,
		},
		{
			name: "degenerate",
			a:    BoundingBox{0, 0, 0, 0},
			b:    BoundingBox{0, 0, 0, 0},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IoU(tc.a, tc.b); !almostEqual(got, tc.want) {
				t.Errorf("IoU = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestTrackerAssignsStableIDs(t *testing.T) {
	tr := NewTracker(Options{})

	f1 := tr.Observe(0, 0.0, 1000, []Detection{
		{BBox: BoundingBox{100, 100, 200, 200}, Confidence: 0.9},
	})
	if len(f1.Faces) != 1 {
		t.Fatalf("frame 1: got %d faces, want 1", len(f1.Faces))
	}
	if f1.Faces[0].ID != "face_0" {
		t.Errorf("first track id = %q, want face_0", f1.Faces[0].ID)
	}

	// same face moved slightly, plus a new one far away
	f2 := tr.Observe(1, 0.33, 1000, []Detection{
		{BBox: BoundingBox{110, 105, 200, 200}, Confidence: 0.9},
		{BBox: BoundingBox{700, 100, 200, 200}, Confidence: 0.8},
	})
	if len(f2.Faces) != 2 {
		t.Fatalf("frame 2: got %d faces, want 2", len(f2.Faces))
	}
	if f2.Faces[0].ID != "face_0" {
		t.Errorf("moved face id = %q, want face_0", f2.Faces[0].ID)
	}
	if f2.Faces[1].ID != "face_1" {
		t.Errorf("new face id = %q, want face_1", f2.Faces[1].ID)
	}
}

func TestTrackerIoUThresholdIsStrict(t *testing.T) {
	// Box pair with IoU exactly 1/3: a 10x10 box shifted so the
	// intersection is 50 and the union 150.
	tr := NewTracker(Options{IoUThreshold: 1.0 / 3.0})

	tr.Observe(0, 0.0, 100, []Detection{{BBox: BoundingBox{0, 0, 10, 10}}})
	frame := tr.Observe(1, 0.33, 100, []Detection{{BBox: BoundingBox{5, 0, 10, 10}}})

	if frame.Faces[0].ID != "face_1" {
		t.Errorf("IoU at threshold must not match, got id %q", frame.Faces[0].ID)
	}
}

func TestTrackerExpiresInactiveTracks(t *testing.T) {
	tr := NewTracker(Options{ActiveWindow: 1.0})

	tr.Observe(0, 0.0, 1000, []Detection{{BBox: BoundingBox{100, 100, 200, 200}}})

	// same position but more than a second later: new identity
	frame := tr.Observe(10, 1.5, 1000, []Detection{{BBox: BoundingBox{100, 100, 200, 200}}})
	if frame.Faces[0].ID != "face_1" {
		t.Errorf("expired track must not match, got id %q", frame.Faces[0].ID)
	}

	// ids are never reused even after expiry
	frame = tr.Observe(20, 3.0, 1000, []Detection{{BBox: BoundingBox{500, 100, 200, 200}}})
	if frame.Faces[0].ID != "face_2" {
		t.Errorf("got id %q, want face_2", frame.Faces[0].ID)
	}
}

func TestTrackerMinFaceSizeFilter(t *testing.T) {
	tr := NewTracker(Options{MinFaceSize: 0.05})

	frame := tr.Observe(0, 0.0, 1000, []Detection{
		{BBox: BoundingBox{0, 0, 40, 40}},    // below 50px floor
		{BBox: BoundingBox{100, 100, 60, 60}}, // above
	})
	if len(frame.Faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(frame.Faces))
	}
	if frame.Faces[0].BBox.W != 60 {
		t.Errorf("wrong detection survived the size filter")
	}
}

func TestTrackerTieBreakPrefersOlderTrack(t *testing.T) {
	tr := NewTracker(Options{})

	// two tracks whose last boxes are identical
	tr.Observe(0, 0.0, 1000, []Detection{
		{BBox: BoundingBox{100, 100, 200, 200}},
		{BBox: BoundingBox{700, 100, 200, 200}},
	})
	tr.Observe(1, 0.33, 1000, []Detection{
		{BBox: BoundingBox{400, 100, 200, 200}},
		{BBox: BoundingBox{400, 100, 200, 200}},
	})

	// one detection overlapping both equally: the older track must win
	frame := tr.Observe(2, 0.66, 1000, []Detection{
		{BBox: BoundingBox{410, 100, 200, 200}},
	})
	if frame.Faces[0].ID != "face_0" {
		t.Errorf("equal overlap resolved to %q, want face_0", frame.Faces[0].ID)
	}
}

// lipLandmarks builds a mesh large enough to cover the lip indices, with the
// upper and lower lip rows separated by dist pixels.
func lipLandmarks(dist float64) []Point {
	pts := make([]Point, 300)
	for _, i := range upperLipIndices {
		pts[i] = Point{X: 100, Y: 200}
	}
	for _, i := range lowerLipIndices {
		pts[i] = Point{X: 100, Y: 200 + dist}
	}
	return pts
}

func TestLipMovement(t *testing.T) {
	tr := NewTracker(Options{LipWindow: 5})
	box := BoundingBox{100, 100, 200, 200}

	// no history yet
	frame := tr.Observe(0, 0.0, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(10)}})
	if frame.Faces[0].LipMovement != 0 {
		t.Errorf("first observation movement = %f, want 0", frame.Faces[0].LipMovement)
	}

	// same distance as baseline: no movement
	frame = tr.Observe(1, 0.33, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(10)}})
	if frame.Faces[0].LipMovement != 0 {
		t.Errorf("steady mouth movement = %f, want 0", frame.Faces[0].LipMovement)
	}

	// mouth opens to double the running average
	frame = tr.Observe(2, 0.66, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(20)}})
	if !almostEqual(frame.Faces[0].LipMovement, 1.0) {
		t.Errorf("opened mouth movement = %f, want 1.0", frame.Faces[0].LipMovement)
	}

	// mouth closing never goes negative
	frame = tr.Observe(3, 1.0, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(1)}})
	if frame.Faces[0].LipMovement != 0 {
		t.Errorf("closing mouth movement = %f, want 0", frame.Faces[0].LipMovement)
	}
}

func TestLipMovementWithoutLandmarks(t *testing.T) {
	tr := NewTracker(Options{})
	box := BoundingBox{100, 100, 200, 200}

	tr.Observe(0, 0.0, 1000, []Detection{{BBox: box}})
	frame := tr.Observe(1, 0.33, 1000, []Detection{{BBox: box, Landmarks: []Point{{1, 1}}}})
	if frame.Faces[0].LipMovement != 0 {
		t.Errorf("truncated landmarks movement = %f, want 0", frame.Faces[0].LipMovement)
	}
}

func TestLipBaselineSurvivesLandmarklessFrame(t *testing.T) {
	tr := NewTracker(Options{LipWindow: 5})
	box := BoundingBox{100, 100, 200, 200}

	tr.Observe(0, 0.0, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(10)}})
	tr.Observe(1, 0.33, 1000, []Detection{{BBox: box}})

	// a detection without landmarks must not enter the baseline, so a
	// steady mouth on the next frame still scores zero
	frame := tr.Observe(2, 0.66, 1000, []Detection{{BBox: box, Landmarks: lipLandmarks(10)}})
	if frame.Faces[0].LipMovement != 0 {
		t.Errorf("steady mouth after a landmark-less frame scored %f, want 0", frame.Faces[0].LipMovement)
	}
}

func TestTrackerStats(t *testing.T) {
	tr := NewTracker(Options{})
	box := BoundingBox{100, 100, 200, 200}

	tr.Observe(0, 1.0, 1000, []Detection{{BBox: box}})
	tr.Observe(1, 1.5, 1000, []Detection{{BBox: box}})
	tr.Observe(2, 2.0, 1000, []Detection{{BBox: box}})

	st := tr.Stats()["face_0"]
	if st.FrameCount != 3 {
		t.Errorf("frame count = %d, want 3", st.FrameCount)
	}
	if !almostEqual(st.FirstSeen, 1.0) || !almostEqual(st.LastSeen, 2.0) {
		t.Errorf("seen range = [%f, %f], want [1, 2]", st.FirstSeen, st.LastSeen)
	}
	if !almostEqual(st.Duration, 1.0) {
		t.Errorf("duration = %f, want 1.0", st.Duration)
	}

	spans := tr.Spans()
	if len(spans) != 1 || spans[0].ID != "face_0" || !almostEqual(spans[0].Duration, 1.0) {
		t.Errorf("spans = %+v", spans)
	}
}

func TestTrackerEmptyFrame(t *testing.T) {
	tr := NewTracker(Options{})
	frame := tr.Observe(0, 0.0, 1000, nil)
	if frame.Faces == nil || len(frame.Faces) != 0 {
		t.Errorf("empty frame must yield an empty, non-nil face list")
	}
}
