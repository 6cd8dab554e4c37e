// Package track assigns stable identities to per-frame face detections and
// derives a lip-activity score used downstream as the "is this face talking"
// signal.
package track

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned box in pixel space, (x, y) top-left.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() float64 {
	return b.W * b.H
}

// Center returns the box centroid.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Detection is a raw detector output for one face in one frame, before any
// identity has been assigned.
type Detection struct {
	BBox       BoundingBox
	Confidence float64
	Landmarks  []Point // full mesh in pixel space; may be empty
}

// Face is a tracked face observation: a detection with a stable track id and
// a lip movement score relative to this face's own recent history.
type Face struct {
	ID          string      `json:"face_id"`
	BBox        BoundingBox `json:"bbox"`
	Confidence  float64     `json:"confidence"`
	LipMovement float64     `json:"lip_movement"`
}

// FrameData holds all tracked faces for one sampled frame. A frame with no
// detected faces is valid data, not an error.
type FrameData struct {
	Timestamp   float64 `json:"timestamp"`
	FrameNumber int     `json:"frame_number"`
	Faces       []Face  `json:"faces"`
}
