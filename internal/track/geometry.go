package track

import "math"

// IoU computes intersection over union of two boxes. Returns 0 for disjoint
// or degenerate boxes.
func IoU(a, b BoundingBox) float64 {
	left := math.Max(a.X, b.X)
	top := math.Max(a.Y, b.Y)
	right := math.Min(a.X+a.W, b.X+b.W)
	bottom := math.Min(a.Y+a.H, b.Y+b.H)

	if right < left || bottom < top {
		return 0
	}

	inter := (right - left) * (bottom - top)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}

	return inter / union
}

// lipDistance measures the vertical mouth opening as the Euclidean distance
// between the averaged upper and lower lip landmarks. The second return is
// false when the landmark set is too small to contain the lip region.
func lipDistance(landmarks []Point) (float64, bool) {
	maxIdx := lowerLipIndices[len(lowerLipIndices)-1]
	if len(landmarks) <= maxIdx {
		return 0, false
	}

	upper := averagePoint(landmarks, upperLipIndices)
	lower := averagePoint(landmarks, lowerLipIndices)

	dx := upper.X - lower.X
	dy := upper.Y - lower.Y
	return math.Sqrt(dx*dx + dy*dy), true
}

func averagePoint(landmarks []Point, indices []int) Point {
	var p Point
	for _, i := range indices {
		p.X += landmarks[i].X
		p.Y += landmarks[i].Y
	}
	n := float64(len(indices))
	p.X /= n
	p.Y /= n
	return p
}

// MediaPipe face mesh indices for the inner lip contour.
var (
	upperLipIndices = []int{61, 62, 63}
	lowerLipIndices = []int{291, 292, 293}
)
