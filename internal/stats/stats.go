// Package stats computes per-entity speaking statistics. The same
// aggregation serves both sides of the pipeline: audio clusters keyed by
// speaker id and face tracks keyed by track id.
package stats

// Span is a single timed observation attributed to an entity.
type Span struct {
	ID       string
	Duration float64
}

// Entity summarizes all spans attributed to one id.
type Entity struct {
	TotalDuration      float64 `json:"total_duration"`
	SegmentCount       int     `json:"segment_count"`
	AvgSegmentDuration float64 `json:"avg_segment_duration"`
}

// Aggregate groups spans by id and computes totals and means.
// Spans with empty ids are skipped.
func Aggregate(spans []Span) map[string]Entity {
	out := make(map[string]Entity)

	for _, span := range spans {
		if span.ID == "" {
			continue
		}
		e := out[span.ID]
		e.TotalDuration += span.Duration
		e.SegmentCount++
		out[span.ID] = e
	}

	for id, e := range out {
		e.AvgSegmentDuration = e.TotalDuration / float64(e.SegmentCount)
		out[id] = e
	}

	return out
}
