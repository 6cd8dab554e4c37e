package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseSRT parses SubRip subtitles. Cue indices are ignored; a leading
// "Name:" on the first text line becomes the segment speaker.
func ParseSRT(data []byte) ([]Segment, error) {
	return parseCues(data, ",")
}

// ParseVTT parses WebVTT subtitles. The WEBVTT header and NOTE/STYLE blocks
// are skipped.
func ParseVTT(data []byte) ([]Segment, error) {
	return parseCues(data, ".")
}

func parseCues(data []byte, msSep string) ([]Segment, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	segments := []Segment{}
	var cur *Segment

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))

		if line == "" {
			if cur != nil {
				segments = append(segments, *cur)
				cur = nil
			}
			continue
		}

		if strings.Contains(line, "-->") {
			parts := strings.SplitN(line, "-->", 2)
			start, err := parseTimestamp(strings.TrimSpace(parts[0]), msSep)
			if err != nil {
				return nil, fmt.Errorf("bad cue start %q: %w", line, err)
			}
			// VTT cue settings may trail the end timestamp
			endField := strings.Fields(strings.TrimSpace(parts[1]))
			if len(endField) == 0 {
				return nil, fmt.Errorf("bad cue line %q", line)
			}
			end, err := parseTimestamp(endField[0], msSep)
			if err != nil {
				return nil, fmt.Errorf("bad cue end %q: %w", line, err)
			}
			cur = &Segment{Start: start, End: end}
			continue
		}

		if cur == nil {
			// cue index, WEBVTT header, NOTE or STYLE block
			continue
		}

		text := line
		if cur.Text == "" {
			speaker, rest := splitSpeaker(line)
			cur.Speaker = speaker
			text = rest
			cur.Text = text
		} else {
			cur.Text += " " + text
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}
	if cur != nil {
		segments = append(segments, *cur)
	}

	return segments, nil
}

// parseTimestamp parses HH:MM:SS,mmm (SRT) or [HH:]MM:SS.mmm (VTT) into
// seconds.
func parseTimestamp(ts, msSep string) (float64, error) {
	var ms float64
	if idx := strings.LastIndex(ts, msSep); idx >= 0 {
		frac, err := strconv.Atoi(ts[idx+1:])
		if err != nil {
			return 0, fmt.Errorf("invalid milliseconds in %q", ts)
		}
		ms = float64(frac) / 1000.0
		ts = ts[:idx]
	}

	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	var seconds float64
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		seconds = seconds*60 + float64(v)
	}

	return seconds + ms, nil
}

// jsonTranscript represents the JSON transcript document shape, matching
// what the ASR server emits.
type jsonTranscript struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

// ParseJSON parses a JSON transcript with a top-level segments array.
func ParseJSON(data []byte) ([]Segment, error) {
	var doc jsonTranscript
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Segments))
	for _, s := range doc.Segments {
		segments = append(segments, Segment{
			Start:   s.Start,
			End:     s.End,
			Text:    strings.TrimSpace(s.Text),
			Speaker: s.Speaker,
		})
	}

	return segments, nil
}
