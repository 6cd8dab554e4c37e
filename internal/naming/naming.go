// Package naming turns anonymous speaker clusters into human names by
// scanning the transcript's opening minutes for self-introductions. Clusters
// that never introduce themselves get a stable synthetic name.
package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/fusion"
	"github.com/kozaktomas/speaker-labeler/internal/transcript"
)

// patternConfidence is the base confidence of a regex-extracted name. A
// pattern match alone carries no further signal.
const patternConfidence = 0.8

// NamedSpeaker is the final label for one audio cluster. Confidence is 0.0
// for synthetic fallback names.
type NamedSpeaker struct {
	SpeakerID  string  `json:"speaker_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	FaceID     string  `json:"face_id,omitempty"`
}

// candidate is an extracted name still tied to its source transcript segment.
type candidate struct {
	name  string
	start float64
	end   float64
}

// Namer extracts speaker names from transcripts. Build one with New; the
// zero value has no patterns and falls back for every cluster.
type Namer struct {
	maxIntroTime     float64
	minIntroDuration float64
	introPhrases     []string // lowercased
	patterns         []*regexp.Regexp
	stoplist         map[string]bool
}

// New compiles a Namer from configuration. Invalid regex patterns are a
// configuration error, reported immediately rather than at extraction time.
func New(cfg config.NamingConfig) (*Namer, error) {
	n := &Namer{
		maxIntroTime:     cfg.MaxIntroTime,
		minIntroDuration: cfg.MinIntroDuration,
		stoplist:         make(map[string]bool, len(cfg.Rules.Stoplist)),
	}
	if n.maxIntroTime == 0 {
		n.maxIntroTime = 300
	}
	if n.minIntroDuration == 0 {
		n.minIntroDuration = 2.0
	}

	for _, phrase := range cfg.Rules.IntroPhrases {
		n.introPhrases = append(n.introPhrases, strings.ToLower(phrase))
	}
	for _, pattern := range cfg.Rules.NamePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", pattern, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("name pattern %q has no capture group for the name", pattern)
		}
		n.patterns = append(n.patterns, re)
	}
	for _, word := range cfg.Rules.Stoplist {
		n.stoplist[word] = true
	}

	return n, nil
}

// ExtractNames assigns a name to every cluster present in the fused
// segments. Missing introductions, an empty transcript or zero regex matches
// all degrade to fallback names, never to an error.
func (n *Namer) ExtractNames(segments []transcript.Segment, fused []fusion.SpeakerSegment) []NamedSpeaker {
	named := make(map[string]NamedSpeaker)

	for _, cand := range n.candidates(segments) {
		cluster := bestOverlappingCluster(cand, fused)
		if cluster == "" {
			continue
		}
		if _, taken := named[cluster]; taken {
			// first claimed wins, later candidates are dropped
			continue
		}
		named[cluster] = NamedSpeaker{
			SpeakerID:  cluster,
			Name:       cand.name,
			Confidence: patternConfidence,
		}
	}

	return n.fallback(named, fused)
}

// candidates scans the intro window and extracts validated name candidates
// in transcript order.
func (n *Namer) candidates(segments []transcript.Segment) []candidate {
	var out []candidate
	for _, seg := range segments {
		if seg.Start > n.maxIntroTime {
			break
		}
		if seg.End-seg.Start < n.minIntroDuration {
			continue
		}
		if !n.containsIntroPhrase(seg.Text) {
			continue
		}
		// ASR output sometimes carries decomposed accents; compose them so
		// accented names match the patterns and compare equal.
		text := norm.NFC.String(seg.Text)
		for _, re := range n.patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				name := strings.TrimSpace(m[1])
				if n.validName(name) {
					out = append(out, candidate{name: name, start: seg.Start, end: seg.End})
				}
			}
		}
	}
	return out
}

func (n *Namer) containsIntroPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range n.introPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (n *Namer) validName(name string) bool {
	if len(name) < 2 || len(name) > 50 {
		return false
	}
	runes := []rune(name)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, word := range strings.Fields(name) {
		if n.stoplist[word] {
			return false
		}
	}
	return true
}

// bestOverlappingCluster picks the fused segment with the greatest temporal
// overlap against the introduction and returns its cluster id. Returns ""
// when nothing overlaps.
func bestOverlappingCluster(cand candidate, fused []fusion.SpeakerSegment) string {
	best := ""
	bestOverlap := 0.0
	for _, seg := range fused {
		if seg.End < cand.start || seg.Start > cand.end {
			continue
		}
		overlap := min(seg.End, cand.end) - max(seg.Start, cand.start)
		if overlap > bestOverlap || best == "" {
			best = seg.SpeakerID
			bestOverlap = overlap
		}
	}
	return best
}

// fallback fills every unnamed cluster with "Speaker N". N follows sorted
// cluster id order, offset past the clusters that already have real names,
// so numbering is stable across runs.
func (n *Namer) fallback(named map[string]NamedSpeaker, fused []fusion.SpeakerSegment) []NamedSpeaker {
	clusters := make(map[string]bool)
	repFace := make(map[string]string)
	for _, seg := range fused {
		clusters[seg.SpeakerID] = true
		if seg.FaceID != "" && repFace[seg.SpeakerID] == "" {
			repFace[seg.SpeakerID] = seg.FaceID
		}
	}

	var missing []string
	for cluster := range clusters {
		if sp, ok := named[cluster]; ok {
			// extracted names get a representative face too
			if sp.FaceID == "" {
				sp.FaceID = repFace[cluster]
				named[cluster] = sp
			}
			continue
		}
		missing = append(missing, cluster)
	}
	sort.Strings(missing)

	alreadyNamed := len(named)
	for i, cluster := range missing {
		named[cluster] = NamedSpeaker{
			SpeakerID:  cluster,
			Name:       fmt.Sprintf("Speaker %d", i+1+alreadyNamed),
			Confidence: 0.0,
			FaceID:     repFace[cluster],
		}
	}

	out := make([]NamedSpeaker, 0, len(named))
	keys := make([]string, 0, len(named))
	for cluster := range named {
		keys = append(keys, cluster)
	}
	sort.Strings(keys)
	for _, cluster := range keys {
		out = append(out, named[cluster])
	}
	return out
}
