// Package fuse implements the Segment Fuser component (spec.md §4.D): for
// each Scene, collect the SpeechSegments that overlap it by at least
// minOverlapSeconds, concatenate their text in time order, and attach the
// Scene's visual signals verbatim to produce one Candidate per Scene.
package fuse

import (
	"sort"
	"strings"

	"clipforge/internal/job"
)

const minOverlapSeconds = 0.5

// Fuse merges scenes with overlapping speech into ordered Candidates. Output
// Candidates inherit each Scene's own time range, not the speech union — a
// Scene with no intersecting SpeechSegment still produces a Candidate with
// empty text and zero audio-axis scores.
func Fuse(scenes []job.Scene, segments []job.SpeechSegment) []job.Candidate {
	ordered := make([]job.SpeechSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	candidates := make([]job.Candidate, 0, len(scenes))
	for _, scene := range scenes {
		text := concatenateOverlapping(scene, ordered)
		candidates = append(candidates, job.Candidate{
			Start: scene.Start,
			End:   scene.End,
			Text:  text,
			Scene: scene,
		})
	}
	return candidates
}

func concatenateOverlapping(scene job.Scene, segments []job.SpeechSegment) string {
	var parts []string
	for _, seg := range segments {
		if overlap(scene.Start, scene.End, seg.Start, seg.End) < minOverlapSeconds {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}
