// Package selector implements the Selector component (spec.md §4.F): filter
// Candidates by duration class, greedily pick the highest-viral
// non-overlapping set, relax constraints when too few survive, and fall
// back to fabricated tiling when even relaxation can't meet the floor.
package selector

import (
	"sort"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
	"clipforge/internal/score"
)

const (
	durationTolerance   = 0.10
	minOverlapSeconds   = 0.5
	defaultTileDuration = 20.0
)

type durationRange struct {
	min, max float64
}

var durationClasses = map[string]durationRange{
	"short":    {9, 15},
	"medium":   {18, 22},
	"long":     {28, 32},
	"extended": {40, 50},
}

// Select runs the full six-step algorithm and returns a stable, time-sorted
// list of selected Candidates. The result may fall short of MinClipsFloor
// when the source is too short to fill it even after relaxation and
// fabricated tiling; callers should treat that as a coverage warning, not a
// failure. Select only returns apperrors.ErrInsufficientMaterial when no
// usable candidate or tile exists at all.
func Select(candidates []job.Candidate, cfg job.Config, sourceDuration float64) ([]job.Candidate, error) {
	floor := Floor(cfg)
	maxClips := cfg.MaxClips
	if maxClips <= 0 {
		maxClips = 20
	}
	minViral := cfg.MinViral

	filtered := filterByDurationClass(candidates, cfg.TargetDuration)
	if len(filtered) < floor {
		filtered = candidates
	}

	ordered := sortedByViral(filtered)
	picked := greedyPick(ordered, maxClips, minViral)

	if len(picked) < floor {
		fallbackOrdered := sortedByViral(candidates)
		fallbackPicked := greedyPick(fallbackOrdered, maxClips, 0)
		for i := range fallbackPicked {
			fallbackPicked[i].Fallback = true
		}
		picked = fallbackPicked
	}

	if len(picked) < floor {
		picked = fillWithTiles(picked, sourceDuration, floor, maxClips)
	}

	if len(picked) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInsufficientMaterial, "selector", "select",
			"source produced no usable candidates or tiles", nil)
	}

	sort.Slice(picked, func(i, j int) bool { return picked[i].Start < picked[j].Start })
	return picked, nil
}

// Floor resolves cfg.MinClipsFloor, applying the same default Select uses
// internally, so callers can judge Select's result against the same bar.
func Floor(cfg job.Config) int {
	if cfg.MinClipsFloor <= 0 {
		return 5
	}
	return cfg.MinClipsFloor
}

func filterByDurationClass(candidates []job.Candidate, class string) []job.Candidate {
	if class == "" || class == "any" {
		return candidates
	}
	rng, ok := durationClasses[class]
	if !ok {
		return candidates
	}
	lo := rng.min * (1 - durationTolerance)
	hi := rng.max * (1 + durationTolerance)

	filtered := make([]job.Candidate, 0, len(candidates))
	for _, c := range candidates {
		d := c.Duration()
		if d >= lo && d <= hi {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func sortedByViral(candidates []job.Candidate) []job.Candidate {
	ordered := make([]job.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return score.Less(ordered[i], ordered[j]) })
	return ordered
}

// greedyPick walks ordered (already viral-sorted) picking entries that
// don't overlap an already-picked entry by >= minOverlapSeconds, stopping
// at maxClips or the first entry below minViral.
func greedyPick(ordered []job.Candidate, maxClips int, minViral float64) []job.Candidate {
	picked := make([]job.Candidate, 0, maxClips)
	for _, c := range ordered {
		if len(picked) >= maxClips {
			break
		}
		if c.Viral < minViral {
			break
		}
		if overlapsAny(c, picked) {
			continue
		}
		picked = append(picked, c)
	}
	return picked
}

func overlapsAny(c job.Candidate, picked []job.Candidate) bool {
	for _, p := range picked {
		if overlap(c.Start, c.End, p.Start, p.End) >= minOverlapSeconds {
			return true
		}
	}
	return false
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

// fillWithTiles fabricates non-overlapping windows of defaultTileDuration
// across the source timeline, skipping any offset that collides with an
// existing pick, until floor is reached or the timeline is exhausted.
func fillWithTiles(picked []job.Candidate, sourceDuration float64, floor, maxClips int) []job.Candidate {
	if sourceDuration <= 0 {
		return picked
	}
	start := 0.0
	for len(picked) < floor && len(picked) < maxClips && start+defaultTileDuration <= sourceDuration {
		tile := job.Candidate{
			Start:     start,
			End:       start + defaultTileDuration,
			Viral:     0,
			Category:  "balanced",
			Rationale: "coverage fallback",
			Fallback:  true,
		}
		if !overlapsAny(tile, picked) {
			picked = append(picked, tile)
		}
		start += defaultTileDuration
	}
	return picked
}
