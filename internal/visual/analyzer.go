// Package visual implements the Visual Analyzer component (spec.md §4.C):
// scene-boundary detection, merge/split normalization, monolog synthesis
// for talking-head sources, and per-scene face/motion/brightness signals.
package visual

import (
	"context"
	"math"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
	"clipforge/internal/services/sceneprobe"
)

const (
	minSceneSeconds = 3.0
	maxSceneSeconds = 60.0
	monologMaxRate  = 0.5 // scenes/min
	minSceneCount   = 3
)

// sceneScoreScale maps ffmpeg's scene_score onto the scale of the
// configured scene threshold (default 12.0, an 8-bit luminance histogram
// distance). ffmpeg's own scene_score is on a 0..1 scale rather than the
// spec's 0..100 histogram-distance scale, so it is multiplied by
// sceneScoreScale before comparing against the configured threshold (see
// DESIGN.md for the mapping rationale).
const sceneScoreScale = 100.0

// FaceDetector is an optional seam for injecting real face detection.
// Object detection is out of scope for this build (see spec.md §1
// Non-goals), so the default Analyzer uses a NoFaceDetector that reports
// no faces, leaving face_ratio to the talking-head prior on synthetic
// scenes only.
type FaceDetector interface {
	// FaceCount returns the mean detected-face count for frames sampled
	// from [start, end] in path.
	FaceCount(ctx context.Context, path string, start, end float64) (float64, error)
}

// NoFaceDetector always reports zero faces.
type NoFaceDetector struct{}

// FaceCount implements FaceDetector.
func (NoFaceDetector) FaceCount(context.Context, string, float64, float64) (float64, error) {
	return 0, nil
}

// Analyzer runs the Visual Analyzer component against one source file.
type Analyzer struct {
	frames       *sceneprobe.Prober
	faceDetector FaceDetector
}

// New constructs an Analyzer. ffprobeBinary selects the frame-sampling
// tool; faceDetector may be nil, in which case NoFaceDetector is used.
func New(ffprobeBinary string, faceDetector FaceDetector) *Analyzer {
	if faceDetector == nil {
		faceDetector = NoFaceDetector{}
	}
	return &Analyzer{frames: sceneprobe.New(ffprobeBinary), faceDetector: faceDetector}
}

// Analyze produces the ordered Scene list for a source of the given
// duration. A source shorter than minSynthesizableDuration can never yield
// even a synthesized Scene; that is surfaced as
// apperrors.ErrInsufficientMaterial rather than a real analysis failure.
// apperrors.ErrVisualAnalysisFailed is reserved for sources long enough to
// synthesize that still produced nothing.
func (a *Analyzer) Analyze(ctx context.Context, path string, duration float64, cfg job.Config) ([]job.Scene, error) {
	fps := samplingRate(duration)
	threshold := cfg.SceneThreshold

	frames, err := a.frames.Sample(ctx, path, fps)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVisualAnalysisFailed, "visual", "sample", path, err)
	}

	boundaries := detectBoundaries(frames, threshold, duration)
	boundaries = mergeShort(boundaries, minSceneSeconds)
	boundaries = splitLong(boundaries, maxSceneSeconds)

	scenes := a.buildScenes(ctx, path, boundaries, frames)

	if monologEligible(scenes, duration) {
		scenes = synthesizeMonolog(duration)
	}

	if len(scenes) == 0 {
		if duration > 0 && duration < minSynthesizableDuration {
			return nil, apperrors.Wrap(apperrors.ErrInsufficientMaterial, "visual", "analyze",
				"source too short to produce even one synthesized scene", nil)
		}
		return nil, apperrors.Wrap(apperrors.ErrVisualAnalysisFailed, "visual", "analyze", "no scenes produced", nil)
	}
	return scenes, nil
}

func samplingRate(duration float64) float64 {
	switch {
	case duration < 10*60:
		return 1.0
	case duration < 30*60:
		return 0.5
	default:
		return 0.2
	}
}

type boundary struct {
	start, end float64
}

// detectBoundaries walks the sampled frames in time order, opening a new
// scene whenever the rescaled scene_score exceeds threshold.
func detectBoundaries(frames []sceneprobe.Frame, threshold, duration float64) []boundary {
	if len(frames) == 0 {
		if duration <= 0 {
			return nil
		}
		return []boundary{{start: 0, end: duration}}
	}

	var boundaries []boundary
	start := 0.0
	for i, f := range frames {
		if i == 0 {
			continue
		}
		if f.SceneScore*sceneScoreScale > threshold {
			boundaries = append(boundaries, boundary{start: start, end: f.TimeSeconds})
			start = f.TimeSeconds
		}
	}
	end := duration
	if end <= start {
		end = frames[len(frames)-1].TimeSeconds
	}
	boundaries = append(boundaries, boundary{start: start, end: end})
	return boundaries
}

func mergeShort(boundaries []boundary, minSeconds float64) []boundary {
	if len(boundaries) == 0 {
		return boundaries
	}
	out := make([]boundary, 0, len(boundaries))
	for _, b := range boundaries {
		if b.end-b.start < minSeconds && len(out) > 0 {
			out[len(out)-1].end = b.end
			continue
		}
		out = append(out, b)
	}
	// A too-short leading scene has no predecessor to merge into; fold it
	// forward into its successor instead.
	if len(out) > 1 && out[0].end-out[0].start < minSeconds {
		out[1].start = out[0].start
		out = out[1:]
	}
	return out
}

func splitLong(boundaries []boundary, maxSeconds float64) []boundary {
	out := make([]boundary, 0, len(boundaries))
	for _, b := range boundaries {
		span := b.end - b.start
		if span <= maxSeconds {
			out = append(out, b)
			continue
		}
		parts := int(math.Ceil(span / maxSeconds))
		step := span / float64(parts)
		for i := 0; i < parts; i++ {
			out = append(out, boundary{start: b.start + step*float64(i), end: b.start + step*float64(i+1)})
		}
	}
	return out
}

func (a *Analyzer) buildScenes(ctx context.Context, path string, boundaries []boundary, frames []sceneprobe.Frame) []job.Scene {
	scenes := make([]job.Scene, 0, len(boundaries))
	for _, b := range boundaries {
		motion, brightness := signalsFor(frames, b.start, b.end)
		faceRatio, _ := a.faceDetector.FaceCount(ctx, path, b.start, b.end)
		faceRatio = clamp01(faceRatio / 2.0)

		scenes = append(scenes, job.Scene{
			Start:      b.start,
			End:        b.end,
			FaceRatio:  faceRatio,
			Motion:     motion,
			Brightness: brightness,
			Synthetic:  false,
		})
	}
	return scenes
}

// signalsFor computes motion and brightness from frames sampled within
// [start, end]: motion is the mean absolute inter-frame luma difference
// mapped via min(x/50,1), brightness is 1-|mean_luma-127|/127.
func signalsFor(frames []sceneprobe.Frame, start, end float64) (motion, brightness float64) {
	var lumaSum, diffSum float64
	var lumaCount, diffCount int
	var prevLuma float64
	havePrev := false

	for _, f := range frames {
		if f.TimeSeconds < start || f.TimeSeconds > end {
			havePrev = false
			continue
		}
		lumaSum += f.MeanLuma
		lumaCount++
		if havePrev {
			diffSum += math.Abs(f.MeanLuma - prevLuma)
			diffCount++
		}
		prevLuma = f.MeanLuma
		havePrev = true
	}

	if lumaCount == 0 {
		return 0.3, 0.6 // talking-head prior when no samples fall in range
	}
	meanLuma := lumaSum / float64(lumaCount)
	brightness = 1 - math.Abs(meanLuma-127)/127
	brightness = clamp01(brightness)

	if diffCount == 0 {
		motion = 0
	} else {
		motion = math.Min((diffSum/float64(diffCount))/50.0, 1.0)
	}
	return motion, brightness
}

func monologEligible(scenes []job.Scene, duration float64) bool {
	if len(scenes) < minSceneCount {
		return true
	}
	minutes := duration / 60.0
	if minutes <= 0 {
		return true
	}
	return float64(len(scenes))/minutes <= monologMaxRate
}

var monologWindowRotation = []float64{15, 20, 25, 30}

// minSynthesizableDuration is the shortest source synthesis will tile: a
// single rotation window is 15s, so anything under the smallest window
// floor can never form even one real Scene.
const minSynthesizableDuration = 9.0

// synthesizeMonolog tiles the entire duration with alternating 15/20/25/30s
// windows, marking each Scene synthetic with the talking-head prior. Too
// short a source (below minSynthesizableDuration) yields no scenes at
// all, which Analyze surfaces as insufficient-material.
func synthesizeMonolog(duration float64) []job.Scene {
	if duration < minSynthesizableDuration {
		return nil
	}
	var scenes []job.Scene
	start := 0.0
	i := 0
	for start < duration {
		window := monologWindowRotation[i%len(monologWindowRotation)]
		end := start + window
		if end > duration {
			end = duration
		}
		scenes = append(scenes, job.Scene{
			Start: start, End: end,
			FaceRatio: 1.0, Motion: 0.3, Brightness: 0.6,
			Synthetic: true,
		})
		start = end
		i++
	}
	return scenes
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
