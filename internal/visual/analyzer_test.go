package visual

import (
	"context"
	"errors"
	"testing"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
	"clipforge/internal/services/sceneprobe"
)

func configWithThreshold(threshold float64) job.Config {
	return job.Config{SceneThreshold: threshold}
}

func TestDetectBoundariesSplitsOnHighScore(t *testing.T) {
	frames := []sceneprobe.Frame{
		{TimeSeconds: 0, SceneScore: 0, MeanLuma: 120},
		{TimeSeconds: 5, SceneScore: 0.1, MeanLuma: 120},
		{TimeSeconds: 10, SceneScore: 0.9, MeanLuma: 90},
		{TimeSeconds: 15, SceneScore: 0.1, MeanLuma: 90},
	}
	boundaries := detectBoundaries(frames, 12.0, 20)
	if len(boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d: %+v", len(boundaries), boundaries)
	}
	if boundaries[0].end != 10 || boundaries[1].start != 10 {
		t.Fatalf("unexpected split point: %+v", boundaries)
	}
}

func TestMergeShortFoldsIntoSuccessor(t *testing.T) {
	boundaries := []boundary{{0, 1}, {1, 10}, {10, 20}}
	merged := mergeShort(boundaries, 3.0)
	if len(merged) != 2 {
		t.Fatalf("expected 2 scenes after merge, got %d: %+v", len(merged), merged)
	}
	if merged[0].start != 0 || merged[0].end != 10 {
		t.Fatalf("expected leading short scene folded forward, got %+v", merged[0])
	}
}

func TestSplitLongDividesEvenly(t *testing.T) {
	boundaries := []boundary{{0, 130}}
	split := splitLong(boundaries, 60.0)
	if len(split) != 3 {
		t.Fatalf("expected 3 pieces, got %d: %+v", len(split), split)
	}
	for _, b := range split {
		if b.end-b.start > 60.0+1e-9 {
			t.Fatalf("piece exceeds max scene seconds: %+v", b)
		}
	}
}

func TestSynthesizeMonologTilesWholeDuration(t *testing.T) {
	scenes := synthesizeMonolog(90)
	if len(scenes) == 0 {
		t.Fatal("expected synthetic scenes")
	}
	if scenes[0].Start != 0 {
		t.Fatalf("expected first scene to start at 0, got %v", scenes[0].Start)
	}
	last := scenes[len(scenes)-1]
	if last.End != 90 {
		t.Fatalf("expected last scene to end at duration, got %v", last.End)
	}
	for _, s := range scenes {
		if !s.Synthetic || s.FaceRatio != 1.0 || s.Motion != 0.3 || s.Brightness != 0.6 {
			t.Fatalf("expected talking-head prior on synthetic scene: %+v", s)
		}
	}
}

func TestSynthesizeMonologTooShortYieldsNone(t *testing.T) {
	if scenes := synthesizeMonolog(5); scenes != nil {
		t.Fatalf("expected no scenes for too-short duration, got %+v", scenes)
	}
}

func TestMonologEligibleBelowSceneFloor(t *testing.T) {
	if !monologEligible(nil, 120) {
		t.Fatal("expected zero scenes to be monolog-eligible")
	}
	many := make([]job.Scene, 10)
	if monologEligible(many, 60) {
		t.Fatal("expected 10 scenes in one minute to not be monolog-eligible")
	}
}

func TestSignalsForComputesBrightnessAndMotion(t *testing.T) {
	frames := []sceneprobe.Frame{
		{TimeSeconds: 0, MeanLuma: 127},
		{TimeSeconds: 1, MeanLuma: 177},
	}
	motion, brightness := signalsFor(frames, 0, 1)
	if brightness <= 0 {
		t.Fatalf("expected positive brightness, got %v", brightness)
	}
	if motion != 1.0 {
		t.Fatalf("expected motion to clip to 1.0 for a 50-luma jump, got %v", motion)
	}
}

func TestAnalyzeFailsWhenNoFramesAndNoDuration(t *testing.T) {
	a := New("ffprobe", nil)
	a.frames.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"frames":[]}`), nil
	})

	_, err := a.Analyze(context.Background(), "/tmp/source.mp4", 0, configWithThreshold(12.0))
	if !errors.Is(err, apperrors.ErrVisualAnalysisFailed) {
		t.Fatalf("expected ErrVisualAnalysisFailed, got %v", err)
	}
}

func TestAnalyzeReportsInsufficientMaterialForFiveSecondSource(t *testing.T) {
	a := New("ffprobe", nil)
	a.frames.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"frames":[]}`), nil
	})

	_, err := a.Analyze(context.Background(), "/tmp/source.mp4", 5, configWithThreshold(12.0))
	if !errors.Is(err, apperrors.ErrInsufficientMaterial) {
		t.Fatalf("expected ErrInsufficientMaterial for a 5s source, got %v", err)
	}
}

func TestAnalyzeSynthesizesForShortMonologSource(t *testing.T) {
	a := New("ffprobe", nil)
	a.frames.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"frames":[{"pkt_pts_time":"0","tags":{"lavfi.scene_score":"0","lavfi.signalstats.YAVG":"120"}}]}`), nil
	})

	scenes, err := a.Analyze(context.Background(), "/tmp/source.mp4", 60, configWithThreshold(12.0))
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(scenes) == 0 {
		t.Fatal("expected synthesized scenes for a single-shot 60s source")
	}
	if !scenes[0].Synthetic {
		t.Fatal("expected monolog synthesis for a source with only one detected scene")
	}
}
