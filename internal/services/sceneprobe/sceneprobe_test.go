package sceneprobe

import (
	"context"
	"strings"
	"testing"
)

func TestSampleParsesFrameTags(t *testing.T) {
	p := New("ffprobe")
	var capturedArgs []string
	p.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		capturedArgs = args
		return []byte(`{
			"frames": [
				{"pkt_pts_time": "0.000000", "tags": {"lavfi.scene_score": "0", "lavfi.signalstats.YAVG": "100.5"}},
				{"pkt_pts_time": "1.000000", "tags": {"lavfi.scene_score": "0.72", "lavfi.signalstats.YAVG": "140.25"}}
			]
		}`), nil
	})

	frames, err := p.Sample(context.Background(), "/tmp/clip.mp4", 1.0)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].SceneScore != 0.72 || frames[1].MeanLuma != 140.25 {
		t.Fatalf("unexpected second frame: %+v", frames[1])
	}

	joined := strings.Join(capturedArgs, " ")
	if !strings.Contains(joined, "lavfi") || !strings.Contains(joined, "clip.mp4") {
		t.Fatalf("expected lavfi movie source referencing the path, got args: %v", capturedArgs)
	}
}

func TestSampleDefaultsZeroFPS(t *testing.T) {
	p := New("ffprobe")
	var capturedArgs []string
	p.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		capturedArgs = args
		return []byte(`{"frames":[]}`), nil
	})

	if _, err := p.Sample(context.Background(), "/tmp/clip.mp4", 0); err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	joined := strings.Join(capturedArgs, " ")
	if !strings.Contains(joined, "fps=1") {
		t.Fatalf("expected fps to default to 1, got args: %v", capturedArgs)
	}
}

func TestSamplePropagatesRunnerError(t *testing.T) {
	p := New("ffprobe")
	p.WithRunner(func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, errFake{}
	})

	if _, err := p.Sample(context.Background(), "/tmp/clip.mp4", 1.0); err == nil {
		t.Fatal("expected error to propagate from runner")
	}
}

func TestEscapeMovieEscapesSingleQuotes(t *testing.T) {
	if got := escapeMovie("/tmp/o'brien.mp4"); got != `/tmp/o\'brien.mp4` {
		t.Fatalf("unexpected escape result: %q", got)
	}
}

func TestFormatFPSDropsTrailingZeros(t *testing.T) {
	if got := formatFPS(0.5); got != "0.5" {
		t.Fatalf("expected 0.5, got %q", got)
	}
	if got := formatFPS(1); got != "1" {
		t.Fatalf("expected 1, got %q", got)
	}
}

func TestNewDefaultsEmptyBinary(t *testing.T) {
	p := New("")
	if p.binary != "ffprobe" {
		t.Fatalf("expected default binary ffprobe, got %q", p.binary)
	}
}

type errFake struct{}

func (errFake) Error() string { return "fake runner failure" }
