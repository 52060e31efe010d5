package mediatool

import (
	"context"
	"strings"
	"testing"
)

func TestBuildRenderArgsIncludesCutAndLetterbox(t *testing.T) {
	opts := RenderOptions{
		SourcePath: "/tmp/source.mp4", Start: 10, End: 20, OutputPath: "/tmp/out.mp4",
		TargetWidth: 1080, TargetHeight: 1920,
	}
	args := buildRenderArgs(opts)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 10.000") || !strings.Contains(joined, "-to 20.000") {
		t.Fatalf("expected cut points in args: %v", args)
	}
	if !strings.Contains(joined, "scale=1080:1920") || !strings.Contains(joined, "pad=1080:1920") {
		t.Fatalf("expected letterbox filter in args: %v", args)
	}
}

func TestBuildRenderArgsIncludesHookOverlayWhenEnabled(t *testing.T) {
	opts := RenderOptions{
		SourcePath: "/tmp/source.mp4", Start: 0, End: 10, OutputPath: "/tmp/out.mp4",
		HookEnabled: true, HookText: "wait for it", HookDuration: 4,
	}
	args := buildRenderArgs(opts)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "drawtext") || !strings.Contains(joined, "wait for it") {
		t.Fatalf("expected hook overlay drawtext in args: %v", args)
	}
}

func TestBuildRenderArgsSkipsOverlayWhenDisabled(t *testing.T) {
	opts := RenderOptions{
		SourcePath: "/tmp/source.mp4", Start: 0, End: 10, OutputPath: "/tmp/out.mp4",
		HookEnabled: true, HookText: "wait for it", DisableOverlay: true,
	}
	args := buildRenderArgs(opts)
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "drawtext") {
		t.Fatalf("expected no overlay when DisableOverlay is set: %v", args)
	}
}

func TestDetectSilenceParsesStartEndPairs(t *testing.T) {
	c := New("ffmpeg")
	c.WithRunner(func(ctx context.Context, name string, args []string, sink func(line string)) error {
		sink("[silencedetect @ 0x0] silence_start: 2.345")
		sink("[silencedetect @ 0x0] silence_end: 5.678 | silence_duration: 3.333")
		sink("[silencedetect @ 0x0] silence_start: 9.0")
		sink("[silencedetect @ 0x0] silence_end: 9.5 | silence_duration: 0.5")
		return nil
	})

	intervals, err := c.DetectSilence(context.Background(), "/tmp/clip.mp4", -35, 0.4)
	if err != nil {
		t.Fatalf("DetectSilence returned error: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %+v", len(intervals), intervals)
	}
	if intervals[0].Start != 2.345 || intervals[0].End != 5.678 {
		t.Fatalf("unexpected first interval: %+v", intervals[0])
	}
}

func TestComputeKeepSegmentsPadsAroundSilence(t *testing.T) {
	silences := []SilenceInterval{{Start: 5, End: 8}}
	segments := ComputeKeepSegments(20, silences, 0.05)
	if len(segments) != 2 {
		t.Fatalf("expected 2 kept segments around one silence, got %d: %+v", len(segments), segments)
	}
	if segments[0].Start != 0 || segments[0].End != 5.05 {
		t.Fatalf("unexpected first segment: %+v", segments[0])
	}
	if segments[1].Start != 7.95 || segments[1].End != 20 {
		t.Fatalf("unexpected second segment: %+v", segments[1])
	}
}

func TestComputeKeepSegmentsTrimsHeadAndTailSilence(t *testing.T) {
	silences := []SilenceInterval{{Start: 0, End: 1}, {Start: 18, End: 20}}
	segments := ComputeKeepSegments(20, silences, 0.05)
	if len(segments) != 1 {
		t.Fatalf("expected a single middle segment once head/tail silence is trimmed, got %+v", segments)
	}
	if segments[0].Start != 0.95 {
		t.Fatalf("expected head silence fully trimmed (no padding before absolute start), got %+v", segments[0])
	}
	if segments[0].End != 18.05 {
		t.Fatalf("expected tail silence fully trimmed (no padding after it), got %+v", segments[0])
	}
}

func TestComputeKeepSegmentsNoSilenceKeepsWholeClip(t *testing.T) {
	segments := ComputeKeepSegments(15, nil, 0.05)
	if len(segments) != 1 || segments[0].Start != 0 || segments[0].End != 15 {
		t.Fatalf("expected whole clip retained, got %+v", segments)
	}
}

func TestConcatFailsOnEmptySegments(t *testing.T) {
	c := New("ffmpeg")
	if err := c.Concat(context.Background(), "/tmp/in.mp4", nil, "/tmp/out.mp4"); err == nil {
		t.Fatal("expected error for empty keep-segment list")
	}
}

func TestBuildConcatArgsOneInputPerSegment(t *testing.T) {
	segments := []KeepSegment{{Start: 0, End: 5}, {Start: 7, End: 10}}
	args := buildConcatArgs("/tmp/in.mp4", segments, "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	if strings.Count(joined, "-i /tmp/in.mp4") != 2 {
		t.Fatalf("expected one -i per segment, got args: %v", args)
	}
	if !strings.Contains(joined, "concat=n=2") {
		t.Fatalf("expected concat filter for 2 segments, got args: %v", args)
	}
}
