package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestStreamFrameRate(t *testing.T) {
	cases := []struct {
		name   string
		stream Stream
		want   float64
	}{
		{"avg preferred", Stream{AvgFrameRate: "30000/1001", RFrameRate: "30/1"}, 30000.0 / 1001.0},
		{"falls back to r_frame_rate when avg is zero", Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{"missing both", Stream{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.stream.FrameRate(); math.Abs(got-tc.want) > 1e-6 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}
