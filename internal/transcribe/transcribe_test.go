package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
)

func baseConfig() job.Config {
	return job.Config{
		TranscriberModel: "medium",
		TranscriberBeam:  5,
		TranscriberLang:  "auto",
		RetryThreshold:   0.7,
		HybridRetry:      false,
	}
}

func fakeDecodeOutput(t *testing.T, outputPath string, segments []map[string]any) {
	t.Helper()
	payload := map[string]any{"segments": segments}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fake payload: %v", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		t.Fatalf("write fake payload: %v", err)
	}
}

func newTestTranscriber(t *testing.T, segmentsByCall func(call int) []map[string]any) *Transcriber {
	t.Helper()
	tr := New("decoder", "ffmpeg")
	tr.extractAudioFunc = func(ctx context.Context, ffmpegBinary, source string, start, duration float64, dest string) error {
		return os.WriteFile(dest, []byte("fake-wav"), 0o644)
	}

	call := 0
	tr.decoder.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		call++
		outputPath := ""
		for i, a := range args {
			if a == "--output_json" && i+1 < len(args) {
				outputPath = args[i+1]
			}
		}
		fakeDecodeOutput(t, outputPath, segmentsByCall(call))
		return []byte("ok"), nil
	})
	return tr
}

func TestTranscribeHappyPath(t *testing.T) {
	tr := newTestTranscriber(t, func(call int) []map[string]any {
		return []map[string]any{
			{"start": 0.0, "end": 5.0, "text": "hello there", "avg_logprob": -0.05},
			{"start": 5.0, "end": 9.0, "text": "world", "avg_logprob": -0.05},
		}
	})

	segments, err := tr.Transcribe(context.Background(), "/tmp/source.mp4", 9.0, baseConfig())
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "hello there" {
		t.Fatalf("unexpected text: %q", segments[0].Text)
	}
}

func TestTranscribeDropsEmptySegments(t *testing.T) {
	tr := newTestTranscriber(t, func(call int) []map[string]any {
		return []map[string]any{
			{"start": 0.0, "end": 2.0, "text": "   ", "avg_logprob": -0.05},
			{"start": 2.0, "end": 6.0, "text": "real text here", "avg_logprob": -0.05},
		}
	})

	segments, err := tr.Transcribe(context.Background(), "/tmp/source.mp4", 6.0, baseConfig())
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected whitespace-only segment dropped, got %d segments", len(segments))
	}
}

func TestTranscribeTruncatesOverlap(t *testing.T) {
	tr := newTestTranscriber(t, func(call int) []map[string]any {
		return []map[string]any{
			{"start": 0.0, "end": 5.2, "text": "first segment text", "avg_logprob": -0.05},
			{"start": 5.0, "end": 9.0, "text": "second segment text", "avg_logprob": -0.05},
		}
	})

	segments, err := tr.Transcribe(context.Background(), "/tmp/source.mp4", 9.0, baseConfig())
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].End != 5.0 {
		t.Fatalf("expected overlap truncated to 5.0, got %v", segments[0].End)
	}
}

func TestTranscribeFailsBelowCoverageFloor(t *testing.T) {
	tr := newTestTranscriber(t, func(call int) []map[string]any {
		return []map[string]any{
			{"start": 0.0, "end": 10.0, "text": "short snippet", "avg_logprob": -0.05},
		}
	})

	_, err := tr.Transcribe(context.Background(), "/tmp/source.mp4", 100.0, baseConfig())
	if !errors.Is(err, apperrors.ErrTranscriptionUnreliable) {
		t.Fatalf("expected ErrTranscriptionUnreliable, got %v", err)
	}
}

func TestTranscribeBackendUnavailableOnExtractFailure(t *testing.T) {
	tr := New("decoder", "ffmpeg")
	tr.extractAudioFunc = func(ctx context.Context, ffmpegBinary, source string, start, duration float64, dest string) error {
		return errors.New("ffmpeg not found")
	}

	_, err := tr.Transcribe(context.Background(), "/tmp/source.mp4", 30.0, baseConfig())
	if !errors.Is(err, apperrors.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestOverallDeadlineHasFloor(t *testing.T) {
	if got := overallDeadline(1); got.Minutes() != 10 {
		t.Fatalf("expected 10 minute floor, got %v", got)
	}
}

func TestMeetsCoverageIgnoresPlaceholders(t *testing.T) {
	segments := []job.SpeechSegment{
		{Start: 0, End: 60, Text: "", Placeholder: true},
		{Start: 60, End: 120, Text: "real", Confidence: 0.9},
	}
	if meetsCoverage(segments, 120) {
		t.Fatal("expected placeholder-dominated coverage to fail the floor")
	}
}
