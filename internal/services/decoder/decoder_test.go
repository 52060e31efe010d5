package decoder

import (
	"context"
	"os"
	"testing"
)

func TestLogProbToConfidenceClampsRange(t *testing.T) {
	if got := logProbToConfidence(0); got != 1 {
		t.Fatalf("expected confidence 1 at logprob 0, got %v", got)
	}
	if got := logProbToConfidence(-10); got <= 0 || got >= 0.01 {
		t.Fatalf("expected near-zero confidence for very negative logprob, got %v", got)
	}
}

func TestBuildArgsIncludesModelAndLanguage(t *testing.T) {
	args := buildArgs("/tmp/in.wav", "/tmp/out.json", Options{Model: "medium", BeamWidth: 3, Language: "en"})
	if idx := indexOf(args, "--model"); idx == -1 || args[idx+1] != "medium" {
		t.Fatalf("expected --model medium in args, got %v", args)
	}
	if idx := indexOf(args, "--language"); idx == -1 || args[idx+1] != "en" {
		t.Fatalf("expected --language en in args, got %v", args)
	}
}

func TestBuildArgsSkipsAutoLanguage(t *testing.T) {
	args := buildArgs("/tmp/in.wav", "/tmp/out.json", Options{Model: "medium", Language: "auto"})
	if indexOf(args, "--language") != -1 {
		t.Fatalf("expected no --language flag for auto, got %v", args)
	}
}

func TestDecodeUsesInjectedRunner(t *testing.T) {
	client := New("decoder")
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		outputPath := args[indexOf(args, "--output_json")+1]
		payload := `{"segments":[{"start":0,"end":1.5,"text":"hi","avg_logprob":-0.1}]}`
		if err := os.WriteFile(outputPath, []byte(payload), 0o644); err != nil {
			return nil, err
		}
		return []byte("ok"), nil
	})

	segments, err := client.Decode(context.Background(), "/tmp/in.wav", Options{Model: "medium"})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hi" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestNewExternalClientRequiresAPIKey(t *testing.T) {
	if _, err := NewExternalClient(ExternalConfig{}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func indexOf(args []string, target string) int {
	for i, a := range args {
		if a == target {
			return i
		}
	}
	return -1
}
