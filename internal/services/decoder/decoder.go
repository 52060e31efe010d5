// Package decoder wraps the subprocess speech decoder the Transcriber
// drives for its primary and retry passes (spec.md §4.B), following the
// uvx-subprocess invocation idiom the teacher used for WhisperX.
package decoder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// UVXCommand is the default subprocess launcher for the bundled decoder.
	UVXCommand = "uvx"

	defaultBeamWidth = 5
	defaultCompute   = "float32"
	defaultDevice    = "cpu"
)

// Options configures a single decode invocation.
type Options struct {
	Model            string
	BeamWidth        int
	Language         string
	VAD              bool
	ComputePrecision string
	Device           string
}

// Segment is a single decoded span with a [0,1] confidence score derived
// from the decoder's mean token log-probability.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// Client runs the decoder subprocess and parses its JSON output.
type Client struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New constructs a Client. binary overrides the subprocess launcher name.
func New(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = UVXCommand
	}
	return &Client{binary: binary}
}

// WithCommandRunner installs a custom subprocess runner, used by tests to
// avoid shelling out to a real decoder.
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.commandRunner = runner
}

// Decode transcribes the audio at audioPath and returns its segments.
func (c *Client) Decode(ctx context.Context, audioPath string, opts Options) ([]Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("decoder: audio path required")
	}

	workDir, err := os.MkdirTemp("", "clipforge-decode-*")
	if err != nil {
		return nil, fmt.Errorf("decoder: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputPath := filepath.Join(workDir, "segments.json")
	args := buildArgs(audioPath, outputPath, opts)

	if _, err := c.run(ctx, c.binary, args...); err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("decoder: read output: %w", err)
	}
	return parsePayload(data)
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func buildArgs(audioPath, outputPath string, opts Options) []string {
	beam := opts.BeamWidth
	if beam <= 0 {
		beam = defaultBeamWidth
	}
	device := opts.Device
	if device == "" {
		device = defaultDevice
	}
	compute := opts.ComputePrecision
	if compute == "" {
		compute = defaultCompute
	}

	args := []string{
		"decoder",
		audioPath,
		"--model", opts.Model,
		"--beam_size", fmt.Sprintf("%d", beam),
		"--output_json", outputPath,
		"--device", device,
		"--compute_type", compute,
	}
	if opts.VAD {
		args = append(args, "--vad_filter", "true")
	}
	if lang := strings.TrimSpace(opts.Language); lang != "" && lang != "auto" {
		args = append(args, "--language", lang)
	}
	return args
}

type rawSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avg_logprob"`
}

type rawPayload struct {
	Segments []rawSegment `json:"segments"`
}

func parsePayload(data []byte) ([]Segment, error) {
	var payload rawPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoder: parse output: %w", err)
	}
	segments := make([]Segment, 0, len(payload.Segments))
	for _, raw := range payload.Segments {
		segments = append(segments, Segment{
			Start:      raw.Start,
			End:        raw.End,
			Text:       raw.Text,
			Confidence: logProbToConfidence(raw.AvgLogProb),
		})
	}
	return segments, nil
}

// logProbToConfidence maps a mean token log-probability monotonically onto
// [0,1]: exp() turns the (typically negative) log-probability into a
// probability-like value that saturates at 1 for near-zero log-probs.
func logProbToConfidence(avgLogProb float64) float64 {
	conf := math.Exp(avgLogProb)
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
