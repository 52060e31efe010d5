// Package sceneprobe samples per-frame luminance and ffmpeg's built-in
// scene-change score from a video, the raw signal the Visual Analyzer
// turns into Scene boundaries (spec.md §4.C). It shells out to ffprobe
// against an lavfi "movie" source the same way the teacher shells out to
// ffprobe for container metadata, just with a filtergraph attached.
package sceneprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Frame is one sampled frame: its timestamp, ffmpeg's scene-change score
// (0..1, higher means more different from the previous sampled frame), and
// mean luma (0..255).
type Frame struct {
	TimeSeconds float64
	SceneScore  float64
	MeanLuma    float64
}

// Prober samples frames via ffprobe's lavfi movie source.
type Prober struct {
	binary string
	run    func(ctx context.Context, binary string, args ...string) ([]byte, error)
}

// New constructs a Prober. binary is the ffprobe executable name.
func New(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, run: runCommand}
}

// WithRunner installs a custom subprocess runner for testing.
func (p *Prober) WithRunner(run func(ctx context.Context, binary string, args ...string) ([]byte, error)) {
	p.run = run
}

// Sample runs the configured fps against path and returns one Frame per
// sampled frame, in timestamp order.
func (p *Prober) Sample(ctx context.Context, path string, fps float64) ([]Frame, error) {
	if fps <= 0 {
		fps = 1
	}
	graph := fmt.Sprintf("movie='%s',fps=%s,signalstats,select='gte(scene\\,0)'", escapeMovie(path), formatFPS(fps))

	args := []string{
		"-v", "error",
		"-f", "lavfi",
		"-i", graph,
		"-show_entries", "frame=pkt_pts_time:frame_tags=lavfi.scene_score,lavfi.signalstats.YAVG",
		"-of", "json",
	}

	output, err := p.run(ctx, p.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("sceneprobe: sample frames: %w", err)
	}
	return parseFrames(output)
}

func escapeMovie(path string) string {
	return strings.ReplaceAll(path, "'", "\\'")
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

type framePayload struct {
	Frames []struct {
		PktPtsTime string            `json:"pkt_pts_time"`
		Tags       map[string]string `json:"tags"`
	} `json:"frames"`
}

func parseFrames(data []byte) ([]Frame, error) {
	var payload framePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("sceneprobe: parse frames: %w", err)
	}

	frames := make([]Frame, 0, len(payload.Frames))
	for _, raw := range payload.Frames {
		ts, _ := strconv.ParseFloat(raw.PktPtsTime, 64)
		scene, _ := strconv.ParseFloat(raw.Tags["lavfi.scene_score"], 64)
		luma, _ := strconv.ParseFloat(raw.Tags["lavfi.signalstats.YAVG"], 64)
		frames = append(frames, Frame{TimeSeconds: ts, SceneScore: scene, MeanLuma: luma})
	}
	return frames, nil
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return output, nil
}
