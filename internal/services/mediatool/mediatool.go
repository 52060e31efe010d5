// Package mediatool is the ffmpeg subprocess boundary the Renderer drives
// for cut/re-encode/letterbox/overlay/silence-compaction (spec.md §4.G),
// grounded on the teacher's draptoRunner progress-streaming idiom and
// forPelevin-hlcut's ffmpeg.Adapter.RenderClip command shape.
package mediatool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RenderOptions configures one cut+re-encode invocation.
type RenderOptions struct {
	SourcePath string
	Start      float64
	End        float64
	OutputPath string

	TargetWidth  int
	TargetHeight int
	VideoBitrate string
	AudioBitrate string

	HookEnabled  bool
	HookText     string
	HookDuration float64
	HookPosition string // "top" | "center" | "bottom"

	DisableOverlay bool // forced off on the kill-and-retry pass
}

// Client runs ffmpeg invocations for the Renderer.
type Client struct {
	binary string
	run    func(ctx context.Context, name string, args []string, stderrSink func(line string)) error
}

// New constructs a Client. binary overrides the ffmpeg executable name.
func New(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Client{binary: binary, run: runFFmpeg}
}

// WithRunner installs a custom subprocess runner, used by tests.
func (c *Client) WithRunner(run func(ctx context.Context, name string, args []string, stderrSink func(line string)) error) {
	c.run = run
}

// Render cuts [Start,End) from SourcePath, scales/pads to the target
// dimensions, optionally burns the hook overlay, and writes OutputPath.
func (c *Client) Render(ctx context.Context, opts RenderOptions) error {
	args := buildRenderArgs(opts)
	if err := c.run(ctx, c.binary, args, nil); err != nil {
		return fmt.Errorf("mediatool: render: %w", err)
	}
	return nil
}

// SilenceInterval is one contiguous below-threshold span detected by
// ffmpeg's silencedetect filter.
type SilenceInterval struct {
	Start float64
	End   float64
}

var (
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// DetectSilence runs ffmpeg's silencedetect filter against path and parses
// the contiguous silent intervals below thresholdDB lasting at least
// minSilence seconds from its stderr log.
func (c *Client) DetectSilence(ctx context.Context, path string, thresholdDB, minSilence float64) ([]SilenceInterval, error) {
	args := []string{
		"-y", "-hide_banner", "-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", thresholdDB, minSilence),
		"-f", "null", "-",
	}

	var intervals []SilenceInterval
	var pendingStart float64
	haveStart := false

	err := c.run(ctx, c.binary, args, func(line string) {
		if m := silenceStartPattern.FindStringSubmatch(line); m != nil {
			pendingStart, _ = strconv.ParseFloat(m[1], 64)
			haveStart = true
			return
		}
		if m := silenceEndPattern.FindStringSubmatch(line); m != nil && haveStart {
			end, _ := strconv.ParseFloat(m[1], 64)
			intervals = append(intervals, SilenceInterval{Start: pendingStart, End: end})
			haveStart = false
		}
	})
	if err != nil {
		return nil, fmt.Errorf("mediatool: detect silence: %w", err)
	}
	return intervals, nil
}

// KeepSegment is one span of a clip's timeline to retain after silence
// compaction.
type KeepSegment struct {
	Start float64
	End   float64
}

// ComputeKeepSegments inverts silences into the spans to retain, padding
// silencePad seconds on each side of preserved speech and trimming silence
// at the head and tail entirely, per spec.md §4.G.
func ComputeKeepSegments(duration float64, silences []SilenceInterval, silencePad float64) []KeepSegment {
	if duration <= 0 {
		return nil
	}
	if len(silences) == 0 {
		return []KeepSegment{{Start: 0, End: duration}}
	}

	var segments []KeepSegment
	cursor := 0.0
	for i, s := range silences {
		start := s.Start
		end := s.End
		if start < 0 {
			start = 0
		}
		if end > duration {
			end = duration
		}
		if end <= start {
			continue
		}
		// Only pad into a silence on the side of real preceding speech; a
		// silence starting right where the previous cursor sits (the head,
		// or back-to-back silences) has no speech to pad for.
		if cursor < start {
			keepEnd := start + silencePad
			if keepEnd > end {
				keepEnd = end
			}
			segments = append(segments, KeepSegment{Start: cursor, End: keepEnd})
		}
		cursor = end - silencePad
		if cursor < start {
			cursor = start
		}
		// A silence reaching the clip's end is the tail: trim it completely
		// rather than keep the padding remnant with no following speech.
		if i == len(silences)-1 && end >= duration {
			return segments
		}
	}
	if cursor < duration {
		segments = append(segments, KeepSegment{Start: cursor, End: duration})
	}
	return segments
}

// Concat re-encodes sourcePath keeping only the given segments (each
// re-based to the full source timeline), concatenated in order, into
// outputPath.
func (c *Client) Concat(ctx context.Context, sourcePath string, segments []KeepSegment, outputPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("mediatool: concat: no segments to keep")
	}
	args := buildConcatArgs(sourcePath, segments, outputPath)
	if err := c.run(ctx, c.binary, args, nil); err != nil {
		return fmt.Errorf("mediatool: concat: %w", err)
	}
	return nil
}

func buildRenderArgs(opts RenderOptions) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(opts.Start),
		"-to", formatSeconds(opts.End),
		"-i", opts.SourcePath,
	}

	filter := letterboxFilter(opts.TargetWidth, opts.TargetHeight)
	if opts.HookEnabled && !opts.DisableOverlay && strings.TrimSpace(opts.HookText) != "" {
		filter += "," + hookOverlayFilter(opts)
	}
	args = append(args, "-vf", filter)

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
	)
	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	}
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}
	args = append(args, opts.OutputPath)
	return args
}

// letterboxFilter scales the source to fit within w×h preserving aspect
// ratio, then pads with black to reach the exact target dimensions
// (letterbox for wider sources, pillarbox for taller ones).
func letterboxFilter(w, h int) string {
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black",
		w, h, w, h,
	)
}

// hookOverlayFilter draws the hook-text box for HookDuration seconds with a
// 0.5s fade-in and fade-out.
func hookOverlayFilter(opts RenderOptions) string {
	duration := opts.HookDuration
	if duration <= 0 {
		duration = 4
	}
	yExpr := hookYExpr(opts.HookPosition)
	alphaExpr := fmt.Sprintf(
		"if(lt(t\\,0.5)\\,t/0.5\\,if(lt(t\\,%g-0.5)\\,1\\,(%g-t)/0.5))",
		duration, duration,
	)
	text := escapeDrawtext(opts.HookText)
	return fmt.Sprintf(
		"drawbox=y=%s:color=black@0.55:width=iw:height=ih*0.12:t=fill:enable='between(t,0,%g)',"+
			"drawtext=text='%s':x=(w-text_w)/2:y=%s:fontsize=48:fontcolor=white:alpha='%s':enable='between(t,0,%g)'",
		yExpr, duration, text, yExpr, alphaExpr, duration,
	)
}

func hookYExpr(position string) string {
	switch position {
	case "top":
		return "h*0.08"
	case "bottom":
		return "h*0.80"
	default:
		return "h*0.44"
	}
}

func escapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `'`, `\'`)
	text = strings.ReplaceAll(text, `:`, `\:`)
	return text
}

func buildConcatArgs(sourcePath string, segments []KeepSegment, outputPath string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	var filterParts []string
	var concatInputs strings.Builder

	for i, seg := range segments {
		args = append(args, "-ss", formatSeconds(seg.Start), "-to", formatSeconds(seg.End), "-i", sourcePath)
		filterParts = append(filterParts,
			fmt.Sprintf("[%d:v]setpts=PTS-STARTPTS[v%d];[%d:a]asetpts=PTS-STARTPTS[a%d]", i, i, i, i))
		concatInputs.WriteString(fmt.Sprintf("[v%d][a%d]", i, i))
	}
	filterParts = append(filterParts, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", concatInputs.String(), len(segments)))

	args = append(args,
		"-filter_complex", strings.Join(filterParts, ";"),
		"-map", "[outv]", "-map", "[outa]",
		"-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac",
		outputPath,
	)
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func runFFmpeg(ctx context.Context, name string, args []string, stderrSink func(line string)) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if startErr := cmd.Start(); startErr != nil {
		return startErr
	}

	var captured strings.Builder
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		drainLines(stderr, func(line string) {
			captured.WriteString(line)
			captured.WriteString("\n")
			if stderrSink != nil {
				stderrSink(line)
			}
		})
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(captured.String()))
	}
	return nil
}

func drainLines(r io.Reader, onLine func(line string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}
