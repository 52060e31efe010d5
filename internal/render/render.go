// Package render implements the Renderer component (spec.md §4.G): cut,
// re-encode, letterbox, optional hook overlay, optional silence
// compaction, and caption sidecar generation for each selected Candidate,
// with per-clip deadlines and a kill-and-retry-once policy.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/artifact"
	"clipforge/internal/job"
	"clipforge/internal/services/mediatool"
)

const (
	minDeadline       = 60 * time.Second
	deadlinePerSecond = 4.0
	tempSuffix        = ".precompaction.mp4"
)

// Renderer drives mediatool across a job's selected Candidates.
type Renderer struct {
	client *mediatool.Client
}

// New constructs a Renderer. ffmpegBinary overrides the subprocess name.
func New(ffmpegBinary string) *Renderer {
	return &Renderer{client: mediatool.New(ffmpegBinary)}
}

// WithClient overrides the mediatool client, used by tests.
func (r *Renderer) WithClient(client *mediatool.Client) {
	r.client = client
}

// Result is one Candidate's render outcome.
type Result struct {
	Clip   job.Clip
	Failed bool
}

// RenderAll renders every candidate up to cfg.MaxParallelRenders
// concurrently, drops any that fail, and fails the whole batch with
// apperrors.ErrRenderFailed only if every candidate failed. A candidate
// whose first attempt hits its deadline is retried once without the hook
// overlay or silence compaction; other failures are not retried.
func (r *Renderer) RenderAll(ctx context.Context, sourcePath string, candidates []job.Candidate, cfg job.Config, segments []job.SpeechSegment, outputDir string) ([]job.Clip, error) {
	parallel := cfg.MaxParallelRenders
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]Result, len(candidates))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for i, candidate := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, candidate job.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			clip, err := r.renderOne(ctx, sourcePath, candidate, i+1, cfg, segments, outputDir)
			if err != nil {
				results[i] = Result{Failed: true}
				return
			}
			results[i] = Result{Clip: clip}
		}(i, candidate)
	}
	wg.Wait()

	clips := make([]job.Clip, 0, len(results))
	allFailed := len(results) > 0
	for _, res := range results {
		if res.Failed {
			continue
		}
		allFailed = false
		clips = append(clips, res.Clip)
	}
	if allFailed {
		return nil, apperrors.Wrap(apperrors.ErrRenderFailed, "render", "render-all", "every candidate failed to render", nil)
	}
	return clips, nil
}

func (r *Renderer) renderOne(ctx context.Context, sourcePath string, candidate job.Candidate, index int, cfg job.Config, segments []job.SpeechSegment, outputDir string) (job.Clip, error) {
	deadline := renderDeadline(candidate.Duration())
	outputPath := filepath.Join(outputDir, fmt.Sprintf("clip_%03d.mp4", index))

	opts := baseRenderOptions(sourcePath, candidate, cfg, outputPath)

	err := r.attemptWithDeadline(ctx, deadline, opts)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return job.Clip{}, fmt.Errorf("render: candidate %d: %w", index, err)
		}
		opts.DisableOverlay = true
		cfg.SilenceRemoval = false
		err = r.attemptWithDeadline(ctx, deadline, opts)
		if err != nil {
			return job.Clip{}, fmt.Errorf("render: candidate %d: %w", index, err)
		}
	} else if cfg.SilenceRemoval {
		// A compaction failure does not fail the clip; the uncompacted cut
		// is still a valid render.
		_ = r.compact(ctx, outputPath, candidate.Duration(), cfg)
	}

	var captionPath string
	if cfg.AutoCaption {
		captionPath = artifact.CaptionPath(outputDir, index)
		captionText := BuildCaptions(candidate.Start, candidate.End, segments)
		if writeErr := os.WriteFile(captionPath, []byte(captionText), 0o644); writeErr != nil {
			captionPath = ""
		}
	}

	return job.Clip{
		Candidate:   candidate,
		Index:       index,
		OutputPath:  outputPath,
		RenderedDur: candidate.Duration(),
		CaptionPath: captionPath,
		Tier:        job.ViralTier(candidate.Viral),
	}, nil
}

func (r *Renderer) attemptWithDeadline(ctx context.Context, deadline time.Duration, opts mediatool.RenderOptions) error {
	attemptCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	err := r.client.Render(attemptCtx, opts)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("render: %w: %s", context.DeadlineExceeded, err)
	}
	return err
}

// compact runs the two-pass silence-detection + concat compaction in place
// over outputPath.
func (r *Renderer) compact(ctx context.Context, outputPath string, duration float64, cfg job.Config) error {
	silenceDB := cfg.SilenceDB
	if silenceDB == 0 {
		silenceDB = -35
	}
	minSilence := cfg.MinSilence
	if minSilence <= 0 {
		minSilence = 0.4
	}
	pad := cfg.SilencePad
	if pad <= 0 {
		pad = 0.05
	}

	intervals, err := r.client.DetectSilence(ctx, outputPath, silenceDB, minSilence)
	if err != nil {
		return err
	}
	segments := mediatool.ComputeKeepSegments(duration, intervals, pad)
	if len(segments) == 0 {
		return fmt.Errorf("render: compact: no speech survives silence removal")
	}
	// All-speech clips (one segment spanning the whole duration) need no
	// recompaction.
	if len(segments) == 1 && segments[0].Start == 0 && segments[0].End == duration {
		return nil
	}

	compactedPath := outputPath + tempSuffix
	if err := r.client.Concat(ctx, outputPath, segments, compactedPath); err != nil {
		return err
	}
	return os.Rename(compactedPath, outputPath)
}

func baseRenderOptions(sourcePath string, candidate job.Candidate, cfg job.Config, outputPath string) mediatool.RenderOptions {
	return mediatool.RenderOptions{
		SourcePath:   sourcePath,
		Start:        candidate.Start,
		End:          candidate.End,
		OutputPath:   outputPath,
		TargetWidth:  cfg.TargetWidth,
		TargetHeight: cfg.TargetHeight,
		VideoBitrate: cfg.VideoBitrate,
		AudioBitrate: cfg.AudioBitrate,
		HookEnabled:  cfg.UseHook && candidate.HookText != "",
		HookText:     candidate.HookText,
		HookDuration: cfg.HookDuration,
		HookPosition: cfg.HookPosition,
	}
}

// renderDeadline is max(60s, 4 x clip_duration), per spec.md §4.G.
func renderDeadline(duration float64) time.Duration {
	bound := time.Duration(duration * deadlinePerSecond * float64(time.Second))
	if bound < minDeadline {
		return minDeadline
	}
	return bound
}
