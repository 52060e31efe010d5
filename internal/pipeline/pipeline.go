// Package pipeline implements the Job Coordinator (spec.md §4.H): the
// single process-wide component that admits work, bounds concurrency,
// drives each Job through the Media Probe → Transcriber/Visual Analyzer →
// Fuser → Scorer → Selector → Renderer chain, and publishes progress.
// Grounded on the teacher's internal/workflow.Manager (heartbeat loop,
// stage-handler sequencing) and internal/job.Table's per-job-lock split.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/artifact"
	"clipforge/internal/fuse"
	"clipforge/internal/job"
	"clipforge/internal/logging"
	"clipforge/internal/mediaprobe"
	"clipforge/internal/selector"
)

// Prober is the Media Probe boundary the Coordinator drives; satisfied by
// *mediaprobe.Prober.
type Prober interface {
	Inspect(ctx context.Context, path string) (mediaprobe.Info, error)
}

// Transcriber is the Transcriber boundary; satisfied by
// *transcribe.Transcriber.
type Transcriber interface {
	Transcribe(ctx context.Context, sourcePath string, duration float64, cfg job.Config) ([]job.SpeechSegment, error)
}

// Analyzer is the Visual Analyzer boundary; satisfied by *visual.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, path string, duration float64, cfg job.Config) ([]job.Scene, error)
}

// Scorer is the Scorer boundary; satisfied by *score.Scorer.
type Scorer interface {
	Score(candidate job.Candidate, cfg job.Config, segments []job.SpeechSegment) job.Candidate
}

// Renderer is the Renderer boundary; satisfied by *render.Renderer.
type Renderer interface {
	RenderAll(ctx context.Context, sourcePath string, candidates []job.Candidate, cfg job.Config, segments []job.SpeechSegment, outputDir string) ([]job.Clip, error)
}

// ErrBusy is returned by Enqueue when PROCESSING_CONCURRENCY running jobs
// and a full admission queue leave no room for a new job.
var ErrBusy = errors.New("coordinator busy")

// Canonical progress points, spec.md §4.H.
const (
	progressProbeDone       = 5
	progressTranscribeStart = 10
	progressTranscribeDone  = 40
	progressVisualDone      = 55
	progressFuseScoreDone   = 70
	progressSelectDone      = 75
	progressRenderStart     = 80
	progressRenderDone      = 95
	progressFinalize        = 100
)

// Coordinator is the single process-wide Job Coordinator.
type Coordinator struct {
	table    *job.Table
	store    *artifact.Store
	prober   Prober
	transcr  Transcriber
	analyzer Analyzer
	scorer   Scorer
	renderer Renderer

	concurrency int
	cooldown    time.Duration
	logger      *slog.Logger

	queue chan string

	mu          sync.Mutex
	sourcePaths map[string]string

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Coordinator. concurrency bounds both the number of
// simultaneously running Jobs and the admission queue's capacity, per
// spec.md §4.H.
func New(
	table *job.Table,
	store *artifact.Store,
	prober Prober,
	transcr Transcriber,
	analyzer Analyzer,
	scorer Scorer,
	renderer Renderer,
	concurrency int,
	cooldown time.Duration,
	logger *slog.Logger,
) *Coordinator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		table:       table,
		store:       store,
		prober:      prober,
		transcr:     transcr,
		analyzer:    analyzer,
		scorer:      scorer,
		renderer:    renderer,
		concurrency: concurrency,
		cooldown:    cooldown,
		logger:      logger,
		queue:       make(chan string, concurrency),
		sourcePaths: make(map[string]string),
	}
}

// Start spawns the Coordinator's worker pool. Call Stop to drain it.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}
}

// Stop signals every worker to finish its current job and exit, then waits
// for them to do so.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Enqueue admits a new Job for sourcePath/sourceID under cfg. It rejects
// with ErrBusy if PROCESSING_CONCURRENCY jobs are already running and the
// admission queue (capacity PROCESSING_CONCURRENCY) is already full.
func (c *Coordinator) Enqueue(ctx context.Context, sourceID, sourcePath string, cfg job.Config) (string, error) {
	if c.table.CountRunning() >= c.concurrency && c.table.CountQueued() >= c.concurrency {
		return "", ErrBusy
	}

	j, err := c.table.Insert(ctx, sourceID, cfg)
	if err != nil {
		return "", fmt.Errorf("pipeline: enqueue: %w", err)
	}

	c.mu.Lock()
	c.sourcePaths[j.ID] = sourcePath
	c.mu.Unlock()

	select {
	case c.queue <- j.ID:
		return j.ID, nil
	default:
		return "", ErrBusy
	}
}

// Status returns a deep copy of a Job's public fields.
func (c *Coordinator) Status(jobID string) (*job.Job, bool) {
	return c.table.Get(jobID)
}

// List returns a deep copy of every Job matching statuses, or every Job
// when statuses is empty, used by the queue-listing CLI command.
func (c *Coordinator) List(statuses ...job.Status) []*job.Job {
	return c.table.List(statuses...)
}

// Cancel requests cancellation of jobID. A queued job transitions straight
// to error/cancelled; a running job's cancel flag is polled between stages
// (spec.md §5's cooperative cancellation).
func (c *Coordinator) Cancel(ctx context.Context, jobID string) error {
	current, ok := c.table.Get(jobID)
	if !ok {
		return fmt.Errorf("pipeline: cancel: job %s not found", jobID)
	}

	if current.Status == job.StatusQueued {
		return c.table.Mutate(ctx, jobID, func(j *job.Job) {
			j.Cancelled = true
			j.Status = job.StatusError
			j.ErrorKind = apperrors.Kind(apperrors.ErrCancelled)
			j.SetProgress(j.Progress, "cancelled before starting")
		})
	}

	return c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.Cancelled = true
	})
}

// Cleanup removes a Job's output artifacts and its table entry. It rejects
// while the Job is running.
func (c *Coordinator) Cleanup(ctx context.Context, jobID string) error {
	current, ok := c.table.Get(jobID)
	if !ok {
		return fmt.Errorf("pipeline: cleanup: job %s not found", jobID)
	}
	if current.Status == job.StatusRunning {
		return fmt.Errorf("pipeline: cleanup: job %s is still running", jobID)
	}

	if err := c.store.Cleanup(jobID); err != nil {
		return err
	}
	if _, err := c.table.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("pipeline: cleanup: %w", err)
	}

	c.mu.Lock()
	delete(c.sourcePaths, jobID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) worker(ctx context.Context, index int) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-c.queue:
			c.runJob(ctx, jobID)
			if c.cooldown > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.cooldown):
				}
			}
		}
	}
}

func (c *Coordinator) sourcePathFor(jobID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sourcePaths[jobID]
}

// runJob drives one Job through the full pipeline, publishing progress at
// the canonical points spec.md §4.H names and checking the cancel flag
// between stages.
func (c *Coordinator) runJob(ctx context.Context, jobID string) {
	logger := logging.NewComponentLogger(c.logger, "pipeline")
	logger.Info("job starting", logging.String("job_id", jobID))

	j, ok := c.table.Get(jobID)
	if !ok {
		logger.Error("job vanished before start", logging.String("job_id", jobID))
		return
	}
	cfg := j.Config
	sourcePath := c.sourcePathFor(jobID)

	_ = c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
		j.SetProgress(0, "starting")
	})

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	info, err := c.prober.Inspect(ctx, sourcePath)
	if c.fail(ctx, jobID, "probe", err) {
		return
	}
	c.progress(ctx, jobID, progressProbeDone, "probed source")

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	c.progress(ctx, jobID, progressTranscribeStart, "transcribing")
	segments, err := c.transcr.Transcribe(ctx, sourcePath, info.Duration, cfg)
	if c.fail(ctx, jobID, "transcribe", err) {
		return
	}
	c.progress(ctx, jobID, progressTranscribeDone, "transcribed")

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	scenes, err := c.analyzer.Analyze(ctx, sourcePath, info.Duration, cfg)
	if c.fail(ctx, jobID, "visual", err) {
		return
	}
	c.progress(ctx, jobID, progressVisualDone, "visual analysis done")

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	candidates := fuse.Fuse(scenes, segments)
	scored := make([]job.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		scored = append(scored, c.scorer.Score(cand, cfg, segments))
	}
	c.progress(ctx, jobID, progressFuseScoreDone, "scored candidates")

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	selected, err := selector.Select(scored, cfg, info.Duration)
	if c.fail(ctx, jobID, "select", err) {
		return
	}
	if len(selected) < selector.Floor(cfg) {
		c.progress(ctx, jobID, progressSelectDone,
			fmt.Sprintf("coverage warning: only %d of %d minimum clips available", len(selected), selector.Floor(cfg)))
	} else {
		c.progress(ctx, jobID, progressSelectDone, "selected clips")
	}

	if c.cancelledBetweenStages(ctx, jobID) {
		return
	}

	outputDir, err := c.store.JobOutputDir(jobID)
	if c.fail(ctx, jobID, "artifact", err) {
		return
	}

	c.progress(ctx, jobID, progressRenderStart, "rendering")
	clips, err := c.renderer.RenderAll(ctx, sourcePath, selected, cfg, segments, outputDir)
	if c.fail(ctx, jobID, "render", err) {
		return
	}
	c.progress(ctx, jobID, progressRenderDone, "rendered clips")

	_ = c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.Clips = clips
		j.Status = job.StatusCompleted
		j.SetProgress(progressFinalize, "completed")
	})

	finalJob, _ := c.table.Get(jobID)
	meta := artifact.BuildMetadata(*finalJob, sourcePath, info.Duration)
	if err := artifact.WriteMetadata(outputDir, meta); err != nil {
		logger.Error("failed writing metadata", logging.String("job_id", jobID), logging.Error(err))
	}
	logger.Info("job completed", logging.String("job_id", jobID), logging.Int("clips", len(clips)))
}

// cancelledBetweenStages checks the cancel flag and, if set, transitions the
// Job to error/cancelled and returns true.
func (c *Coordinator) cancelledBetweenStages(ctx context.Context, jobID string) bool {
	current, ok := c.table.Get(jobID)
	if !ok || !current.Cancelled {
		return false
	}
	_ = c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.Status = job.StatusError
		j.ErrorKind = apperrors.Kind(apperrors.ErrCancelled)
		j.SetProgress(j.Progress, "cancelled")
	})
	return true
}

func (c *Coordinator) progress(ctx context.Context, jobID string, percent float64, message string) {
	_ = c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.SetProgress(percent, message)
		j.AppendLog(message)
	})
}

// fail marks jobID as errored when err is non-nil and returns true so the
// caller can short-circuit the remaining stages.
func (c *Coordinator) fail(ctx context.Context, jobID, stage string, err error) bool {
	if err == nil {
		return false
	}
	_ = c.table.Mutate(ctx, jobID, func(j *job.Job) {
		j.Status = job.StatusError
		j.ErrorKind = apperrors.Kind(err)
		j.AppendLog(fmt.Sprintf("%s failed: %v", stage, err))
		j.SetProgress(j.Progress, fmt.Sprintf("%s failed", stage))
	})
	c.logger.Error("stage failed", logging.String("job_id", jobID), logging.String("stage", stage), logging.Error(err))
	return true
}
