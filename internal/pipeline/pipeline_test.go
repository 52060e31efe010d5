package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/artifact"
	"clipforge/internal/job"
	"clipforge/internal/mediaprobe"
)

type fakeProber struct {
	info mediaprobe.Info
	err  error
}

func (f fakeProber) Inspect(ctx context.Context, path string) (mediaprobe.Info, error) {
	return f.info, f.err
}

type fakeTranscriber struct {
	segments []job.SpeechSegment
	err      error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, sourcePath string, duration float64, cfg job.Config) ([]job.SpeechSegment, error) {
	return f.segments, f.err
}

type fakeAnalyzer struct {
	scenes []job.Scene
	err    error
}

func (f fakeAnalyzer) Analyze(ctx context.Context, path string, duration float64, cfg job.Config) ([]job.Scene, error) {
	return f.scenes, f.err
}

type fakeScorer struct{}

func (fakeScorer) Score(candidate job.Candidate, cfg job.Config, segments []job.SpeechSegment) job.Candidate {
	candidate.Viral = 0.9
	candidate.Category = "balanced"
	return candidate
}

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) RenderAll(ctx context.Context, sourcePath string, candidates []job.Candidate, cfg job.Config, segments []job.SpeechSegment, outputDir string) ([]job.Clip, error) {
	if f.err != nil {
		return nil, f.err
	}
	clips := make([]job.Clip, len(candidates))
	for i, c := range candidates {
		clips[i] = job.Clip{Candidate: c, Index: i + 1, OutputPath: filepath.Join(outputDir, "clip.mp4")}
	}
	return clips, nil
}

func newTestCoordinator(t *testing.T, prober Prober, transcr Transcriber, analyzer Analyzer, renderer Renderer) (*Coordinator, string) {
	t.Helper()
	root := t.TempDir()
	table := job.NewTable(nil)
	store := artifact.New(root)
	c := New(table, store, prober, transcr, analyzer, fakeScorer{}, renderer, 2, 0, nil)
	return c, root
}

func waitForTerminal(t *testing.T, c *Coordinator, jobID string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, ok := c.Status(jobID)
		if ok && (j.Status == job.StatusCompleted || j.Status == job.StatusError) {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status in time")
	return nil
}

func TestCoordinatorRunsJobToCompletion(t *testing.T) {
	prober := fakeProber{info: mediaprobe.Info{Duration: 30}}
	transcr := fakeTranscriber{segments: []job.SpeechSegment{{Start: 0, End: 5, Text: "hello there"}}}
	analyzer := fakeAnalyzer{scenes: []job.Scene{{Start: 0, End: 10, FaceRatio: 0.6, Motion: 0.3, Brightness: 0.5}}}
	renderer := fakeRenderer{}

	c, root := newTestCoordinator(t, prober, transcr, analyzer, renderer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	jobID, err := c.Enqueue(context.Background(), "source-1", "/tmp/source.mp4", job.Config{MinClipsFloor: 1, MaxClips: 5, TargetDuration: "any"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	final := waitForTerminal(t, c, jobID)
	if final.Status != job.StatusCompleted {
		t.Fatalf("expected job to complete, got status=%s kind=%s", final.Status, final.ErrorKind)
	}
	if len(final.Clips) == 0 {
		t.Fatal("expected at least one clip")
	}
	if final.Progress != progressFinalize {
		t.Fatalf("expected progress=100, got %v", final.Progress)
	}

	metaPath := filepath.Join(root, "outputs", jobID, "metadata.json")
	data, readErr := os.ReadFile(metaPath)
	if readErr != nil {
		t.Fatalf("expected metadata.json to exist: %v", readErr)
	}
	var meta artifact.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if len(meta.Clips) != len(final.Clips) {
		t.Fatalf("expected metadata clip count to match job clips, got %d vs %d", len(meta.Clips), len(final.Clips))
	}
}

func TestCoordinatorFailsJobOnRenderError(t *testing.T) {
	prober := fakeProber{info: mediaprobe.Info{Duration: 30}}
	transcr := fakeTranscriber{segments: []job.SpeechSegment{{Start: 0, End: 5, Text: "hello"}}}
	analyzer := fakeAnalyzer{scenes: []job.Scene{{Start: 0, End: 10}}}
	renderer := fakeRenderer{err: errBoom{}}

	c, _ := newTestCoordinator(t, prober, transcr, analyzer, renderer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	jobID, err := c.Enqueue(context.Background(), "source-1", "/tmp/source.mp4", job.Config{MinClipsFloor: 1, MaxClips: 5, TargetDuration: "any"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	final := waitForTerminal(t, c, jobID)
	if final.Status != job.StatusError {
		t.Fatalf("expected job to error, got status=%s", final.Status)
	}
	if final.ErrorKind == "" {
		t.Fatal("expected an error kind to be recorded")
	}
}

func TestCoordinatorSurfacesInsufficientMaterialForFiveSecondSource(t *testing.T) {
	// A 5-second source is below the Visual Analyzer's
	// minSynthesizableDuration, so it can never yield even a synthesized
	// scene; that must reach the Job as insufficient-material, not
	// visual-analysis-failed, per spec.md §8's boundary behavior.
	prober := fakeProber{info: mediaprobe.Info{Duration: 5}}
	transcr := fakeTranscriber{segments: nil}
	analyzer := fakeAnalyzer{err: apperrors.Wrap(apperrors.ErrInsufficientMaterial, "visual", "analyze",
		"source too short to produce even one synthesized scene", nil)}
	renderer := fakeRenderer{}

	c, _ := newTestCoordinator(t, prober, transcr, analyzer, renderer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	jobID, err := c.Enqueue(context.Background(), "source-1", "/tmp/source.mp4", job.Config{MinClipsFloor: 1, MaxClips: 5, TargetDuration: "any"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	final := waitForTerminal(t, c, jobID)
	if final.Status != job.StatusError {
		t.Fatalf("expected job to error, got status=%s", final.Status)
	}
	if final.ErrorKind != "insufficient-material" {
		t.Fatalf("expected ErrorKind=insufficient-material, got %q", final.ErrorKind)
	}
}

func TestEnqueueRejectsWhenBusy(t *testing.T) {
	prober := fakeProber{info: mediaprobe.Info{Duration: 30}}
	transcr := fakeTranscriber{segments: nil}
	analyzer := fakeAnalyzer{scenes: nil}
	renderer := fakeRenderer{}

	root := t.TempDir()
	table := job.NewTable(nil)
	store := artifact.New(root)
	c := New(table, store, prober, transcr, analyzer, fakeScorer{}, renderer, 2, 0, nil)

	if _, err := c.Enqueue(context.Background(), "s1", "/tmp/a.mp4", job.Config{}); err != nil {
		t.Fatalf("first enqueue returned error: %v", err)
	}
	if _, err := c.Enqueue(context.Background(), "s2", "/tmp/b.mp4", job.Config{}); err != nil {
		t.Fatalf("second enqueue (still queued) returned error: %v", err)
	}
	if _, err := c.Enqueue(context.Background(), "s3", "/tmp/c.mp4", job.Config{}); err == nil {
		t.Fatal("expected ErrBusy when queue capacity is exhausted")
	}
}

func TestCancelQueuedJobTransitionsImmediately(t *testing.T) {
	root := t.TempDir()
	table := job.NewTable(nil)
	store := artifact.New(root)
	c := New(table, store, fakeProber{}, fakeTranscriber{}, fakeAnalyzer{}, fakeScorer{}, fakeRenderer{}, 1, 0, nil)

	jobID, err := table.Insert(context.Background(), "s1", job.Config{})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if err := c.Cancel(context.Background(), jobID.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	j, _ := c.Status(jobID.ID)
	if j.Status != job.StatusError {
		t.Fatalf("expected queued job to transition to error on cancel, got %s", j.Status)
	}
}

func TestCleanupRejectsRunningJob(t *testing.T) {
	root := t.TempDir()
	table := job.NewTable(nil)
	store := artifact.New(root)
	c := New(table, store, fakeProber{}, fakeTranscriber{}, fakeAnalyzer{}, fakeScorer{}, fakeRenderer{}, 1, 0, nil)

	j, err := table.Insert(context.Background(), "s1", job.Config{})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if err := table.Mutate(context.Background(), j.ID, func(j *job.Job) { j.Status = job.StatusRunning }); err != nil {
		t.Fatalf("Mutate returned error: %v", err)
	}
	if err := c.Cleanup(context.Background(), j.ID); err == nil {
		t.Fatal("expected Cleanup to reject a running job")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "render boom" }
