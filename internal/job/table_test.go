package job_test

import (
	"context"
	"testing"

	"clipforge/internal/job"
)

func TestTableInsertAndGet(t *testing.T) {
	table := job.NewTable(nil)
	ctx := context.Background()

	j, err := table.Insert(ctx, "source-1", job.Config{MinClipsFloor: 5})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if j.Status != job.StatusQueued {
		t.Fatalf("expected queued, got %s", j.Status)
	}

	got, ok := table.Get(j.ID)
	if !ok {
		t.Fatal("expected job to be found")
	}
	if got.ID != j.ID || got.SourceID != "source-1" {
		t.Fatalf("unexpected job returned: %+v", got)
	}
}

func TestTableGetReturnsCopy(t *testing.T) {
	table := job.NewTable(nil)
	ctx := context.Background()
	j, _ := table.Insert(ctx, "source-1", job.Config{})

	snapshot, _ := table.Get(j.ID)
	snapshot.Status = job.StatusCompleted

	fresh, _ := table.Get(j.ID)
	if fresh.Status == job.StatusCompleted {
		t.Fatal("mutating a snapshot must not affect the stored job")
	}
}

func TestTableMutateIsMonotoneProgress(t *testing.T) {
	table := job.NewTable(nil)
	ctx := context.Background()
	j, _ := table.Insert(ctx, "source-1", job.Config{})

	_ = table.Mutate(ctx, j.ID, func(j *job.Job) { j.SetProgress(40, "transcribing") })
	_ = table.Mutate(ctx, j.ID, func(j *job.Job) { j.SetProgress(10, "ignored regression") })

	got, _ := table.Get(j.ID)
	if got.Progress != 40 {
		t.Fatalf("expected progress to stay at 40, got %v", got.Progress)
	}
}

func TestTableDeleteRejectsUnknown(t *testing.T) {
	table := job.NewTable(nil)
	ok, err := table.Delete(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected delete of unknown job to report false")
	}
}

func TestLogRingBounded(t *testing.T) {
	j := &job.Job{}
	for i := 0; i < 25; i++ {
		j.AppendLog("entry")
	}
	if len(j.Log) != 10 {
		t.Fatalf("expected log ring capped at 10, got %d", len(j.Log))
	}
}
