package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// entry pairs a Job with the lock that guards its mutable fields, per
// spec.md §9: the table itself is serialized by a single mutex, but a long
// status read must not block a short progress write on an unrelated job, so
// each Job gets its own lock.
type entry struct {
	mu  sync.Mutex
	job *Job
}

// Table is the single process-wide mutable structure spec.md §9 describes:
// the Job table, guarded by one mutex for table-level operations
// (insert/delete/enumerate), with each Job's mutable fields additionally
// protected by its own lock. The Coordinator's admission queue is a channel
// held by the Coordinator, not part of the Table.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
	journal *Store
}

// NewTable constructs an empty Table. journal may be nil, in which case
// writes are not persisted (used in tests).
func NewTable(journal *Store) *Table {
	return &Table{entries: make(map[string]*entry), journal: journal}
}

// Restore repopulates the table from the journal at startup. Restored jobs
// that were "running" when the process died are left in that status; the
// Coordinator is responsible for deciding whether to requeue or fail them.
func (t *Table) Restore(ctx context.Context) error {
	if t.journal == nil {
		return nil
	}
	jobs, err := t.journal.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("restore job table: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range jobs {
		t.entries[j.ID] = &entry{job: j}
	}
	return nil
}

// Insert admits a new Job, assigning it a fresh ID.
func (t *Table) Insert(ctx context.Context, sourceID string, cfg Config) (*Job, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:           uuid.NewString(),
		SourceID:     sourceID,
		Config:       cfg,
		Status:       StatusQueued,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.mu.Lock()
	t.entries[j.ID] = &entry{job: j}
	t.mu.Unlock()

	return j, t.persist(ctx, j)
}

// Get returns a deep copy of a Job's public fields, safe for any number of
// concurrent readers — the status-query path never blocks a worker.
func (t *Table) Get(id string) (*Job, bool) {
	e := t.lookup(id)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneJob(e.job), true
}

// List returns a deep copy of every Job in the table, optionally filtered
// by status.
func (t *Table) List(statuses ...Status) []*Job {
	want := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}

	t.mu.Lock()
	snapshot := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		snapshot = append(snapshot, e)
	}
	t.mu.Unlock()

	out := make([]*Job, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		j := e.job
		if len(want) == 0 {
			out = append(out, cloneJob(j))
		} else if _, ok := want[j.Status]; ok {
			out = append(out, cloneJob(j))
		}
		e.mu.Unlock()
	}
	return out
}

// CountRunning returns the number of Jobs currently in StatusRunning, used
// by the Coordinator to enforce PROCESSING_CONCURRENCY admission.
func (t *Table) CountRunning() int {
	return len(t.List(StatusRunning))
}

// CountQueued returns the number of Jobs awaiting a worker.
func (t *Table) CountQueued() int {
	return len(t.List(StatusQueued))
}

// Mutate runs fn against the live Job under its per-Job lock and persists
// the result to the journal afterward. fn must not retain the pointer it
// receives beyond the call.
func (t *Table) Mutate(ctx context.Context, id string, fn func(*Job)) error {
	e := t.lookup(id)
	if e == nil {
		return fmt.Errorf("job %s not found", id)
	}
	e.mu.Lock()
	fn(e.job)
	e.job.UpdatedAt = time.Now().UTC()
	snapshot := cloneJob(e.job)
	e.mu.Unlock()

	return t.persist(ctx, snapshot)
}

// Delete removes a Job from the table and the journal. Returns false if the
// Job was not present.
func (t *Table) Delete(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	_, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()
	if !ok {
		return false, nil
	}
	if t.journal != nil {
		if err := t.journal.Delete(ctx, id); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (t *Table) lookup(id string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id]
}

func (t *Table) persist(ctx context.Context, j *Job) error {
	if t.journal == nil {
		return nil
	}
	return t.journal.Save(ctx, j)
}

func cloneJob(j *Job) *Job {
	cp := *j
	cp.Log = append([]LogEntry(nil), j.Log...)
	cp.Clips = append([]Clip(nil), j.Clips...)
	return &cp
}
