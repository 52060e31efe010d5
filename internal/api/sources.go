package api

import (
	"sync"

	"github.com/google/uuid"
)

// sourceEntry is the admission record for one uploaded or fetched source
// video, keyed by SourceID. SourceVideo is immutable after admission
// (spec.md §3), so unlike job.Table there is no per-entry lock — only the
// registry's map needs guarding.
type sourceEntry struct {
	id       string
	path     string
	ext      string
	duration float64
	size     int64
	title    string
}

// sourceRegistry tracks admitted sources between POST /upload or POST
// /fetch and the POST /process call that consumes one by id.
type sourceRegistry struct {
	mu      sync.Mutex
	entries map[string]sourceEntry
}

func newSourceRegistry() *sourceRegistry {
	return &sourceRegistry{entries: make(map[string]sourceEntry)}
}

func (r *sourceRegistry) add(e sourceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.id] = e
}

func (r *sourceRegistry) get(id string) (sourceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *sourceRegistry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func newSourceID() string {
	return uuid.NewString()
}
