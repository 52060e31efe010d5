// Package artifact owns the fixed on-disk layout for uploaded sources and
// per-job outputs (spec.md §4.J), grounded on the teacher's
// queue.Item.StagingRoot/textutil sanitization helpers.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"clipforge/internal/job"
	"clipforge/internal/textutil"
)

// Store resolves and creates the directories spec.md §4.J's layout
// requires, rooted at a configured base directory.
type Store struct {
	root string
}

// New constructs a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// UploadPath returns the path an uploaded source with the given display
// name and extension is stored at, sanitizing the name for filesystem
// safety.
func (s *Store) UploadPath(sourceID, ext string) string {
	name := textutil.SanitizeFileName(sourceID)
	if name == "" {
		name = "source"
	}
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return filepath.Join(s.root, "uploads", name+ext)
}

// EnsureUploadsDir creates <root>/uploads if it does not exist.
func (s *Store) EnsureUploadsDir() error {
	return os.MkdirAll(filepath.Join(s.root, "uploads"), 0o755)
}

// OutputDir returns <root>/outputs/<job-id> without creating it, used by
// read-only callers (download handlers) that must not fabricate a
// directory for a job that was never rendered.
func (s *Store) OutputDir(jobID string) string {
	return filepath.Join(s.root, "outputs", textutil.SanitizeToken(jobID))
}

// JobOutputDir returns <root>/outputs/<job-id>, creating it if necessary.
func (s *Store) JobOutputDir(jobID string) (string, error) {
	dir := s.OutputDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: create output dir: %w", err)
	}
	return dir, nil
}

// ClipPath returns the path for the nth clip (1-indexed, in Clip time
// order) within a job's output directory, with its rendered extension.
func ClipPath(outputDir string, index int, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(outputDir, fmt.Sprintf("clip_%03d%s", index, ext))
}

// CaptionPath returns the sidecar caption path for the nth clip.
func CaptionPath(outputDir string, index int) string {
	return filepath.Join(outputDir, fmt.Sprintf("clip_%03d.captions", index))
}

// Metadata is the metadata.json envelope written alongside a job's clips,
// matching spec.md §6's on-disk schema.
type Metadata struct {
	JobID          string         `json:"job_id"`
	Source         SourceMetadata `json:"source"`
	ConfigSnapshot job.Config     `json:"config_snapshot"`
	Clips          []ClipMetadata `json:"clips"`
}

// SourceMetadata is the metadata.json "source" sub-object.
type SourceMetadata struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// ClipMetadata is one Clip's entry in metadata.json.
type ClipMetadata struct {
	Index           int     `json:"index"`
	File            string  `json:"file"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	ViralScore      float64 `json:"viral_score"`
	ViralTier       string  `json:"viral_tier"`
	Category        string  `json:"category"`
	Rationale       string  `json:"rationale"`
	ContextComplete bool    `json:"context_complete"`
	Fallback        bool    `json:"fallback"`
	HookText        string  `json:"hook_text,omitempty"`
	CaptionFile     string  `json:"caption_file,omitempty"`
}

// WriteMetadata serializes meta to <outputDir>/metadata.json atomically via
// a temp file plus rename, per spec.md §4.J.
func WriteMetadata(outputDir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal metadata: %w", err)
	}

	finalPath := filepath.Join(outputDir, "metadata.json")
	tmp, err := os.CreateTemp(outputDir, ".metadata-*.json.tmp")
	if err != nil {
		return fmt.Errorf("artifact: create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("artifact: write temp metadata file: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("artifact: close temp metadata file: %w", closeErr)
	}
	if renameErr := os.Rename(tmpPath, finalPath); renameErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("artifact: rename metadata file: %w", renameErr)
	}
	return nil
}

// BuildMetadata assembles a Metadata envelope from a completed Job, with
// clips numbered 1-indexed in the time order they already carry (Clip
// indices are assigned by the Renderer in time-sorted order). sourcePath
// and sourceDuration populate the "source" sub-object.
func BuildMetadata(j job.Job, sourcePath string, sourceDuration float64) Metadata {
	meta := Metadata{
		JobID:          j.ID,
		Source:         SourceMetadata{Path: sourcePath, Duration: sourceDuration},
		ConfigSnapshot: j.Config,
		Clips:          make([]ClipMetadata, 0, len(j.Clips)),
	}
	for _, c := range j.Clips {
		meta.Clips = append(meta.Clips, ClipMetadata{
			Index:           c.Index,
			File:            filepath.Base(c.OutputPath),
			StartSeconds:    c.Start,
			EndSeconds:      c.End,
			DurationSeconds: c.Duration(),
			ViralScore:      c.Viral,
			ViralTier:       c.Tier,
			Category:        c.Category,
			Rationale:       c.Rationale,
			ContextComplete: c.ContextComplete,
			Fallback:        c.Fallback,
			HookText:        c.HookText,
			CaptionFile:     captionFileName(c.CaptionPath),
		})
	}
	return meta
}

func captionFileName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// Cleanup removes a job's entire output directory. Uploaded source files are
// left untouched — they outlive every job referencing them until an
// explicit source-cleanup call (spec.md §3 lifecycle).
func (s *Store) Cleanup(jobID string) error {
	dir := s.OutputDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("artifact: cleanup %s: %w", jobID, err)
	}
	return nil
}

// CleanupSource removes an uploaded source file, used by the explicit
// source-cleanup call spec.md §3 describes.
func (s *Store) CleanupSource(sourceID, ext string) error {
	path := s.UploadPath(sourceID, ext)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifact: cleanup source %s: %w", sourceID, err)
	}
	return nil
}
