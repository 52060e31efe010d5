package api

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/apperrors"
	"clipforge/internal/config"
	"clipforge/internal/job"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/textutil"
)

var allowedSourceExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true, ".m4v": true,
}

// uploadResponse is POST /upload's success envelope (spec.md §6).
type uploadResponse struct {
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Title    string  `json:"title,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	maxBytes := s.cfg.Source.MaxSizeBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds configured size limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "a \"file\" form field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedSourceExts[ext] {
		s.writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported source type %q", ext))
		return
	}
	if maxBytes > 0 && header.Size > maxBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds configured size limit")
		return
	}

	if err := s.store.EnsureUploadsDir(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not prepare upload directory")
		return
	}

	sourceID := newSourceID()
	destPath := s.store.UploadPath(sourceID, ext)
	if err := writeLimited(destPath, file, maxBytes); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds configured size limit")
		return
	}

	info, err := s.prober.Inspect(r.Context(), destPath)
	if err != nil {
		os.Remove(destPath)
		s.writeError(w, http.StatusUnprocessableEntity, "source could not be read: "+apperrors.Kind(err))
		return
	}
	if max := s.cfg.Source.MaxDurationSeconds; max > 0 && info.Duration > float64(max) {
		os.Remove(destPath)
		s.writeError(w, http.StatusRequestEntityTooLarge, "source duration exceeds configured limit")
		return
	}

	title := textutil.DeriveTitle(header.Filename)
	s.sources.add(sourceEntry{id: sourceID, path: destPath, ext: ext, duration: info.Duration, size: header.Size, title: title})
	s.log().Info("source uploaded", logging.String("source_id", sourceID), logging.Float64("duration", info.Duration))
	s.writeJSON(w, http.StatusOK, uploadResponse{SourceID: sourceID, Duration: info.Duration, Size: header.Size, Title: title})
}

// fetchRequest is POST /fetch's body.
type fetchRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// fetchResponse is POST /fetch's success envelope.
type fetchResponse struct {
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title,omitempty"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "a non-empty \"url\" is required")
		return
	}

	if err := s.store.EnsureUploadsDir(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not prepare upload directory")
		return
	}

	sourceID := newSourceID()
	destPath := s.store.UploadPath(sourceID, ".mp4")
	result, err := s.fetcher.Fetch(r.Context(), req.URL, req.Quality, s.cfg.Source, destPath)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSourceTooLarge):
			s.writeError(w, http.StatusRequestEntityTooLarge, "source exceeds configured limits")
		case errors.Is(err, apperrors.ErrValidation):
			s.writeError(w, http.StatusBadRequest, "could not fetch the given url")
		case errors.Is(err, apperrors.ErrTransient):
			s.writeError(w, http.StatusGatewayTimeout, "fetch retries exhausted")
		default:
			s.writeError(w, http.StatusInternalServerError, "internal error fetching source")
		}
		return
	}

	size := int64(0)
	if stat, statErr := os.Stat(result.Path); statErr == nil {
		size = stat.Size()
	}
	s.sources.add(sourceEntry{id: sourceID, path: result.Path, ext: ".mp4", duration: result.Duration, size: size, title: result.Title})
	s.log().Info("source fetched", logging.String("source_id", sourceID), logging.String("url", req.URL))
	s.writeJSON(w, http.StatusOK, fetchResponse{SourceID: sourceID, Duration: result.Duration, Title: result.Title})
}

// processRequest is POST /process's body (spec.md §6).
type processRequest struct {
	SourceID       string `json:"source_id"`
	Language       string `json:"language"`
	TargetDuration string `json:"target_duration"`
	Style          string `json:"style"`
	UseHook        bool   `json:"use_hook"`
	AutoCaption    bool   `json:"auto_caption"`
	AspectRatio    string `json:"aspect_ratio"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, ok := s.sources.get(req.SourceID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown source_id")
		return
	}

	cfg := s.cfg.Snapshot(s.profile, config.RequestOverrides{
		Language:       req.Language,
		TargetDuration: req.TargetDuration,
		Style:          req.Style,
		UseHook:        req.UseHook,
		AutoCaption:    req.AutoCaption,
		AspectRatio:    req.AspectRatio,
	})

	jobID, err := s.coordinator.Enqueue(r.Context(), req.SourceID, source.path, cfg)
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			s.writeError(w, http.StatusConflict, "too many jobs in progress")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "could not enqueue job")
		return
	}

	s.log().Info("job enqueued", logging.String("job_id", jobID), logging.String("source_id", req.SourceID))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// jobSummary is one entry in GET /jobs's jobs[] array, supplementing
// spec.md §6's literal endpoint table so a CLI can list in-flight and
// recent work without polling every job id individually (grounded on the
// original implementation's BatchProcessor.get_stats()/get_job_status()
// aggregate view).
type jobSummary struct {
	JobID    string     `json:"job_id"`
	SourceID string     `json:"source_id"`
	Status   job.Status `json:"status"`
	Progress float64    `json:"progress"`
	Message  string     `json:"message"`
}

func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var statuses []job.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, job.Status(raw))
	}

	jobs := s.coordinator.List(statuses...)
	summaries := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, jobSummary{
			JobID:    j.ID,
			SourceID: j.SourceID,
			Status:   j.Status,
			Progress: j.Progress,
			Message:  j.Message,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries})
}

// clipView is one entry in GET /status's clips[] array.
type clipView struct {
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

// statusResponse is GET /status/{job_id}'s success envelope.
type statusResponse struct {
	Status   job.Status `json:"status"`
	Progress float64    `json:"progress"`
	Message  string     `json:"message"`
	Log      []string   `json:"log"`
	Clips    []clipView `json:"clips"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	j, ok := s.coordinator.Status(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	logLines := make([]string, 0, len(j.Log))
	for _, entry := range j.Log {
		logLines = append(logLines, fmt.Sprintf("%s %s", entry.Time.Format("2006-01-02T15:04:05Z07:00"), entry.Message))
	}
	clips := make([]clipView, 0, len(j.Clips))
	for _, c := range j.Clips {
		clips = append(clips, clipView{
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
			CaptionFile:     captionFile(c.CaptionPath),
		})
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:   j.Status,
		Progress: j.Progress,
		Message:  j.Message,
		Log:      logLines,
		Clips:    clips,
	})
}

func captionFile(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/download/")
	jobID, file, ok := strings.Cut(rest, "/")
	if !ok || jobID == "" || file == "" || strings.Contains(file, "/") || strings.Contains(file, "..") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	path := filepath.Join(s.store.OutputDir(jobID), file)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/download-all/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	j, ok := s.coordinator.Status(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if j.Status == job.StatusRunning {
		s.writeError(w, http.StatusConflict, "job is still running")
		return
	}

	dir := s.store.OutputDir(jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`.zip"`)
	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addZipEntry(zw, dir, entry.Name()); err != nil {
			s.log().Error("failed to add archive entry", logging.String("job_id", jobID), logging.Error(err))
			return
		}
	}
}

func addZipEntry(zw *zip.Writer, dir, name string) error {
	src, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/cancel/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	j, ok := s.coordinator.Status(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status == job.StatusCompleted || j.Status == job.StatusError {
		s.writeError(w, http.StatusConflict, "job already finished")
		return
	}

	if err := s.coordinator.Cancel(r.Context(), jobID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not cancel job")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/cleanup/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	j, ok := s.coordinator.Status(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status == job.StatusRunning {
		s.writeError(w, http.StatusConflict, "job is still running")
		return
	}

	if err := s.coordinator.Cleanup(r.Context(), jobID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not clean up job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSourceCleanup implements the explicit source-deletion call
// spec.md §3 requires ("SourceVideo ... is deleted only by an explicit
// cleanup call"), supplementing the endpoint table in spec.md §6 which
// only names the per-Job cleanup route.
func (s *Server) handleSourceCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sourceID := strings.TrimPrefix(r.URL.Path, "/sources/")
	if sourceID == "" || strings.Contains(sourceID, "/") {
		s.writeError(w, http.StatusNotFound, "source not found")
		return
	}

	source, ok := s.sources.get(sourceID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if err := s.store.CleanupSource(sourceID, source.ext); err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not remove source")
		return
	}
	s.sources.delete(sourceID)
	w.WriteHeader(http.StatusNoContent)
}

// writeLimited copies src into a new file at destPath, aborting with
// apperrors.ErrSourceTooLarge as soon as more than maxBytes have been
// written, mirroring internal/fetch's mid-download size enforcement.
func writeLimited(destPath string, src io.Reader, maxBytes int64) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("api: create upload destination: %w", err)
	}
	defer out.Close()

	if maxBytes <= 0 {
		_, err := io.Copy(out, src)
		return err
	}
	limited := io.LimitReader(src, maxBytes+1)
	written, err := io.Copy(out, limited)
	if err != nil {
		os.Remove(destPath)
		return err
	}
	if written > maxBytes {
		os.Remove(destPath)
		return apperrors.Wrap(apperrors.ErrSourceTooLarge, "api", "upload", "exceeded configured size limit", nil)
	}
	return nil
}
