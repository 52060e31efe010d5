// Package fetch admits a source video into the pipeline: it resolves a
// public URL to a direct download link via internal/services/urlsource, then
// streams the download to disk while enforcing the configured size and
// duration ceilings, grounded on khoahotran-ScrapeAndDown's
// downloader.HTTPDownloader.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/config"
	"clipforge/internal/services/urlsource"
)

const (
	maxAttempts     = 3
	retryBackoff    = 2 * time.Second
	downloadTimeout = 30 * time.Minute
)

// Resolver resolves a URL to a direct link and title/duration metadata.
type Resolver interface {
	Resolve(ctx context.Context, videoURL, quality string) (urlsource.Resolved, error)
}

// Fetcher admits a remote source video onto local disk.
type Fetcher struct {
	resolver Resolver
	client   *http.Client
	sleep    func(d time.Duration)
}

// New constructs a Fetcher around a yt-dlp-backed Resolver.
func New(ytdlpBinary string) *Fetcher {
	return &Fetcher{
		resolver: urlsource.New(ytdlpBinary),
		client:   &http.Client{Timeout: downloadTimeout},
		sleep:    time.Sleep,
	}
}

// WithResolver overrides the URL resolver, used by tests.
func (f *Fetcher) WithResolver(r Resolver) { f.resolver = r }

// WithHTTPClient overrides the HTTP client, used by tests.
func (f *Fetcher) WithHTTPClient(c *http.Client) { f.client = c }

// WithSleep overrides the retry backoff sleep, used by tests.
func (f *Fetcher) WithSleep(sleep func(d time.Duration)) { f.sleep = sleep }

// Result is the outcome of a successful Fetch.
type Result struct {
	Path     string
	Title    string
	Duration float64
}

// Fetch resolves videoURL, then downloads it to destPath, rejecting sources
// that exceed limits.MaxSizeBytes or limits.MaxDurationSeconds. The download
// is tried up to maxAttempts times, waiting retryBackoff times the attempt
// number between tries; a 4xx response or a size/duration violation fails
// immediately without retry.
func (f *Fetcher) Fetch(ctx context.Context, videoURL, quality string, limits config.Source, destPath string) (Result, error) {
	resolved, err := f.resolver.Resolve(ctx, videoURL, quality)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrTransient, "fetch", "resolve", "could not resolve source URL", err)
	}
	if limits.MaxDurationSeconds > 0 && resolved.Duration > float64(limits.MaxDurationSeconds) {
		return Result{}, apperrors.Wrap(apperrors.ErrSourceTooLarge, "fetch", "resolve",
			fmt.Sprintf("source duration %.0fs exceeds limit %ds", resolved.Duration, limits.MaxDurationSeconds), nil)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := f.download(ctx, resolved.DirectURL, limits.MaxSizeBytes, destPath)
		if err == nil {
			return Result{Path: destPath, Title: resolved.Title, Duration: resolved.Duration}, nil
		}
		if errors.Is(err, apperrors.ErrSourceTooLarge) || errors.Is(err, apperrors.ErrValidation) {
			return Result{}, err
		}
		lastErr = err
		if attempt < maxAttempts {
			f.sleep(retryBackoff * time.Duration(attempt))
		}
	}
	return Result{}, apperrors.Wrap(apperrors.ErrTransient, "fetch", "download",
		"exhausted retries downloading source", lastErr)
}

// download streams directURL to destPath, aborting as soon as the body
// exceeds maxBytes rather than discovering the violation after the fact.
func (f *Fetcher) download(ctx context.Context, directURL string, maxBytes int64, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "fetch", "download", "could not build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return apperrors.Wrap(apperrors.ErrValidation, "fetch", "download",
				fmt.Sprintf("unexpected status code %d", resp.StatusCode), nil)
		}
		return fmt.Errorf("fetch: download: unexpected status code %d", resp.StatusCode)
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return apperrors.Wrap(apperrors.ErrSourceTooLarge, "fetch", "download",
			fmt.Sprintf("content-length %d exceeds limit %d", resp.ContentLength, maxBytes), nil)
	}

	out, err := os.Create(destPath) //nolint:gosec
	if err != nil {
		return fmt.Errorf("fetch: download: create %s: %w", destPath, err)
	}
	defer out.Close()

	reader := resp.Body
	limitErr := copyLimited(out, reader, maxBytes)
	if limitErr != nil {
		os.Remove(destPath)
		return limitErr
	}
	return nil
}

// copyLimited copies src into dst, failing with ErrSourceTooLarge as soon as
// more than maxBytes have been written rather than after the full body has
// been read. maxBytes <= 0 means unlimited.
func copyLimited(dst io.Writer, src io.Reader, maxBytes int64) error {
	if maxBytes <= 0 {
		_, err := io.Copy(dst, src)
		if err != nil {
			return fmt.Errorf("fetch: download: %w", err)
		}
		return nil
	}

	limited := io.LimitReader(src, maxBytes+1)
	written, err := io.Copy(dst, limited)
	if err != nil {
		return fmt.Errorf("fetch: download: %w", err)
	}
	if written > maxBytes {
		return apperrors.Wrap(apperrors.ErrSourceTooLarge, "fetch", "download",
			fmt.Sprintf("source exceeded %d byte limit mid-download", maxBytes), nil)
	}
	return nil
}
