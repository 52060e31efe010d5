// Package mediaprobe implements spec.md §4.A: reading duration, fps, and
// resolution from a container file via ffprobe, cached per path until the
// file's modification time changes.
package mediaprobe

import (
	"context"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
	"clipforge/internal/media/ffprobe"
)

// Info is the Media Probe's output: {duration, fps, width, height}, plus
// the codec family needed to populate SourceVideo.
type Info struct {
	Duration float64
	FPS      float64
	Width    int
	Height   int
	Codec    string
}

type cacheEntry struct {
	modTime time.Time
	info    Info
}

// Prober runs ffprobe against container paths, caching results per-path
// until the file's modification time changes (grounded on the teacher's
// per-path ffprobe reuse idiom).
type Prober struct {
	binary  string
	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New constructs a Prober. binary is the ffprobe executable name.
func New(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, inspect: ffprobe.Inspect, cache: make(map[string]cacheEntry)}
}

// WithInspector overrides the ffprobe-invoking func, used by tests.
func (p *Prober) WithInspector(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) {
	p.inspect = fn
}

// Inspect returns {duration, fps, width, height} for path, failing with
// apperrors.ErrUnreadableMedia if no video stream is present or duration
// cannot be determined.
func (p *Prober) Inspect(ctx context.Context, path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, apperrors.Wrap(apperrors.ErrUnreadableMedia, "mediaprobe", "stat", path, err)
	}
	modTime := stat.ModTime()

	p.mu.Lock()
	if entry, ok := p.cache[path]; ok && entry.modTime.Equal(modTime) {
		cached := entry.info
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	result, err := p.inspect(ctx, p.binary, path)
	if err != nil {
		return Info{}, apperrors.Wrap(apperrors.ErrUnreadableMedia, "mediaprobe", "ffprobe", path, err)
	}

	if result.VideoStreamCount() == 0 {
		return Info{}, apperrors.Wrap(apperrors.ErrUnreadableMedia, "mediaprobe", "inspect", "no video stream present", nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 || math.IsNaN(duration) {
		return Info{}, apperrors.Wrap(apperrors.ErrUnreadableMedia, "mediaprobe", "inspect", "duration could not be determined", nil)
	}

	info := Info{
		Duration: duration,
		FPS:      frameRate(result),
		Width:    videoDimension(result, true),
		Height:   videoDimension(result, false),
		Codec:    videoCodec(result),
	}

	p.mu.Lock()
	p.cache[path] = cacheEntry{modTime: modTime, info: info}
	p.mu.Unlock()

	return info, nil
}

// ToSourceVideo maps an Info plus admission metadata into a job.SourceVideo.
func ToSourceVideo(sourceID, path string, info Info) job.SourceVideo {
	return job.SourceVideo{
		SourceID: sourceID,
		Path:     path,
		Duration: info.Duration,
		FPS:      info.FPS,
		Width:    info.Width,
		Height:   info.Height,
		Codec:    info.Codec,
	}
}

func frameRate(r ffprobe.Result) float64 {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream.FrameRate()
		}
	}
	return 0
}

func videoDimension(r ffprobe.Result, width bool) int {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if width {
			return stream.Width
		}
		return stream.Height
	}
	return 0
}

func videoCodec(r ffprobe.Result) string {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream.CodecName
		}
	}
	return ""
}

