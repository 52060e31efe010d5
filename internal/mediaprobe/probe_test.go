package mediaprobe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/media/ffprobe"
)

func writeTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestInspectReturnsInfoAndCaches(t *testing.T) {
	path := writeTempFile(t)

	calls := 0
	p := New("ffprobe")
	p.inspect = func(ctx context.Context, binary, target string) (ffprobe.Result, error) {
		calls++
		return ffprobe.Result{
			Streams: []ffprobe.Stream{
				{CodecType: "video", Width: 1920, Height: 1080, CodecName: "h264", AvgFrameRate: "30/1"},
				{CodecType: "audio"},
			},
			Format: ffprobe.Format{Duration: "120.5"},
		}, nil
	}

	info, err := p.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if info.Duration != 120.5 || info.Width != 1920 || info.Height != 1080 || info.FPS != 30 || info.Codec != "h264" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := p.Inspect(context.Background(), path); err != nil {
		t.Fatalf("second Inspect returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected ffprobe to run once due to caching, ran %d times", calls)
	}
}

func TestInspectRefreshesOnModTimeChange(t *testing.T) {
	path := writeTempFile(t)

	calls := 0
	p := New("ffprobe")
	p.inspect = func(ctx context.Context, binary, target string) (ffprobe.Result, error) {
		calls++
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: 640, Height: 480}},
			Format:  ffprobe.Format{Duration: "10"},
		}, nil
	}

	if _, err := p.Inspect(context.Background(), path); err != nil {
		t.Fatalf("first Inspect: %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := p.Inspect(context.Background(), path); err != nil {
		t.Fatalf("second Inspect: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected ffprobe to re-run after mtime change, ran %d times", calls)
	}
}

func TestInspectFailsOnMissingVideoStream(t *testing.T) {
	path := writeTempFile(t)

	p := New("ffprobe")
	p.inspect = func(ctx context.Context, binary, target string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio"}},
			Format:  ffprobe.Format{Duration: "10"},
		}, nil
	}

	_, err := p.Inspect(context.Background(), path)
	if !errors.Is(err, apperrors.ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestInspectFailsOnMissingDuration(t *testing.T) {
	path := writeTempFile(t)

	p := New("ffprobe")
	p.inspect = func(ctx context.Context, binary, target string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video"}},
			Format:  ffprobe.Format{Duration: ""},
		}, nil
	}

	_, err := p.Inspect(context.Background(), path)
	if !errors.Is(err, apperrors.ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestInspectFailsOnMissingFile(t *testing.T) {
	p := New("ffprobe")
	_, err := p.Inspect(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, apperrors.ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestInspectWrapsUnderlyingError(t *testing.T) {
	path := writeTempFile(t)

	p := New("ffprobe")
	p.inspect = func(ctx context.Context, binary, target string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("boom")
	}

	_, err := p.Inspect(context.Background(), path)
	if !errors.Is(err, apperrors.ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestToSourceVideo(t *testing.T) {
	info := Info{Duration: 30, FPS: 24, Width: 1280, Height: 720, Codec: "h264"}
	sv := ToSourceVideo("abc123", "/tmp/abc123.mp4", info)
	if sv.SourceID != "abc123" || sv.Path != "/tmp/abc123.mp4" || sv.Duration != 30 || sv.FPS != 24 {
		t.Fatalf("unexpected SourceVideo: %+v", sv)
	}
}
