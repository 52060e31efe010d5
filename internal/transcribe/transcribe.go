// Package transcribe implements the Transcriber component (spec.md §4.B):
// primary decode, low-confidence retry, external-backend fallback, and
// timeout-driven chunking, producing a normalized SpeechSegment list.
package transcribe

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"clipforge/internal/apperrors"
	"clipforge/internal/job"
	"clipforge/internal/services/decoder"
)

const (
	minDeadline      = 10 * time.Minute
	deadlinePerSec   = 2.0
	deadlinePadding  = 5 * time.Minute
	chunkDuration    = 5 * time.Minute
	overlapTolerance = 0.050 // 50ms
	coverageFloor    = 0.60
)

// Transcriber runs the Transcriber component against one source file.
type Transcriber struct {
	decoder          *decoder.Client
	ffmpegBinary     string
	external         func(cfg job.Config) (*decoder.ExternalClient, error)
	extractAudioFunc func(ctx context.Context, ffmpegBinary, source string, start, duration float64, dest string) error
}

// New constructs a Transcriber. ffmpegBinary selects the audio-extraction
// tool; decoderBinary selects the subprocess speech decoder launcher.
func New(decoderBinary, ffmpegBinary string) *Transcriber {
	return &Transcriber{
		decoder:      decoder.New(decoderBinary),
		ffmpegBinary: ffmpegBinary,
		external: func(cfg job.Config) (*decoder.ExternalClient, error) {
			return decoder.NewExternalClient(decoder.ExternalConfig{APIKey: cfg.ExternalBackendKey})
		},
		extractAudioFunc: decoder.ExtractAudio,
	}
}

// Transcribe runs the full primary/retry/external-backend/timeout-chunking
// ladder against sourcePath and returns the normalized segment list.
func (t *Transcriber) Transcribe(ctx context.Context, sourcePath string, duration float64, cfg job.Config) ([]job.SpeechSegment, error) {
	deadline := overallDeadline(duration)
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	workingCtx := runCtx
	segments, err := t.runWhole(runCtx, sourcePath, 0, duration, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			workingCtx = ctx
			segments, err = t.runChunked(ctx, sourcePath, duration, cfg)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, apperrors.Wrap(apperrors.ErrBackendUnavailable, "transcribe", "primary-pass", sourcePath, err)
		}
	}

	segments = t.applyRetryPass(workingCtx, sourcePath, segments, cfg)
	segments = t.applyExternalPass(workingCtx, sourcePath, segments, cfg)
	segments = normalize(segments)

	if !meetsCoverage(segments, duration) {
		return nil, apperrors.Wrap(apperrors.ErrTranscriptionUnreliable, "transcribe", "coverage", "non-placeholder coverage below floor", nil)
	}
	return segments, nil
}

func overallDeadline(duration float64) time.Duration {
	computed := time.Duration(deadlinePerSec*duration)*time.Second + deadlinePadding
	if computed < minDeadline {
		return minDeadline
	}
	return computed
}

func (t *Transcriber) runWhole(ctx context.Context, sourcePath string, start, duration float64, cfg job.Config) ([]job.SpeechSegment, error) {
	audioPath, cleanup, err := t.extractAudio(ctx, sourcePath, start, duration)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	raw, err := t.decoder.Decode(ctx, audioPath, decoder.Options{
		Model:     cfg.TranscriberModel,
		BeamWidth: cfg.TranscriberBeam,
		Language:  cfg.TranscriberLang,
		VAD:       cfg.TranscriberVAD,
	})
	if err != nil {
		return nil, err
	}
	return toSpeechSegments(raw), nil
}

// runChunked partitions the source into 5-minute windows, decoding each
// independently. Any chunk failure becomes one placeholder segment; two
// consecutive placeholder chunks abort with transcription-unreliable.
func (t *Transcriber) runChunked(ctx context.Context, sourcePath string, duration float64, cfg job.Config) ([]job.SpeechSegment, error) {
	var segments []job.SpeechSegment
	consecutivePlaceholders := 0

	chunkSeconds := chunkDuration.Seconds()
	for start := 0.0; start < duration; start += chunkSeconds {
		end := start + chunkSeconds
		if end > duration {
			end = duration
		}

		chunkCtx, cancel := context.WithTimeout(ctx, chunkDuration)
		chunk, err := t.runWhole(chunkCtx, sourcePath, start, end-start, cfg)
		cancel()

		if err != nil {
			segments = append(segments, job.SpeechSegment{Start: start, End: end, Text: "", Confidence: 0, Placeholder: true})
			consecutivePlaceholders++
			if consecutivePlaceholders >= 2 {
				return nil, apperrors.Wrap(apperrors.ErrTranscriptionUnreliable, "transcribe", "chunked-pass", "two consecutive placeholder chunks", err)
			}
			continue
		}
		consecutivePlaceholders = 0
		segments = append(segments, shiftSegments(chunk, start)...)
	}
	return segments, nil
}

func shiftSegments(segments []job.SpeechSegment, offset float64) []job.SpeechSegment {
	shifted := make([]job.SpeechSegment, len(segments))
	for i, s := range segments {
		s.Start += offset
		s.End += offset
		shifted[i] = s
	}
	return shifted
}

// applyRetryPass re-decodes every segment below cfg.RetryThreshold on a
// window expanded by 0.25s, using the retry model and beam width 5.
func (t *Transcriber) applyRetryPass(ctx context.Context, sourcePath string, segments []job.SpeechSegment, cfg job.Config) []job.SpeechSegment {
	if !cfg.HybridRetry {
		return segments
	}
	out := make([]job.SpeechSegment, len(segments))
	copy(out, segments)

	for i, seg := range out {
		if seg.Placeholder || seg.Confidence >= cfg.RetryThreshold {
			continue
		}
		expandedStart := max0(seg.Start - 0.25)
		expandedEnd := seg.End + 0.25

		audioPath, cleanup, err := t.extractAudio(ctx, sourcePath, expandedStart, expandedEnd-expandedStart)
		if err != nil {
			continue
		}
		raw, err := t.decoder.Decode(ctx, audioPath, decoder.Options{
			Model:     cfg.RetryModel,
			BeamWidth: 5,
			Language:  cfg.TranscriberLang,
			VAD:       cfg.TranscriberVAD,
		})
		cleanup()
		if err != nil || len(raw) == 0 {
			continue
		}

		best := bestCandidate(raw)
		candidate := job.SpeechSegment{Start: expandedStart + best.Start, End: expandedStart + best.End, Text: best.Text, Confidence: best.Confidence}
		if candidate.Confidence > seg.Confidence {
			out[i] = candidate
		}
	}
	return out
}

// applyExternalPass submits segments still below threshold to the hosted
// decoder in ascending confidence order, skipped entirely without a
// configured credential.
func (t *Transcriber) applyExternalPass(ctx context.Context, sourcePath string, segments []job.SpeechSegment, cfg job.Config) []job.SpeechSegment {
	if cfg.ExternalBackendKey == "" {
		return segments
	}
	client, err := t.external(cfg)
	if err != nil {
		return segments
	}

	out := make([]job.SpeechSegment, len(segments))
	copy(out, segments)

	order := make([]int, 0, len(out))
	for i, seg := range out {
		if !seg.Placeholder && seg.Confidence < cfg.RetryThreshold {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool { return out[order[a]].Confidence < out[order[b]].Confidence })

	for _, idx := range order {
		seg := out[idx]
		result, err := client.TranscribeSegment(ctx, sourcePath, seg.Start, seg.End, cfg.TranscriberLang)
		if err != nil {
			continue
		}
		if result.Confidence > seg.Confidence {
			out[idx] = job.SpeechSegment{Start: seg.Start, End: seg.End, Text: result.Text, Confidence: result.Confidence}
		}
	}
	return out
}

// normalize drops whitespace-only segments and truncates overlaps beyond
// the 50ms tolerance by shrinking the earlier segment's end.
func normalize(segments []job.SpeechSegment) []job.SpeechSegment {
	filtered := make([]job.SpeechSegment, 0, len(segments))
	for _, s := range segments {
		if s.Placeholder || trimmedNonEmpty(s.Text) {
			filtered = append(filtered, s)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Start < filtered[j].Start })

	for i := 1; i < len(filtered); i++ {
		prev := &filtered[i-1]
		cur := &filtered[i]
		overlap := prev.End - cur.Start
		if overlap > overlapTolerance {
			prev.End = cur.Start
		}
	}
	return filtered
}

func trimmedNonEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

func meetsCoverage(segments []job.SpeechSegment, duration float64) bool {
	if duration <= 0 {
		return false
	}
	var covered float64
	for _, s := range segments {
		if s.Placeholder {
			continue
		}
		covered += s.Duration()
	}
	return covered/duration >= coverageFloor
}

func toSpeechSegments(raw []decoder.Segment) []job.SpeechSegment {
	out := make([]job.SpeechSegment, 0, len(raw))
	for _, r := range raw {
		out = append(out, job.SpeechSegment{Start: r.Start, End: r.End, Text: r.Text, Confidence: r.Confidence})
	}
	return out
}

func bestCandidate(raw []decoder.Segment) decoder.Segment {
	best := raw[0]
	for _, r := range raw[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// extractAudio extracts the [start, start+duration) audio window into a
// temp WAV file and returns a cleanup func that removes it.
func (t *Transcriber) extractAudio(ctx context.Context, sourcePath string, start, duration float64) (string, func(), error) {
	f, err := os.CreateTemp("", "clipforge-audio-*.wav")
	if err != nil {
		return "", func() {}, err
	}
	path := f.Name()
	f.Close()

	if err := t.extractAudioFunc(ctx, t.ffmpegBinary, sourcePath, start, duration, path); err != nil {
		os.Remove(path)
		return "", func() {}, err
	}
	return path, func() { os.Remove(path) }, nil
}
