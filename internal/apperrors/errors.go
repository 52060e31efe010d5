// Package apperrors supplies the sentinel error kinds clipforge classifies
// job failures against, plus a Wrap helper that attaches stage/operation
// context without losing the sentinel for errors.Is checks.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnreadableMedia         = errors.New("unreadable media")
	ErrSourceTooLarge          = errors.New("source exceeds configured limits")
	ErrTranscriptionUnreliable = errors.New("transcription unreliable")
	ErrVisualAnalysisFailed    = errors.New("visual analysis failed")
	ErrInsufficientMaterial    = errors.New("insufficient material for clips")
	ErrRenderFailed            = errors.New("render failed for all candidates")
	ErrBackendUnavailable      = errors.New("external backend unavailable")
	ErrCancelled               = errors.New("job cancelled")
	ErrInternal                = errors.New("internal error")

	// ErrTransient marks failures worth retrying (network blips, timeouts);
	// ErrValidation marks failures that will never succeed on retry.
	ErrTransient  = errors.New("transient failure")
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error that carries stage/operation context while keeping
// marker reachable via errors.Is. marker should be one of the sentinels
// above; it defaults to ErrInternal when nil.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Terminal reports whether err represents a failure that should move a Job
// straight to the error status rather than be retried.
func Terminal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrTransient):
		return false
	case errors.Is(err, ErrCancelled):
		return true
	default:
		return true
	}
}

// Kind returns the error-kind string spec.md §6/§7 expects in metadata.json
// and API error envelopes, or "internal" when err does not match a known
// sentinel.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreadableMedia):
		return "unreadable-media"
	case errors.Is(err, ErrSourceTooLarge):
		return "source-too-large"
	case errors.Is(err, ErrTranscriptionUnreliable):
		return "transcription-unreliable"
	case errors.Is(err, ErrVisualAnalysisFailed):
		return "visual-analysis-failed"
	case errors.Is(err, ErrInsufficientMaterial):
		return "insufficient-material"
	case errors.Is(err, ErrRenderFailed):
		return "render-failed-all"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend-unavailable"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}
