package apperrors_test

import (
	"errors"
	"strings"
	"testing"

	"clipforge/internal/apperrors"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := apperrors.Wrap(apperrors.ErrRenderFailed, "render", "encode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, apperrors.ErrRenderFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "encode", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{apperrors.ErrUnreadableMedia, "unreadable-media"},
		{apperrors.ErrSourceTooLarge, "source-too-large"},
		{apperrors.ErrTranscriptionUnreliable, "transcription-unreliable"},
		{apperrors.ErrVisualAnalysisFailed, "visual-analysis-failed"},
		{apperrors.ErrInsufficientMaterial, "insufficient-material"},
		{apperrors.ErrRenderFailed, "render-failed-all"},
		{apperrors.ErrBackendUnavailable, "backend-unavailable"},
		{apperrors.ErrCancelled, "cancelled"},
	}
	for _, tc := range cases {
		wrapped := apperrors.Wrap(tc.err, "stage", "op", "msg", nil)
		if got := apperrors.Kind(wrapped); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if got := apperrors.Kind(errors.New("mystery")); got != "internal" {
		t.Errorf("Kind(unknown) = %q, want internal", got)
	}
	if got := apperrors.Kind(nil); got != "" {
		t.Errorf("Kind(nil) = %q, want empty", got)
	}
}

func TestTerminalClassification(t *testing.T) {
	if apperrors.Terminal(nil) {
		t.Error("nil should not be terminal")
	}
	transient := apperrors.Wrap(apperrors.ErrTransient, "fetch", "download", "reset", nil)
	if apperrors.Terminal(transient) {
		t.Error("transient failure should not be terminal")
	}
	if !apperrors.Terminal(apperrors.ErrInsufficientMaterial) {
		t.Error("insufficient material should be terminal")
	}
}
