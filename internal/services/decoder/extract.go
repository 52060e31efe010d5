package decoder

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExtractAudio extracts a mono 16kHz WAV window from source, suitable for
// decoder input, following the teacher's ffmpeg-extract idiom.
func ExtractAudio(ctx context.Context, ffmpegBinary, source string, startSec, durationSec float64, dest string) error {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if startSec > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSec))
	}
	if durationSec > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", durationSec))
	}
	args = append(args,
		"-i", source,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
