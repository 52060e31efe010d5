// Package hwprofile probes hardware-acceleration availability once at
// daemon startup and freezes the result into a job.HardwareProfile for the
// process lifetime (spec.md §5), grounded on the teacher's
// internal/deps.CheckBinaries dependency-detection idiom.
package hwprofile

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"clipforge/internal/job"
)

// Prober detects available hardware encoders and accelerator device nodes.
type Prober struct {
	ffmpegBinary string
	listEncoders func(ctx context.Context, binary string) (string, error)
	statPath     func(path string) bool
}

// New constructs a Prober. ffmpegBinary selects the ffmpeg executable used
// to list available encoders.
func New(ffmpegBinary string) *Prober {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Prober{
		ffmpegBinary: ffmpegBinary,
		listEncoders: listEncoders,
		statPath:     pathExists,
	}
}

// WithEncoderLister overrides the encoder-listing func, used by tests.
func (p *Prober) WithEncoderLister(fn func(ctx context.Context, binary string) (string, error)) {
	p.listEncoders = fn
}

// WithPathStat overrides the device-node existence check, used by tests.
func (p *Prober) WithPathStat(fn func(path string) bool) {
	p.statPath = fn
}

// Probe detects the best available accelerator and returns a frozen
// HardwareProfile.
func (p *Prober) Probe(ctx context.Context) job.HardwareProfile {
	encoders, _ := p.listEncoders(ctx, p.ffmpegBinary)

	switch {
	case strings.Contains(encoders, "h264_nvenc") && p.statPath("/dev/nvidia0"):
		return job.HardwareProfile{
			AcceleratorDetected:   true,
			AcceleratorName:       "nvidia",
			DecoderPrecision:      "float16",
			DecoderModelSize:      "large",
			RendererCodec:         "h264_nvenc",
			ProcessingConcurrency: 4,
			MaxParallelRenders:    4,
		}
	case strings.Contains(encoders, "h264_vaapi") && p.statPath("/dev/dri/renderD128"):
		return job.HardwareProfile{
			AcceleratorDetected:   true,
			AcceleratorName:       "vaapi",
			DecoderPrecision:      "int8",
			DecoderModelSize:      "medium",
			RendererCodec:         "h264_vaapi",
			ProcessingConcurrency: 2,
			MaxParallelRenders:    2,
		}
	case strings.Contains(encoders, "h264_videotoolbox"):
		return job.HardwareProfile{
			AcceleratorDetected:   true,
			AcceleratorName:       "videotoolbox",
			DecoderPrecision:      "float16",
			DecoderModelSize:      "medium",
			RendererCodec:         "h264_videotoolbox",
			ProcessingConcurrency: 2,
			MaxParallelRenders:    2,
		}
	default:
		return job.HardwareProfile{
			AcceleratorDetected:   false,
			AcceleratorName:       "none",
			DecoderPrecision:      "int8",
			DecoderModelSize:      "small",
			RendererCodec:         "libx264",
			ProcessingConcurrency: 1,
			MaxParallelRenders:    1,
		}
	}
}

func listEncoders(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders") //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
