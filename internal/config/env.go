package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverlay overrides TOML-sourced values with the environment
// variable table from spec.md §6. Every knob is optional; an unset or
// unparseable variable leaves the existing value untouched.
func (c *Config) applyEnvOverlay() {
	envInt(&c.Processing.Concurrency, "PROCESSING_CONCURRENCY")
	envDurationSeconds(&c.Processing.CooldownSeconds, "PROCESSING_COOLDOWN")

	envBytes(&c.Source.MaxSizeBytes, "MAX_SOURCE_SIZE")
	envDurationSeconds(&c.Source.MaxDurationSeconds, "MAX_SOURCE_DURATION")

	envString(&c.Transcriber.Model, "TRANSCRIBER_MODEL")
	envInt(&c.Transcriber.Beam, "TRANSCRIBER_BEAM")
	envString(&c.Transcriber.Lang, "TRANSCRIBER_LANG")
	envBool(&c.Transcriber.VAD, "TRANSCRIBER_VAD")

	envBool(&c.Hybrid.Retry, "HYBRID_RETRY")
	envString(&c.Hybrid.RetryModel, "RETRY_MODEL")
	envFloat(&c.Hybrid.RetryThreshold, "RETRY_THRESHOLD")
	envString(&c.Hybrid.ExternalBackendKey, "EXTERNAL_BACKEND_KEY")

	envFloat(&c.Scene.Threshold, "SCENE_THRESHOLD")
	envFloat(&c.Scene.MinSeconds, "MIN_SCENE_SECONDS")
	envFloat(&c.Scene.MaxSeconds, "MAX_SCENE_SECONDS")

	envFloat(&c.Clip.MinSeconds, "CLIP_MIN")
	envFloat(&c.Clip.MaxSeconds, "CLIP_MAX")
	envInt(&c.Clip.MinClipsFloor, "MIN_CLIPS_FLOOR")
	envInt(&c.Clip.MaxClips, "MAX_CLIPS")
	envFloat(&c.Clip.MinViral, "MIN_VIRAL")

	envInt(&c.Render.TargetWidth, "TARGET_WIDTH")
	envInt(&c.Render.TargetHeight, "TARGET_HEIGHT")
	envString(&c.Render.VideoBitrate, "VIDEO_BITRATE")
	envString(&c.Render.AudioBitrate, "AUDIO_BITRATE")
	envInt(&c.Render.MaxParallel, "MAX_PARALLEL_RENDERS")

	envBool(&c.Hook.Enabled, "HOOK_ENABLED")
	envFloat(&c.Hook.Duration, "HOOK_DURATION")
	envString(&c.Hook.Position, "HOOK_POSITION")

	envBool(&c.Silence.Removal, "SILENCE_REMOVAL")
	envFloat(&c.Silence.DB, "SILENCE_DB")
	envFloat(&c.Silence.Min, "MIN_SILENCE")
	envFloat(&c.Silence.Pad, "SILENCE_PAD")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		*dst = parsed
	}
}

func envInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = parsed
	}
}

func envFloat(dst *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		*dst = parsed
	}
}

// envDurationSeconds parses values like "1s" or bare integers ("1") into a
// whole number of seconds, matching spec.md §6's "1s"-style defaults.
func envDurationSeconds(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "s")
	if parsed, err := strconv.Atoi(v); err == nil {
		*dst = parsed
	}
}

// envBytes parses values like "2GiB", "500MiB", or a bare byte count into
// int64 bytes, matching spec.md §6's MAX_SOURCE_SIZE default.
func envBytes(dst *int64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	multiplier := int64(1)
	upper := strings.ToUpper(v)
	switch {
	case strings.HasSuffix(upper, "GIB"):
		multiplier = 1 << 30
		v = v[:len(v)-3]
	case strings.HasSuffix(upper, "MIB"):
		multiplier = 1 << 20
		v = v[:len(v)-3]
	case strings.HasSuffix(upper, "KIB"):
		multiplier = 1 << 10
		v = v[:len(v)-3]
	}
	if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		*dst = parsed * multiplier
	}
}
