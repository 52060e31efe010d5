package config

import "clipforge/internal/job"

// RequestOverrides carries the per-request fields from POST /process
// (spec.md §6) that layer on top of the process-wide Config to produce a
// Job's immutable config snapshot.
type RequestOverrides struct {
	Language       string
	TargetDuration string
	Style          string
	UseHook        bool
	AutoCaption    bool
	AspectRatio    string
}

// Snapshot builds a job.Config for a new Job, combining process-wide
// defaults, the frozen hardware profile, and this request's overrides.
func (c *Config) Snapshot(profile job.HardwareProfile, req RequestOverrides) job.Config {
	return job.Config{
		Language:       req.Language,
		TargetDuration: req.TargetDuration,
		Style:          req.Style,
		UseHook:        req.UseHook && c.Hook.Enabled,
		AutoCaption:    req.AutoCaption,
		AspectRatio:    req.AspectRatio,

		TranscriberModel: c.Transcriber.Model,
		TranscriberBeam:  c.Transcriber.Beam,
		TranscriberLang:  c.Transcriber.Lang,
		TranscriberVAD:   c.Transcriber.VAD,

		HybridRetry:        c.Hybrid.Retry,
		RetryModel:         c.Hybrid.RetryModel,
		RetryThreshold:     c.Hybrid.RetryThreshold,
		ExternalBackendKey: c.Hybrid.ExternalBackendKey,

		SceneThreshold:  c.Scene.Threshold,
		MinSceneSeconds: c.Scene.MinSeconds,
		MaxSceneSeconds: c.Scene.MaxSeconds,

		ClipMin:       c.Clip.MinSeconds,
		ClipMax:       c.Clip.MaxSeconds,
		MinClipsFloor: c.Clip.MinClipsFloor,
		MaxClips:      c.Clip.MaxClips,
		MinViral:      c.Clip.MinViral,

		TargetWidth:  c.Render.TargetWidth,
		TargetHeight: c.Render.TargetHeight,
		VideoBitrate: c.Render.VideoBitrate,
		AudioBitrate: c.Render.AudioBitrate,

		HookDuration: c.Hook.Duration,
		HookPosition: c.Hook.Position,

		SilenceRemoval: c.Silence.Removal,
		SilenceDB:      c.Silence.DB,
		MinSilence:     c.Silence.Min,
		SilencePad:     c.Silence.Pad,

		MaxParallelRenders: profile.MaxParallelRenders,
		HardwareProfile:    profile,
	}
}
