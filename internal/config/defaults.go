package config

const (
	defaultDataDir = "~/.local/share/clipforge/data"
	defaultLogDir  = "~/.local/share/clipforge/logs"
	defaultAPIBind = "127.0.0.1:8787"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultMaxSourceSize       = 2 << 30 // 2 GiB
	defaultMaxSourceDuration   = 3600
	defaultProcessingCooldown  = 1

	defaultTranscriberModel = "medium"
	defaultTranscriberBeam  = 5
	defaultTranscriberLang  = "auto"

	defaultRetryModel     = "large"
	defaultRetryThreshold = 0.7

	defaultSceneThreshold  = 12.0
	defaultMinSceneSeconds = 3.0
	defaultMaxSceneSeconds = 60.0

	defaultClipMin       = 9.0
	defaultClipMax       = 50.0
	defaultMinClipsFloor = 5
	defaultMaxClips      = 20
	defaultMinViral      = 0.08

	defaultTargetWidth  = 1920
	defaultTargetHeight = 1080
	defaultVideoBitrate = "4M"
	defaultAudioBitrate = "192k"

	defaultHookDuration = 4.0
	defaultHookPosition = "center"

	defaultSilenceDB  = -35.0
	defaultMinSilence = 0.4
	defaultSilencePad = 0.05

	defaultMaxParallelRenders = 2
)

// Default returns a Config populated with spec.md §6's documented defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Processing: Processing{
			Concurrency:     1,
			CooldownSeconds: defaultProcessingCooldown,
		},
		Source: Source{
			MaxSizeBytes:       defaultMaxSourceSize,
			MaxDurationSeconds: defaultMaxSourceDuration,
		},
		Transcriber: Transcriber{
			Model: defaultTranscriberModel,
			Beam:  defaultTranscriberBeam,
			Lang:  defaultTranscriberLang,
			VAD:   true,
		},
		Hybrid: Hybrid{
			Retry:          true,
			RetryModel:     defaultRetryModel,
			RetryThreshold: defaultRetryThreshold,
		},
		Scene: Scene{
			Threshold:  defaultSceneThreshold,
			MinSeconds: defaultMinSceneSeconds,
			MaxSeconds: defaultMaxSceneSeconds,
		},
		Clip: Clip{
			MinSeconds:    defaultClipMin,
			MaxSeconds:    defaultClipMax,
			MinClipsFloor: defaultMinClipsFloor,
			MaxClips:      defaultMaxClips,
			MinViral:      defaultMinViral,
		},
		Render: Render{
			TargetWidth:  defaultTargetWidth,
			TargetHeight: defaultTargetHeight,
			VideoBitrate: defaultVideoBitrate,
			AudioBitrate: defaultAudioBitrate,
			MaxParallel:  defaultMaxParallelRenders,
		},
		Hook: Hook{
			Enabled:  true,
			Duration: defaultHookDuration,
			Position: defaultHookPosition,
		},
		Silence: Silence{
			Removal: false,
			DB:      defaultSilenceDB,
			Min:     defaultMinSilence,
			Pad:     defaultSilencePad,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
