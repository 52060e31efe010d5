// Package config loads clipforge's TOML configuration file and overlays it
// with the environment-variable knob table from spec.md §6, producing a
// validated, path-expanded Config.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind-address configuration. DataDir is the
// single root spec.md §4.J's fixed on-disk layout is built under
// (<root>/uploads, <root>/outputs); LogDir is independent since daemon logs
// and the job journal aren't part of that layout.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Processing contains the Job Coordinator's scheduling knobs (spec.md §4.H, §5).
type Processing struct {
	Concurrency     int `toml:"concurrency"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// Source contains Fetcher/upload admission limits (spec.md §4.I).
type Source struct {
	MaxSizeBytes       int64 `toml:"max_size_bytes"`
	MaxDurationSeconds int   `toml:"max_duration_seconds"`
}

// Transcriber contains the primary-pass decoder knobs (spec.md §4.B).
type Transcriber struct {
	Model string `toml:"model"`
	Beam  int    `toml:"beam"`
	Lang  string `toml:"lang"`
	VAD   bool   `toml:"vad"`
}

// Hybrid contains the retry-pass and external-backend knobs (spec.md §4.B).
type Hybrid struct {
	Retry              bool    `toml:"retry"`
	RetryModel         string  `toml:"retry_model"`
	RetryThreshold     float64 `toml:"retry_threshold"`
	ExternalBackendKey string  `toml:"external_backend_key"`
}

// Scene contains Visual Analyzer boundary-detection knobs (spec.md §4.C).
type Scene struct {
	Threshold   float64 `toml:"threshold"`
	MinSeconds  float64 `toml:"min_seconds"`
	MaxSeconds  float64 `toml:"max_seconds"`
}

// Clip contains Selector duration-class and floor knobs (spec.md §4.F).
type Clip struct {
	MinSeconds    float64 `toml:"min_seconds"`
	MaxSeconds    float64 `toml:"max_seconds"`
	MinClipsFloor int     `toml:"min_clips_floor"`
	MaxClips      int     `toml:"max_clips"`
	MinViral      float64 `toml:"min_viral"`
}

// Render contains Renderer target-format knobs (spec.md §4.G).
type Render struct {
	TargetWidth  int    `toml:"target_width"`
	TargetHeight int    `toml:"target_height"`
	VideoBitrate string `toml:"video_bitrate"`
	AudioBitrate string `toml:"audio_bitrate"`
	MaxParallel  int    `toml:"max_parallel_renders"`
}

// Hook contains the opening-hook overlay knobs (spec.md §4.G).
type Hook struct {
	Enabled  bool    `toml:"enabled"`
	Duration float64 `toml:"duration"`
	Position string  `toml:"position"`
}

// Silence contains the silence-compaction knobs (spec.md §4.G).
type Silence struct {
	Removal bool    `toml:"removal"`
	DB      float64 `toml:"db"`
	Min     float64 `toml:"min"`
	Pad     float64 `toml:"pad"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipforge, mirroring the
// environment-variable table in spec.md §6 with a TOML file providing
// ambient defaults and directory layout underneath it.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Processing  Processing  `toml:"processing"`
	Source      Source      `toml:"source"`
	Transcriber Transcriber `toml:"transcriber"`
	Hybrid      Hybrid      `toml:"hybrid"`
	Scene       Scene       `toml:"scene"`
	Clip        Clip        `toml:"clip"`
	Render      Render      `toml:"render"`
	Hook        Hook        `toml:"hook"`
	Silence     Silence     `toml:"silence"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file, then applies the
// environment-variable overlay from spec.md §6. The returned Config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverlay()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/clipforge/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories clipforge writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used by Media Probe.
func (c *Config) FFprobeBinary() string { return "ffprobe" }

// FFmpegBinary returns the ffmpeg executable name used by the Renderer and
// Visual Analyzer's sampling step.
func (c *Config) FFmpegBinary() string { return "ffmpeg" }

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
