package config

import "fmt"

// Validate enforces the invariants spec.md §3/§6 rely on: configured clip
// bounds must admit at least MIN_CLIP_SECONDS ≥ 5s, and concurrency/scene
// knobs must be positive.
func (c *Config) Validate() error {
	if c.Clip.MinSeconds < 5 {
		return fmt.Errorf("clip.min_seconds must be >= 5, got %v", c.Clip.MinSeconds)
	}
	if c.Clip.MaxSeconds < c.Clip.MinSeconds {
		return fmt.Errorf("clip.max_seconds (%v) must be >= clip.min_seconds (%v)", c.Clip.MaxSeconds, c.Clip.MinSeconds)
	}
	if c.Clip.MinClipsFloor < 1 {
		return fmt.Errorf("clip.min_clips_floor must be >= 1, got %d", c.Clip.MinClipsFloor)
	}
	if c.Clip.MaxClips < c.Clip.MinClipsFloor {
		return fmt.Errorf("clip.max_clips (%d) must be >= clip.min_clips_floor (%d)", c.Clip.MaxClips, c.Clip.MinClipsFloor)
	}
	if c.Processing.Concurrency < 1 {
		return fmt.Errorf("processing.concurrency must be >= 1, got %d", c.Processing.Concurrency)
	}
	if c.Scene.MinSeconds <= 0 || c.Scene.MaxSeconds < c.Scene.MinSeconds {
		return fmt.Errorf("scene.min_seconds/max_seconds invalid: %v/%v", c.Scene.MinSeconds, c.Scene.MaxSeconds)
	}
	if c.Render.MaxParallel < 1 {
		return fmt.Errorf("render.max_parallel_renders must be >= 1, got %d", c.Render.MaxParallel)
	}
	return nil
}
