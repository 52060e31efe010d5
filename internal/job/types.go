// Package job defines the clipforge data model — SourceVideo, SpeechSegment,
// Scene, Candidate, Clip, Job — and the SQLite-backed Store that journals Job
// state for restart recovery.
package job

import "time"

// Status is the public lifecycle of a Job, pinned to the four values
// spec.md §3 allows: queued, running, completed, error.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// SourceVideo is immutable after admission; identified by a storage-unique
// name (its SourceID).
type SourceVideo struct {
	SourceID string
	Path     string
	Duration float64
	FPS      float64
	Width    int
	Height   int
	Codec    string
}

// SpeechSegment is produced by the Transcriber. Segments are sorted by
// Start; no two segments of the same Job overlap by more than 50ms.
type SpeechSegment struct {
	Start       float64
	End         float64
	Text        string
	Confidence  float64
	Language    string
	Placeholder bool
}

// Duration returns End - Start.
func (s SpeechSegment) Duration() float64 { return s.End - s.Start }

// Scene is produced by the Visual Analyzer. Synthetic marks a boundary
// fabricated by monolog synthesis rather than detected from the frame
// stream.
type Scene struct {
	Start      float64
	End        float64
	FaceRatio  float64
	Motion     float64
	Brightness float64
	Synthetic  bool
}

// Duration returns End - Start.
func (s Scene) Duration() float64 { return s.End - s.Start }

// AxisScores holds the Scorer's independent per-axis raw scores plus the
// composite values derived from them.
type AxisScores struct {
	Hook          float64
	Emotional     float64
	Controversial float64
	Educational   float64
	Entertaining  float64
	Money         float64
	Urgency       float64
	FillerPenalty float64

	HasQuestion    bool
	HasNumber      bool
	HasExclamation bool

	AudioEngagement  float64
	VisualEngagement float64
}

// Candidate is one merged scene x speech window, scored and ready for
// selection.
type Candidate struct {
	Start    float64
	End      float64
	Text     string
	Scene    Scene
	Audio    AxisScores
	Viral    float64
	Category string
	Rationale string

	ContextComplete bool
	Fallback        bool

	HookText string
}

// Duration returns End - Start.
func (c Candidate) Duration() float64 { return c.End - c.Start }

// ViralTier buckets a viral score into the spec's coarse tiers.
func ViralTier(score float64) string {
	switch {
	case score >= 0.75:
		return "high"
	case score >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// Clip is a Candidate that has been rendered to a media file.
type Clip struct {
	Candidate

	Index         int
	OutputPath    string
	RenderedDur   float64
	CaptionPath   string
	Tier          string
}

// Config is the per-Job config snapshot: spec.md §6's environment-variable
// knob table plus the frozen hardware-adaptation profile from §5.
type Config struct {
	Language      string
	TargetDuration string // duration_class: short|medium|long|extended|any
	Style          string // funny|educational|dramatic|controversial|balanced
	UseHook        bool
	AutoCaption    bool
	AspectRatio    string // "16:9" or "9:16"

	TranscriberModel string
	TranscriberBeam  int
	TranscriberLang  string
	TranscriberVAD   bool

	HybridRetry        bool
	RetryModel         string
	RetryThreshold     float64
	ExternalBackendKey string

	SceneThreshold   float64
	MinSceneSeconds  float64
	MaxSceneSeconds  float64

	ClipMin       float64
	ClipMax       float64
	MinClipsFloor int
	MaxClips      int
	MinViral      float64

	TargetWidth   int
	TargetHeight  int
	VideoBitrate  string
	AudioBitrate  string

	HookDuration float64
	HookPosition string

	SilenceRemoval bool
	SilenceDB      float64
	MinSilence     float64
	SilencePad     float64

	MaxParallelRenders int

	HardwareProfile HardwareProfile
}

// HardwareProfile is the hardware-adaptation probe result, frozen for the
// process lifetime and embedded verbatim in every Job's config snapshot.
type HardwareProfile struct {
	AcceleratorDetected bool
	AcceleratorName     string
	DecoderPrecision    string // float16 | int8
	DecoderModelSize    string
	RendererCodec       string // hardware codec name, or software fallback
	ProcessingConcurrency int
	MaxParallelRenders    int
}

// LogEntry is one entry in a Job's bounded log ring.
type LogEntry struct {
	Time    time.Time
	Message string
}

// Job is the single process-wide mutable unit the Coordinator manages.
type Job struct {
	ID       string
	SourceID string
	Config   Config

	Status    Status
	Progress  float64
	Message   string
	ErrorKind string

	Log   []LogEntry
	Clips []Clip

	Cancelled bool

	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const logRingSize = 10

// AppendLog appends a message to the bounded log ring, dropping the oldest
// entry once the ring is full.
func (j *Job) AppendLog(msg string) {
	j.Log = append(j.Log, LogEntry{Time: time.Now().UTC(), Message: msg})
	if len(j.Log) > logRingSize {
		j.Log = j.Log[len(j.Log)-logRingSize:]
	}
}

// SetProgress advances progress monotonically; a regression is ignored
// rather than rejected so a racing stage can never walk progress backward.
func (j *Job) SetProgress(percent float64, message string) {
	if percent > j.Progress {
		j.Progress = percent
	}
	if message != "" {
		j.Message = message
	}
	j.LastActivity = time.Now().UTC()
}
