package render

import (
	"fmt"
	"strings"

	"clipforge/internal/job"
)

// BuildCaptions renders an SRT-style timed-text sidecar covering the speech
// overlapping [clipStart, clipEnd), with timestamps re-based to clip-local
// time (spec.md §4.G/§6). Grounded on forPelevin-hlcut's assTime helper,
// adapted from ASS centiseconds to SRT's "HH:MM:SS,mmm" format.
func BuildCaptions(clipStart, clipEnd float64, segments []job.SpeechSegment) string {
	var b strings.Builder
	index := 1
	for _, seg := range segments {
		if seg.Placeholder {
			continue
		}
		start := seg.Start
		end := seg.End
		if end <= clipStart || start >= clipEnd {
			continue
		}
		if start < clipStart {
			start = clipStart
		}
		if end > clipEnd {
			end = clipEnd
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			index, srtTime(start-clipStart), srtTime(end-clipStart), text)
		index++
	}
	return b.String()
}

// srtTime formats a clip-local offset in seconds as SRT's
// "HH:MM:SS,mmm" timestamp.
func srtTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1_000
	millis := totalMillis - secs*1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
