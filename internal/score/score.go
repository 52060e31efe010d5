package score

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"clipforge/internal/job"
)

const (
	axisMatchDivisor = 3.0
	fillerPerMatch   = 0.08
	fillerCap        = 0.4
	maxGapSeconds    = 3.0
)

var (
	terminalPunctuation = regexp.MustCompile(`[.!?…]\s*$`)
	sentenceEnd         = regexp.MustCompile(`[.!?…]`)
	wordPattern         = regexp.MustCompile(`[A-Za-zÀ-ÖØ-öø-ÿ']+`)
)

const maxHookChars = 90

// Scorer scores Candidates with a language-specific Lexicon.
type Scorer struct {
	lexicon Lexicon
}

// New constructs a Scorer bound to lexicon.
func New(lexicon Lexicon) *Scorer {
	return &Scorer{lexicon: lexicon}
}

// Score computes axis scores, composites, category, context-completeness,
// and rationale for candidate, returning the updated Candidate (spec.md
// §4.E). SpeechSegments is passed to evaluate the no-speech-gap-over-3s
// completeness condition.
func (s *Scorer) Score(candidate job.Candidate, cfg job.Config, segments []job.SpeechSegment) job.Candidate {
	words := wordPattern.FindAllString(strings.ToLower(candidate.Text), -1)

	axes := job.AxisScores{
		Hook:          rawAxisScore(words, s.lexicon.Hook),
		Emotional:     rawAxisScore(words, s.lexicon.Emotional),
		Controversial: rawAxisScore(words, s.lexicon.Controversial),
		Educational:   rawAxisScore(words, s.lexicon.Educational),
		Entertaining:  rawAxisScore(words, s.lexicon.Entertaining),
		Money:         rawAxisScore(words, s.lexicon.Money),
		Urgency:       rawAxisScore(words, s.lexicon.Urgency),
		FillerPenalty: fillerPenalty(words, s.lexicon.Filler),

		HasQuestion:    strings.Contains(candidate.Text, "?"),
		HasNumber:      containsDigit(candidate.Text),
		HasExclamation: strings.Contains(candidate.Text, "!"),
	}

	axes.AudioEngagement = audioEngagement(axes)
	axes.VisualEngagement = visualEngagement(candidate.Scene)

	candidate.Audio = axes
	candidate.Category = categoryOf(axes)
	candidate.ContextComplete = isContextComplete(candidate, s.lexicon, segments)

	viral := clamp01(viralScore(axes, candidate.Duration(), cfg.Style, categoryRawScores(axes)))
	if !candidate.ContextComplete {
		viral *= 0.6
	}
	candidate.Viral = viral
	candidate.Rationale = rationale(axes, candidate.Scene, candidate.Category)
	candidate.HookText = deriveHookText(candidate.Text)

	return candidate
}

// deriveHookText extracts the candidate's opening statement for the hook
// overlay (spec.md's glossary: "a short opening statement intended to
// capture attention in the first few seconds"): the first sentence, or a
// word-boundary-safe character cap when the text runs on without terminal
// punctuation.
func deriveHookText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		if excerpt := strings.TrimSpace(text[:loc[1]]); len(excerpt) <= maxHookChars {
			return excerpt
		}
	}
	return truncateToWordBoundary(text, maxHookChars)
}

func truncateToWordBoundary(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

func rawAxisScore(words []string, lexicon []string) float64 {
	if len(lexicon) == 0 {
		return 0
	}
	matches := countMatches(words, lexicon)
	return clamp01(float64(matches) / axisMatchDivisor)
}

func fillerPenalty(words []string, lexicon []string) float64 {
	matches := countMatches(words, lexicon)
	penalty := fillerPerMatch * float64(matches)
	if penalty > fillerCap {
		penalty = fillerCap
	}
	return penalty
}

func countMatches(words []string, lexicon []string) int {
	set := make(map[string]bool, len(lexicon))
	for _, entry := range lexicon {
		set[strings.ToLower(strings.TrimSpace(entry))] = true
	}
	count := 0
	for _, w := range words {
		if set[w] {
			count++
		}
	}
	// Multi-word lexicon entries (e.g. "here's why") never appear as single
	// tokenized words; match them against the joined lowercase text too.
	joined := strings.Join(words, " ")
	for entry := range set {
		if strings.Contains(entry, " ") && strings.Contains(joined, entry) {
			count++
		}
	}
	return count
}

func containsDigit(text string) bool {
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// audioEngagement implements spec.md §4.E's weighted composite, clipped to
// [0,1].
func audioEngagement(a job.AxisScores) float64 {
	score := 0.25*a.Hook + 0.18*a.Emotional + 0.12*a.Controversial + 0.12*a.Educational +
		0.12*a.Entertaining + 0.15*a.Money + 0.15*a.Urgency +
		0.05*boolToFloat(a.HasQuestion) + 0.05*boolToFloat(a.HasNumber) + 0.05*boolToFloat(a.HasExclamation) -
		a.FillerPenalty
	return clamp01(score)
}

// visualEngagement implements spec.md §4.E's visual composite, with the
// closeup and high-motion bonuses.
func visualEngagement(scene job.Scene) float64 {
	score := 0.5*scene.FaceRatio + 0.3*scene.Motion + 0.2*scene.Brightness
	if scene.FaceRatio > 0.5 {
		score += 0.08
	}
	if scene.Motion > 0.6 {
		score += 0.08
	}
	return clamp01(score)
}

func pacingBonus(duration float64) float64 {
	switch {
	case duration <= 15:
		return 0.15
	case duration <= 25:
		return 0.10
	default:
		return 0.05
	}
}

func styleBonus(styleName string, categoryScores map[string]float64) float64 {
	axis, ok := categoryScores[styleName]
	if !ok {
		return 0
	}
	return 0.10 * axis
}

func categoryRawScores(a job.AxisScores) map[string]float64 {
	return map[string]float64{
		"funny":         a.Entertaining,
		"educational":   a.Educational,
		"dramatic":      a.Emotional,
		"controversial": a.Controversial,
	}
}

func viralScore(a job.AxisScores, duration float64, style string, categoryScores map[string]float64) float64 {
	score := 0.35*a.Hook + 0.25*a.AudioEngagement + 0.25*a.VisualEngagement +
		pacingBonus(duration) + styleBonus(style, categoryScores)
	return score
}

const categoryFloor = 0.3

func categoryOf(a job.AxisScores) string {
	type entry struct {
		name  string
		score float64
	}
	candidates := []entry{
		{"educational", a.Educational},
		{"entertaining", a.Entertaining},
		{"emotional", a.Emotional},
		{"controversial", a.Controversial},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	if best.score < categoryFloor {
		return "balanced"
	}
	return best.name
}

func isContextComplete(c job.Candidate, lex Lexicon, segments []job.SpeechSegment) bool {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return false
	}
	if !startsAtSentenceBoundary(text, lex.Transitions) {
		return false
	}
	if !endsTerminally(text, lex.ConclusionPhrases) {
		return false
	}
	if !durationInRange(c.Duration()) {
		return false
	}
	if hasLargeSpeechGap(c.Start, c.End, segments) {
		return false
	}
	if !hasContentWord(text, lex.Filler) {
		return false
	}
	return true
}

func startsAtSentenceBoundary(text string, transitions []string) bool {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return false
	}
	first := words[0]
	for _, t := range transitions {
		if strings.EqualFold(strings.TrimSpace(t), first) {
			return false
		}
	}
	return true
}

func endsTerminally(text string, conclusions []string) bool {
	if terminalPunctuation.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range conclusions {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(phrase))) {
			return true
		}
	}
	return false
}

func durationInRange(duration float64) bool {
	// Clip-range membership is enforced by the Selector's duration-class
	// filter (spec.md §4.F); here the completeness check only rejects
	// degenerate zero/negative spans.
	return duration > 0
}

func hasLargeSpeechGap(start, end float64, segments []job.SpeechSegment) bool {
	relevant := make([]job.SpeechSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.End <= start || seg.Start >= end {
			continue
		}
		relevant = append(relevant, seg)
	}
	if len(relevant) == 0 {
		return false
	}
	sort.Slice(relevant, func(i, j int) bool { return relevant[i].Start < relevant[j].Start })

	cursor := start
	for _, seg := range relevant {
		segStart := seg.Start
		if segStart < start {
			segStart = start
		}
		if segStart-cursor > maxGapSeconds {
			return true
		}
		segEnd := seg.End
		if segEnd > end {
			segEnd = end
		}
		if segEnd > cursor {
			cursor = segEnd
		}
	}
	return end-cursor > maxGapSeconds
}

func hasContentWord(text string, filler []string) bool {
	fillerSet := make(map[string]bool, len(filler))
	for _, f := range filler {
		fillerSet[strings.ToLower(strings.TrimSpace(f))] = true
	}
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if !fillerSet[w] {
			return true
		}
	}
	return false
}

// rationale builds a deterministic short-phrase summary from whichever
// axes exceed 0.5, in a fixed priority order, so identical inputs always
// produce identical output.
func rationale(a job.AxisScores, scene job.Scene, category string) string {
	type phrase struct {
		active bool
		text   string
	}
	phrases := []phrase{
		{a.Hook > 0.5, "strong hook"},
		{a.Emotional > 0.5, "emotional content"},
		{a.Controversial > 0.5, "controversial angle"},
		{a.Educational > 0.5, "educational value"},
		{a.Entertaining > 0.5, "entertaining delivery"},
		{a.Money > 0.5, "money talk"},
		{a.Urgency > 0.5, "urgency"},
		{scene.FaceRatio > 0.5, "closeup speaker"},
		{scene.Motion > 0.6, "dynamic motion"},
	}
	var parts []string
	for _, p := range phrases {
		if p.active {
			parts = append(parts, p.text)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("balanced %s moment", category)
	}
	return strings.Join(parts, " + ")
}

// Less orders two Candidates by viral_score descending, breaking ties by
// higher hook_axis then earlier start, per spec.md §4.E.
func Less(a, b job.Candidate) bool {
	if a.Viral != b.Viral {
		return a.Viral > b.Viral
	}
	if a.Audio.Hook != b.Audio.Hook {
		return a.Audio.Hook > b.Audio.Hook
	}
	return a.Start < b.Start
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
