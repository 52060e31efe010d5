package score

import (
	"testing"

	"clipforge/internal/job"
)

func testLexicon() Lexicon {
	return Lexicon{
		Language:          "en",
		Hook:              []string{"secret", "never", "here's why"},
		Emotional:         []string{"love", "afraid"},
		Controversial:     []string{"wrong", "myth"},
		Educational:       []string{"because", "step"},
		Entertaining:      []string{"hilarious", "crazy"},
		Money:             []string{"money", "discount"},
		Urgency:           []string{"now", "urgent"},
		Filler:            []string{"um", "uh", "like"},
		Transitions:       []string{"and", "but", "so"},
		ConclusionPhrases: []string{"that's it", "in conclusion"},
	}
}

func TestRawAxisScoreScalesWithMatches(t *testing.T) {
	words := []string{"this", "is", "the", "secret", "never", "told"}
	got := rawAxisScore(words, []string{"secret", "never"})
	want := 2.0 / 3.0
	if got != want {
		t.Fatalf("expected 2 matches / 3, got %v want %v", got, want)
	}
}

func TestRawAxisScoreClampsAtOne(t *testing.T) {
	words := []string{"secret", "secret", "secret", "secret"}
	got := rawAxisScore(words, []string{"secret"})
	if got != 1.0 {
		t.Fatalf("expected score clamped to 1.0, got %v", got)
	}
}

func TestFillerPenaltyCapsAt04(t *testing.T) {
	words := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		words = append(words, "um")
	}
	got := fillerPenalty(words, []string{"um"})
	if got != 0.4 {
		t.Fatalf("expected filler penalty capped at 0.4, got %v", got)
	}
}

func TestScoreAssignsCategoryFromMaxAxis(t *testing.T) {
	s := New(testLexicon())
	candidate := job.Candidate{
		Start: 0, End: 20,
		Text:  "because this works, because that works, because step one matters.",
		Scene: job.Scene{},
	}
	scored := s.Score(candidate, job.Config{Style: "balanced"}, nil)
	if scored.Category != "educational" {
		t.Fatalf("expected educational category, got %q", scored.Category)
	}
}

func TestScoreDefaultsToBalancedBelowFloor(t *testing.T) {
	s := New(testLexicon())
	candidate := job.Candidate{Start: 0, End: 10, Text: "a plain sentence with nothing special in it."}
	scored := s.Score(candidate, job.Config{Style: "balanced"}, nil)
	if scored.Category != "balanced" {
		t.Fatalf("expected balanced category, got %q", scored.Category)
	}
}

func TestVisualEngagementAppliesCloseupAndMotionBonuses(t *testing.T) {
	scene := job.Scene{FaceRatio: 0.9, Motion: 0.8, Brightness: 0.5}
	got := visualEngagement(scene)
	base := 0.5*0.9 + 0.3*0.8 + 0.2*0.5 + 0.08 + 0.08
	if diff := got - clamp01(base); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected %v, got %v", clamp01(base), got)
	}
}

func TestPacingBonusTiers(t *testing.T) {
	cases := map[float64]float64{10: 0.15, 15: 0.15, 20: 0.10, 25: 0.10, 45: 0.05}
	for duration, want := range cases {
		if got := pacingBonus(duration); got != want {
			t.Fatalf("pacingBonus(%v) = %v, want %v", duration, got, want)
		}
	}
}

func TestContextCompletenessPenaltyAppliesToClampedScore(t *testing.T) {
	// Every axis driven to its ceiling pushes the raw pre-clamp viral score
	// to ~1.10 (0.35 hook + 0.25 audio + 0.25 visual + 0.15 pacing + 0.10
	// style bonus). Starting the text with a transition word ("and") marks
	// the candidate incomplete. The penalty must multiply the *clamped*
	// score, so the result is exactly 0.6, not 0.6*1.10=0.66.
	s := New(testLexicon())
	text := "and secret secret secret love love love wrong wrong wrong " +
		"because because because hilarious hilarious hilarious money money money now now now 1 ? !"
	candidate := job.Candidate{
		Start: 0, End: 10,
		Text:  text,
		Scene: job.Scene{FaceRatio: 1, Motion: 1, Brightness: 1},
	}
	cfg := job.Config{Style: "funny"}

	scored := s.Score(candidate, cfg, nil)

	if scored.ContextComplete {
		t.Fatal("expected candidate starting with a transition word to be incomplete")
	}
	if diff := scored.Viral - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected viral score clamped to 1.0 before the 0.6 penalty, got %v", scored.Viral)
	}
}

func TestContextCompletenessPenalizesViralScore(t *testing.T) {
	s := New(testLexicon())
	cfg := job.Config{Style: "balanced"}

	complete := job.Candidate{
		Start: 0, End: 12,
		Text: "secret tip because it works. that's it.",
	}
	scoredComplete := s.Score(complete, cfg, nil)

	incomplete := job.Candidate{
		Start: 0, End: 12,
		Text: "and secret tip because it works without an ending",
	}
	scoredIncomplete := s.Score(incomplete, cfg, nil)

	if scoredIncomplete.ContextComplete {
		t.Fatal("expected candidate starting with a transition word to be incomplete")
	}
	if scoredComplete.Viral <= scoredIncomplete.Viral {
		t.Fatalf("expected completeness penalty to lower incomplete viral score: complete=%v incomplete=%v",
			scoredComplete.Viral, scoredIncomplete.Viral)
	}
}

func TestScoreDerivesHookTextFromFirstSentence(t *testing.T) {
	s := New(testLexicon())
	candidate := job.Candidate{
		Start: 0, End: 12,
		Text: "Here's why nobody tells you this secret. The rest of the story matters less.",
	}
	scored := s.Score(candidate, job.Config{Style: "balanced"}, nil)
	if scored.HookText != "Here's why nobody tells you this secret." {
		t.Fatalf("unexpected hook text: %q", scored.HookText)
	}
}

func TestDeriveHookTextFallsBackToWordBoundaryWithoutPunctuation(t *testing.T) {
	text := "this sentence runs on and on and on without any terminal punctuation at all so it must be cut safely before the cap"
	got := deriveHookText(text)
	if len(got) > maxHookChars {
		t.Fatalf("expected hook text capped at %d chars, got %d: %q", maxHookChars, len(got), got)
	}
	if got == "" || got[len(got)-1] == ' ' {
		t.Fatalf("expected trimmed, non-empty hook text, got %q", got)
	}
}

func TestDeriveHookTextEmptyForEmptyInput(t *testing.T) {
	if got := deriveHookText("   "); got != "" {
		t.Fatalf("expected empty hook text, got %q", got)
	}
}

func TestHasLargeSpeechGapDetectsOverThreeSeconds(t *testing.T) {
	segments := []job.SpeechSegment{
		{Start: 0, End: 2, Text: "hello"},
		{Start: 8, End: 10, Text: "world"},
	}
	if !hasLargeSpeechGap(0, 10, segments) {
		t.Fatal("expected a gap greater than 3s to be detected")
	}
}

func TestHasLargeSpeechGapAllowsSmallGaps(t *testing.T) {
	segments := []job.SpeechSegment{
		{Start: 0, End: 5, Text: "hello"},
		{Start: 6, End: 10, Text: "world"},
	}
	if hasLargeSpeechGap(0, 10, segments) {
		t.Fatal("expected gap under 3s to be allowed")
	}
}

func TestRationaleIsDeterministic(t *testing.T) {
	axes := job.AxisScores{Hook: 0.9, Emotional: 0.6}
	scene := job.Scene{FaceRatio: 0.8}
	first := rationale(axes, scene, "emotional")
	second := rationale(axes, scene, "emotional")
	if first != second {
		t.Fatalf("expected deterministic rationale, got %q then %q", first, second)
	}
	if first != "strong hook + emotional content + closeup speaker" {
		t.Fatalf("unexpected rationale: %q", first)
	}
}

func TestLessOrdersByViralThenHookThenStart(t *testing.T) {
	high := job.Candidate{Viral: 0.9, Start: 10}
	low := job.Candidate{Viral: 0.3, Start: 0}
	if !Less(high, low) {
		t.Fatal("expected higher viral score to sort first")
	}

	tiedViral1 := job.Candidate{Viral: 0.5, Audio: job.AxisScores{Hook: 0.8}, Start: 5}
	tiedViral2 := job.Candidate{Viral: 0.5, Audio: job.AxisScores{Hook: 0.2}, Start: 0}
	if !Less(tiedViral1, tiedViral2) {
		t.Fatal("expected higher hook axis to break a viral-score tie")
	}

	tiedBoth1 := job.Candidate{Viral: 0.5, Audio: job.AxisScores{Hook: 0.5}, Start: 2}
	tiedBoth2 := job.Candidate{Viral: 0.5, Audio: job.AxisScores{Hook: 0.5}, Start: 5}
	if !Less(tiedBoth1, tiedBoth2) {
		t.Fatal("expected earlier start to break a full tie")
	}
}

func TestLoadEmbeddedFallsBackToEnglish(t *testing.T) {
	lex, err := LoadEmbedded("fr")
	if err != nil {
		t.Fatalf("expected fallback to English, got error: %v", err)
	}
	if lex.Language != "en" {
		t.Fatalf("expected English fallback lexicon, got %q", lex.Language)
	}
}

func TestLoadEmbeddedIndonesian(t *testing.T) {
	lex, err := LoadEmbedded("id")
	if err != nil {
		t.Fatalf("LoadEmbedded(id) returned error: %v", err)
	}
	if lex.Language != "id" || len(lex.Hook) == 0 {
		t.Fatalf("expected populated Indonesian lexicon, got %+v", lex)
	}
}
