// Package score implements the Scorer component (spec.md §4.E): per-axis
// keyword-lexicon scoring, the audio/visual/viral composites, category
// assignment, context-completeness, and deterministic rationale strings.
package score

import (
	"embed"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed lexicons/*.toml
var embeddedLexicons embed.FS

// Lexicon holds the configured keyword lists for one language, loaded from
// TOML rather than hardcoded so operators can tune or replace them per
// spec.md §4.E.
type Lexicon struct {
	Language string `toml:"language"`

	Hook          []string `toml:"hook"`
	Emotional     []string `toml:"emotional"`
	Controversial []string `toml:"controversial"`
	Educational   []string `toml:"educational"`
	Entertaining  []string `toml:"entertaining"`
	Money         []string `toml:"money"`
	Urgency       []string `toml:"urgency"`
	Filler        []string `toml:"filler"`

	Transitions       []string `toml:"transitions"`
	ConclusionPhrases []string `toml:"conclusion_phrases"`
}

// LoadEmbedded loads the bundled default lexicon for lang (e.g. "en", "id"),
// falling back to English when the language has no bundled lexicon.
func LoadEmbedded(lang string) (Lexicon, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	data, err := embeddedLexicons.ReadFile(fmt.Sprintf("lexicons/%s.toml", lang))
	if err != nil {
		data, err = embeddedLexicons.ReadFile("lexicons/en.toml")
		if err != nil {
			return Lexicon{}, fmt.Errorf("score: load default lexicon: %w", err)
		}
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes a TOML-encoded lexicon document.
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := toml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("score: parse lexicon: %w", err)
	}
	return lex, nil
}
