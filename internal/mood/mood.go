// Package mood turns free text into an affect score in [1,10].
package mood

import (
	"strings"

	"telegram-support-bot/internal/models"
)

// Scorer maps a message to an affect score. Implementations must be pure and
// must never fail.
type Scorer interface {
	Score(text string) int
}

// Default keyword lists. Neutral words are kept for reference only, they do
// not move the score.
var (
	DefaultPositive = []string{"добре", "чудово", "супер", "класно", "щасливий", "радісно", "вдалося"}
	DefaultNegative = []string{"погано", "сумно", "депресія", "важко", "болить", "втомлений", "стрес"}
	DefaultNeutral  = []string{"нормально", "звичайно", "так собі", "середньо"}
)

// KeywordScorer starts at the neutral midpoint and moves one point per
// distinct keyword found as a case-insensitive substring. Repeats of the same
// keyword count once. There is no negation or intensity handling.
type KeywordScorer struct {
	positive []string
	negative []string
}

// NewKeywordScorer builds a scorer over the given keyword lists.
func NewKeywordScorer(positive, negative []string) *KeywordScorer {
	return &KeywordScorer{
		positive: lowerAll(positive),
		negative: lowerAll(negative),
	}
}

// NewDefaultScorer returns the scorer over the built-in Ukrainian lists.
func NewDefaultScorer() *KeywordScorer {
	return NewKeywordScorer(DefaultPositive, DefaultNegative)
}

// Score implements Scorer.
func (s *KeywordScorer) Score(text string) int {
	lower := strings.ToLower(text)
	score := models.NeutralMood
	for _, w := range s.positive {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range s.negative {
		if strings.Contains(lower, w) {
			score--
		}
	}
	return models.ClampMood(score)
}

// lowerAll lowercases and deduplicates keywords; empty entries are dropped
// since they would match every message.
func lowerAll(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
