package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"
)

// VaderScorer scores text with the VADER lexicon and rule set. Its score is
// the VADER compound value, already normalized to [-1, 1].
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer loads the VADER lexicon. The analyzer is read-only after
// construction and may be shared between goroutines.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score implements Scorer.
func (s *VaderScorer) Score(_ context.Context, text string) (float64, error) {
	if strings.IndexFunc(text, isWordRune) < 0 {
		return 0, ErrEmptyText
	}
	return s.analyzer.PolarityScores(text).Compound, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
