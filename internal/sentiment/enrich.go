// Package sentiment scores corpus rows that have no sentiment yet.
package sentiment

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

// ErrEmptyText is returned by scorers that get nothing to score.
var ErrEmptyText = errors.New("no text to score")

// Scorer turns text into a compound score in [-1, 1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Result holds the results of an enrichment pass.
type Result struct {
	AlreadyScored int
	Scored        int
	Defaulted     int
	Positive      int
	Neutral       int
	Negative      int
}

// Enricher fills in sentiment for rows lacking it.
type Enricher struct {
	scorer Scorer
	log    *logger.Logger
}

// NewEnricher creates an enricher around a scorer.
func NewEnricher(scorer Scorer, log *logger.Logger) *Enricher {
	return &Enricher{scorer: scorer, log: log}
}

// Ensure returns a copy of articles where every row has sentiment. Rows that
// were already scored are left exactly as they were. A row whose text is
// empty or whose scoring fails gets a neutral 0.0.
func (e *Enricher) Ensure(ctx context.Context, articles []corpus.Article) ([]corpus.Article, *Result) {
	out := slices.Clone(articles)
	r := &Result{}

	for i := range out {
		a := &out[i]
		if a.HasSentiment() {
			r.AlreadyScored++
			continue
		}

		score, err := e.score(ctx, a.Text())
		if err != nil {
			e.log.Debug("sentiment defaulted to neutral", "news_id", a.NewsID, "error", err)
			r.Defaulted++
			score = 0
		} else {
			r.Scored++
		}

		label := corpus.LabelFor(score)
		a.Sentiment = &corpus.Sentiment{Score: score, Label: label}
		switch label {
		case corpus.Positive:
			r.Positive++
		case corpus.Negative:
			r.Negative++
		default:
			r.Neutral++
		}
	}

	if r.Scored+r.Defaulted > 0 {
		e.log.Info("sentiment enrichment complete",
			"scored", r.Scored, "defaulted", r.Defaulted, "already_scored", r.AlreadyScored)
	}
	return out, r
}

func (e *Enricher) score(ctx context.Context, text string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	if e.scorer == nil {
		return 0, errors.New("no scorer configured")
	}
	s, err := e.scorer.Score(ctx, text)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(s) {
		return 0, errors.New("scorer returned NaN")
	}
	return clamp(s), nil
}

func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
