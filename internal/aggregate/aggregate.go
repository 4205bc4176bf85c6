// Package aggregate derives per-ticker statistics from the corpus.
package aggregate

import (
	"sort"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// Window is a trailing period ending at a ticker's anchor date.
type Window struct {
	Name string
	Span time.Duration
}

// Windows are the trailing periods reported for every ticker, shortest first.
var Windows = []Window{
	{Name: "1d", Span: 24 * time.Hour},
	{Name: "7d", Span: 7 * 24 * time.Hour},
	{Name: "30d", Span: 30 * 24 * time.Hour},
}

// Stat is a row count and the mean score of the scored rows among them.
// Avg is nil when none of the rows has a score.
type Stat struct {
	Count int
	Avg   *float64
}

// TickerSummary holds the statistics for one ticker.
type TickerSummary struct {
	Ticker string
	// Anchor is the latest known published_at of the ticker; zero when no
	// row has a publication time.
	Anchor time.Time

	Day   Stat
	Week  Stat
	Month Stat
	Total Stat

	PositiveTotal int
	NeutralTotal  int
	NegativeTotal int
}

// ByWindow returns the stat for a window name ("1d", "7d", "30d", "total").
func (s *TickerSummary) ByWindow(name string) Stat {
	switch name {
	case "1d":
		return s.Day
	case "7d":
		return s.Week
	case "30d":
		return s.Month
	default:
		return s.Total
	}
}

type accumulator struct {
	count  int
	sum    float64
	scored int
}

func (a *accumulator) add(art *corpus.Article) {
	a.count++
	if art.Sentiment != nil {
		a.sum += art.Sentiment.Score
		a.scored++
	}
}

func (a *accumulator) stat() Stat {
	s := Stat{Count: a.count}
	if a.scored > 0 {
		avg := a.sum / float64(a.scored)
		s.Avg = &avg
	}
	return s
}

// Summarize computes one summary per ticker present in articles, sorted by
// ticker. Each ticker's windows are [anchor-span, anchor] where anchor is
// that ticker's own latest published_at. Rows with an unknown publication
// time count towards the total only.
func Summarize(articles []corpus.Article) []TickerSummary {
	groups := make(map[string][]*corpus.Article)
	for i := range articles {
		a := &articles[i]
		groups[a.Ticker] = append(groups[a.Ticker], a)
	}

	tickers := make([]string, 0, len(groups))
	for t := range groups {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	out := make([]TickerSummary, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, summarizeTicker(t, groups[t]))
	}
	return out
}

func summarizeTicker(ticker string, rows []*corpus.Article) TickerSummary {
	s := TickerSummary{Ticker: ticker}

	for _, a := range rows {
		if a.PublishedAt.After(s.Anchor) {
			s.Anchor = a.PublishedAt
		}
	}

	windows := make([]accumulator, len(Windows))
	var total accumulator
	for _, a := range rows {
		total.add(a)

		if a.Sentiment != nil {
			switch a.Sentiment.Label {
			case corpus.Positive:
				s.PositiveTotal++
			case corpus.Negative:
				s.NegativeTotal++
			case corpus.Neutral:
				s.NeutralTotal++
			}
		}

		if a.PublishedAt.IsZero() || s.Anchor.IsZero() {
			continue
		}
		for i, w := range Windows {
			if !a.PublishedAt.Before(s.Anchor.Add(-w.Span)) {
				windows[i].add(a)
			}
		}
	}

	s.Day = windows[0].stat()
	s.Week = windows[1].stat()
	s.Month = windows[2].stat()
	s.Total = total.stat()
	return s
}
