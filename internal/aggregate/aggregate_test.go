package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

func at(s string) time.Time {
	t, err := corpus.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return t
}

func scored(ticker, ts string, score float64, label corpus.Label) corpus.Article {
	return corpus.Article{
		Ticker:      ticker,
		PublishedAt: at(ts),
		Sentiment:   &corpus.Sentiment{Score: score, Label: label},
	}
}

func TestSummarizeAnchorsPerTicker(t *testing.T) {
	articles := []corpus.Article{
		scored("MSFT", "2024-01-01T09:00:00", 0.4, corpus.Positive),
		scored("MSFT", "2024-01-20T09:00:00", -0.2, corpus.Negative),
	}

	got := Summarize(articles)
	if len(got) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(got))
	}
	s := got[0]
	if !s.Anchor.Equal(at("2024-01-20T09:00:00")) {
		t.Errorf("expected anchor 2024-01-20, got %v", s.Anchor)
	}
	if s.Week.Count != 1 {
		t.Errorf("expected 7d count 1, got %d", s.Week.Count)
	}
	if s.Month.Count != 2 {
		t.Errorf("expected 30d count 2, got %d", s.Month.Count)
	}
	if s.Week.Avg == nil || *s.Week.Avg != -0.2 {
		t.Errorf("expected 7d average -0.2, got %v", s.Week.Avg)
	}
	if s.Month.Avg == nil || math.Abs(*s.Month.Avg-0.1) > 1e-9 {
		t.Errorf("expected 30d average 0.1, got %v", s.Month.Avg)
	}
	if s.PositiveTotal != 1 || s.NegativeTotal != 1 || s.NeutralTotal != 0 {
		t.Errorf("unexpected label totals %d/%d/%d", s.PositiveTotal, s.NeutralTotal, s.NegativeTotal)
	}
}

func TestSummarizeIndependentAnchors(t *testing.T) {
	// AAPL's latest article is months older than NVDA's; its windows must
	// still be measured from its own latest date.
	articles := []corpus.Article{
		scored("NVDA", "2024-06-01T00:00:00", 0.5, corpus.Positive),
		scored("AAPL", "2024-01-10T00:00:00", 0.1, corpus.Positive),
		scored("AAPL", "2024-01-09T12:00:00", 0.3, corpus.Positive),
	}

	got := Summarize(articles)
	if got[0].Ticker != "AAPL" || got[1].Ticker != "NVDA" {
		t.Fatalf("expected alphabetical order, got %s, %s", got[0].Ticker, got[1].Ticker)
	}
	if got[0].Day.Count != 2 {
		t.Errorf("expected AAPL 1d count 2, got %d", got[0].Day.Count)
	}
}

func TestSummarizeWindowBoundsInclusive(t *testing.T) {
	articles := []corpus.Article{
		scored("YPF", "2024-03-31T00:00:00", 0, corpus.Neutral),
		scored("YPF", "2024-03-30T00:00:00", 0, corpus.Neutral), // exactly 1d before
		scored("YPF", "2024-03-24T00:00:00", 0, corpus.Neutral), // exactly 7d before
		scored("YPF", "2024-03-01T00:00:00", 0, corpus.Neutral), // exactly 30d before
		scored("YPF", "2024-02-29T23:59:59", 0, corpus.Neutral),
	}

	s := Summarize(articles)[0]
	if s.Day.Count != 2 || s.Week.Count != 3 || s.Month.Count != 4 || s.Total.Count != 5 {
		t.Errorf("unexpected counts 1d=%d 7d=%d 30d=%d total=%d",
			s.Day.Count, s.Week.Count, s.Month.Count, s.Total.Count)
	}
}

func TestSummarizeNullAverages(t *testing.T) {
	articles := []corpus.Article{
		{Ticker: "MELI", PublishedAt: at("2024-05-01T00:00:00")},
		{Ticker: "MELI", PublishedAt: at("2024-04-01T00:00:00")},
	}

	s := Summarize(articles)[0]
	if s.Total.Count != 2 {
		t.Errorf("expected total count 2, got %d", s.Total.Count)
	}
	for _, name := range []string{"1d", "7d", "30d", "total"} {
		if s.ByWindow(name).Avg != nil {
			t.Errorf("expected nil %s average without scores", name)
		}
	}
	if s.PositiveTotal+s.NeutralTotal+s.NegativeTotal != 0 {
		t.Error("expected no label totals for unscored rows")
	}
}

func TestSummarizeAverageIgnoresUnscoredRows(t *testing.T) {
	articles := []corpus.Article{
		scored("GOOGL", "2024-05-01T00:00:00", 0.6, corpus.Positive),
		{Ticker: "GOOGL", PublishedAt: at("2024-05-01T01:00:00")},
	}

	s := Summarize(articles)[0]
	if s.Day.Count != 2 {
		t.Errorf("expected 1d count 2, got %d", s.Day.Count)
	}
	if s.Day.Avg == nil || *s.Day.Avg != 0.6 {
		t.Errorf("expected 1d average 0.6, got %v", s.Day.Avg)
	}
}

func TestSummarizeUnknownTimestamps(t *testing.T) {
	articles := []corpus.Article{
		{Ticker: "NVDA", Sentiment: &corpus.Sentiment{Score: 1, Label: corpus.Positive}},
		scored("NVDA", "2024-01-01T00:00:00", -1, corpus.Negative),
	}

	s := Summarize(articles)[0]
	if s.Month.Count != 1 || s.Total.Count != 2 {
		t.Errorf("expected undated row in total only, got 30d=%d total=%d", s.Month.Count, s.Total.Count)
	}
	if s.PositiveTotal != 1 {
		t.Errorf("expected undated row in label totals, got %d", s.PositiveTotal)
	}

	undated := Summarize([]corpus.Article{{Ticker: "AAPL"}})[0]
	if !undated.Anchor.IsZero() || undated.Day.Count != 0 || undated.Total.Count != 1 {
		t.Errorf("unexpected summary for undated ticker %+v", undated)
	}
}

func TestSummarizeMonotonicWindows(t *testing.T) {
	var articles []corpus.Article
	base := at("2024-06-30T12:00:00")
	for i := 0; i < 90; i += 3 {
		for _, ticker := range []string{"NVDA", "MSFT"} {
			articles = append(articles, corpus.Article{
				Ticker:      ticker,
				PublishedAt: base.Add(-time.Duration(i) * 13 * time.Hour),
			})
		}
	}

	for _, s := range Summarize(articles) {
		if !(s.Day.Count <= s.Week.Count && s.Week.Count <= s.Month.Count && s.Month.Count <= s.Total.Count) {
			t.Errorf("%s: windows not monotonic: %d %d %d %d",
				s.Ticker, s.Day.Count, s.Week.Count, s.Month.Count, s.Total.Count)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); len(got) != 0 {
		t.Errorf("expected no summaries, got %d", len(got))
	}
}
