// Package report renders the corpus and its per-ticker summary as a
// markdown document (one section per ticker) and as HTML.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/TickerPulse/internal/aggregate"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// SummaryColumns is the summary table header: counts, then averages, then
// the label breakdown.
var SummaryColumns = []string{
	"ticker",
	"count_1d", "count_7d", "count_30d", "count_total",
	"avg_1d", "avg_7d", "avg_30d", "avg_total",
	"positive", "neutral", "negative",
}

// ArticleColumns is the per-ticker article table header.
var ArticleColumns = []string{"published_at", "source", "title", "score", "label"}

const titleWidth = 80

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Options control what Markdown includes.
type Options struct {
	// GeneratedAt is printed under the heading; zero omits the line.
	GeneratedAt time.Time
	// PerTicker caps each ticker's article list; 0 means no cap.
	PerTicker int
	// SummaryOnly skips the per-ticker sections.
	SummaryOnly bool
}

// FormatAvg renders an average rounded to 3 decimals, or "" when there is
// none.
func FormatAvg(avg *float64) string {
	if avg == nil {
		return ""
	}
	return decimal.NewFromFloat(*avg).Round(3).String()
}

// FormatScore renders a row's score rounded to 3 decimals.
func FormatScore(s *corpus.Sentiment) string {
	if s == nil {
		return ""
	}
	return decimal.NewFromFloat(s.Score).Round(3).String()
}

// ScoreClass returns "positive" or "negative" when a score falls beyond the
// label thresholds and "" otherwise. The thresholds are the ones labels are
// derived from.
func ScoreClass(score *float64) string {
	if score == nil {
		return ""
	}
	switch corpus.LabelFor(*score) {
	case corpus.Positive:
		return "positive"
	case corpus.Negative:
		return "negative"
	}
	return ""
}

// SummaryRows returns the summary table body, one row per ticker.
func SummaryRows(summaries []aggregate.TickerSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Ticker,
			strconv.Itoa(s.Day.Count), strconv.Itoa(s.Week.Count),
			strconv.Itoa(s.Month.Count), strconv.Itoa(s.Total.Count),
			FormatAvg(s.Day.Avg), FormatAvg(s.Week.Avg),
			FormatAvg(s.Month.Avg), FormatAvg(s.Total.Avg),
			strconv.Itoa(s.PositiveTotal), strconv.Itoa(s.NeutralTotal), strconv.Itoa(s.NegativeTotal),
		})
	}
	return rows
}

// NewestFirst returns a copy of articles sorted by published_at descending,
// undated rows last. Ties keep corpus order.
func NewestFirst(articles []corpus.Article) []corpus.Article {
	out := make([]corpus.Article, len(articles))
	copy(out, articles)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
	return out
}

// Markdown writes the report: the summary table followed by one section per
// ticker listing its articles newest first.
func Markdown(w io.Writer, summaries []aggregate.TickerSummary, articles []corpus.Article, opts Options) error {
	var b strings.Builder

	b.WriteString("# Ticker sentiment\n\n")
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s from %d articles.\n\n",
			opts.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), len(articles))
	}

	b.WriteString("## Summary\n\n")
	if len(summaries) == 0 {
		b.WriteString("No articles yet.\n")
	} else {
		writeTable(&b, SummaryColumns, SummaryRows(summaries))
	}

	if !opts.SummaryOnly {
		byTicker := make(map[string][]corpus.Article)
		for _, a := range articles {
			byTicker[a.Ticker] = append(byTicker[a.Ticker], a)
		}

		for _, s := range summaries {
			rows := NewestFirst(byTicker[s.Ticker])
			if opts.PerTicker > 0 && len(rows) > opts.PerTicker {
				rows = rows[:opts.PerTicker]
			}

			fmt.Fprintf(&b, "\n## %s\n\n", s.Ticker)
			if !s.Anchor.IsZero() {
				fmt.Fprintf(&b, "Latest article %s.\n\n", corpus.FormatTimestamp(s.Anchor))
			}
			writeTable(&b, ArticleColumns, ArticleRows(rows))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ArticleRows returns article table rows.
func ArticleRows(articles []corpus.Article) [][]string {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		var label string
		if a.Sentiment != nil {
			label = string(a.Sentiment.Label)
		}
		title := runewidth.Truncate(a.Title, titleWidth, "...")
		if a.URL != "" {
			title = "[" + linkText.Replace(title) + "](" + linkDest.Replace(a.URL) + ")"
		}
		source := ""
		if a.Source != nil {
			source = *a.Source
		}
		rows = append(rows, []string{
			corpus.FormatTimestamp(a.PublishedAt), source, title, FormatScore(a.Sentiment), label,
		})
	}
	return rows
}

// HTML converts a markdown report to HTML.
func HTML(markdown []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(markdown, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeTable writes a pipe table padded to display width so it also reads
// well as plain text, wide characters included.
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = max(runewidth.StringWidth(h), 3)
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = escapeCell(cell)
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, c := range cells {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(c, widths[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(header)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
}

var (
	linkText = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
	linkDest = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20", "<", "%3C", ">", "%3E")
)

func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
