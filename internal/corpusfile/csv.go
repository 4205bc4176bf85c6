package corpusfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// headerAliases maps the column names written by older exports.
var headerAliases = map[string]string{
	"ticker":      "ticker",
	"publishedat": "published_at",
	"newsid":      "news_id",
	"articlekey":  "article_key",
}

// WriteCSV writes articles with a header row. Null fields are empty cells.
func WriteCSV(w io.Writer, articles []corpus.Article) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	for _, a := range articles {
		var score, label string
		if a.Sentiment != nil {
			score = strconv.FormatFloat(a.Sentiment.Score, 'f', -1, 64)
			label = string(a.Sentiment.Label)
		}
		rec := []string{
			a.Ticker, deref(a.Source), deref(a.Author), a.Title, deref(a.Description), a.URL,
			corpus.FormatTimestamp(a.PublishedAt), deref(a.ContentSnippet),
			a.NewsID, a.ArticleKey, score, label,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a corpus CSV. Columns are matched by name, in any order, and
// the legacy names (Ticker, publishedAt, NewsID, ArticleKey) are accepted.
// A row that cannot be parsed fails the whole read.
func ReadCSV(r io.Reader) ([]corpus.Article, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := headerAliases[strings.ToLower(name)]; ok {
			name = alias
		}
		index[name] = i
	}
	if _, ok := index["ticker"]; !ok {
		return nil, fmt.Errorf("%w: ticker", ErrMissingColumn)
	}
	_, hasURL := index["url"]
	_, hasTitle := index["title"]
	if !hasURL && !hasTitle {
		return nil, fmt.Errorf("%w: url or title", ErrMissingColumn)
	}

	var articles []corpus.Article
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}

		a, err := recordToArticle(field)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func recordToArticle(field func(string) string) (corpus.Article, error) {
	published, err := corpus.ParseTimestamp(field("published_at"))
	if err != nil {
		return corpus.Article{}, err
	}

	var score *float64
	if s := strings.TrimSpace(field("sentiment_score")); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return corpus.Article{}, fmt.Errorf("sentiment_score: %w", err)
		}
		score = &v
	}
	var label *string
	if l := strings.TrimSpace(field("sentiment_label")); l != "" {
		label = &l
	}
	sent, err := sentimentFrom(score, label)
	if err != nil {
		return corpus.Article{}, err
	}

	return corpus.Article{
		Ticker:         corpus.NormalizeTicker(field("ticker")),
		Source:         optional(field("source")),
		Author:         optional(field("author")),
		Title:          field("title"),
		Description:    optional(field("description")),
		URL:            strings.TrimSpace(field("url")),
		PublishedAt:    published,
		ContentSnippet: optional(field("content_snippet")),
		NewsID:         strings.TrimSpace(field("news_id")),
		ArticleKey:     strings.TrimSpace(field("article_key")),
		Sentiment:      sent,
	}, nil
}
