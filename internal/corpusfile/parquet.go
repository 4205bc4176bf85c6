package corpusfile

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// record is one corpus row in a Parquet file.
type record struct {
	Ticker         string   `parquet:"ticker"`
	Source         *string  `parquet:"source,optional"`
	Author         *string  `parquet:"author,optional"`
	Title          string   `parquet:"title"`
	Description    *string  `parquet:"description,optional"`
	URL            string   `parquet:"url"`
	PublishedAt    *string  `parquet:"published_at,optional"`
	ContentSnippet *string  `parquet:"content_snippet,optional"`
	NewsID         string   `parquet:"news_id"`
	ArticleKey     string   `parquet:"article_key"`
	SentimentScore *float64 `parquet:"sentiment_score,optional"`
	SentimentLabel *string  `parquet:"sentiment_label,optional"`
}

// WriteParquet writes articles as a single Parquet file.
func WriteParquet(w io.Writer, articles []corpus.Article) error {
	rows := make([]record, len(articles))
	for i, a := range articles {
		rows[i] = record{
			Ticker:         a.Ticker,
			Source:         a.Source,
			Author:         a.Author,
			Title:          a.Title,
			Description:    a.Description,
			URL:            a.URL,
			PublishedAt:    optional(corpus.FormatTimestamp(a.PublishedAt)),
			ContentSnippet: a.ContentSnippet,
			NewsID:         a.NewsID,
			ArticleKey:     a.ArticleKey,
		}
		if a.Sentiment != nil {
			score := a.Sentiment.Score
			label := string(a.Sentiment.Label)
			rows[i].SentimentScore = &score
			rows[i].SentimentLabel = &label
		}
	}
	return parquet.Write(w, rows)
}

// ReadParquet reads a Parquet file written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]corpus.Article, error) {
	rows, err := parquet.Read[record](r, size)
	if err != nil {
		return nil, err
	}

	articles := make([]corpus.Article, 0, len(rows))
	for i, rec := range rows {
		published, err := corpus.ParseTimestamp(deref(rec.PublishedAt))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		sent, err := sentimentFrom(rec.SentimentScore, rec.SentimentLabel)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		articles = append(articles, corpus.Article{
			Ticker:         corpus.NormalizeTicker(rec.Ticker),
			Source:         rec.Source,
			Author:         rec.Author,
			Title:          rec.Title,
			Description:    rec.Description,
			URL:            rec.URL,
			PublishedAt:    published,
			ContentSnippet: rec.ContentSnippet,
			NewsID:         rec.NewsID,
			ArticleKey:     rec.ArticleKey,
			Sentiment:      sent,
		})
	}
	return articles, nil
}
