// Package corpusfile reads and writes the corpus as flat files (CSV and
// Parquet) for export, import and exchange with spreadsheet tooling.
package corpusfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// Format is a flat file format.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

var (
	ErrUnknownFormat = errors.New("unknown corpus file format")
	ErrMissingColumn = errors.New("missing required column")
)

// Columns is the flat-file column order.
var Columns = []string{
	"ticker", "source", "author", "title", "description", "url", "published_at",
	"content_snippet", "news_id", "article_key", "sentiment_score", "sentiment_label",
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case CSV:
		return CSV, nil
	case Parquet:
		return Parquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Export writes articles to path in the given format.
func Export(path string, format Format, articles []corpus.Article) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch format {
	case CSV:
		err = WriteCSV(f, articles)
	case Parquet:
		err = WriteParquet(f, articles)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Import reads the articles stored at path.
func Import(path string, format Format) ([]corpus.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var articles []corpus.Article
	switch format {
	case CSV:
		articles, err = ReadCSV(f)
	case Parquet:
		var info os.FileInfo
		if info, err = f.Stat(); err == nil {
			articles, err = ReadParquet(f, info.Size())
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return articles, nil
}

// sentimentFrom rebuilds a row's sentiment from its nullable columns.
func sentimentFrom(score *float64, label *string) (*corpus.Sentiment, error) {
	switch {
	case score == nil && label == nil:
		return nil, nil
	case score == nil || label == nil:
		return nil, errors.New("sentiment_score and sentiment_label must be set together")
	}
	return corpus.NewSentiment(*score, *label)
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
