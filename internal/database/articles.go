package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/TobiSchelling/TickerPulse/internal/corpus"
)

// ErrCorruptCorpus is returned when a stored row cannot be read back into a
// valid article. A run must not continue from a partially read corpus.
var ErrCorruptCorpus = errors.New("corpus is corrupt")

const articleColumns = `news_id, article_key, ticker, source, author, title, description,
	url, published_at, content_snippet, sentiment_score, sentiment_label`

// LoadCorpus returns every stored article in insertion order. Any row that
// fails to parse makes the whole load fail with ErrCorruptCorpus.
func (db *DB) LoadCorpus() ([]corpus.Article, error) {
	rows, err := db.conn.Query("SELECT " + articleColumns + " FROM articles ORDER BY seq, rowid")
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// TickerArticles returns one ticker's articles, newest first. Rows without a
// publication time come last.
func (db *DB) TickerArticles(ticker string) ([]corpus.Article, error) {
	rows, err := db.conn.Query(
		"SELECT "+articleColumns+` FROM articles WHERE ticker = ?
		ORDER BY published_at IS NULL, published_at DESC, seq`,
		corpus.NormalizeTicker(ticker),
	)
	if err != nil {
		return nil, fmt.Errorf("loading %s articles: %w", ticker, err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// KnownNewsIDs returns the set of news_ids already stored.
func (db *DB) KnownNewsIDs() (map[string]bool, error) {
	rows, err := db.conn.Query("SELECT news_id FROM articles")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// TickerCounts returns per-ticker row and scored-row counts, by ticker.
func (db *DB) TickerCounts() ([]TickerCount, error) {
	rows, err := db.conn.Query(
		`SELECT ticker, COUNT(*), COUNT(sentiment_score)
		FROM articles GROUP BY ticker ORDER BY ticker`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickerCount
	for rows.Next() {
		var c TickerCount
		if err := rows.Scan(&c.Ticker, &c.Articles, &c.Scored); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveCorpus makes the stored corpus equal to articles, in one transaction.
// New rows are inserted, rows that gained sentiment get it written, and rows
// no longer present (dropped by dedup) are removed. Fields other than
// sentiment and position are never rewritten for rows that already exist,
// and stored sentiment is never replaced.
func (db *DB) SaveCorpus(articles []corpus.Article) (*SaveResult, error) {
	stored := make(map[string]bool)
	scoredBefore := make(map[string]bool)
	rows, err := db.conn.Query("SELECT news_id, sentiment_score IS NOT NULL FROM articles")
	if err != nil {
		return nil, fmt.Errorf("reading stored ids: %w", err)
	}
	for rows.Next() {
		var id string
		var scored bool
		if err := rows.Scan(&id, &scored); err != nil {
			rows.Close()
			return nil, err
		}
		stored[id] = true
		scoredBefore[id] = scored
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO articles (` + articleColumns + `, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(news_id) DO UPDATE SET
			seq = excluded.seq,
			sentiment_score = COALESCE(articles.sentiment_score, excluded.sentiment_score),
			sentiment_label = COALESCE(articles.sentiment_label, excluded.sentiment_label)`)
	if err != nil {
		return nil, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	r := &SaveResult{}
	keep := make(map[string]bool, len(articles))
	for i := range articles {
		a := &articles[i]
		if a.NewsID == "" {
			return nil, fmt.Errorf("article %d has no news_id", i)
		}
		if keep[a.NewsID] {
			return nil, fmt.Errorf("duplicate news_id %s", a.NewsID)
		}
		keep[a.NewsID] = true

		var score *float64
		var label *string
		if a.Sentiment != nil {
			s := a.Sentiment.Score
			l := string(a.Sentiment.Label)
			if _, err := corpus.NewSentiment(s, l); err != nil {
				return nil, fmt.Errorf("article %s: %w", a.NewsID, err)
			}
			score, label = &s, &l
		}
		var published *string
		if !a.PublishedAt.IsZero() {
			p := corpus.FormatTimestamp(a.PublishedAt)
			published = &p
		}

		if _, err := stmt.Exec(
			a.NewsID, a.ArticleKey, a.Ticker, a.Source, a.Author, a.Title, a.Description,
			a.URL, published, a.ContentSnippet, score, label, i,
		); err != nil {
			return nil, fmt.Errorf("saving %s: %w", a.NewsID, err)
		}

		switch {
		case !stored[a.NewsID]:
			r.Inserted++
		case !scoredBefore[a.NewsID] && a.Sentiment != nil:
			r.Enriched++
		}
	}

	for id := range stored {
		if keep[id] {
			continue
		}
		if _, err := tx.Exec("DELETE FROM articles WHERE news_id = ?", id); err != nil {
			return nil, fmt.Errorf("removing %s: %w", id, err)
		}
		r.Removed++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}
	return r, nil
}

func scanArticles(rows *sql.Rows) ([]corpus.Article, error) {
	var articles []corpus.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCorpus, err)
	}
	return articles, nil
}

func scanArticle(rows *sql.Rows) (*corpus.Article, error) {
	var a corpus.Article
	var published, label *string
	var score *float64
	if err := rows.Scan(&a.NewsID, &a.ArticleKey, &a.Ticker, &a.Source, &a.Author,
		&a.Title, &a.Description, &a.URL, &published, &a.ContentSnippet,
		&score, &label); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCorpus, err)
	}

	if a.Ticker == "" {
		return nil, fmt.Errorf("%w: row %s has no ticker", ErrCorruptCorpus, a.NewsID)
	}
	if published != nil {
		t, err := corpus.ParseTimestamp(*published)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s: %v", ErrCorruptCorpus, a.NewsID, err)
		}
		a.PublishedAt = t
	}

	switch {
	case score == nil && label == nil:
	case score == nil || label == nil:
		return nil, fmt.Errorf("%w: row %s has partial sentiment", ErrCorruptCorpus, a.NewsID)
	default:
		s, err := corpus.NewSentiment(*score, *label)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s: %v", ErrCorruptCorpus, a.NewsID, err)
		}
		a.Sentiment = s
	}

	return &a, nil
}
