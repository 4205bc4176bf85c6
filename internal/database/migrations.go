package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "article corpus",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    news_id TEXT PRIMARY KEY,
    article_key TEXT NOT NULL,
    ticker TEXT NOT NULL,
    source TEXT,
    author TEXT,
    title TEXT NOT NULL DEFAULT '',
    description TEXT,
    url TEXT NOT NULL DEFAULT '',
    published_at TEXT,
    content_snippet TEXT,
    sentiment_score REAL,
    sentiment_label TEXT,
    seq INTEGER NOT NULL DEFAULT 0,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_articles_ticker ON articles(ticker);
CREATE INDEX IF NOT EXISTS idx_articles_key ON articles(article_key);
CREATE INDEX IF NOT EXISTS idx_articles_seq ON articles(seq);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "ingest run log",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    tickers TEXT NOT NULL DEFAULT '[]',
    fetched INTEGER DEFAULT 0,
    malformed INTEGER DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    added INTEGER DEFAULT 0,
    scored INTEGER DEFAULT 0,
    defaulted INTEGER DEFAULT 0,
    corpus_size INTEGER DEFAULT 0,
    rate_limited INTEGER DEFAULT 0,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
