package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runTimeLayout = time.RFC3339

// InsertRun records an ingest run. A missing ID is filled with a new UUID.
func (db *DB) InsertRun(r *IngestRun) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tickers, err := json.Marshal(r.Tickers)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO ingest_runs
		(id, started_at, finished_at, tickers, fetched, malformed, duplicates, added,
		 scored, defaulted, corpus_size, rate_limited, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(runTimeLayout), r.FinishedAt.UTC().Format(runTimeLayout),
		string(tickers), r.Fetched, r.Malformed, r.Duplicates, r.Added,
		r.Scored, r.Defaulted, r.CorpusSize, r.RateLimited, r.Error,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	return nil
}

// GetRuns returns the most recent runs, newest first.
func (db *DB) GetRuns(limit int) ([]IngestRun, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, finished_at, tickers, fetched, malformed, duplicates, added,
		scored, defaulted, corpus_size, rate_limited, error
		FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetLastRun returns the most recent run, or nil if none was recorded.
func (db *DB) GetLastRun() (*IngestRun, error) {
	runs, err := db.GetRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM articles", &s.TotalArticles},
		{"SELECT COUNT(*) FROM articles WHERE sentiment_score IS NOT NULL", &s.ScoredArticles},
		{"SELECT COUNT(*) FROM articles WHERE sentiment_score IS NULL", &s.UnscoredArticles},
		{"SELECT COUNT(DISTINCT ticker) FROM articles", &s.Tickers},
		{"SELECT COUNT(*) FROM ingest_runs", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	last, err := db.GetLastRun()
	if err != nil {
		return nil, err
	}
	s.LastRun = last
	return s, nil
}

func scanRun(rows *sql.Rows) (*IngestRun, error) {
	var r IngestRun
	var started, finished, tickers string
	if err := rows.Scan(&r.ID, &started, &finished, &tickers, &r.Fetched, &r.Malformed,
		&r.Duplicates, &r.Added, &r.Scored, &r.Defaulted, &r.CorpusSize,
		&r.RateLimited, &r.Error); err != nil {
		return nil, err
	}

	var err error
	if r.StartedAt, err = time.Parse(runTimeLayout, started); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(runTimeLayout, finished); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(tickers), &r.Tickers); err != nil {
		r.Tickers = nil
	}
	return &r, nil
}
