package database

import "time"

// IngestRun records the outcome of one ingestion run.
type IngestRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Tickers     []string
	Fetched     int
	Malformed   int
	Duplicates  int
	Added       int
	Scored      int
	Defaulted   int
	CorpusSize  int
	RateLimited bool
	Error       *string
}

// SaveResult holds the outcome of writing a corpus back to the store.
type SaveResult struct {
	Inserted int
	Enriched int
	Removed  int
}

// TickerCount is the number of stored rows for one ticker.
type TickerCount struct {
	Ticker   string
	Articles int
	Scored   int
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalArticles    int
	ScoredArticles   int
	UnscoredArticles int
	Tickers          int
	Runs             int
	LastRun          *IngestRun
}
