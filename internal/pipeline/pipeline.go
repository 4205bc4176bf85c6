// Package pipeline runs ingestion: load the stored corpus, collect new
// articles, optionally backfill snippets, merge, enrich and save.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/collect"
	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/database"
	"github.com/TobiSchelling/TickerPulse/internal/fetch"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
	"github.com/TobiSchelling/TickerPulse/internal/sentiment"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a pipeline run.
type Result struct {
	Steps []StepResult
	// Run is the record written to the run log.
	Run *database.IngestRun
	// Corpus is the saved corpus; nil when the run failed before saving.
	Corpus []corpus.Article
}

func (r *Result) add(name, summary string, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: summary, Err: err})
}

// Pipeline ties the collector, snippet fetcher and enricher to the store.
type Pipeline struct {
	db        *database.DB
	collector *collect.Collector
	fetcher   *fetch.SnippetFetcher
	enricher  *sentiment.Enricher
	log       *logger.Logger
	now       func() time.Time
}

// New creates a pipeline with the components enabled in cfg.
func New(cfg *config.Config, db *database.DB, log *logger.Logger) *Pipeline {
	var fetcher *fetch.SnippetFetcher
	if cfg.Fetch.Enabled {
		fetcher = fetch.NewSnippetFetcher(
			time.Duration(cfg.Fetch.TimeoutSec)*time.Second,
			cfg.Fetch.SnippetLength,
			log.With("component", "fetch"),
		)
	}
	scorer := sentiment.NewScorer(cfg.Sentiment, log)
	return NewWith(
		db,
		collect.NewCollector(cfg, log.With("component", "collect")),
		fetcher,
		sentiment.NewEnricher(scorer, log.With("component", "sentiment")),
		log,
	)
}

// NewWith creates a pipeline from explicit components. fetcher may be nil
// to skip snippet backfill.
func NewWith(db *database.DB, collector *collect.Collector, fetcher *fetch.SnippetFetcher, enricher *sentiment.Enricher, log *logger.Logger) *Pipeline {
	return &Pipeline{
		db:        db,
		collector: collector,
		fetcher:   fetcher,
		enricher:  enricher,
		log:       log,
		now:       time.Now,
	}
}

// Ingest collects articles for tickers and folds them into the stored
// corpus. A rate limit is not a failure: what was fetched is merged and the
// run record notes it. The run fails, leaving the store untouched, when the
// corpus cannot be loaded, when every fetch failed, or on cancellation.
// An empty batch still enriches and saves the existing corpus.
func (p *Pipeline) Ingest(ctx context.Context, tickers []config.Ticker) (*Result, error) {
	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = t.Symbol
	}
	r := &Result{Run: &database.IngestRun{StartedAt: p.now(), Tickers: symbols}}

	p.log.Info("Step 1/5: loading corpus")
	existing, err := p.db.LoadCorpus()
	if err != nil {
		r.add("Load", "", err)
		return r, p.fail(r.Run, fmt.Errorf("loading corpus: %w", err))
	}
	r.add("Load", fmt.Sprintf("%d stored articles", len(existing)), nil)

	p.log.Info("Step 2/5: collecting articles", "tickers", len(tickers), "sources", strings.Join(p.collector.SourceNames(), ","))
	collected, err := p.collector.Collect(ctx, tickers)
	if err != nil {
		r.add("Collect", "", err)
		return r, p.fail(r.Run, fmt.Errorf("collecting: %w", err))
	}
	r.Run.Fetched = len(collected.Articles)
	r.Run.RateLimited = collected.RateLimited
	summary := fmt.Sprintf("Fetched %d articles for %d tickers (%d duplicate URLs, %d failed fetches)",
		len(collected.Articles), len(collected.Tickers), collected.URLDups, collected.Failures)
	if collected.RateLimited {
		summary += fmt.Sprintf("; rate limited, %d tickers skipped", len(collected.Skipped))
	}
	r.add("Collect", summary, nil)

	batch := collected.Articles
	if p.fetcher != nil && len(batch) > 0 {
		known, err := p.db.KnownNewsIDs()
		if err != nil {
			r.add("Fetch", "", err)
			return r, p.fail(r.Run, fmt.Errorf("reading stored ids: %w", err))
		}
		var fr *fetch.Result
		batch, fr, err = p.fetcher.Backfill(ctx, batch, known)
		if err != nil {
			r.add("Fetch", "", err)
			return r, p.fail(r.Run, fmt.Errorf("fetching snippets: %w", err))
		}
		r.add("Fetch", fmt.Sprintf("Backfilled %d snippets, %d failed", fr.Fetched, fr.Failed), nil)
	}

	return r, p.commit(ctx, r, existing, batch)
}

// Import folds externally supplied rows into the stored corpus, the same way
// a fetched batch is. Rows keep the sentiment they were imported with.
func (p *Pipeline) Import(ctx context.Context, articles []corpus.Article) (*Result, error) {
	var symbols []string
	for _, a := range articles {
		t := corpus.NormalizeTicker(a.Ticker)
		if t != "" && !slices.Contains(symbols, t) {
			symbols = append(symbols, t)
		}
	}
	slices.Sort(symbols)
	r := &Result{Run: &database.IngestRun{StartedAt: p.now(), Tickers: symbols, Fetched: len(articles)}}

	existing, err := p.db.LoadCorpus()
	if err != nil {
		r.add("Load", "", err)
		return r, p.fail(r.Run, fmt.Errorf("loading corpus: %w", err))
	}
	r.add("Load", fmt.Sprintf("%d stored articles", len(existing)), nil)
	r.add("Import", fmt.Sprintf("Read %d rows for %d tickers", len(articles), len(symbols)), nil)

	return r, p.commit(ctx, r, existing, articles)
}

// commit merges batch into existing, enriches, saves and records the run.
func (p *Pipeline) commit(ctx context.Context, r *Result, existing, batch []corpus.Article) error {
	run := r.Run

	p.log.Info("Step 3/5: merging", "batch", len(batch))
	merged := corpus.Merge(existing, batch)
	run.Malformed = merged.Malformed
	run.Duplicates = merged.KnownDuplicates + merged.BatchDuplicates + merged.NearDuplicates
	run.Added = merged.Added
	r.add("Merge", fmt.Sprintf("Added %d articles (%d already stored, %d repeated, %d near duplicates, %d malformed)",
		merged.Added, merged.KnownDuplicates, merged.BatchDuplicates, merged.NearDuplicates, merged.Malformed), nil)

	p.log.Info("Step 4/5: scoring sentiment")
	enriched, er := p.enricher.Ensure(ctx, merged.Corpus)
	if err := ctx.Err(); err != nil {
		r.add("Sentiment", "", err)
		return p.fail(run, err)
	}
	run.Scored = er.Scored
	run.Defaulted = er.Defaulted
	r.add("Sentiment", fmt.Sprintf("Scored %d articles (%d defaulted to neutral, %d already scored)",
		er.Scored+er.Defaulted, er.Defaulted, er.AlreadyScored), nil)

	p.log.Info("Step 5/5: saving corpus", "articles", len(enriched))
	saved, err := p.db.SaveCorpus(enriched)
	if err != nil {
		r.add("Save", "", err)
		return p.fail(run, fmt.Errorf("saving corpus: %w", err))
	}
	run.CorpusSize = len(enriched)
	r.Corpus = enriched
	r.add("Save", fmt.Sprintf("Stored %d articles (%d new, %d newly scored, %d removed)",
		len(enriched), saved.Inserted, saved.Enriched, saved.Removed), nil)

	run.FinishedAt = p.now()
	if err := p.db.InsertRun(run); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	p.log.Info("ingest complete", "run", run.ID, "added", run.Added, "corpus", run.CorpusSize,
		"rate_limited", run.RateLimited)
	return nil
}

// fail records a failed run and returns err.
func (p *Pipeline) fail(run *database.IngestRun, err error) error {
	run.FinishedAt = p.now()
	msg := err.Error()
	run.Error = &msg
	if ierr := p.db.InsertRun(run); ierr != nil {
		p.log.Warn("could not record failed run", "error", ierr)
	}
	p.log.Error("ingest failed", "error", err)
	return err
}

// DryRun shows what Ingest would do without fetching or writing.
func (p *Pipeline) DryRun(tickers []config.Ticker) (*Result, error) {
	r := &Result{}

	existing, err := p.db.LoadCorpus()
	if err != nil {
		r.add("Load", "", err)
		return r, fmt.Errorf("loading corpus: %w", err)
	}
	r.add("Load", fmt.Sprintf("[dry-run] %d stored articles", len(existing)), nil)

	sources := p.collector.SourceNames()
	r.add("Collect", fmt.Sprintf("[dry-run] Would fetch %d tickers from %d sources (%s)",
		len(tickers), len(sources), strings.Join(sources, ", ")), nil)

	if p.fetcher != nil {
		r.add("Fetch", "[dry-run] Would backfill snippets for new articles without one", nil)
	}

	unscored := 0
	for i := range existing {
		if !existing[i].HasSentiment() {
			unscored++
		}
	}
	r.add("Sentiment", fmt.Sprintf("[dry-run] %d stored articles need scoring", unscored), nil)
	return r, nil
}
