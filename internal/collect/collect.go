// Package collect fetches raw article batches for the configured tickers.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

var (
	// ErrRateLimited signals that a provider refused further requests. It is
	// a stop signal, distinct from an empty result.
	ErrRateLimited = errors.New("rate limited by news provider")

	// ErrAllSourcesFailed is returned when every attempted fetch failed for
	// a reason other than rate limiting.
	ErrAllSourcesFailed = errors.New("all news sources failed")
)

// Source fetches the raw articles for one ticker. Returned articles carry
// the ticker and no identity. On ErrRateLimited a source may still return
// the articles it got before the refusal.
type Source interface {
	Name() string
	FetchTicker(ctx context.Context, t config.Ticker) ([]corpus.Article, error)
}

// Result holds the results of a collection run.
type Result struct {
	Articles    []corpus.Article
	Tickers     []string
	PerTicker   map[string]int
	PerSource   map[string]int
	URLDups     int
	Attempts    int
	Failures    int
	RateLimited bool
	// Skipped lists tickers that were not fetched because every source had
	// been rate limited.
	Skipped []string
}

// Collector runs every source over every ticker.
type Collector struct {
	sources []Source
	log     *logger.Logger
}

// New creates a collector over the given sources.
func New(sources []Source, log *logger.Logger) *Collector {
	return &Collector{sources: sources, log: log}
}

// NewCollector creates a collector with the sources enabled in cfg. NewsAPI
// is skipped when its API key is not set.
func NewCollector(cfg *config.Config, log *logger.Logger) *Collector {
	var sources []Source

	if cfg.Sources.NewsAPI.Enabled {
		s := NewNewsAPISource(cfg.Sources.NewsAPI, log)
		if s.IsConfigured() {
			sources = append(sources, s)
		} else {
			log.Warn("NewsAPI key not set, skipping", "env", cfg.Sources.NewsAPI.APIKeyEnv)
		}
	}
	if y := cfg.Sources.Feeds.YahooFinance; y.Enabled {
		sources = append(sources, NewYahooFinanceSource(y, log))
	}

	if len(sources) == 0 {
		log.Warn("no news sources enabled")
	}
	return New(sources, log)
}

// SourceNames returns the names of the active sources.
func (c *Collector) SourceNames() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Collect fetches every ticker from every source, in config order. A source
// that signals a rate limit is not asked again during this run; once every
// source is rate limited the remaining tickers are skipped and what was
// already fetched is returned. Cancellation is checked before each ticker.
func (c *Collector) Collect(ctx context.Context, tickers []config.Ticker) (*Result, error) {
	r := &Result{
		PerTicker: make(map[string]int),
		PerSource: make(map[string]int),
	}
	limited := make(map[string]bool)

	for i, t := range tickers {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		if len(c.sources) > 0 && len(limited) == len(c.sources) {
			for _, rest := range tickers[i:] {
				r.Skipped = append(r.Skipped, rest.Symbol)
			}
			c.log.Warn("rate limited, stopping collection", "skipped", len(r.Skipped))
			break
		}

		r.Tickers = append(r.Tickers, t.Symbol)
		seenURL := make(map[string]bool)

		for _, s := range c.sources {
			if limited[s.Name()] {
				continue
			}

			start := time.Now()
			articles, err := s.FetchTicker(ctx, t)
			r.Attempts++

			switch {
			case errors.Is(err, ErrRateLimited):
				limited[s.Name()] = true
				r.RateLimited = true
				c.log.Warn("source rate limited", "source", s.Name(), "ticker", t.Symbol, "kept", len(articles))
			case err != nil:
				r.Failures++
				c.log.Warn("fetch failed", "source", s.Name(), "ticker", t.Symbol, "error", err)
				continue
			}

			for _, a := range articles {
				if a.URL != "" {
					if seenURL[a.URL] {
						r.URLDups++
						continue
					}
					seenURL[a.URL] = true
				}
				a.Ticker = t.Symbol
				r.Articles = append(r.Articles, a)
				r.PerTicker[t.Symbol]++
				r.PerSource[s.Name()]++
			}

			c.log.Info("fetched", "source", s.Name(), "ticker", t.Symbol,
				"articles", len(articles), "took", time.Since(start).Round(time.Millisecond))
		}
	}

	if r.Attempts > 0 && r.Failures == r.Attempts {
		return r, fmt.Errorf("%w (%d attempts)", ErrAllSourcesFailed, r.Attempts)
	}

	c.log.Info("collection complete", "articles", len(r.Articles), "url_duplicates", r.URLDups,
		"failures", r.Failures, "rate_limited", r.RateLimited)
	return r, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
