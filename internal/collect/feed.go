package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/corpus"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

const maxPerFeed = 50

// FeedSource reads a per-ticker RSS/Atom feed. The URL template receives the
// ticker symbol.
type FeedSource struct {
	name        string
	urlTemplate string
	maxAge      time.Duration
	parser      *gofeed.Parser
	now         func() time.Time
	log         *logger.Logger
}

// NewFeedSource creates a feed source.
func NewFeedSource(name, urlTemplate string, lookbackDays int, timeout time.Duration, log *logger.Logger) *FeedSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "tickerpulse/1.0"
	return &FeedSource{
		name:        name,
		urlTemplate: urlTemplate,
		maxAge:      time.Duration(lookbackDays) * 24 * time.Hour,
		parser:      parser,
		now:         time.Now,
		log:         log,
	}
}

// NewYahooFinanceSource creates the Yahoo Finance headline feed source.
func NewYahooFinanceSource(cfg config.YahooFinanceConfig, log *logger.Logger) *FeedSource {
	return NewFeedSource("yahoo_finance", cfg.URLTemplate, cfg.LookbackDays,
		time.Duration(cfg.TimeoutSec)*time.Second, log)
}

func (f *FeedSource) Name() string { return f.name }

// FetchTicker parses the ticker's feed. HTTP 429 maps to ErrRateLimited.
func (f *FeedSource) FetchTicker(ctx context.Context, t config.Ticker) ([]corpus.Article, error) {
	feedURL := fmt.Sprintf(f.urlTemplate, url.QueryEscape(t.Symbol))

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s: %s", ErrRateLimited, f.name, httpErr.Status)
		}
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = extractSourceName(feedURL)
	}

	var cutoff time.Time
	if f.maxAge > 0 {
		cutoff = f.now().Add(-f.maxAge)
	}

	var out []corpus.Article
	for _, item := range feed.Items {
		if len(out) >= maxPerFeed {
			break
		}
		a, ok := parseItem(item, t.Symbol, source)
		if !ok {
			continue
		}
		if !cutoff.IsZero() && !a.PublishedAt.IsZero() && a.PublishedAt.Before(corpus.NormalizeTime(cutoff)) {
			continue
		}
		out = append(out, a)
	}

	f.log.Debug("parsed feed", "source", f.name, "ticker", t.Symbol, "items", len(feed.Items), "kept", len(out))
	return out, nil
}

func parseItem(item *gofeed.Item, ticker, source string) (corpus.Article, bool) {
	itemURL := strings.TrimSpace(item.Link)
	if itemURL == "" {
		itemURL = strings.TrimSpace(item.GUID)
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" && title == "" {
		return corpus.Article{}, false
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = corpus.NormalizeTime(*item.PublishedParsed)
	} else if item.UpdatedParsed != nil {
		published = corpus.NormalizeTime(*item.UpdatedParsed)
	}

	var author string
	if item.Author != nil {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	return corpus.Article{
		Ticker:         ticker,
		Source:         optional(source),
		Author:         optional(strings.TrimSpace(author)),
		Title:          title,
		Description:    optional(stripHTML(item.Description)),
		URL:            itemURL,
		PublishedAt:    published,
		ContentSnippet: optional(stripHTML(item.Content)),
	}, true
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			result.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}

// extractSourceName turns a feed URL into a display name:
// https://feeds.finance.yahoo.com/... -> "Yahoo".
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
