package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TobiSchelling/TickerPulse/internal/config"
	"github.com/TobiSchelling/TickerPulse/internal/logger"
)

const yahooRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Yahoo! Finance: NVDA News</title>
  <link>https://finance.yahoo.com/</link>
  <item>
    <title>Nvidia stock climbs on AI demand</title>
    <link>https://finance.yahoo.com/news/nvidia-climbs.html</link>
    <description>&lt;p&gt;Shares rose &amp;amp; analysts cheered.&lt;/p&gt;</description>
    <pubDate>Fri, 08 Mar 2024 15:04:05 -0500</pubDate>
    <guid>nvidia-climbs</guid>
  </item>
  <item>
    <title>Old news</title>
    <link>https://finance.yahoo.com/news/old.html</link>
    <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Undated item</title>
    <guid>https://finance.yahoo.com/news/undated.html</guid>
  </item>
  <item>
    <description>No title or link</description>
  </item>
</channel>
</rss>`

func TestFeedSourceParsesItems(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Query().Get("s")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(yahooRSS))
	}))
	defer srv.Close()

	f := NewFeedSource("yahoo_finance", srv.URL+"/rss?s=%s", 30, time.Second, logger.Discard())
	f.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	got, err := f.FetchTicker(context.Background(), config.Ticker{Symbol: "NVDA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "NVDA" {
		t.Errorf("expected symbol in feed URL, got %q", gotPath)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items within lookback, got %d", len(got))
	}

	a := got[0]
	if a.Ticker != "NVDA" || a.URL != "https://finance.yahoo.com/news/nvidia-climbs.html" {
		t.Errorf("unexpected article %+v", a)
	}
	if a.Source == nil || *a.Source != "Yahoo! Finance: NVDA News" {
		t.Errorf("expected channel title as source, got %v", a.Source)
	}
	if a.Description == nil || *a.Description != "Shares rose & analysts cheered." {
		t.Errorf("expected stripped description, got %v", a.Description)
	}
	if a.PublishedAt != time.Date(2024, 3, 8, 20, 4, 5, 0, time.UTC) {
		t.Errorf("expected published_at in UTC, got %v", a.PublishedAt)
	}

	if got[1].URL != "https://finance.yahoo.com/news/undated.html" || !got[1].PublishedAt.IsZero() {
		t.Errorf("expected undated item with guid url, got %+v", got[1])
	}
}

func TestFeedSourceRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFeedSource("yahoo_finance", srv.URL+"/rss?s=%s", 30, time.Second, logger.Discard())
	if _, err := f.FetchTicker(context.Background(), config.Ticker{Symbol: "NVDA"}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestFeedSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFeedSource("yahoo_finance", srv.URL+"/rss?s=%s", 30, time.Second, logger.Discard())
	_, err := f.FetchTicker(context.Background(), config.Ticker{Symbol: "NVDA"})
	if err == nil || errors.Is(err, ErrRateLimited) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"a &amp; b&nbsp;c", "a & b c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.in); got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractSourceName(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://feeds.finance.yahoo.com/rss/2.0/headline", "Yahoo"},
		{"https://www.reuters.com/feed", "Reuters"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := extractSourceName(tt.url); got != tt.want {
			t.Errorf("extractSourceName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
